package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	vlt "github.com/cryptomator-go/vault"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new vault in an empty directory (--vault)",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := vaultDir()
		if err != nil {
			return err
		}
		password, err := resolvePassword()
		if err != nil {
			return err
		}
		opt, logCloser, err := vaultOptions()
		if err != nil {
			return err
		}
		defer logCloser.Close()

		v, err := vlt.Init(dir, password, opt)
		if err != nil {
			return err
		}
		defer v.Close()
		fmt.Printf("vault initialized at %s\n", v.Root())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
