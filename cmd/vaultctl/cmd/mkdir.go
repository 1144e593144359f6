package cmd

import (
	"github.com/spf13/cobra"
)

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <vault-path>",
	Short: "Create a directory (and any missing ancestors) inside the vault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, logCloser, err := openVault()
		if err != nil {
			return err
		}
		defer v.Close()
		defer logCloser.Close()

		_, err = v.CreateDir(args[0])
		return err
	},
}

func init() {
	rootCmd.AddCommand(mkdirCmd)
}
