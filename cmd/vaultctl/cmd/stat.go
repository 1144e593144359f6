package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statCmd = &cobra.Command{
	Use:   "stat <vault-path>",
	Short: "Print an entry's encrypted size, plaintext size and modification time",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, logCloser, err := openVault()
		if err != nil {
			return err
		}
		defer v.Close()
		defer logCloser.Close()

		fi, plainSize, err := v.Stat(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("path:            %s\n", args[0])
		fmt.Printf("encrypted size:  %d\n", fi.Size())
		fmt.Printf("plaintext size:  %d\n", plainSize)
		fmt.Printf("modified:        %s\n", fi.ModTime().Format("2006-01-02T15:04:05"))
		fmt.Printf("is directory:    %t\n", fi.IsDir())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statCmd)
}
