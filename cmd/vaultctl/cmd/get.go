package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <vault-path> <local-file>",
	Short: "Decrypt a vault file to a local path",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, logCloser, err := openVault()
		if err != nil {
			return err
		}
		defer v.Close()
		defer logCloser.Close()

		src, _, err := v.Open(args[0])
		if err != nil {
			return err
		}
		defer src.Close()

		dst, err := os.Create(args[1])
		if err != nil {
			return err
		}
		n, err := io.Copy(dst, src)
		if err != nil {
			dst.Close()
			return err
		}
		if err := dst.Close(); err != nil {
			return err
		}
		fmt.Printf("wrote %d bytes to %s\n", n, args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}
