package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var putCmd = &cobra.Command{
	Use:   "put <local-file> <vault-path>",
	Short: "Encrypt a local file into the vault",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, logCloser, err := openVault()
		if err != nil {
			return err
		}
		defer v.Close()
		defer logCloser.Close()

		src, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer src.Close()

		dst, err := v.Create(args[1])
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
	rootCmd.AddCommand(putCmd)
}
