package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var exportDirIDsCmd = &cobra.Command{
	Use:   "export-dirids <output.zip>",
	Short: "Archive every dir.c9r in the vault into a ZIP, for disaster recovery",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, logCloser, err := openVault()
		if err != nil {
			return err
		}
		defer v.Close()
		defer logCloser.Close()

		out, err := os.Create(args[0])
		if err != nil {
			return err
		}
		if err := v.ExportDirectoryIDs(out); err != nil {
			out.Close()
			return err
		}
		if err := out.Close(); err != nil {
			return err
		}
		fmt.Printf("wrote directory-id backup to %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportDirIDsCmd)
}
