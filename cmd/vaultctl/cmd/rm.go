package cmd

import "github.com/spf13/cobra"

var rmCmd = &cobra.Command{
	Use:   "rm <vault-path>",
	Short: "Remove a file or symlink",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, logCloser, err := openVault()
		if err != nil {
			return err
		}
		defer v.Close()
		defer logCloser.Close()

		return v.Remove(args[0])
	},
}

var (
	rmdirRecursive bool
)

var rmdirCmd = &cobra.Command{
	Use:   "rmdir <vault-path>",
	Short: "Remove a directory (empty, unless --recursive)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, logCloser, err := openVault()
		if err != nil {
			return err
		}
		defer v.Close()
		defer logCloser.Close()

		if rmdirRecursive {
			return v.RemoveTree(args[0])
		}
		return v.RemoveDir(args[0])
	},
}

func init() {
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(rmdirCmd)
	rmdirCmd.Flags().BoolVarP(&rmdirRecursive, "recursive", "r", false, "remove the directory and everything beneath it")
}
