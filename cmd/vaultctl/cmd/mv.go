package cmd

import "github.com/spf13/cobra"

var mvCmd = &cobra.Command{
	Use:   "mv <src> <dst>",
	Short: "Move or rename a vault entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, logCloser, err := openVault()
		if err != nil {
			return err
		}
		defer v.Close()
		defer logCloser.Close()

		return v.Move(args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(mvCmd)
}
