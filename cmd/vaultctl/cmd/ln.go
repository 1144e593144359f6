package cmd

import "github.com/spf13/cobra"

var lnLegacy bool

var lnCmd = &cobra.Command{
	Use:   "ln <target> <link-path>",
	Short: "Create a symbolic link inside the vault",
	Long: `Create a symbolic link at link-path pointing to target. target is
stored verbatim and is not required to exist. --legacy additionally
copies the target directory's dir.c9r into the link's own entry so
older Cryptomator clients that don't understand symlink.c9r still see
a navigable directory.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, logCloser, err := openVault()
		if err != nil {
			return err
		}
		defer v.Close()
		defer logCloser.Close()

		return v.Link(args[0], args[1], lnLegacy)
	},
}

func init() {
	rootCmd.AddCommand(lnCmd)
	lnCmd.Flags().BoolVar(&lnLegacy, "legacy", false, "copy the target's dir.c9r for older-client compatibility")
}
