package cmd

import (
	"fmt"
	"path"
	"sort"

	"github.com/spf13/cobra"
)

var (
	lsRecursive bool
	lsReverse   bool
)

var lsCmd = &cobra.Command{
	Use:   "ls <vault-path>",
	Short: "List a directory's entries (name, kind, size, mtime)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, logCloser, err := openVault()
		if err != nil {
			return err
		}
		defer v.Close()
		defer logCloser.Close()

		rows, err := v.List(args[0], lsRecursive)
		if err != nil {
			return err
		}
		sort.Slice(rows, func(i, j int) bool {
			a, b := path.Join(rows[i].Dir, rows[i].Name), path.Join(rows[j].Dir, rows[j].Name)
			if lsReverse {
				return a > b
			}
			return a < b
		})
		for _, r := range rows {
			kind := "d"
			size := ""
			if r.IsFile {
				kind = "f"
				size = fmt.Sprintf("%d", r.Size)
			}
			extra := ""
			if r.SymlinkTarget != "" {
				extra = " -> " + r.SymlinkTarget
			}
			fmt.Printf("%s\t%s\t%s\t%s%s\n", kind, size, r.ModTime.Format("2006-01-02T15:04:05"), path.Join(r.Dir, r.Name), extra)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lsCmd)
	lsCmd.Flags().BoolVarP(&lsRecursive, "recursive", "r", false, "descend into subdirectories")
	lsCmd.Flags().BoolVar(&lsReverse, "reverse", false, "sort descending instead of ascending")
}
