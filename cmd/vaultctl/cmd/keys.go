package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	vlt "github.com/cryptomator-go/vault"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Print or restore a vault's master key as a recovery-key word phrase",
}

var keysPrintCmd = &cobra.Command{
	Use:   "print",
	Short: "Open the vault and print its master key as a word phrase",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, logCloser, err := openVault()
		if err != nil {
			return err
		}
		defer v.Close()
		defer logCloser.Close()

		words, err := vlt.DefaultDictionary().EncodeMasterKey(v.MasterKey())
		if err != nil {
			return err
		}
		fmt.Println(strings.Join(words, " "))
		return nil
	},
}

var keysRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Rebuild masterkey.cryptomator from a recovery-key word phrase read on stdin",
	Long: `restore reads a recovery-key word phrase (space-separated) from
stdin, decodes it back into the two master keys, and writes a fresh
masterkey.cryptomator encrypted under --password into --vault. Use this
after masterkey.cryptomator is lost but vault.cryptomator and the
recovery phrase are intact; it does not touch any vault content. It
refuses to overwrite an existing masterkey.cryptomator, so a corrupted
one has to be moved out of the way first.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := vaultDir()
		if err != nil {
			return err
		}
		password, err := resolvePassword()
		if err != nil {
			return err
		}

		fmt.Fprint(os.Stderr, "recovery key words: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return err
		}
		words := strings.Fields(line)

		key, err := vlt.DefaultDictionary().DecodeMasterKey(words)
		if err != nil {
			return err
		}

		path := filepath.Join(dir, vlt.MasterKeyFileName)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err != nil {
			return err
		}
		if err := vlt.MarshalMasterKey(f, key, password); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysPrintCmd)
	keysCmd.AddCommand(keysRestoreCmd)
}
