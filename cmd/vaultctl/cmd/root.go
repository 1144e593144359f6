package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	vlt "github.com/cryptomator-go/vault"
)

var rootCmd = &cobra.Command{
	Use:   "vaultctl",
	Short: "Operate on a Cryptomator V8 vault directly on disk",
	Long: `vaultctl is a non-interactive command-line front end for the
vault package: init, mkdir, put, get, ls, mv, rm, rmdir, ln, stat,
export-dirids, and keys, one subcommand per core vault operation.`,
}

// Execute adds all child commands to the root command and runs it. It is
// called once from main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "vaultctl:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("vault", "C", "", "path to the vault directory")
	rootCmd.PersistentFlags().StringP("password", "p", "", "vault password (prompted on stdin if omitted)")
	rootCmd.PersistentFlags().Bool("permissive", false, "on a corrupt content chunk, log and substitute the raw ciphertext instead of aborting (spec §9: risky, off by default)")
	rootCmd.PersistentFlags().String("log", "", "log file for warnings (corrupt chunks, skipped entries); stderr if empty")
	rootCmd.PersistentFlags().Int("log-max-mb", 100, "log file size in MB before rotation")
	rootCmd.PersistentFlags().Int("symlink-hop-limit", 0, "cap on chained symlink resolution (0 uses the library default)")
	viper.BindPFlags(rootCmd.PersistentFlags())
	viper.SetEnvPrefix("VAULTCTL")
	viper.AutomaticEnv()
}

// vaultDir returns the required --vault/-C flag value.
func vaultDir() (string, error) {
	dir := viper.GetString("vault")
	if dir == "" {
		return "", errors.New("missing required vault directory (--vault/-C)")
	}
	return dir, nil
}

// resolvePassword returns the --password flag, falling back to a stdin
// prompt so a password never needs to appear in shell history.
func resolvePassword() (string, error) {
	if p := viper.GetString("password"); p != "" {
		return p, nil
	}
	fmt.Fprint(os.Stderr, "vault password: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// openLogger builds the logger configured by --log/--log-max-mb. The
// returned closer must be closed (flushing the rotator) before exit.
func openLogger() (*slog.Logger, io.Closer, error) {
	path := viper.GetString("log")
	if path == "" {
		return slog.New(slog.NewTextHandler(os.Stderr, nil)), nopCloser{}, nil
	}
	return vlt.NewFileLogger(path, viper.GetInt("log-max-mb"))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// vaultOptions builds vault.Options from the persistent flags.
func vaultOptions() (vlt.Options, io.Closer, error) {
	logger, closer, err := openLogger()
	if err != nil {
		return vlt.Options{}, nil, err
	}
	return vlt.Options{
		Permissive:      viper.GetBool("permissive"),
		Logger:          logger,
		SymlinkHopLimit: viper.GetInt("symlink-hop-limit"),
	}, closer, nil
}

// openVault opens the vault named by --vault with the configured
// options, prompting for a password. The caller must Close both the
// returned Vault and the log closer.
func openVault() (*vlt.Vault, io.Closer, error) {
	dir, err := vaultDir()
	if err != nil {
		return nil, nil, err
	}
	password, err := resolvePassword()
	if err != nil {
		return nil, nil, err
	}
	opt, logCloser, err := vaultOptions()
	if err != nil {
		return nil, nil, err
	}
	v, err := vlt.Open(dir, password, opt)
	if err != nil {
		logCloser.Close()
		return nil, nil, err
	}
	return v, logCloser, nil
}
