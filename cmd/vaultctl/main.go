// Command vaultctl is a non-interactive CLI over the vault package: one
// subcommand per core operation (spec §6). It does not implement the
// reference implementation's interactive shell, alias table, or
// argument lexer.
package main

import "github.com/cryptomator-go/vault/cmd/vaultctl/cmd"

func main() {
	cmd.Execute()
}
