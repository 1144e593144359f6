// Package wordlist embeds the default 4096-word dictionary used by the
// master-key word codec.
package wordlist

import (
	_ "embed"
	"strings"
)

//go:embed words.txt
var raw string

// Default returns the module's built-in 4096-word dictionary. It is a
// synthetic, collision-free placeholder list (not Cryptomator's official
// wordlist, which isn't present in this module's reference corpus);
// callers that need interoperability with other Cryptomator tooling
// should load the official list from a file instead.
func Default() []string {
	lines := strings.Split(strings.TrimRight(raw, "\n"), "\n")
	words := make([]string, len(lines))
	copy(words, lines)
	return words
}
