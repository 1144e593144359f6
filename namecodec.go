package vault

// illegalNamePolicy decides which bytes are illegal in a plaintext path
// component for a given host (spec §4.3, §9 "Illegal-character
// policy depends on host OS; expose it as configuration").
type illegalNamePolicy struct {
	windows bool
}

// PosixNamePolicy rejects only NUL and '/'.
var PosixNamePolicy = illegalNamePolicy{windows: false}

// WindowsNamePolicy additionally rejects the reserved Windows path
// characters and a trailing space or dot.
var WindowsNamePolicy = illegalNamePolicy{windows: true}

const windowsIllegal = `<>:"\|?*`

// check returns the 1-based byte position of the first illegal byte in
// name, or 0 if name is legal.
func (p illegalNamePolicy) check(name string) int {
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == 0 || c == '/' {
			return i + 1
		}
		if p.windows {
			for j := 0; j < len(windowsIllegal); j++ {
				if c == windowsIllegal[j] {
					return i + 1
				}
			}
			if (c == ' ' || c == '.') && i+1 == len(name) {
				return i + 1
			}
		}
	}
	return 0
}

const (
	entrySuffix    = ".c9r"
	sidecarSuffix  = ".c9s"
	nameSidecar    = "name.c9s"
	contentsEntry  = "contents.c9r"
	dirIDEntry     = "dir.c9r"
	dirIDBackup    = "dirid.c9r"
	symlinkEntry   = "symlink.c9r"
	shardDirPrefix = "d"
)

// encodedName is the on-disk representation of one child entry: either
// a plain "<enc>.c9r" file/directory, or, once the encrypted name plus
// its ".c9r" suffix exceeds the shortening threshold, a "<hash>.c9s"
// sidecar directory
// that holds the full encrypted name in name.c9s (spec §3/§4.3).
type encodedName struct {
	// encrypted is the full base64url(AES-SIV(...)) string, without
	// any suffix.
	encrypted string
	// long is true if the entry is stored as a .c9s sidecar.
	long bool
}

// entryName returns the literal on-disk basename for this encoded name
// (including suffix), e.g. "<enc>.c9r" or "<hash>.c9s".
func (e encodedName) entryName() string {
	if e.long {
		return shortenedName(e.encrypted) + sidecarSuffix
	}
	return e.encrypted + entrySuffix
}

// encodeName encrypts name under dirID and decides whether it needs
// shortening against threshold.
func (c *cryptor) encodeName(name, dirID string, threshold int, policy illegalNamePolicy) (encodedName, error) {
	enc, err := c.encryptName(name, dirID, policy)
	if err != nil {
		return encodedName{}, err
	}
	return encodedName{encrypted: enc, long: len(enc)+len(entrySuffix) > threshold}, nil
}
