package vault

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNamePolicyPosixAllowsMostBytes(t *testing.T) {
	assert.Equal(t, 0, PosixNamePolicy.check("hello world.txt"))
	assert.Equal(t, 1, PosixNamePolicy.check("/etc"))
	assert.Equal(t, 0, WindowsNamePolicy.check("hello world"))
}

func TestNamePolicyWindowsRejectsReservedChars(t *testing.T) {
	assert.Equal(t, 5, WindowsNamePolicy.check("file<>name"))
}

func TestEncodeNameShortensPastThreshold(t *testing.T) {
	c, err := newCryptor(MasterKey{PrimaryKey: make([]byte, 32), HMACKey: make([]byte, 32)}, CipherComboSivGcm)
	assert.NoError(t, err)

	short := "a.txt"
	enc, err := c.encodeName(short, "", DefaultShorteningThreshold, PosixNamePolicy)
	assert.NoError(t, err)
	assert.False(t, enc.long)
	assert.True(t, strings.HasSuffix(enc.entryName(), entrySuffix))

	long := strings.Repeat("a", 250)
	enc2, err := c.encodeName(long, "", DefaultShorteningThreshold, PosixNamePolicy)
	assert.NoError(t, err)
	assert.True(t, enc2.long)
	assert.True(t, strings.HasSuffix(enc2.entryName(), sidecarSuffix))
}

func TestWindowsPolicyRejectsTrailingDot(t *testing.T) {
	assert.Equal(t, 5, WindowsNamePolicy.check("file."))
	assert.Equal(t, 0, PosixNamePolicy.check("file."))
}
