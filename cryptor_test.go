package vault

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestEncryptDecryptName(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		name := drawName(t)
		dirID := drawDirID(t)
		c := drawTestCryptor(t)

		enc, err := c.encryptName(name, dirID, PosixNamePolicy)
		assert.NoError(t, err)

		dec, err := c.decryptName(enc, dirID)
		assert.NoError(t, err)
		assert.Equal(t, name, dec)
	})
}

func TestEncryptNameIsDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		name := drawName(t)
		dirID := drawDirID(t)
		c := drawTestCryptor(t)

		a, err := c.encryptName(name, dirID, PosixNamePolicy)
		assert.NoError(t, err)
		b, err := c.encryptName(name, dirID, PosixNamePolicy)
		assert.NoError(t, err)
		assert.Equal(t, a, b)
	})
}

func TestDecryptNameTampered(t *testing.T) {
	c, err := newCryptor(MasterKey{PrimaryKey: make([]byte, 32), HMACKey: make([]byte, 32)}, CipherComboSivGcm)
	assert.NoError(t, err)

	enc, err := c.encryptName("hello.txt", "dir-a", PosixNamePolicy)
	assert.NoError(t, err)

	_, err = c.decryptName(enc, "dir-b")
	assert.True(t, errors.Is(err, ErrBadName))
}

func TestHashDirIDDeterministic(t *testing.T) {
	c, err := newCryptor(MasterKey{PrimaryKey: make([]byte, 32), HMACKey: make([]byte, 32)}, CipherComboSivGcm)
	assert.NoError(t, err)

	a := c.hashDirID("some-dir-id")
	b := c.hashDirID("some-dir-id")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c.hashDirID("other-dir-id"))
}

func TestIllegalNameRejected(t *testing.T) {
	c, err := newCryptor(MasterKey{PrimaryKey: make([]byte, 32), HMACKey: make([]byte, 32)}, CipherComboSivGcm)
	assert.NoError(t, err)

	_, err = c.encryptName("bad\x00name", "", PosixNamePolicy)
	var illegal *IllegalNameError
	assert.ErrorAs(t, err, &illegal)
	assert.Equal(t, 4, illegal.Pos)
}
