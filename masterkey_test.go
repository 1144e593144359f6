package vault

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestNewMasterKey(t *testing.T) {
	k, err := NewMasterKey()
	assert.NoError(t, err)
	assert.Len(t, k.PrimaryKey, MasterEncryptKeySize)
	assert.Len(t, k.HMACKey, MasterMacKeySize)
}

func TestMasterKeyRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		password := rapid.String().Draw(t, "password")

		k1, err := NewMasterKey()
		assert.NoError(t, err)

		buf := &bytes.Buffer{}
		assert.NoError(t, MarshalMasterKey(buf, k1, password))
		assert.NotEmpty(t, buf.Bytes())

		k2, err := UnmarshalMasterKey(buf, password)
		assert.NoError(t, err)
		assert.Equal(t, k1, k2)
	})
}

func TestMasterKeyWrongPassword(t *testing.T) {
	k, err := NewMasterKey()
	assert.NoError(t, err)

	buf := &bytes.Buffer{}
	assert.NoError(t, MarshalMasterKey(buf, k, "correct horse"))

	_, err = UnmarshalMasterKey(buf, "wrong password")
	assert.True(t, errors.Is(err, ErrBadPassword))
}
