package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestVaultConfigRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		key := drawMasterKey(t)
		claims := newVaultConfigClaims()

		token, err := marshalVaultConfig(claims, key)
		assert.NoError(t, err)

		got, err := unmarshalVaultConfig(token, func(string) (*MasterKey, error) {
			return &key, nil
		})
		assert.NoError(t, err)
		assert.Equal(t, claims, got)
	})
}

func TestVaultConfigRejectsWrongKey(t *testing.T) {
	key, err := NewMasterKey()
	assert.NoError(t, err)
	other, err := NewMasterKey()
	assert.NoError(t, err)

	claims := newVaultConfigClaims()
	token, err := marshalVaultConfig(claims, key)
	assert.NoError(t, err)

	_, err = unmarshalVaultConfig(token, func(string) (*MasterKey, error) {
		return &other, nil
	})
	assert.Error(t, err)
}

func TestVaultConfigTrustedSkipsMAC(t *testing.T) {
	key, err := NewMasterKey()
	assert.NoError(t, err)

	claims := newVaultConfigClaims()
	token, err := marshalVaultConfig(claims, key)
	assert.NoError(t, err)

	got, err := unmarshalVaultConfigTrusted(token)
	assert.NoError(t, err)
	assert.Equal(t, claims, got)
}
