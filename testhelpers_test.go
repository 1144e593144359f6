package vault

import (
	"testing"

	"pgregory.net/rapid"
)

var cipherCombos = []string{CipherComboSivCtrMac, CipherComboSivGcm}

func fixedSizeByteArray(n int) *rapid.Generator[[]byte] {
	return rapid.SliceOfN(rapid.Byte(), n, n)
}

func drawCipherCombo(t *rapid.T) string {
	return rapid.SampledFrom(cipherCombos).Draw(t, "cipherCombo")
}

func drawMasterKey(t *rapid.T) MasterKey {
	return MasterKey{
		PrimaryKey: fixedSizeByteArray(MasterEncryptKeySize).Draw(t, "primaryKey"),
		HMACKey:    fixedSizeByteArray(MasterMacKeySize).Draw(t, "hmacKey"),
	}
}

func drawTestCryptor(t *rapid.T) *cryptor {
	c, err := newCryptor(drawMasterKey(t), drawCipherCombo(t))
	if err != nil {
		t.Fatalf("creating cryptor: %v", err)
	}
	return &c
}

// drawName draws a plaintext path component that is always legal under
// PosixNamePolicy (no NUL, no '/'), since encryptName rejects those
// before a round trip could even be attempted.
func drawName(t *rapid.T) string {
	return rapid.StringMatching(`[ -.0-~]{0,40}`).Draw(t, "name")
}

func drawDirID(t *rapid.T) string {
	return rapid.StringMatching(`[ -.0-~]{0,40}`).Draw(t, "dirID")
}
