package vault

import (
	"crypto/aes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	aeswrap "github.com/NickBall/go-aes-key-wrap"
	"golang.org/x/crypto/scrypt"
)

// Sizes and defaults for the master-key artifact, per spec §3/§4.2.
const (
	MasterEncryptKeySize = 32
	MasterMacKeySize     = 32

	masterDefaultVersion        = 999
	masterDefaultScryptN        = 32 * 1024
	masterDefaultScryptR        = 8
	masterDefaultScryptP        = 1
	masterDefaultScryptSaltSize = 8
)

// MasterKey holds the two 256-bit vault master keys: PK (primary,
// AES-GCM content + half of the AES-SIV key) and HK (HMAC, the other
// half of the AES-SIV key and used standalone for the version MAC).
// The config MAC uses both keys, PK||HK.
type MasterKey struct {
	PrimaryKey []byte
	HMACKey    []byte
}

// sivKey returns the 512-bit AES-SIV key HK||PK. Order matters: HMAC key
// first, primary key second (spec §3).
func (m MasterKey) sivKey() []byte {
	return append(append([]byte{}, m.HMACKey...), m.PrimaryKey...)
}

// configMACKey returns the key used to MAC the vault configuration JWT:
// PK||HK (spec §3 — the opposite order from sivKey).
func (m MasterKey) configMACKey() []byte {
	return append(append([]byte{}, m.PrimaryKey...), m.HMACKey...)
}

// masterKeyFile is the JSON shape of masterkey.cryptomator.
type masterKeyFile struct {
	Version          uint32 `json:"version"`
	ScryptSalt       []byte `json:"scryptSalt"`
	ScryptCostParam  int    `json:"scryptCostParam"`
	ScryptBlockSize  int    `json:"scryptBlockSize"`
	PrimaryMasterKey []byte `json:"primaryMasterKey"`
	HmacMasterKey    []byte `json:"hmacMasterKey"`
	VersionMac       []byte `json:"versionMac"`
}

// NewMasterKey creates a fresh, randomly initialized MasterKey.
func NewMasterKey() (MasterKey, error) {
	m := MasterKey{
		PrimaryKey: make([]byte, MasterEncryptKeySize),
		HMACKey:    make([]byte, MasterMacKeySize),
	}
	if _, err := rand.Read(m.PrimaryKey); err != nil {
		return MasterKey{}, err
	}
	if _, err := rand.Read(m.HMACKey); err != nil {
		return MasterKey{}, err
	}
	return m, nil
}

func deriveKEK(password string, salt []byte, n, r, p int) ([]byte, error) {
	return scrypt.Key([]byte(password), salt, n, r, p, MasterEncryptKeySize)
}

// MarshalMasterKey encrypts m under a fresh password-derived KEK and
// writes the masterkey.cryptomator JSON record to w.
func MarshalMasterKey(w io.Writer, m MasterKey, password string) error {
	rec := masterKeyFile{
		Version:         masterDefaultVersion,
		ScryptCostParam: masterDefaultScryptN,
		ScryptBlockSize: masterDefaultScryptR,
		ScryptSalt:      make([]byte, masterDefaultScryptSaltSize),
	}
	if _, err := rand.Read(rec.ScryptSalt); err != nil {
		return err
	}

	kek, err := deriveKEK(password, rec.ScryptSalt, rec.ScryptCostParam, rec.ScryptBlockSize, masterDefaultScryptP)
	if err != nil {
		return fmt.Errorf("deriving KEK: %w", err)
	}
	if len(kek) != 32 {
		return fmt.Errorf("vault: KEK must be 32 bytes, got %d", len(kek))
	}
	block, err := aes.NewCipher(kek)
	if err != nil {
		return err
	}
	if rec.PrimaryMasterKey, err = aeswrap.Wrap(block, m.PrimaryKey); err != nil {
		return fmt.Errorf("wrapping primary key: %w", err)
	}
	if rec.HmacMasterKey, err = aeswrap.Wrap(block, m.HMACKey); err != nil {
		return fmt.Errorf("wrapping hmac key: %w", err)
	}

	mac := hmac.New(sha256.New, m.HMACKey)
	if err := binary.Write(mac, binary.BigEndian, rec.Version); err != nil {
		return err
	}
	rec.VersionMac = mac.Sum(nil)

	return json.NewEncoder(w).Encode(rec)
}

// UnmarshalMasterKey reads a masterkey.cryptomator record from r and
// unwraps it with the given password. It verifies the version MAC and
// returns ErrBadPassword if unwrap or MAC verification fails.
func UnmarshalMasterKey(r io.Reader, password string) (MasterKey, error) {
	var rec masterKeyFile
	if err := json.NewDecoder(r).Decode(&rec); err != nil {
		return MasterKey{}, fmt.Errorf("%w: parsing master key json: %v", ErrConfigInvalid, err)
	}

	kek, err := deriveKEK(password, rec.ScryptSalt, rec.ScryptCostParam, rec.ScryptBlockSize, masterDefaultScryptP)
	if err != nil {
		return MasterKey{}, fmt.Errorf("deriving KEK: %w", err)
	}
	if len(kek) != 32 {
		return MasterKey{}, fmt.Errorf("vault: KEK must be 32 bytes, got %d", len(kek))
	}
	block, err := aes.NewCipher(kek)
	if err != nil {
		return MasterKey{}, err
	}

	var m MasterKey
	if m.PrimaryKey, err = aeswrap.Unwrap(block, rec.PrimaryMasterKey); err != nil {
		return MasterKey{}, fmt.Errorf("%w: %w: %v", ErrBadPassword, ErrBadKeyWrap, err)
	}
	if m.HMACKey, err = aeswrap.Unwrap(block, rec.HmacMasterKey); err != nil {
		return MasterKey{}, fmt.Errorf("%w: %w: %v", ErrBadPassword, ErrBadKeyWrap, err)
	}

	mac := hmac.New(sha256.New, m.HMACKey)
	if err := binary.Write(mac, binary.BigEndian, rec.Version); err != nil {
		return MasterKey{}, err
	}
	if !hmac.Equal(mac.Sum(nil), rec.VersionMac) {
		return MasterKey{}, fmt.Errorf("%w: version mac mismatch", ErrBadPassword)
	}

	return m, nil
}
