package vault

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// File names at the vault root, per spec §6.
const (
	ConfigFileName    = "vault.cryptomator"
	MasterKeyFileName = "masterkey.cryptomator"

	// DefaultShorteningThreshold is used when vault.cryptomator omits
	// shorteningThreshold (spec §3).
	DefaultShorteningThreshold = 220

	vaultFormat        = 8
	configKeyIDHeader  = "kid"
	masterKeyFileScheme = "masterkeyfile:"
)

// vaultConfigClaims is the JWT payload of vault.cryptomator.
type vaultConfigClaims struct {
	Format              int    `json:"format"`
	ShorteningThreshold int    `json:"shorteningThreshold,omitempty"`
	JTI                 string `json:"jti"`
	CipherCombo         string `json:"cipherCombo"`
}

// Valid implements jwt.Claims. It is also where the format/cipher combo
// gate from spec §2/§4.2 ("OUT OF SCOPE ... format versions other than
// V8 with SIV_GCM") is enforced for parsing, though the ctr+mac combo is
// still accepted for content decryption of legacy vaults.
func (c *vaultConfigClaims) Valid() error {
	if c.Format != vaultFormat {
		return fmt.Errorf("%w: unsupported vault format %d (want %d)", ErrConfigInvalid, c.Format, vaultFormat)
	}
	switch c.CipherCombo {
	case CipherComboSivGcm, CipherComboSivCtrMac:
	default:
		return fmt.Errorf("%w: unsupported cipher combo %q", ErrConfigInvalid, c.CipherCombo)
	}
	return nil
}

func (c *vaultConfigClaims) shorteningThreshold() int {
	if c.ShorteningThreshold == 0 {
		return DefaultShorteningThreshold
	}
	return c.ShorteningThreshold
}

// newVaultConfigClaims builds the default configuration for a freshly
// initialized vault.
func newVaultConfigClaims() vaultConfigClaims {
	return vaultConfigClaims{
		Format:              vaultFormat,
		ShorteningThreshold: DefaultShorteningThreshold,
		JTI:                 uuid.NewString(),
		CipherCombo:         CipherComboSivGcm,
	}
}

// marshalVaultConfig signs the claims as a compact JWT, HMAC'd with
// PK||HK (spec §3), and returns the token bytes.
func marshalVaultConfig(c vaultConfigClaims, key MasterKey) ([]byte, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &c)
	token.Header[configKeyIDHeader] = masterKeyFileScheme + MasterKeyFileName
	signed, err := token.SignedString(key.configMACKey())
	if err != nil {
		return nil, err
	}
	return []byte(signed), nil
}

// unmarshalVaultConfig parses and verifies a vault.cryptomator token.
// keyFunc resolves the master key referenced by the token's "kid"
// header (the masterkeyfile: URI). Signing schemes other than
// HS256/HS384/HS512 are rejected here, before keyFunc is called. If
// keyFunc returns a nil error the token's MAC is verified against the
// returned key's configMACKey.
func unmarshalVaultConfig(raw []byte, keyFunc func(masterKeyURI string) (*MasterKey, error)) (vaultConfigClaims, error) {
	var claims vaultConfigClaims
	_, err := jwt.ParseWithClaims(string(raw), &claims, func(token *jwt.Token) (interface{}, error) {
		kidVal, ok := token.Header[configKeyIDHeader]
		if !ok {
			return nil, fmt.Errorf("%w: missing %q header", ErrConfigInvalid, configKeyIDHeader)
		}
		kid, ok := kidVal.(string)
		if !ok || !strings.HasPrefix(kid, masterKeyFileScheme) {
			return nil, fmt.Errorf("%w: malformed %q header", ErrConfigInvalid, configKeyIDHeader)
		}
		uri := strings.TrimPrefix(kid, masterKeyFileScheme)
		key, err := keyFunc(uri)
		if err != nil {
			return nil, err
		}
		return key.configMACKey(), nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil {
		return vaultConfigClaims{}, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	return claims, nil
}

// unmarshalVaultConfigTrusted parses (but does not MAC-verify) a
// vault.cryptomator token, for the case where the caller supplies
// master keys directly rather than a password (spec §4.2: "If master
// keys are supplied directly ... no MAC is verified; the caller trusts
// the keys").
func unmarshalVaultConfigTrusted(raw []byte) (vaultConfigClaims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	var claims vaultConfigClaims
	if _, _, err := parser.ParseUnverified(string(raw), &claims); err != nil {
		return vaultConfigClaims{}, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	if err := claims.Valid(); err != nil {
		return vaultConfigClaims{}, err
	}
	return claims, nil
}
