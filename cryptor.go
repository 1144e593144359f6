package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // used only for shard/long-name hashing, not for security
	"crypto/sha256"
	"encoding/base32"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"hash"

	"github.com/miscreant/miscreant.go"
)

// Cipher combinations supported for file content, per spec §3/§4.1.
const (
	CipherComboSivGcm    = "SIV_GCM"
	CipherComboSivCtrMac = "SIV_CTRMAC"
)

// contentCryptor abstracts over the two supported content AEAD schemes.
type contentCryptor interface {
	encryptChunk(plaintext, nonce, additionalData []byte) []byte
	decryptChunk(ciphertext, additionalData []byte) ([]byte, error)
	fileAssociatedData(headerNonce []byte, chunkNr uint64) []byte

	nonceSize() int
	tagSize() int
}

// cryptor implements the name codec and content codec for a vault,
// bound to its master keys and configured cipher combo.
type cryptor struct {
	masterKey   MasterKey
	siv         *miscreant.Cipher
	cipherCombo string
	contentCryptor
}

func newCryptor(key MasterKey, cipherCombo string) (cryptor, error) {
	var c cryptor
	c.masterKey = key
	siv, err := miscreant.NewAESCMACSIV(key.sivKey())
	if err != nil {
		return cryptor{}, fmt.Errorf("initializing AES-SIV: %w", err)
	}
	c.siv = siv
	c.cipherCombo = cipherCombo
	c.contentCryptor, err = newContentCryptor(cipherCombo, key.PrimaryKey, key.HMACKey)
	if err != nil {
		return cryptor{}, err
	}
	return c, nil
}

func newContentCryptor(cipherCombo string, primaryKey, hmacKey []byte) (contentCryptor, error) {
	block, err := aes.NewCipher(primaryKey)
	if err != nil {
		return nil, err
	}
	switch cipherCombo {
	case CipherComboSivGcm:
		aesGCM, err := cipher.NewGCM(block)
		if err != nil {
			return nil, err
		}
		return &gcmCryptor{aesGCM}, nil
	case CipherComboSivCtrMac:
		return &ctrMacCryptor{aes: block, hmacKey: hmacKey}, nil
	default:
		return nil, fmt.Errorf("vault: unsupported cipher combo %q", cipherCombo)
	}
}

// encryptionOverhead is the per-chunk nonce+tag overhead of the
// configured content cipher.
func (c *cryptor) encryptionOverhead() int {
	return c.nonceSize() + c.tagSize()
}

// --- name codec (spec §4.3) ---

// hashDirID returns the shard key XXYY...Y (base32 of SHA-1 of the
// AES-SIV seal of dirID with empty associated data), per spec §3.
func (c *cryptor) hashDirID(dirID string) string {
	sealed, err := c.siv.Seal(nil, []byte(dirID))
	if err != nil {
		// AES-SIV over a dirID with no associated data cannot fail: the
		// only failure mode in miscreant is a key-size mismatch, which
		// newCryptor already would have rejected.
		panic(fmt.Sprintf("vault: unexpected AES-SIV failure hashing dirID: %v", err))
	}
	sum := sha1.Sum(sealed) //nolint:gosec
	return base32.StdEncoding.EncodeToString(sum[:])
}

// encryptName encrypts a single plaintext path component under the
// given parent dirID, returning the base64url(SIV-seal) string without
// the ".c9r"/".c9s" suffix or shortening applied.
func (c *cryptor) encryptName(name string, dirID string, illegal illegalNamePolicy) (string, error) {
	if pos := illegal.check(name); pos > 0 {
		return "", &IllegalNameError{Name: name, Pos: pos}
	}
	sealed, err := c.siv.Seal(nil, []byte(name), []byte(dirID))
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// decryptName is the inverse of encryptName. A tampered or foreign name
// yields ErrBadName.
func (c *cryptor) decryptName(encName string, dirID string) (string, error) {
	raw, err := base64.URLEncoding.DecodeString(encName)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadName, err)
	}
	plain, err := c.siv.Open(nil, raw, []byte(dirID))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadName, err)
	}
	return string(plain), nil
}

// shortenedName returns the base64url(SHA-1(encName)) sidecar stem used
// when encName plus its ".c9r" suffix exceeds the shortening threshold.
func shortenedName(encName string) string {
	sum := sha1.Sum([]byte(encName)) //nolint:gosec
	return base64.URLEncoding.EncodeToString(sum[:])
}

// --- AES-GCM content cipher ---

type gcmCryptor struct {
	aead cipher.AEAD
}

func (*gcmCryptor) nonceSize() int { return 12 }
func (*gcmCryptor) tagSize() int   { return 16 }

func (c *gcmCryptor) encryptChunk(payload, nonce, ad []byte) []byte {
	buf := bytes.Buffer{}
	buf.Write(nonce)
	buf.Write(c.aead.Seal(nil, nonce, payload, ad))
	return buf.Bytes()
}

func (c *gcmCryptor) decryptChunk(chunk, ad []byte) ([]byte, error) {
	if len(chunk) < c.nonceSize() {
		return nil, fmt.Errorf("%w: chunk shorter than nonce", ErrCorruptChunk)
	}
	nonce := chunk[:c.nonceSize()]
	plain, err := c.aead.Open(nil, nonce, chunk[c.nonceSize():], ad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptChunk, err)
	}
	return plain, nil
}

func (c *gcmCryptor) fileAssociatedData(headerNonce []byte, chunkNr uint64) []byte {
	buf := bytes.Buffer{}
	_ = binary.Write(&buf, binary.BigEndian, chunkNr)
	buf.Write(headerNonce)
	return buf.Bytes()
}

// --- AES-CTR+HMAC content cipher (pre-1.7 cipher combo, kept for read
// compatibility with older vaults per spec §4.1) ---

type ctrMacCryptor struct {
	aes     cipher.Block
	hmacKey []byte
}

func (*ctrMacCryptor) nonceSize() int { return 16 }
func (*ctrMacCryptor) tagSize() int   { return 32 }

func (c *ctrMacCryptor) newCTR(nonce []byte) cipher.Stream { return cipher.NewCTR(c.aes, nonce) }
func (c *ctrMacCryptor) newHMAC() hash.Hash                { return hmac.New(sha256.New, c.hmacKey) }

func (c *ctrMacCryptor) encryptChunk(payload, nonce, ad []byte) []byte {
	out := make([]byte, len(payload))
	c.newCTR(nonce).XORKeyStream(out, payload)

	buf := bytes.Buffer{}
	buf.Write(nonce)
	buf.Write(out)

	mac := c.newHMAC()
	mac.Write(ad)
	mac.Write(buf.Bytes())
	buf.Write(mac.Sum(nil))
	return buf.Bytes()
}

func (c *ctrMacCryptor) decryptChunk(chunk, ad []byte) ([]byte, error) {
	if len(chunk) < c.nonceSize()+c.tagSize() {
		return nil, fmt.Errorf("%w: chunk shorter than nonce+tag", ErrCorruptChunk)
	}
	tagStart := len(chunk) - c.tagSize()
	tag := chunk[tagStart:]
	body := chunk[:tagStart]

	mac := c.newHMAC()
	mac.Write(ad)
	mac.Write(body)
	if !hmac.Equal(tag, mac.Sum(nil)) {
		return nil, fmt.Errorf("%w: hmac mismatch", ErrCorruptChunk)
	}

	nonce := body[:c.nonceSize()]
	ciphertext := body[c.nonceSize():]
	plain := make([]byte, len(ciphertext))
	c.newCTR(nonce).XORKeyStream(plain, ciphertext)
	return plain, nil
}

func (c *ctrMacCryptor) fileAssociatedData(headerNonce []byte, chunkNr uint64) []byte {
	buf := bytes.Buffer{}
	buf.Write(headerNonce)
	_ = binary.Write(&buf, binary.BigEndian, chunkNr)
	return buf.Bytes()
}
