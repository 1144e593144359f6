package vault

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
)

// Sizes for the file header described in spec §3/§4.4.
const (
	headerContentKeySize = 32
	headerReservedSize   = 8
	headerPayloadSize    = headerContentKeySize + headerReservedSize
	headerReservedValue  = uint64(0xFFFFFFFFFFFFFFFF)
)

// fileHeader is the decrypted form of a Cryptomator file header: the
// nonce it was encrypted under (also mixed into every chunk's
// associated data) and the random per-file content key.
type fileHeader struct {
	Nonce      []byte
	Reserved   []byte
	ContentKey []byte
}

// newHeader creates a fresh, randomly initialized file header.
func (c *cryptor) newHeader() (fileHeader, error) {
	h := fileHeader{
		Nonce:      make([]byte, c.nonceSize()),
		ContentKey: make([]byte, headerContentKeySize),
		Reserved:   make([]byte, headerReservedSize),
	}
	if _, err := rand.Read(h.Nonce); err != nil {
		return fileHeader{}, err
	}
	if _, err := rand.Read(h.ContentKey); err != nil {
		return fileHeader{}, err
	}
	binary.BigEndian.PutUint64(h.Reserved, headerReservedValue)
	return h, nil
}

// marshalHeader encrypts h under the vault's primary key and writes it.
func (c *cryptor) marshalHeader(w io.Writer, h fileHeader) error {
	var payload bytes.Buffer
	payload.Write(h.Reserved)
	payload.Write(h.ContentKey)

	encrypted := c.encryptChunk(payload.Bytes(), h.Nonce, nil)
	_, err := w.Write(encrypted)
	return err
}

// unmarshalHeader reads and decrypts a file header. A tampered or
// non-vault file yields ErrCorruptHeader.
func (c *cryptor) unmarshalHeader(r io.Reader) (fileHeader, error) {
	encHeader := make([]byte, c.nonceSize()+headerPayloadSize+c.tagSize())
	if _, err := io.ReadFull(r, encHeader); err != nil {
		return fileHeader{}, fmt.Errorf("%w: reading header: %v", ErrCorruptHeader, err)
	}
	nonce := encHeader[:c.nonceSize()]

	plain, err := c.decryptChunk(encHeader, nil)
	if err != nil {
		return fileHeader{}, fmt.Errorf("%w: %v", ErrCorruptHeader, err)
	}
	if len(plain) != headerPayloadSize {
		return fileHeader{}, fmt.Errorf("%w: unexpected header payload size %d", ErrCorruptHeader, len(plain))
	}

	reserved := plain[:headerReservedSize]
	if binary.BigEndian.Uint64(reserved) != headerReservedValue {
		return fileHeader{}, fmt.Errorf("%w: reserved field mismatch", ErrCorruptHeader)
	}

	return fileHeader{
		Nonce:      append([]byte{}, nonce...),
		Reserved:   append([]byte{}, reserved...),
		ContentKey: append([]byte{}, plain[headerReservedSize:]...),
	}, nil
}
