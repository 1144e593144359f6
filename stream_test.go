package vault

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestStreamRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		stepSize := rapid.SampledFrom([]int{1, 512, 1000, ChunkPayloadSize}).Draw(t, "stepSize")
		length := rapid.IntRange(0, 10000).Draw(t, "length")
		src := fixedSizeByteArray(length).Draw(t, "src")
		c := drawTestCryptor(t)

		buf := &bytes.Buffer{}
		w, err := c.newWriter(buf)
		assert.NoError(t, err)

		for n := 0; n < length; {
			b := length - n
			if b > stepSize {
				b = stepSize
			}
			nn, err := w.Write(src[n : n+b])
			assert.NoError(t, err)
			n += nn
		}
		assert.NoError(t, w.Close())

		r, err := c.newReader(buf, true, nil)
		assert.NoError(t, err)

		out, err := io.ReadAll(r)
		assert.NoError(t, err)
		assert.Equal(t, src, out)
	})
}

func TestEncryptedFileSizeInvariant(t *testing.T) {
	c, err := newCryptor(MasterKey{PrimaryKey: make([]byte, 32), HMACKey: make([]byte, 32)}, CipherComboSivGcm)
	assert.NoError(t, err)

	assert.EqualValues(t, 196, c.encryptedFileSize(100))
	assert.EqualValues(t, 100, c.decryptedFileSize(196))
	assert.EqualValues(t, 68, c.encryptedFileSize(0))
	assert.EqualValues(t, 0, c.decryptedFileSize(68))
}

func TestStrictModeRejectsCorruptChunk(t *testing.T) {
	c, err := newCryptor(MasterKey{PrimaryKey: make([]byte, 32), HMACKey: make([]byte, 32)}, CipherComboSivGcm)
	assert.NoError(t, err)

	buf := &bytes.Buffer{}
	w, err := c.newWriter(buf)
	assert.NoError(t, err)
	_, err = w.Write([]byte("hello, world"))
	assert.NoError(t, err)
	assert.NoError(t, w.Close())

	corrupted := buf.Bytes()
	corrupted[len(corrupted)-1] ^= 0xFF

	r, err := c.newReader(bytes.NewReader(corrupted), true, nil)
	assert.NoError(t, err)

	_, err = io.ReadAll(r)
	assert.True(t, errors.Is(err, ErrCorruptChunk))
}

func TestPermissiveModeWarnsAndContinues(t *testing.T) {
	c, err := newCryptor(MasterKey{PrimaryKey: make([]byte, 32), HMACKey: make([]byte, 32)}, CipherComboSivGcm)
	assert.NoError(t, err)

	buf := &bytes.Buffer{}
	w, err := c.newWriter(buf)
	assert.NoError(t, err)
	_, err = w.Write([]byte("hello, world"))
	assert.NoError(t, err)
	assert.NoError(t, w.Close())

	corrupted := buf.Bytes()
	corrupted[len(corrupted)-1] ^= 0xFF

	var damagedChunk uint64 = ^uint64(0)
	r, err := c.newReader(bytes.NewReader(corrupted), false, func(chunkNr uint64, decErr error) {
		damagedChunk = chunkNr
	})
	assert.NoError(t, err)

	out, err := io.ReadAll(r)
	assert.NoError(t, err)
	assert.NotEqual(t, []byte("hello, world"), out)
	assert.EqualValues(t, 0, damagedChunk)
}
