package vault

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/cryptomator-go/vault/internal/wordlist"
)

func TestDefaultDictionaryHas4096Words(t *testing.T) {
	d := DefaultDictionary()
	words, err := d.BytesToWords(make([]byte, 3))
	assert.NoError(t, err)
	assert.Len(t, words, 2)
}

func TestNewDictionaryRejectsWrongSize(t *testing.T) {
	_, err := NewDictionary(wordlist.Default()[:100])
	assert.True(t, errors.Is(err, ErrBadDictionary))
}

func TestBytesToWordsRoundTrip(t *testing.T) {
	d := DefaultDictionary()
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 20).Draw(t, "groups")
		data := fixedSizeByteArray(n * 3).Draw(t, "data")

		words, err := d.BytesToWords(data)
		assert.NoError(t, err)
		assert.Len(t, words, n*2)

		back, err := d.WordsToBytes(words)
		assert.NoError(t, err)
		assert.Equal(t, data, back)
	})
}

func TestMasterKeyWordCodecRoundTrip(t *testing.T) {
	d := DefaultDictionary()
	rapid.Check(t, func(t *rapid.T) {
		key := drawMasterKey(t)

		words, err := d.EncodeMasterKey(key)
		assert.NoError(t, err)

		back, err := d.DecodeMasterKey(words)
		assert.NoError(t, err)
		assert.Equal(t, key, back)
	})
}

func TestMasterKeyWordCodecRejectsBadChecksum(t *testing.T) {
	d := DefaultDictionary()
	key, err := NewMasterKey()
	assert.NoError(t, err)

	words, err := d.EncodeMasterKey(key)
	assert.NoError(t, err)

	tampered := append([]string{}, words...)
	for i, w := range d.words {
		if w != tampered[0] {
			tampered[0] = d.words[i]
			break
		}
	}

	_, err = d.DecodeMasterKey(tampered)
	assert.True(t, errors.Is(err, ErrBadChecksum))
}
