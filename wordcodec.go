package vault

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/cryptomator-go/vault/internal/wordlist"
)

// Dictionary is a 4096-word list used to render raw key material as
// pronounceable word phrases (Cryptomator's "recovery key"), 12 bits
// per word (spec §4.8).
type Dictionary struct {
	words []string
	index map[string]int
}

// NewDictionary builds a Dictionary from exactly 4096 words. Word order
// defines each word's 12-bit index, so two dictionaries with the same
// words in a different order are not interchangeable.
func NewDictionary(words []string) (*Dictionary, error) {
	if len(words) != 4096 {
		return nil, ErrBadDictionary
	}
	idx := make(map[string]int, len(words))
	for i, w := range words {
		idx[w] = i
	}
	return &Dictionary{words: words, index: idx}, nil
}

// DefaultDictionary returns the codec's bundled placeholder word list
// (see internal/wordlist; not Cryptomator's official dictionary, which
// was not available to build this module).
func DefaultDictionary() *Dictionary {
	d, err := NewDictionary(wordlist.Default())
	if err != nil {
		panic("vault: embedded default dictionary must have exactly 4096 words")
	}
	return d
}

// BytesToWords renders b (whose length must be a multiple of 3) as a
// word phrase, two words per 3 bytes: the first word carries the high
// 12 bits of each 24-bit group, the second the low 12 bits.
func (d *Dictionary) BytesToWords(b []byte) ([]string, error) {
	if len(b)%3 != 0 {
		return nil, fmt.Errorf("vault: word codec input length %d is not a multiple of 3", len(b))
	}
	words := make([]string, 0, len(b)/3*2)
	for i := 0; i < len(b); i += 3 {
		n := uint32(b[i])<<16 | uint32(b[i+1])<<8 | uint32(b[i+2])
		hi := (n & 0xFFF000) >> 12
		lo := n & 0xFFF
		words = append(words, d.words[hi], d.words[lo])
	}
	return words, nil
}

// WordsToBytes is the inverse of BytesToWords.
func (d *Dictionary) WordsToBytes(words []string) ([]byte, error) {
	if len(words)%2 != 0 {
		return nil, fmt.Errorf("vault: word codec needs an even number of words, got %d", len(words))
	}
	out := make([]byte, 0, len(words)/2*3)
	for i := 0; i < len(words); i += 2 {
		hi, ok := d.index[words[i]]
		if !ok {
			return nil, fmt.Errorf("vault: word %q is not in the dictionary", words[i])
		}
		lo, ok := d.index[words[i+1]]
		if !ok {
			return nil, fmt.Errorf("vault: word %q is not in the dictionary", words[i+1])
		}
		n := uint32(hi)<<12 | uint32(lo)
		out = append(out, byte(n>>16), byte(n>>8), byte(n))
	}
	return out, nil
}

// wordCodecCRC returns the low 16 bits (little-endian) of the IEEE
// CRC-32 of b, the checksum format the recovery-key blob uses.
func wordCodecCRC(b []byte) []byte {
	sum := crc32.ChecksumIEEE(b)
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, sum)
	return buf[:2]
}

// EncodeMasterKey renders m as a recovery-key word phrase: primary key
// || hmac key || 16-bit checksum, 12 bits per word (spec §4.8).
func (d *Dictionary) EncodeMasterKey(m MasterKey) ([]string, error) {
	if len(m.PrimaryKey) != MasterEncryptKeySize || len(m.HMACKey) != MasterMacKeySize {
		return nil, fmt.Errorf("vault: master key must have two %d-byte halves", MasterEncryptKeySize)
	}
	blob := make([]byte, 0, MasterEncryptKeySize+MasterMacKeySize+2)
	blob = append(blob, m.PrimaryKey...)
	blob = append(blob, m.HMACKey...)
	blob = append(blob, wordCodecCRC(blob)...)
	return d.BytesToWords(blob)
}

// DecodeMasterKey parses a recovery-key word phrase back into a
// MasterKey, rejecting it with ErrBadChecksum if the embedded CRC does
// not match.
func (d *Dictionary) DecodeMasterKey(words []string) (MasterKey, error) {
	blob, err := d.WordsToBytes(words)
	if err != nil {
		return MasterKey{}, err
	}
	want := MasterEncryptKeySize + MasterMacKeySize + 2
	if len(blob) != want {
		return MasterKey{}, fmt.Errorf("%w: decoded master key must be %d bytes, got %d", ErrBadChecksum, want, len(blob))
	}
	payload, sum := blob[:MasterEncryptKeySize+MasterMacKeySize], blob[MasterEncryptKeySize+MasterMacKeySize:]
	if !bytes.Equal(wordCodecCRC(payload), sum) {
		return MasterKey{}, ErrBadChecksum
	}
	return MasterKey{
		PrimaryKey: append([]byte{}, payload[:MasterEncryptKeySize]...),
		HMACKey:    append([]byte{}, payload[MasterEncryptKeySize:]...),
	}, nil
}
