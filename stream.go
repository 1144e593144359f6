package vault

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// ChunkPayloadSize is the maximum plaintext size of one content chunk
// (spec §3/§4.4).
const ChunkPayloadSize = 32 * 1024

// encryptedFileSize returns the on-disk size of a file whose plaintext
// is size bytes long, for the cipher combo this cryptor was created
// with (spec §3: "Plaintext size ... n - 68 - 28*ceil(...)", inverted).
func (c *cryptor) encryptedFileSize(size int64) int64 {
	overhead := int64(c.encryptionOverhead())
	full := (size / ChunkPayloadSize) * (ChunkPayloadSize + overhead)
	rest := size % ChunkPayloadSize
	if rest > 0 {
		rest += overhead
	}
	return int64(c.nonceSize()+headerPayloadSize+c.tagSize()) + full + rest
}

// decryptedFileSize returns the plaintext size of an on-disk file of the
// given size, per spec §3/§8: max(0, n - 68 - 28*ceil((n-68)/32796)).
func (c *cryptor) decryptedFileSize(size int64) int64 {
	headerSize := int64(c.nonceSize() + headerPayloadSize + c.tagSize())
	if size <= headerSize {
		return 0
	}
	overhead := int64(c.encryptionOverhead())
	body := size - headerSize
	chunkOnDisk := ChunkPayloadSize + overhead

	full := (body / chunkOnDisk) * ChunkPayloadSize
	rest := body % chunkOnDisk
	if rest > 0 {
		rest -= overhead
	}
	if rest < 0 {
		rest = 0
	}
	return full + rest
}

const (
	lastChunk    = true
	notLastChunk = false
)

// permissiveChunkFunc is invoked when a chunk fails authentication in
// permissive mode; it receives the chunk index and the authentication
// error and returns nothing. Decryption always continues afterwards,
// emitting the unauthenticated ciphertext as a placeholder (spec §7/§9).
type permissiveChunkFunc func(chunkNr uint64, err error)

// contentReader decrypts a Cryptomator file body as it is read.
type contentReader struct {
	cryptor contentCryptor
	header  fileHeader
	src     io.Reader

	strict   bool
	onDamage permissiveChunkFunc

	unread []byte
	buf    []byte

	chunkNr uint64
	err     error
}

// newReader reads the file header from src and returns a reader
// for the decrypted body. strict=false emits a placeholder for chunks
// that fail authentication and reports them via onDamage instead of
// aborting, matching the reference implementation's default (spec §7,
// §9 open question); strict=true aborts with ErrCorruptChunk.
func (c *cryptor) newReader(src io.Reader, strict bool, onDamage permissiveChunkFunc) (*contentReader, error) {
	header, err := c.unmarshalHeader(src)
	if err != nil {
		return nil, err
	}
	return c.newContentReader(src, header, strict, onDamage)
}

func (c *cryptor) newContentReader(src io.Reader, header fileHeader, strict bool, onDamage permissiveChunkFunc) (*contentReader, error) {
	cc, err := newContentCryptor(c.cipherCombo, header.ContentKey, c.masterKey.HMACKey)
	if err != nil {
		return nil, err
	}
	return &contentReader{
		cryptor:  cc,
		header:   header,
		src:      src,
		strict:   strict,
		onDamage: onDamage,
		buf:      make([]byte, ChunkPayloadSize+cc.nonceSize()+cc.tagSize()),
	}, nil
}

func (r *contentReader) Read(p []byte) (int, error) {
	if len(r.unread) > 0 {
		n := copy(p, r.unread)
		r.unread = r.unread[n:]
		return n, nil
	}
	if r.err != nil {
		return 0, r.err
	}
	if len(p) == 0 {
		return 0, nil
	}

	last, err := r.readChunk()
	if err != nil {
		r.err = err
		return 0, err
	}

	n := copy(p, r.unread)
	r.unread = r.unread[n:]

	if last {
		if _, err := r.src.Read(make([]byte, 1)); err == nil {
			r.err = errors.New("vault: trailing data after end of encrypted file")
		} else if !errors.Is(err, io.EOF) {
			r.err = fmt.Errorf("vault: reading trailer: %w", err)
		} else {
			r.err = io.EOF
		}
	}
	return n, nil
}

func (r *contentReader) readChunk() (last bool, err error) {
	n, err := io.ReadFull(r.src, r.buf)
	var in []byte
	switch {
	case errors.Is(err, io.EOF):
		return true, nil
	case errors.Is(err, io.ErrUnexpectedEOF):
		last = true
		in = r.buf[:n]
	case err != nil:
		return false, err
	default:
		in = r.buf
	}

	ad := r.cryptor.fileAssociatedData(r.header.Nonce, r.chunkNr)
	payload, decErr := r.cryptor.decryptChunk(in, ad)
	if decErr != nil {
		if r.strict {
			return false, fmt.Errorf("%w: chunk %d: %v", ErrCorruptChunk, r.chunkNr, decErr)
		}
		if r.onDamage != nil {
			r.onDamage(r.chunkNr, decErr)
		}
		// Permissive mode: emit the on-disk payload (minus nonce/tag
		// framing) unauthenticated rather than aborting, matching the
		// reference's documented-risky behavior.
		overhead := r.cryptor.nonceSize() + r.cryptor.tagSize()
		if len(in) >= overhead {
			payload = in[r.cryptor.nonceSize() : len(in)-r.cryptor.tagSize()]
		} else {
			payload = nil
		}
	}

	r.chunkNr++
	r.unread = r.buf[:copy(r.buf, payload)]
	return last, nil
}

// contentWriter encrypts a Cryptomator file body as it is written.
type contentWriter struct {
	cryptor contentCryptor
	header  fileHeader

	dst       io.Writer
	unwritten []byte
	buf       []byte

	chunkNr uint64
	err     error
}

func (c *cryptor) newContentWriter(dst io.Writer, header fileHeader) (*contentWriter, error) {
	cc, err := newContentCryptor(c.cipherCombo, header.ContentKey, c.masterKey.HMACKey)
	if err != nil {
		return nil, err
	}
	w := &contentWriter{
		cryptor: cc,
		header:  header,
		dst:     dst,
		buf:     make([]byte, ChunkPayloadSize),
	}
	w.unwritten = w.buf[:0]
	return w, nil
}

// newWriter writes a fresh random file header to dst and returns a
// writer for the encrypted body.
func (c *cryptor) newWriter(dst io.Writer) (*contentWriter, error) {
	header, err := c.newHeader()
	if err != nil {
		return nil, err
	}
	if err := c.marshalHeader(dst, header); err != nil {
		return nil, err
	}
	return c.newContentWriter(dst, header)
}

func (w *contentWriter) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	total := len(p)
	for len(p) > 0 {
		free := w.buf[len(w.unwritten):ChunkPayloadSize]
		n := copy(free, p)
		p = p[n:]
		w.unwritten = w.unwritten[:len(w.unwritten)+n]

		if len(w.unwritten) == ChunkPayloadSize && len(p) > 0 {
			if err := w.flushChunk(notLastChunk); err != nil {
				w.err = err
				return 0, err
			}
		}
	}
	return total, nil
}

// Close flushes the final (possibly empty) chunk. It does not close the
// underlying writer.
func (w *contentWriter) Close() error {
	if w.err != nil {
		return w.err
	}
	err := w.flushChunk(lastChunk)
	if err != nil {
		w.err = err
		return err
	}
	w.err = errors.New("vault: content writer already closed")
	return nil
}

func (w *contentWriter) flushChunk(last bool) error {
	if !last && len(w.unwritten) != ChunkPayloadSize {
		panic("vault: internal error: flushChunk called with a partial non-final chunk")
	}
	if len(w.unwritten) == 0 {
		return nil
	}

	nonce := make([]byte, w.cryptor.nonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("vault: generating chunk nonce: %w", err)
	}
	ad := w.cryptor.fileAssociatedData(w.header.Nonce, w.chunkNr)
	out := w.cryptor.encryptChunk(w.unwritten, nonce, ad)

	if _, err := w.dst.Write(out); err != nil {
		return err
	}
	w.unwritten = w.buf[:0]
	w.chunkNr++
	return nil
}
