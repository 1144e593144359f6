// Package vault implements the core of a Cryptomator V8 (SIV_GCM) vault:
// master-key derivation and wrapping, deterministic filename encryption,
// streaming content encryption, a virtual-path resolver, and the
// mutating operations (create, remove, move, link, traverse) that
// preserve the on-disk directory protocol described at
// https://docs.cryptomator.org/en/latest/security/architecture/.
package vault

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Options configures a Vault beyond its cryptographic identity.
type Options struct {
	// NamePolicy decides which plaintext bytes are illegal in a path
	// component. Defaults to PosixNamePolicy.
	NamePolicy illegalNamePolicy
	// Permissive, if true, opts into the reference implementation's risky
	// behavior of substituting the raw unauthenticated ciphertext for a
	// content chunk that fails authentication instead of aborting. Spec
	// §9 recommends new implementations default to strict (the zero
	// value here), surfacing ErrCorruptChunk instead.
	Permissive bool
	// Logger receives warnings for skipped/undecryptable entries and
	// (in permissive mode) damaged chunks. Defaults to a discard logger.
	Logger *slog.Logger
	// SymlinkHopLimit caps symlink resolution chains (spec §9). Defaults
	// to 40.
	SymlinkHopLimit int
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = discardLogger()
	}
	if o.SymlinkHopLimit == 0 {
		o.SymlinkHopLimit = 40
	}
	return o
}

// Vault is an open handle on a Cryptomator vault directory.
type Vault struct {
	dir    string
	opt    Options
	config vaultConfigClaims
	master MasterKey
	crypt  cryptor

	cacheMu sync.RWMutex
	// dirIDCache maps an absolute dir.c9r path to the dirId it holds
	// (spec §4.5/§9). Never treated as authoritative: a cache miss just
	// falls back to disk.
	dirIDCache map[string]string
}

// Close zeroizes the vault's master keys. The Vault must not be used
// afterward.
func (v *Vault) Close() error {
	zero(v.master.PrimaryKey)
	zero(v.master.HMACKey)
	return nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Root returns the vault's base directory on disk.
func (v *Vault) Root() string { return v.dir }

// ShorteningThreshold returns the configured long-name threshold.
func (v *Vault) ShorteningThreshold() int { return v.config.shorteningThreshold() }

// MasterKey returns the vault's open master key pair, e.g. to render it
// as a recovery-key word phrase (spec §4.8). The returned slices alias
// the Vault's own key material; callers must not retain them past Close.
func (v *Vault) MasterKey() MasterKey { return v.master }

func vaultExists(dir string) (bool, error) {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Open opens an existing vault at dir, decrypting its master key with
// password and verifying the configuration's MACs (spec §4.2).
func Open(dir string, password string, opt Options) (*Vault, error) {
	return open(dir, func(uri string) (MasterKey, error) {
		return readMasterKeyFile(dir, uri, password)
	}, opt)
}

// OpenWithKeys opens an existing vault using raw master keys instead of
// a password. The configuration's MAC is not verified in this mode;
// the caller is trusted to supply the correct keys (spec §4.2).
func OpenWithKeys(dir string, key MasterKey, opt Options) (*Vault, error) {
	opt = opt.withDefaults()
	raw, err := os.ReadFile(filepath.Join(dir, ConfigFileName))
	if err != nil {
		return nil, vaultOpenErr(dir, err)
	}
	claims, err := unmarshalVaultConfigTrusted(raw)
	if err != nil {
		return nil, err
	}
	return newVault(dir, claims, key, opt)
}

func vaultOpenErr(dir string, err error) error {
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrVaultMissing, dir)
	}
	return ioErr("open vault", dir, err)
}

func readMasterKeyFile(dir, uri, password string) (MasterKey, error) {
	f, err := os.Open(filepath.Join(dir, uri))
	if err != nil {
		return MasterKey{}, vaultOpenErr(dir, err)
	}
	defer f.Close()
	return UnmarshalMasterKey(f, password)
}

func open(dir string, resolveKey func(uri string) (MasterKey, error), opt Options) (*Vault, error) {
	opt = opt.withDefaults()
	raw, err := os.ReadFile(filepath.Join(dir, ConfigFileName))
	if err != nil {
		return nil, vaultOpenErr(dir, err)
	}

	var key MasterKey
	claims, err := unmarshalVaultConfig(raw, func(uri string) (*MasterKey, error) {
		key, err = resolveKey(uri)
		if err != nil {
			return nil, err
		}
		return &key, nil
	})
	if err != nil {
		return nil, err
	}
	return newVault(dir, claims, key, opt)
}

func newVault(dir string, claims vaultConfigClaims, key MasterKey, opt Options) (*Vault, error) {
	c, err := newCryptor(key, claims.CipherCombo)
	if err != nil {
		return nil, err
	}
	return &Vault{
		dir:        dir,
		opt:        opt,
		config:     claims,
		master:     key,
		crypt:      c,
		dirIDCache: make(map[string]string),
	}, nil
}

// Init creates a brand-new vault in dir, which must exist and be empty.
// It generates fresh master keys, writes masterkey.cryptomator and
// vault.cryptomator, and creates the encrypted root directory shard
// (spec §4.2).
func Init(dir string, password string, opt Options) (*Vault, error) {
	opt = opt.withDefaults()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, vaultOpenErr(dir, err)
	}
	if len(entries) != 0 {
		return nil, fmt.Errorf("vault: %s: %w", dir, ErrAlreadyExists)
	}

	key, err := NewMasterKey()
	if err != nil {
		return nil, err
	}

	mkFile, err := os.OpenFile(filepath.Join(dir, MasterKeyFileName), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, ioErr("create", MasterKeyFileName, err)
	}
	err = MarshalMasterKey(mkFile, key, password)
	closeErr := mkFile.Close()
	if err != nil {
		return nil, err
	}
	if closeErr != nil {
		return nil, closeErr
	}

	claims := newVaultConfigClaims()
	token, err := marshalVaultConfig(claims, key)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), token, 0o600); err != nil {
		return nil, ioErr("create", ConfigFileName, err)
	}

	v, err := newVault(dir, claims, key, opt)
	if err != nil {
		return nil, err
	}

	if err := v.initRootShard(); err != nil {
		return nil, err
	}
	return v, nil
}

// initRootShard creates d/XX/YYYY.../ for the empty (root) dirId and
// writes its dirid.c9r recovery backup, per spec §4.2.
func (v *Vault) initRootShard() error {
	shard := v.shardPath("")
	if err := os.MkdirAll(shard, 0o700); err != nil {
		return ioErr("mkdir", shard, err)
	}
	return v.writeEncryptedBlob(filepath.Join(shard, dirIDBackup), []byte(""))
}

// shardPath returns d/XX/YYYY.../ for the given dirId.
func (v *Vault) shardPath(dirID string) string {
	hash := v.crypt.hashDirID(dirID)
	return filepath.Join(v.dir, shardDirPrefix, hash[:2], hash[2:])
}

// ChangePassword re-derives the KEK with a fresh salt and rewrites
// masterkey.cryptomator atomically. Master keys, directory identifiers
// and all content are unchanged (spec §4.2, §8).
func (v *Vault) ChangePassword(newPassword string) error {
	tmp, err := os.CreateTemp(v.dir, MasterKeyFileName+".tmp-*")
	if err != nil {
		return ioErr("create temp", v.dir, err)
	}
	tmpName := tmp.Name()
	if err := MarshalMasterKey(tmp, v.master, newPassword); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return ioErr("close temp", tmpName, err)
	}
	if err := os.Rename(tmpName, filepath.Join(v.dir, MasterKeyFileName)); err != nil {
		os.Remove(tmpName)
		return ioErr("rename", tmpName, err)
	}
	return nil
}

// writeEncryptedBlob encrypts data under the vault's content cipher and
// writes it to path, truncating any existing file in place (not via a
// temporary file), used for small payloads like dirid.c9r/symlink.c9r.
func (v *Vault) writeEncryptedBlob(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return ioErr("create", path, err)
	}
	w, err := v.crypt.newWriter(f)
	if err != nil {
		f.Close()
		return err
	}
	if _, err := w.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := w.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// readEncryptedBlob decrypts the full contents of an encrypted file at
// path. Used for small payloads (dirId backups, symlink targets) where
// streaming isn't warranted.
func (v *Vault) readEncryptedBlob(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r, err := v.crypt.newReader(f, !v.opt.Permissive, func(chunkNr uint64, decErr error) {
		v.opt.Logger.Warn("damaged content chunk", "path", path, "chunk", chunkNr, "error", decErr)
	})
	if err != nil {
		return nil, err
	}
	return readAll(r)
}

func readAll(r io.Reader) ([]byte, error) {
	var out []byte
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, err
		}
	}
}
