package vault

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"
)

// PathInfo locates a vault-virtual path on disk: which shard directory
// holds it, whether it is a directory, file or symlink, and (if a
// directory) the dirId used to encrypt its children. It is the Go
// analogue of the reference implementation's PathInfo (spec §4.5).
type PathInfo struct {
	// Path is the virtual path that was resolved. If the path (or an
	// ancestor of it) does not exist, Path is truncated to the first
	// missing component.
	Path string
	// DirID is the directory id governing this entry: its own id if
	// IsDir, otherwise its parent directory's id.
	DirID string
	// RealPath is the on-disk "<enc>.c9r" or "<hash>.c9s" entry for this
	// path component.
	RealPath string
	// RealDir is the on-disk d/XX/YYYY... directory holding this
	// directory's children, valid when IsDir.
	RealDir string
	// LongName is the base64url(AES-SIV) encrypted name, set only when
	// the entry is stored as a .c9s sidecar (its real basename is a
	// hash instead).
	LongName string
	// SymlinkC9 is the path to symlink.c9r, set if this entry is a
	// symbolic link.
	SymlinkC9 string
	// PointsTo is the resolved (absolute, "/"-separated) virtual target
	// of the symlink, set when SymlinkC9 != "".
	PointsTo string
	IsDir    bool
	Exists   bool
}

// nameC9 is the path of the file holding the entry's full encrypted
// name, when long.
func (i *PathInfo) nameC9() string {
	if i.LongName == "" {
		return i.RealPath
	}
	return filepath.Join(i.RealPath, nameSidecar)
}

// contentsC9 is the path of the entry's encrypted content stream.
func (i *PathInfo) contentsC9() string {
	if i.LongName == "" || i.IsDir {
		return i.RealPath
	}
	return filepath.Join(i.RealPath, contentsEntry)
}

// dirC9 is the path of the entry's plaintext directory-id file, valid
// only when IsDir.
func (i *PathInfo) dirC9() string {
	if !i.IsDir {
		return ""
	}
	return filepath.Join(i.RealPath, dirIDEntry)
}

// symC9 is the path symlink.c9r would live at for this entry, whether
// or not it currently exists.
func (i *PathInfo) symC9() string {
	return filepath.Join(i.RealPath, symlinkEntry)
}

// Resolve maps a vault-virtual, "/"-separated path to its on-disk
// location, decrypting one path component at a time (spec §4.5).
func (v *Vault) Resolve(virtualPath string) (*PathInfo, error) {
	return v.resolve(virtualPath, 0)
}

func (v *Vault) root() string { return v.shardPath("") }

func (v *Vault) resolve(virtualPath string, hops int) (*PathInfo, error) {
	if hops > v.opt.SymlinkHopLimit {
		return nil, &SymlinkLoopError{Path: virtualPath, Hops: hops}
	}

	info := &PathInfo{Path: virtualPath}
	clean := strings.Trim(virtualPath, "/")
	if clean == "" {
		info.Path = "/"
		info.RealDir = v.root()
		info.IsDir = true
		info.Exists = true
		return info, nil
	}

	parts := strings.Split(clean, "/")
	dirID := ""
	var entryDir, encrypted string
	var isLong bool

	for idx, part := range parts {
		shard := v.shardPath(dirID)
		info.RealDir = shard

		enc, err := v.crypt.encodeName(part, dirID, v.config.shorteningThreshold(), v.opt.NamePolicy)
		if err != nil {
			return nil, err
		}
		isLong, encrypted = enc.long, enc.encrypted
		entryDir = filepath.Join(shard, enc.entryName())
		info.RealPath = entryDir
		diridfn := filepath.Join(entryDir, dirIDEntry)

		exists, err := pathExists(entryDir)
		if err != nil {
			return nil, err
		}
		if !exists {
			info.Exists = false
			info.Path = "/" + strings.Join(parts[:idx+1], "/")
			info.DirID = dirID
			if isLong {
				info.LongName = encrypted
			}
			return info, nil
		}

		childID, err := v.lookupDirID(diridfn)
		if err != nil {
			return nil, err
		}

		if idx == len(parts)-1 {
			// A directory gets its own id; a file keeps its parent's.
			info.DirID = dirID
			if childID != "" {
				info.DirID = childID
			}
			return v.finishResolve(info, entryDir, diridfn, childID, isLong, encrypted, virtualPath, hops)
		}
		dirID = childID
		info.DirID = dirID
	}
	return info, nil
}

func (v *Vault) finishResolve(info *PathInfo, entryDir, diridfn, dirID string, isLong bool, encrypted, virtualPath string, hops int) (*PathInfo, error) {
	info.Exists = true
	if isLong {
		info.LongName = encrypted
	}

	isDirEntry, err := pathExists(diridfn)
	if err != nil {
		return nil, err
	}
	if isDirEntry {
		info.IsDir = true
		info.RealDir = v.shardPath(dirID)
	}

	sl := filepath.Join(entryDir, symlinkEntry)
	if ok, err := pathExists(sl); err != nil {
		return nil, err
	} else if ok {
		info.SymlinkC9 = sl
		target, err := v.resolveSymlinkTarget(virtualPath, sl)
		if err != nil {
			return nil, err
		}
		info.PointsTo = target
		// resolve only errors on a real SymlinkLoopError or I/O failure; a
		// target that simply doesn't exist comes back as Exists=false, not
		// an error, so any err here must propagate rather than be eaten.
		resolved, err := v.resolve(target, hops+1)
		if err != nil {
			return nil, err
		}
		if resolved.Exists {
			info.DirID = resolved.DirID
			info.IsDir = resolved.IsDir
			info.RealDir = resolved.RealDir
		}
	}
	return info, nil
}

// resolveSymlinkTarget decrypts symlinkPath's content and, if the
// stored target is relative, rewrites it relative to virtualPath's
// directory (spec §4.5, mirroring resolveSymlink's relative-path
// handling).
func (v *Vault) resolveSymlinkTarget(virtualPath, symlinkPath string) (string, error) {
	data, err := v.readEncryptedBlob(symlinkPath)
	if err != nil {
		return "", fmt.Errorf("vault: reading symlink %q: %w", symlinkPath, err)
	}
	target := string(data)
	if !strings.HasPrefix(target, "/") {
		target = path.Clean(path.Join(path.Dir(virtualPath), target))
	}
	return target, nil
}

// lookupDirID returns the plaintext directory id stored in a dir.c9r
// file, consulting (and populating) the vault's cache first. dir.c9r is
// never encrypted: only its dirid.c9r recovery backup is (spec §4.2).
func (v *Vault) lookupDirID(diridfn string) (string, error) {
	v.cacheMu.RLock()
	id, ok := v.dirIDCache[diridfn]
	v.cacheMu.RUnlock()
	if ok {
		return id, nil
	}

	data, err := os.ReadFile(diridfn)
	if err != nil {
		if notExist(err) {
			return "", nil
		}
		return "", ioErr("read", diridfn, err)
	}

	v.cacheMu.Lock()
	v.dirIDCache[diridfn] = string(data)
	v.cacheMu.Unlock()
	return string(data), nil
}

func (v *Vault) invalidateDirID(diridfn string) {
	v.cacheMu.Lock()
	delete(v.dirIDCache, diridfn)
	v.cacheMu.Unlock()
}

func pathExists(p string) (bool, error) {
	_, err := os.Stat(p)
	if err == nil {
		return true, nil
	}
	if notExist(err) {
		return false, nil
	}
	return false, err
}

// notExist reports whether err means the path is absent, including the
// case where one of its parents is a regular file (ENOTDIR), as when
// looking for dir.c9r or symlink.c9r inside a plain "<enc>.c9r" file.
func notExist(err error) bool {
	return os.IsNotExist(err) || errors.Is(err, syscall.ENOTDIR)
}
