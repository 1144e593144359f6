package vault

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// fileWriteCloser pairs a contentWriter with the underlying file handle
// it streams into, so callers get a single Close.
type fileWriteCloser struct {
	w *contentWriter
	f *os.File
}

func (c *fileWriteCloser) Write(p []byte) (int, error) { return c.w.Write(p) }

func (c *fileWriteCloser) Close() error {
	if err := c.w.Close(); err != nil {
		c.f.Close()
		return err
	}
	return c.f.Close()
}

type fileReadCloser struct {
	r *contentReader
	f *os.File
}

func (c *fileReadCloser) Read(p []byte) (int, error) { return c.r.Read(p) }
func (c *fileReadCloser) Close() error                { return c.f.Close() }

func parentOf(virtualPath string) string {
	p := path.Dir(virtualPath)
	if p == "." {
		return "/"
	}
	return p
}

// CreateDir creates virtualPath and any missing ancestors, assigning a
// fresh random dirId to each newly created directory (spec §4.2, §4.5,
// mirroring the reference's mkdir loop).
func (v *Vault) CreateDir(virtualPath string) (*PathInfo, error) {
	for {
		info, err := v.Resolve(virtualPath)
		if err != nil {
			return nil, err
		}
		if info.Exists {
			if !info.IsDir {
				return nil, fmt.Errorf("%w: %s", ErrNotDirectory, info.Path)
			}
			return info, nil
		}
		if err := v.createDirEntry(info); err != nil {
			return nil, err
		}
	}
}

func (v *Vault) createDirEntry(info *PathInfo) error {
	if err := os.Mkdir(info.RealPath, 0o700); err != nil {
		return ioErr("mkdir", info.RealPath, err)
	}
	newID := uuid.NewString()
	dirC9 := filepath.Join(info.RealPath, dirIDEntry)
	if err := os.WriteFile(dirC9, []byte(newID), 0o600); err != nil {
		return ioErr("write", dirC9, err)
	}
	if info.LongName != "" {
		nameC9 := filepath.Join(info.RealPath, nameSidecar)
		if err := os.WriteFile(nameC9, []byte(info.LongName), 0o600); err != nil {
			return ioErr("write", nameC9, err)
		}
	}
	shard := v.shardPath(newID)
	if err := os.MkdirAll(shard, 0o700); err != nil {
		return ioErr("mkdir", shard, err)
	}
	return v.writeEncryptedBlob(filepath.Join(shard, dirIDBackup), []byte(newID))
}

// Create creates an empty encrypted file at virtualPath (its parent
// directories are created as needed) and returns a writer for its
// content. The caller must Close the writer to flush the final chunk.
func (v *Vault) Create(virtualPath string) (io.WriteCloser, error) {
	if _, err := v.CreateDir(parentOf(virtualPath)); err != nil {
		return nil, err
	}
	info, err := v.Resolve(virtualPath)
	if err != nil {
		return nil, err
	}
	if info.Exists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, virtualPath)
	}

	if info.LongName != "" {
		if err := os.Mkdir(info.RealPath, 0o700); err != nil {
			return nil, ioErr("mkdir", info.RealPath, err)
		}
		if err := os.WriteFile(info.nameC9(), []byte(info.LongName), 0o600); err != nil {
			return nil, ioErr("write", info.nameC9(), err)
		}
	}

	f, err := os.OpenFile(info.contentsC9(), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, ioErr("create", info.contentsC9(), err)
	}
	w, err := v.crypt.newWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &fileWriteCloser{w: w, f: f}, nil
}

// Open resolves virtualPath (following a symlink if it is one) and
// returns a reader over its decrypted content, along with the resolved
// PathInfo.
func (v *Vault) Open(virtualPath string) (io.ReadCloser, *PathInfo, error) {
	info, err := v.Resolve(virtualPath)
	if err != nil {
		return nil, nil, err
	}
	if !info.Exists {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, virtualPath)
	}
	for info.PointsTo != "" {
		info, err = v.Resolve(info.PointsTo)
		if err != nil {
			return nil, nil, err
		}
	}
	if info.IsDir {
		return nil, nil, fmt.Errorf("%w: %s", ErrIsDirectory, virtualPath)
	}

	f, err := os.Open(info.contentsC9())
	if err != nil {
		return nil, nil, ioErr("open", info.contentsC9(), err)
	}
	r, err := v.crypt.newReader(f, !v.opt.Permissive, func(chunkNr uint64, decErr error) {
		v.opt.Logger.Warn("damaged content chunk", "path", virtualPath, "chunk", chunkNr, "error", decErr)
	})
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return &fileReadCloser{r: r, f: f}, info, nil
}

// Remove deletes a file or symlink at virtualPath. Use RemoveDir for
// empty directories and RemoveTree for whole subtrees.
func (v *Vault) Remove(virtualPath string) error {
	info, err := v.Resolve(virtualPath)
	if err != nil {
		return err
	}
	if !info.Exists {
		return fmt.Errorf("%w: %s", ErrNotFound, virtualPath)
	}
	if info.IsDir && info.SymlinkC9 == "" {
		return fmt.Errorf("%w: %s", ErrIsDirectory, virtualPath)
	}

	if info.SymlinkC9 != "" {
		if info.IsDir {
			legacyDirC9 := filepath.Join(info.RealPath, dirIDEntry)
			if err := os.Remove(legacyDirC9); err != nil && !os.IsNotExist(err) {
				return ioErr("remove", legacyDirC9, err)
			}
		}
		if err := os.Remove(info.SymlinkC9); err != nil {
			return ioErr("remove", info.SymlinkC9, err)
		}
		if info.LongName != "" {
			if err := os.Remove(info.nameC9()); err != nil {
				return ioErr("remove", info.nameC9(), err)
			}
		}
		return ioErr("remove", info.RealPath, os.Remove(info.RealPath))
	}

	if info.LongName != "" {
		if err := os.Remove(info.nameC9()); err != nil {
			return ioErr("remove", info.nameC9(), err)
		}
		if err := os.Remove(info.contentsC9()); err != nil {
			return ioErr("remove", info.contentsC9(), err)
		}
		return ioErr("remove", info.RealPath, os.Remove(info.RealPath))
	}
	return ioErr("remove", info.RealPath, os.Remove(info.RealPath))
}

// RemoveDir deletes an empty directory at virtualPath (its dirid.c9r
// recovery backup does not count as content).
func (v *Vault) RemoveDir(virtualPath string) error {
	info, err := v.Resolve(virtualPath)
	if err != nil {
		return err
	}
	if !info.Exists {
		return fmt.Errorf("%w: %s", ErrNotFound, virtualPath)
	}
	if !info.IsDir {
		return fmt.Errorf("%w: %s", ErrNotDirectory, virtualPath)
	}

	entries, err := os.ReadDir(info.RealDir)
	if err != nil {
		return ioErr("readdir", info.RealDir, err)
	}
	for _, e := range entries {
		if e.Name() != dirIDBackup {
			return fmt.Errorf("%w: %s", ErrNotEmpty, virtualPath)
		}
	}

	backup := filepath.Join(info.RealDir, dirIDBackup)
	if ok, _ := pathExists(backup); ok {
		if err := os.Remove(backup); err != nil {
			return ioErr("remove", backup, err)
		}
	}
	if err := os.Remove(info.RealDir); err != nil {
		return ioErr("remove", info.RealDir, err)
	}
	_ = os.Remove(filepath.Dir(info.RealDir)) // best-effort: prune the now-empty 2-char shard prefix

	diridfn := filepath.Join(info.RealPath, dirIDEntry)
	if info.LongName != "" {
		if err := os.Remove(info.nameC9()); err != nil {
			return ioErr("remove", info.nameC9(), err)
		}
	}
	if err := os.Remove(diridfn); err != nil {
		return ioErr("remove", diridfn, err)
	}
	if err := os.Remove(info.RealPath); err != nil {
		return ioErr("remove", info.RealPath, err)
	}
	v.invalidateDirID(diridfn)
	return nil
}

// RemoveTree deletes virtualPath and everything beneath it: files
// first, then directories bottom-up, then virtualPath itself.
func (v *Vault) RemoveTree(virtualPath string) error {
	info, err := v.Resolve(virtualPath)
	if err != nil {
		return err
	}
	if !info.Exists {
		return fmt.Errorf("%w: %s", ErrNotFound, virtualPath)
	}
	if !info.IsDir {
		return fmt.Errorf("%w: %s", ErrNotDirectory, virtualPath)
	}

	var dirs []string
	err = v.Walk(virtualPath, func(root string, childDirs, files []string) error {
		for _, f := range files {
			if err := v.Remove(path.Join(root, f)); err != nil {
				return err
			}
		}
		for _, d := range childDirs {
			dirs = append(dirs, path.Join(root, d))
		}
		return nil
	})
	if err != nil {
		return err
	}
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := v.RemoveDir(dirs[i]); err != nil {
			return err
		}
	}
	return v.RemoveDir(virtualPath)
}

// Move renames or relocates src to dst, matching the reference's mv
// semantics: moving onto an existing directory nests src under it by
// basename; moving onto an existing file is rejected (spec §4.5).
func (v *Vault) Move(src, dst string) error {
	a, err := v.Resolve(src)
	if err != nil {
		return err
	}
	if !a.Exists {
		return fmt.Errorf("%w: %s", ErrNotFound, src)
	}
	b, err := v.Resolve(dst)
	if err != nil {
		return err
	}
	if a.RealPath == b.RealPath {
		return fmt.Errorf("vault: cannot move %q onto itself", src)
	}

	if b.Exists {
		if !b.IsDir {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, dst)
		}
		target := path.Join(dst, path.Base(src))
		c, err := v.Resolve(target)
		if err != nil {
			return err
		}
		if c.Exists {
			if !c.IsDir {
				return fmt.Errorf("%w: %s", ErrAlreadyExists, target)
			}
			entries, err := os.ReadDir(c.RealDir)
			if err != nil {
				return ioErr("readdir", c.RealDir, err)
			}
			for _, e := range entries {
				if e.Name() != dirIDBackup {
					return fmt.Errorf("%w: %s", ErrNotEmpty, target)
				}
			}
		}
		if err := os.Rename(a.RealPath, c.RealPath); err != nil {
			return ioErr("rename", a.RealPath, err)
		}
		if c.LongName != "" {
			if err := os.WriteFile(c.nameC9(), []byte(c.LongName), 0o600); err != nil {
				return ioErr("write", c.nameC9(), err)
			}
		}
		return nil
	}

	if a.LongName != "" && !a.IsDir {
		if err := os.Rename(a.contentsC9(), b.RealPath); err != nil {
			return ioErr("rename", a.contentsC9(), err)
		}
		if err := os.Remove(a.nameC9()); err != nil {
			return ioErr("remove", a.nameC9(), err)
		}
		return ioErr("remove", a.RealPath, os.Remove(a.RealPath))
	}
	if a.LongName != "" {
		if err := os.Remove(a.nameC9()); err != nil {
			return ioErr("remove", a.nameC9(), err)
		}
	}
	if err := os.Rename(a.RealPath, b.RealPath); err != nil {
		return ioErr("rename", a.RealPath, err)
	}
	return nil
}

// Link creates a symbolic link at linkPath pointing to target. target
// is stored verbatim (relative or absolute) and is not required to
// exist. legacyFormat additionally copies the target's dir.c9r into the
// link's own entry, which some older Cryptomator clients require to
// recognize a directory symlink.
func (v *Vault) Link(target, linkPath string, legacyFormat bool) error {
	a, err := v.Resolve(linkPath)
	if err != nil {
		return err
	}
	if ok, _ := pathExists(a.RealPath); !ok {
		if err := os.Mkdir(a.RealPath, 0o700); err != nil {
			return ioErr("mkdir", a.RealPath, err)
		}
	}
	if a.LongName != "" {
		if err := os.WriteFile(a.nameC9(), []byte(a.LongName), 0o600); err != nil {
			return ioErr("write", a.nameC9(), err)
		}
	}

	if legacyFormat {
		b, err := v.Resolve(target)
		if err != nil {
			return err
		}
		if b.IsDir {
			src := filepath.Join(b.RealPath, dirIDEntry)
			data, err := os.ReadFile(src)
			if err != nil {
				return ioErr("read", src, err)
			}
			dst := filepath.Join(a.RealPath, dirIDEntry)
			if err := os.WriteFile(dst, data, 0o600); err != nil {
				return ioErr("write", dst, err)
			}
		}
	}

	symC9 := filepath.Join(a.RealPath, symlinkEntry)
	f, err := os.OpenFile(symC9, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return ioErr("create", symC9, err)
	}
	w, err := v.crypt.newWriter(f)
	if err != nil {
		f.Close()
		return err
	}
	if _, err := w.Write([]byte(target)); err != nil {
		f.Close()
		return err
	}
	if err := w.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// decodeEntries lists and decrypts the immediate children of a shard
// directory, classifying each as a directory or file (a directory entry
// holding symlink.c9r is reported as a file, matching how it is listed
// and traversed elsewhere).
func (v *Vault) decodeEntries(realDir, dirID string) (dirs, files []string, err error) {
	entries, err := os.ReadDir(realDir)
	if err != nil {
		return nil, nil, ioErr("readdir", realDir, err)
	}

	for _, e := range entries {
		if e.Name() == dirIDBackup {
			continue
		}
		isDir := e.IsDir()
		var plain string

		switch {
		case strings.HasSuffix(e.Name(), sidecarSuffix):
			nameFile := filepath.Join(realDir, e.Name(), nameSidecar)
			raw, rerr := os.ReadFile(nameFile)
			if rerr != nil {
				v.opt.Logger.Warn("skipping entry with unreadable long name", "path", nameFile, "error", rerr)
				continue
			}
			plain, rerr = v.crypt.decryptName(string(raw), dirID)
			if rerr != nil {
				v.opt.Logger.Warn("skipping entry with undecryptable name", "path", nameFile, "error", rerr)
				continue
			}
			if ok, _ := pathExists(filepath.Join(realDir, e.Name(), contentsEntry)); ok {
				isDir = false
			}
		case strings.HasSuffix(e.Name(), entrySuffix):
			enc := strings.TrimSuffix(e.Name(), entrySuffix)
			var derr error
			plain, derr = v.crypt.decryptName(enc, dirID)
			if derr != nil {
				v.opt.Logger.Warn("skipping entry with undecryptable name", "path", e.Name(), "error", derr)
				continue
			}
		default:
			continue
		}

		if isDir {
			sl := filepath.Join(realDir, e.Name(), symlinkEntry)
			if ok, _ := pathExists(sl); ok {
				isDir = false
			}
		}

		if isDir {
			dirs = append(dirs, plain)
		} else {
			files = append(files, plain)
		}
	}
	return dirs, files, nil
}

// Walk traverses the virtual directory tree rooted at virtualPath,
// invoking fn once per directory (including virtualPath itself) with
// its decrypted child directory and file names, in the (root, dirs,
// files) shape of Python's os.walk (spec §4.5).
func (v *Vault) Walk(virtualPath string, fn func(root string, dirs, files []string) error) error {
	info, err := v.Resolve(virtualPath)
	if err != nil {
		return err
	}
	if !info.Exists || !info.IsDir {
		return fmt.Errorf("%w: %s", ErrNotDirectory, virtualPath)
	}
	return v.walk(virtualPath, info.RealDir, info.DirID, fn)
}

func (v *Vault) walk(root, realDir, dirID string, fn func(string, []string, []string) error) error {
	dirs, files, err := v.decodeEntries(realDir, dirID)
	if err != nil {
		return err
	}
	if err := fn(root, dirs, files); err != nil {
		return err
	}
	for _, d := range dirs {
		sub := path.Join(root, d)
		child, err := v.Resolve(sub)
		if err != nil {
			return err
		}
		if err := v.walk(sub, child.RealDir, child.DirID, fn); err != nil {
			return err
		}
	}
	return nil
}

// Glob expands a vault-virtual path pattern containing shell wildcards
// ('*', '?', '[...]') into the matching virtual paths, one path
// component at a time (spec §4.5, mirroring the reference's glob).
func (v *Vault) Glob(pattern string) ([]string, error) {
	base, preds := splitGlobBase(pattern)
	info, err := v.Resolve(base)
	if err != nil {
		return nil, err
	}
	if len(preds) == 0 {
		if info.Exists {
			return []string{base}, nil
		}
		return nil, nil
	}
	var out []string
	if err := v.globWalk(base, info, preds, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func splitGlobBase(p string) (string, []string) {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return "/", nil
	}
	segs := strings.Split(trimmed, "/")
	i := 0
	for i < len(segs) && !hasWildcard(segs[i]) {
		i++
	}
	base := "/" + strings.Join(segs[:i], "/")
	return base, segs[i:]
}

func hasWildcard(s string) bool { return strings.ContainsAny(s, "*?[") }

func (v *Vault) globWalk(root string, info *PathInfo, preds []string, out *[]string) error {
	if !info.Exists || !info.IsDir {
		return nil
	}
	dirs, files, err := v.decodeEntries(info.RealDir, info.DirID)
	if err != nil {
		return err
	}

	pred, rest := preds[0], preds[1:]
	for _, d := range dirs {
		ok, err := path.Match(pred, d)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		sub := path.Join(root, d)
		if len(rest) == 0 {
			*out = append(*out, sub)
			continue
		}
		child, err := v.Resolve(sub)
		if err != nil {
			return err
		}
		if err := v.globWalk(sub, child, rest, out); err != nil {
			return err
		}
	}
	if len(rest) == 0 {
		for _, f := range files {
			ok, err := path.Match(pred, f)
			if err != nil {
				return err
			}
			if ok {
				*out = append(*out, path.Join(root, f))
			}
		}
	}
	return nil
}

// ListEntry is one row of a directory listing (spec §4.5, mirroring the
// reference's ls table).
type ListEntry struct {
	Dir           string
	Name          string
	IsFile        bool
	Size          int64
	ModTime       time.Time
	Ext           string
	SymlinkTarget string
}

type entryStat struct {
	size    int64
	modTime time.Time
}

func (v *Vault) statEntry(info *PathInfo) (entryStat, error) {
	target := info.contentsC9()
	if info.SymlinkC9 != "" {
		target = info.SymlinkC9
	}
	st, err := os.Stat(target)
	if err != nil {
		return entryStat{}, ioErr("stat", target, err)
	}
	if info.IsDir {
		return entryStat{modTime: st.ModTime()}, nil
	}
	return entryStat{size: v.crypt.decryptedFileSize(st.Size()), modTime: st.ModTime()}, nil
}

// Stat returns the underlying encrypted file's os.FileInfo along with
// its decrypted plaintext size.
func (v *Vault) Stat(virtualPath string) (os.FileInfo, int64, error) {
	info, err := v.Resolve(virtualPath)
	if err != nil {
		return nil, 0, err
	}
	if !info.Exists {
		return nil, 0, fmt.Errorf("%w: %s", ErrNotFound, virtualPath)
	}
	target := info.contentsC9()
	if info.SymlinkC9 != "" {
		target = info.SymlinkC9
	}
	st, err := os.Stat(target)
	if err != nil {
		return nil, 0, ioErr("stat", target, err)
	}
	return st, v.crypt.decryptedFileSize(st.Size()), nil
}

// List lists virtualPath's children (or, if virtualPath names a file,
// that single entry), descending recursively when recursive is true
// (spec §4.5). A symlink is followed first: a link to a directory lists
// the target directory's children, a link to a file lists the target
// file under the target's name.
func (v *Vault) List(virtualPath string, recursive bool) ([]ListEntry, error) {
	info, err := v.Resolve(virtualPath)
	if err != nil {
		return nil, err
	}
	if !info.Exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, virtualPath)
	}

	target := virtualPath
	if info.PointsTo != "" {
		target = info.PointsTo
		info, err = v.Resolve(target)
		if err != nil {
			return nil, err
		}
	}

	if !info.IsDir {
		st, err := v.statEntry(info)
		if err != nil {
			return nil, err
		}
		return []ListEntry{{
			Dir: parentOf(target), Name: path.Base(target), IsFile: true,
			Size: st.size, ModTime: st.modTime, Ext: strings.ToLower(path.Ext(target)),
		}}, nil
	}

	var out []ListEntry
	walkFn := func(root string, dirs, files []string) error {
		for _, d := range dirs {
			child, err := v.Resolve(path.Join(root, d))
			if err != nil {
				return err
			}
			st, err := v.statEntry(child)
			if err != nil {
				return err
			}
			out = append(out, ListEntry{Dir: root, Name: d, IsFile: false, ModTime: st.modTime})
		}
		for _, f := range files {
			child, err := v.Resolve(path.Join(root, f))
			if err != nil {
				return err
			}
			st, err := v.statEntry(child)
			if err != nil {
				return err
			}
			out = append(out, ListEntry{
				Dir: root, Name: f, IsFile: true, Size: st.size, ModTime: st.modTime,
				Ext: strings.ToLower(path.Ext(f)), SymlinkTarget: child.PointsTo,
			})
		}
		return nil
	}

	if !recursive {
		dirs, files, derr := v.decodeEntries(info.RealDir, info.DirID)
		if derr != nil {
			return nil, derr
		}
		return out, walkFn(target, dirs, files)
	}
	return out, v.walk(target, info.RealDir, info.DirID, walkFn)
}

// ExportDirectoryIDs archives every plaintext dir.c9r file in the vault,
// preserving its relative path, into a ZIP stream written to w. This is
// the vault's only defense against a corrupted or deleted dir.c9r: the
// dirid.c9r backups let individual shards recover their own id, but
// only this export lets an operator restore the id *at its original
// tree position* (spec §4.2, mirroring the reference's backupDirIds).
func (v *Vault) ExportDirectoryIDs(w io.Writer) error {
	zw := zip.NewWriter(w)
	walkErr := filepath.Walk(v.dir, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() || fi.Name() != dirIDEntry {
			return nil
		}
		rel, err := filepath.Rel(v.dir, p)
		if err != nil {
			return err
		}
		entry, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		_, err = entry.Write(data)
		return err
	})
	if walkErr != nil {
		zw.Close()
		return walkErr
	}
	return zw.Close()
}
