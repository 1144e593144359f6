package vault

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVault(t *testing.T) (*Vault, string) {
	t.Helper()
	dir := t.TempDir()
	v, err := Init(dir, "pass", Options{})
	require.NoError(t, err)
	t.Cleanup(func() { v.Close() })
	return v, dir
}

// Scenario 1 (spec §8): init + open, including wrong-password rejection and
// the root shard's dirid.c9r backup shape.
func TestInitAndOpen(t *testing.T) {
	v, dir := newTestVault(t)

	token, err := os.ReadFile(filepath.Join(dir, ConfigFileName))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(token), "."))

	backup := filepath.Join(v.shardPath(""), dirIDBackup)
	fi, err := os.Stat(backup)
	require.NoError(t, err)
	assert.EqualValues(t, 68, fi.Size())

	v2, err := Open(dir, "pass", Options{})
	require.NoError(t, err)
	v2.Close()

	_, err = Open(dir, "Pass", Options{})
	assert.True(t, errors.Is(err, ErrBadPassword))
}

// Scenario 2 (spec §8): short-name round trip with an exact byte size.
func TestShortNameRoundTrip(t *testing.T) {
	v, _ := newTestVault(t)

	w, err := v.Create("/a.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	info, err := v.Resolve("/a.txt")
	require.NoError(t, err)
	require.True(t, info.Exists)
	assert.True(t, strings.HasSuffix(info.RealPath, entrySuffix))

	fi, err := os.Stat(info.RealPath)
	require.NoError(t, err)
	// 68-byte header + 12-byte nonce + 5-byte ciphertext + 16-byte tag.
	assert.EqualValues(t, 101, fi.Size())

	r, _, err := v.Open("/a.txt")
	require.NoError(t, err)
	defer r.Close()
	buf := make([]byte, 5)
	_, err = r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))
}

// Scenario 3 (spec §8): a long name is stored as a .c9s sidecar and
// collapses to a plain .c9r entry once renamed to something short.
func TestLongNameSidecarThenRenameToShort(t *testing.T) {
	v, _ := newTestVault(t)

	longName := "/" + strings.Repeat("a", 250)
	w, err := v.Create(longName)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	info, err := v.Resolve(longName)
	require.NoError(t, err)
	require.True(t, info.Exists)
	assert.True(t, strings.HasSuffix(info.RealPath, sidecarSuffix))
	assert.True(t, isDir(info.RealPath))
	assert.FileExists(t, filepath.Join(info.RealPath, nameSidecar))
	assert.FileExists(t, filepath.Join(info.RealPath, contentsEntry))

	require.NoError(t, v.Move(longName, "/short.txt"))

	_, statErr := os.Stat(info.RealPath)
	assert.True(t, os.IsNotExist(statErr))

	shortInfo, err := v.Resolve("/short.txt")
	require.NoError(t, err)
	require.True(t, shortInfo.Exists)
	assert.True(t, strings.HasSuffix(shortInfo.RealPath, entrySuffix))
}

func isDir(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}

// Scenario 4 (spec §8): renaming a directory does not touch its
// children's on-disk ciphertext.
func TestDirRenamePreservesChildContent(t *testing.T) {
	v, _ := newTestVault(t)

	_, err := v.CreateDir("/dir")
	require.NoError(t, err)
	w, err := v.Create("/dir/x")
	require.NoError(t, err)
	payload := make([]byte, 100)
	for i := range payload {
		payload[i] = byte(i)
	}
	_, err = w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	childBefore, err := v.Resolve("/dir/x")
	require.NoError(t, err)
	before, err := os.ReadFile(childBefore.RealPath)
	require.NoError(t, err)

	require.NoError(t, v.Move("/dir", "/other"))

	childAfter, err := v.Resolve("/other/x")
	require.NoError(t, err)
	after, err := os.ReadFile(childAfter.RealPath)
	require.NoError(t, err)

	assert.Equal(t, before, after)
	assert.Equal(t, filepath.Base(childBefore.RealPath), filepath.Base(childAfter.RealPath))
}

// Scenario 5 (spec §8): symlink resolution, including a broken-link case.
func TestSymlinkResolutionAndBrokenLink(t *testing.T) {
	v, _ := newTestVault(t)

	_, err := v.CreateDir("/tgt")
	require.NoError(t, err)
	w, err := v.Create("/tgt/f")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NoError(t, v.Link("/tgt", "/lnk", false))

	entries, err := v.List("/lnk", false)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "f", entries[0].Name)

	lnkInfo, err := v.Resolve("/lnk")
	require.NoError(t, err)
	require.NoError(t, v.writeEncryptedBlob(lnkInfo.SymlinkC9, []byte("/missing")))

	broken, err := v.Resolve("/lnk")
	require.NoError(t, err)
	assert.True(t, broken.Exists)
	assert.False(t, broken.IsDir)
	assert.Equal(t, "/missing", broken.PointsTo)
}

// Scenario 6 (spec §8): deleting dir.c9r still lets the dirid.c9r backup
// recover the identifier.
func TestDirIDRecoveryFromBackup(t *testing.T) {
	v, _ := newTestVault(t)

	_, err := v.CreateDir("/" + strings.Repeat("b", 250))
	require.NoError(t, err)

	info, err := v.Resolve("/" + strings.Repeat("b", 250))
	require.NoError(t, err)
	require.NotEmpty(t, info.DirID)

	require.NoError(t, os.Remove(filepath.Join(info.RealPath, dirIDEntry)))

	backup := filepath.Join(v.shardPath(info.DirID), dirIDBackup)
	recovered, err := v.readEncryptedBlob(backup)
	require.NoError(t, err)
	assert.Equal(t, info.DirID, string(recovered))
}

func TestChangePasswordPreservesKeys(t *testing.T) {
	v, dir := newTestVault(t)
	before := v.MasterKey()

	require.NoError(t, v.ChangePassword("new-pass"))

	v2, err := Open(dir, "new-pass", Options{})
	require.NoError(t, err)
	defer v2.Close()
	assert.Equal(t, before, v2.MasterKey())

	_, err = Open(dir, "pass", Options{})
	assert.True(t, errors.Is(err, ErrBadPassword))
}
