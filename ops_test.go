package vault

import (
	"archive/zip"
	"bytes"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDirIdempotent(t *testing.T) {
	v, _ := newTestVault(t)

	info1, err := v.CreateDir("/a/b/c")
	require.NoError(t, err)

	info2, err := v.CreateDir("/a/b/c")
	require.NoError(t, err)
	assert.Equal(t, info1.RealPath, info2.RealPath)
}

func TestCreateDirOnExistingFileFails(t *testing.T) {
	v, _ := newTestVault(t)

	w, err := v.Create("/f")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = v.CreateDir("/f")
	assert.True(t, errors.Is(err, ErrNotDirectory))
}

func TestRemoveDirRequiresEmpty(t *testing.T) {
	v, _ := newTestVault(t)

	_, err := v.CreateDir("/dir")
	require.NoError(t, err)
	w, err := v.Create("/dir/f")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	err = v.RemoveDir("/dir")
	assert.True(t, errors.Is(err, ErrNotEmpty))

	require.NoError(t, v.Remove("/dir/f"))
	assert.NoError(t, v.RemoveDir("/dir"))

	_, err = v.Resolve("/dir")
	require.NoError(t, err)
}

func TestRemoveTreeDeletesEverything(t *testing.T) {
	v, _ := newTestVault(t)

	_, err := v.CreateDir("/a/b")
	require.NoError(t, err)
	w, err := v.Create("/a/b/f")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	w2, err := v.Create("/a/g")
	require.NoError(t, err)
	require.NoError(t, w2.Close())

	require.NoError(t, v.RemoveTree("/a"))

	info, err := v.Resolve("/a")
	require.NoError(t, err)
	assert.False(t, info.Exists)
}

func TestMoveOntoDirectoryNests(t *testing.T) {
	v, _ := newTestVault(t)

	_, err := v.CreateDir("/src")
	require.NoError(t, err)
	w, err := v.Create("/src/file.txt")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = v.CreateDir("/dst")
	require.NoError(t, err)

	require.NoError(t, v.Move("/src/file.txt", "/dst"))

	info, err := v.Resolve("/dst/file.txt")
	require.NoError(t, err)
	assert.True(t, info.Exists)

	info, err = v.Resolve("/src/file.txt")
	require.NoError(t, err)
	assert.False(t, info.Exists)
}

func TestMoveOntoExistingFileRejected(t *testing.T) {
	v, _ := newTestVault(t)

	w1, err := v.Create("/a")
	require.NoError(t, err)
	require.NoError(t, w1.Close())
	w2, err := v.Create("/b")
	require.NoError(t, err)
	require.NoError(t, w2.Close())

	err = v.Move("/a", "/b")
	assert.True(t, errors.Is(err, ErrAlreadyExists))
}

func TestGlobMatchesWildcards(t *testing.T) {
	v, _ := newTestVault(t)

	_, err := v.CreateDir("/pics")
	require.NoError(t, err)
	for _, name := range []string{"a.jpg", "b.jpg", "c.png"} {
		w, err := v.Create("/pics/" + name)
		require.NoError(t, err)
		require.NoError(t, w.Close())
	}

	matches, err := v.Glob("/pics/*.jpg")
	require.NoError(t, err)
	sort.Strings(matches)
	assert.Equal(t, []string{"/pics/a.jpg", "/pics/b.jpg"}, matches)
}

func TestWalkVisitsNestedDirectories(t *testing.T) {
	v, _ := newTestVault(t)

	_, err := v.CreateDir("/x/y")
	require.NoError(t, err)
	w, err := v.Create("/x/y/z.txt")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	var visited []string
	err = v.Walk("/x", func(root string, dirs, files []string) error {
		visited = append(visited, root)
		return nil
	})
	require.NoError(t, err)
	assert.Contains(t, visited, "/x")
	assert.Contains(t, visited, "/x/y")
}

func TestSymlinkHopLimitRaisesLoopError(t *testing.T) {
	v, _ := newTestVault(t)
	require.NoError(t, v.Link("/a", "/a", false))

	_, err := v.Resolve("/a")
	var loopErr *SymlinkLoopError
	assert.ErrorAs(t, err, &loopErr)
}

func TestExportDirectoryIDsProducesValidZip(t *testing.T) {
	v, _ := newTestVault(t)

	_, err := v.CreateDir("/one")
	require.NoError(t, err)
	_, err = v.CreateDir("/one/two")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, v.ExportDirectoryIDs(&buf))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(zr.File), 2)
	for _, f := range zr.File {
		assert.Equal(t, dirIDEntry, pathBase(f.Name))
	}
}

func pathBase(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[i+1:]
		}
	}
	return p
}
