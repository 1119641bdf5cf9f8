package ftputil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHost(t *testing.T) (*Host, *fakeFS) {
	t.Helper()
	fs := newFakeFS()
	h, err := NewHost(context.Background(), fakeFactory(fs))
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h, fs
}

func TestMkdirListdirRmdir(t *testing.T) {
	h, _ := newTestHost(t)

	require.NoError(t, h.Mkdir("/_t_"))
	names, err := h.Listdir("/")
	require.NoError(t, err)
	assert.Contains(t, names, "_t_")

	require.NoError(t, h.Rmdir("/_t_"))
	names, err = h.Listdir("/")
	require.NoError(t, err)
	assert.NotContains(t, names, "_t_")
}

func TestRmdirNonEmpty(t *testing.T) {
	h, _ := newTestHost(t)
	require.NoError(t, h.Mkdir("/_t_"))

	f, err := h.File("/_t_/f", "w")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	err = h.Rmdir("/_t_")
	require.Error(t, err)
	var fe *Error
	require.True(t, errAs(err, &fe))
	assert.Equal(t, KindPermanent, fe.Kind)

	require.NoError(t, h.Unlink("/_t_/f"))
	require.NoError(t, h.Rmdir("/_t_"))
}

func TestRemoveRefusesDirectory(t *testing.T) {
	h, _ := newTestHost(t)
	require.NoError(t, h.Mkdir("/_t_"))
	err := h.Remove("/_t_")
	require.Error(t, err)
}

func TestRename(t *testing.T) {
	h, _ := newTestHost(t)
	f, err := h.File("/a", "w")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, h.Rename("/a", "/b"))
	assert.False(t, h.Exists("/a"))
	assert.True(t, h.Exists("/b"))
}

func TestMakedirsToleratesExistingPrefix(t *testing.T) {
	h, _ := newTestHost(t)
	require.NoError(t, h.Mkdir("/a"))
	require.NoError(t, h.Makedirs("/a/b/c"))
	assert.True(t, h.IsDir("/a/b/c"))
}

func TestIsDirIsFileIsLinkOnMissingPath(t *testing.T) {
	h, _ := newTestHost(t)
	assert.False(t, h.IsDir("/nope"))
	assert.False(t, h.IsFile("/nope"))
	assert.False(t, h.IsLink("/nope"))
	assert.False(t, h.Exists("/nope"))
}

func TestFilePoolReusesClosedChild(t *testing.T) {
	h, _ := newTestHost(t)

	f1, err := h.File("/a", "w")
	require.NoError(t, err)
	require.NoError(t, f1.Close())

	f2, err := h.File("/b", "w")
	require.NoError(t, err)
	require.NoError(t, f2.Close())

	assert.Len(t, h.pool, 1, "second open should reuse the freed child instead of spawning another")
}

func TestStatFollowsSymlinkChain(t *testing.T) {
	h, fs := newTestHost(t)
	fs.commit("/c", []byte("hello"))
	fs.symlink("/b", "c")
	fs.symlink("/a", "b")

	target, err := h.Stat("/c")
	require.NoError(t, err)

	rec, err := h.Stat("/a")
	require.NoError(t, err)
	assert.True(t, rec.IsRegular())
	assert.Equal(t, target.Size, rec.Size)
	assert.False(t, rec.IsSymlink())

	lrec, err := h.Lstat("/a")
	require.NoError(t, err)
	assert.True(t, lrec.IsSymlink())
}

func TestStatDetectsSymlinkCycle(t *testing.T) {
	h, fs := newTestHost(t)
	fs.symlink("/x", "y")
	fs.symlink("/y", "x")

	_, err := h.Stat("/x")
	require.Error(t, err)
	var fe *Error
	require.True(t, errAs(err, &fe))
	assert.Equal(t, KindPermanent, fe.Kind)
	assert.Contains(t, err.Error(), "recursive link structure")
}

func TestWalkVisitsSubdirectories(t *testing.T) {
	h, _ := newTestHost(t)
	require.NoError(t, h.Mkdir("/d"))
	f, err := h.File("/d/f", "w")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	var seen []string
	err = h.Walk("/", true, nil, func(dir string, subdirs, files []string) error {
		for _, name := range files {
			seen = append(seen, Join(dir, name))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Contains(t, seen, "/d/f")
}
