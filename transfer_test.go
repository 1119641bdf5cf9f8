package ftputil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLocalFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	h, _ := newTestHost(t)
	dir := t.TempDir()
	local := writeLocalFile(t, dir, "src.bin", []byte("some binary content"))

	require.NoError(t, h.Upload(local, "/r.bin", "b"))

	outPath := filepath.Join(dir, "out.bin")
	require.NoError(t, h.Download("/r.bin", outPath, "b"))

	got, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "some binary content", string(got))
}

func TestUploadIfNewerSkipsUnmodifiedSource(t *testing.T) {
	h, _ := newTestHost(t)
	dir := t.TempDir()
	local := writeLocalFile(t, dir, "src", []byte("123456789"))

	moved, err := h.UploadIfNewer(local, "/r", "b")
	require.NoError(t, err)
	assert.True(t, moved)

	moved, err = h.UploadIfNewer(local, "/r", "b")
	require.NoError(t, err)
	assert.False(t, moved, "unmodified source should not be re-uploaded")

	newer := time.Now().Add(2 * time.Minute)
	require.NoError(t, os.Chtimes(local, newer, newer))

	moved, err = h.UploadIfNewer(local, "/r", "b")
	require.NoError(t, err)
	assert.True(t, moved, "a source newer than the remote by more than its precision should re-upload")
}
