package unpack

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type zipEntry struct {
	name    string
	mode    fs.FileMode
	content string
}

func makeZip(t *testing.T, entries []zipEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		hdr := &zip.FileHeader{Name: e.name, Method: zip.Deflate}
		hdr.SetMode(e.mode)
		w, err := zw.CreateHeader(hdr)
		require.NoError(t, err)
		if !e.mode.IsDir() {
			_, err = w.Write([]byte(e.content))
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtractZip(t *testing.T) {
	t.Parallel()

	payload := makeZip(t, []zipEntry{
		{name: "dir/", mode: fs.ModeDir | 0o755},
		{name: "dir/file.txt", mode: 0o644, content: "zipped content"},
		{name: "top.txt", mode: 0o600, content: "top level"},
	})

	dst := t.TempDir()
	files, err := New().Extract(context.Background(), streamOf(payload, 256), dst, Zip)
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dst, "dir", "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "zipped content", string(got))

	assert.Equal(t, []string{"dir/file.txt", "top.txt"}, files.Files)
	assert.Equal(t, []string{"dir"}, files.Dirs)
	assert.True(t, files.HasDir("dir"))
}

func TestExtractZipTraversalSkipped(t *testing.T) {
	t.Parallel()

	payload := makeZip(t, []zipEntry{
		{name: "../evil.txt", mode: 0o644, content: "escape"},
		{name: "ok.txt", mode: 0o644, content: "legit"},
	})

	root := t.TempDir()
	dst := filepath.Join(root, "dst")

	files, err := New().Extract(context.Background(), streamOf(payload, 256), dst, Zip)
	require.NoError(t, err)

	assert.Equal(t, []string{"ok.txt"}, files.Files)
	_, err = os.Lstat(filepath.Join(root, "evil.txt"))
	assert.True(t, os.IsNotExist(err))

	got, err := os.ReadFile(filepath.Join(dst, "ok.txt"))
	require.NoError(t, err)
	assert.Equal(t, "legit", string(got))
}

func TestExtractZipBadPayload(t *testing.T) {
	t.Parallel()

	dst := t.TempDir()
	_, err := New().Extract(context.Background(), streamOf([]byte("definitely not a zip archive"), 7), dst, Zip)
	require.Error(t, err)
}
