package archive

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func readZip(t *testing.T, path string) map[string]string {
	t.Helper()

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	entries := make(map[string]string, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		raw, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		entries[f.Name] = string(raw)
	}
	return entries
}

func TestWriteZip(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "jane-doe.pdf")
	b := filepath.Join(dir, "bob-roe.pdf")
	require.NoError(t, os.WriteFile(a, []byte("pdf-a"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("pdf-b"), 0o644))

	dest := filepath.Join(dir, "out.zip")
	require.NoError(t, WriteZip(dest, []string{a, b}, zap.NewNop()))

	entries := readZip(t, dest)
	assert.Equal(t, map[string]string{
		"jane-doe.pdf": "pdf-a",
		"bob-roe.pdf":  "pdf-b",
	}, entries)
}

func TestWriteZipSkipsMissingInputs(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "present.pdf")
	require.NoError(t, os.WriteFile(a, []byte("pdf"), 0o644))

	dest := filepath.Join(dir, "out.zip")
	err := WriteZip(dest, []string{filepath.Join(dir, "gone.pdf"), a}, nil)
	require.NoError(t, err)

	entries := readZip(t, dest)
	require.Len(t, entries, 1)
	assert.Contains(t, entries, "present.pdf")
}

func TestWriteZipEmptyInputStillProducesArchive(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.zip")
	require.NoError(t, WriteZip(dest, nil, nil))

	entries := readZip(t, dest)
	assert.Empty(t, entries)
}
