package reader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "Lunch.PNG", pngBytes)

	pages, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "Lunch.PNG", pages[0].Source)
	assert.Equal(t, "image/png", pages[0].Image.MIMEType)
	assert.Equal(t, pngBytes, pages[0].Image.Data)

	_, err = LoadFile(writeFile(t, dir, "notes.txt", []byte("hi")))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = LoadFile(writeFile(t, dir, "empty.jpg", nil))
	assert.Error(t, err)
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.jpg", []byte("jpeg"))
	writeFile(t, dir, "b.webp", []byte("webp"))
	writeFile(t, dir, "readme.md", []byte("skip me"))
	writeFile(t, dir, "broken.pdf", []byte("not a pdf"))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	pages, err := LoadDirectory(dir)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "a.jpg", pages[0].Source)
	assert.Equal(t, "image/webp", pages[1].Image.MIMEType)
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	single := writeFile(t, t.TempDir(), "dinner.jpeg", []byte("jpeg"))
	writeFile(t, dir, "a.png", pngBytes)

	pages, err := LoadFiles(single, dir)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "dinner.jpeg", pages[0].Source)
	assert.Equal(t, "a.png", pages[1].Source)

	_, err = LoadFiles(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}

func TestLoadPDF_Invalid(t *testing.T) {
	_, err := LoadFile(writeFile(t, t.TempDir(), "menu.pdf", []byte("%PDF-1.4 garbage")))
	assert.Error(t, err)
}
