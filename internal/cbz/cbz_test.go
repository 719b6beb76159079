package cbz

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testComicInfo = `<?xml version="1.0" encoding="utf-8"?>
<ComicInfo>
  <Title>The Drifting Isle</Title>
  <Series>Sky Atlas</Series>
  <Number>3</Number>
  <Writer>Rin Kasuga, Theo Marsh</Writer>
  <Summary>An island that will not stay put.</Summary>
</ComicInfo>`

func writeTestCbz(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.cbz")

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range entries {
		ew, err := w.Create(name)
		require.NoError(t, err)
		_, err = ew.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return path
}

func openTestCbz(t *testing.T) *Book {
	t.Helper()
	book, err := Open(writeTestCbz(t, map[string]string{
		"ComicInfo.xml":      testComicInfo,
		"pages/002.jpg":      "\xff\xd8\xffpage-two",
		"pages/001.png":      "\x89PNGpage-one",
		"pages/003.webp":     "RIFFpage-three",
		"__MACOSX/._001.png": "resource-fork",
		"notes.txt":          "not a page",
	}))
	require.NoError(t, err)
	t.Cleanup(func() { book.Close() })
	return book
}

func TestOpen_PagesSortedByName(t *testing.T) {
	book := openTestCbz(t)

	require.Equal(t, 3, book.ChapterCount())

	data, err := book.ReadItem("pages/001.png")
	require.NoError(t, err)
	assert.Contains(t, string(data), "page-one")
}

func TestChapter_WrapsPageImage(t *testing.T) {
	book := openTestCbz(t)

	markup, err := book.Chapter(0)
	require.NoError(t, err)
	assert.Contains(t, string(markup), `<img src="pages/001.png" alt="Page 1"/>`)

	markup, err = book.Chapter(2)
	require.NoError(t, err)
	assert.Contains(t, string(markup), `alt="Page 3"`)

	_, err = book.Chapter(3)
	assert.Error(t, err)

	_, err = book.Chapter(-1)
	assert.Error(t, err)
}

func TestCover_FirstPage(t *testing.T) {
	book := openTestCbz(t)

	data, mediaType, err := book.Cover()
	require.NoError(t, err)
	assert.Equal(t, "image/png", mediaType)
	assert.Contains(t, string(data), "page-one")
}

func TestMetadata_FromComicInfo(t *testing.T) {
	book := openTestCbz(t)

	require.True(t, book.HasInfo())
	md := book.Metadata()
	assert.Equal(t, "The Drifting Isle", md.Title)
	assert.Equal(t, "Sky Atlas", md.Series)
	assert.InDelta(t, 3.0, md.Number, 0.001)
	assert.Equal(t, []string{"Rin Kasuga", "Theo Marsh"}, md.Writers)
	assert.Equal(t, "An island that will not stay put.", md.Summary)
}

func TestOpen_NoComicInfo(t *testing.T) {
	book, err := Open(writeTestCbz(t, map[string]string{
		"001.jpg": "\xff\xd8\xffonly-page",
	}))
	require.NoError(t, err)
	defer book.Close()

	assert.False(t, book.HasInfo())
	assert.Equal(t, 1, book.ChapterCount())
}

func TestOpen_NoPages(t *testing.T) {
	_, err := Open(writeTestCbz(t, map[string]string{
		"readme.txt": "no images here",
	}))
	assert.Error(t, err)
}

func TestOpen_NotAZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.cbz")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o600))

	_, err := Open(path)
	assert.Error(t, err)
}
