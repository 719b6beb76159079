package service

import (
	"archive/zip"
	"bytes"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shiori-reader/shiori-server/internal/store"
)

const testContainerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const testOPF = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
    <dc:title>The Silent Sea</dc:title>
    <dc:creator>Mika Tanaka</dc:creator>
    <dc:publisher>Harbor Press</dc:publisher>
    <dc:identifier id="bookid">urn:isbn:9780000000042</dc:identifier>
    <dc:language>en</dc:language>
    <dc:description>A quiet voyage.</dc:description>
    <meta name="cover" content="cover-img"/>
  </metadata>
  <manifest>
    <item id="ch1" href="text/ch1.xhtml" media-type="application/xhtml+xml"/>
    <item id="ch2" href="text/ch2.xhtml" media-type="application/xhtml+xml"/>
    <item id="ch3" href="text/ch3.xhtml" media-type="application/xhtml+xml"/>
    <item id="cover-img" href="images/cover.png" media-type="image/png"/>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
  </manifest>
  <spine toc="ncx">
    <itemref idref="ch1"/>
    <itemref idref="ch2"/>
    <itemref idref="ch3"/>
  </spine>
</package>`

const testNCX = `<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <navMap>
    <navPoint id="n1" playOrder="1">
      <navLabel><text>Departure</text></navLabel>
      <content src="text/ch1.xhtml"/>
    </navPoint>
    <navPoint id="n2" playOrder="2">
      <navLabel><text>Open Water</text></navLabel>
      <content src="text/ch2.xhtml"/>
    </navPoint>
  </navMap>
</ncx>`

// testCoverPNG renders a small real PNG so cover processing has a
// decodable image to work with.
func testCoverPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 60))
	for y := 0; y < 60; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.RGBA{R: uint8(4 * x), G: uint8(4 * y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// writeTestEpub assembles a small but valid EPUB in dir and returns its
// path.
func writeTestEpub(t *testing.T, dir, name string) string {
	t.Helper()

	entries := []struct {
		name    string
		content []byte
	}{
		{"mimetype", []byte("application/epub+zip")},
		{"META-INF/container.xml", []byte(testContainerXML)},
		{"OEBPS/content.opf", []byte(testOPF)},
		{"OEBPS/toc.ncx", []byte(testNCX)},
		{"OEBPS/text/ch1.xhtml", []byte(`<html><body><h1>Departure</h1><p>The harbor was empty at dawn.</p></body></html>`)},
		{"OEBPS/text/ch2.xhtml", []byte(`<html><body><p>Nothing but open water ahead.</p><p>The water kept its secrets.</p></body></html>`)},
		{"OEBPS/text/ch3.xhtml", []byte(`<html><body><p>Landfall at last.</p></body></html>`)},
		{"OEBPS/images/cover.png", testCoverPNG(t)},
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for _, entry := range entries {
		ew, err := w.Create(entry.name)
		require.NoError(t, err)
		_, err = ew.Write(entry.content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return path
}

const testComicInfoXML = `<?xml version="1.0" encoding="utf-8"?>
<ComicInfo>
  <Title>Paper Lanterns</Title>
  <Series>Harbor Tales</Series>
  <Number>2</Number>
  <Writer>Mika Tanaka</Writer>
</ComicInfo>`

// writeTestCbz assembles a small two-page comic archive in dir and
// returns its path.
func writeTestCbz(t *testing.T, dir, name string) string {
	t.Helper()

	entries := []struct {
		name    string
		content []byte
	}{
		{"ComicInfo.xml", []byte(testComicInfoXML)},
		{"001.png", testCoverPNG(t)},
		{"002.png", testCoverPNG(t)},
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for _, entry := range entries {
		ew, err := w.Create(entry.name)
		require.NoError(t, err)
		_, err = ew.Write(entry.content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return path
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// setupServiceStore creates a badger store in a temp directory.
func setupServiceStore(t *testing.T) *store.Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.New(dbPath, nil, store.NewNoopEmitter())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// setupLibrary creates a library service without cover processing.
func setupLibrary(t *testing.T) (*LibraryService, *store.Store) {
	t.Helper()
	s := setupServiceStore(t)
	return NewLibraryService(s, nil, nil, testLogger()), s
}
