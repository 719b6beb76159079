package api

import (
	"archive/zip"
	"bytes"
	"encoding/json/jsontext"
	"encoding/json/v2"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shiori-reader/shiori-server/internal/auth"
	"github.com/shiori-reader/shiori-server/internal/config"
	"github.com/shiori-reader/shiori-server/internal/search"
	"github.com/shiori-reader/shiori-server/internal/service"
	"github.com/shiori-reader/shiori-server/internal/sse"
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
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Night Ferry</dc:title>
    <dc:creator>Ana Ruiz</dc:creator>
    <dc:language>en</dc:language>
  </metadata>
  <manifest>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="ch1" href="text/ch1.xhtml" media-type="application/xhtml+xml"/>
    <item id="ch2" href="text/ch2.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine toc="ncx">
    <itemref idref="ch1"/>
    <itemref idref="ch2"/>
  </spine>
</package>`

const testNCX = `<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <navMap>
    <navPoint id="n1" playOrder="1">
      <navLabel><text>Boarding</text></navLabel>
      <content src="text/ch1.xhtml"/>
    </navPoint>
    <navPoint id="n2" playOrder="2">
      <navLabel><text>Crossing</text></navLabel>
      <content src="text/ch2.xhtml"/>
    </navPoint>
  </navMap>
</ncx>`

const testChapterOne = `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml"><head><title>Boarding</title></head>
<body><h1>Boarding</h1><p>The ferry left at midnight.</p></body></html>`

const testChapterTwo = `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml"><head><title>Crossing</title></head>
<body><p>Fog swallowed the crossing lights.</p></body></html>`

// writeFixtureEpub builds a small two-chapter EPUB on disk.
func writeFixtureEpub(t *testing.T, dir, name string) string {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	entries := []struct{ name, body string }{
		{"mimetype", "application/epub+zip"},
		{"META-INF/container.xml", testContainerXML},
		{"OEBPS/content.opf", testOPF},
		{"OEBPS/toc.ncx", testNCX},
		{"OEBPS/text/ch1.xhtml", testChapterOne},
		{"OEBPS/text/ch2.xhtml", testChapterTwo},
	}
	for _, e := range entries {
		f, err := zw.Create(e.name)
		require.NoError(t, err)
		_, err = f.Write([]byte(e.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

type testServer struct {
	*Server
	store  *store.Store
	libDir string
}

func setupServer(t *testing.T) *testServer {
	t.Helper()

	dir := t.TempDir()
	logger := slog.New(slog.DiscardHandler)

	s, err := store.New(filepath.Join(dir, "db"), nil, store.NewNoopEmitter())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	index, err := search.NewSearchIndex(search.Options{
		DataPath: filepath.Join(dir, "index"),
		Logger:   logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	manager := sse.NewManager(logger)

	readerCfg := config.ReaderConfig{
		OpenTimeout:    5 * time.Second,
		ChapterTimeout: 5 * time.Second,
		CacheSizeMB:    8,
		PreloadRadius:  1,
	}
	readerSvc, err := service.NewReaderService(s, manager, readerCfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = readerSvc.Close() })

	tokenKey := bytes.Repeat([]byte{7}, 32)
	tokens, err := auth.NewTokenService(tokenKey, time.Hour)
	require.NoError(t, err)

	library := service.NewLibraryService(s, nil, manager, logger)
	tags := service.NewTagService(s, manager, logger)
	searchSvc := service.NewSearchService(s, index, tags, logger)
	s.SetSearchIndexer(searchSvc)

	services := Services{
		Library:     library,
		Reader:      readerSvc,
		Annotations: service.NewAnnotationService(s, manager, logger),
		Collections: service.NewCollectionService(s, manager, logger),
		Tags:        tags,
		Covers:      nil,
		Export:      service.NewExportService(s, readerSvc, logger),
		Shares: service.NewShareService(s, tokens, config.ShareConfig{
			TokenKey:        tokenKey,
			DefaultDuration: 24 * time.Hour,
		}, manager, logger),
		Search: searchSvc,
	}

	libDir := filepath.Join(dir, "library")
	require.NoError(t, os.MkdirAll(libDir, 0o755))

	srv := NewServer(s, services, sse.NewHandler(manager, logger), libDir, logger)
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, store: s, libDir: libDir}
}

// doJSON performs a request with an optional JSON body and returns the
// recorder.
func (ts *testServer) doJSON(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, req)
	return rec
}

// decodeData unmarshals the envelope's data field into dst.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var env struct {
		Success bool           `json:"success"`
		Data    jsontext.Value `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

// importFixture imports the fixture EPUB and returns its book ID.
func (ts *testServer) importFixture(t *testing.T) string {
	t.Helper()

	path := writeFixtureEpub(t, ts.libDir, "night_ferry.epub")
	rec := ts.doJSON(t, http.MethodPost, "/api/v1/books/import", ImportBookRequest{Path: path})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var book struct {
		ID string `json:"id"`
	}
	decodeData(t, rec, &book)
	require.NotEmpty(t, book.ID)
	return book.ID
}

func TestHealthCheck(t *testing.T) {
	ts := setupServer(t)

	rec := ts.doJSON(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var health HealthResponse
	decodeData(t, rec, &health)
	require.Contains(t, []string{"healthy", "degraded"}, health.Status)
	require.Equal(t, "healthy", health.Components["database"].Status)
}

func TestUnknownRouteReturns404(t *testing.T) {
	ts := setupServer(t)
	rec := ts.doJSON(t, http.MethodGet, "/api/v1/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
