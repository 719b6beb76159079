package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiori-reader/shiori-server/internal/config"
	"github.com/shiori-reader/shiori-server/internal/domain"
	apperrors "github.com/shiori-reader/shiori-server/internal/errors"
	"github.com/shiori-reader/shiori-server/internal/store"
)

func testReaderConfig() config.ReaderConfig {
	return config.ReaderConfig{
		OpenTimeout:     5 * time.Second,
		ChapterTimeout:  2 * time.Second,
		FlipDuration:    50 * time.Millisecond,
		ProgressRate:    100,
		PersistDebounce: 20 * time.Millisecond,
		RestoreSettle:   5 * time.Millisecond,
		PreloadRadius:   2,
		CacheSizeMB:     16,
	}
}

func setupReader(t *testing.T) (*ReaderService, *store.Store, string) {
	t.Helper()
	library, s := setupLibrary(t)

	book, err := library.ImportBook(context.Background(), writeTestEpub(t, t.TempDir(), "book.epub"))
	require.NoError(t, err)

	svc, err := NewReaderService(s, nil, testReaderConfig(), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	return svc, s, book.ID
}

func TestOpenBook(t *testing.T) {
	svc, _, bookID := setupReader(t)
	ctx := context.Background()

	meta, err := svc.OpenBook(ctx, bookID)
	require.NoError(t, err)
	assert.Equal(t, "The Silent Sea", meta.Title)
	assert.Equal(t, 3, meta.TotalChapters)

	// Second open returns the same metadata.
	again, err := svc.OpenBook(ctx, bookID)
	require.NoError(t, err)
	assert.Same(t, meta, again)
}

func TestOpenBook_UnknownID(t *testing.T) {
	svc, _, _ := setupReader(t)

	_, err := svc.OpenBook(context.Background(), "book_missing")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestOpenBook_UnsupportedFormat(t *testing.T) {
	svc, s, _ := setupReader(t)
	ctx := context.Background()

	book := &domain.Book{
		ID:      "book_pdf",
		Title:   "Scanned Pages",
		Path:    "/library/scan.pdf",
		Format:  "pdf",
		AddedAt: time.Now(),
	}
	require.NoError(t, s.CreateBook(ctx, book))

	_, err := svc.OpenBook(ctx, book.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnsupportedFormat))
}

func TestOpenBook_CBZ(t *testing.T) {
	library, s := setupLibrary(t)
	ctx := context.Background()

	book, err := library.ImportBook(ctx, writeTestCbz(t, t.TempDir(), "lanterns.cbz"))
	require.NoError(t, err)

	svc, err := NewReaderService(s, nil, testReaderConfig(), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	meta, err := svc.OpenBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Paper Lanterns", meta.Title)
	assert.Equal(t, 2, meta.TotalChapters)

	// ComicInfo.xml metadata lands on the imported book.
	stored, err := s.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Mika Tanaka"}, stored.Authors)
	assert.Equal(t, "Harbor Tales", stored.Series)

	// Pages read as image-wrapping chapters with fetchable resources.
	chapter, err := svc.GetChapter(ctx, book.ID, 0)
	require.NoError(t, err)
	assert.Contains(t, chapter.Content, `<img src="001.png"`)

	data, err := svc.GetResource(ctx, book.ID, "001.png")
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	// Comics have no table of contents.
	toc, err := svc.TOC(ctx, book.ID)
	require.NoError(t, err)
	assert.Empty(t, toc)
}

func TestOpenBook_PlainText(t *testing.T) {
	library, s := setupLibrary(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "journal.txt")
	require.NoError(t, os.WriteFile(path, []byte("Day one at sea.\n\nDay two, still water."), 0o600))

	book, err := library.ImportBook(ctx, path)
	require.NoError(t, err)

	svc, err := NewReaderService(s, nil, testReaderConfig(), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	meta, err := svc.OpenBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, meta.TotalChapters)

	chapter, err := svc.GetChapter(ctx, book.ID, 0)
	require.NoError(t, err)
	assert.Contains(t, chapter.Content, "<p>Day one at sea.</p>")
}

func TestCloseBook_NotOpenIsFine(t *testing.T) {
	svc, _, bookID := setupReader(t)
	ctx := context.Background()

	assert.NoError(t, svc.CloseBook(ctx, bookID))

	_, err := svc.OpenBook(ctx, bookID)
	require.NoError(t, err)
	assert.NoError(t, svc.CloseBook(ctx, bookID))
	assert.NoError(t, svc.CloseBook(ctx, bookID))
}

func TestGetChapter(t *testing.T) {
	svc, _, bookID := setupReader(t)
	ctx := context.Background()

	_, err := svc.OpenBook(ctx, bookID)
	require.NoError(t, err)

	chapter, err := svc.GetChapter(ctx, bookID, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, chapter.Index)
	assert.Equal(t, "Departure", chapter.Title)
	assert.Contains(t, chapter.Content, "harbor was empty")

	// Chapters outside the spine are not found.
	_, err = svc.GetChapter(ctx, bookID, 99)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	// Chapters of books that are not open are not served.
	_, err = svc.GetChapter(ctx, "book_missing", 0)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestGetChapter_ServedFromCache(t *testing.T) {
	svc, _, bookID := setupReader(t)
	ctx := context.Background()

	_, err := svc.OpenBook(ctx, bookID)
	require.NoError(t, err)

	first, err := svc.GetChapter(ctx, bookID, 1)
	require.NoError(t, err)

	// Wait for the async cache admission, then read again.
	svc.cache.Wait()
	second, err := svc.GetChapter(ctx, bookID, 1)
	require.NoError(t, err)
	assert.Equal(t, first.Content, second.Content)
	assert.Equal(t, first.Title, second.Title)
}

func TestGetResource(t *testing.T) {
	svc, _, bookID := setupReader(t)
	ctx := context.Background()

	_, err := svc.OpenBook(ctx, bookID)
	require.NoError(t, err)

	data, err := svc.GetResource(ctx, bookID, "images/cover.png")
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	_, err = svc.GetResource(ctx, bookID, "images/missing.png")
	assert.Error(t, err)
}

func TestProgressRoundTrip(t *testing.T) {
	svc, _, bookID := setupReader(t)
	ctx := context.Background()

	// Never-read books report no progress, not an error.
	progress, err := svc.GetProgress(ctx, bookID)
	require.NoError(t, err)
	assert.Nil(t, progress)

	require.NoError(t, svc.SaveProgress(ctx, bookID, "chapter_1:scroll_0.5", 40))

	progress, err = svc.GetProgress(ctx, bookID)
	require.NoError(t, err)
	require.NotNil(t, progress)
	assert.Equal(t, "chapter_1:scroll_0.5", progress.Location)
	assert.InDelta(t, 40, progress.ProgressPercent, 0.001)
}

func TestTOC(t *testing.T) {
	svc, _, bookID := setupReader(t)
	ctx := context.Background()

	_, err := svc.OpenBook(ctx, bookID)
	require.NoError(t, err)

	toc, err := svc.TOC(ctx, bookID)
	require.NoError(t, err)
	require.Len(t, toc, 2)
	assert.Equal(t, "Departure", toc[0].Title)
	assert.Equal(t, 0, toc[0].Index)
	assert.Equal(t, "Open Water", toc[1].Title)
	assert.Equal(t, 1, toc[1].Index)
}

func TestSearchInBook(t *testing.T) {
	svc, _, bookID := setupReader(t)
	ctx := context.Background()

	_, err := svc.OpenBook(ctx, bookID)
	require.NoError(t, err)

	matches, err := svc.SearchInBook(ctx, bookID, "water")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 1, matches[0].ChapterIndex)
	assert.Equal(t, 2, matches[0].Count)
	assert.Contains(t, matches[0].Snippet, "water")

	t.Run("case insensitive", func(t *testing.T) {
		matches, err := svc.SearchInBook(ctx, bookID, "HARBOR")
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, 0, matches[0].ChapterIndex)
	})

	t.Run("no hits", func(t *testing.T) {
		matches, err := svc.SearchInBook(ctx, bookID, "zeppelin")
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("empty term rejected", func(t *testing.T) {
		_, err := svc.SearchInBook(ctx, bookID, "   ")
		assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	})
}

func TestReaderSettings(t *testing.T) {
	svc, _, bookID := setupReader(t)
	ctx := context.Background()

	// Defaults apply before anything is saved.
	settings, err := svc.GetReaderSettings(ctx, bookID)
	require.NoError(t, err)
	assert.Equal(t, domain.PageModeScrolled, settings.PageMode)
	assert.Equal(t, 16, settings.FontSize)

	// Global settings flow through to the book.
	settings.FontSize = 20
	settings.PageMode = domain.PageModeFlipbook
	require.NoError(t, svc.SaveReaderSettings(ctx, "", settings))

	got, err := svc.GetReaderSettings(ctx, bookID)
	require.NoError(t, err)
	assert.Equal(t, 20, got.FontSize)
	assert.Equal(t, domain.PageModeFlipbook, got.PageMode)

	// Per-book overrides win over global.
	override := *got
	override.PageMode = domain.PageModeTwoPage
	require.NoError(t, svc.SaveReaderSettings(ctx, bookID, &override))

	got, err = svc.GetReaderSettings(ctx, bookID)
	require.NoError(t, err)
	assert.Equal(t, domain.PageModeTwoPage, got.PageMode)

	// Unknown page modes are rejected.
	bad := *got
	bad.PageMode = "spiral"
	err = svc.SaveReaderSettings(ctx, bookID, &bad)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestOpenSession_Lifecycle(t *testing.T) {
	svc, _, bookID := setupReader(t)
	ctx := context.Background()

	sess, err := svc.OpenSession(ctx, bookID)
	require.NoError(t, err)
	require.NotNil(t, sess)

	// A second open returns the same live session.
	again, err := svc.OpenSession(ctx, bookID)
	require.NoError(t, err)
	assert.Same(t, sess, again)

	got, ok := svc.Session(bookID)
	assert.True(t, ok)
	assert.Same(t, sess, got)

	result, err := sess.LoadChapter(ctx, 0, "")
	require.NoError(t, err)
	assert.Contains(t, result.HTML, "harbor")

	require.NoError(t, svc.CloseSession(ctx, bookID))
	_, ok = svc.Session(bookID)
	assert.False(t, ok)

	// Closing again is a no-op.
	assert.NoError(t, svc.CloseSession(ctx, bookID))
}
