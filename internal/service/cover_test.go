package service

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiori-reader/shiori-server/internal/domain"
	apperrors "github.com/shiori-reader/shiori-server/internal/errors"
)

func setupCovers(t *testing.T) (*CoverService, *domain.Book) {
	t.Helper()

	covers, err := NewCoverService(t.TempDir(), testLogger())
	require.NoError(t, err)

	path := writeTestEpub(t, t.TempDir(), "book.epub")
	book := &domain.Book{ID: "book_cover_test", Path: path, Format: "epub"}
	return covers, book
}

func TestExtractCover(t *testing.T) {
	covers, book := setupCovers(t)
	ctx := context.Background()

	require.NoError(t, covers.ExtractCover(ctx, book))

	assert.NotEmpty(t, book.CoverPath)
	assert.NotEmpty(t, book.CoverBlurHash)

	_, err := os.Stat(book.CoverPath)
	assert.NoError(t, err)

	data, err := covers.Cover(ctx, book.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	thumb, err := covers.Thumbnail(ctx, book.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, thumb)

	hash, err := covers.CoverHash(book.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
}

func TestExtractCover_CBZFirstPage(t *testing.T) {
	covers, err := NewCoverService(t.TempDir(), testLogger())
	require.NoError(t, err)

	path := writeTestCbz(t, t.TempDir(), "lanterns.cbz")
	book := &domain.Book{ID: "book_cbz_cover", Path: path, Format: "cbz"}

	require.NoError(t, covers.ExtractCover(context.Background(), book))
	assert.NotEmpty(t, book.CoverPath)
	assert.NotEmpty(t, book.CoverBlurHash)
}

func TestExtractCover_FormatWithoutArtwork(t *testing.T) {
	covers, book := setupCovers(t)
	book.Format = "pdf"

	require.NoError(t, covers.ExtractCover(context.Background(), book))
	assert.Empty(t, book.CoverPath)
}

func TestCover_MissingBook(t *testing.T) {
	covers, _ := setupCovers(t)

	_, err := covers.Cover(context.Background(), "book_unknown")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	_, err = covers.Thumbnail(context.Background(), "book_unknown")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestRemoveCover(t *testing.T) {
	covers, book := setupCovers(t)
	ctx := context.Background()

	require.NoError(t, covers.ExtractCover(ctx, book))
	covers.RemoveCover(book)

	assert.Empty(t, book.CoverPath)
	assert.Empty(t, book.CoverBlurHash)
	_, err := covers.Cover(ctx, book.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}
