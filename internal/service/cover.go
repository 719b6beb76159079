package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shiori-reader/shiori-server/internal/cbz"
	"github.com/shiori-reader/shiori-server/internal/domain"
	"github.com/shiori-reader/shiori-server/internal/epub"
	apperrors "github.com/shiori-reader/shiori-server/internal/errors"
	"github.com/shiori-reader/shiori-server/internal/format"
	"github.com/shiori-reader/shiori-server/internal/media/images"
)

// CoverService extracts cover artwork from book archives and keeps the
// processed cover, thumbnail, and blurhash placeholder for each book.
type CoverService struct {
	storage   *images.Storage
	processor *images.Processor
	logger    *slog.Logger
}

// NewCoverService creates a cover service storing artwork under
// {basePath}/covers.
func NewCoverService(basePath string, logger *slog.Logger) (*CoverService, error) {
	storage, err := images.NewStorage(basePath)
	if err != nil {
		return nil, fmt.Errorf("create cover storage: %w", err)
	}
	return &CoverService{
		storage:   storage,
		processor: images.NewProcessor(storage, logger),
		logger:    logger,
	}, nil
}

// ExtractCover pulls the cover out of the book's archive, processes it,
// and records the cover path and blurhash on the book. A book without a
// cover is left untouched; that is not an error.
func (s *CoverService) ExtractCover(ctx context.Context, book *domain.Book) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, mediaType, err := coverData(book)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			s.logger.Debug("no cover in archive", "book_id", book.ID)
			return nil
		}
		return fmt.Errorf("read cover: %w", err)
	}
	if data == nil {
		return nil
	}

	if _, err := s.processor.Process(book.ID, data); err != nil {
		return fmt.Errorf("process cover: %w", err)
	}

	hash, err := images.ComputeBlurHash(data)
	if err != nil {
		s.logger.Warn("blurhash failed", "book_id", book.ID, "error", err)
		hash = ""
	}

	book.CoverPath = s.storage.Path(book.ID)
	book.CoverBlurHash = hash

	s.logger.Info("cover extracted",
		"book_id", book.ID,
		"media_type", mediaType,
		"bytes", len(data),
	)
	return nil
}

// coverData pulls the cover bytes out of a book's archive. Formats
// without embedded artwork yield (nil, "", nil).
func coverData(book *domain.Book) ([]byte, string, error) {
	switch format.Format(book.Format) {
	case format.EPUB:
		eb, err := epub.Open(book.Path)
		if err != nil {
			return nil, "", fmt.Errorf("open archive: %w", err)
		}
		defer eb.Close()
		return eb.Cover()
	case format.CBZ:
		cb, err := cbz.Open(book.Path)
		if err != nil {
			return nil, "", fmt.Errorf("open archive: %w", err)
		}
		defer cb.Close()
		return cb.Cover()
	default:
		return nil, "", nil
	}
}

// Cover returns the processed cover JPEG for a book.
func (s *CoverService) Cover(ctx context.Context, bookID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := s.storage.Get(bookID)
	if err != nil {
		return nil, apperrors.NotFoundf("no cover for book %s", bookID)
	}
	return data, nil
}

// Thumbnail returns the grid-sized cover variant for a book.
func (s *CoverService) Thumbnail(ctx context.Context, bookID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := s.storage.Get(bookID + "_thumb")
	if err != nil {
		return nil, apperrors.NotFoundf("no thumbnail for book %s", bookID)
	}
	return data, nil
}

// CoverHash returns the cover's content hash for cache validation.
func (s *CoverService) CoverHash(bookID string) (string, error) {
	return s.storage.Hash(bookID)
}

// RemoveCover deletes the stored artwork for a book.
func (s *CoverService) RemoveCover(book *domain.Book) {
	s.processor.Remove(book.ID)
	book.CoverPath = ""
	book.CoverBlurHash = ""
}
