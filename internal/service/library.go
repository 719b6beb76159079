// Package service provides the business logic layer for the library,
// reader, annotations, collections, sharing, and search.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shiori-reader/shiori-server/internal/cbz"
	"github.com/shiori-reader/shiori-server/internal/domain"
	"github.com/shiori-reader/shiori-server/internal/epub"
	apperrors "github.com/shiori-reader/shiori-server/internal/errors"
	"github.com/shiori-reader/shiori-server/internal/format"
	"github.com/shiori-reader/shiori-server/internal/id"
	"github.com/shiori-reader/shiori-server/internal/normalize"
	"github.com/shiori-reader/shiori-server/internal/sse"
	"github.com/shiori-reader/shiori-server/internal/store"
)

// LibraryService orchestrates importing, listing, and removing books.
type LibraryService struct {
	store      *store.Store
	covers     *CoverService
	sseManager *sse.Manager
	logger     *slog.Logger
}

// NewLibraryService creates a new library service. covers may be nil, in
// which case imported books get no cover artwork.
func NewLibraryService(store *store.Store, covers *CoverService, sseManager *sse.Manager, logger *slog.Logger) *LibraryService {
	return &LibraryService{
		store:      store,
		covers:     covers,
		sseManager: sseManager,
		logger:     logger,
	}
}

// ImportBook adds the file at path to the library. Duplicate files are
// detected by content hash; importing one returns ALREADY_EXISTS.
func (s *LibraryService) ImportBook(ctx context.Context, path string) (*domain.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := format.Detect(path)
	if err != nil {
		return nil, fmt.Errorf("detect format: %w", err)
	}

	hash, size, err := hashFile(path)
	if err != nil {
		return nil, fmt.Errorf("hash file: %w", err)
	}

	if existing, err := s.store.GetBookByHash(ctx, hash); err == nil {
		return existing, apperrors.AlreadyExists(
			fmt.Sprintf("book already in library as %q", existing.Title))
	} else if !apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("check duplicate: %w", err)
	}

	now := time.Now()
	book := &domain.Book{
		ID:       id.MustGenerate("book"),
		Path:     path,
		Format:   string(info.Format),
		FileSize: size,
		FileHash: hash,
		AddedAt:  now,
	}
	book.Touch()

	s.applyMetadata(book, info.Format)
	if book.Title == "" {
		book.Title = titleFromFilename(path)
	}

	if err := s.store.CreateBook(ctx, book); err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}

	if s.covers != nil {
		if err := s.covers.ExtractCover(ctx, book); err != nil {
			s.logger.Warn("cover extraction failed", "book_id", book.ID, "error", err)
		} else if book.CoverPath != "" {
			if err := s.store.UpdateBook(ctx, book); err != nil {
				s.logger.Warn("failed to save cover metadata", "book_id", book.ID, "error", err)
			}
		}
	}

	s.logger.Info("book imported",
		"book_id", book.ID,
		"title", book.Title,
		"format", book.Format,
		"detection", info.Method,
	)

	if s.sseManager != nil {
		s.sseManager.Emit(sse.NewBookCreatedEvent(book))
	}

	return book, nil
}

// applyMetadata fills in title, authors, and chapter count from the file
// itself. EPUB and CBZ carry enough structure to extract from today;
// other formats keep their filename-derived title.
func (s *LibraryService) applyMetadata(book *domain.Book, f format.Format) {
	switch f {
	case format.EPUB:
		s.applyEpubMetadata(book)
	case format.CBZ:
		s.applyCbzMetadata(book)
	}
}

func (s *LibraryService) applyEpubMetadata(book *domain.Book) {
	eb, err := epub.Open(book.Path)
	if err != nil {
		s.logger.Warn("metadata extraction failed", "path", book.Path, "error", err)
		return
	}
	defer eb.Close()

	meta := eb.Metadata()
	book.Title = meta.Title
	book.SortTitle = sortTitle(meta.Title)
	book.Authors = meta.Authors
	book.Series = meta.Series
	book.SeriesIdx = meta.SeriesIndex
	book.Publisher = meta.Publisher
	book.ISBN = meta.Identifier
	book.Language = meta.Language
	if code := normalize.LanguageCode(meta.Language); code != "" {
		book.Language = code
	}
	book.Description = meta.Description
	book.ChapterCount = eb.ChapterCount()
}

// applyCbzMetadata reads ComicInfo.xml when the archive carries one.
// The page count is recorded either way.
func (s *LibraryService) applyCbzMetadata(book *domain.Book) {
	cb, err := cbz.Open(book.Path)
	if err != nil {
		s.logger.Warn("metadata extraction failed", "path", book.Path, "error", err)
		return
	}
	defer cb.Close()

	book.ChapterCount = cb.ChapterCount()
	if !cb.HasInfo() {
		return
	}

	meta := cb.Metadata()
	if meta.Title != "" {
		book.Title = meta.Title
		book.SortTitle = sortTitle(meta.Title)
	}
	book.Authors = meta.Writers
	book.Series = meta.Series
	book.SeriesIdx = meta.Number
	book.Description = meta.Summary
}

// GetBook returns a single book by ID.
func (s *LibraryService) GetBook(ctx context.Context, bookID string) (*domain.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	return book, nil
}

// ListBooks returns a page of the library ordered by the store.
func (s *LibraryService) ListBooks(ctx context.Context, params store.PaginationParams) (*store.PaginatedResult[*domain.Book], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := s.store.ListBooks(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return result, nil
}

// UpdateBook persists edits to a book's metadata.
func (s *LibraryService) UpdateBook(ctx context.Context, book *domain.Book) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	book.Touch()
	if err := s.store.UpdateBook(ctx, book); err != nil {
		return fmt.Errorf("update book: %w", err)
	}

	if s.sseManager != nil {
		s.sseManager.Emit(sse.NewBookUpdatedEvent(book))
	}
	return nil
}

// DeleteBook removes a book and its dependent records (progress,
// annotations, per-book settings, shares). The file on disk is left alone.
func (s *LibraryService) DeleteBook(ctx context.Context, bookID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return fmt.Errorf("get book: %w", err)
	}

	if err := s.store.DeleteAnnotationsForBook(ctx, bookID); err != nil {
		s.logger.Warn("failed to delete annotations", "book_id", bookID, "error", err)
	}
	if err := s.store.DeleteSharesForBook(ctx, bookID); err != nil {
		s.logger.Warn("failed to delete shares", "book_id", bookID, "error", err)
	}
	if err := s.store.DeleteProgress(ctx, bookID); err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
		s.logger.Warn("failed to delete progress", "book_id", bookID, "error", err)
	}
	if err := s.store.DeleteBookSettings(ctx, bookID); err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
		s.logger.Warn("failed to delete book settings", "book_id", bookID, "error", err)
	}

	if s.covers != nil {
		s.covers.RemoveCover(book)
	}

	if err := s.store.DeleteBook(ctx, bookID); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}

	s.logger.Info("book deleted", "book_id", bookID, "title", book.Title)

	if s.sseManager != nil {
		s.sseManager.Emit(sse.NewBookDeletedEvent(bookID))
	}
	return nil
}

// RemoveBookByPath deletes the library record for a file that vanished
// from disk. Used by the filesystem watcher; a path with no record is
// not an error.
func (s *LibraryService) RemoveBookByPath(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	book, err := s.store.GetBookByPath(ctx, path)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("lookup by path: %w", err)
	}
	return s.DeleteBook(ctx, book.ID)
}

// SyncPath reconciles one file with the library. Unknown paths are
// imported; known paths whose contents changed get their hash and
// metadata refreshed in place, keeping annotations and progress.
func (s *LibraryService) SyncPath(ctx context.Context, path string) (*domain.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	book, err := s.store.GetBookByPath(ctx, path)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return s.ImportBook(ctx, path)
		}
		return nil, fmt.Errorf("lookup by path: %w", err)
	}

	hash, size, err := hashFile(path)
	if err != nil {
		return nil, fmt.Errorf("hash file: %w", err)
	}
	if hash == book.FileHash {
		return book, nil
	}

	info, err := format.Detect(path)
	if err != nil {
		return nil, fmt.Errorf("detect format: %w", err)
	}

	book.FileHash = hash
	book.FileSize = size
	book.Format = string(info.Format)
	s.applyMetadata(book, info.Format)
	if book.Title == "" {
		book.Title = titleFromFilename(path)
	}

	if s.covers != nil {
		if err := s.covers.ExtractCover(ctx, book); err != nil {
			s.logger.Warn("cover refresh failed", "book_id", book.ID, "error", err)
		}
	}

	if err := s.UpdateBook(ctx, book); err != nil {
		return nil, err
	}

	s.logger.Info("book refreshed", "book_id", book.ID, "path", path)
	return book, nil
}

// RelocateBook updates a book's path after the file moved on disk. When
// the old path has no record the new path is imported instead.
func (s *LibraryService) RelocateBook(ctx context.Context, oldPath, newPath string) (*domain.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	book, err := s.store.GetBookByPath(ctx, oldPath)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return s.SyncPath(ctx, newPath)
		}
		return nil, fmt.Errorf("lookup by path: %w", err)
	}

	book.Path = newPath
	if err := s.UpdateBook(ctx, book); err != nil {
		return nil, err
	}

	s.logger.Info("book relocated", "book_id", book.ID, "from", oldPath, "to", newPath)
	return book, nil
}

// ScanResult summarizes one library folder scan.
type ScanResult struct {
	Found   int `json:"found"`
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
	Removed int `json:"removed"`
}

// ScanFolder walks the library folder, imports files not yet in the
// library, and drops records whose files no longer exist. Files that
// fail to import are skipped, not fatal.
func (s *LibraryService) ScanFolder(ctx context.Context, root string) (*ScanResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.logger.Info("library scan started", "path", root)
	if s.sseManager != nil {
		s.sseManager.Emit(sse.NewScanStartedEvent(root))
	}

	result := &ScanResult{}
	seen := make(map[string]bool)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn("scan error", "path", path, "error", err)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !format.KnownExtension(path) {
			return nil
		}

		result.Found++
		seen[path] = true

		if _, err := s.store.GetBookByPath(ctx, path); err == nil {
			result.Skipped++
			return nil
		}

		if _, err := s.ImportBook(ctx, path); err != nil {
			if apperrors.Is(err, apperrors.ErrAlreadyExists) {
				result.Skipped++
				return nil
			}
			s.logger.Warn("import failed during scan", "path", path, "error", err)
			result.Skipped++
			return nil
		}
		result.Added++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk library: %w", err)
	}

	// Drop records whose files are gone. Only books under the scanned
	// root are candidates; books imported from elsewhere are kept.
	books, err := s.store.AllBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list books for prune: %w", err)
	}
	for _, book := range books {
		if !strings.HasPrefix(book.Path, root) || seen[book.Path] {
			continue
		}
		if _, err := os.Stat(book.Path); err == nil {
			continue
		}
		if err := s.DeleteBook(ctx, book.ID); err != nil {
			s.logger.Warn("failed to prune missing book", "book_id", book.ID, "error", err)
			continue
		}
		result.Removed++
	}

	s.logger.Info("library scan complete",
		"path", root,
		"found", result.Found,
		"added", result.Added,
		"skipped", result.Skipped,
		"removed", result.Removed,
	)

	if s.sseManager != nil {
		s.sseManager.Emit(sse.NewScanCompleteEvent(root, result.Found, result.Added))
	}
	return result, nil
}

// hashFile returns the SHA-256 of the file contents and its size.
func hashFile(path string) (string, int64, error) {
	//#nosec G304 -- Path comes from the configured library folder
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), size, nil
}

// titleFromFilename derives a display title from a file path by dropping
// the extension and swapping underscores for spaces.
func titleFromFilename(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ReplaceAll(base, "_", " ")
}

// sortTitle strips a leading English article for shelf ordering.
func sortTitle(title string) string {
	lower := strings.ToLower(title)
	for _, article := range []string{"the ", "a ", "an "} {
		if strings.HasPrefix(lower, article) {
			return title[len(article):]
		}
	}
	return title
}
