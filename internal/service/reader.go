package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/shiori-reader/shiori-server/internal/cbz"
	"github.com/shiori-reader/shiori-server/internal/config"
	"github.com/shiori-reader/shiori-server/internal/domain"
	"github.com/shiori-reader/shiori-server/internal/epub"
	apperrors "github.com/shiori-reader/shiori-server/internal/errors"
	"github.com/shiori-reader/shiori-server/internal/format"
	"github.com/shiori-reader/shiori-server/internal/plain"
	"github.com/shiori-reader/shiori-server/internal/reader"
	"github.com/shiori-reader/shiori-server/internal/sse"
	"github.com/shiori-reader/shiori-server/internal/store"
)

// bookAdapter is what the reading pipeline needs from an open book,
// satisfied by the per-format adapters.
type bookAdapter interface {
	ChapterCount() int
	Chapter(index int) ([]byte, error)
	ReadItem(ref string) ([]byte, error)
	Close() error
}

// openBook is one live format adapter plus the metadata and resolved
// TOC handed to the reading pipeline.
type openBook struct {
	adapter bookAdapter
	meta    *domain.BookMetadata
	toc     []domain.TocEntry
}

// openAdapter opens the format-specific adapter for a book. EPUB TOCs
// are resolved to spine indexes here, once per open; page and
// single-file formats navigate by bare index.
func openAdapter(book *domain.Book) (bookAdapter, []domain.TocEntry, error) {
	switch format.Format(book.Format) {
	case format.EPUB:
		eb, err := epub.Open(book.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open epub: %w", err)
		}
		return eb, resolveTocEntries(eb, eb.TOC()), nil
	case format.CBZ:
		cb, err := cbz.Open(book.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open cbz: %w", err)
		}
		return cb, nil, nil
	case format.TXT:
		pb, err := plain.OpenText(book.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open text: %w", err)
		}
		return pb, nil, nil
	case format.HTML:
		pb, err := plain.OpenHTML(book.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open html: %w", err)
		}
		return pb, nil, nil
	default:
		return nil, nil, apperrors.UnsupportedFormat(
			fmt.Sprintf("no reader adapter for format %q", book.Format))
	}
}

// ReaderService implements reader.Backend over the format adapters, the
// store, and a size-bounded chapter cache. It also owns the registry of
// live reading sessions, one per open book.
type ReaderService struct {
	store      *store.Store
	sseManager *sse.Manager
	logger     *slog.Logger
	cfg        config.ReaderConfig

	cache *ristretto.Cache[string, string]

	mu       sync.Mutex
	open     map[string]*openBook
	sessions map[string]*reader.Session
}

// NewReaderService creates a reader service with a chapter cache bounded
// by cfg.CacheSizeMB.
func NewReaderService(store *store.Store, sseManager *sse.Manager, cfg config.ReaderConfig, logger *slog.Logger) (*ReaderService, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: 100_000,
		MaxCost:     int64(cfg.CacheSizeMB) << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create chapter cache: %w", err)
	}

	return &ReaderService{
		store:      store,
		sseManager: sseManager,
		logger:     logger,
		cfg:        cfg,
		cache:      cache,
		open:       make(map[string]*openBook),
		sessions:   make(map[string]*reader.Session),
	}, nil
}

// Close tears down every live session and adapter.
func (s *ReaderService) Close() error {
	s.mu.Lock()
	sessions := make([]*reader.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, sess := range sessions {
		if err := sess.Close(ctx); err != nil {
			s.logger.Warn("session close failed during shutdown", "error", err)
		}
	}

	s.mu.Lock()
	for bookID, ob := range s.open {
		if err := ob.adapter.Close(); err != nil {
			s.logger.Warn("adapter close failed during shutdown", "book_id", bookID, "error", err)
		}
		delete(s.open, bookID)
	}
	s.mu.Unlock()

	s.cache.Close()
	return nil
}

// OpenBook implements reader.Backend. The first open for a book id builds
// the archive adapter; later opens return the existing metadata.
func (s *ReaderService) OpenBook(ctx context.Context, bookID string) (*domain.BookMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if ob, ok := s.open[bookID]; ok {
		s.mu.Unlock()
		return ob.meta, nil
	}
	s.mu.Unlock()

	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}

	adapter, toc, err := openAdapter(book)
	if err != nil {
		return nil, err
	}

	meta := &domain.BookMetadata{
		Title:         book.Title,
		TotalChapters: adapter.ChapterCount(),
	}

	s.mu.Lock()
	if existing, ok := s.open[bookID]; ok {
		// Lost the race; keep the adapter that got there first.
		s.mu.Unlock()
		if err := adapter.Close(); err != nil {
			s.logger.Warn("redundant adapter close failed", "book_id", bookID, "error", err)
		}
		return existing.meta, nil
	}
	s.open[bookID] = &openBook{adapter: adapter, meta: meta, toc: toc}
	s.mu.Unlock()

	book.MarkOpened()
	if err := s.store.UpdateBook(ctx, book); err != nil {
		s.logger.Warn("failed to record open", "book_id", bookID, "error", err)
	}

	s.logger.Info("book opened", "book_id", bookID, "chapters", meta.TotalChapters)
	return meta, nil
}

// CloseBook implements reader.Backend.
func (s *ReaderService) CloseBook(ctx context.Context, bookID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	ob, ok := s.open[bookID]
	delete(s.open, bookID)
	s.mu.Unlock()

	if !ok {
		return nil
	}
	if err := ob.adapter.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	s.logger.Info("book closed", "book_id", bookID)
	return nil
}

// GetChapter implements reader.Backend. Chapter markup is cached by
// (book, index); on a miss the adapter is read and the chapters after
// this one are preloaded into the cache.
func (s *ReaderService) GetChapter(ctx context.Context, bookID string, index int) (*domain.Chapter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ob, err := s.adapter(bookID)
	if err != nil {
		return nil, err
	}

	key := chapterCacheKey(bookID, index)
	if content, ok := s.cache.Get(key); ok {
		return &domain.Chapter{
			Index:   index,
			Title:   chapterTitle(ob.toc, index),
			Content: content,
		}, nil
	}

	data, err := ob.adapter.Chapter(index)
	if err != nil {
		return nil, fmt.Errorf("read chapter %d: %w", index, err)
	}
	content := string(data)
	s.cache.Set(key, content, int64(len(content)))

	go s.preloadChapters(context.WithoutCancel(ctx), bookID, index)

	return &domain.Chapter{
		Index:   index,
		Title:   chapterTitle(ob.toc, index),
		Content: content,
	}, nil
}

// preloadChapters warms the cache with the chapters following index.
func (s *ReaderService) preloadChapters(ctx context.Context, bookID string, index int) {
	radius := s.cfg.PreloadRadius
	if radius <= 0 {
		radius = 2
	}

	ob, err := s.adapter(bookID)
	if err != nil {
		return
	}

	for i := index + 1; i <= index+radius && i < ob.adapter.ChapterCount(); i++ {
		if ctx.Err() != nil {
			return
		}
		key := chapterCacheKey(bookID, i)
		if _, ok := s.cache.Get(key); ok {
			continue
		}
		data, err := ob.adapter.Chapter(i)
		if err != nil {
			s.logger.Warn("chapter preload failed", "book_id", bookID, "index", i, "error", err)
			continue
		}
		s.cache.Set(key, string(data), int64(len(data)))
	}
}

// GetResource implements reader.Backend. refs arrive normalized by the
// content resolver, so lookup is relative to the package root.
func (s *ReaderService) GetResource(ctx context.Context, bookID, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ob, err := s.adapter(bookID)
	if err != nil {
		return nil, err
	}

	data, err := ob.adapter.ReadItem(ref)
	if err != nil {
		return nil, fmt.Errorf("read resource %q: %w", ref, err)
	}
	return data, nil
}

// GetProgress implements reader.Backend. A book that has never been read
// yields (nil, nil).
func (s *ReaderService) GetProgress(ctx context.Context, bookID string) (*domain.ReadingProgress, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	progress, err := s.store.GetProgress(ctx, bookID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get progress: %w", err)
	}
	return progress, nil
}

// SaveProgress implements reader.Backend.
func (s *ReaderService) SaveProgress(ctx context.Context, bookID, location string, progressPercent float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	progress := &domain.ReadingProgress{
		BookID:          bookID,
		Location:        location,
		ProgressPercent: progressPercent,
		LastRead:        time.Now(),
	}
	if err := s.store.SaveProgress(ctx, progress); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}

	if s.sseManager != nil {
		s.sseManager.Emit(sse.NewProgressUpdatedEvent(progress))
	}
	return nil
}

// OpenSession opens a book and builds its reading session. Opening a book
// with a live session returns that session.
func (s *ReaderService) OpenSession(ctx context.Context, bookID string) (*reader.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if sess, ok := s.sessions[bookID]; ok {
		s.mu.Unlock()
		return sess, nil
	}
	s.mu.Unlock()

	settings, err := s.store.EffectiveSettings(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	sessCfg := reader.SessionConfig{
		OpenTimeout:     s.cfg.OpenTimeout,
		ChapterTimeout:  s.cfg.ChapterTimeout,
		FlipDuration:    s.cfg.FlipDuration,
		PersistDebounce: s.cfg.PersistDebounce,
		RestoreSettle:   s.cfg.RestoreSettle,
		ProgressRate:    s.cfg.ProgressRate,
		TwoPageMode:     settings.PageMode == domain.PageModeTwoPage,
		FlipEnabled:     settings.PageMode == domain.PageModeFlipbook,
	}

	sess, err := reader.OpenSession(ctx, s, bookID, sessCfg, nil, nil, s.logger)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if existing, ok := s.sessions[bookID]; ok {
		s.mu.Unlock()
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sess.Close(closeCtx); err != nil {
			s.logger.Warn("redundant session close failed", "book_id", bookID, "error", err)
		}
		return existing, nil
	}
	s.sessions[bookID] = sess
	s.mu.Unlock()

	return sess, nil
}

// Session returns the live session for a book, if any.
func (s *ReaderService) Session(bookID string) (*reader.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[bookID]
	return sess, ok
}

// CloseSession tears down the session for a book. Closing a book with no
// session is not an error.
func (s *ReaderService) CloseSession(ctx context.Context, bookID string) error {
	s.mu.Lock()
	sess, ok := s.sessions[bookID]
	delete(s.sessions, bookID)
	s.mu.Unlock()

	if !ok {
		return nil
	}
	return sess.Close(ctx)
}

// TOC returns the table of contents resolved to chapter indexes, or
// nil for formats without one.
func (s *ReaderService) TOC(ctx context.Context, bookID string) ([]domain.TocEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ob, err := s.adapter(bookID)
	if err != nil {
		return nil, err
	}
	return ob.toc, nil
}

func resolveTocEntries(book *epub.Book, entries []epub.TocEntry) []domain.TocEntry {
	out := make([]domain.TocEntry, 0, len(entries))
	for _, e := range entries {
		resolved := domain.TocEntry{
			Title:    e.Title,
			Index:    book.SpineIndexForHref(e.Href),
			Children: resolveTocEntries(book, e.Children),
		}
		out = append(out, resolved)
	}
	return out
}

// InBookMatch is one search hit inside an open book.
type InBookMatch struct {
	ChapterIndex int    `json:"chapter_index"`
	ChapterTitle string `json:"chapter_title"`
	Snippet      string `json:"snippet"`
	Count        int    `json:"count"`
}

// snippetContext is how many characters of surrounding text a match
// snippet carries on each side.
const snippetContext = 60

// SearchInBook scans every chapter of an open book for the term and
// returns per-chapter matches with context snippets. Matching is
// case-insensitive over the chapter's plain text.
func (s *ReaderService) SearchInBook(ctx context.Context, bookID, term string) ([]InBookMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	term = strings.TrimSpace(term)
	if term == "" {
		return nil, apperrors.Validation("search term is empty")
	}

	ob, err := s.adapter(bookID)
	if err != nil {
		return nil, err
	}

	lowerTerm := strings.ToLower(term)
	var matches []InBookMatch

	for i := 0; i < ob.adapter.ChapterCount(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := ob.adapter.Chapter(i)
		if err != nil {
			s.logger.Warn("chapter unreadable during search", "book_id", bookID, "index", i, "error", err)
			continue
		}

		text := extractText(string(data))
		lower := strings.ToLower(text)

		count := strings.Count(lower, lowerTerm)
		if count == 0 {
			continue
		}

		pos := strings.Index(lower, lowerTerm)
		matches = append(matches, InBookMatch{
			ChapterIndex: i,
			ChapterTitle: chapterTitle(ob.toc, i),
			Snippet:      snippetAround(text, pos, len(term)),
			Count:        count,
		})
	}

	s.logger.Info("in-book search", "book_id", bookID, "term", term, "chapters_hit", len(matches))
	return matches, nil
}

// GetReaderSettings returns the effective settings for a book: per-book
// overrides when present, otherwise global, otherwise defaults.
func (s *ReaderService) GetReaderSettings(ctx context.Context, bookID string) (*domain.ReaderSettings, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	settings, err := s.store.EffectiveSettings(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return settings, nil
}

// SaveReaderSettings persists settings, either per-book or globally when
// bookID is empty.
func (s *ReaderService) SaveReaderSettings(ctx context.Context, bookID string, settings *domain.ReaderSettings) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if settings.PageMode != "" && !settings.PageMode.Valid() {
		return apperrors.Validationf("unknown page mode %q", settings.PageMode)
	}

	settings.UpdatedAt = time.Now()
	if bookID == "" {
		if err := s.store.SaveReaderSettings(ctx, settings); err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
	} else {
		if err := s.store.SaveBookSettings(ctx, bookID, settings); err != nil {
			return fmt.Errorf("save book settings: %w", err)
		}
	}

	s.logger.Info("reader settings saved", "book_id", bookID, "page_mode", settings.PageMode)
	return nil
}

// adapter returns the live adapter for a book id.
func (s *ReaderService) adapter(bookID string) (*openBook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ob, ok := s.open[bookID]
	if !ok {
		return nil, apperrors.NotFoundf("book %s is not open", bookID)
	}
	return ob, nil
}

// chapterTitle resolves a display title for a chapter index from the
// resolved TOC, falling back to a numbered chapter.
func chapterTitle(toc []domain.TocEntry, index int) string {
	if title, ok := tocTitleForIndex(toc, index); ok {
		return title
	}
	return fmt.Sprintf("Chapter %d", index+1)
}

func tocTitleForIndex(entries []domain.TocEntry, index int) (string, bool) {
	for _, e := range entries {
		if e.Index == index && e.Title != "" {
			return e.Title, true
		}
		if title, ok := tocTitleForIndex(e.Children, index); ok {
			return title, ok
		}
	}
	return "", false
}

func chapterCacheKey(bookID string, index int) string {
	return fmt.Sprintf("chapter:%s:%d", bookID, index)
}

// snippetAround cuts a window of text around a match, trimmed to rune
// boundaries, with ellipses marking truncation.
func snippetAround(text string, pos, matchLen int) string {
	start := pos - snippetContext
	if start < 0 {
		start = 0
	}
	end := pos + matchLen + snippetContext
	if end > len(text) {
		end = len(text)
	}

	// Back off to UTF-8 boundaries.
	for start > 0 && text[start]&0xC0 == 0x80 {
		start--
	}
	for end < len(text) && text[end]&0xC0 == 0x80 {
		end++
	}

	snippet := strings.TrimSpace(text[start:end])
	if start > 0 {
		snippet = "…" + snippet
	}
	if end < len(text) {
		snippet += "…"
	}
	return snippet
}
