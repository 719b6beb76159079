package reader

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shiori-reader/shiori-server/internal/content"
	"github.com/shiori-reader/shiori-server/internal/domain"
	apperrors "github.com/shiori-reader/shiori-server/internal/errors"
)

// SessionConfig carries the tuning for one reading session. Mode flags
// come from the effective reader settings, the rest from server
// configuration.
type SessionConfig struct {
	OpenTimeout     time.Duration
	ChapterTimeout  time.Duration
	FlipDuration    time.Duration
	PersistDebounce time.Duration
	RestoreSettle   time.Duration
	ProgressRate    int
	TwoPageMode     bool
	FlipEnabled     bool
}

// Session owns everything alive while one book is open for reading:
// the navigator, the scroll tracker, the flip engine, and the scroll
// position map. Close tears all of it down before releasing the book.
type Session struct {
	backend   Backend
	logger    *slog.Logger
	bookID    string
	meta      *domain.BookMetadata
	positions *ScrollPositionMap
	navigator *Navigator
	tracker   *Tracker
	flip      *FlipEngine

	initial    domain.Location
	hasInitial bool

	mu        sync.Mutex
	term      string
	onCommit  func(*LoadResult)
	onAdvance func(*LoadResult)

	closeOnce sync.Once
	closeErr  error
}

// noopOverlay lets sessions run without a render surface attached.
type noopOverlay struct{}

func (noopOverlay) SetShadow(fold, intensity float64) {}
func (noopOverlay) Clear()                            {}

// OpenSession opens a book and assembles its reading machinery. overlay
// and onLive may be nil when no render surface is attached yet. The
// persisted reading position, when present, seeds InitialChapter and
// InitialScroll.
func OpenSession(ctx context.Context, backend Backend, bookID string, cfg SessionConfig, overlay Overlay, onLive func(ratio float64), logger *slog.Logger) (*Session, error) {
	openCtx := ctx
	if cfg.OpenTimeout > 0 {
		var cancel context.CancelFunc
		openCtx, cancel = context.WithTimeout(ctx, cfg.OpenTimeout)
		defer cancel()
	}

	meta, err := backend.OpenBook(openCtx, bookID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.Timeoutf("opening book %s timed out", bookID)
		}
		return nil, err
	}

	s := &Session{
		backend:   backend,
		logger:    logger,
		bookID:    bookID,
		meta:      meta,
		positions: NewScrollPositionMap(),
	}

	s.tracker = NewTracker(TrackerConfig{
		ProgressRate:    cfg.ProgressRate,
		PersistDebounce: cfg.PersistDebounce,
		RestoreSettle:   cfg.RestoreSettle,
	}, s.persistScroll, onLive, logger)

	s.navigator = NewNavigator(backend, content.NewPipeline(logger), logger, bookID, meta.TotalChapters, NavigatorConfig{
		ChapterTimeout: cfg.ChapterTimeout,
		TwoPageMode:    cfg.TwoPageMode,
		FlipEnabled:    cfg.FlipEnabled,
	}, s.positions, s.tracker)

	if overlay == nil {
		overlay = noopOverlay{}
	}
	s.flip = NewFlipEngine(cfg.FlipEnabled, cfg.FlipDuration, overlay, s.navigator, s.commitFlip)

	// With flip mode off, reaching the end of a chapter continues into
	// the next one. Flip mode navigates through the engine instead.
	if !cfg.FlipEnabled {
		s.tracker.OnBottom(s.autoAdvance)
	}

	s.seedInitialPosition(ctx)

	return s, nil
}

// seedInitialPosition reads persisted progress once at open time. A
// missing or malformed record falls back to the book start.
func (s *Session) seedInitialPosition(ctx context.Context) {
	progress, err := s.backend.GetProgress(ctx, s.bookID)
	if err != nil {
		s.logger.Warn("reading progress unavailable", "book_id", s.bookID, "error", err)
		return
	}
	if progress == nil {
		return
	}

	loc, err := domain.ParseLocation(progress.Location)
	if err != nil {
		s.logger.Warn("discarding malformed location token", "book_id", s.bookID, "location", progress.Location)
		return
	}
	if loc.Chapter >= s.meta.TotalChapters {
		return
	}

	s.initial = loc
	s.hasInitial = true
	if loc.HasScroll {
		s.positions.Set(loc.Chapter, loc.Ratio)
	}
}

// Metadata returns the open book's metadata.
func (s *Session) Metadata() *domain.BookMetadata {
	return s.meta
}

// InitialChapter is the chapter to load first: the persisted position
// when one exists, otherwise chapter 0.
func (s *Session) InitialChapter() int {
	if s.hasInitial {
		return s.initial.Chapter
	}
	return 0
}

// InitialScroll returns the persisted scroll ratio for the initial
// chapter, when the location token carried one.
func (s *Session) InitialScroll() (float64, bool) {
	if s.hasInitial && s.initial.HasScroll {
		return s.initial.Ratio, true
	}
	return 0, false
}

// LoadChapter loads a chapter and points the tracker at it.
func (s *Session) LoadChapter(ctx context.Context, index int, term string) (*LoadResult, error) {
	s.setTerm(term)
	result, err := s.navigator.LoadChapter(ctx, index, term)
	if err != nil {
		return nil, err
	}
	s.tracker.SetChapter(result.Index)
	return result, nil
}

// NextChapter advances one chapter.
func (s *Session) NextChapter(ctx context.Context, term string) (*LoadResult, error) {
	s.setTerm(term)
	result, err := s.navigator.NextChapter(ctx, term)
	if err != nil {
		return nil, err
	}
	s.tracker.SetChapter(result.Index)
	return result, nil
}

// PrevChapter steps back one chapter.
func (s *Session) PrevChapter(ctx context.Context, term string) (*LoadResult, error) {
	s.setTerm(term)
	result, err := s.navigator.PrevChapter(ctx, term)
	if err != nil {
		return nil, err
	}
	s.tracker.SetChapter(result.Index)
	return result, nil
}

// Navigator exposes chapter navigation state.
func (s *Session) Navigator() *Navigator { return s.navigator }

// Tracker exposes scroll tracking for the render surface.
func (s *Session) Tracker() *Tracker { return s.tracker }

// Flip exposes the page flip engine.
func (s *Session) Flip() *FlipEngine { return s.flip }

// OnFlipCommit registers the callback invoked with the newly installed
// chapter after a flip completes.
func (s *Session) OnFlipCommit(fn func(*LoadResult)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCommit = fn
}

// OnAutoAdvance registers the callback invoked with the next chapter
// after the viewport scrolls past the end of the current one.
func (s *Session) OnAutoAdvance(fn func(*LoadResult)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onAdvance = fn
}

// autoAdvance is the tracker's bottom-of-chapter callback: with flip
// mode off, reading continues into the next chapter without an explicit
// navigation.
func (s *Session) autoAdvance() {
	s.mu.Lock()
	term := s.term
	onAdvance := s.onAdvance
	s.mu.Unlock()

	result, err := s.NextChapter(context.Background(), term)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			// Bottom of the last chapter; nowhere to advance to.
			return
		}
		s.logger.Warn("auto-advance failed", "book_id", s.bookID, "error", err)
		return
	}
	if onAdvance != nil {
		onAdvance(result)
	}
}

// commitFlip is the flip completion callback: the animation finished,
// so the chapter change is committed now.
func (s *Session) commitFlip(dir Direction) {
	s.mu.Lock()
	term := s.term
	onCommit := s.onCommit
	s.mu.Unlock()

	result, err := s.navigator.CommitFlip(context.Background(), dir, term)
	if err != nil {
		s.logger.Warn("flip commit failed", "book_id", s.bookID, "direction", dir.String(), "error", err)
		return
	}
	s.tracker.SetChapter(result.Index)
	if onCommit != nil {
		onCommit(result)
	}
}

// persistScroll writes a debounced scroll position with its composite
// location token.
func (s *Session) persistScroll(chapter int, ratio float64) {
	location := domain.EncodeLocation(chapter, ratio, true)
	percent := float64(chapter+1) / float64(s.meta.TotalChapters) * 100
	if err := s.backend.SaveProgress(context.Background(), s.bookID, location, percent); err != nil {
		s.logger.Warn("scroll progress save failed", "book_id", s.bookID, "location", location, "error", err)
	}
}

func (s *Session) setTerm(term string) {
	s.mu.Lock()
	s.term = term
	s.mu.Unlock()
}

// Close tears down timers, animations, and preloads, then releases the
// book. Safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.flip.Cancel()
		s.tracker.Close()
		s.navigator.Invalidate()
		s.positions.Clear()
		s.closeErr = s.backend.CloseBook(ctx, s.bookID)
	})
	return s.closeErr
}
