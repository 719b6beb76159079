package reader

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shiori-reader/shiori-server/internal/content"
	"github.com/shiori-reader/shiori-server/internal/domain"
	apperrors "github.com/shiori-reader/shiori-server/internal/errors"
)

// RestoreKind tells the render surface where to scroll after a chapter
// is installed.
type RestoreKind int

const (
	// RestoreTop resets the viewport to the chapter start.
	RestoreTop RestoreKind = iota
	// RestoreRatio scrolls to a previously recorded ratio.
	RestoreRatio
	// RestoreHighlight scrolls to the first search hit.
	RestoreHighlight
)

// String names the restore kind for transport and logs.
func (k RestoreKind) String() string {
	switch k {
	case RestoreRatio:
		return "ratio"
	case RestoreHighlight:
		return "highlight"
	default:
		return "top"
	}
}

// Restore is the scroll restore instruction attached to a load result.
// Highlight wins over a recorded ratio, which wins over top.
type Restore struct {
	Ratio float64
	Kind  RestoreKind
}

// LoadResult is an assembled chapter ready for the render surface.
type LoadResult struct {
	Title           string
	HTML            string
	AdjacentHTML    string
	Restore         Restore
	Index           int
	ProgressPercent float64
}

// resolvedChapter is pipeline output kept for the flip neighbors.
type resolvedChapter struct {
	title string
	html  string
	index int
}

// RatioSource reports the live scroll ratio of the render surface, when
// one is known.
type RatioSource interface {
	CurrentRatio() (float64, bool)
}

// NavigatorConfig carries the navigation tuning for one session.
type NavigatorConfig struct {
	ChapterTimeout time.Duration
	TwoPageMode    bool
	FlipEnabled    bool
}

// Navigator drives chapter changes for one open book: it assembles
// chapters through the content pipeline, persists progress on every
// transition, and keeps flip neighbors preloaded off the critical path.
type Navigator struct {
	backend   Backend
	pipeline  *content.Pipeline
	logger    *slog.Logger
	positions *ScrollPositionMap
	ratios    RatioSource

	bookID string
	total  int
	cfg    NavigatorConfig

	mu        sync.Mutex
	index     int
	loaded    bool
	neighbors map[int]resolvedChapter
	gen       uint64
}

func NewNavigator(backend Backend, pipeline *content.Pipeline, logger *slog.Logger, bookID string, totalChapters int, cfg NavigatorConfig, positions *ScrollPositionMap, ratios RatioSource) *Navigator {
	return &Navigator{
		backend:   backend,
		pipeline:  pipeline,
		logger:    logger,
		positions: positions,
		ratios:    ratios,
		bookID:    bookID,
		total:     totalChapters,
		cfg:       cfg,
		neighbors: make(map[int]resolvedChapter),
	}
}

// Index returns the current chapter index.
func (n *Navigator) Index() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.index
}

// TotalChapters returns the book extent.
func (n *Navigator) TotalChapters() int {
	return n.total
}

// LoadChapter fetches, assembles, and installs the chapter at index.
// term, when non-empty, highlights matches and makes the restore
// instruction target the first hit.
func (n *Navigator) LoadChapter(ctx context.Context, index int, term string) (*LoadResult, error) {
	if index < 0 || index >= n.total {
		return nil, apperrors.NotFoundf("chapter %d out of range (book has %d chapters)", index, n.total)
	}

	n.recordOutgoingRatio()

	chapter, err := n.fetchResolved(ctx, index, term)
	if err != nil {
		return nil, err
	}

	result := &LoadResult{
		Index:           index,
		Title:           chapter.title,
		HTML:            chapter.html,
		ProgressPercent: float64(index+1) / float64(n.total) * 100,
	}

	// The adjacent slot only exists in two-page mode and its failure
	// never fails the load.
	if n.cfg.TwoPageMode && index+1 < n.total {
		adjacent, err := n.fetchResolved(ctx, index+1, term)
		if err != nil {
			n.logger.Warn("adjacent chapter unavailable", "book_id", n.bookID, "index", index+1, "error", err)
		} else {
			result.AdjacentHTML = adjacent.html
		}
	}

	result.Restore = n.restoreFor(index, term)

	n.mu.Lock()
	n.index = index
	n.loaded = true
	n.gen++
	gen := n.gen
	n.neighbors = make(map[int]resolvedChapter)
	n.mu.Unlock()

	n.saveProgress(ctx, index, result.ProgressPercent)

	if n.cfg.FlipEnabled {
		n.preloadNeighbors(ctx, index, term, gen)
	}

	return result, nil
}

// NextChapter advances one chapter, bounded by the book extent.
func (n *Navigator) NextChapter(ctx context.Context, term string) (*LoadResult, error) {
	return n.step(ctx, 1, term)
}

// PrevChapter steps back one chapter, bounded at the first chapter.
func (n *Navigator) PrevChapter(ctx context.Context, term string) (*LoadResult, error) {
	return n.step(ctx, -1, term)
}

func (n *Navigator) step(ctx context.Context, delta int, term string) (*LoadResult, error) {
	n.mu.Lock()
	target := n.index + delta
	n.mu.Unlock()
	return n.LoadChapter(ctx, target, term)
}

// NeighborReady reports whether the preloaded chapter in the given
// direction is available for a flip.
func (n *Navigator) NeighborReady(dir Direction) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.neighbors[n.index+dir.delta()]
	return ok
}

// CommitFlip installs the preloaded neighbor as the current chapter.
// Called from the flip completion callback; the animation only rendered
// a transition, the chapter swap happens here.
func (n *Navigator) CommitFlip(ctx context.Context, dir Direction, term string) (*LoadResult, error) {
	n.mu.Lock()
	target := n.index + dir.delta()
	neighbor, ok := n.neighbors[target]
	n.mu.Unlock()

	if !ok {
		// Preload was invalidated between the flip start and its
		// completion; fall back to a plain load.
		return n.LoadChapter(ctx, target, term)
	}

	n.recordOutgoingRatio()

	result := &LoadResult{
		Index:           neighbor.index,
		Title:           neighbor.title,
		HTML:            neighbor.html,
		ProgressPercent: float64(neighbor.index+1) / float64(n.total) * 100,
		Restore:         n.restoreFor(neighbor.index, term),
	}

	n.mu.Lock()
	n.index = neighbor.index
	n.gen++
	gen := n.gen
	n.neighbors = make(map[int]resolvedChapter)
	n.mu.Unlock()

	n.saveProgress(ctx, neighbor.index, result.ProgressPercent)
	n.preloadNeighbors(ctx, neighbor.index, term, gen)

	return result, nil
}

// Invalidate abandons in-flight preloads and drops cached neighbors.
// Called on session close.
func (n *Navigator) Invalidate() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.gen++
	n.neighbors = make(map[int]resolvedChapter)
}

// recordOutgoingRatio snapshots the live scroll ratio of the chapter
// being navigated away from.
func (n *Navigator) recordOutgoingRatio() {
	if n.ratios == nil {
		return
	}
	n.mu.Lock()
	index, loaded := n.index, n.loaded
	n.mu.Unlock()
	if !loaded {
		return
	}
	if ratio, ok := n.ratios.CurrentRatio(); ok {
		n.positions.Set(index, ratio)
	}
}

func (n *Navigator) restoreFor(index int, term string) Restore {
	if strings.TrimSpace(term) != "" {
		return Restore{Kind: RestoreHighlight}
	}
	if ratio, ok := n.positions.Get(index); ok {
		return Restore{Kind: RestoreRatio, Ratio: ratio}
	}
	return Restore{Kind: RestoreTop}
}

// fetchResolved loads one chapter within the chapter timeout and runs
// it through the content pipeline.
func (n *Navigator) fetchResolved(ctx context.Context, index int, term string) (resolvedChapter, error) {
	fetchCtx := ctx
	if n.cfg.ChapterTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, n.cfg.ChapterTimeout)
		defer cancel()
	}

	chapter, err := n.backend.GetChapter(fetchCtx, n.bookID, index)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return resolvedChapter{}, apperrors.Timeoutf("chapter %d load timed out", index)
		}
		return resolvedChapter{}, err
	}
	if strings.TrimSpace(chapter.Content) == "" {
		return resolvedChapter{}, apperrors.EmptyContent("chapter has no renderable content")
	}

	fetch := func(ref string) ([]byte, error) {
		return n.backend.GetResource(fetchCtx, n.bookID, ref)
	}
	html, err := n.pipeline.Process(fetchCtx, chapter.Content, fetch, term)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return resolvedChapter{}, apperrors.Timeoutf("chapter %d assembly timed out", index)
		}
		return resolvedChapter{}, err
	}

	return resolvedChapter{index: index, title: chapter.Title, html: html}, nil
}

// saveProgress is fire-and-forget: a failed write never interrupts
// navigation.
func (n *Navigator) saveProgress(ctx context.Context, index int, percent float64) {
	location := domain.EncodeLocation(index, 0, false)
	if err := n.backend.SaveProgress(context.WithoutCancel(ctx), n.bookID, location, percent); err != nil {
		n.logger.Warn("progress save failed", "book_id", n.bookID, "location", location, "error", err)
	}
}

// preloadNeighbors resolves both adjacent chapters off the critical
// path. Results are applied only if the navigator is still on the same
// chapter when they arrive.
func (n *Navigator) preloadNeighbors(ctx context.Context, index int, term string, gen uint64) {
	for _, target := range []int{index + 1, index - 1} {
		if target < 0 || target >= n.total {
			continue
		}
		go func(target int) {
			preloadCtx := context.WithoutCancel(ctx)
			chapter, err := n.fetchResolved(preloadCtx, target, term)
			if err != nil {
				n.logger.Debug("neighbor preload failed", "book_id", n.bookID, "index", target, "error", err)
				return
			}

			n.mu.Lock()
			defer n.mu.Unlock()
			if n.gen != gen {
				// The reader moved on; a stale preload must not
				// overwrite the current adjacency.
				return
			}
			n.neighbors[target] = chapter
		}(target)
	}
}
