package reader

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TrackerConfig carries the scroll tracking cadence for one session.
type TrackerConfig struct {
	// ProgressRate caps live updates per second.
	ProgressRate int
	// PersistDebounce is the scroll-inactivity window before the
	// position is written.
	PersistDebounce time.Duration
	// RestoreSettle is the wait after render before a restore scroll is
	// applied, giving layout time to complete.
	RestoreSettle time.Duration
}

// Tracker observes viewport scroll events, publishes live progress at a
// throttled cadence, and persists the position on a debounce so a burst
// of scrolling produces at most one write per quiet window.
type Tracker struct {
	logger  *slog.Logger
	limiter *rate.Limiter
	persist func(chapter int, ratio float64)
	onLive  func(ratio float64)
	cfg     TrackerConfig

	mu           sync.Mutex
	chapter      int
	ratio        float64
	hasRatio     bool
	atBottom     bool
	onBottom     func()
	debounce     *time.Timer
	restoreTimer *time.Timer
	closed       bool
}

func NewTracker(cfg TrackerConfig, persist func(chapter int, ratio float64), onLive func(ratio float64), logger *slog.Logger) *Tracker {
	return &Tracker{
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(cfg.ProgressRate), 1),
		persist: persist,
		onLive:  onLive,
		cfg:     cfg,
	}
}

// ScrollRatio converts viewport geometry to a normalized position.
// Content that does not overflow reads as 0.
func ScrollRatio(scrollTop, scrollHeight, clientHeight float64) float64 {
	overflow := scrollHeight - clientHeight
	if overflow <= 0 {
		return 0
	}
	return clampRatio(scrollTop / overflow)
}

// OnBottom registers the callback fired when the viewport first reaches
// the end of a chapter. It fires at most once per chapter.
func (t *Tracker) OnBottom(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onBottom = fn
}

// SetChapter switches tracking to a new chapter. Any pending write for
// the previous chapter is dropped; chapter transitions persist their own
// progress through the navigator.
func (t *Tracker) SetChapter(index int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.chapter = index
	t.hasRatio = false
	t.atBottom = false
	t.stopDebounceLocked()
}

// Observe records one scroll event. Live updates are throttled through
// the rate limiter; the persistence debounce timer restarts on every
// event so only scroll inactivity triggers a write.
func (t *Tracker) Observe(scrollTop, scrollHeight, clientHeight float64) {
	ratio := ScrollRatio(scrollTop, scrollHeight, clientHeight)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.ratio = ratio
	t.hasRatio = true
	t.stopDebounceLocked()
	t.debounce = time.AfterFunc(t.cfg.PersistDebounce, t.flush)
	live := t.limiter.Allow()
	var bottom func()
	if ratio >= 1 && !t.atBottom {
		t.atBottom = true
		bottom = t.onBottom
	}
	t.mu.Unlock()

	if live && t.onLive != nil {
		t.onLive(ratio)
	}
	if bottom != nil {
		bottom()
	}
}

// CurrentRatio returns the last observed ratio for the active chapter.
func (t *Tracker) CurrentRatio() (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ratio, t.hasRatio
}

// RestoreAfterSettle schedules apply with the given ratio once layout
// has settled. A second restore supersedes a pending one.
func (t *Tracker) RestoreAfterSettle(ratio float64, apply func(float64)) {
	ratio = clampRatio(ratio)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	if t.restoreTimer != nil {
		t.restoreTimer.Stop()
	}
	t.restoreTimer = time.AfterFunc(t.cfg.RestoreSettle, func() {
		apply(ratio)
	})
}

// Close stops all timers and writes any pending position so the last
// observed scroll survives the session.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	pending := t.debounce != nil && t.hasRatio
	chapter, ratio := t.chapter, t.ratio
	t.stopDebounceLocked()
	if t.restoreTimer != nil {
		t.restoreTimer.Stop()
		t.restoreTimer = nil
	}
	t.mu.Unlock()

	if pending {
		t.persist(chapter, ratio)
	}
}

func (t *Tracker) flush() {
	t.mu.Lock()
	if t.closed || !t.hasRatio {
		t.mu.Unlock()
		return
	}
	chapter, ratio := t.chapter, t.ratio
	t.debounce = nil
	t.mu.Unlock()

	t.persist(chapter, ratio)
}

func (t *Tracker) stopDebounceLocked() {
	if t.debounce != nil {
		t.debounce.Stop()
		t.debounce = nil
	}
}
