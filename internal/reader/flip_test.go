package reader

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingOverlay captures shadow frames for assertions.
type recordingOverlay struct {
	mu        sync.Mutex
	fold      float64
	intensity float64
	frames    int
	cleared   int
}

func (o *recordingOverlay) SetShadow(fold, intensity float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fold = fold
	o.intensity = intensity
	o.frames++
}

func (o *recordingOverlay) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cleared++
}

type staticNeighbors struct {
	forward  bool
	backward bool
}

func (s staticNeighbors) NeighborReady(dir Direction) bool {
	if dir == Forward {
		return s.forward
	}
	return s.backward
}

func TestFlipRejectedWhenDisabled(t *testing.T) {
	engine := NewFlipEngine(false, 100*time.Millisecond, &recordingOverlay{}, staticNeighbors{forward: true, backward: true}, nil)

	assert.False(t, engine.FlipForward())
	assert.False(t, engine.FlipBackward())
	assert.Equal(t, Idle, engine.State())
}

func TestFlipRejectedWithoutNeighbor(t *testing.T) {
	engine := NewFlipEngine(true, 100*time.Millisecond, &recordingOverlay{}, staticNeighbors{}, nil)

	assert.False(t, engine.FlipForward())
	assert.False(t, engine.FlipBackward())
}

func TestFlipRejectedWhileActive(t *testing.T) {
	engine := NewFlipEngine(true, 100*time.Millisecond, &recordingOverlay{}, staticNeighbors{forward: true, backward: true}, nil)

	require.True(t, engine.FlipForward())
	assert.Equal(t, FlippingForward, engine.State())
	assert.False(t, engine.FlipForward())
	assert.False(t, engine.FlipBackward())
}

func TestFlipShadowCurve(t *testing.T) {
	overlay := &recordingOverlay{}
	engine := NewFlipEngine(true, 100*time.Millisecond, overlay, staticNeighbors{forward: true}, nil)

	started := time.Now()
	clock := started
	engine.now = func() time.Time { return clock }

	require.True(t, engine.FlipForward())

	// Midpoint: fold at half, shadow at peak.
	clock = started.Add(50 * time.Millisecond)
	engine.Tick()
	assert.InDelta(t, 0.5, overlay.fold, 0.001)
	assert.InDelta(t, 1.0, overlay.intensity, 0.001)

	// Past the timer the final pose holds until the completion signal.
	clock = started.Add(250 * time.Millisecond)
	engine.Tick()
	assert.InDelta(t, 1.0, overlay.fold, 0.001)
	assert.InDelta(t, math.Sin(math.Pi), overlay.intensity, 0.001)
	assert.Equal(t, FlippingForward, engine.State())
}

func TestFlipCompleteCommitsDirection(t *testing.T) {
	overlay := &recordingOverlay{}
	var got []Direction
	engine := NewFlipEngine(true, 50*time.Millisecond, overlay, staticNeighbors{forward: true, backward: true}, func(dir Direction) {
		got = append(got, dir)
	})

	require.True(t, engine.FlipBackward())
	engine.Complete()

	assert.Equal(t, []Direction{Backward}, got)
	assert.Equal(t, Idle, engine.State())
	assert.Equal(t, 1, overlay.cleared)

	// Completing while idle is a no-op.
	engine.Complete()
	assert.Equal(t, []Direction{Backward}, got)
	assert.Equal(t, 1, overlay.cleared)
}

func TestFlipCancel(t *testing.T) {
	overlay := &recordingOverlay{}
	fired := false
	engine := NewFlipEngine(true, 50*time.Millisecond, overlay, staticNeighbors{forward: true}, func(Direction) {
		fired = true
	})

	require.True(t, engine.FlipForward())
	engine.Cancel()

	assert.Equal(t, Idle, engine.State())
	assert.Equal(t, 1, overlay.cleared)
	assert.False(t, fired)

	// Cancel while idle leaves the overlay alone.
	engine.Cancel()
	assert.Equal(t, 1, overlay.cleared)
}

func TestFlipRestartsAfterCompletion(t *testing.T) {
	engine := NewFlipEngine(true, 50*time.Millisecond, &recordingOverlay{}, staticNeighbors{forward: true}, nil)

	require.True(t, engine.FlipForward())
	engine.Complete()
	assert.True(t, engine.FlipForward())
}
