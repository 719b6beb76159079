package reader

import "sync"

// ScrollPositionMap remembers the last observed scroll ratio per chapter
// for one open book, so returning to a visited chapter restores position
// without a storage round trip. It lives only as long as the session.
type ScrollPositionMap struct {
	mu     sync.Mutex
	ratios map[int]float64
}

func NewScrollPositionMap() *ScrollPositionMap {
	return &ScrollPositionMap{ratios: make(map[int]float64)}
}

func (m *ScrollPositionMap) Set(chapter int, ratio float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ratios[chapter] = clampRatio(ratio)
}

func (m *ScrollPositionMap) Get(chapter int) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ratio, ok := m.ratios[chapter]
	return ratio, ok
}

func (m *ScrollPositionMap) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ratios = make(map[int]float64)
}

func clampRatio(ratio float64) float64 {
	switch {
	case ratio < 0:
		return 0
	case ratio > 1:
		return 1
	}
	return ratio
}
