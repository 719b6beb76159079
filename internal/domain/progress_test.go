package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeLocation(t *testing.T) {
	tests := []struct {
		name       string
		chapter    int
		ratio      float64
		withScroll bool
		want       string
	}{
		{"chapter only", 0, 0, false, "chapter_0"},
		{"chapter only ignores ratio", 7, 0.9, false, "chapter_7"},
		{"with scroll", 3, 0.42, true, "chapter_3:scroll_0.42"},
		{"scroll zero", 1, 0, true, "chapter_1:scroll_0"},
		{"scroll one", 1, 1, true, "chapter_1:scroll_1"},
		{"ratio clamped low", 2, -0.5, true, "chapter_2:scroll_0"},
		{"ratio clamped high", 2, 1.5, true, "chapter_2:scroll_1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EncodeLocation(tt.chapter, tt.ratio, tt.withScroll))
		})
	}
}

func TestParseLocation(t *testing.T) {
	loc, err := ParseLocation("chapter_3:scroll_0.42")
	require.NoError(t, err)
	assert.Equal(t, 3, loc.Chapter)
	assert.True(t, loc.HasScroll)
	assert.InDelta(t, 0.42, loc.Ratio, 0.0001)

	loc, err = ParseLocation("chapter_12")
	require.NoError(t, err)
	assert.Equal(t, 12, loc.Chapter)
	assert.False(t, loc.HasScroll)
	assert.Zero(t, loc.Ratio)
}

func TestParseLocation_Malformed(t *testing.T) {
	tests := []string{
		"",
		"page_3",
		"chapter_",
		"chapter_-1",
		"chapter_x",
		"chapter_3:ratio_0.5",
		"chapter_3:scroll_abc",
	}

	for _, token := range tests {
		t.Run(token, func(t *testing.T) {
			_, err := ParseLocation(token)
			assert.Error(t, err)
		})
	}
}

func TestParseLocation_ClampsRatio(t *testing.T) {
	loc, err := ParseLocation("chapter_0:scroll_2.5")
	require.NoError(t, err)
	assert.Equal(t, 1.0, loc.Ratio)

	loc, err = ParseLocation("chapter_0:scroll_-0.3")
	require.NoError(t, err)
	assert.Equal(t, 0.0, loc.Ratio)
}

func TestLocation_RoundTrip(t *testing.T) {
	token := EncodeLocation(5, 0.873, true)
	loc, err := ParseLocation(token)
	require.NoError(t, err)
	assert.Equal(t, 5, loc.Chapter)
	assert.InDelta(t, 0.873, loc.Ratio, 1e-9)
}

func TestShare_Usable(t *testing.T) {
	now := mustParse(t, "2025-06-01T12:00:00Z")

	tests := []struct {
		name  string
		share Share
		want  bool
	}{
		{
			name:  "active",
			share: Share{ExpiresAt: now.Add(time.Hour)},
			want:  true,
		},
		{
			name:  "expired",
			share: Share{ExpiresAt: now.Add(-time.Minute)},
			want:  false,
		},
		{
			name:  "revoked",
			share: Share{ExpiresAt: now.Add(time.Hour), RevokedAt: &now},
			want:  false,
		},
		{
			name:  "access budget exhausted",
			share: Share{ExpiresAt: now.Add(time.Hour), MaxAccesses: 3, AccessCount: 3},
			want:  false,
		},
		{
			name:  "access budget remaining",
			share: Share{ExpiresAt: now.Add(time.Hour), MaxAccesses: 3, AccessCount: 2},
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.share.Usable(now))
		})
	}
}

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}
