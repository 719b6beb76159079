package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ReadingProgress is the persisted reading position for one book.
// Location is a composite token: "chapter_<N>" or "chapter_<N>:scroll_<ratio>"
// where ratio is a normalized scroll position in [0,1].
type ReadingProgress struct {
	BookID          string    `json:"book_id"`
	Location        string    `json:"location"`
	ProgressPercent float64   `json:"progress_percent"`
	LastRead        time.Time `json:"last_read"`
}

const (
	chapterTokenPrefix = "chapter_"
	scrollTokenPrefix  = "scroll_"
)

// EncodeLocation builds a location token from a chapter index and an
// optional scroll ratio. Ratios are clamped to [0,1] and written with
// enough precision to restore position within viewport tolerance.
func EncodeLocation(chapter int, ratio float64, withScroll bool) string {
	if !withScroll {
		return chapterTokenPrefix + strconv.Itoa(chapter)
	}
	if ratio < 0 {
		ratio = 0
	} else if ratio > 1 {
		ratio = 1
	}
	return fmt.Sprintf("%s%d:%s%s", chapterTokenPrefix, chapter, scrollTokenPrefix,
		strconv.FormatFloat(ratio, 'f', -1, 64))
}

// Location is a parsed reading location.
type Location struct {
	Chapter   int
	Ratio     float64
	HasScroll bool
}

// ParseLocation decodes a location token. Unknown or malformed tokens
// return an error; callers typically fall back to chapter 0.
func ParseLocation(token string) (Location, error) {
	var loc Location

	chapterPart, scrollPart, hasScroll := strings.Cut(token, ":")
	if !strings.HasPrefix(chapterPart, chapterTokenPrefix) {
		return loc, fmt.Errorf("malformed location token %q", token)
	}

	chapter, err := strconv.Atoi(strings.TrimPrefix(chapterPart, chapterTokenPrefix))
	if err != nil || chapter < 0 {
		return loc, fmt.Errorf("malformed chapter index in location token %q", token)
	}
	loc.Chapter = chapter

	if !hasScroll {
		return loc, nil
	}

	if !strings.HasPrefix(scrollPart, scrollTokenPrefix) {
		return loc, fmt.Errorf("malformed scroll segment in location token %q", token)
	}
	ratio, err := strconv.ParseFloat(strings.TrimPrefix(scrollPart, scrollTokenPrefix), 64)
	if err != nil {
		return loc, fmt.Errorf("malformed scroll ratio in location token %q", token)
	}
	if ratio < 0 {
		ratio = 0
	} else if ratio > 1 {
		ratio = 1
	}
	loc.Ratio = ratio
	loc.HasScroll = true
	return loc, nil
}
