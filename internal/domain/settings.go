package domain

import "time"

// PageMode selects how chapter content is laid out in the reader.
type PageMode string

// Reader layout modes. Flipbook mode enables the page-turn animation and
// two-page mode renders the adjacent chapter in a second column.
const (
	PageModeScrolled PageMode = "scrolled"
	PageModeFlipbook PageMode = "flipbook"
	PageModeTwoPage  PageMode = "two_page"
)

// Valid reports whether m is a known page mode.
func (m PageMode) Valid() bool {
	switch m {
	case PageModeScrolled, PageModeFlipbook, PageModeTwoPage:
		return true
	}
	return false
}

// ReaderSettings are the per-installation reading preferences.
type ReaderSettings struct {
	FontFamily string    `json:"font_family"`
	FontSize   int       `json:"font_size"`
	LineHeight float64   `json:"line_height"`
	Theme      string    `json:"theme"`
	PageMode   PageMode  `json:"page_mode"`
	MarginSize int       `json:"margin_size"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DefaultReaderSettings returns the settings used before the reader has
// ever saved any.
func DefaultReaderSettings() *ReaderSettings {
	return &ReaderSettings{
		FontFamily: "serif",
		FontSize:   16,
		LineHeight: 1.6,
		Theme:      "light",
		PageMode:   PageModeScrolled,
		MarginSize: 2,
		UpdatedAt:  time.Now(),
	}
}
