package api

import (
	"time"

	"github.com/shiori-reader/shiori-server/internal/domain"
)

// ImportBookRequest asks the library to import a file already on disk.
type ImportBookRequest struct {
	Path string `json:"path" validate:"required"`
}

// BookUpdateRequest contains fields that can be updated on a book.
// Only non-nil fields are applied (true PATCH semantics); omitempty is
// intentionally absent so "not provided" and "set to empty" stay
// distinguishable.
type BookUpdateRequest struct {
	Title       *string   `json:"title"`
	Authors     *[]string `json:"authors"`
	Series      *string   `json:"series"`
	SeriesIdx   *float64  `json:"series_index"`
	Publisher   *string   `json:"publisher"`
	ISBN        *string   `json:"isbn"`
	Language    *string   `json:"language"`
	Description *string   `json:"description"`
}

// SessionResponse describes an opened reading session: the book extent
// plus where reading resumes.
type SessionResponse struct {
	Title          string   `json:"title"`
	TotalChapters  int      `json:"total_chapters"`
	InitialChapter int      `json:"initial_chapter"`
	InitialScroll  *float64 `json:"initial_scroll,omitempty"`
}

// RestoreResponse tells the client where to scroll once a chapter is
// installed: "top", "ratio", or "highlight".
type RestoreResponse struct {
	Kind  string  `json:"kind"`
	Ratio float64 `json:"ratio,omitempty"`
}

// SessionChapterResponse is an assembled chapter ready to render:
// resolved, highlighted, and sanitized markup with its scroll restore
// instruction.
type SessionChapterResponse struct {
	Index           int             `json:"index"`
	Title           string          `json:"title"`
	HTML            string          `json:"html"`
	AdjacentHTML    string          `json:"adjacent_html,omitempty"`
	ProgressPercent float64         `json:"progress_percent"`
	Restore         RestoreResponse `json:"restore"`
}

// SaveProgressRequest carries a reading position.
type SaveProgressRequest struct {
	Location        string  `json:"location" validate:"required,location"`
	ProgressPercent float64 `json:"progress_percent" validate:"gte=0,lte=100"`
}

// CreateAnnotationRequest is the request body for creating an annotation.
type CreateAnnotationRequest struct {
	Type         string `json:"type" validate:"required,oneof=highlight bookmark"`
	Location     string `json:"location" validate:"required,location"`
	SelectedText string `json:"selected_text"`
	Note         string `json:"note"`
	Color        string `json:"color"`
}

// UpdateAnnotationRequest edits the mutable parts of an annotation. The
// anchor (type, location, selection) is immutable after creation.
type UpdateAnnotationRequest struct {
	Note  string `json:"note"`
	Color string `json:"color"`
}

// CreateCollectionRequest is the request body for creating a collection.
type CreateCollectionRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

// UpdateCollectionRequest applies PATCH semantics to a collection.
type UpdateCollectionRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// CreateTagRequest is the request body for creating a tag.
type CreateTagRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
}

// CreateShareRequest is the request body for creating a share link.
type CreateShareRequest struct {
	BookID        string `json:"book_id" validate:"required"`
	Password      string `json:"password" validate:"omitempty,min=4,max=1024"`
	DurationHours int    `json:"duration_hours" validate:"gte=0"`
	MaxAccesses   int    `json:"max_accesses" validate:"gte=0"`
}

// AccessShareRequest carries the password for a protected share.
type AccessShareRequest struct {
	Password string `json:"password"`
}

// ShareResponse is the client-facing representation of a share. The
// password hash never leaves the server.
type ShareResponse struct {
	ID          string     `json:"id"`
	BookID      string     `json:"book_id"`
	Token       string     `json:"token"`
	Protected   bool       `json:"protected"`
	ExpiresAt   time.Time  `json:"expires_at"`
	MaxAccesses int        `json:"max_accesses,omitempty"`
	AccessCount int        `json:"access_count"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// NewShareResponse converts a domain share for API output.
func NewShareResponse(share *domain.Share) ShareResponse {
	return ShareResponse{
		ID:          share.ID,
		BookID:      share.BookID,
		Token:       share.Token,
		Protected:   share.PasswordHash != "",
		ExpiresAt:   share.ExpiresAt,
		MaxAccesses: share.MaxAccesses,
		AccessCount: share.AccessCount,
		RevokedAt:   share.RevokedAt,
		CreatedAt:   share.CreatedAt,
	}
}

// NewShareResponses converts a slice of domain shares.
func NewShareResponses(shares []*domain.Share) []ShareResponse {
	out := make([]ShareResponse, 0, len(shares))
	for _, share := range shares {
		out = append(out, NewShareResponse(share))
	}
	return out
}

// SharePreview is what an unauthenticated visitor sees when they open a
// share link: enough to decide whether to enter the password.
type SharePreview struct {
	Token     string    `json:"token"`
	BookTitle string    `json:"book_title"`
	Authors   []string  `json:"authors,omitempty"`
	Format    string    `json:"format"`
	FileSize  int64     `json:"file_size,omitempty"`
	Protected bool      `json:"protected"`
	ExpiresAt time.Time `json:"expires_at"`
}
