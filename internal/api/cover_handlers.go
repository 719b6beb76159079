package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shiori-reader/shiori-server/internal/http/response"
)

// handleGetCover serves the full-size cover JPEG.
func (s *Server) handleGetCover(w http.ResponseWriter, r *http.Request) {
	s.serveCover(w, r, s.services.Covers.Cover)
}

// handleGetThumbnail serves the thumbnail JPEG.
func (s *Server) handleGetThumbnail(w http.ResponseWriter, r *http.Request) {
	s.serveCover(w, r, s.services.Covers.Thumbnail)
}

// serveCover writes cover bytes with an ETag derived from the stored
// file so clients can revalidate cheaply.
func (s *Server) serveCover(w http.ResponseWriter, r *http.Request, fetch func(context.Context, string) ([]byte, error)) {
	bookID := chi.URLParam(r, "id")

	if hash, err := s.services.Covers.CoverHash(bookID); err == nil {
		etag := `"` + hash + `"`
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
	}

	data, err := fetch(r.Context(), bookID)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	w.Header().Set("Cache-Control", cacheOneDay)
	w.Header().Set("Content-Type", "image/jpeg")
	_, _ = w.Write(data)
}
