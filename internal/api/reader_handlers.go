package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shiori-reader/shiori-server/internal/domain"
	apperrors "github.com/shiori-reader/shiori-server/internal/errors"
	"github.com/shiori-reader/shiori-server/internal/http/response"
	"github.com/shiori-reader/shiori-server/internal/reader"
)

// handleOpenBook opens a book's backend adapter and returns its metadata.
func (s *Server) handleOpenBook(w http.ResponseWriter, r *http.Request) {
	meta, err := s.services.Reader.OpenBook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, meta, s.logger)
}

// handleCloseBook releases a book's adapter. Closing a book that is not
// open succeeds.
func (s *Server) handleCloseBook(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Reader.CloseBook(r.Context(), chi.URLParam(r, "id")); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

// handleOpenSession opens a full reading session for a book: the
// format adapter plus the navigation, scroll tracking, and flip
// machinery, tuned by the book's effective reader settings.
func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.services.Reader.OpenSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	resp := SessionResponse{
		Title:          sess.Metadata().Title,
		TotalChapters:  sess.Metadata().TotalChapters,
		InitialChapter: sess.InitialChapter(),
	}
	if ratio, ok := sess.InitialScroll(); ok {
		resp.InitialScroll = &ratio
	}
	response.Success(w, resp, s.logger)
}

// handleCloseSession tears the session down and releases the book.
// Closing a book with no session succeeds.
func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Reader.CloseSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

// handleSessionChapter serves a chapter through the session's content
// pipeline: resolved resources, optional highlighting via the q
// parameter, sanitized markup, and a scroll restore instruction.
func (s *Server) handleSessionChapter(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		response.BadRequest(w, "Chapter index must be a number", s.logger)
		return
	}

	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	result, err := sess.LoadChapter(r.Context(), index, r.URL.Query().Get("q"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, sessionChapterResponse(result), s.logger)
}

// handleSessionNext advances the session one chapter.
func (s *Server) handleSessionNext(w http.ResponseWriter, r *http.Request) {
	s.stepSession(w, r, func(sess *reader.Session) (*reader.LoadResult, error) {
		return sess.NextChapter(r.Context(), r.URL.Query().Get("q"))
	})
}

// handleSessionPrev steps the session back one chapter.
func (s *Server) handleSessionPrev(w http.ResponseWriter, r *http.Request) {
	s.stepSession(w, r, func(sess *reader.Session) (*reader.LoadResult, error) {
		return sess.PrevChapter(r.Context(), r.URL.Query().Get("q"))
	})
}

func (s *Server) stepSession(w http.ResponseWriter, r *http.Request, step func(*reader.Session) (*reader.LoadResult, error)) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	result, err := step(sess)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, sessionChapterResponse(result), s.logger)
}

// session looks up the live session for the book in the route, writing
// the error response itself when there is none.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*reader.Session, bool) {
	bookID := chi.URLParam(r, "id")
	sess, ok := s.services.Reader.Session(bookID)
	if !ok {
		response.HandleError(w, apperrors.NotFoundf("no reading session for book %s", bookID), s.logger)
		return nil, false
	}
	return sess, true
}

func sessionChapterResponse(result *reader.LoadResult) SessionChapterResponse {
	return SessionChapterResponse{
		Index:           result.Index,
		Title:           result.Title,
		HTML:            result.HTML,
		AdjacentHTML:    result.AdjacentHTML,
		ProgressPercent: result.ProgressPercent,
		Restore: RestoreResponse{
			Kind:  result.Restore.Kind.String(),
			Ratio: result.Restore.Ratio,
		},
	}
}

// handleGetTOC returns the book's table of contents resolved to chapter
// indexes.
func (s *Server) handleGetTOC(w http.ResponseWriter, r *http.Request) {
	toc, err := s.services.Reader.TOC(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, toc, s.logger)
}

// handleGetChapter returns one chapter's raw content.
func (s *Server) handleGetChapter(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		response.BadRequest(w, "Chapter index must be a number", s.logger)
		return
	}

	chapter, err := s.services.Reader.GetChapter(r.Context(), chi.URLParam(r, "id"), index)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, chapter, s.logger)
}

// handleGetResource streams an in-archive resource (image, stylesheet,
// font) referenced by a chapter. The wildcard path is the archive-root
// relative reference.
func (s *Server) handleGetResource(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "*")
	if ref == "" {
		response.BadRequest(w, "Resource path is required", s.logger)
		return
	}

	data, err := s.services.Reader.GetResource(r.Context(), chi.URLParam(r, "id"), ref)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	// Resources inside an archive never change for a given book.
	w.Header().Set("Cache-Control", cacheOneWeek)
	w.Header().Set("Content-Type", http.DetectContentType(data))
	_, _ = w.Write(data)
}

// handleSearchInBook searches the open book's text for a term.
func (s *Server) handleSearchInBook(w http.ResponseWriter, r *http.Request) {
	matches, err := s.services.Reader.SearchInBook(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("q"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, matches, s.logger)
}

// handleGetProgress returns the saved reading position, or null when
// the book has never been read.
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := s.services.Reader.GetProgress(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, progress, s.logger)
}

// handleSaveProgress persists a reading position.
func (s *Server) handleSaveProgress(w http.ResponseWriter, r *http.Request) {
	var req SaveProgressRequest
	if !s.decode(w, r, &req) || !s.validate(w, &req) {
		return
	}

	if err := s.services.Reader.SaveProgress(r.Context(), chi.URLParam(r, "id"), req.Location, req.ProgressPercent); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

// handleGetReaderSettings returns the global reader settings.
func (s *Server) handleGetReaderSettings(w http.ResponseWriter, r *http.Request) {
	s.serveReaderSettings(w, r, "")
}

// handleSaveReaderSettings saves the global reader settings.
func (s *Server) handleSaveReaderSettings(w http.ResponseWriter, r *http.Request) {
	s.saveReaderSettings(w, r, "")
}

// handleGetBookSettings returns the effective settings for one book.
func (s *Server) handleGetBookSettings(w http.ResponseWriter, r *http.Request) {
	s.serveReaderSettings(w, r, chi.URLParam(r, "id"))
}

// handleSaveBookSettings saves a per-book settings override.
func (s *Server) handleSaveBookSettings(w http.ResponseWriter, r *http.Request) {
	s.saveReaderSettings(w, r, chi.URLParam(r, "id"))
}

func (s *Server) serveReaderSettings(w http.ResponseWriter, r *http.Request, bookID string) {
	settings, err := s.services.Reader.GetReaderSettings(r.Context(), bookID)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, settings, s.logger)
}

func (s *Server) saveReaderSettings(w http.ResponseWriter, r *http.Request, bookID string) {
	var settings domain.ReaderSettings
	if !s.decode(w, r, &settings) {
		return
	}

	if err := s.services.Reader.SaveReaderSettings(r.Context(), bookID, &settings); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, &settings, s.logger)
}
