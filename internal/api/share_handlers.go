package api

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shiori-reader/shiori-server/internal/http/response"
)

// handleCreateShare creates a share link for a book.
func (s *Server) handleCreateShare(w http.ResponseWriter, r *http.Request) {
	var req CreateShareRequest
	if !s.decode(w, r, &req) || !s.validate(w, &req) {
		return
	}

	duration := time.Duration(req.DurationHours) * time.Hour
	share, err := s.services.Shares.CreateShare(r.Context(), req.BookID, req.Password, duration, req.MaxAccesses)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Created(w, NewShareResponse(share), s.logger)
}

// handleListShares returns all shares, active and expired.
func (s *Server) handleListShares(w http.ResponseWriter, r *http.Request) {
	shares, err := s.services.Shares.ListShares(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, NewShareResponses(shares), s.logger)
}

// handleSharesForBook returns the shares of one book.
func (s *Server) handleSharesForBook(w http.ResponseWriter, r *http.Request) {
	shares, err := s.services.Shares.SharesForBook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, NewShareResponses(shares), s.logger)
}

// handleRevokeShare revokes a share. Sessions issued before revocation
// stop working immediately.
func (s *Server) handleRevokeShare(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Shares.RevokeShare(r.Context(), chi.URLParam(r, "id")); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

// handleLookupShare shows a visitor what a share link points at,
// without counting an access or requiring the password.
func (s *Server) handleLookupShare(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	share, err := s.services.Shares.LookupShare(ctx, chi.URLParam(r, "token"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	book, err := s.services.Library.GetBook(ctx, share.BookID)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, SharePreview{
		Token:     share.Token,
		BookTitle: book.Title,
		Authors:   book.Authors,
		Format:    book.Format,
		FileSize:  book.FileSize,
		Protected: share.PasswordHash != "",
		ExpiresAt: share.ExpiresAt,
	}, s.logger)
}

// handleAccessShare checks the password (if any), counts the access,
// and issues a session token for the download.
func (s *Server) handleAccessShare(w http.ResponseWriter, r *http.Request) {
	var req AccessShareRequest
	if r.ContentLength > 0 && !s.decode(w, r, &req) {
		return
	}

	access, err := s.services.Shares.AccessShare(r.Context(), chi.URLParam(r, "token"), req.Password)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, map[string]string{
		"session_token": access.SessionToken,
	}, s.logger)
}

// handleShareDownload streams the shared book file. Requires a
// validated share session.
func (s *Server) handleShareDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	book, err := s.services.Library.GetBook(ctx, shareBookID(ctx))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	f, err := os.Open(book.Path)
	if err != nil {
		s.logger.Error("shared book file unreadable", "book_id", book.ID, "path", book.Path, "error", err)
		response.NotFound(w, "Book file is no longer available", s.logger)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		response.InternalError(w, "Failed to read book file", s.logger)
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(book.Path)+`"`)
	w.Header().Set("Cache-Control", cacheNoStore)
	http.ServeContent(w, r, filepath.Base(book.Path), info.ModTime(), f)
}
