package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shiori-reader/shiori-server/internal/http/response"
)

// handleListBooks returns a page of the library.
func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	result, err := s.services.Library.ListBooks(r.Context(), paginationFromQuery(r))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, result, s.logger)
}

// handleGetBook returns a single book.
func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	book, err := s.services.Library.GetBook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, book, s.logger)
}

// handleImportBook imports a file already on disk into the library.
func (s *Server) handleImportBook(w http.ResponseWriter, r *http.Request) {
	var req ImportBookRequest
	if !s.decode(w, r, &req) || !s.validate(w, &req) {
		return
	}

	book, err := s.services.Library.ImportBook(r.Context(), req.Path)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Created(w, book, s.logger)
}

// handleUpdateBook updates a book's metadata (PATCH semantics). Only
// fields present in the request body are applied.
func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bookID := chi.URLParam(r, "id")

	var req BookUpdateRequest
	if !s.decode(w, r, &req) {
		return
	}

	book, err := s.services.Library.GetBook(ctx, bookID)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	if req.Title != nil {
		book.Title = *req.Title
	}
	if req.Authors != nil {
		book.Authors = *req.Authors
	}
	if req.Series != nil {
		book.Series = *req.Series
	}
	if req.SeriesIdx != nil {
		book.SeriesIdx = *req.SeriesIdx
	}
	if req.Publisher != nil {
		book.Publisher = *req.Publisher
	}
	if req.ISBN != nil {
		book.ISBN = *req.ISBN
	}
	if req.Language != nil {
		book.Language = *req.Language
	}
	if req.Description != nil {
		book.Description = *req.Description
	}

	if err := s.services.Library.UpdateBook(ctx, book); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, book, s.logger)
}

// handleDeleteBook removes a book and its dependent records.
func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Library.DeleteBook(r.Context(), chi.URLParam(r, "id")); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

// handleScanLibrary walks a library folder, defaulting to the
// configured book path.
func (s *Server) handleScanLibrary(w http.ResponseWriter, r *http.Request) {
	root := s.bookPath
	if r.ContentLength > 0 {
		var req struct {
			Path string `json:"path"`
		}
		if !s.decode(w, r, &req) {
			return
		}
		if req.Path != "" {
			root = req.Path
		}
	}
	if root == "" {
		response.BadRequest(w, "No library path configured; provide one in the request body", s.logger)
		return
	}

	result, err := s.services.Library.ScanFolder(r.Context(), root)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, result, s.logger)
}
