package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shiori-reader/shiori-server/internal/http/response"
)

// handleCreateTag creates a tag.
func (s *Server) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	var req CreateTagRequest
	if !s.decode(w, r, &req) || !s.validate(w, &req) {
		return
	}

	tag, err := s.services.Tags.CreateTag(r.Context(), req.Name, req.Color)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Created(w, tag, s.logger)
}

// handleListTags returns all tags.
func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.services.Tags.ListTags(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, tags, s.logger)
}

// handleDeleteTag removes a tag, detaching it from all books.
func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Tags.DeleteTag(r.Context(), chi.URLParam(r, "id")); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

// handleTagBook attaches a tag to a book. Tagging twice is a no-op.
func (s *Server) handleTagBook(w http.ResponseWriter, r *http.Request) {
	book, err := s.services.Tags.TagBook(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "tagID"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, book, s.logger)
}

// handleUntagBook detaches a tag from a book.
func (s *Server) handleUntagBook(w http.ResponseWriter, r *http.Request) {
	book, err := s.services.Tags.UntagBook(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "tagID"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, book, s.logger)
}
