package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shiori-reader/shiori-server/internal/domain"
	"github.com/shiori-reader/shiori-server/internal/http/response"
)

// handleCreateAnnotation creates a highlight or bookmark on a book.
func (s *Server) handleCreateAnnotation(w http.ResponseWriter, r *http.Request) {
	var req CreateAnnotationRequest
	if !s.decode(w, r, &req) || !s.validate(w, &req) {
		return
	}

	annotation, err := s.services.Annotations.CreateAnnotation(r.Context(), &domain.Annotation{
		BookID:       chi.URLParam(r, "id"),
		Type:         domain.AnnotationType(req.Type),
		Location:     req.Location,
		SelectedText: req.SelectedText,
		Note:         req.Note,
		Color:        req.Color,
	})
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Created(w, annotation, s.logger)
}

// handleListAnnotations returns all annotations on a book.
func (s *Server) handleListAnnotations(w http.ResponseWriter, r *http.Request) {
	annotations, err := s.services.Annotations.ListForBook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, annotations, s.logger)
}

// handleGetAnnotation returns one annotation.
func (s *Server) handleGetAnnotation(w http.ResponseWriter, r *http.Request) {
	annotation, err := s.services.Annotations.GetAnnotation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, annotation, s.logger)
}

// handleUpdateAnnotation edits an annotation's note and color.
func (s *Server) handleUpdateAnnotation(w http.ResponseWriter, r *http.Request) {
	var req UpdateAnnotationRequest
	if !s.decode(w, r, &req) {
		return
	}

	annotation, err := s.services.Annotations.UpdateAnnotation(r.Context(), chi.URLParam(r, "id"), req.Note, req.Color)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, annotation, s.logger)
}

// handleDeleteAnnotation removes an annotation.
func (s *Server) handleDeleteAnnotation(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Annotations.DeleteAnnotation(r.Context(), chi.URLParam(r, "id")); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}
