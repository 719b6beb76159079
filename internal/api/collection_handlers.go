package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shiori-reader/shiori-server/internal/http/response"
)

// handleCreateCollection creates a named collection.
func (s *Server) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	var req CreateCollectionRequest
	if !s.decode(w, r, &req) || !s.validate(w, &req) {
		return
	}

	collection, err := s.services.Collections.CreateCollection(r.Context(), req.Name, req.Description)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Created(w, collection, s.logger)
}

// handleListCollections returns all collections.
func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	collections, err := s.services.Collections.ListCollections(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, collections, s.logger)
}

// handleGetCollection returns one collection.
func (s *Server) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	collection, err := s.services.Collections.GetCollection(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, collection, s.logger)
}

// handleUpdateCollection edits a collection's name and description
// (PATCH semantics).
func (s *Server) handleUpdateCollection(w http.ResponseWriter, r *http.Request) {
	var req UpdateCollectionRequest
	if !s.decode(w, r, &req) {
		return
	}

	collection, err := s.services.Collections.UpdateCollection(r.Context(), chi.URLParam(r, "id"), req.Name, req.Description)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, collection, s.logger)
}

// handleDeleteCollection removes a collection. Member books are left
// alone.
func (s *Server) handleDeleteCollection(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Collections.DeleteCollection(r.Context(), chi.URLParam(r, "id")); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

// handleAddBookToCollection adds a book to a collection.
func (s *Server) handleAddBookToCollection(w http.ResponseWriter, r *http.Request) {
	collection, err := s.services.Collections.AddBook(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "bookID"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, collection, s.logger)
}

// handleRemoveBookFromCollection removes a book from a collection.
func (s *Server) handleRemoveBookFromCollection(w http.ResponseWriter, r *http.Request) {
	collection, err := s.services.Collections.RemoveBook(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "bookID"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, collection, s.logger)
}

// handleCollectionsForBook lists the collections containing a book.
func (s *Server) handleCollectionsForBook(w http.ResponseWriter, r *http.Request) {
	collections, err := s.services.Collections.CollectionsForBook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, collections, s.logger)
}
