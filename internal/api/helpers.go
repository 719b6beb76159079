package api

import (
	"encoding/json/v2"
	"net/http"
	"strconv"

	"github.com/shiori-reader/shiori-server/internal/http/response"
	"github.com/shiori-reader/shiori-server/internal/store"
)

// decode reads a JSON request body into dst, enforcing the body size
// limit. Writes a 400 response and returns false on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.UnmarshalRead(r.Body, dst); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return false
	}
	return true
}

// validate runs struct validation on a decoded request. Writes the
// validation error response and returns false on failure.
func (s *Server) validate(w http.ResponseWriter, req any) bool {
	if err := s.validator.Validate(req); err != nil {
		response.HandleError(w, err, s.logger)
		return false
	}
	return true
}

// paginationFromQuery reads limit and cursor query parameters.
func paginationFromQuery(r *http.Request) store.PaginationParams {
	params := store.DefaultPaginationParams()
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			params.Limit = limit
		}
	}
	params.Cursor = r.URL.Query().Get("cursor")
	params.Validate()
	return params
}

// intQuery reads an integer query parameter with a fallback.
func intQuery(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
