package api

import (
	"net/http"

	"github.com/shiori-reader/shiori-server/internal/http/response"
	"github.com/shiori-reader/shiori-server/internal/search"
)

// handleSearchLibrary runs a full-text query over the library index.
func (s *Server) handleSearchLibrary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	params := search.SearchParams{
		Query:         q.Get("q"),
		Formats:       q["format"],
		Tags:          q["tag"],
		Languages:     q["language"],
		Limit:         intQuery(r, "limit", 20),
		Offset:        intQuery(r, "offset", 0),
		SortBy:        q.Get("sort"),
		SortOrder:     q.Get("order"),
		IncludeFacets: q.Get("facets") == "true",
		Highlight:     q.Get("highlight") == "true",
	}

	result, err := s.services.Search.Search(r.Context(), params)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, result, s.logger)
}

// handleRebuildIndex drops and rebuilds the search index from the
// store. Slow on large libraries; intended for recovery.
func (s *Server) handleRebuildIndex(w http.ResponseWriter, r *http.Request) {
	count, err := s.services.Search.RebuildIndex(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, map[string]int{"indexed": count}, s.logger)
}
