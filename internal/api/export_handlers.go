package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shiori-reader/shiori-server/internal/http/response"
	"github.com/shiori-reader/shiori-server/internal/service"
)

// handleExportBook exports the whole book as Markdown or plain text.
func (s *Server) handleExportBook(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "id")
	f := exportFormatFromQuery(r)

	content, err := s.services.Export.ExportBook(r.Context(), bookID, f)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	writeExport(w, content, f, bookID+f.Extension())
}

// handleExportChapter exports one chapter.
func (s *Server) handleExportChapter(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "id")
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		response.BadRequest(w, "Chapter index must be a number", s.logger)
		return
	}
	f := exportFormatFromQuery(r)

	content, err := s.services.Export.ExportChapter(r.Context(), bookID, index, f)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	name := fmt.Sprintf("%s_chapter_%d%s", bookID, index, f.Extension())
	writeExport(w, content, f, name)
}

// exportFormatFromQuery reads the format query parameter, defaulting to
// Markdown. Unknown values pass through so the service can reject them
// with a validation error.
func exportFormatFromQuery(r *http.Request) service.ExportFormat {
	v := r.URL.Query().Get("format")
	if v == "" {
		return service.ExportMarkdown
	}
	return service.ExportFormat(v)
}

func writeExport(w http.ResponseWriter, content string, f service.ExportFormat, filename string) {
	contentType := "text/plain; charset=utf-8"
	if f == service.ExportMarkdown {
		contentType = "text/markdown; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write([]byte(content))
}
