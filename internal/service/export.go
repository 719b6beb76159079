package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"

	apperrors "github.com/shiori-reader/shiori-server/internal/errors"
	"github.com/shiori-reader/shiori-server/internal/store"
)

// ExportFormat selects the output encoding of an export.
type ExportFormat string

// Supported export formats.
const (
	ExportMarkdown ExportFormat = "markdown"
	ExportText     ExportFormat = "text"
)

// Valid reports whether f is a known export format.
func (f ExportFormat) Valid() bool {
	return f == ExportMarkdown || f == ExportText
}

// Extension returns the file extension for the format.
func (f ExportFormat) Extension() string {
	if f == ExportMarkdown {
		return ".md"
	}
	return ".txt"
}

// ExportService converts book content to Markdown or plain text. It
// reads chapters through the reader backend so exported markup matches
// what the reader shows.
type ExportService struct {
	store  *store.Store
	reader *ReaderService
	logger *slog.Logger
}

// NewExportService creates a new export service.
func NewExportService(store *store.Store, reader *ReaderService, logger *slog.Logger) *ExportService {
	return &ExportService{
		store:  store,
		reader: reader,
		logger: logger,
	}
}

// ExportChapter converts one chapter of an open book.
func (s *ExportService) ExportChapter(ctx context.Context, bookID string, index int, f ExportFormat) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !f.Valid() {
		return "", apperrors.Validationf("unknown export format %q", f)
	}

	chapter, err := s.reader.GetChapter(ctx, bookID, index)
	if err != nil {
		return "", fmt.Errorf("get chapter: %w", err)
	}

	out, err := convertChapter(chapter.Content, f)
	if err != nil {
		return "", err
	}
	return out, nil
}

// ExportBook converts every chapter of an open book into one document,
// chapters separated by their titles.
func (s *ExportService) ExportBook(ctx context.Context, bookID string, f ExportFormat) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !f.Valid() {
		return "", apperrors.Validationf("unknown export format %q", f)
	}

	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return "", fmt.Errorf("get book: %w", err)
	}

	meta, err := s.reader.OpenBook(ctx, bookID)
	if err != nil {
		return "", fmt.Errorf("open book: %w", err)
	}

	var b strings.Builder
	writeHeading(&b, book.Title, 1, f)

	for i := 0; i < meta.TotalChapters; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		chapter, err := s.reader.GetChapter(ctx, bookID, i)
		if err != nil {
			s.logger.Warn("chapter skipped during export", "book_id", bookID, "index", i, "error", err)
			continue
		}

		converted, err := convertChapter(chapter.Content, f)
		if err != nil {
			s.logger.Warn("chapter conversion failed", "book_id", bookID, "index", i, "error", err)
			continue
		}
		if strings.TrimSpace(converted) == "" {
			continue
		}

		writeHeading(&b, chapter.Title, 2, f)
		b.WriteString(strings.TrimSpace(converted))
		b.WriteString("\n\n")
	}

	s.logger.Info("book exported", "book_id", bookID, "format", f, "chapters", meta.TotalChapters)
	return b.String(), nil
}

func writeHeading(b *strings.Builder, title string, level int, f ExportFormat) {
	if title == "" {
		return
	}
	if f == ExportMarkdown {
		b.WriteString(strings.Repeat("#", level))
		b.WriteString(" ")
		b.WriteString(title)
		b.WriteString("\n\n")
		return
	}
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", len(title)))
	b.WriteString("\n\n")
}

func convertChapter(markup string, f ExportFormat) (string, error) {
	if f == ExportMarkdown {
		md, err := htmltomarkdown.ConvertString(markup)
		if err != nil {
			return "", fmt.Errorf("convert to markdown: %w", err)
		}
		return md, nil
	}
	return extractText(markup), nil
}

// extractText strips markup down to readable plain text. Block elements
// become paragraph breaks; script and style content is dropped.
func extractText(markup string) string {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return markup
	}

	var b strings.Builder
	collectText(doc, &b)

	// Collapse runs of blank lines left by nested blocks.
	lines := strings.Split(b.String(), "\n")
	out := make([]string, 0, len(lines))
	blank := true
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func collectText(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style":
			return
		case "br":
			b.WriteString("\n")
		case "p", "div", "h1", "h2", "h3", "h4", "h5", "h6", "li", "tr", "blockquote":
			b.WriteString("\n")
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}

	if n.Type == html.ElementNode {
		switch n.Data {
		case "p", "div", "h1", "h2", "h3", "h4", "h5", "h6", "li", "tr", "blockquote":
			b.WriteString("\n")
		}
	}
}
