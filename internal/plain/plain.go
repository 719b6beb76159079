// Package plain serves single-file books: plain text and standalone
// HTML documents. Both read as one chapter.
package plain

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	domainerrors "github.com/shiori-reader/shiori-server/internal/errors"
)

// Book is a single-file book. The whole document is chapter 0.
type Book struct {
	path   string
	dir    string
	isHTML bool
}

// OpenText opens a plain text file.
func OpenText(path string) (*Book, error) {
	return open(path, false)
}

// OpenHTML opens a standalone HTML document. Relative references in the
// document resolve against its directory.
func OpenHTML(path string) (*Book, error) {
	return open(path, true)
}

func open(path string, isHTML bool) (*Book, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, domainerrors.Wrapf(err, domainerrors.CodeValidation, "open %s", filepath.Base(path))
	}
	if info.IsDir() {
		return nil, domainerrors.Validationf("%s is a directory", filepath.Base(path))
	}
	return &Book{path: path, dir: filepath.Dir(path), isHTML: isHTML}, nil
}

// Close implements the adapter contract; a plain book holds no handle
// between reads.
func (b *Book) Close() error {
	return nil
}

// Path returns the filesystem path the book was opened from.
func (b *Book) Path() string {
	return b.path
}

// ChapterCount returns 1; the file is the book.
func (b *Book) ChapterCount() int {
	return 1
}

// Chapter returns the document as renderable markup. Text files are
// escaped and split into paragraphs on blank lines; HTML files pass
// through for the sanitizer downstream.
func (b *Book) Chapter(index int) ([]byte, error) {
	if index != 0 {
		return nil, domainerrors.NotFoundf("chapter %d out of range (book has 1)", index)
	}

	data, err := os.ReadFile(b.path) //#nosec G304 -- library files are user-chosen by design
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(b.path), err)
	}
	if b.isHTML {
		return data, nil
	}
	return []byte(textToMarkup(string(data))), nil
}

// ReadItem reads a file referenced by the document, relative to its
// directory. References that climb out of the directory are refused.
func (b *Book) ReadItem(ref string) ([]byte, error) {
	if !b.isHTML {
		return nil, domainerrors.NotFoundf("no resource %s", ref)
	}

	clean := filepath.Clean(filepath.FromSlash(ref))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return nil, domainerrors.NotFoundf("no resource %s", ref)
	}

	data, err := os.ReadFile(filepath.Join(b.dir, clean)) //#nosec G304 -- clamped to the document directory above
	if err != nil {
		return nil, domainerrors.NotFoundf("no resource %s", ref)
	}
	return data, nil
}

// textToMarkup turns prose into paragraph markup. Blank lines separate
// paragraphs; single newlines inside one become spaces.
func textToMarkup(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var out strings.Builder
	out.WriteString(`<html><body class="plain-text">`)
	for _, block := range strings.Split(text, "\n\n") {
		para := strings.TrimSpace(strings.Join(strings.Fields(block), " "))
		if para == "" {
			continue
		}
		out.WriteString("<p>")
		out.WriteString(html.EscapeString(para))
		out.WriteString("</p>")
	}
	out.WriteString("</body></html>")
	return out.String()
}
