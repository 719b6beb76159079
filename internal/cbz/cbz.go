// Package cbz reads comic book ZIP archives. Pages are the image
// entries of the archive in name order; ComicInfo.xml metadata is
// picked up when present.
package cbz

import (
	"archive/zip"
	"fmt"
	"html"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	domainerrors "github.com/shiori-reader/shiori-server/internal/errors"
)

// Metadata holds the ComicInfo.xml fields the library cares about.
type Metadata struct {
	Title   string
	Series  string
	Number  float64
	Writers []string
	Summary string
}

// Book is an open CBZ archive. Not safe for concurrent use; callers
// serialize access or open one Book per goroutine.
type Book struct {
	path   string
	reader *zip.ReadCloser
	files  map[string]*zip.File

	pages    []string // archive entry names, sorted
	metadata Metadata
	hasInfo  bool
}

// imageExtensions are the entry suffixes treated as pages.
var imageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
}

// Open opens the CBZ at path and collects its pages.
func Open(bookPath string) (*Book, error) {
	r, err := zip.OpenReader(bookPath)
	if err != nil {
		return nil, domainerrors.Wrapf(err, domainerrors.CodeValidation, "open cbz %s", path.Base(bookPath))
	}

	b := &Book{
		path:   bookPath,
		reader: r,
		files:  make(map[string]*zip.File, len(r.File)),
	}
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := path.Clean(f.Name)
		b.files[name] = f
		if isPage(name) {
			b.pages = append(b.pages, name)
		}
	}
	if len(b.pages) == 0 {
		r.Close()
		return nil, domainerrors.Validation("cbz archive contains no page images")
	}
	// Comic archives rely on name order for page order.
	sort.Strings(b.pages)

	b.parseComicInfo()
	return b, nil
}

// isPage reports whether an archive entry is a readable page. macOS
// resource forks and hidden entries are not.
func isPage(name string) bool {
	if strings.HasPrefix(name, "__MACOSX/") || strings.HasPrefix(path.Base(name), ".") {
		return false
	}
	_, ok := imageExtensions[strings.ToLower(path.Ext(name))]
	return ok
}

// Close releases the underlying archive.
func (b *Book) Close() error {
	return b.reader.Close()
}

// Path returns the filesystem path the book was opened from.
func (b *Book) Path() string {
	return b.path
}

// Metadata returns the ComicInfo.xml metadata. HasInfo reports whether
// the archive carried one at all.
func (b *Book) Metadata() Metadata {
	return b.metadata
}

// HasInfo reports whether the archive carried a ComicInfo.xml.
func (b *Book) HasInfo() bool {
	return b.hasInfo
}

// ChapterCount returns the number of pages; every page is one
// navigation unit.
func (b *Book) ChapterCount() int {
	return len(b.pages)
}

// Chapter returns markup wrapping the page image at index. The image
// reference is the archive entry name, resolved by ReadItem.
func (b *Book) Chapter(index int) ([]byte, error) {
	if index < 0 || index >= len(b.pages) {
		return nil, domainerrors.NotFoundf("page %d out of range (book has %d)", index, len(b.pages))
	}
	ref := html.EscapeString(b.pages[index])
	markup := fmt.Sprintf(
		`<html><body class="comic-page"><img src=%q alt="Page %d"/></body></html>`,
		ref, index+1)
	return []byte(markup), nil
}

// ReadItem reads an archive entry by name.
func (b *Book) ReadItem(ref string) ([]byte, error) {
	f, ok := b.files[path.Clean(ref)]
	if !ok {
		return nil, domainerrors.NotFoundf("no archive entry %s", ref)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open archive entry %s: %w", ref, err)
	}
	defer rc.Close()

	return io.ReadAll(rc)
}

// Cover returns the first page and its media type.
func (b *Book) Cover() ([]byte, string, error) {
	data, err := b.ReadItem(b.pages[0])
	if err != nil {
		return nil, "", err
	}
	return data, imageExtensions[strings.ToLower(path.Ext(b.pages[0]))], nil
}

// parseComicInfo reads ComicInfo.xml when the archive has one. A
// malformed file is ignored; pages alone make a valid book.
func (b *Book) parseComicInfo() {
	f, ok := b.files["ComicInfo.xml"]
	if !ok {
		return
	}
	rc, err := f.Open()
	if err != nil {
		return
	}
	defer rc.Close()

	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(rc); err != nil {
		return
	}
	root := doc.SelectElement("ComicInfo")
	if root == nil {
		return
	}

	md := Metadata{}
	for _, child := range root.ChildElements() {
		text := strings.TrimSpace(child.Text())
		if text == "" {
			continue
		}
		switch child.Tag {
		case "Title":
			md.Title = text
		case "Series":
			md.Series = text
		case "Number":
			if n, err := strconv.ParseFloat(text, 64); err == nil {
				md.Number = n
			}
		case "Writer":
			for _, w := range strings.Split(text, ",") {
				if w = strings.TrimSpace(w); w != "" {
					md.Writers = append(md.Writers, w)
				}
			}
		case "Summary":
			md.Summary = text
		}
	}
	b.metadata = md
	b.hasInfo = true
}
