// Package epub reads EPUB archives: OPF metadata, the spine, the table
// of contents, embedded resources, and the cover image. It understands
// both EPUB 2 (NCX) and EPUB 3 (nav document) tables of contents.
package epub

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	domainerrors "github.com/shiori-reader/shiori-server/internal/errors"
)

// Metadata holds the Dublin Core fields extracted from the OPF package
// document, plus the calibre series extension when present.
type Metadata struct {
	Title       string
	Authors     []string
	Publisher   string
	Date        string
	Identifier  string
	Language    string
	Description string
	Subjects    []string
	Series      string
	SeriesIndex float64
}

// SpineItem is one reading-order entry resolved against the manifest.
type SpineItem struct {
	ID        string
	Href      string // relative to the OPF directory
	MediaType string
}

// TocEntry is a table-of-contents item. Href points at a spine document,
// possibly with a fragment.
type TocEntry struct {
	Title    string
	Href     string
	Children []TocEntry
}

type manifestItem struct {
	id         string
	href       string
	mediaType  string
	properties string
}

// Book is an open EPUB archive. Not safe for concurrent use; callers
// serialize access or open one Book per goroutine.
type Book struct {
	path   string
	reader *zip.ReadCloser
	files  map[string]*zip.File

	opfDir        string
	metadata      Metadata
	manifest      map[string]manifestItem
	manifestOrder []string // ids in package document order
	spine         []SpineItem
	toc           []TocEntry

	coverID string // manifest id flagged as the cover, if any
}

// Open opens the EPUB at path and parses its package document.
func Open(bookPath string) (*Book, error) {
	r, err := zip.OpenReader(bookPath)
	if err != nil {
		return nil, domainerrors.Wrapf(err, domainerrors.CodeValidation, "open epub %s", path.Base(bookPath))
	}

	b := &Book{
		path:     bookPath,
		reader:   r,
		files:    make(map[string]*zip.File, len(r.File)),
		manifest: make(map[string]manifestItem),
	}
	for _, f := range r.File {
		b.files[path.Clean(f.Name)] = f
	}

	if err := b.parse(); err != nil {
		r.Close()
		return nil, err
	}
	return b, nil
}

// Close releases the underlying archive.
func (b *Book) Close() error {
	return b.reader.Close()
}

// Path returns the filesystem path the book was opened from.
func (b *Book) Path() string {
	return b.path
}

// Metadata returns the parsed OPF metadata.
func (b *Book) Metadata() Metadata {
	return b.metadata
}

// Spine returns the reading-order items.
func (b *Book) Spine() []SpineItem {
	return b.spine
}

// ChapterCount returns the number of spine entries.
func (b *Book) ChapterCount() int {
	return len(b.spine)
}

// TOC returns the table of contents, or nil when the book has none.
func (b *Book) TOC() []TocEntry {
	return b.toc
}

// Chapter returns the raw markup of the spine item at index.
func (b *Book) Chapter(index int) ([]byte, error) {
	if index < 0 || index >= len(b.spine) {
		return nil, domainerrors.NotFoundf("chapter %d out of range (book has %d)", index, len(b.spine))
	}
	return b.ReadItem(b.spine[index].Href)
}

// ChapterHref returns the OPF-relative href of the spine item at index.
func (b *Book) ChapterHref(index int) (string, error) {
	if index < 0 || index >= len(b.spine) {
		return "", domainerrors.NotFoundf("chapter %d out of range (book has %d)", index, len(b.spine))
	}
	return b.spine[index].Href, nil
}

// ReadItem reads an archive entry by href relative to the OPF directory.
func (b *Book) ReadItem(href string) ([]byte, error) {
	return b.readArchivePath(b.resolveOPF(href))
}

// ResolveHref resolves ref (as found in a document at baseHref) to an
// OPF-relative href. Fragments are dropped; leading ../ segments that
// would escape the archive root are clamped.
func (b *Book) ResolveHref(baseHref, ref string) string {
	ref = strings.SplitN(ref, "#", 2)[0]
	if ref == "" {
		return baseHref
	}
	resolved := path.Join(path.Dir(baseHref), ref)
	// path.Join cleans ../ but a ref can still climb above the root;
	// strip whatever is left.
	for strings.HasPrefix(resolved, "../") {
		resolved = strings.TrimPrefix(resolved, "../")
	}
	return resolved
}

// Resource reads an archive entry referenced from the document at
// baseHref. This is the lookup the content resolver uses for images,
// stylesheets and fonts.
func (b *Book) Resource(baseHref, ref string) ([]byte, error) {
	return b.ReadItem(b.ResolveHref(baseHref, ref))
}

// Cover returns the cover image bytes and the manifest media type.
// Lookup order: the manifest item flagged as cover, any image whose
// name contains "cover", then the first raster image in the manifest.
func (b *Book) Cover() ([]byte, string, error) {
	if b.coverID != "" {
		if item, ok := b.manifest[b.coverID]; ok {
			if data, err := b.ReadItem(item.href); err == nil {
				return data, item.mediaType, nil
			}
		}
	}

	// Walk the manifest in document order so the fallback is stable.
	var first *manifestItem
	for _, id := range b.manifestOrder {
		item := b.manifest[id]
		if !strings.HasPrefix(item.mediaType, "image/") {
			continue
		}
		if strings.Contains(strings.ToLower(item.href), "cover") {
			if data, err := b.ReadItem(item.href); err == nil {
				return data, item.mediaType, nil
			}
		}
		if first == nil {
			item := item
			first = &item
		}
	}

	if first != nil {
		if data, err := b.ReadItem(first.href); err == nil {
			return data, first.mediaType, nil
		}
	}
	return nil, "", domainerrors.NotFound("no cover image found")
}

// parse reads container.xml, the OPF package, and the TOC.
func (b *Book) parse() error {
	opfPath, err := b.rootfilePath()
	if err != nil {
		return err
	}
	b.opfDir = path.Dir(opfPath)
	if b.opfDir == "." {
		b.opfDir = ""
	}

	opfData, err := b.readArchivePath(opfPath)
	if err != nil {
		return domainerrors.Wrapf(err, domainerrors.CodeValidation, "read package document %s", opfPath)
	}
	if err := b.parseOPF(opfData); err != nil {
		return err
	}

	// A missing or broken TOC is not fatal; navigation falls back to
	// bare spine indices.
	b.toc = b.parseTOC()
	return nil
}

// rootfilePath reads META-INF/container.xml and returns the OPF path.
func (b *Book) rootfilePath() (string, error) {
	data, err := b.readArchivePath("META-INF/container.xml")
	if err != nil {
		return "", domainerrors.Wrap(err, domainerrors.CodeValidation, "missing META-INF/container.xml")
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return "", domainerrors.Wrap(err, domainerrors.CodeValidation, "malformed container.xml")
	}

	for _, rootfile := range doc.FindElements("//rootfile") {
		if rootfile.SelectAttrValue("media-type", "") == "application/oebps-package+xml" {
			if fullPath := rootfile.SelectAttrValue("full-path", ""); fullPath != "" {
				return path.Clean(fullPath), nil
			}
		}
	}
	return "", domainerrors.Validation("container.xml names no package document")
}

// parseOPF extracts metadata, manifest and spine from the package document.
func (b *Book) parseOPF(data []byte) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeValidation, "malformed package document")
	}

	pkg := doc.SelectElement("package")
	if pkg == nil {
		return domainerrors.Validation("package document has no package element")
	}

	if meta := pkg.SelectElement("metadata"); meta != nil {
		b.parseMetadata(meta)
	}

	manifest := pkg.SelectElement("manifest")
	if manifest == nil {
		return domainerrors.Validation("package document has no manifest")
	}
	for _, item := range manifest.SelectElements("item") {
		mi := manifestItem{
			id:         item.SelectAttrValue("id", ""),
			href:       item.SelectAttrValue("href", ""),
			mediaType:  item.SelectAttrValue("media-type", ""),
			properties: item.SelectAttrValue("properties", ""),
		}
		if mi.id == "" || mi.href == "" {
			continue
		}
		if _, seen := b.manifest[mi.id]; !seen {
			b.manifestOrder = append(b.manifestOrder, mi.id)
		}
		b.manifest[mi.id] = mi
		if strings.Contains(mi.properties, "cover-image") {
			b.coverID = mi.id
		}
	}

	spine := pkg.SelectElement("spine")
	if spine == nil {
		return domainerrors.Validation("package document has no spine")
	}
	for _, itemref := range spine.SelectElements("itemref") {
		idref := itemref.SelectAttrValue("idref", "")
		item, ok := b.manifest[idref]
		if !ok {
			continue
		}
		// Only content documents belong in the reading order.
		if item.mediaType != "application/xhtml+xml" && item.mediaType != "text/html" {
			continue
		}
		b.spine = append(b.spine, SpineItem{
			ID:        item.id,
			Href:      path.Clean(item.href),
			MediaType: item.mediaType,
		})
	}
	if len(b.spine) == 0 {
		return domainerrors.Validation("spine lists no content documents")
	}

	// EPUB 2 flags the cover with a meta element instead of a property.
	if b.coverID == "" {
		if meta := pkg.SelectElement("metadata"); meta != nil {
			for _, m := range meta.SelectElements("meta") {
				if m.SelectAttrValue("name", "") == "cover" {
					b.coverID = m.SelectAttrValue("content", "")
				}
			}
		}
	}

	return nil
}

func (b *Book) parseMetadata(meta *etree.Element) {
	md := Metadata{}
	for _, child := range meta.ChildElements() {
		text := strings.TrimSpace(child.Text())
		switch child.Tag {
		case "title":
			if md.Title == "" {
				md.Title = text
			}
		case "creator":
			if text != "" {
				md.Authors = append(md.Authors, text)
			}
		case "publisher":
			md.Publisher = text
		case "date":
			if md.Date == "" {
				md.Date = text
			}
		case "identifier":
			if md.Identifier == "" {
				md.Identifier = text
			}
		case "language":
			if md.Language == "" {
				md.Language = text
			}
		case "description":
			md.Description = text
		case "subject":
			if text != "" {
				md.Subjects = append(md.Subjects, text)
			}
		case "meta":
			switch child.SelectAttrValue("name", "") {
			case "calibre:series":
				md.Series = child.SelectAttrValue("content", "")
			case "calibre:series_index":
				if idx, err := strconv.ParseFloat(child.SelectAttrValue("content", ""), 64); err == nil {
					md.SeriesIndex = idx
				}
			}
		}
	}
	b.metadata = md
}

// resolveOPF turns an OPF-relative href into an archive path.
func (b *Book) resolveOPF(href string) string {
	href = strings.SplitN(href, "#", 2)[0]
	if b.opfDir == "" {
		return path.Clean(href)
	}
	return path.Clean(path.Join(b.opfDir, href))
}

func (b *Book) readArchivePath(archivePath string) ([]byte, error) {
	f, ok := b.files[path.Clean(archivePath)]
	if !ok {
		return nil, domainerrors.NotFoundf("no archive entry %s", archivePath)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open archive entry %s: %w", archivePath, err)
	}
	defer rc.Close()

	return io.ReadAll(rc)
}
