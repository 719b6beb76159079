// Package format detects book file formats. Detection runs in three
// stages: extension lookup verified by magic bytes, then magic bytes
// alone, then content inspection for container formats that share a
// signature (everything ZIP-based looks identical up front).
package format

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"

	domainerrors "github.com/shiori-reader/shiori-server/internal/errors"
)

// Format identifies a supported book file format.
type Format string

// Known formats. Detection recognizes all of these; whether the reader
// can open one is the adapter registry's concern.
const (
	EPUB Format = "epub"
	CBZ  Format = "cbz"
	PDF  Format = "pdf"
	MOBI Format = "mobi"
	AZW3 Format = "azw3"
	FB2  Format = "fb2"
	DOCX Format = "docx"
	TXT  Format = "txt"
	HTML Format = "html"
)

// Method records which detection stage produced the result.
type Method string

// Detection methods.
const (
	ByExtension Method = "extension"
	ByMagic     Method = "magic_bytes"
	ByContent   Method = "content_inspection"
)

// Info is the result of format detection.
type Info struct {
	Format Format
	Method Method
}

// headerSize is how much of the file detection reads. 512 bytes covers
// every signature including MOBI's marker at offset 60.
const headerSize = 512

var extensionMap = map[string]Format{
	".epub":  EPUB,
	".cbz":   CBZ,
	".pdf":   PDF,
	".mobi":  MOBI,
	".azw":   MOBI,
	".azw3":  AZW3,
	".fb2":   FB2,
	".docx":  DOCX,
	".txt":   TXT,
	".text":  TXT,
	".html":  HTML,
	".htm":   HTML,
	".xhtml": HTML,
}

// KnownExtension reports whether the file extension maps to a
// supported format. Useful as a cheap pre-filter before Detect.
func KnownExtension(path string) bool {
	_, ok := extensionMap[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extensions returns every file extension a supported format can carry,
// sorted, with the leading dot.
func Extensions() []string {
	exts := make([]string, 0, len(extensionMap))
	for ext := range extensionMap {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Detect determines the format of the file at path.
// Returns an UNSUPPORTED_FORMAT error when nothing matches.
func Detect(path string) (Info, error) {
	head, err := readHeader(path)
	if err != nil {
		return Info{}, fmt.Errorf("read header of %s: %w", path, err)
	}

	// Stage 1: extension fast path, verified against magic bytes so a
	// mislabeled file falls through to content inspection.
	ext := strings.ToLower(filepath.Ext(path))
	if f, ok := extensionMap[ext]; ok && magicMatches(head, f) {
		return Info{Format: f, Method: ByExtension}, nil
	}

	// Stage 2: magic bytes.
	if bytes.HasPrefix(head, []byte("%PDF")) {
		return Info{Format: PDF, Method: ByMagic}, nil
	}
	if isMobiHeader(head) {
		return Info{Format: classifyMobi(head), Method: ByContent}, nil
	}

	// Stage 3: content inspection for ambiguous containers.
	if filetype.IsType(head, matchers.TypeZip) || filetype.IsType(head, matchers.TypeEpub) {
		f, err := classifyZip(path)
		if err != nil {
			return Info{}, err
		}
		return Info{Format: f, Method: ByContent}, nil
	}
	if bytes.HasPrefix(head, []byte("<?xml")) {
		f, err := classifyXML(head)
		if err != nil {
			return Info{}, err
		}
		return Info{Format: f, Method: ByContent}, nil
	}
	if isHTMLHeader(head) {
		return Info{Format: HTML, Method: ByContent}, nil
	}
	if utf8.Valid(head) && isTextLike(head) {
		return Info{Format: TXT, Method: ByContent}, nil
	}

	return Info{}, domainerrors.UnsupportedFormatf("could not detect format of %s", filepath.Base(path))
}

// readHeader reads the first headerSize bytes of the file.
func readHeader(path string) ([]byte, error) {
	f, err := os.Open(path) //#nosec G304 -- library files are user-chosen by design
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, headerSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}

// magicMatches verifies that the header is plausible for the format the
// extension claims.
func magicMatches(head []byte, f Format) bool {
	switch f {
	case PDF:
		return bytes.HasPrefix(head, []byte("%PDF"))
	case EPUB, DOCX, CBZ:
		return filetype.IsType(head, matchers.TypeZip) || filetype.IsType(head, matchers.TypeEpub)
	case MOBI, AZW3:
		return isMobiHeader(head)
	case FB2:
		return bytes.HasPrefix(head, []byte("<?xml"))
	case HTML:
		return isHTMLHeader(head) || bytes.HasPrefix(head, []byte("<?xml"))
	case TXT:
		return utf8.Valid(head)
	}
	return false
}

// isMobiHeader checks for the BOOKMOBI marker at offset 60.
func isMobiHeader(head []byte) bool {
	return len(head) >= 68 && bytes.Equal(head[60:68], []byte("BOOKMOBI"))
}

// classifyMobi distinguishes AZW3 (KF8) from classic MOBI.
func classifyMobi(head []byte) Format {
	if bytes.Contains(head, []byte("BOUNDARY")) || bytes.Contains(head, []byte("KF8")) {
		return AZW3
	}
	return MOBI
}

func isHTMLHeader(head []byte) bool {
	trimmed := bytes.TrimLeft(head, " \t\r\n")
	lower := bytes.ToLower(trimmed)
	return bytes.HasPrefix(lower, []byte("<!doctype html")) || bytes.HasPrefix(lower, []byte("<html"))
}

// classifyZip opens the archive and decides between EPUB, DOCX and CBZ.
func classifyZip(path string) (Format, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", domainerrors.Wrapf(err, domainerrors.CodeValidation, "invalid zip archive %s", filepath.Base(path))
	}
	defer r.Close()

	names := make(map[string]bool, len(r.File))
	hasImages := false
	for _, f := range r.File {
		names[f.Name] = true
		switch strings.ToLower(filepath.Ext(f.Name)) {
		case ".jpg", ".jpeg", ".png", ".webp", ".gif":
			hasImages = true
		}
	}

	// EPUB: a "mimetype" entry containing application/epub+zip.
	if names["mimetype"] {
		content, err := readZipEntry(&r.Reader, "mimetype")
		if err == nil && strings.Contains(strings.TrimSpace(string(content)), "epub") {
			return EPUB, nil
		}
	}

	// DOCX: OOXML marker files.
	if names["[Content_Types].xml"] && names["word/document.xml"] {
		return DOCX, nil
	}

	// CBZ: a zip of page images.
	if hasImages {
		return CBZ, nil
	}

	return "", domainerrors.UnsupportedFormatf("zip archive %s matches neither EPUB, DOCX nor CBZ", filepath.Base(path))
}

func readZipEntry(r *zip.Reader, name string) ([]byte, error) {
	f, err := r.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, 1024))
}

// classifyXML distinguishes FB2 from XHTML served with an XML prolog.
func classifyXML(head []byte) (Format, error) {
	lower := bytes.ToLower(head)
	if bytes.Contains(lower, []byte("<fictionbook")) {
		return FB2, nil
	}
	if bytes.Contains(lower, []byte("<html")) {
		return HTML, nil
	}
	return "", domainerrors.UnsupportedFormatf("xml file matches neither FB2 nor XHTML")
}

// isTextLike reports whether the bytes look like prose: at least 95%
// printable or whitespace.
func isTextLike(head []byte) bool {
	if len(head) == 0 {
		return false
	}

	printable := 0
	for _, b := range head {
		if (b >= 32 && b <= 126) || b == '\t' || b == '\n' || b == '\r' || b >= 128 {
			printable++
		}
	}
	return float64(printable)/float64(len(head)) >= 0.95
}
