package content

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// FetchFunc loads the bytes of a resource referenced from chapter markup.
// The reference is passed exactly as it appears in the document so the
// backend can resolve it against the chapter's own location.
type FetchFunc func(ref string) ([]byte, error)

// Resolver rewrites chapter markup into a self-contained document:
// stylesheets are inlined and every relative resource reference becomes
// a data URI. A resource that cannot be fetched is dropped rather than
// failing the whole chapter.
type Resolver struct {
	logger *slog.Logger
}

func NewResolver(logger *slog.Logger) *Resolver {
	return &Resolver{logger: logger}
}

// Resolve inlines stylesheets and embeds referenced resources as data
// URIs. The result is stable under repeated application.
func (r *Resolver) Resolve(ctx context.Context, htmlText string, fetch FetchFunc) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return "", fmt.Errorf("parsing chapter markup: %w", err)
	}

	r.inlineStylesheets(doc, fetch)
	r.embedResources(doc, fetch)

	out, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("rendering chapter markup: %w", err)
	}
	return out, nil
}

// inlineStylesheets replaces every stylesheet link with a style element
// holding the fetched CSS, with its own url() references rewritten. A
// link whose stylesheet cannot be fetched is removed so the document
// never points at an unreachable file.
func (r *Resolver) inlineStylesheets(doc *goquery.Document, fetch FetchFunc) {
	doc.Find(`link[rel="stylesheet"]`).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || skipExternal(href) {
			sel.Remove()
			return
		}

		data, err := fetch(normalizeRef(href))
		if err != nil {
			r.logger.Warn("stylesheet unavailable, removing link", "href", href, "error", err)
			sel.Remove()
			return
		}

		rewritten := r.rewriteCSSURLs(data, fetch)
		sel.ReplaceWithHtml("<style>\n" + rewritten + "\n</style>")
	})
}

// embedResources converts src and href references on media elements to
// data URIs. Anchors and stylesheet hrefs are left to their own passes.
func (r *Resolver) embedResources(doc *goquery.Document, fetch FetchFunc) {
	doc.Find("[src]").Each(func(_ int, sel *goquery.Selection) {
		r.embedAttr(sel, "src", fetch)
	})
	// SVG image elements reference their bitmap through href or the
	// legacy xlink:href.
	doc.Find("image").Each(func(_ int, sel *goquery.Selection) {
		r.embedAttr(sel, "href", fetch)
		r.embedAttr(sel, "xlink:href", fetch)
	})
}

func (r *Resolver) embedAttr(sel *goquery.Selection, attr string, fetch FetchFunc) {
	ref, ok := sel.Attr(attr)
	if !ok || skipRef(ref) {
		return
	}

	data, err := fetch(normalizeRef(ref))
	if err != nil {
		r.logger.Warn("resource unavailable, leaving reference", "ref", ref, "error", err)
		return
	}
	sel.SetAttr(attr, dataURI(ref, data))
}

// rewriteCSSURLs tokenizes CSS and replaces each url() reference with a
// data URI. The lexer emits both url(path) and url("path") as a single
// URLToken; a url( function token with tokens inside can still appear,
// so that shape is handled too. Tokens other than resolvable URLs pass
// through untouched, so malformed CSS degrades instead of disappearing.
func (r *Resolver) rewriteCSSURLs(cssText []byte, fetch FetchFunc) string {
	lexer := css.NewLexer(parse.NewInput(bytes.NewReader(cssText)))

	var out strings.Builder
	for {
		tt, text := lexer.Next()
		switch tt {
		case css.ErrorToken:
			return out.String()
		case css.URLToken:
			out.WriteString(r.resolveCSSRef(unquoteURLToken(text), string(text), fetch))
		case css.FunctionToken:
			if !strings.EqualFold(string(text), "url(") {
				out.Write(text)
				continue
			}
			out.WriteString(r.rewriteURLFunction(lexer, fetch))
		default:
			out.Write(text)
		}
	}
}

// rewriteURLFunction consumes the tokens of a url("...") function call
// and returns its rewritten form. Anything other than a single quoted
// string inside the call is reproduced verbatim.
func (r *Resolver) rewriteURLFunction(lexer *css.Lexer, fetch FetchFunc) string {
	var raw strings.Builder
	raw.WriteString("url(")

	ref := ""
	simple := true
	for {
		tt, text := lexer.Next()
		if tt == css.ErrorToken {
			return raw.String()
		}
		raw.Write(text)
		switch tt {
		case css.RightParenthesisToken:
			if !simple || ref == "" {
				return raw.String()
			}
			return r.resolveCSSRef(ref, raw.String(), fetch)
		case css.StringToken:
			if ref != "" {
				simple = false
			}
			ref = unquoteCSSString(text)
		case css.WhitespaceToken:
		default:
			simple = false
		}
	}
}

// resolveCSSRef fetches ref and returns a url() data URI, or raw when
// the reference is skipped or unavailable.
func (r *Resolver) resolveCSSRef(ref, raw string, fetch FetchFunc) string {
	if skipRef(ref) {
		return raw
	}
	data, err := fetch(normalizeRef(ref))
	if err != nil {
		r.logger.Warn("css resource unavailable, leaving reference", "ref", ref, "error", err)
		return raw
	}
	return "url(" + dataURI(ref, data) + ")"
}

// unquoteURLToken extracts the reference from a url(...) token. The
// lexer keeps the quotes of url("...") inside the token, so they are
// stripped along with the wrapper.
func unquoteURLToken(token []byte) string {
	s := string(token)
	s = strings.TrimPrefix(s, "url(")
	s = strings.TrimSuffix(s, ")")
	return unquoteCSSString([]byte(strings.TrimSpace(s)))
}

// unquoteCSSString strips the surrounding quotes from a string token.
func unquoteCSSString(token []byte) string {
	s := string(token)
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		s = s[1 : len(s)-1]
	}
	return s
}

// skipExternal reports whether a reference points outside the archive
// and can never be fetched: empty values, already-inlined data URIs,
// in-document anchors, and absolute URLs.
func skipExternal(ref string) bool {
	switch {
	case ref == "":
		return true
	case strings.HasPrefix(ref, "#"):
		return true
	case strings.HasPrefix(ref, "data:"):
		return true
	case strings.HasPrefix(ref, "//"):
		return true
	case strings.Contains(ref, "://"):
		return true
	}
	return false
}

// skipRef is the embedding-pass filter: external references plus
// stylesheet files, which the link pass inlines as style elements
// rather than data URIs.
func skipRef(ref string) bool {
	return skipExternal(ref) ||
		strings.HasSuffix(strings.ToLower(stripRefSuffix(ref)), ".css")
}

func dataURI(ref string, data []byte) string {
	return "data:" + mimeForRef(ref) + ";base64," + base64.StdEncoding.EncodeToString(data)
}
