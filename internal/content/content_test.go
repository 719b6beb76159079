package content

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fetchFromMap returns a FetchFunc backed by a map of reference to bytes.
func fetchFromMap(resources map[string][]byte) FetchFunc {
	return func(ref string) ([]byte, error) {
		data, ok := resources[ref]
		if !ok {
			return nil, assert.AnError
		}
		return data, nil
	}
}

func TestResolveEmbedsImages(t *testing.T) {
	resolver := NewResolver(testLogger())
	fetch := fetchFromMap(map[string][]byte{
		"images/fig1.png": []byte("png-bytes"),
	})

	out, err := resolver.Resolve(context.Background(), `<html><body><img src="images/fig1.png"/></body></html>`, fetch)
	require.NoError(t, err)

	assert.Contains(t, out, dataURI("images/fig1.png", []byte("png-bytes")))
	assert.NotContains(t, out, `src="images/fig1.png"`)
	assert.Contains(t, out, "data:image/png;base64,")
}

func TestResolveInlinesStylesheets(t *testing.T) {
	resolver := NewResolver(testLogger())
	fetch := fetchFromMap(map[string][]byte{
		"styles/main.css": []byte(`body { background: url("bg.jpg"); color: black; }`),
		"bg.jpg":          []byte("jpg-bytes"),
	})

	input := `<html><head><link rel="stylesheet" href="styles/main.css"/></head><body></body></html>`
	out, err := resolver.Resolve(context.Background(), input, fetch)
	require.NoError(t, err)

	assert.NotContains(t, out, "<link")
	assert.Contains(t, out, "<style>")
	assert.Contains(t, out, "color: black")
	assert.Contains(t, out, "url("+dataURI("bg.jpg", []byte("jpg-bytes"))+")")
}

func TestResolveOnlyExternalStylesheetLinksRemoved(t *testing.T) {
	resolver := NewResolver(testLogger())
	fetch := fetchFromMap(map[string][]byte{
		"styles/main.css": []byte(`p { color: teal; }`),
	})

	input := `<html><head>` +
		`<link rel="stylesheet" href="styles/main.css"/>` +
		`<link rel="stylesheet" href="https://cdn.example.com/site.css"/>` +
		`</head><body></body></html>`
	out, err := resolver.Resolve(context.Background(), input, fetch)
	require.NoError(t, err)

	// The relative stylesheet is inlined; only the absolute one goes.
	assert.Contains(t, out, "color: teal")
	assert.NotContains(t, out, "<link")
}

func TestResolveRemovesUnreachableStylesheetLink(t *testing.T) {
	resolver := NewResolver(testLogger())
	fetch := fetchFromMap(nil)

	input := `<html><head><link rel="stylesheet" href="gone.css"/></head><body><p>text</p></body></html>`
	out, err := resolver.Resolve(context.Background(), input, fetch)
	require.NoError(t, err)

	assert.NotContains(t, out, "<link")
	assert.Contains(t, out, "<p>text</p>")
}

func TestResolveLeavesUnreachableResource(t *testing.T) {
	resolver := NewResolver(testLogger())
	fetch := fetchFromMap(nil)

	input := `<html><body><img src="missing.png"/></body></html>`
	out, err := resolver.Resolve(context.Background(), input, fetch)
	require.NoError(t, err)

	// Failing to embed one resource never fails the chapter.
	assert.Contains(t, out, `src="missing.png"`)
}

func TestResolveSkipsAbsoluteAndInlineRefs(t *testing.T) {
	resolver := NewResolver(testLogger())
	fetched := make(map[string]bool)
	fetch := func(ref string) ([]byte, error) {
		fetched[ref] = true
		return []byte("bytes"), nil
	}

	input := `<html><body>` +
		`<img src="https://example.com/a.png"/>` +
		`<img src="data:image/png;base64,QQ=="/>` +
		`<a href="#note-1">note</a>` +
		`<img src="local.png"/>` +
		`</body></html>`
	out, err := resolver.Resolve(context.Background(), input, fetch)
	require.NoError(t, err)

	assert.Equal(t, map[string]bool{"local.png": true}, fetched)
	assert.Contains(t, out, `src="https://example.com/a.png"`)
	assert.Contains(t, out, `src="data:image/png;base64,QQ=="`)
	assert.Contains(t, out, `href="#note-1"`)
}

func TestResolveNormalizesParentSegments(t *testing.T) {
	resolver := NewResolver(testLogger())
	var got []string
	fetch := func(ref string) ([]byte, error) {
		got = append(got, ref)
		return []byte("bytes"), nil
	}

	input := `<html><body>` +
		`<img src="../../images/cover.jpg"/>` +
		`<img src="./fig.png"/>` +
		`<img src="../styles/../x.png"/>` +
		`</body></html>`
	_, err := resolver.Resolve(context.Background(), input, fetch)
	require.NoError(t, err)

	// Only leading segments are stripped; interior ones are the fetch
	// side's concern.
	assert.Equal(t, []string{"images/cover.jpg", "fig.png", "styles/../x.png"}, got)
}

func TestResolveSVGImageHref(t *testing.T) {
	resolver := NewResolver(testLogger())
	fetch := fetchFromMap(map[string][]byte{
		"cover.jpeg": []byte("jpg-bytes"),
	})

	input := `<html><body><svg><image href="cover.jpeg"/></svg></body></html>`
	out, err := resolver.Resolve(context.Background(), input, fetch)
	require.NoError(t, err)

	assert.Contains(t, out, dataURI("cover.jpeg", []byte("jpg-bytes")))
}

func TestResolveIdempotent(t *testing.T) {
	resolver := NewResolver(testLogger())
	resources := map[string][]byte{
		"styles/main.css": []byte(`p { background: url(bg.png); }`),
		"bg.png":          []byte("png-bytes"),
		"fig.png":         []byte("fig-bytes"),
	}

	input := `<html><head><link rel="stylesheet" href="styles/main.css"/></head>` +
		`<body><img src="fig.png"/></body></html>`

	once, err := resolver.Resolve(context.Background(), input, fetchFromMap(resources))
	require.NoError(t, err)

	twice, err := resolver.Resolve(context.Background(), once, fetchFromMap(resources))
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

func TestResolveCancelledContext(t *testing.T) {
	resolver := NewResolver(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := resolver.Resolve(ctx, "<html></html>", fetchFromMap(nil))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRewriteCSSURLQuoteForms(t *testing.T) {
	resolver := NewResolver(testLogger())
	fetch := fetchFromMap(map[string][]byte{
		"a.woff2": []byte("font-a"),
		"b.woff2": []byte("font-b"),
	})

	cssText := `@font-face { src: url("a.woff2"); } @font-face { src: url(b.woff2); }`
	out := resolver.rewriteCSSURLs([]byte(cssText), fetch)

	assert.Contains(t, out, "url("+dataURI("a.woff2", []byte("font-a"))+")")
	assert.Contains(t, out, "url("+dataURI("b.woff2", []byte("font-b"))+")")
	assert.Contains(t, out, "data:font/woff2;base64,")
}

func TestUnquoteURLToken(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{`url(a.woff2)`, "a.woff2"},
		{`url("a.woff2")`, "a.woff2"},
		{`url('a.woff2')`, "a.woff2"},
		{`url( fonts/b.ttf )`, "fonts/b.ttf"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, unquoteURLToken([]byte(tt.token)), tt.token)
	}
}

func TestRewriteCSSURLLeavesFailures(t *testing.T) {
	resolver := NewResolver(testLogger())

	cssText := `div { background: url(missing.png); color: red; }`
	out := resolver.rewriteCSSURLs([]byte(cssText), fetchFromMap(nil))

	assert.Contains(t, out, "url(missing.png)")
	assert.Contains(t, out, "color: red")
}

func TestMimeForRef(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{"images/a.jpg", "image/jpeg"},
		{"a.JPEG", "image/jpeg"},
		{"fonts/serif.woff2", "font/woff2"},
		{"img/pic.png?v=2", "image/png"},
		{"chart.svg#layer", "image/svg+xml"},
		{"blob.bin", "application/octet-stream"},
		{"noext", "application/octet-stream"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mimeForRef(tt.ref), tt.ref)
	}
}

func TestSanitizeRemovesActiveContent(t *testing.T) {
	input := `<html><head><base href="https://evil.example/"/></head><body>` +
		`<script>alert(1)</script>` +
		`<iframe src="page.html"></iframe>` +
		`<object data="x"></object>` +
		`<embed src="x"/>` +
		`<p onclick="alert(2)" class="para">hello</p>` +
		`<a href="javascript:alert(3)">link</a>` +
		`<a href="chapter2.xhtml">next</a>` +
		`</body></html>`

	out, err := Sanitize(input)
	require.NoError(t, err)

	assert.NotContains(t, out, "<script")
	assert.NotContains(t, out, "<iframe")
	assert.NotContains(t, out, "<object")
	assert.NotContains(t, out, "<embed")
	assert.NotContains(t, out, "<base")
	assert.NotContains(t, out, "onclick")
	assert.NotContains(t, out, "javascript:")
	assert.Contains(t, out, `class="para"`)
	assert.Contains(t, out, `href="chapter2.xhtml"`)
	assert.Contains(t, out, "hello")
}

func TestHighlightWrapsMatches(t *testing.T) {
	out, err := Highlight(`<html><body><p>The Whale, the whale!</p></body></html>`, "whale")
	require.NoError(t, err)

	assert.Equal(t, 2, strings.Count(out, `<mark class="search-hit">`))
	assert.Contains(t, out, `<mark class="search-hit">Whale</mark>`)
	assert.Contains(t, out, `<mark class="search-hit">whale</mark>`)
}

func TestHighlightEmptyTermIsIdentity(t *testing.T) {
	input := `<html><body><p>text</p></body></html>`

	out, err := Highlight(input, "")
	require.NoError(t, err)
	assert.Equal(t, input, out)

	out, err = Highlight(input, "   ")
	require.NoError(t, err)
	assert.Equal(t, input, out)
}

func TestHighlightSkipsScriptStyleAndMarks(t *testing.T) {
	input := `<html><head><style>.whale { color: red; }</style></head><body>` +
		`<p>a whale</p>` +
		`<mark class="search-hit">whale</mark>` +
		`</body></html>`

	out, err := Highlight(input, "whale")
	require.NoError(t, err)

	assert.Contains(t, out, ".whale { color: red; }")
	assert.NotContains(t, out, "<mark class=\"search-hit\"><mark")
	assert.Equal(t, 2, strings.Count(out, `<mark class="search-hit">`))
}

func TestHighlightStableUnderReapplication(t *testing.T) {
	once, err := Highlight(`<html><body><p>deep sea</p></body></html>`, "sea")
	require.NoError(t, err)

	twice, err := Highlight(once, "sea")
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

func TestHighlightEscapesRegexpMeta(t *testing.T) {
	out, err := Highlight(`<html><body><p>costs $4.99 today</p></body></html>`, "$4.99")
	require.NoError(t, err)

	assert.Contains(t, out, `<mark class="search-hit">$4.99</mark>`)
	// The dot must not match arbitrary characters.
	out, err = Highlight(`<html><body><p>costs 4x99</p></body></html>`, "4.99")
	require.NoError(t, err)
	assert.NotContains(t, out, "<mark")
}

func TestPipelineOrder(t *testing.T) {
	pipeline := NewPipeline(testLogger())
	fetch := fetchFromMap(map[string][]byte{
		"fig.png": []byte("png-bytes"),
	})

	input := `<html><body>` +
		`<script>var whale = 1;</script>` +
		`<p>the whale surfaced</p>` +
		`<img src="fig.png"/>` +
		`</body></html>`

	out, err := pipeline.Process(context.Background(), input, fetch, "whale")
	require.NoError(t, err)

	// Sanitize runs after highlight, so the script body and any marks
	// inside it are gone while text marks survive.
	assert.NotContains(t, out, "<script")
	assert.Contains(t, out, `<mark class="search-hit">whale</mark>`)
	assert.Contains(t, out, dataURI("fig.png", []byte("png-bytes")))
}

func TestPipelineEmptyTerm(t *testing.T) {
	pipeline := NewPipeline(testLogger())

	out, err := pipeline.Process(context.Background(), `<html><body><p>plain</p></body></html>`, fetchFromMap(nil), "")
	require.NoError(t, err)

	assert.NotContains(t, out, "<mark")
	assert.Contains(t, out, "plain")
}
