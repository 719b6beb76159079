package content

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Sanitize strips active content from chapter markup before it reaches
// the reading surface: script, iframe, object and embed elements, base
// elements that would rebase inlined references, inline event handler
// attributes, and javascript: URLs. It runs as the last pipeline stage
// so nothing reintroduces what it removed.
func Sanitize(htmlText string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return "", fmt.Errorf("parsing chapter markup: %w", err)
	}

	doc.Find("script, iframe, object, embed, base").Remove()

	doc.Find("*").Each(func(_ int, sel *goquery.Selection) {
		for _, node := range sel.Nodes {
			kept := node.Attr[:0]
			for _, attr := range node.Attr {
				if strings.HasPrefix(strings.ToLower(attr.Key), "on") {
					continue
				}
				if isRefAttr(attr.Key) && isJavaScriptURL(attr.Val) {
					continue
				}
				kept = append(kept, attr)
			}
			node.Attr = kept
		}
	})

	out, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("rendering chapter markup: %w", err)
	}
	return out, nil
}

func isRefAttr(key string) bool {
	switch strings.ToLower(key) {
	case "href", "src", "xlink:href", "formaction", "action":
		return true
	}
	return false
}

func isJavaScriptURL(val string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(val)), "javascript:")
}
