package content

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Highlight wraps every case-insensitive occurrence of term in the text
// content of the document with <mark class="search-hit">. Markup inside
// script, style, and existing mark subtrees is left untouched, so
// applying a highlight twice never nests marks. An empty or whitespace
// term returns the input unchanged.
func Highlight(htmlText, term string) (string, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return htmlText, nil
	}

	doc, err := html.Parse(strings.NewReader(htmlText))
	if err != nil {
		return "", fmt.Errorf("parsing chapter markup: %w", err)
	}

	pattern, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(term))
	if err != nil {
		return "", fmt.Errorf("compiling highlight term: %w", err)
	}

	highlightNode(doc, pattern)

	var out strings.Builder
	if err := html.Render(&out, doc); err != nil {
		return "", fmt.Errorf("rendering chapter markup: %w", err)
	}
	return out.String(), nil
}

func highlightNode(n *html.Node, pattern *regexp.Regexp) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "mark":
			return
		}
	}

	// Children are collected first because highlighting a text node
	// replaces it in the tree.
	var children []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		children = append(children, c)
	}
	for _, c := range children {
		if c.Type == html.TextNode {
			highlightText(n, c, pattern)
			continue
		}
		highlightNode(c, pattern)
	}
}

// highlightText splits a text node around each match and inserts mark
// elements in place. Nodes without a match are left as they are.
func highlightText(parent, text *html.Node, pattern *regexp.Regexp) {
	matches := pattern.FindAllStringIndex(text.Data, -1)
	if len(matches) == 0 {
		return
	}

	last := 0
	for _, m := range matches {
		if m[0] > last {
			parent.InsertBefore(textNode(text.Data[last:m[0]]), text)
		}
		mark := &html.Node{
			Type: html.ElementNode,
			Data: "mark",
			Attr: []html.Attribute{{Key: "class", Val: "search-hit"}},
		}
		mark.AppendChild(textNode(text.Data[m[0]:m[1]]))
		parent.InsertBefore(mark, text)
		last = m[1]
	}
	if last < len(text.Data) {
		parent.InsertBefore(textNode(text.Data[last:]), text)
	}
	parent.RemoveChild(text)
}

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}
