package epub

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/beevik/etree"
)

// parseTOC tries the EPUB 3 nav document first, then the EPUB 2 NCX.
func (b *Book) parseTOC() []TocEntry {
	for _, item := range b.manifest {
		if strings.Contains(item.properties, "nav") {
			if entries := b.parseNavDoc(item.href); len(entries) > 0 {
				return entries
			}
		}
	}

	for _, item := range b.manifest {
		if item.mediaType == "application/x-dtbncx+xml" || strings.HasSuffix(strings.ToLower(item.href), ".ncx") {
			if entries := b.parseNCX(item.href); len(entries) > 0 {
				return entries
			}
		}
	}
	return nil
}

// parseNavDoc parses an EPUB 3 navigation document.
func (b *Book) parseNavDoc(href string) []TocEntry {
	data, err := b.ReadItem(href)
	if err != nil {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil
	}

	// The toc nav is the one with epub:type="toc"; fall back to the
	// first nav element when the attribute is absent.
	nav := doc.Find(`nav[epub\:type="toc"]`).First()
	if nav.Length() == 0 {
		nav = doc.Find("nav").First()
	}
	if nav.Length() == 0 {
		return nil
	}

	return b.parseNavList(nav.Find("ol").First(), href)
}

func (b *Book) parseNavList(list *goquery.Selection, navHref string) []TocEntry {
	var entries []TocEntry

	list.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
		link := li.ChildrenFiltered("a").First()
		if link.Length() == 0 {
			// Spec allows a span heading for unlinked groupings.
			link = li.ChildrenFiltered("span").First()
		}

		entry := TocEntry{Title: strings.TrimSpace(link.Text())}
		if ref, ok := link.Attr("href"); ok {
			entry.Href = b.ResolveHref(navHref, ref)
		}

		if sublist := li.ChildrenFiltered("ol").First(); sublist.Length() > 0 {
			entry.Children = b.parseNavList(sublist, navHref)
		}

		if entry.Title != "" {
			entries = append(entries, entry)
		}
	})
	return entries
}

// parseNCX parses an EPUB 2 NCX table of contents.
func (b *Book) parseNCX(href string) []TocEntry {
	data, err := b.ReadItem(href)
	if err != nil {
		return nil
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil
	}

	navMap := doc.FindElement("//navMap")
	if navMap == nil {
		return nil
	}
	return b.parseNavPoints(navMap, href)
}

func (b *Book) parseNavPoints(parent *etree.Element, ncxHref string) []TocEntry {
	var entries []TocEntry

	for _, navPoint := range parent.SelectElements("navPoint") {
		entry := TocEntry{}

		if label := navPoint.FindElement("navLabel/text"); label != nil {
			entry.Title = strings.TrimSpace(label.Text())
		}
		if content := navPoint.SelectElement("content"); content != nil {
			if src := content.SelectAttrValue("src", ""); src != "" {
				entry.Href = b.ResolveHref(ncxHref, src)
			}
		}

		entry.Children = b.parseNavPoints(navPoint, ncxHref)

		if entry.Title != "" {
			entries = append(entries, entry)
		}
	}
	return entries
}

// SpineIndexForHref returns the spine position of the given OPF-relative
// href, or -1 when no spine item matches. Used to map TOC entries to
// chapter indices.
func (b *Book) SpineIndexForHref(href string) int {
	href = strings.SplitN(href, "#", 2)[0]
	for i, item := range b.spine {
		if item.Href == href {
			return i
		}
	}
	return -1
}
