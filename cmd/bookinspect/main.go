// Command bookinspect opens a book file and dumps its detected format,
// metadata, spine, and table of contents.
package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/shiori-reader/shiori-server/internal/epub"
	"github.com/shiori-reader/shiori-server/internal/format"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: bookinspect <book_file>")
	}

	path := os.Args[1]
	fmt.Printf("Inspecting: %s\n\n", path)

	info, err := format.Detect(path)
	if err != nil {
		log.Fatalf("Failed to detect format: %v", err)
	}
	fmt.Printf("Format: %s (detected by %s)\n", info.Format, info.Method)

	if info.Format != format.EPUB {
		fmt.Println("\nDetailed inspection is only available for EPUB files.")
		return
	}

	book, err := epub.Open(path)
	if err != nil {
		log.Fatalf("Failed to open EPUB: %v", err)
	}
	defer book.Close()

	meta := book.Metadata()
	fmt.Printf("\nTitle: %s\n", meta.Title)
	fmt.Printf("Authors: %s\n", strings.Join(meta.Authors, ", "))
	if meta.Series != "" {
		fmt.Printf("Series: %s (#%.1f)\n", meta.Series, meta.SeriesIndex)
	}
	if meta.Publisher != "" {
		fmt.Printf("Publisher: %s\n", meta.Publisher)
	}
	if meta.Language != "" {
		fmt.Printf("Language: %s\n", meta.Language)
	}
	if meta.Identifier != "" {
		fmt.Printf("Identifier: %s\n", meta.Identifier)
	}

	spine := book.Spine()
	fmt.Printf("\nSpine (%d items):\n", len(spine))
	for i, item := range spine {
		fmt.Printf("  [%d] %s (%s)\n", i, item.Href, item.MediaType)
	}

	toc := book.TOC()
	fmt.Printf("\nTable of contents (%d top-level entries):\n", len(toc))
	printTOC(toc, 1)

	if data, mediaType, err := book.Cover(); err == nil {
		fmt.Printf("\nCover: %s, %d bytes\n", mediaType, len(data))
	} else {
		fmt.Println("\nCover: none")
	}
}

func printTOC(entries []epub.TocEntry, depth int) {
	for _, entry := range entries {
		fmt.Printf("%s%s -> %s\n", strings.Repeat("  ", depth), entry.Title, entry.Href)
		printTOC(entry.Children, depth+1)
	}
}
