// Command dbinspect dumps a summary of the library database. It opens
// the store read-only, so it is safe to run against a live server.
package main

import (
	"encoding/json/v2"
	"fmt"
	"log"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/shiori-reader/shiori-server/internal/domain"
)

func main() {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = os.ExpandEnv("$HOME/Shiori/data/db")
	}

	opts := badger.DefaultOptions(dbPath).
		WithReadOnly(true).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	fmt.Println("=== Database Inspection ===")
	fmt.Println()

	bookCount := 0
	booksWithCovers := 0
	formatCounts := map[string]int{}
	shown := 0

	err = db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("book:")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var book domain.Book
				if err := json.Unmarshal(val, &book); err != nil {
					return err
				}

				bookCount++
				formatCounts[book.Format]++
				if book.CoverPath != "" {
					booksWithCovers++
				}

				if shown < 5 {
					shown++
					fmt.Printf("Book: %s\n", book.Title)
					fmt.Printf("  ID: %s\n", book.ID)
					fmt.Printf("  Format: %s\n", book.Format)
					fmt.Printf("  Chapters: %d\n", book.ChapterCount)
					fmt.Printf("  Path: %s\n", book.Path)
					fmt.Printf("  Tags: %d\n", len(book.TagIDs))
					fmt.Println()
				}
				return nil
			})
			if err != nil {
				log.Printf("Error reading book %s: %v", it.Item().Key(), err)
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Error iterating database: %v", err)
	}

	fmt.Println("=== Summary ===")
	fmt.Printf("Total books: %d\n", bookCount)
	fmt.Printf("Books with covers: %d\n", booksWithCovers)
	for format, count := range formatCounts {
		fmt.Printf("  %s: %d\n", format, count)
	}

	for _, record := range []struct{ label, prefix string }{
		{"Annotations", "annotation:"},
		{"Collections", "collection:"},
		{"Tags", "tag:"},
		{"Reading progress records", "progress:"},
		{"Shares", "bookshare:"},
	} {
		count, err := countPrefix(db, record.prefix)
		if err != nil {
			log.Printf("Error counting %s: %v", record.label, err)
			continue
		}
		fmt.Printf("%s: %d\n", record.label, count)
	}
}

func countPrefix(db *badger.DB, prefix string) (int, error) {
	count := 0
	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}
