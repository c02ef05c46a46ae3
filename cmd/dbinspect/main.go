// Package main inspects a Badger catalog: counter consistency and the books
// held under each genre.
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/pflag"

	"github.com/listenupapp/catalog-server/internal/logger"
	"github.com/listenupapp/catalog-server/internal/store"
	"github.com/listenupapp/catalog-server/internal/store/badgerdb"
)

func main() {
	os.Exit(run())
}

func run() int {
	dbPath := os.Getenv("DATABASE_URL")
	var genre string

	fs := pflag.NewFlagSet("dbinspect", pflag.ExitOnError)
	fs.StringVar(&dbPath, "database-url", dbPath, "Badger directory")
	fs.StringVar(&genre, "genre", "", "Only list books in this genre")
	_ = fs.Parse(os.Args[1:])

	log := logger.Discard()
	if dbPath == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL or --database-url is required")
		return 2
	}

	db, err := badgerdb.OpenReadOnly(dbPath, log.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		return 1
	}
	defer db.Close()

	ctx := context.Background()

	fmt.Println("=== Counters ===")
	stats, err := db.Inspect(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error scanning database: %v\n", err)
		return 1
	}
	inconsistent := false
	for _, st := range stats {
		mark := "ok"
		if !st.Consistent() {
			mark = "MISMATCH"
			inconsistent = true
		}
		fmt.Printf("%-8s counter=%d documents=%d index_keys=%d %s\n",
			strings.TrimSuffix(st.Prefix, ":"), st.Counter, st.Documents, st.IndexKeys, mark)
	}
	fmt.Println()

	if err := printBooks(ctx, db, genre); err != nil {
		fmt.Fprintf(os.Stderr, "Error listing books: %v\n", err)
		return 1
	}

	if inconsistent {
		return 1
	}
	return 0
}

func printBooks(ctx context.Context, db store.Store, genre string) error {
	books, err := db.ListBooks(ctx, store.BookFilter{Genre: genre})
	if err != nil {
		return err
	}

	authors, err := db.ListAuthors(ctx)
	if err != nil {
		return err
	}
	names := make(map[string]string, len(authors))
	for _, a := range authors {
		names[a.ID] = a.Name
	}

	byGenre := map[string][]string{}
	for _, b := range books {
		line := fmt.Sprintf("%s (%d) by %s", b.Title, b.Published, names[b.AuthorID])
		if len(b.Genres) == 0 {
			byGenre[""] = append(byGenre[""], line)
		}
		for _, g := range b.Genres {
			if genre == "" || g == genre {
				byGenre[g] = append(byGenre[g], line)
			}
		}
	}

	genres := make([]string, 0, len(byGenre))
	for g := range byGenre {
		genres = append(genres, g)
	}
	sort.Strings(genres)

	fmt.Println("=== Books by genre ===")
	for _, g := range genres {
		label := g
		if label == "" {
			label = "(no genre)"
		}
		fmt.Printf("%s:\n", label)
		for _, line := range byGenre[g] {
			fmt.Printf("  %s\n", line)
		}
	}
	fmt.Printf("\nTotal books: %d\n", len(books))
	return nil
}
