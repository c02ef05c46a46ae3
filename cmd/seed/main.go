// Package main loads the demo catalog into a store.
//
// Usage:
//
//	DATABASE_URL=./data/db go run ./cmd/seed
//	go run ./cmd/seed --database-url mongodb://localhost:27017 --force
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/listenupapp/catalog-server/internal/config"
	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/id"
	"github.com/listenupapp/catalog-server/internal/logger"
	"github.com/listenupapp/catalog-server/internal/normalize"
	"github.com/listenupapp/catalog-server/internal/store"
	"github.com/listenupapp/catalog-server/internal/store/badgerdb"
	"github.com/listenupapp/catalog-server/internal/store/mongodb"
)

type seedBook struct {
	title     string
	published int
	author    string
	genres    []string
}

var births = map[string]int{
	"Robert Martin":     1952,
	"Martin Fowler":     1963,
	"Fyodor Dostoevsky": 1821,
}

var books = []seedBook{
	{"Clean Code", 2008, "Robert Martin", []string{"refactoring"}},
	{"Agile software development", 2002, "Robert Martin", []string{"agile", "patterns", "design"}},
	{"Refactoring, edition 2", 2018, "Martin Fowler", []string{"refactoring"}},
	{"Refactoring to patterns", 2008, "Joshua Kerievsky", []string{"refactoring", "patterns"}},
	{"Practical Object-Oriented Design, An Agile Primer Using Ruby", 2012, "Sandi Metz", []string{"refactoring", "design"}},
	{"Crime and punishment", 1866, "Fyodor Dostoevsky", []string{"classic", "crime"}},
	{"Demons", 1872, "Fyodor Dostoevsky", []string{"classic", "revolution"}},
}

func main() {
	db := config.DatabaseConfig{URL: os.Getenv("DATABASE_URL"), Name: mongodb.DefaultDatabase}
	var force bool

	fs := pflag.NewFlagSet("seed", pflag.ExitOnError)
	fs.StringVar(&db.URL, "database-url", db.URL, "Badger directory or MongoDB URI")
	fs.StringVar(&db.Name, "database-name", db.Name, "MongoDB database name")
	fs.BoolVar(&force, "force", false, "Seed even if the catalog already has books")
	_ = fs.Parse(os.Args[1:])

	log := logger.New(logger.Config{Level: logger.ParseLevel("info")})

	if db.URL == "" {
		log.Fatal("DATABASE_URL or --database-url is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	s, err := open(ctx, db, log)
	if err != nil {
		log.Fatal("Failed to open store", "error", err)
	}
	defer s.Close()

	n, err := s.CountBooks(ctx)
	if err != nil {
		log.Fatal("Failed to count books", "error", err)
	}
	if n > 0 && !force {
		log.Info("Catalog already has books, nothing to do (use --force to seed anyway)", "books", n)
		return
	}

	if err := seed(ctx, s); err != nil {
		log.Fatal("Seeding failed", "error", err)
	}

	authors, _ := s.CountAuthors(ctx)
	total, _ := s.CountBooks(ctx)
	log.Info("Seeded demo catalog", "authors", authors, "books", total)
}

func open(ctx context.Context, db config.DatabaseConfig, log *logger.Logger) (store.Store, error) {
	if db.IsMongo() {
		return mongodb.Open(ctx, db.URL, db.Name, log.Logger)
	}
	return badgerdb.Open(db.URL, log.Logger)
}

func seed(ctx context.Context, s store.Store) error {
	for _, b := range books {
		author, created, err := s.GetOrCreateAuthor(ctx, b.author)
		if err != nil {
			return fmt.Errorf("author %q: %w", b.author, err)
		}

		if born, ok := births[b.author]; ok && created {
			author.SetBorn(born)
			if err := s.UpdateAuthor(ctx, author); err != nil {
				return fmt.Errorf("set born for %q: %w", b.author, err)
			}
		}

		bookID, err := id.Generate(id.PrefixBook)
		if err != nil {
			return err
		}

		book := &domain.Book{
			Document:  domain.Document{ID: bookID},
			Title:     b.title,
			Published: b.published,
			AuthorID:  author.ID,
			Genres:    normalize.Genres(b.genres),
		}
		book.InitTimestamps()

		if err := s.CreateBook(ctx, book); err != nil {
			return fmt.Errorf("book %q: %w", b.title, err)
		}
	}
	return nil
}
