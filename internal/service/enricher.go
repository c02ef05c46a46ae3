package service

import (
	"context"
	"fmt"

	"github.com/listenupapp/catalog-server/internal/domain"
)

// AuthorLookup fetches authors in bulk.
type AuthorLookup interface {
	GetAuthorsByIDs(ctx context.Context, ids []string) ([]*domain.Author, error)
}

// BookView is a book with its author resolved. Author is nil when it has
// not been loaded; resolvers then fall back to a single lookup.
type BookView struct {
	*domain.Book
	Author *domain.Author
}

// Enricher resolves book authors in batches.
//
// One store query per call, regardless of how many books share an author.
// An author missing from the store leaves BookView.Author nil.
type Enricher struct {
	store AuthorLookup
}

// NewEnricher creates a new enricher.
func NewEnricher(store AuthorLookup) *Enricher {
	return &Enricher{store: store}
}

// EnrichBooks resolves the author of every book with one batch lookup.
// The result keeps the order of books.
func (e *Enricher) EnrichBooks(ctx context.Context, books []*domain.Book) ([]*BookView, error) {
	views := make([]*BookView, len(books))
	if len(books) == 0 {
		return views, nil
	}

	seen := make(map[string]struct{}, len(books))
	authorIDs := make([]string, 0, len(books))
	for _, b := range books {
		if _, ok := seen[b.AuthorID]; ok {
			continue
		}
		seen[b.AuthorID] = struct{}{}
		authorIDs = append(authorIDs, b.AuthorID)
	}

	authors, err := e.store.GetAuthorsByIDs(ctx, authorIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch authors: %w", err)
	}

	// Build map for O(1) lookups
	authorMap := make(map[string]*domain.Author, len(authors))
	for _, a := range authors {
		authorMap[a.ID] = a
	}

	for i, b := range books {
		views[i] = &BookView{Book: b, Author: authorMap[b.AuthorID]}
	}
	return views, nil
}
