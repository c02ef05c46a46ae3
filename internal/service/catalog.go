package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/listenupapp/catalog-server/internal/auth"
	"github.com/listenupapp/catalog-server/internal/domain"
	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
	"github.com/listenupapp/catalog-server/internal/id"
	"github.com/listenupapp/catalog-server/internal/logger"
	"github.com/listenupapp/catalog-server/internal/normalize"
	"github.com/listenupapp/catalog-server/internal/notify"
	"github.com/listenupapp/catalog-server/internal/store"
)

// CatalogService manages books and authors.
type CatalogService struct {
	store    store.Store
	bus      notify.Publisher[*BookView]
	enricher *Enricher
	metrics  CatalogMetrics
	logger   *slog.Logger
}

// NewCatalogService creates a catalog service publishing new books on bus.
func NewCatalogService(store store.Store, bus notify.Publisher[*BookView], metrics CatalogMetrics, logger *slog.Logger) *CatalogService {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &CatalogService{
		store:    store,
		bus:      bus,
		enricher: NewEnricher(store),
		metrics:  metrics,
		logger:   orDiscard(logger),
	}
}

// AddBookRequest contains the data for a new book.
type AddBookRequest struct {
	Title     string   `json:"title" validate:"required,notblank,max=256"`
	Published int      `json:"published" validate:"gte=-9999,lte=9999"`
	Author    string   `json:"author" validate:"required,notblank,max=128"`
	Genres    []string `json:"genres" validate:"max=32,dive,notblank,max=64"`
}

// AddBornRequest sets an author's birth year.
type AddBornRequest struct {
	Name    string `json:"name" validate:"required,notblank,max=128"`
	SetBorn int    `json:"setBorn" validate:"gte=-9999,lte=9999"`
}

// AddBook stores a new book, creating its author on first use, and
// announces it to bookAdded subscribers.
//
// Nothing is rolled back: an author created for a book that then fails to
// save stays in the catalog.
func (s *CatalogService) AddBook(ctx context.Context, req AddBookRequest) (*BookView, error) {
	if _, err := auth.RequireAuthenticated(ctx); err != nil {
		return nil, err
	}

	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	author, created, err := s.store.GetOrCreateAuthor(ctx, req.Author)
	if err != nil {
		return nil, saveFailed(err, "saving author failed", req.Author)
	}

	bookID, err := id.Generate(id.PrefixBook)
	if err != nil {
		return nil, fmt.Errorf("generate book ID: %w", err)
	}

	book := &domain.Book{
		Document:  domain.Document{ID: bookID},
		Title:     req.Title,
		Published: req.Published,
		AuthorID:  author.ID,
		Genres:    normalize.Genres(req.Genres),
	}
	book.InitTimestamps()

	if err := s.store.CreateBook(ctx, book); err != nil {
		return nil, saveFailed(err, "saving book failed", req.Title)
	}

	view := &BookView{Book: book, Author: author}

	s.bus.Publish(ctx, view)
	s.metrics.BookAdded(created)

	logger.FromContext(ctx, s.logger).InfoContext(ctx, "book added",
		"book_id", book.ID,
		"author_id", author.ID,
		"author_created", created,
	)

	return view, nil
}

// AddBorn sets the birth year of the author with exactly the given name.
func (s *CatalogService) AddBorn(ctx context.Context, req AddBornRequest) (*domain.Author, error) {
	if _, err := auth.RequireAuthenticated(ctx); err != nil {
		return nil, err
	}

	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	author, err := s.store.GetAuthorByName(ctx, req.Name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainerrors.NotFoundf("author %q not found", req.Name).WithInvalidArgs(req.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("get author: %w", err)
	}

	author.SetBorn(req.SetBorn)

	if err := s.store.UpdateAuthor(ctx, author); err != nil {
		return nil, saveFailed(err, "edit born failed", req.Name)
	}

	return author, nil
}

// BookCount returns the number of books.
func (s *CatalogService) BookCount(ctx context.Context) (int, error) {
	n, err := s.store.CountBooks(ctx)
	if err != nil {
		return 0, fmt.Errorf("count books: %w", err)
	}
	return n, nil
}

// AuthorCount returns the number of authors.
func (s *CatalogService) AuthorCount(ctx context.Context) (int, error) {
	n, err := s.store.CountAuthors(ctx)
	if err != nil {
		return 0, fmt.Errorf("count authors: %w", err)
	}
	return n, nil
}

// Authors returns every author ordered by name.
func (s *CatalogService) Authors(ctx context.Context) ([]*domain.Author, error) {
	authors, err := s.store.ListAuthors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list authors: %w", err)
	}
	return authors, nil
}

// Author returns one author by ID.
func (s *CatalogService) Author(ctx context.Context, authorID string) (*domain.Author, error) {
	author, err := s.store.GetAuthor(ctx, authorID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainerrors.NotFoundf("author %s not found", authorID)
	}
	if err != nil {
		return nil, fmt.Errorf("get author: %w", err)
	}
	return author, nil
}

// Books returns all books, or only those listing exactly genre when it is
// non-empty. Authors are resolved in one batch.
func (s *CatalogService) Books(ctx context.Context, genre string) ([]*BookView, error) {
	books, err := s.store.ListBooks(ctx, store.BookFilter{Genre: genre})
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return s.enricher.EnrichBooks(ctx, books)
}
