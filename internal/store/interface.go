// Package store defines the persistence contract for the catalog server.
//
// Two backends implement it: badgerdb (an embedded key-value store, the
// default) and mongodb. Both enforce unique usernames and unique author
// names, and both make author find-or-create a single atomic operation.
package store

import (
	"context"

	"github.com/listenupapp/catalog-server/internal/domain"
)

// Store defines the interface for all persistence operations.
type Store interface {
	// Lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Users
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error

	// Authors
	GetOrCreateAuthor(ctx context.Context, name string) (author *domain.Author, created bool, err error)
	GetAuthor(ctx context.Context, id string) (*domain.Author, error)
	GetAuthorByName(ctx context.Context, name string) (*domain.Author, error)
	GetAuthorsByIDs(ctx context.Context, ids []string) ([]*domain.Author, error)
	UpdateAuthor(ctx context.Context, author *domain.Author) error
	ListAuthors(ctx context.Context) ([]*domain.Author, error)
	CountAuthors(ctx context.Context) (int, error)

	// Books
	CreateBook(ctx context.Context, book *domain.Book) error
	ListBooks(ctx context.Context, filter BookFilter) ([]*domain.Book, error)
	CountBooks(ctx context.Context) (int, error)
}

// BookFilter narrows ListBooks. The zero value matches every book.
type BookFilter struct {
	// Genre, when set, keeps only books whose genres contain it exactly.
	Genre string
}

// Matches reports whether book passes the filter.
func (f BookFilter) Matches(book *domain.Book) bool {
	return f.Genre == "" || book.HasGenre(f.Genre)
}
