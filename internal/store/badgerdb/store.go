// Package badgerdb implements store.Store on an embedded Badger database.
package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/id"
	"github.com/listenupapp/catalog-server/internal/normalize"
	"github.com/listenupapp/catalog-server/internal/store"
)

const (
	userPrefix   = "user:"
	authorPrefix = "author:"
	bookPrefix   = "book:"

	userCountKey   = "meta:count:user"
	authorCountKey = "meta:count:author"
	bookCountKey   = "meta:count:book"

	usernameIndex = "username"
	nameIndex     = "name"
	genreIndex    = "genre"
)

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	users   *Entity[domain.User]
	authors *Entity[domain.Author]
	books   *Entity[domain.Book]
}

var _ store.Store = (*Store)(nil)

// Open opens (or creates) the Badger database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Ensure writes are synced to disk to prevent corruption on crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	return open(opts, logger)
}

// OpenReadOnly opens an existing database without taking the write lock,
// so it can be inspected while the server holds it.
func OpenReadOnly(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil)

	return open(opts, logger)
}

func open(opts badger.Options, logger *slog.Logger) (*Store, error) {
	path := opts.Dir
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Store{
		db:     db,
		logger: logger,
	}

	s.users = NewEntity(db, userPrefix, func(u *domain.User) string { return u.ID }).
		WithUniqueIndex(usernameIndex, func(u *domain.User) string {
			return normalize.Name(u.Username)
		}).
		WithCounter(userCountKey).
		WithLogger(logger)

	s.authors = NewEntity(db, authorPrefix, func(a *domain.Author) string { return a.ID }).
		WithUniqueIndex(nameIndex, func(a *domain.Author) string {
			return normalize.Name(a.Name)
		}).
		WithCounter(authorCountKey).
		WithLogger(logger)

	s.books = NewEntity(db, bookPrefix, func(b *domain.Book) string { return b.ID }).
		WithIndex(genreIndex, func(b *domain.Book) []string {
			return b.Genres
		}).
		WithCounter(bookCountKey).
		WithLogger(logger)

	logger.Info("Badger database opened successfully", "path", path)

	return s, nil
}

// Ping reports whether the database is open.
func (s *Store) Ping(_ context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger database is closed")
	}
	return nil
}

// Close gracefully closes the database connection.
func (s *Store) Close() error {
	s.logger.Info("Closing database connection")
	if s.db.IsClosed() {
		return nil
	}
	s.users.close()
	s.authors.close()
	s.books.close()
	return s.db.Close()
}

// CreateUser stores a new user. Returns store.ErrUsernameTaken when the
// username is already registered.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	err := s.users.Create(ctx, user)
	if errors.Is(err, store.ErrAlreadyExists) {
		return store.ErrUsernameTaken
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	s.logger.LogAttrs(ctx, slog.LevelInfo, "user created",
		slog.String("id", user.ID),
		slog.String("username", user.Username),
	)
	return nil
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, store.ErrUserNotFound
	}
	return user, err
}

// GetUserByUsername retrieves a user by username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.users.GetByIndex(ctx, usernameIndex, normalize.Name(username))
	if errors.Is(err, store.ErrNotFound) {
		return nil, store.ErrUserNotFound
	}
	return user, err
}

// UpdateUser replaces a stored user.
func (s *Store) UpdateUser(ctx context.Context, user *domain.User) error {
	err := s.users.Update(ctx, user)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return store.ErrUserNotFound
	case errors.Is(err, store.ErrAlreadyExists):
		return store.ErrUsernameTaken
	case err != nil:
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// GetOrCreateAuthor finds the author with the given name or creates one
// with no birth year. Lookup and insert share one transaction.
func (s *Store) GetOrCreateAuthor(ctx context.Context, name string) (*domain.Author, bool, error) {
	name = normalize.Name(name)
	if name == "" {
		return nil, false, errors.New("author name is empty")
	}

	author, created, err := s.authors.GetOrCreate(ctx, nameIndex, name, func() (*domain.Author, error) {
		authorID, err := id.Generate(id.PrefixAuthor)
		if err != nil {
			return nil, fmt.Errorf("generate author ID: %w", err)
		}
		a := &domain.Author{
			Document: domain.Document{ID: authorID},
			Name:     name,
		}
		a.InitTimestamps()
		return a, nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("get or create author: %w", err)
	}

	if created {
		s.logger.LogAttrs(ctx, slog.LevelInfo, "author created",
			slog.String("id", author.ID),
			slog.String("name", author.Name),
		)
	}
	return author, created, nil
}

// GetAuthor retrieves an author by ID.
func (s *Store) GetAuthor(ctx context.Context, authorID string) (*domain.Author, error) {
	author, err := s.authors.Get(ctx, authorID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, store.ErrAuthorNotFound
	}
	return author, err
}

// GetAuthorByName retrieves an author by exact (normalized) name.
func (s *Store) GetAuthorByName(ctx context.Context, name string) (*domain.Author, error) {
	author, err := s.authors.GetByIndex(ctx, nameIndex, normalize.Name(name))
	if errors.Is(err, store.ErrNotFound) {
		return nil, store.ErrAuthorNotFound
	}
	return author, err
}

// GetAuthorsByIDs retrieves multiple authors, skipping missing IDs.
func (s *Store) GetAuthorsByIDs(ctx context.Context, ids []string) ([]*domain.Author, error) {
	return s.authors.GetMany(ctx, ids)
}

// UpdateAuthor replaces a stored author.
func (s *Store) UpdateAuthor(ctx context.Context, author *domain.Author) error {
	err := s.authors.Update(ctx, author)
	if errors.Is(err, store.ErrNotFound) {
		return store.ErrAuthorNotFound
	}
	if err != nil {
		return fmt.Errorf("update author: %w", err)
	}
	return nil
}

// ListAuthors returns every author ordered by name.
func (s *Store) ListAuthors(ctx context.Context) ([]*domain.Author, error) {
	var authors []*domain.Author
	for author, err := range s.authors.List(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list authors: %w", err)
		}
		authors = append(authors, author)
	}
	store.SortAuthors(authors)
	return authors, nil
}

// CountAuthors returns the number of authors.
func (s *Store) CountAuthors(ctx context.Context) (int, error) {
	return s.authors.Count(ctx)
}

// CreateBook stores a new book.
func (s *Store) CreateBook(ctx context.Context, book *domain.Book) error {
	err := s.books.Create(ctx, book)
	if errors.Is(err, store.ErrAlreadyExists) {
		return store.ErrBookExists
	}
	if err != nil {
		return fmt.Errorf("create book: %w", err)
	}

	s.logger.LogAttrs(ctx, slog.LevelInfo, "book created",
		slog.String("id", book.ID),
		slog.String("title", book.Title),
		slog.String("author_id", book.AuthorID),
		slog.Int("genres", len(book.Genres)),
	)
	return nil
}

// ListBooks returns the books matching filter in creation order.
func (s *Store) ListBooks(ctx context.Context, filter store.BookFilter) ([]*domain.Book, error) {
	if filter.Genre != "" {
		books, err := s.books.ListByIndex(ctx, genreIndex, filter.Genre)
		if err != nil {
			return nil, fmt.Errorf("list books by genre: %w", err)
		}
		store.SortBooks(books)
		return books, nil
	}

	var books []*domain.Book
	for book, err := range s.books.List(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list books: %w", err)
		}
		books = append(books, book)
	}
	store.SortBooks(books)
	return books, nil
}

// CountBooks returns the number of books.
func (s *Store) CountBooks(ctx context.Context) (int, error) {
	return s.books.Count(ctx)
}
