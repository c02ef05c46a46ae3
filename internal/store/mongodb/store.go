// Package mongodb implements store.Store on MongoDB.
//
// Documents use the same string IDs as the Badger backend. Unique indexes on
// users.username and authors.name back the uniqueness rules, and author
// find-or-create is a single upsert against the name index.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/id"
	"github.com/listenupapp/catalog-server/internal/normalize"
	"github.com/listenupapp/catalog-server/internal/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const (
	userCollection   = "users"
	authorCollection = "authors"
	bookCollection   = "books"

	// DefaultDatabase is used when the connection string names no database.
	DefaultDatabase = "library"

	connectTimeout = 10 * time.Second
)

// Store provides MongoDB-backed persistence.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	logger *slog.Logger

	users   *mongo.Collection
	authors *mongo.Collection
	books   *mongo.Collection
}

var _ store.Store = (*Store)(nil)

// Open connects to uri, verifies the connection and ensures indexes exist.
// dbName overrides the database; empty falls back to DefaultDatabase.
func Open(ctx context.Context, uri, dbName string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if dbName == "" {
		dbName = DefaultDatabase
	}

	client, err := mongo.Connect(options.Client().ApplyURI(uri).SetConnectTimeout(connectTimeout))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(dbName)
	s := &Store{
		client:  client,
		db:      db,
		logger:  logger,
		users:   db.Collection(userCollection),
		authors: db.Collection(authorCollection),
		books:   db.Collection(bookCollection),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	logger.Info("MongoDB connected", "database", dbName)
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	indexes := map[*mongo.Collection][]mongo.IndexModel{
		s.users: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		s.authors: {
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		s.books: {
			{Keys: bson.D{{Key: "genres", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}},
		},
	}

	for coll, models := range indexes {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", coll.Name(), err)
		}
	}
	return nil
}

// Ping verifies the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (s *Store) Close() error {
	s.logger.Info("Closing database connection")

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// findOne decodes the single document matching filter into T, returning
// notFound when there is none.
func findOne[T any](ctx context.Context, coll *mongo.Collection, filter any, notFound error) (*T, error) {
	var doc T
	err := coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, notFound
	}
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", coll.Name(), err)
	}
	return &doc, nil
}

// CreateUser stores a new user.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	user.Username = normalize.Name(user.Username)

	if _, err := s.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrUsernameTaken
		}
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
	return findOne[domain.User](ctx, s.users, bson.M{"_id": userID}, store.ErrUserNotFound)
}

// GetUserByUsername retrieves a user by username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return findOne[domain.User](ctx, s.users, bson.M{"username": normalize.Name(username)}, store.ErrUserNotFound)
}

// UpdateUser replaces a stored user.
func (s *Store) UpdateUser(ctx context.Context, user *domain.User) error {
	user.Username = normalize.Name(user.Username)

	res, err := s.users.ReplaceOne(ctx, bson.M{"_id": user.ID}, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrUsernameTaken
		}
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrUserNotFound
	}
	return nil
}

// GetOrCreateAuthor upserts on the unique name index. When two upserts race,
// MongoDB rejects the loser with a duplicate key error and the winner's
// document is returned.
func (s *Store) GetOrCreateAuthor(ctx context.Context, name string) (*domain.Author, bool, error) {
	name = normalize.Name(name)
	if name == "" {
		return nil, false, errors.New("author name is empty")
	}

	authorID, err := id.Generate(id.PrefixAuthor)
	if err != nil {
		return nil, false, fmt.Errorf("generate author ID: %w", err)
	}
	now := time.Now().UTC()

	res, err := s.authors.UpdateOne(ctx,
		bson.M{"name": name},
		bson.M{"$setOnInsert": bson.M{
			"_id":        authorID,
			"name":       name,
			"created_at": now,
			"updated_at": now,
		}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return nil, false, fmt.Errorf("upsert author: %w", err)
	}
	created := err == nil && res.UpsertedCount == 1

	author, err := s.GetAuthorByName(ctx, name)
	if err != nil {
		return nil, false, err
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
	return findOne[domain.Author](ctx, s.authors, bson.M{"_id": authorID}, store.ErrAuthorNotFound)
}

// GetAuthorByName retrieves an author by exact (normalized) name.
func (s *Store) GetAuthorByName(ctx context.Context, name string) (*domain.Author, error) {
	return findOne[domain.Author](ctx, s.authors, bson.M{"name": normalize.Name(name)}, store.ErrAuthorNotFound)
}

// GetAuthorsByIDs retrieves multiple authors, skipping missing IDs.
func (s *Store) GetAuthorsByIDs(ctx context.Context, ids []string) ([]*domain.Author, error) {
	authors := make([]*domain.Author, 0, len(ids))
	if len(ids) == 0 {
		return authors, nil
	}

	cursor, err := s.authors.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("find authors: %w", err)
	}
	if err := cursor.All(ctx, &authors); err != nil {
		return nil, fmt.Errorf("decode authors: %w", err)
	}
	return authors, nil
}

// UpdateAuthor replaces a stored author.
func (s *Store) UpdateAuthor(ctx context.Context, author *domain.Author) error {
	author.Name = normalize.Name(author.Name)

	res, err := s.authors.ReplaceOne(ctx, bson.M{"_id": author.ID}, author)
	if err != nil {
		return fmt.Errorf("update author: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrAuthorNotFound
	}
	return nil
}

// ListAuthors returns every author ordered by name.
func (s *Store) ListAuthors(ctx context.Context) ([]*domain.Author, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := s.authors.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list authors: %w", err)
	}

	var authors []*domain.Author
	if err := cursor.All(ctx, &authors); err != nil {
		return nil, fmt.Errorf("decode authors: %w", err)
	}
	return authors, nil
}

// CountAuthors returns the collection's estimated document count, which
// reads collection metadata instead of scanning.
func (s *Store) CountAuthors(ctx context.Context) (int, error) {
	n, err := s.authors.EstimatedDocumentCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("count authors: %w", err)
	}
	return int(n), nil
}

// CreateBook stores a new book.
func (s *Store) CreateBook(ctx context.Context, book *domain.Book) error {
	if book.Genres == nil {
		book.Genres = []string{}
	}

	if _, err := s.books.InsertOne(ctx, book); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrBookExists
		}
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

// ListBooks returns the books matching filter in creation order. A genre
// filter on the array field matches by element equality.
func (s *Store) ListBooks(ctx context.Context, filter store.BookFilter) ([]*domain.Book, error) {
	query := bson.M{}
	if filter.Genre != "" {
		query["genres"] = filter.Genre
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := s.books.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}

	var books []*domain.Book
	if err := cursor.All(ctx, &books); err != nil {
		return nil, fmt.Errorf("decode books: %w", err)
	}
	return books, nil
}

// CountBooks returns the collection's estimated document count.
func (s *Store) CountBooks(ctx context.Context) (int, error) {
	n, err := s.books.EstimatedDocumentCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("count books: %w", err)
	}
	return int(n), nil
}
