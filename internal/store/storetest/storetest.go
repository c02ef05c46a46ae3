// Package storetest holds the behaviour every store.Store backend must share.
// Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/id"
	"github.com/listenupapp/catalog-server/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store. Cleanup is registered on t.
type Factory func(t *testing.T) store.Store

// Run executes the conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("UsernameUnique", func(t *testing.T) { testUsernameUnique(t, newStore(t)) })
	t.Run("AuthorGetOrCreate", func(t *testing.T) { testAuthorGetOrCreate(t, newStore(t)) })
	t.Run("AuthorGetOrCreateConcurrent", func(t *testing.T) { testAuthorGetOrCreateConcurrent(t, newStore(t)) })
	t.Run("ConcurrentDistinctInserts", func(t *testing.T) { testConcurrentDistinctInserts(t, newStore(t)) })
	t.Run("AuthorUpdate", func(t *testing.T) { testAuthorUpdate(t, newStore(t)) })
	t.Run("AuthorLookups", func(t *testing.T) { testAuthorLookups(t, newStore(t)) })
	t.Run("Books", func(t *testing.T) { testBooks(t, newStore(t)) })
	t.Run("BooksByGenre", func(t *testing.T) { testBooksByGenre(t, newStore(t)) })
	t.Run("Ping", func(t *testing.T) { require.NoError(t, newStore(t).Ping(context.Background())) })
}

// NewUser builds an unsaved user with a fresh ID.
func NewUser(username string) *domain.User {
	u := &domain.User{
		Document:     domain.Document{ID: id.MustGenerate(id.PrefixUser)},
		Username:     username,
		PasswordHash: "$argon2id$placeholder",
	}
	u.InitTimestamps()
	return u
}

// NewBook builds an unsaved book with a fresh ID.
func NewBook(title string, authorID string, genres ...string) *domain.Book {
	if genres == nil {
		genres = []string{}
	}
	b := &domain.Book{
		Document:  domain.Document{ID: id.MustGenerate(id.PrefixBook)},
		Title:     title,
		Published: 1965,
		AuthorID:  authorID,
		Genres:    genres,
	}
	b.InitTimestamps()
	return b
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()

	user := NewUser("bob")
	require.NoError(t, s.CreateUser(ctx, user))

	got, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", got.Username)
	assert.Equal(t, user.PasswordHash, got.PasswordHash)
	assert.Empty(t, got.FavoriteGenre)

	got, err = s.GetUserByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	got.SetFavoriteGenre("refactoring")
	require.NoError(t, s.UpdateUser(ctx, got))

	got, err = s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "refactoring", got.FavoriteGenre)

	_, err = s.GetUser(ctx, "user-missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetUserByUsername(ctx, "alice")
	require.ErrorIs(t, err, store.ErrNotFound)

	missing := NewUser("ghost")
	require.ErrorIs(t, s.UpdateUser(ctx, missing), store.ErrNotFound)
}

func testUsernameUnique(t *testing.T, s store.Store) {
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, NewUser("bob")))

	err := s.CreateUser(ctx, NewUser("bob"))
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	// Case matters.
	require.NoError(t, s.CreateUser(ctx, NewUser("Bob")))
}

func testAuthorGetOrCreate(t *testing.T, s store.Store) {
	ctx := context.Background()

	first, created, err := s.GetOrCreateAuthor(ctx, "Frank Herbert")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Frank Herbert", first.Name)
	assert.Nil(t, first.Born)
	assert.True(t, id.HasPrefix(first.ID, id.PrefixAuthor))

	second, created, err := s.GetOrCreateAuthor(ctx, "Frank Herbert")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	// Whitespace differences resolve to the same author.
	third, created, err := s.GetOrCreateAuthor(ctx, "  Frank   Herbert ")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, third.ID)

	// Names are case-sensitive.
	other, created, err := s.GetOrCreateAuthor(ctx, "frank herbert")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, other.ID)

	count, err := s.CountAuthors(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func testAuthorGetOrCreateConcurrent(t *testing.T, s store.Store) {
	ctx := context.Background()
	const workers = 16

	var wg sync.WaitGroup
	ids := make([]string, workers)
	errs := make([]error, workers)
	created := make([]bool, workers)

	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, c, err := s.GetOrCreateAuthor(ctx, "Ursula K. Le Guin")
			errs[i] = err
			created[i] = c
			if a != nil {
				ids[i] = a.ID
			}
		}()
	}
	wg.Wait()

	createdCount := 0
	for i := range workers {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
		if created[i] {
			createdCount++
		}
	}
	assert.Equal(t, 1, createdCount)

	count, err := s.CountAuthors(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// testConcurrentDistinctInserts writes unrelated documents in parallel.
// None of them contend on a document or index key, so every write succeeds
// and every counter lands on the exact total.
func testConcurrentDistinctInserts(t *testing.T, s store.Store) {
	ctx := context.Background()
	const workers = 64

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.CreateUser(ctx, NewUser(fmt.Sprintf("reader%03d", i))); err != nil {
				errs[i] = fmt.Errorf("user: %w", err)
				return
			}
			author, created, err := s.GetOrCreateAuthor(ctx, fmt.Sprintf("Author %03d", i))
			if err != nil {
				errs[i] = fmt.Errorf("author: %w", err)
				return
			}
			if !created {
				errs[i] = fmt.Errorf("author %03d already existed", i)
				return
			}
			if err := s.CreateBook(ctx, NewBook(fmt.Sprintf("Book %03d", i), author.ID, "shared")); err != nil {
				errs[i] = fmt.Errorf("book: %w", err)
			}
		}()
	}
	wg.Wait()

	for i := range workers {
		require.NoError(t, errs[i], "worker %d", i)
	}

	for _, i := range []int{0, workers / 2, workers - 1} {
		_, err := s.GetUserByUsername(ctx, fmt.Sprintf("reader%03d", i))
		require.NoError(t, err)
	}

	authors, err := s.CountAuthors(ctx)
	require.NoError(t, err)
	assert.Equal(t, workers, authors)

	books, err := s.CountBooks(ctx)
	require.NoError(t, err)
	assert.Equal(t, workers, books)

	shared, err := s.ListBooks(ctx, store.BookFilter{Genre: "shared"})
	require.NoError(t, err)
	assert.Len(t, shared, workers)
}

func testAuthorUpdate(t *testing.T, s store.Store) {
	ctx := context.Background()

	author, _, err := s.GetOrCreateAuthor(ctx, "Fyodor Dostoevsky")
	require.NoError(t, err)

	author.SetBorn(1821)
	require.NoError(t, s.UpdateAuthor(ctx, author))

	got, err := s.GetAuthorByName(ctx, "Fyodor Dostoevsky")
	require.NoError(t, err)
	require.NotNil(t, got.Born)
	assert.Equal(t, 1821, *got.Born)

	// The name index survives the rewrite.
	again, created, err := s.GetOrCreateAuthor(ctx, "Fyodor Dostoevsky")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, author.ID, again.ID)

	ghost := &domain.Author{Document: domain.Document{ID: "author-missing"}, Name: "Nobody"}
	require.ErrorIs(t, s.UpdateAuthor(ctx, ghost), store.ErrNotFound)
}

func testAuthorLookups(t *testing.T, s store.Store) {
	ctx := context.Background()

	names := []string{"Sandi Metz", "Joshua Kerievsky", "Martin Fowler"}
	byName := make(map[string]*domain.Author)
	for _, name := range names {
		a, _, err := s.GetOrCreateAuthor(ctx, name)
		require.NoError(t, err)
		byName[name] = a
	}

	_, err := s.GetAuthorByName(ctx, "Unknown Person")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetAuthor(ctx, "author-missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	got, err := s.GetAuthor(ctx, byName["Sandi Metz"].ID)
	require.NoError(t, err)
	assert.Equal(t, "Sandi Metz", got.Name)

	batch, err := s.GetAuthorsByIDs(ctx, []string{byName["Martin Fowler"].ID, "author-missing", byName["Sandi Metz"].ID})
	require.NoError(t, err)
	assert.Len(t, batch, 2)

	all, err := s.ListAuthors(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Joshua Kerievsky", all[0].Name)
	assert.Equal(t, "Martin Fowler", all[1].Name)
	assert.Equal(t, "Sandi Metz", all[2].Name)
}

func testBooks(t *testing.T, s store.Store) {
	ctx := context.Background()

	author, _, err := s.GetOrCreateAuthor(ctx, "Frank Herbert")
	require.NoError(t, err)

	count, err := s.CountBooks(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	books, err := s.ListBooks(ctx, store.BookFilter{})
	require.NoError(t, err)
	assert.Empty(t, books)

	var created []*domain.Book
	for i := range 3 {
		b := NewBook(fmt.Sprintf("Dune %d", i+1), author.ID, "scifi")
		b.CreatedAt = b.CreatedAt.Add(time.Duration(i) * time.Second)
		require.NoError(t, s.CreateBook(ctx, b))
		created = append(created, b)
	}

	require.ErrorIs(t, s.CreateBook(ctx, created[0]), store.ErrAlreadyExists)

	count, err = s.CountBooks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	books, err = s.ListBooks(ctx, store.BookFilter{})
	require.NoError(t, err)
	require.Len(t, books, 3)
	for i, b := range books {
		assert.Equal(t, created[i].ID, b.ID)
		assert.Equal(t, author.ID, b.AuthorID)
		assert.Equal(t, []string{"scifi"}, b.Genres)
	}
}

func testBooksByGenre(t *testing.T, s store.Store) {
	ctx := context.Background()

	author, _, err := s.GetOrCreateAuthor(ctx, "Robert Martin")
	require.NoError(t, err)

	fixtures := []*domain.Book{
		NewBook("Clean Code", author.ID, "refactoring"),
		NewBook("Agile software development", author.ID, "agile", "patterns", "design"),
		NewBook("Refactoring to patterns", author.ID, "refactoring", "patterns"),
		NewBook("Untagged", author.ID),
	}
	for i, b := range fixtures {
		b.CreatedAt = b.CreatedAt.Add(time.Duration(i) * time.Second)
		require.NoError(t, s.CreateBook(ctx, b))
	}

	tests := []struct {
		genre string
		want  []string
	}{
		{"refactoring", []string{"Clean Code", "Refactoring to patterns"}},
		{"patterns", []string{"Agile software development", "Refactoring to patterns"}},
		{"design", []string{"Agile software development"}},
		{"Refactoring", nil},
		{"refactor", nil},
		{"", []string{"Clean Code", "Agile software development", "Refactoring to patterns", "Untagged"}},
	}

	for _, tt := range tests {
		t.Run(tt.genre, func(t *testing.T) {
			books, err := s.ListBooks(ctx, store.BookFilter{Genre: tt.genre})
			require.NoError(t, err)

			var titles []string
			for _, b := range books {
				titles = append(titles, b.Title)
			}
			assert.Equal(t, tt.want, titles)
		})
	}
}
