package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/catalog-server/internal/domain"
	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
	"github.com/listenupapp/catalog-server/internal/store"
)

func TestAddBook_ResolvesAuthorAndPublishes(t *testing.T) {
	env := setupTest(t)
	ctx, _ := env.signedIn(t, "mluukkai")

	view, err := env.catalog.AddBook(ctx, AddBookRequest{
		Title:     "Clean Code",
		Published: 2008,
		Author:    "Robert Martin",
		Genres:    []string{"refactoring"},
	})
	require.NoError(t, err)

	require.NotNil(t, view.Author)
	assert.Equal(t, "Robert Martin", view.Author.Name)
	assert.Equal(t, view.Author.ID, view.AuthorID)
	assert.Nil(t, view.Author.Born)
	assert.Equal(t, []string{"refactoring"}, view.Genres)

	published := env.bus.published()
	require.Len(t, published, 1)
	assert.Equal(t, view.ID, published[0].ID)
	assert.Equal(t, "Robert Martin", published[0].Author.Name)

	assert.Equal(t, 1, env.metrics.books)
	assert.Equal(t, 1, env.metrics.authorsCreated)
}

func TestAddBook_ReusesAuthor(t *testing.T) {
	env := setupTest(t)
	ctx, _ := env.signedIn(t, "mluukkai")

	first, err := env.catalog.AddBook(ctx, AddBookRequest{Title: "Clean Code", Published: 2008, Author: "Robert Martin"})
	require.NoError(t, err)
	second, err := env.catalog.AddBook(ctx, AddBookRequest{Title: "Agile software development", Published: 2002, Author: "Robert Martin"})
	require.NoError(t, err)

	assert.Equal(t, first.Author.ID, second.Author.ID)

	count, err := env.catalog.AuthorCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	books, err := env.catalog.BookCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, books)
	assert.Equal(t, 1, env.metrics.authorsCreated)
}

func TestAddBook_ConcurrentSameNewAuthor(t *testing.T) {
	env := setupTest(t)
	ctx, _ := env.signedIn(t, "mluukkai")

	const n = 8
	var wg sync.WaitGroup
	ids := make([]string, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			view, err := env.catalog.AddBook(ctx, AddBookRequest{
				Title:     fmt.Sprintf("Volume %d", i),
				Published: 2000 + i,
				Author:    "Joshua Kerievsky",
			})
			errs[i] = err
			if err == nil {
				ids[i] = view.Author.ID
			}
		}()
	}
	wg.Wait()

	for i := range n {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	count, err := env.catalog.AuthorCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAddBook_ConcurrentDistinctAuthors(t *testing.T) {
	env := setupTest(t)
	ctx, _ := env.signedIn(t, "mluukkai")

	const n = 96
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = env.catalog.AddBook(ctx, AddBookRequest{
				Title:     fmt.Sprintf("Book %d", i),
				Published: 1900 + i,
				Author:    fmt.Sprintf("Author %d", i),
				Genres:    []string{"anthology"},
			})
		}()
	}
	wg.Wait()

	for i := range n {
		require.NoError(t, errs[i], "book %d", i)
	}

	authors, err := env.catalog.AuthorCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, n, authors)

	books, err := env.catalog.BookCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, n, books)

	listed, err := env.catalog.Books(ctx, "anthology")
	require.NoError(t, err)
	assert.Len(t, listed, n)
	assert.Len(t, env.bus.published(), n)
}

// conflictingStore fails every author write the way an exhausted
// transaction retry does.
type conflictingStore struct {
	store.Store
}

func (conflictingStore) GetOrCreateAuthor(context.Context, string) (*domain.Author, bool, error) {
	return nil, false, fmt.Errorf("get or create author: %w", store.ErrConflict)
}

func (conflictingStore) UpdateAuthor(context.Context, *domain.Author) error {
	return store.ErrConflict
}

func TestAddBook_WriteConflictIsInternal(t *testing.T) {
	env := setupTest(t)
	ctx, _ := env.signedIn(t, "mluukkai")

	catalog := NewCatalogService(conflictingStore{env.store}, env.bus, env.metrics, nil)

	_, err := catalog.AddBook(ctx, AddBookRequest{Title: "Clean Code", Published: 2008, Author: "Robert Martin"})
	assert.Equal(t, domainerrors.CodeInternal, domainerrors.CodeOf(err))
	assert.ErrorIs(t, err, store.ErrConflict)
	assert.Empty(t, env.bus.published())

	_, err = env.catalog.AddBook(ctx, AddBookRequest{Title: "Clean Code", Published: 2008, Author: "Robert Martin"})
	require.NoError(t, err)
	_, err = catalog.AddBorn(ctx, AddBornRequest{Name: "Robert Martin", SetBorn: 1952})
	assert.Equal(t, domainerrors.CodeInternal, domainerrors.CodeOf(err))
}

func TestAddBook_StoresTitleAndGenresAsGiven(t *testing.T) {
	env := setupTest(t)
	ctx, _ := env.signedIn(t, "mluukkai")

	view, err := env.catalog.AddBook(ctx, AddBookRequest{
		Title:     "Refactoring,  edition 2",
		Published: 2018,
		Author:    "Martin Fowler",
		Genres:    []string{"scifi", " scifi ", "scifi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Refactoring,  edition 2", view.Title)
	assert.Equal(t, []string{"scifi", " scifi "}, view.Genres)

	exact, err := env.catalog.Books(ctx, "scifi")
	require.NoError(t, err)
	assert.Len(t, exact, 1)

	padded, err := env.catalog.Books(ctx, " scifi ")
	require.NoError(t, err)
	assert.Len(t, padded, 1)

	other, err := env.catalog.Books(ctx, "scifi ")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestAddBook_AnonymousHasNoSideEffects(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()

	_, err := env.catalog.AddBook(ctx, AddBookRequest{Title: "Clean Code", Published: 2008, Author: "Robert Martin"})
	require.ErrorIs(t, err, domainerrors.ErrUnauthenticated)

	books, err := env.catalog.BookCount(ctx)
	require.NoError(t, err)
	authors, err := env.catalog.AuthorCount(ctx)
	require.NoError(t, err)

	assert.Zero(t, books)
	assert.Zero(t, authors)
	assert.Empty(t, env.bus.published())
}

func TestAddBook_Validation(t *testing.T) {
	env := setupTest(t)
	ctx, _ := env.signedIn(t, "mluukkai")

	tests := []struct {
		name     string
		req      AddBookRequest
		wantArgs any
	}{
		{"empty title", AddBookRequest{Published: 2008, Author: "Robert Martin"}, ""},
		{"empty author", AddBookRequest{Title: "Clean Code", Published: 2008}, ""},
		{"blank author", AddBookRequest{Title: "Clean Code", Published: 2008, Author: "  "}, "  "},
		{"blank genre", AddBookRequest{Title: "Clean Code", Published: 2008, Author: "Robert Martin", Genres: []string{""}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.catalog.AddBook(ctx, tt.req)

			var domErr *domainerrors.Error
			require.ErrorAs(t, err, &domErr)
			assert.Equal(t, domainerrors.CodeValidationFailed, domErr.Code)
			assert.Equal(t, tt.wantArgs, domErr.InvalidArgs)
		})
	}

	authors, err := env.catalog.AuthorCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, authors)
}

func TestAddBorn(t *testing.T) {
	env := setupTest(t)
	ctx, _ := env.signedIn(t, "mluukkai")

	_, err := env.catalog.AddBook(ctx, AddBookRequest{Title: "Clean Code", Published: 2008, Author: "Robert Martin"})
	require.NoError(t, err)

	author, err := env.catalog.AddBorn(ctx, AddBornRequest{Name: "Robert Martin", SetBorn: 1952})
	require.NoError(t, err)
	require.NotNil(t, author.Born)
	assert.Equal(t, 1952, *author.Born)

	authors, err := env.catalog.Authors(ctx)
	require.NoError(t, err)
	require.Len(t, authors, 1)
	require.NotNil(t, authors[0].Born)
	assert.Equal(t, 1952, *authors[0].Born)
}

func TestAddBorn_UnknownAuthor(t *testing.T) {
	env := setupTest(t)
	ctx, _ := env.signedIn(t, "mluukkai")

	_, err := env.catalog.AddBorn(ctx, AddBornRequest{Name: "Unknown Person", SetBorn: 1900})

	var domErr *domainerrors.Error
	require.ErrorAs(t, err, &domErr)
	assert.Equal(t, domainerrors.CodeNotFound, domErr.Code)
	assert.Equal(t, "Unknown Person", domErr.InvalidArgs)
}

func TestAddBorn_Anonymous(t *testing.T) {
	env := setupTest(t)
	ctx, _ := env.signedIn(t, "mluukkai")

	_, err := env.catalog.AddBook(ctx, AddBookRequest{Title: "Clean Code", Published: 2008, Author: "Robert Martin"})
	require.NoError(t, err)

	_, err = env.catalog.AddBorn(context.Background(), AddBornRequest{Name: "Robert Martin", SetBorn: 1952})
	require.ErrorIs(t, err, domainerrors.ErrUnauthenticated)

	authors, err := env.catalog.Authors(ctx)
	require.NoError(t, err)
	assert.Nil(t, authors[0].Born)
}

func TestBooks_GenreFilter(t *testing.T) {
	env := setupTest(t)
	ctx, _ := env.signedIn(t, "mluukkai")

	seed := []AddBookRequest{
		{Title: "Clean Code", Published: 2008, Author: "Robert Martin", Genres: []string{"refactoring"}},
		{Title: "Refactoring to patterns", Published: 2008, Author: "Joshua Kerievsky", Genres: []string{"refactoring", "patterns"}},
		{Title: "Crime and punishment", Published: 1866, Author: "Fyodor Dostoevsky", Genres: []string{"classic", "crime"}},
		{Title: "Demons", Published: 1872, Author: "Fyodor Dostoevsky", Genres: []string{"classic", "revolution"}},
	}
	for _, req := range seed {
		_, err := env.catalog.AddBook(ctx, req)
		require.NoError(t, err)
	}

	tests := []struct {
		genre string
		want  []string
	}{
		{"", []string{"Clean Code", "Refactoring to patterns", "Crime and punishment", "Demons"}},
		{"refactoring", []string{"Clean Code", "Refactoring to patterns"}},
		{"classic", []string{"Crime and punishment", "Demons"}},
		{"Classic", nil},
		{"class", nil},
	}

	for _, tt := range tests {
		t.Run(tt.genre, func(t *testing.T) {
			views, err := env.catalog.Books(ctx, tt.genre)
			require.NoError(t, err)

			var titles []string
			for _, v := range views {
				require.NotNil(t, v.Author, "author resolved in batch")
				assert.Equal(t, v.AuthorID, v.Author.ID)
				titles = append(titles, v.Title)
			}
			assert.Equal(t, tt.want, titles)
		})
	}
}

func TestAuthor_Lookup(t *testing.T) {
	env := setupTest(t)
	ctx, _ := env.signedIn(t, "mluukkai")

	view, err := env.catalog.AddBook(ctx, AddBookRequest{Title: "Clean Code", Published: 2008, Author: "Robert Martin"})
	require.NoError(t, err)

	author, err := env.catalog.Author(ctx, view.AuthorID)
	require.NoError(t, err)
	assert.Equal(t, "Robert Martin", author.Name)

	_, err = env.catalog.Author(ctx, "aut-missing")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}
