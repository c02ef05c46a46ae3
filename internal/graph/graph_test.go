package graph

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/graph-gophers/graphql-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/catalog-server/internal/auth"
	"github.com/listenupapp/catalog-server/internal/domain"
	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
	"github.com/listenupapp/catalog-server/internal/notify"
	"github.com/listenupapp/catalog-server/internal/service"
	"github.com/listenupapp/catalog-server/internal/store/badgerdb"
)

type codeCounter struct {
	mu    sync.Mutex
	codes []string
}

func (c *codeCounter) ResolverError(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes = append(c.codes, code)
}

type harness struct {
	schema *graphql.Schema
	root   *Resolver
	auth   *service.AuthService
	broker *notify.Broker[*service.BookView]
	codes  *codeCounter
}

func setupSchema(t *testing.T, maxDepth int) *harness {
	t.Helper()

	s, err := badgerdb.Open(filepath.Join(t.TempDir(), "db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	signer, err := auth.NewSigner(auth.SignerConfig{Secret: "graph-test-secret-0123"})
	require.NoError(t, err)

	broker := notify.NewBroker[*service.BookView](notify.TopicBookAdded, nil)
	t.Cleanup(func() { _ = broker.Close() })

	h := &harness{
		auth:   service.NewAuthService(s, signer, nil),
		broker: broker,
		codes:  &codeCounter{},
	}
	cfg := Config{
		Auth:     h.auth,
		Catalog:  service.NewCatalogService(s, broker, nil, nil),
		Books:    broker,
		Errors:   h.codes,
		MaxDepth: maxDepth,
	}
	h.schema, err = NewSchema(cfg)
	require.NoError(t, err)
	h.root = newResolver(cfg)
	return h
}

func (h *harness) exec(t *testing.T, ctx context.Context, query string, vars map[string]any) (map[string]any, []map[string]any) {
	t.Helper()

	resp := h.schema.Exec(ctx, query, "", vars)

	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var out struct {
		Data   map[string]any   `json:"data"`
		Errors []map[string]any `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	return out.Data, out.Errors
}

func (h *harness) login(t *testing.T, username string) context.Context {
	t.Helper()
	user, err := h.auth.CreateUser(context.Background(), service.CreateUserRequest{Username: username, Password: "secret"})
	require.NoError(t, err)
	return auth.WithUser(context.Background(), user)
}

const addBookMutation = `
mutation ($title: String!, $published: Int!, $author: String!, $genres: [String!]) {
  addBook(title: $title, published: $published, author: $author, genres: $genres) {
    id title published genres
    author { id name born }
  }
}`

func TestAddBook_ReturnsResolvedAuthor(t *testing.T) {
	h := setupSchema(t, 0)
	ctx := h.login(t, "mluukkai")

	data, errs := h.exec(t, ctx, addBookMutation, map[string]any{
		"title": "Clean Code", "published": 2008, "author": "Robert Martin", "genres": []any{"refactoring"},
	})
	require.Empty(t, errs)

	book := data["addBook"].(map[string]any)
	assert.Equal(t, "Clean Code", book["title"])
	assert.EqualValues(t, 2008, book["published"])
	assert.Equal(t, []any{"refactoring"}, book["genres"])

	author := book["author"].(map[string]any)
	assert.Equal(t, "Robert Martin", author["name"])
	assert.Nil(t, author["born"])
}

func TestAddBook_AnonymousIsUnauthenticated(t *testing.T) {
	h := setupSchema(t, 0)

	data, errs := h.exec(t, context.Background(), addBookMutation, map[string]any{
		"title": "Clean Code", "published": 2008, "author": "Robert Martin",
	})
	require.Len(t, errs, 1)
	assert.Nil(t, data)
	assert.Equal(t, "UNAUTHENTICATED", errs[0]["extensions"].(map[string]any)["code"])

	data, errs = h.exec(t, context.Background(), `{ bookCount authorCount }`, nil)
	require.Empty(t, errs)
	assert.EqualValues(t, 0, data["bookCount"])
	assert.EqualValues(t, 0, data["authorCount"])
	assert.Equal(t, []string{"UNAUTHENTICATED"}, h.codes.codes)
}

func TestAddBorn_NotFoundCarriesInvalidArgs(t *testing.T) {
	h := setupSchema(t, 0)
	ctx := h.login(t, "mluukkai")

	_, errs := h.exec(t, ctx, `mutation { addBorn(name: "Unknown Person", setBorn: 1900) { name born } }`, nil)
	require.Len(t, errs, 1)

	ext := errs[0]["extensions"].(map[string]any)
	assert.Equal(t, "NOT_FOUND", ext["code"])
	assert.Equal(t, "Unknown Person", ext["invalidArgs"])
}

func TestQueries(t *testing.T) {
	h := setupSchema(t, 0)
	ctx := h.login(t, "mluukkai")

	for _, vars := range []map[string]any{
		{"title": "Clean Code", "published": 2008, "author": "Robert Martin", "genres": []any{"refactoring"}},
		{"title": "Agile software development", "published": 2002, "author": "Robert Martin", "genres": []any{"agile", "patterns"}},
		{"title": "The Demon", "published": 1872, "author": "Fyodor Dostoevsky", "genres": []any{"classic"}},
	} {
		_, errs := h.exec(t, ctx, addBookMutation, vars)
		require.Empty(t, errs)
	}

	_, errs := h.exec(t, ctx, `mutation { addBorn(name: "Robert Martin", setBorn: 1952) { born } }`, nil)
	require.Empty(t, errs)

	data, errs := h.exec(t, ctx, `{
  bookCount
  authorCount
  allAuthor { name born }
  allAuthors { name }
  patterns: allBooks(genre: "patterns") { title author { name born } }
  me { username favoriteGenre }
}`, nil)
	require.Empty(t, errs)

	assert.EqualValues(t, 3, data["bookCount"])
	assert.EqualValues(t, 2, data["authorCount"])
	assert.Equal(t, []any{
		map[string]any{"name": "Fyodor Dostoevsky", "born": nil},
		map[string]any{"name": "Robert Martin", "born": float64(1952)},
	}, data["allAuthor"])
	assert.Len(t, data["allAuthors"], 2)
	assert.Equal(t, []any{
		map[string]any{"title": "Agile software development", "author": map[string]any{"name": "Robert Martin", "born": float64(1952)}},
	}, data["patterns"])
	assert.Equal(t, map[string]any{"username": "mluukkai", "favoriteGenre": nil}, data["me"])
}

func TestMe_Anonymous(t *testing.T) {
	h := setupSchema(t, 0)

	data, errs := h.exec(t, context.Background(), `{ me { username } }`, nil)
	require.Empty(t, errs)
	assert.Nil(t, data["me"])
}

func TestCreateUserLoginEditGenre(t *testing.T) {
	h := setupSchema(t, 0)
	ctx := context.Background()

	data, errs := h.exec(t, ctx, `mutation { createUser(username: "hellas", password: "salainen") { id username } }`, nil)
	require.Empty(t, errs)
	userID := data["createUser"].(map[string]any)["id"].(string)

	_, errs = h.exec(t, ctx, `mutation { login(username: "hellas", password: "wrong") { value } }`, nil)
	require.Len(t, errs, 1)
	assert.Equal(t, "INVALID_CREDENTIALS", errs[0]["extensions"].(map[string]any)["code"])

	data, errs = h.exec(t, ctx, `mutation { login(username: "hellas", password: "salainen") { value } }`, nil)
	require.Empty(t, errs)
	token := data["login"].(map[string]any)["value"].(string)

	user, _, err := h.auth.VerifyToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, userID, user.ID)

	data, errs = h.exec(t, auth.WithUser(ctx, user), `mutation { editFavoriteGenre(genre: "crime") { username favoriteGenre } }`, nil)
	require.Empty(t, errs)
	assert.Equal(t, "crime", data["editFavoriteGenre"].(map[string]any)["favoriteGenre"])
}

func TestBookAdded_Subscription(t *testing.T) {
	h := setupSchema(t, 0)
	ctx := h.login(t, "mluukkai")

	// A book added before subscribing is never delivered.
	_, errs := h.exec(t, ctx, addBookMutation, map[string]any{"title": "Before", "published": 2000, "author": "Early Bird"})
	require.Empty(t, errs)

	subCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := h.schema.Subscribe(subCtx, `subscription { bookAdded { title author { name } } }`, "", nil)
	require.NoError(t, err)

	_, errs = h.exec(t, ctx, addBookMutation, map[string]any{"title": "After", "published": 2001, "author": "Late Comer"})
	require.Empty(t, errs)

	select {
	case ev := <-events:
		raw, err := json.Marshal(ev)
		require.NoError(t, err)
		assert.JSONEq(t, `{"data":{"bookAdded":{"title":"After","author":{"name":"Late Comer"}}}}`, string(raw))
	case <-time.After(2 * time.Second):
		t.Fatal("no bookAdded event")
	}

	cancel()
	require.Eventually(t, func() bool { return h.broker.SubscriberCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestMaxDepth(t *testing.T) {
	h := setupSchema(t, 2)

	_, errs := h.exec(t, context.Background(), `{ allBooks { author { name } } }`, nil)
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0]["message"], "exceeds max depth")
}

func TestErrorMapper(t *testing.T) {
	codes := &codeCounter{}
	m := &errorMapper{recorder: codes, logger: slog.New(slog.DiscardHandler)}
	ctx := context.Background()

	assert.NoError(t, m.wrap(ctx, "op", nil))

	err := m.wrap(ctx, "op", errors.New("badger: txn conflict"))
	var domErr *domainerrors.Error
	require.ErrorAs(t, err, &domErr)
	assert.Equal(t, domainerrors.CodeInternal, domErr.Code)
	assert.NotContains(t, err.Error(), "badger")

	wrapped := errors.Join(domainerrors.NotFound("author missing"))
	err = m.wrap(ctx, "op", wrapped)
	require.ErrorAs(t, err, &domErr)
	assert.Equal(t, domainerrors.CodeNotFound, domErr.Code)

	qe := m.MakePanicError(ctx, "boom")
	assert.Equal(t, "INTERNAL", qe.Extensions["code"])

	assert.Equal(t, []string{"INTERNAL", "NOT_FOUND", "INTERNAL"}, codes.codes)
}

func TestBookResolver_LazyAuthor(t *testing.T) {
	h := setupSchema(t, 0)
	ctx := h.login(t, "mluukkai")

	_, errs := h.exec(t, ctx, addBookMutation, map[string]any{"title": "Clean Code", "published": 2008, "author": "Robert Martin"})
	require.Empty(t, errs)

	root := h.root
	views, err := root.catalog.Books(ctx, "")
	require.NoError(t, err)
	require.Len(t, views, 1)

	lazy := root.book(&service.BookView{Book: views[0].Book})
	author, err := lazy.Author(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Robert Martin", *author.Name())

	orphan := root.book(&service.BookView{Book: &domain.Book{AuthorID: "aut-gone"}})
	_, err = orphan.Author(ctx)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}
