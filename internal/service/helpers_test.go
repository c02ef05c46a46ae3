package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/listenupapp/catalog-server/internal/auth"
	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/store"
	"github.com/listenupapp/catalog-server/internal/store/badgerdb"
)

const testSecret = "test-secret-0123456789"

// recordingBus captures published books.
type recordingBus struct {
	mu    sync.Mutex
	books []*BookView
}

func (b *recordingBus) Publish(_ context.Context, view *BookView) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.books = append(b.books, view)
}

func (b *recordingBus) published() []*BookView {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*BookView(nil), b.books...)
}

type countingMetrics struct {
	mu             sync.Mutex
	logins         map[bool]int
	books          int
	authorsCreated int
}

func (m *countingMetrics) Login(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.logins == nil {
		m.logins = map[bool]int{}
	}
	m.logins[success]++
}

func (m *countingMetrics) BookAdded(authorCreated bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.books++
	if authorCreated {
		m.authorsCreated++
	}
}

type testEnv struct {
	store   store.Store
	signer  auth.Signer
	bus     *recordingBus
	metrics *countingMetrics
	auth    *AuthService
	catalog *CatalogService
}

// setupTest wires both services to a Badger store in a temp directory.
func setupTest(t *testing.T, opts ...AuthOption) *testEnv {
	t.Helper()

	s, err := badgerdb.Open(filepath.Join(t.TempDir(), "db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	signer, err := auth.NewSigner(auth.SignerConfig{Format: auth.FormatJWT, Secret: testSecret})
	require.NoError(t, err)

	env := &testEnv{
		store:   s,
		signer:  signer,
		bus:     &recordingBus{},
		metrics: &countingMetrics{},
	}
	opts = append([]AuthOption{WithAuthMetrics(env.metrics)}, opts...)
	env.auth = NewAuthService(s, signer, nil, opts...)
	env.catalog = NewCatalogService(s, env.bus, env.metrics, nil)
	return env
}

// signedIn creates a user and returns a context authenticated as them.
func (e *testEnv) signedIn(t *testing.T, username string) (context.Context, *domain.User) {
	t.Helper()
	user, err := e.auth.CreateUser(context.Background(), CreateUserRequest{Username: username, Password: "secret"})
	require.NoError(t, err)
	return auth.WithUser(context.Background(), user), user
}
