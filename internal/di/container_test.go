package di

import (
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/samber/do/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/catalog-server/internal/config"
	"github.com/listenupapp/catalog-server/internal/di/providers"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := &config.Config{
		App:    config.AppConfig{Environment: "development"},
		Logger: config.LoggerConfig{Level: "error", Format: "json"},
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            0,
			ShutdownTimeout: 5 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Database: config.DatabaseConfig{URL: filepath.Join(t.TempDir(), "db")},
		Auth: config.AuthConfig{
			TokenSecret: "container-test-secret",
			TokenFormat: "paseto",
			TokenTTL:    time.Hour,
			LoginRate:   1,
			LoginBurst:  5,
		},
		GraphQL: config.GraphQLConfig{MaxDepth: 10},
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestBootstrap_ServesHealth(t *testing.T) {
	injector := NewContainer()
	do.OverrideValue(injector, testConfig(t))

	require.NoError(t, Bootstrap(injector))
	t.Cleanup(func() { _ = injector.Shutdown() })

	srv := do.MustInvoke[*providers.HTTPServerHandle](injector)

	resp, err := http.Get("http://" + srv.ListenAddr() + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBootstrap_FailsWhenStoreCannotOpen(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.URL = "mongodb://127.0.0.1:1/?connectTimeoutMS=200&serverSelectionTimeoutMS=200"

	injector := NewContainer()
	do.OverrideValue(injector, cfg)

	err := Bootstrap(injector)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open store")
}
