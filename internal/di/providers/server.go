package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/graph-gophers/graphql-go"
	"github.com/samber/do/v2"

	"github.com/listenupapp/catalog-server/internal/api"
	"github.com/listenupapp/catalog-server/internal/config"
	"github.com/listenupapp/catalog-server/internal/graph"
	"github.com/listenupapp/catalog-server/internal/logger"
	"github.com/listenupapp/catalog-server/internal/metrics"
	"github.com/listenupapp/catalog-server/internal/service"
)

// Version is reported by the health endpoint's OpenAPI document.
var Version = "dev"

// ProvideSchema provides the executable GraphQL schema.
func ProvideSchema(i do.Injector) (*graphql.Schema, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	bus := do.MustInvoke[*BookBusHandle](i)

	return graph.NewSchema(graph.Config{
		Auth:     do.MustInvoke[*service.AuthService](i),
		Catalog:  do.MustInvoke[*service.CatalogService](i),
		Books:    bus.Broker,
		Errors:   do.MustInvoke[*metrics.Metrics](i),
		Logger:   log.Logger,
		MaxDepth: cfg.GraphQL.MaxDepth,
	})
}

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	listener        net.Listener
	shutdownTimeout time.Duration
}

// ListenAddr returns the bound address, which differs from Addr when the
// configured port is 0.
func (h *HTTPServerHandle) ListenAddr() string {
	return h.listener.Addr().String()
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer binds the listener and starts serving in the background.
// A bind failure is returned so startup stops.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	bus := do.MustInvoke[*BookBusHandle](i)

	handler := api.NewServer(api.Config{
		Schema:      do.MustInvoke[*graphql.Schema](i),
		Auth:        do.MustInvoke[*service.AuthService](i),
		Store:       storeHandle.Store,
		Subscribers: bus.Broker,
		Metrics:     do.MustInvoke[*metrics.Metrics](i),
		CORSOrigins: cfg.Server.CORSOrigins,
		Version:     Version,
		Logger:      log.Logger,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", srv.Addr, err)
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server ready", "addr", ln.Addr().String(), "graphql", "/graphql")

	return &HTTPServerHandle{
		Server:          srv,
		listener:        ln,
		shutdownTimeout: cfg.Server.ShutdownTimeout,
	}, nil
}
