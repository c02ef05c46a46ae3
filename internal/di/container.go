// Package di provides dependency injection configuration for the catalog server.
package di

import (
	"github.com/graph-gophers/graphql-go"
	"github.com/samber/do/v2"

	"github.com/listenupapp/catalog-server/internal/auth"
	"github.com/listenupapp/catalog-server/internal/config"
	"github.com/listenupapp/catalog-server/internal/di/providers"
	"github.com/listenupapp/catalog-server/internal/logger"
	"github.com/listenupapp/catalog-server/internal/metrics"
	"github.com/listenupapp/catalog-server/internal/ratelimit"
	"github.com/listenupapp/catalog-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideMetrics)

	// Database layer
	do.Provide(injector, providers.ProvideStore)

	// Auth layer
	do.Provide(injector, providers.ProvideSigner)
	do.Provide(injector, providers.ProvideLoginLimiter)

	// Notifications
	do.Provide(injector, providers.ProvideBookBus)

	// Business services
	do.Provide(injector, providers.ProvideAuthService)
	do.Provide(injector, providers.ProvideCatalogService)

	// Server
	do.Provide(injector, providers.ProvideSchema)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services in dependency order and starts the
// HTTP listener. Any provider error, such as missing configuration or an
// unreachable store, is returned.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*metrics.Metrics](injector)

	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[auth.Signer](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*ratelimit.KeyedRateLimiter](injector)
	_ = do.MustInvoke[*providers.BookBusHandle](injector)

	_ = do.MustInvoke[*service.AuthService](injector)
	_ = do.MustInvoke[*service.CatalogService](injector)

	if _, err := do.Invoke[*graphql.Schema](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.HTTPServerHandle](injector); err != nil {
		return err
	}

	return nil
}
