// Package graph exposes the catalog over GraphQL using graph-gophers/graphql-go.
package graph

import (
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/graph-gophers/graphql-go"

	"github.com/listenupapp/catalog-server/internal/notify"
	"github.com/listenupapp/catalog-server/internal/service"
)

//go:embed schema.graphql
var schemaSDL string

// ErrorRecorder counts errors returned to clients, by code.
type ErrorRecorder interface {
	ResolverError(code string)
}

// Config wires the schema to its services.
type Config struct {
	Auth    *service.AuthService
	Catalog *service.CatalogService
	Books   notify.Subscriber[*service.BookView]
	Errors  ErrorRecorder
	Logger  *slog.Logger
	// MaxDepth limits query nesting. Zero disables the limit.
	MaxDepth int
}

// NewSchema parses the embedded SDL against the root resolver.
func NewSchema(cfg Config) (*graphql.Schema, error) {
	root := newResolver(cfg)

	opts := []graphql.SchemaOpt{
		graphql.Logger(panicLogger{logger: root.logger}),
		graphql.PanicHandler(root.errs),
	}
	if cfg.MaxDepth > 0 {
		opts = append(opts, graphql.MaxDepth(cfg.MaxDepth))
	}

	schema, err := graphql.ParseSchema(schemaSDL, root, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse graphql schema: %w", err)
	}
	return schema, nil
}

func newResolver(cfg Config) *Resolver {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Resolver{
		auth:    cfg.Auth,
		catalog: cfg.Catalog,
		books:   cfg.Books,
		errs:    &errorMapper{recorder: cfg.Errors, logger: logger},
		logger:  logger,
	}
}
