// Package service holds the catalog's business operations: account
// management, token issuance and the book and author mutations.
//
// Services return *errors.Error values for every outcome a client can act
// on. Anything else is an internal failure and is wrapped with context.
package service

import (
	"errors"
	"log/slog"

	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
	"github.com/listenupapp/catalog-server/internal/store"
	"github.com/listenupapp/catalog-server/internal/validation"
)

// validate is the shared input validator.
var validate = validation.New()

// Limiter throttles events per key. ratelimit.KeyedRateLimiter implements it.
type Limiter interface {
	Allow(key string) bool
}

// AuthMetrics records authentication outcomes.
type AuthMetrics interface {
	Login(success bool)
}

// CatalogMetrics records catalog writes.
type CatalogMetrics interface {
	BookAdded(authorCreated bool)
}

type nopMetrics struct{}

func (nopMetrics) Login(bool)     {}
func (nopMetrics) BookAdded(bool) {}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}

// saveFailed reports a rejected store write. A write that kept losing to
// concurrent writers is a server fault, not bad input, and surfaces as INTERNAL.
func saveFailed(err error, msg string, invalidArgs any) error {
	if errors.Is(err, store.ErrConflict) {
		return domainerrors.Internal(msg).WithCause(err)
	}
	return domainerrors.ValidationFailed(msg, invalidArgs).WithCause(err)
}
