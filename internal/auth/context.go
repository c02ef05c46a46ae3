package auth

import (
	"context"
	"time"

	"github.com/listenupapp/catalog-server/internal/domain"
	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
)

type (
	ctxKey        struct{}
	expiryKey     struct{}
	clientAddrKey struct{}
)

// WithUser returns a copy of ctx carrying the authenticated user.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, user)
}

// UserFromContext returns the authenticated user, or nil for anonymous callers.
func UserFromContext(ctx context.Context) *domain.User {
	user, _ := ctx.Value(ctxKey{}).(*domain.User)
	return user
}

// RequireAuthenticated is the gate every catalog mutation passes first.
// It returns the caller or an Unauthenticated error.
func RequireAuthenticated(ctx context.Context) (*domain.User, error) {
	user := UserFromContext(ctx)
	if user == nil || user.ID == "" {
		return nil, domainerrors.ErrUnauthenticated
	}
	return user, nil
}

// WithExpiry records when the credentials behind ctx stop being valid.
func WithExpiry(ctx context.Context, expiresAt time.Time) context.Context {
	return context.WithValue(ctx, expiryKey{}, expiresAt)
}

// ExpiryFromContext returns the credential expiry recorded by WithExpiry.
func ExpiryFromContext(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(expiryKey{}).(time.Time)
	return t, ok && !t.IsZero()
}

// WithClientAddr records the caller's network address.
func WithClientAddr(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, clientAddrKey{}, addr)
}

// ClientAddrFromContext returns the caller's address, or "" when unknown.
func ClientAddrFromContext(ctx context.Context) string {
	addr, _ := ctx.Value(clientAddrKey{}).(string)
	return addr
}
