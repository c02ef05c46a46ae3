package api

import (
	"context"
	"net/http"

	"github.com/graph-gophers/graphql-go/relay"
	"github.com/graph-gophers/graphql-transport-ws/graphqlws"

	"github.com/listenupapp/catalog-server/internal/auth"
	"github.com/listenupapp/catalog-server/internal/logger"
)

// graphqlHandler serves queries and mutations over POST and subscriptions
// over a graphql-ws websocket on the same path.
func (s *Server) graphqlHandler() http.Handler {
	httpHandler := &relay.Handler{Schema: s.schema}

	return graphqlws.NewHandlerFunc(s.schema, s.limitBody(httpHandler),
		graphqlws.WithContextGenerator(graphqlws.ContextGeneratorFunc(s.websocketContext)))
}

// websocketContext carries the upgrade request's identity and logger into
// the connection, which outlives the request context. An authenticated
// connection ends when its token expires: every operation on the socket,
// mutations included, runs under that deadline.
func (s *Server) websocketContext(ctx context.Context, r *http.Request) (context.Context, error) {
	ctx = logger.WithContext(ctx, logger.FromContext(r.Context(), s.logger))
	ctx = auth.WithClientAddr(ctx, auth.ClientAddrFromContext(r.Context()))

	user := auth.UserFromContext(r.Context())
	if user == nil {
		return ctx, nil
	}
	ctx = auth.WithUser(ctx, user)

	if expiresAt, ok := auth.ExpiryFromContext(r.Context()); ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, expiresAt)
		// The connection has no close hook; the deadline releases the timer.
		_ = cancel
	}
	return ctx, nil
}

func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}
