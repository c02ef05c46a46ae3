package api

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/listenupapp/catalog-server/internal/auth"
	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
	"github.com/listenupapp/catalog-server/internal/http/response"
	"github.com/listenupapp/catalog-server/internal/logger"
)

// authenticate attaches the bearer token's user to the request context.
//
// No Authorization header means an anonymous request. Any header that does
// not carry a valid token ends the request with 401 INVALID_TOKEN.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}

		log := logger.FromContext(r.Context(), s.logger)

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			log.WarnContext(r.Context(), "rejected malformed authorization header")
			s.rejectToken(w, domainerrors.InvalidToken("malformed authorization header"))
			return
		}

		user, claims, err := s.auth.VerifyToken(r.Context(), strings.TrimSpace(token))
		if err != nil {
			log.WarnContext(r.Context(), "rejected bearer token", "error", err)
			s.rejectToken(w, err)
			return
		}

		ctx := auth.WithUser(r.Context(), user)
		ctx = auth.WithExpiry(ctx, claims.ExpiresAt)
		ctx = logger.WithContext(ctx, log.With("user_id", user.ID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) rejectToken(w http.ResponseWriter, err error) {
	if s.metrics != nil {
		s.metrics.ResolverError(string(domainerrors.CodeOf(err)))
	}
	response.Error(w, err, s.logger)
}

// clientAddr records the caller's IP, as resolved by middleware.RealIP,
// for per-client throttling.
func clientAddr(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		next.ServeHTTP(w, r.WithContext(auth.WithClientAddr(r.Context(), host)))
	})
}

// requestLogger logs one line per request and stores a request-scoped
// logger in the context.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		reqLog := s.logger.With("request_id", middleware.GetReqID(r.Context()))
		ctx := logger.WithContext(r.Context(), reqLog)

		next.ServeHTTP(ww, r.WithContext(ctx))

		reqLog.LogAttrs(ctx, slog.LevelInfo, "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", time.Since(start)),
			slog.String("remote_ip", r.RemoteAddr),
		)
	})
}

// observe records request latency by route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		s.metrics.ObserveRequest(route, ww.Status(), time.Since(start))
	})
}
