package graph

import (
	"context"
	"log/slog"

	gqlerrors "github.com/graph-gophers/graphql-go/errors"

	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
	"github.com/listenupapp/catalog-server/internal/logger"
)

// errorMapper turns service errors into client-facing errors.
//
// *errors.Error values pass through and render their code under
// extensions. Anything else is logged and replaced by a generic INTERNAL.
type errorMapper struct {
	recorder ErrorRecorder
	logger   *slog.Logger
}

func (m *errorMapper) wrap(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}

	log := logger.FromContext(ctx, m.logger)

	var domErr *domainerrors.Error
	if !domainerrors.As(err, &domErr) {
		log.ErrorContext(ctx, "resolver failed", "operation", op, "error", err)
		domErr = domainerrors.Internal("internal server error")
	} else if cause := domainerrors.Unwrap(domErr); cause != nil {
		log.DebugContext(ctx, "resolver rejected request",
			"operation", op, "code", string(domErr.Code), "cause", cause)
	}

	if m.recorder != nil {
		m.recorder.ResolverError(string(domErr.Code))
	}
	return domErr
}

// MakePanicError implements errors.PanicHandler.
func (m *errorMapper) MakePanicError(ctx context.Context, value any) *gqlerrors.QueryError {
	if m.recorder != nil {
		m.recorder.ResolverError(string(domainerrors.CodeInternal))
	}
	return &gqlerrors.QueryError{
		Message:    "internal server error",
		Extensions: domainerrors.ErrInternal.Extensions(),
	}
}

// panicLogger routes recovered resolver panics to slog.
type panicLogger struct {
	logger *slog.Logger
}

func (l panicLogger) LogPanic(ctx context.Context, value any) {
	logger.FromContext(ctx, l.logger).ErrorContext(ctx, "graphql resolver panic", "panic", value)
}
