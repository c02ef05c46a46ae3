// Package response writes JSON bodies for the requests that end before
// GraphQL execution, using the same error shape GraphQL clients already parse.
package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	domainerrors "github.com/listenupapp/catalog-server/internal/errors"
)

// GraphQLError is one entry of a GraphQL "errors" array.
type GraphQLError struct {
	Message    string         `json:"message"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Envelope is a GraphQL response carrying only errors.
type Envelope struct {
	Data   any            `json:"data"`
	Errors []GraphQLError `json:"errors,omitempty"`
}

// JSON writes data with the given status code.
func JSON(w http.ResponseWriter, status int, data any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		if logger != nil {
			logger.Error("Failed to encode JSON response", "error", err)
		}
	}
}

// Error writes err as a GraphQL error body. The status comes from the
// error's code; errors without one become a generic 500.
func Error(w http.ResponseWriter, err error, logger *slog.Logger) {
	var domErr *domainerrors.Error
	if !errors.As(err, &domErr) {
		if logger != nil {
			logger.Error("Unhandled error", "error", err)
		}
		domErr = domainerrors.Internal("internal server error")
	}

	JSON(w, domErr.HTTPStatus(), Envelope{
		Errors: []GraphQLError{{
			Message:    domErr.Message,
			Extensions: domErr.Extensions(),
		}},
	}, logger)
}
