// Package errors provides the coded domain errors returned by the catalog services.
//
// Every error that reaches a GraphQL client is an *Error. Its Code becomes
// extensions.code in the response and its InvalidArgs, when set, becomes
// extensions.invalidArgs.
//
//	if author == nil {
//	    return nil, errors.NotFoundf("author %q not found", name)
//	}
//
//	if errors.Is(err, errors.ErrUnauthenticated) {
//	    ...
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
	New    = errors.New
)

// Code represents a machine-readable error code.
type Code string

// Error codes surfaced to clients.
const (
	CodeUnauthenticated    Code = "UNAUTHENTICATED"
	CodeValidationFailed   Code = "VALIDATION_FAILED"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeNotFound           Code = "NOT_FOUND"
	CodeInvalidToken       Code = "INVALID_TOKEN"
	CodeRateLimited        Code = "RATE_LIMITED"
	CodeInternal           Code = "INTERNAL"
)

// HTTPStatus returns the HTTP status used when the error ends a request
// before GraphQL execution starts.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthenticated, CodeInvalidCredentials, CodeInvalidToken:
		return http.StatusUnauthorized
	case CodeValidationFailed:
		return http.StatusBadRequest
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	// InvalidArgs holds the offending input value, if any.
	InvalidArgs any `json:"invalidArgs,omitempty"`
	Details     any `json:"details,omitempty"`
	cause       error
}

// Error implements the error interface. The cause is left out so internal
// failures never leak into client-visible messages; use Unwrap to reach it.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// Extensions implements the graphql-go extension hook.
func (e *Error) Extensions() map[string]any {
	ext := map[string]any{"code": string(e.Code)}
	if e.InvalidArgs != nil {
		ext["invalidArgs"] = e.InvalidArgs
	}
	if e.Details != nil {
		ext["details"] = e.Details
	}
	return ext
}

// WithDetails returns a copy of the error carrying details.
func (e *Error) WithDetails(details any) *Error {
	c := *e
	c.Details = details
	return &c
}

// WithInvalidArgs returns a copy of the error carrying the offending value.
func (e *Error) WithInvalidArgs(args any) *Error {
	c := *e
	c.InvalidArgs = args
	return &c
}

// WithCause returns a copy of the error wrapping err.
func (e *Error) WithCause(err error) *Error {
	c := *e
	c.cause = err
	return &c
}

// Sentinel errors for use with errors.Is().
var (
	ErrUnauthenticated    = &Error{Code: CodeUnauthenticated, Message: "not authenticated"}
	ErrValidationFailed   = &Error{Code: CodeValidationFailed, Message: "validation failed"}
	ErrInvalidCredentials = &Error{Code: CodeInvalidCredentials, Message: "wrong credentials"}
	ErrNotFound           = &Error{Code: CodeNotFound, Message: "not found"}
	ErrInvalidToken       = &Error{Code: CodeInvalidToken, Message: "invalid token"}
	ErrRateLimited        = &Error{Code: CodeRateLimited, Message: "too many requests"}
	ErrInternal           = &Error{Code: CodeInternal, Message: "internal error"}
)

// Unauthenticated creates an unauthenticated error.
func Unauthenticated(msg string) *Error {
	return &Error{Code: CodeUnauthenticated, Message: msg}
}

// ValidationFailed creates a validation error carrying the offending value.
func ValidationFailed(msg string, invalidArgs any) *Error {
	return &Error{Code: CodeValidationFailed, Message: msg, InvalidArgs: invalidArgs}
}

// ValidationWithDetails creates a validation error with per-field details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidationFailed, Message: msg, Details: details}
}

// InvalidCredentials creates an invalid credentials error.
func InvalidCredentials(msg string) *Error {
	return &Error{Code: CodeInvalidCredentials, Message: msg}
}

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// InvalidToken creates an invalid token error.
func InvalidToken(msg string) *Error {
	return &Error{Code: CodeInvalidToken, Message: msg}
}

// RateLimited creates a rate limit error.
func RateLimited(msg string) *Error {
	return &Error{Code: CodeRateLimited, Message: msg}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
