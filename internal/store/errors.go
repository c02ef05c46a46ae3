package store

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by every backend.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// ErrConflict reports a write that kept losing to concurrent writers.
	ErrConflict = errors.New("write conflict")

	ErrUserNotFound   = fmt.Errorf("user %w", ErrNotFound)
	ErrAuthorNotFound = fmt.Errorf("author %w", ErrNotFound)
	ErrUsernameTaken  = fmt.Errorf("username %w", ErrAlreadyExists)
	ErrBookExists     = fmt.Errorf("book %w", ErrAlreadyExists)
)
