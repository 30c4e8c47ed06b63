package storage

import "errors"

// Common client storage errors
var (
	// ErrAuthNotFound indicates that no authentication data exists
	ErrAuthNotFound = errors.New("authentication data not found")

	// ErrNoChangeset indicates that no changeset is selected for uploads
	ErrNoChangeset = errors.New("no open changeset")
)
