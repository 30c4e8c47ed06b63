package storage

import "errors"

// Common storage errors
var (
	// ErrUserNotFound indicates that user was not found in storage
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates that user with this username already exists
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrElementNotFound indicates that no revision matches the requested ref
	ErrElementNotFound = errors.New("element not found")

	// ErrChangesetNotFound indicates that changeset was not found
	ErrChangesetNotFound = errors.New("changeset not found")

	// ErrChangesetClosed indicates that changeset is already closed
	ErrChangesetClosed = errors.New("changeset closed")

	// ErrChangesetConflict indicates that changeset was modified since it was read
	ErrChangesetConflict = errors.New("changeset modified concurrently")
)
