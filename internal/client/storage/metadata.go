package storage

import "context"

//go:generate moq -out metadata_mock.go . MetadataStorage

// MetadataStorage defines interface for storing client metadata
type MetadataStorage interface {
	// SaveCurrentChangeset remembers the changeset that uploads go to
	SaveCurrentChangeset(ctx context.Context, id int64) error

	// GetCurrentChangeset returns the selected changeset
	// Returns ErrNoChangeset if none is selected
	GetCurrentChangeset(ctx context.Context) (int64, error)

	// ClearCurrentChangeset forgets the selected changeset
	ClearCurrentChangeset(ctx context.Context) error
}
