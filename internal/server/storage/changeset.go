package storage

import (
	"context"
	"time"

	"github.com/iudanet/mapkeeper/internal/models"
)

// ChangesetStorage defines interface for changeset lifecycle persistence
type ChangesetStorage interface {
	// CreateChangeset inserts a new open changeset and sets its ID
	CreateChangeset(ctx context.Context, changeset *models.Changeset) error

	// GetChangeset retrieves changeset by ID
	// Returns ErrChangesetNotFound if changeset doesn't exist
	GetChangeset(ctx context.Context, id int64) (*models.Changeset, error)

	// CloseChangeset closes an open changeset
	// Returns ErrChangesetNotFound or ErrChangesetClosed
	CloseChangeset(ctx context.Context, id int64, now time.Time) error
}
