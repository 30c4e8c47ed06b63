package storage

import (
	"context"
	"time"

	"github.com/iudanet/mapkeeper/internal/models"
)

// ElementReader answers read queries against one consistent snapshot of the
// versioned element store. A zero at means "current": the revision whose
// next_sequence_id is null. A non-zero at selects by validity interval.
type ElementReader interface {
	// CurrentSequenceID returns the highest committed sequence id, 0 for an empty store
	CurrentSequenceID(ctx context.Context) (int64, error)

	// CurrentIDs returns the highest assigned id per element type
	// Types without elements are absent from the map
	CurrentIDs(ctx context.Context) (map[models.ElementType]int64, error)

	// LatestByRefs returns the revision of every ref valid at the given time
	// Missing refs are silently skipped
	LatestByRefs(ctx context.Context, refs []models.ElementRef, at time.Time) ([]*models.Element, error)

	// ByVersionedRefs returns exact revisions, missing ones are skipped
	ByVersionedRefs(ctx context.Context, refs []models.VersionedElementRef) ([]*models.Element, error)

	// History returns all revisions of ref ordered by version
	History(ctx context.Context, ref models.ElementRef) ([]*models.Element, error)

	// Parents returns visible revisions valid at the given time that list any of members
	// parentType limits the result to one element type when non-zero
	Parents(ctx context.Context, members []models.ElementRef, parentType models.ElementType, at time.Time) ([]*models.Element, error)

	// IsLatest reports whether every given revision is still the current one
	IsLatest(ctx context.Context, refs []models.VersionedElementRef) (bool, error)

	// IsUnreferenced reports whether no current revision committed after
	// afterSequenceID lists any of refs as a member
	IsUnreferenced(ctx context.Context, refs []models.ElementRef, afterSequenceID int64) (bool, error)

	// ChangesetByID returns the changeset row
	// Returns ErrChangesetNotFound if it doesn't exist
	ChangesetByID(ctx context.Context, id int64) (*models.Changeset, error)
}

// ElementWriter is an ElementReader bound to a transaction holding the
// exclusive write lock on elements, members and changesets.
type ElementWriter interface {
	ElementReader

	// InsertElements inserts new revisions and their members
	// Returns number of inserted member rows
	InsertElements(ctx context.Context, elements []*models.Element) (int, error)

	// LinkVersions sets next_sequence_id of the current revisions of the given ids
	// that were committed at or before currentSequenceID to their successor
	LinkVersions(ctx context.Context, currentSequenceID int64, typeIDs map[models.ElementType][]int64) error

	// UpdateChangeset writes the changeset if its stored updated_at still equals observedUpdatedAt
	// Returns ErrChangesetConflict otherwise
	UpdateChangeset(ctx context.Context, changeset *models.Changeset, observedUpdatedAt time.Time) error
}

// ElementStorage opens snapshot reads and locked write transactions.
type ElementStorage interface {
	// ReadSnapshot runs fn against one consistent read snapshot
	// Plain readers are never blocked by a concurrent WriteLocked
	ReadSnapshot(ctx context.Context, fn func(ElementReader) error) error

	// WriteLocked runs fn inside a transaction holding the exclusive write lock
	// The transaction commits if fn returns nil and rolls back otherwise
	WriteLocked(ctx context.Context, fn func(ElementWriter) error) error
}
