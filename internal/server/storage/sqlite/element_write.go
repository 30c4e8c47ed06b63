package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/iudanet/mapkeeper/internal/models"
	"github.com/iudanet/mapkeeper/internal/server/storage"
)

// InsertElements inserts new revisions and their members.
// Elements must already carry final ids and sequence ids.
func (t *elementTx) InsertElements(ctx context.Context, elements []*models.Element) (int, error) {
	elementStmt, err := t.q.PrepareContext(ctx, `
		INSERT INTO elements (
			sequence_id, changeset_id, type, id, version, visible,
			tags, lon, lat, created_at, next_sequence_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare element insert: %w", err)
	}
	defer elementStmt.Close()

	memberStmt, err := t.q.PrepareContext(ctx, `
		INSERT INTO element_members (sequence_id, "order", type, id, role)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare member insert: %w", err)
	}
	defer memberStmt.Close()

	members := 0
	for _, e := range elements {
		tags := e.Tags
		if tags == nil {
			tags = map[string]string{}
		}
		tagsJSON, err := json.Marshal(tags)
		if err != nil {
			return 0, fmt.Errorf("failed to encode tags of %s: %w", e.VersionedRef(), err)
		}

		var lon, lat any
		if e.Point != nil {
			lon, lat = e.Point.Lng.Degrees(), e.Point.Lat.Degrees()
		}
		var next any
		if e.NextSequenceID != nil {
			next = *e.NextSequenceID
		}

		_, err = elementStmt.ExecContext(ctx,
			e.SequenceID,
			e.ChangesetID,
			e.Type.String(),
			e.ID,
			e.Version,
			boolToInt(e.Visible),
			string(tagsJSON),
			lon,
			lat,
			e.CreatedAt.UnixMicro(),
			next,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert element %s: %w", e.VersionedRef(), err)
		}

		for _, m := range e.Members {
			if _, err := memberStmt.ExecContext(ctx, e.SequenceID, m.Order, m.Ref.Type.String(), m.Ref.ID, m.Role); err != nil {
				return 0, fmt.Errorf("failed to insert member of %s: %w", e.VersionedRef(), err)
			}
			members++
		}
	}

	return members, nil
}

// LinkVersions points next_sequence_id of the previously current revisions
// at their successors inserted by this transaction
func (t *elementTx) LinkVersions(ctx context.Context, currentSequenceID int64, typeIDs map[models.ElementType][]int64) error {
	for _, typ := range models.ElementTypes() {
		for _, ids := range chunk(typeIDs[typ], maxRefsPerQuery) {
			query := `
				UPDATE elements
				SET next_sequence_id = (
					SELECT s.sequence_id
					FROM elements s
					WHERE s.type = elements.type AND s.id = elements.id AND s.version > elements.version
					ORDER BY s.version ASC
					LIMIT 1
				)
				WHERE sequence_id <= ? AND next_sequence_id IS NULL
				  AND type = ? AND id IN (` + placeholders(len(ids)) + `)`

			args := append([]any{currentSequenceID, typ.String()}, int64Args(ids)...)
			if _, err := t.q.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("failed to link %s versions: %w", typ, err)
			}
		}
	}

	return nil
}

// UpdateChangeset writes changeset counters and times if nobody touched it since observedUpdatedAt
func (t *elementTx) UpdateChangeset(ctx context.Context, changeset *models.Changeset, observedUpdatedAt time.Time) error {
	result, err := t.q.ExecContext(ctx, `
		UPDATE changesets
		SET updated_at = ?, closed_at = ?, size = ?,
		    num_create = ?, num_modify = ?, num_delete = ?
		WHERE id = ? AND updated_at = ?
	`,
		changeset.UpdatedAt.UnixMicro(),
		nullableMicro(changeset.ClosedAt),
		changeset.Size,
		changeset.NumCreate,
		changeset.NumModify,
		changeset.NumDelete,
		changeset.ID,
		observedUpdatedAt.UnixMicro(),
	)
	if err != nil {
		return fmt.Errorf("failed to update changeset: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: changeset %d", storage.ErrChangesetConflict, changeset.ID)
	}

	return nil
}

// ChangesetByID returns the changeset row inside the transaction
func (t *elementTx) ChangesetByID(ctx context.Context, id int64) (*models.Changeset, error) {
	return getChangeset(ctx, t.q, id)
}
