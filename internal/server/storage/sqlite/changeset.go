package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/mapkeeper/internal/models"
	"github.com/iudanet/mapkeeper/internal/server/storage"
)

// CreateChangeset inserts a new open changeset and sets its ID
func (s *Storage) CreateChangeset(ctx context.Context, changeset *models.Changeset) error {
	tags := changeset.Tags
	if tags == nil {
		tags = map[string]string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("failed to encode changeset tags: %w", err)
	}

	query := `
		INSERT INTO changesets (user_id, tags, created_at, updated_at, closed_at)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		changeset.UserID,
		string(tagsJSON),
		changeset.CreatedAt.UnixMicro(),
		changeset.UpdatedAt.UnixMicro(),
		nullableMicro(changeset.ClosedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert changeset: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get changeset id: %w", err)
	}
	changeset.ID = id

	return nil
}

// GetChangeset retrieves changeset by ID
func (s *Storage) GetChangeset(ctx context.Context, id int64) (*models.Changeset, error) {
	return getChangeset(ctx, s.rdb, id)
}

// CloseChangeset closes an open changeset
func (s *Storage) CloseChangeset(ctx context.Context, id int64, now time.Time) error {
	ts := now.UnixMicro()

	result, err := s.db.ExecContext(ctx, `
		UPDATE changesets
		SET closed_at = ?, updated_at = ?
		WHERE id = ? AND closed_at IS NULL
	`, ts, ts, id)
	if err != nil {
		return fmt.Errorf("failed to close changeset: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	// Ничего не обновлено: либо changeset нет, либо он уже закрыт
	if _, err := getChangeset(ctx, s.db, id); err != nil {
		return err
	}
	return storage.ErrChangesetClosed
}

func getChangeset(ctx context.Context, q querier, id int64) (*models.Changeset, error) {
	query := `
		SELECT id, user_id, tags, created_at, updated_at, closed_at,
		       size, num_create, num_modify, num_delete
		FROM changesets
		WHERE id = ?
	`

	cs := &models.Changeset{}
	var tags string
	var createdAt, updatedAt int64
	var closedAt sql.NullInt64

	err := q.QueryRowContext(ctx, query, id).Scan(
		&cs.ID,
		&cs.UserID,
		&tags,
		&createdAt,
		&updatedAt,
		&closedAt,
		&cs.Size,
		&cs.NumCreate,
		&cs.NumModify,
		&cs.NumDelete,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrChangesetNotFound
		}
		return nil, fmt.Errorf("failed to get changeset: %w", err)
	}

	if err := json.Unmarshal([]byte(tags), &cs.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode changeset tags: %w", err)
	}

	cs.CreatedAt = unixMicroToTime(createdAt)
	cs.UpdatedAt = unixMicroToTime(updatedAt)
	if closedAt.Valid {
		t := unixMicroToTime(closedAt.Int64)
		cs.ClosedAt = &t
	}

	return cs, nil
}
