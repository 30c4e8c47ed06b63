package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iudanet/mapkeeper/internal/models"
	"github.com/iudanet/mapkeeper/internal/server/storage"
)

// maxRefsPerQuery bounds the number of bound parameters in one IN list
const maxRefsPerQuery = 500

const elementColumns = `
	e.sequence_id, e.changeset_id, e.type, e.id, e.version, e.visible,
	e.tags, e.lon, e.lat, e.created_at, e.next_sequence_id`

// querier общий интерфейс *sql.DB и *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// elementTx implements storage.ElementWriter on top of one transaction
type elementTx struct {
	q querier
}

var _ storage.ElementWriter = (*elementTx)(nil)

// ReadSnapshot runs fn inside a deferred read transaction.
// In WAL mode the snapshot is fixed by the first read and stays stable until rollback.
// Readers are not blocked by WriteLocked only for file databases: ":memory:" shares
// the single writer connection, so a snapshot there waits for the write lock.
func (s *Storage) ReadSnapshot(ctx context.Context, fn func(storage.ElementReader) error) error {
	tx, err := s.rdb.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin read transaction: %w", err)
	}
	// Транзакция только читает, фиксировать нечего
	defer func() { _ = tx.Rollback() }()

	return fn(&elementTx{q: tx})
}

// WriteLocked runs fn inside BEGIN IMMEDIATE, which takes the database write lock
// up front. Concurrent writers wait for it up to busy_timeout.
func (s *Storage) WriteLocked(ctx context.Context, fn func(storage.ElementWriter) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to acquire write lock: %w", err)
	}

	if err := fn(&elementTx{q: tx}); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return errors.Join(err, fmt.Errorf("failed to rollback: %w", rerr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	return nil
}

// CurrentSequenceID returns the highest committed sequence id
func (t *elementTx) CurrentSequenceID(ctx context.Context) (int64, error) {
	var seq int64
	err := t.q.QueryRowContext(ctx, `SELECT COALESCE(MAX(sequence_id), 0) FROM elements`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to get current sequence id: %w", err)
	}
	return seq, nil
}

// CurrentIDs returns the highest assigned id per element type
func (t *elementTx) CurrentIDs(ctx context.Context) (map[models.ElementType]int64, error) {
	rows, err := t.q.QueryContext(ctx, `SELECT type, MAX(id) FROM elements GROUP BY type`)
	if err != nil {
		return nil, fmt.Errorf("failed to query current ids: %w", err)
	}
	defer rows.Close()

	result := make(map[models.ElementType]int64, 3)
	for rows.Next() {
		var typeName string
		var id int64
		if err := rows.Scan(&typeName, &id); err != nil {
			return nil, fmt.Errorf("failed to scan current id: %w", err)
		}
		typ, err := models.ParseElementType(typeName)
		if err != nil {
			return nil, err
		}
		result[typ] = id
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// LatestByRefs returns the revision of every ref valid at the given time
func (t *elementTx) LatestByRefs(ctx context.Context, refs []models.ElementRef, at time.Time) ([]*models.Element, error) {
	var result []*models.Element

	for _, part := range chunkRefs(refs) {
		cond, args := refCondition("e", part)
		validity, vargs := validityCondition(at)

		query := `SELECT ` + elementColumns + `
			FROM elements e
			LEFT JOIN elements n ON n.sequence_id = e.next_sequence_id
			WHERE ` + validity + ` AND (` + cond + `)`

		elements, err := t.queryElements(ctx, query, append(vargs, args...)...)
		if err != nil {
			return nil, fmt.Errorf("failed to query latest elements: %w", err)
		}
		result = append(result, elements...)
	}

	if err := t.loadMembers(ctx, result); err != nil {
		return nil, err
	}

	return result, nil
}

// ByVersionedRefs returns exact revisions
func (t *elementTx) ByVersionedRefs(ctx context.Context, refs []models.VersionedElementRef) ([]*models.Element, error) {
	var result []*models.Element

	for _, part := range chunk(refs, maxRefsPerQuery/3) {
		cond, args := versionedCondition("e", part)
		query := `SELECT ` + elementColumns + ` FROM elements e WHERE ` + cond

		elements, err := t.queryElements(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query elements by version: %w", err)
		}
		result = append(result, elements...)
	}

	if err := t.loadMembers(ctx, result); err != nil {
		return nil, err
	}

	return result, nil
}

// History returns all revisions of ref ordered by version
func (t *elementTx) History(ctx context.Context, ref models.ElementRef) ([]*models.Element, error) {
	query := `SELECT ` + elementColumns + `
		FROM elements e
		WHERE e.type = ? AND e.id = ?
		ORDER BY e.version ASC`

	elements, err := t.queryElements(ctx, query, ref.Type.String(), ref.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query element history: %w", err)
	}

	if err := t.loadMembers(ctx, elements); err != nil {
		return nil, err
	}

	return elements, nil
}

// Parents returns visible revisions valid at the given time listing any of members
func (t *elementTx) Parents(ctx context.Context, members []models.ElementRef, parentType models.ElementType, at time.Time) ([]*models.Element, error) {
	var result []*models.Element
	seen := make(map[int64]struct{})

	for _, part := range chunkRefs(members) {
		cond, args := refCondition("m", part)
		validity, vargs := validityCondition(at)

		query := `SELECT DISTINCT ` + elementColumns + `
			FROM element_members m
			JOIN elements e ON e.sequence_id = m.sequence_id
			LEFT JOIN elements n ON n.sequence_id = e.next_sequence_id
			WHERE ` + validity + ` AND e.visible = 1 AND (` + cond + `)`

		queryArgs := append(vargs, args...)
		if parentType != 0 {
			query += ` AND e.type = ?`
			queryArgs = append(queryArgs, parentType.String())
		}

		elements, err := t.queryElements(ctx, query, queryArgs...)
		if err != nil {
			return nil, fmt.Errorf("failed to query parents: %w", err)
		}

		// Один родитель может встретиться в нескольких чанках
		for _, e := range elements {
			if _, ok := seen[e.SequenceID]; ok {
				continue
			}
			seen[e.SequenceID] = struct{}{}
			result = append(result, e)
		}
	}

	if err := t.loadMembers(ctx, result); err != nil {
		return nil, err
	}

	return result, nil
}

// IsLatest reports whether every given revision is still current
func (t *elementTx) IsLatest(ctx context.Context, refs []models.VersionedElementRef) (bool, error) {
	for _, part := range chunk(refs, maxRefsPerQuery/3) {
		cond, args := versionedCondition("e", part)
		query := `SELECT COUNT(*) FROM elements e WHERE e.next_sequence_id IS NULL AND (` + cond + `)`

		var count int
		if err := t.q.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
			return false, fmt.Errorf("failed to check latest elements: %w", err)
		}
		if count != len(part) {
			return false, nil
		}
	}

	return true, nil
}

// IsUnreferenced reports whether no current revision committed after
// afterSequenceID lists any of refs
func (t *elementTx) IsUnreferenced(ctx context.Context, refs []models.ElementRef, afterSequenceID int64) (bool, error) {
	for _, part := range chunkRefs(refs) {
		cond, args := refCondition("m", part)
		query := `SELECT EXISTS (
			SELECT 1
			FROM element_members m
			JOIN elements e ON e.sequence_id = m.sequence_id
			WHERE m.sequence_id > ? AND e.next_sequence_id IS NULL AND (` + cond + `)
		)`

		var referenced bool
		if err := t.q.QueryRowContext(ctx, query, append([]any{afterSequenceID}, args...)...).Scan(&referenced); err != nil {
			return false, fmt.Errorf("failed to check references: %w", err)
		}
		if referenced {
			return false, nil
		}
	}

	return true, nil
}

// queryElements runs query and scans element rows without members
func (t *elementTx) queryElements(ctx context.Context, query string, args ...any) ([]*models.Element, error) {
	rows, err := t.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var elements []*models.Element
	for rows.Next() {
		element, err := scanElement(rows)
		if err != nil {
			return nil, err
		}
		elements = append(elements, element)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return elements, nil
}

// loadMembers fills Members of ways and relations with one query per chunk
func (t *elementTx) loadMembers(ctx context.Context, elements []*models.Element) error {
	bySequence := make(map[int64]*models.Element)
	var sequenceIDs []int64
	for _, e := range elements {
		if e.Type == models.ElementTypeNode || !e.Visible {
			continue
		}
		bySequence[e.SequenceID] = e
		sequenceIDs = append(sequenceIDs, e.SequenceID)
	}

	for _, part := range chunk(sequenceIDs, maxRefsPerQuery) {
		query := `SELECT sequence_id, "order", type, id, role
			FROM element_members
			WHERE sequence_id IN (` + placeholders(len(part)) + `)
			ORDER BY sequence_id, "order"`

		rows, err := t.q.QueryContext(ctx, query, int64Args(part)...)
		if err != nil {
			return fmt.Errorf("failed to query members: %w", err)
		}

		for rows.Next() {
			var sequenceID int64
			var typeName string
			var m models.Member
			if err := rows.Scan(&sequenceID, &m.Order, &typeName, &m.Ref.ID, &m.Role); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan member: %w", err)
			}
			if m.Ref.Type, err = models.ParseElementType(typeName); err != nil {
				rows.Close()
				return err
			}
			e := bySequence[sequenceID]
			e.Members = append(e.Members, m)
		}

		err = rows.Err()
		rows.Close()
		if err != nil {
			return fmt.Errorf("rows iteration error: %w", err)
		}
	}

	return nil
}

// scanElement сканирует одну строку elements
func scanElement(rows *sql.Rows) (*models.Element, error) {
	e := &models.Element{}
	var typeName, tags string
	var visible int
	var lon, lat sql.NullFloat64
	var createdAt int64
	var next sql.NullInt64

	err := rows.Scan(
		&e.SequenceID,
		&e.ChangesetID,
		&typeName,
		&e.ID,
		&e.Version,
		&visible,
		&tags,
		&lon,
		&lat,
		&createdAt,
		&next,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan element: %w", err)
	}

	if e.Type, err = models.ParseElementType(typeName); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags of %s: %w", e.VersionedRef(), err)
	}

	e.Visible = intToBool(visible)
	e.CreatedAt = unixMicroToTime(createdAt)
	if lon.Valid && lat.Valid {
		e.Point = models.NewPoint(lon.Float64, lat.Float64)
	}
	if next.Valid {
		n := next.Int64
		e.NextSequenceID = &n
	}

	return e, nil
}

// validityCondition selects revisions valid at the given time.
// Requires the query to join the successor revision as "n".
func validityCondition(at time.Time) (string, []any) {
	if at.IsZero() {
		return `e.next_sequence_id IS NULL`, nil
	}
	ts := at.UnixMicro()
	return `e.created_at <= ? AND (n.sequence_id IS NULL OR n.created_at > ?)`, []any{ts, ts}
}

// refCondition builds "(alias.type = ? AND alias.id IN (...)) OR ..." grouped by type
func refCondition(alias string, refs []models.ElementRef) (string, []any) {
	byType := make(map[models.ElementType][]int64, 3)
	for _, ref := range refs {
		byType[ref.Type] = append(byType[ref.Type], ref.ID)
	}

	var parts []string
	var args []any
	for _, typ := range models.ElementTypes() {
		ids := byType[typ]
		if len(ids) == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("(%s.type = ? AND %s.id IN (%s))", alias, alias, placeholders(len(ids))))
		args = append(args, typ.String())
		args = append(args, int64Args(ids)...)
	}

	if len(parts) == 0 {
		return "0", nil
	}
	return strings.Join(parts, " OR "), args
}

// versionedCondition builds "(alias.type = ? AND alias.id = ? AND alias.version = ?) OR ..."
func versionedCondition(alias string, refs []models.VersionedElementRef) (string, []any) {
	if len(refs) == 0 {
		return "0", nil
	}

	parts := make([]string, 0, len(refs))
	args := make([]any, 0, len(refs)*3)
	for _, ref := range refs {
		parts = append(parts, fmt.Sprintf("(%s.type = ? AND %s.id = ? AND %s.version = ?)", alias, alias, alias))
		args = append(args, ref.Type.String(), ref.ID, ref.Version)
	}

	return strings.Join(parts, " OR "), args
}

func chunkRefs(refs []models.ElementRef) [][]models.ElementRef {
	return chunk(refs, maxRefsPerQuery)
}

// chunk splits s into parts of at most size elements
func chunk[T any](s []T, size int) [][]T {
	var parts [][]T
	for len(s) > size {
		parts = append(parts, s[:size])
		s = s[size:]
	}
	if len(s) > 0 {
		parts = append(parts, s)
	}
	return parts
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
