package diff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iudanet/mapkeeper/internal/models"
	"github.com/iudanet/mapkeeper/internal/server/storage"
)

// Applier commits prepared batches.
type Applier struct {
	storage storage.ElementStorage
	logger  *slog.Logger
	now     func() time.Time
}

// NewApplier creates a new Applier.
func NewApplier(s storage.ElementStorage, logger *slog.Logger) *Applier {
	return &Applier{
		storage: s,
		logger:  logger,
		now:     time.Now,
	}
}

// Apply commits the prepared batch in one locked transaction.
//
// The optimistic checks run concurrently once the write lock is held; any
// failure rolls back everything. There is no retry: on a conflict the caller
// prepares again against a fresh snapshot. Returns the new revisions keyed by
// the ref the caller used, placeholders included.
func (a *Applier) Apply(ctx context.Context, prep *PrepareResult) (map[models.ElementRef][]*models.Element, error) {
	if len(prep.Elements) == 0 {
		return map[models.ElementRef][]*models.Element{}, nil
	}
	if prep.Changeset == nil {
		return nil, errors.New("prepare result has no changeset")
	}

	// Работаем с копиями, чтобы PrepareResult не менялся при откате
	staged := make([]StagedElement, len(prep.Elements))
	for i, s := range prep.Elements {
		staged[i] = StagedElement{Element: s.Element.Clone(), Ref: s.Ref}
	}

	start := time.Now()

	err := a.storage.WriteLocked(ctx, func(w storage.ElementWriter) error {
		// Время коммита берется только под блокировкой, иначе created_at может
		// оказаться раньше уже выполненного запроса на момент времени.
		// Хранится в микросекундах.
		now := a.now().UTC().Truncate(time.Microsecond)

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			return checkElementsLatest(gctx, w, prep.ElementState)
		})
		if len(prep.ReferenceCheck) > 0 {
			g.Go(func() error {
				return checkElementsUnreferenced(gctx, w, prep.ReferenceCheck, prep.AtSequenceID)
			})
		}
		g.Go(func() error {
			return updateChangeset(gctx, w, prep, staged, now)
		})

		if err := g.Wait(); err != nil {
			return err
		}

		return a.updateElements(ctx, w, staged, now)
	})
	applyDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	result := make(map[models.ElementRef][]*models.Element)
	for _, s := range staged {
		result[s.Ref] = append(result[s.Ref], s.Element)
	}

	return result, nil
}

// checkElementsLatest fails if any element observed at prepare has a newer revision.
func checkElementsLatest(ctx context.Context, r storage.ElementReader, state map[models.ElementRef]*ElementStateEntry) error {
	var refs []models.VersionedElementRef
	for _, entry := range state {
		if entry.Remote != nil {
			refs = append(refs, entry.Remote.VersionedRef())
		}
	}
	if len(refs) == 0 {
		return nil
	}

	latest, err := r.IsLatest(ctx, refs)
	if err != nil {
		return err
	}
	if !latest {
		return conflictError(ErrElementOutdated, "")
	}

	return nil
}

// checkElementsUnreferenced fails if a revision committed after the snapshot references any of refs.
func checkElementsUnreferenced(ctx context.Context, r storage.ElementReader, refs []models.ElementRef, afterSequenceID int64) error {
	unreferenced, err := r.IsUnreferenced(ctx, refs, afterSequenceID)
	if err != nil {
		return err
	}
	if !unreferenced {
		return conflictError(ErrStillReferenced, "referenced after sequence %d", afterSequenceID)
	}

	return nil
}

// updateChangeset bumps updated_at and counters if the changeset is unchanged since prepare.
func updateChangeset(ctx context.Context, w storage.ElementWriter, prep *PrepareResult, staged []StagedElement, now time.Time) error {
	cs := prep.Changeset.Clone()
	cs.UpdatedAt = now
	cs.Size += int64(len(distinctRefs(staged)))
	for _, s := range staged {
		switch {
		case s.Element.Version == 1:
			cs.NumCreate++
		case !s.Element.Visible:
			cs.NumDelete++
		default:
			cs.NumModify++
		}
	}
	cs.AutoCloseOnSize(now, prep.ChangesetMaxSize)

	if err := w.UpdateChangeset(ctx, cs, prep.Changeset.UpdatedAt); err != nil {
		if errors.Is(err, storage.ErrChangesetConflict) {
			return conflictError(ErrChangesetOutdated, "%d", cs.ID)
		}
		return err
	}

	return nil
}

// updateElements assigns sequence ids and real ids, then writes the revisions.
// Counters are read inside the locked transaction, never cached.
func (a *Applier) updateElements(ctx context.Context, w storage.ElementWriter, staged []StagedElement, now time.Time) error {
	currentSequenceID, err := w.CurrentSequenceID(ctx)
	if err != nil {
		return err
	}
	currentIDs, err := w.CurrentIDs(ctx)
	if err != nil {
		return err
	}

	updateTypeIDs := make(map[models.ElementType][]int64)
	prev := make(map[models.ElementRef]*models.Element, len(staged))
	assigned := make(map[models.ElementRef]int64)
	elements := make([]*models.Element, len(staged))

	for i, s := range staged {
		e := s.Element
		sequenceID := currentSequenceID + int64(i) + 1
		e.SequenceID = sequenceID
		e.CreatedAt = now

		if p, ok := prev[s.Ref]; ok {
			// Предыдущая ревизия в этом же батче, связываем на месте
			p.NextSequenceID = &sequenceID
		} else if e.Version > 1 {
			updateTypeIDs[e.Type] = append(updateTypeIDs[e.Type], e.ID)
		}
		prev[s.Ref] = e

		if e.ID < 0 {
			id, ok := assigned[s.Ref]
			if !ok {
				id = currentIDs[e.Type] + 1
				currentIDs[e.Type] = id
				assigned[s.Ref] = id
			}
			e.ID = id
		}
		elements[i] = e
	}

	for _, e := range elements {
		for i := range e.Members {
			m := &e.Members[i]
			if !m.Ref.IsPlaceholder() {
				continue
			}
			id, ok := assigned[m.Ref]
			if !ok {
				return fmt.Errorf("member %s of %s was not created in this batch", m.Ref, e.VersionedRef())
			}
			m.Ref.ID = id
		}
	}

	members, err := w.InsertElements(ctx, elements)
	if err != nil {
		return err
	}
	if len(updateTypeIDs) > 0 {
		if err := w.LinkVersions(ctx, currentSequenceID, updateTypeIDs); err != nil {
			return err
		}
	}

	a.logger.InfoContext(ctx, "inserted elements",
		slog.Int("elements", len(elements)),
		slog.Int("members", members),
		slog.Int64("sequence_id", currentSequenceID+int64(len(elements))))

	return nil
}
