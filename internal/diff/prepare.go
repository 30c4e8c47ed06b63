package diff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/mapkeeper/internal/models"
	"github.com/iudanet/mapkeeper/internal/server/storage"
	"github.com/iudanet/mapkeeper/internal/validation"
)

// Actor is the authenticated user uploading the batch.
type Actor struct {
	UserID string
	Roles  []models.UserRole
}

// ElementStateEntry pairs a ref with what prepare observed for it.
type ElementStateEntry struct {
	Remote *models.Element // Remote текущая ревизия в снимке, nil если элемента нет
	Local  *models.Element // Local последняя ревизия, подготовленная этим батчем
}

// current returns the revision the next draft for this ref must build on.
func (e *ElementStateEntry) current() *models.Element {
	if e.Local != nil {
		return e.Local
	}
	return e.Remote
}

// StagedElement is a new revision paired with the ref the caller used for it.
// Placeholder ids inside Element stay negative until apply.
type StagedElement struct {
	Element *models.Element
	Ref     models.ElementRef
}

// SkippedElement is an if_unused delete left out because the element is still used.
type SkippedElement struct {
	Ref     models.ElementRef `json:"ref"`
	Version int64             `json:"version"` // Version текущая версия, которая осталась в силе
}

// PrepareResult is everything the applier needs to commit the batch.
type PrepareResult struct {
	Changeset        *models.Changeset
	ElementState     map[models.ElementRef]*ElementStateEntry
	Elements         []StagedElement
	ReferenceCheck   []models.ElementRef // ReferenceCheck удаленные и исключенные из членов ссылки
	Skipped          []SkippedElement
	AtSequenceID     int64 // AtSequenceID последний sequence_id в снимке
	ChangesetMaxSize int64
}

// Preparer validates batches against a read snapshot.
type Preparer struct {
	storage storage.ElementStorage
}

// NewPreparer creates a new Preparer.
func NewPreparer(s storage.ElementStorage) *Preparer {
	return &Preparer{storage: s}
}

// snapshot holds everything read in one snapshot transaction.
type snapshot struct {
	changeset *models.Changeset
	remote    map[models.ElementRef]*models.Element
	parents   map[models.ElementRef][]models.ElementRef // член -> текущие родители в снимке
	atSeq     int64
}

// Prepare validates drafts in order and stages new revisions.
// It never writes; the returned result is consumed by Applier.Apply.
func (p *Preparer) Prepare(ctx context.Context, changesetID int64, actor Actor, drafts []Draft) (*PrepareResult, error) {
	fetch, deletes, err := checkDrafts(drafts)
	if err != nil {
		return nil, err
	}

	snap, err := p.readSnapshot(ctx, changesetID, actor, fetch, deletes)
	if err != nil {
		return nil, err
	}

	b := newBatch(snap, fetch)
	for i := range drafts {
		if err := b.stage(&drafts[i]); err != nil {
			return nil, err
		}
	}

	maxSize := models.ChangesetMaxSize(actor.Roles)
	touched := int64(len(distinctRefs(b.staged)))
	if snap.changeset.Size+touched > maxSize {
		return nil, validationError(ErrChangesetTooBig,
			"changeset %d has %d elements, batch adds %d, limit %d",
			changesetID, snap.changeset.Size, touched, maxSize)
	}

	return &PrepareResult{
		Changeset:        snap.changeset,
		ElementState:     b.state,
		Elements:         b.staged,
		ReferenceCheck:   b.referenceCheck(),
		Skipped:          b.skipped,
		AtSequenceID:     snap.atSeq,
		ChangesetMaxSize: maxSize,
	}, nil
}

// checkDrafts runs the checks that need no stored data.
// Returns the real refs to fetch and the real refs being deleted.
func checkDrafts(drafts []Draft) (fetch, deletes []models.ElementRef, err error) {
	seen := make(map[models.ElementRef]struct{})
	add := func(ref models.ElementRef) {
		if ref.IsPlaceholder() {
			return
		}
		if _, ok := seen[ref]; ok {
			return
		}
		seen[ref] = struct{}{}
		fetch = append(fetch, ref)
	}

	for i := range drafts {
		d := &drafts[i]

		if d.Ref.ID == 0 || d.Version < 0 {
			return nil, nil, validationError(ErrMalformedDraft, "%s version %d", d.Ref, d.Version)
		}
		if err := validation.ElementShape(d.Ref.Type, d.Point, d.Members, d.Visible); err != nil {
			return nil, nil, &Error{Kind: KindValidation, Err: fmt.Errorf("%w: %s: %w", ErrMalformedDraft, d.Ref, err)}
		}
		if d.Visible {
			if _, err := validation.TagMap(d.Tags); err != nil {
				if errors.Is(err, validation.ErrDuplicateTagKey) {
					return nil, nil, integrityError(err, "%s", d.Ref)
				}
				return nil, nil, &Error{Kind: KindValidation, Err: fmt.Errorf("%w: %s: %w", ErrMalformedDraft, d.Ref, err)}
			}
		}

		if d.IsCreate() {
			if !d.Ref.IsPlaceholder() {
				return nil, nil, validationError(ErrCreateWithID, "%s", d.Ref)
			}
			if d.IsDelete() {
				return nil, nil, validationError(ErrMalformedDraft, "%s: create cannot be a delete", d.Ref)
			}
		}

		add(d.Ref)
		if d.IsDelete() && !d.Ref.IsPlaceholder() {
			deletes = append(deletes, d.Ref)
		}
		for _, m := range d.Members {
			add(m.Ref)
		}
	}

	return fetch, deletes, nil
}

func (p *Preparer) readSnapshot(ctx context.Context, changesetID int64, actor Actor, fetch, deletes []models.ElementRef) (*snapshot, error) {
	snap := &snapshot{
		remote:  make(map[models.ElementRef]*models.Element, len(fetch)),
		parents: make(map[models.ElementRef][]models.ElementRef),
	}

	err := p.storage.ReadSnapshot(ctx, func(r storage.ElementReader) error {
		cs, err := r.ChangesetByID(ctx, changesetID)
		if err != nil {
			if errors.Is(err, storage.ErrChangesetNotFound) {
				return validationError(ErrChangesetNotFound, "%d", changesetID)
			}
			return fmt.Errorf("failed to read changeset: %w", err)
		}
		if cs.UserID != actor.UserID {
			return validationError(ErrChangesetForbidden, "%d", changesetID)
		}
		if !cs.IsOpen() {
			return conflictError(ErrChangesetClosed, "%d", changesetID)
		}
		snap.changeset = cs

		if snap.atSeq, err = r.CurrentSequenceID(ctx); err != nil {
			return err
		}

		// Нулевое время: текущие ревизии этого же снимка
		elements, err := r.LatestByRefs(ctx, fetch, time.Time{})
		if err != nil {
			return err
		}
		for _, e := range elements {
			snap.remote[e.Ref()] = e
		}

		if len(deletes) == 0 {
			return nil
		}
		parents, err := r.Parents(ctx, deletes, 0, time.Time{})
		if err != nil {
			return err
		}
		for _, parent := range parents {
			for _, m := range parent.Members {
				snap.parents[m.Ref] = appendUnique(snap.parents[m.Ref], parent.Ref())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return snap, nil
}

// batch is the in-memory state built while walking drafts in order.
type batch struct {
	snap         *snapshot
	state        map[models.ElementRef]*ElementStateEntry
	localParents map[models.ElementRef]map[models.ElementRef]struct{} // член -> ссылки элементов батча, которые его перечисляют
	removed      map[models.ElementRef]struct{}
	staged       []StagedElement
	skipped      []SkippedElement
}

func newBatch(snap *snapshot, fetch []models.ElementRef) *batch {
	b := &batch{
		snap:         snap,
		state:        make(map[models.ElementRef]*ElementStateEntry),
		localParents: make(map[models.ElementRef]map[models.ElementRef]struct{}),
		removed:      make(map[models.ElementRef]struct{}),
	}
	for _, ref := range fetch {
		b.state[ref] = &ElementStateEntry{Remote: snap.remote[ref]}
	}
	return b
}

func (b *batch) stage(d *Draft) error {
	entry, ok := b.state[d.Ref]
	var current *models.Element

	switch {
	case d.IsCreate():
		if ok {
			return validationError(ErrDuplicatePlaceholder, "%s", d.Ref)
		}
		entry = &ElementStateEntry{}
	case !ok:
		// Реальные ссылки заполнены заранее, значит это неизвестный placeholder
		return validationError(ErrUnknownPlaceholder, "%s", d.Ref)
	default:
		current = entry.current()
		if current == nil {
			return validationError(ErrElementNotFound, "%s", d.Ref)
		}
		if current.Version != d.Version {
			return validationError(ErrVersionMismatch, "%s: declared %d, current %d", d.Ref, d.Version, current.Version)
		}
		if d.IsDelete() && !current.Visible {
			return validationError(ErrAlreadyDeleted, "%s", d.Ref)
		}
	}

	if d.IsDelete() && b.isReferenced(d.Ref) {
		if d.IfUnused {
			b.skipped = append(b.skipped, SkippedElement{Ref: d.Ref, Version: current.Version})
			return nil
		}
		return conflictError(ErrStillReferenced, "%s", d.Ref)
	}

	element, err := b.build(d, current)
	if err != nil {
		return err
	}

	if current != nil && !d.Ref.IsPlaceholder() {
		// Ссылки, которые пропали из списка членов, надо перепроверить при apply
		for _, m := range current.Members {
			if !m.Ref.IsPlaceholder() && !element.References(m.Ref) {
				b.removed[m.Ref] = struct{}{}
			}
		}
		if d.IsDelete() {
			b.removed[d.Ref] = struct{}{}
		}
	}

	b.index(d.Ref, current, element)
	entry.Local = element
	b.state[d.Ref] = entry
	b.staged = append(b.staged, StagedElement{Element: element, Ref: d.Ref})
	return nil
}

// build creates the new revision from the draft on top of current.
func (b *batch) build(d *Draft, current *models.Element) (*models.Element, error) {
	element := &models.Element{
		Type:        d.Ref.Type,
		ID:          d.Ref.ID,
		Version:     d.Version + 1,
		ChangesetID: b.snap.changeset.ID,
		Visible:     d.Visible,
		Tags:        map[string]string{},
	}
	if current == nil {
		element.Version = 1
	}
	if !d.Visible {
		return element, nil
	}

	tags, err := validation.TagMap(d.Tags)
	if err != nil {
		return nil, integrityError(err, "%s", d.Ref)
	}
	element.Tags = tags

	if d.Point != nil {
		p := *d.Point
		element.Point = &p
	}

	if len(d.Members) > 0 {
		element.Members = make([]models.Member, len(d.Members))
	}
	for i, m := range d.Members {
		if err := b.checkMember(m.Ref); err != nil {
			return nil, fmt.Errorf("%s member %d: %w", d.Ref, i, err)
		}
		element.Members[i] = models.Member{Order: i, Ref: m.Ref, Role: m.Role}
	}

	return element, nil
}

// checkMember requires the member to exist and be visible in batch or snapshot state.
func (b *batch) checkMember(ref models.ElementRef) error {
	entry, ok := b.state[ref]
	if !ok {
		return validationError(ErrUnknownPlaceholder, "%s", ref)
	}
	current := entry.current()
	if current == nil || !current.Visible {
		return validationError(ErrMemberNotFound, "%s", ref)
	}
	return nil
}

// isReferenced reports whether any current revision lists ref, taking
// revisions staged earlier in the batch over the snapshot ones.
func (b *batch) isReferenced(ref models.ElementRef) bool {
	if len(b.localParents[ref]) > 0 {
		return true
	}
	for _, parent := range b.snap.parents[ref] {
		if entry, ok := b.state[parent]; ok && entry.Local != nil {
			// Родитель уже изменен в батче, его актуальные члены в localParents
			continue
		}
		return true
	}
	return false
}

// index replaces the members of ref's previous local revision with the new ones.
func (b *batch) index(ref models.ElementRef, previous, element *models.Element) {
	if previous != nil && b.state[ref] != nil && b.state[ref].Local == previous {
		for _, m := range previous.Members {
			delete(b.localParents[m.Ref], ref)
		}
	}
	for _, m := range element.Members {
		parents := b.localParents[m.Ref]
		if parents == nil {
			parents = make(map[models.ElementRef]struct{})
			b.localParents[m.Ref] = parents
		}
		parents[ref] = struct{}{}
	}
}

func (b *batch) referenceCheck() []models.ElementRef {
	refs := make([]models.ElementRef, 0, len(b.removed))
	for ref := range b.removed {
		refs = append(refs, ref)
	}
	return refs
}

// distinctRefs returns the requested refs of staged elements in first-seen order.
func distinctRefs(staged []StagedElement) []models.ElementRef {
	seen := make(map[models.ElementRef]struct{}, len(staged))
	var refs []models.ElementRef
	for _, s := range staged {
		if _, ok := seen[s.Ref]; ok {
			continue
		}
		seen[s.Ref] = struct{}{}
		refs = append(refs, s.Ref)
	}
	return refs
}

func appendUnique(refs []models.ElementRef, ref models.ElementRef) []models.ElementRef {
	for _, r := range refs {
		if r == ref {
			return refs
		}
	}
	return append(refs, ref)
}
