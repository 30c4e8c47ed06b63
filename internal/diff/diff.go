package diff

import (
	"context"
	"log/slog"

	"github.com/iudanet/mapkeeper/internal/models"
	"github.com/iudanet/mapkeeper/internal/server/storage"
)

// Result is what a committed batch produced.
type Result struct {
	Assigned map[models.ElementRef][]*models.Element // Assigned запрошенная ссылка -> новые ревизии по порядку
	Skipped  []SkippedElement
}

// Runner prepares and applies a batch in one call.
type Runner struct {
	preparer *Preparer
	applier  *Applier
	logger   *slog.Logger
}

// NewRunner creates a new Runner.
func NewRunner(s storage.ElementStorage, logger *slog.Logger) *Runner {
	return &Runner{
		preparer: NewPreparer(s),
		applier:  NewApplier(s, logger),
		logger:   logger,
	}
}

// Run validates drafts against a fresh snapshot and commits them.
// A conflict is returned as is; retrying means calling Run again.
func (r *Runner) Run(ctx context.Context, changesetID int64, actor Actor, drafts []Draft) (*Result, error) {
	result, err := r.run(ctx, changesetID, actor, drafts)
	BatchCount.WithLabelValues(batchResult(err)).Inc()
	if err != nil {
		r.logger.WarnContext(ctx, "diff rejected",
			slog.Int64("changeset_id", changesetID),
			slog.Int("drafts", len(drafts)),
			slog.String("kind", KindOf(err).String()),
			slog.Any("error", err))
		return nil, err
	}

	return result, nil
}

func (r *Runner) run(ctx context.Context, changesetID int64, actor Actor, drafts []Draft) (*Result, error) {
	prep, err := r.preparer.Prepare(ctx, changesetID, actor, drafts)
	if err != nil {
		return nil, err
	}

	assigned, err := r.applier.Apply(ctx, prep)
	if err != nil {
		return nil, err
	}

	for i := range prep.Elements {
		s := &prep.Elements[i]
		ElementCount.WithLabelValues(s.Element.Type.String(), elementAction(s)).Inc()
	}
	SkippedCount.Add(float64(len(prep.Skipped)))

	r.logger.InfoContext(ctx, "diff applied",
		slog.Int64("changeset_id", changesetID),
		slog.Int("elements", len(prep.Elements)),
		slog.Int("skipped", len(prep.Skipped)))

	return &Result{Assigned: assigned, Skipped: prep.Skipped}, nil
}

// CreateElement creates a single element and returns its first revision.
// The draft ref id is replaced with placeholder -1.
func (r *Runner) CreateElement(ctx context.Context, changesetID int64, actor Actor, draft Draft) (*models.Element, error) {
	draft.Ref.ID = -1
	draft.Version = 0
	draft.Visible = true
	draft.IfUnused = false

	result, err := r.Run(ctx, changesetID, actor, []Draft{draft})
	if err != nil {
		return nil, err
	}

	return result.Assigned[draft.Ref][0], nil
}
