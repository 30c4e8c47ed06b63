package storage

import (
	"context"
	"time"

	"github.com/iudanet/mapkeeper/pkg/api"
)

//go:generate moq -out outbox_mock.go . OutboxStorage

// OutboxStorage хранит правки, подготовленные к отправке одним diff
type OutboxStorage interface {
	// Stage appends drafts keeping their order
	Stage(ctx context.Context, drafts []api.Draft) error

	// Pending returns staged drafts in staging order
	Pending(ctx context.Context) ([]StagedDraft, error)

	// Clear removes staged drafts up to and including lastSeq
	// Drafts staged after lastSeq are kept
	Clear(ctx context.Context, lastSeq uint64) error
}

// StagedDraft одна правка в outbox
type StagedDraft struct {
	StagedAt time.Time `json:"staged_at"`
	Draft    api.Draft `json:"draft"`
	Seq      uint64    `json:"seq"` // порядок постановки, монотонно растет
}
