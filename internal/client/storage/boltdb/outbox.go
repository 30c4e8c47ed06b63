package boltdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/mapkeeper/internal/client/storage"
	"github.com/iudanet/mapkeeper/pkg/api"
)

// Stage добавляет правки в outbox одной транзакцией.
// Ключ - NextSequence бакета, поэтому курсор обходит правки в порядке постановки.
func (s *Storage) Stage(ctx context.Context, drafts []api.Draft) error {
	now := time.Now().UTC()

	return s.update(ctx, bucketOutbox, func(b *bbolt.Bucket) error {
		for _, d := range drafts {
			seq, err := b.NextSequence()
			if err != nil {
				return fmt.Errorf("failed to allocate outbox sequence: %w", err)
			}

			data, err := json.Marshal(storage.StagedDraft{StagedAt: now, Draft: d, Seq: seq})
			if err != nil {
				return fmt.Errorf("failed to marshal draft: %w", err)
			}

			if err := b.Put(encodeUint64(seq), data); err != nil {
				return fmt.Errorf("failed to stage draft: %w", err)
			}
		}
		return nil
	})
}

// Pending возвращает правки в порядке постановки
func (s *Storage) Pending(ctx context.Context) ([]storage.StagedDraft, error) {
	var staged []storage.StagedDraft

	err := s.view(ctx, bucketOutbox, func(b *bbolt.Bucket) error {
		return b.ForEach(func(k, v []byte) error {
			var d storage.StagedDraft
			if err := json.Unmarshal(v, &d); err != nil {
				return fmt.Errorf("failed to unmarshal draft %x: %w", k, err)
			}
			staged = append(staged, d)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return staged, nil
}

// Clear удаляет правки с seq <= lastSeq
func (s *Storage) Clear(ctx context.Context, lastSeq uint64) error {
	limit := encodeUint64(lastSeq)

	return s.update(ctx, bucketOutbox, func(b *bbolt.Bucket) error {
		c := b.Cursor()
		// Delete сдвигает курсор, поэтому каждый раз берем первый ключ
		for k, _ := c.First(); k != nil && bytes.Compare(k, limit) <= 0; k, _ = c.First() {
			if err := c.Delete(); err != nil {
				return fmt.Errorf("failed to clear outbox: %w", err)
			}
		}
		return nil
	})
}
