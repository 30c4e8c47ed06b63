package boltdb

import (
	"context"
	"encoding/binary"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/mapkeeper/internal/client/storage"
)

var keyCurrentChangeset = []byte("current_changeset")

// SaveCurrentChangeset запоминает changeset, в который идут загрузки
func (s *Storage) SaveCurrentChangeset(ctx context.Context, id int64) error {
	return s.update(ctx, bucketMetadata, func(b *bbolt.Bucket) error {
		if err := b.Put(keyCurrentChangeset, encodeUint64(uint64(id))); err != nil {
			return fmt.Errorf("failed to save current changeset: %w", err)
		}
		return nil
	})
}

// GetCurrentChangeset возвращает текущий changeset или storage.ErrNoChangeset
func (s *Storage) GetCurrentChangeset(ctx context.Context) (int64, error) {
	var id int64

	err := s.view(ctx, bucketMetadata, func(b *bbolt.Bucket) error {
		raw := b.Get(keyCurrentChangeset)
		if raw == nil {
			return storage.ErrNoChangeset
		}
		id = int64(binary.BigEndian.Uint64(raw))
		return nil
	})
	if err != nil {
		return 0, err
	}

	return id, nil
}

// ClearCurrentChangeset забывает текущий changeset
func (s *Storage) ClearCurrentChangeset(ctx context.Context) error {
	return s.update(ctx, bucketMetadata, func(b *bbolt.Bucket) error {
		return b.Delete(keyCurrentChangeset)
	})
}
