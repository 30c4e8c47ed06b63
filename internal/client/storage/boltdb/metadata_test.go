package boltdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/iudanet/mapkeeper/internal/client/storage"
)

// createTestMetadataStorage создает временное BoltDB хранилище и инициализирует buckets
func createTestMetadataStorage(t *testing.T) (*Storage, func()) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "metadata_test.db")

	ctx := context.Background()
	store, err := New(ctx, dbPath)
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		require.NoError(t, store.Close())
		require.NoError(t, os.RemoveAll(tmpDir))
	}

	return store, cleanup
}

func TestCurrentChangeset(t *testing.T) {
	ctx := context.Background()
	store, cleanup := createTestMetadataStorage(t)
	defer cleanup()

	// Изначально changeset не выбран
	_, err := store.GetCurrentChangeset(ctx)
	assert.ErrorIs(t, err, storage.ErrNoChangeset)

	require.NoError(t, store.SaveCurrentChangeset(ctx, 1234567890))

	id, err := store.GetCurrentChangeset(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1234567890), id)

	require.NoError(t, store.ClearCurrentChangeset(ctx))
	_, err = store.GetCurrentChangeset(ctx)
	assert.ErrorIs(t, err, storage.ErrNoChangeset)

	// Повторная очистка не ошибка
	assert.NoError(t, store.ClearCurrentChangeset(ctx))
}

func TestCurrentChangeset_BucketMissing(t *testing.T) {
	ctx := context.Background()
	store, cleanup := createTestMetadataStorage(t)
	defer cleanup()

	// Удаляем bucket metadata напрямую
	err := store.db.Update(func(tx *bbolt.Tx) error {
		return tx.DeleteBucket(bucketMetadata)
	})
	require.NoError(t, err)

	_, err = store.GetCurrentChangeset(ctx)
	assert.ErrorContains(t, err, "metadata bucket not found")

	err = store.SaveCurrentChangeset(ctx, 42)
	assert.ErrorContains(t, err, "metadata bucket not found")
}
