package boltdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func TestNew_CreatesBuckets(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "testdb.db")

	store, err := New(context.Background(), dbPath)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, store.Close())
	}()

	info, err := os.Stat(dbPath)
	require.NoError(t, err)
	assert.False(t, info.IsDir())

	err = store.db.View(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketAuth, bucketOutbox, bucketMetadata} {
			if tx.Bucket(b) == nil {
				return os.ErrNotExist
			}
		}
		assert.Equal(t, encodeUint64(schemaVersion), tx.Bucket(bucketMetadata).Get(keySchemaVersion))
		return nil
	})
	require.NoError(t, err)
}

func TestNew_InvalidPath(t *testing.T) {
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "missing", "dir", "db"))
	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestNew_Locked(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "locked.db")

	store, err := New(context.Background(), dbPath)
	require.NoError(t, err)
	defer store.Close()

	// Второй запуск клиента ждет блокировку openTimeout и сдается
	_, err = New(context.Background(), dbPath)
	assert.ErrorIs(t, err, ErrLocked)
}

func TestNew_SchemaVersionMismatch(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "future.db")

	db, err := bbolt.Open(dbPath, 0600, nil)
	require.NoError(t, err)
	require.NoError(t, db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucket(bucketMetadata)
		if err != nil {
			return err
		}
		return b.Put(keySchemaVersion, encodeUint64(schemaVersion+1))
	}))
	require.NoError(t, db.Close())

	_, err = New(context.Background(), dbPath)
	assert.ErrorIs(t, err, ErrSchemaVersion)
}

func TestClose(t *testing.T) {
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "testdb.db"))
	require.NoError(t, err)

	assert.NoError(t, store.Close())
	assert.Nil(t, store.db)

	// Повторный Close ничего не делает
	assert.NoError(t, store.Close())
}
