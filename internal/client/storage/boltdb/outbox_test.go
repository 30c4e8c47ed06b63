package boltdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/iudanet/mapkeeper/pkg/api"
)

func createTestOutboxStorage(t *testing.T) *Storage {
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "outbox_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func draft(typ string, id int64) api.Draft {
	return api.Draft{Type: typ, ID: id, Visible: true}
}

func TestOutbox_StageKeepsOrder(t *testing.T) {
	ctx := context.Background()
	store := createTestOutboxStorage(t)

	pending, err := store.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, store.Stage(ctx, []api.Draft{draft("node", -1), draft("node", -2)}))
	require.NoError(t, store.Stage(ctx, []api.Draft{draft("way", -1)}))

	pending, err = store.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 3)

	assert.Equal(t, "node", pending[0].Draft.Type)
	assert.Equal(t, int64(-2), pending[1].Draft.ID)
	assert.Equal(t, "way", pending[2].Draft.Type)
	for i, d := range pending {
		assert.Equal(t, uint64(i+1), d.Seq)
		assert.False(t, d.StagedAt.IsZero())
	}
}

func TestOutbox_ClearUpToSeq(t *testing.T) {
	ctx := context.Background()
	store := createTestOutboxStorage(t)

	require.NoError(t, store.Stage(ctx, []api.Draft{draft("node", -1), draft("node", -2), draft("node", -3)}))

	// Правки после lastSeq остаются в outbox
	require.NoError(t, store.Clear(ctx, 2))
	pending, err := store.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(-3), pending[0].Draft.ID)

	// Номера не переиспользуются после очистки
	require.NoError(t, store.Stage(ctx, []api.Draft{draft("relation", -1)}))
	pending, err = store.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, uint64(4), pending[1].Seq)

	require.NoError(t, store.Clear(ctx, pending[1].Seq))
	pending, err = store.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestOutbox_BucketMissing(t *testing.T) {
	ctx := context.Background()
	store := createTestOutboxStorage(t)

	require.NoError(t, store.db.Update(func(tx *bbolt.Tx) error {
		return tx.DeleteBucket(bucketOutbox)
	}))

	assert.ErrorContains(t, store.Stage(ctx, []api.Draft{draft("node", -1)}), "outbox bucket not found")
	_, err := store.Pending(ctx)
	assert.ErrorContains(t, err, "outbox bucket not found")
	assert.ErrorContains(t, store.Clear(ctx, 1), "outbox bucket not found")
}
