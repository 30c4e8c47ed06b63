package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/mapkeeper/internal/models"
	"github.com/iudanet/mapkeeper/internal/server/storage"
)

var (
	refN1 = models.ElementRef{Type: models.ElementTypeNode, ID: 1}
	refN2 = models.ElementRef{Type: models.ElementTypeNode, ID: 2}
	refW1 = models.ElementRef{Type: models.ElementTypeWay, ID: 1}
)

// commitElements записывает ревизии так же, как это делает applier:
// последовательные sequence_id и связывание цепочки версий
func commitElements(t *testing.T, ctx context.Context, s *Storage, now time.Time, elements ...*models.Element) {
	t.Helper()

	err := s.WriteLocked(ctx, func(w storage.ElementWriter) error {
		seq, err := w.CurrentSequenceID(ctx)
		if err != nil {
			return err
		}

		typeIDs := make(map[models.ElementType][]int64)
		for i, e := range elements {
			e.SequenceID = seq + int64(i) + 1
			e.CreatedAt = now
			if e.Version > 1 {
				typeIDs[e.Type] = append(typeIDs[e.Type], e.ID)
			}
		}

		if _, err := w.InsertElements(ctx, elements); err != nil {
			return err
		}
		return w.LinkVersions(ctx, seq, typeIDs)
	})
	require.NoError(t, err)
}

func testNode(csID, id, version int64, lon, lat float64) *models.Element {
	return &models.Element{
		Type:        models.ElementTypeNode,
		ID:          id,
		Version:     version,
		ChangesetID: csID,
		Visible:     true,
		Tags:        map[string]string{},
		Point:       models.NewPoint(lon, lat),
	}
}

func testWay(csID, id, version int64, nodes ...int64) *models.Element {
	members := make([]models.Member, len(nodes))
	for i, n := range nodes {
		members[i] = models.Member{Order: i, Ref: models.ElementRef{Type: models.ElementTypeNode, ID: n}}
	}
	return &models.Element{
		Type:        models.ElementTypeWay,
		ID:          id,
		Version:     version,
		ChangesetID: csID,
		Visible:     true,
		Tags:        map[string]string{"highway": "residential"},
		Members:     members,
	}
}

func TestElementStorage_EmptyStore(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	err := s.ReadSnapshot(ctx, func(r storage.ElementReader) error {
		seq, err := r.CurrentSequenceID(ctx)
		require.NoError(t, err)
		assert.Zero(t, seq)

		ids, err := r.CurrentIDs(ctx)
		require.NoError(t, err)
		assert.Empty(t, ids)

		elements, err := r.LatestByRefs(ctx, []models.ElementRef{refN1}, time.Time{})
		require.NoError(t, err)
		assert.Empty(t, elements)

		unreferenced, err := r.IsUnreferenced(ctx, []models.ElementRef{refN1}, 0)
		require.NoError(t, err)
		assert.True(t, unreferenced)
		return nil
	})
	require.NoError(t, err)
}

func TestElementStorage_InsertAndRead(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	cs := createTestChangeset(t, ctx, s)
	now := time.Now()

	commitElements(t, ctx, s, now,
		testNode(cs.ID, 1, 1, 1.0, 2.0),
		testNode(cs.ID, 2, 1, 3.0, 4.0),
		testWay(cs.ID, 1, 1, 1, 2),
	)

	err := s.ReadSnapshot(ctx, func(r storage.ElementReader) error {
		seq, err := r.CurrentSequenceID(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), seq)

		ids, err := r.CurrentIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[models.ElementType]int64{models.ElementTypeNode: 2, models.ElementTypeWay: 1}, ids)

		elements, err := r.LatestByRefs(ctx, []models.ElementRef{refN1, refW1}, time.Time{})
		require.NoError(t, err)
		require.Len(t, elements, 2)

		byRef := make(map[models.ElementRef]*models.Element)
		for _, e := range elements {
			byRef[e.Ref()] = e
		}

		node := byRef[refN1]
		require.NotNil(t, node)
		require.NotNil(t, node.Point)
		assert.InDelta(t, 1.0, node.Point.Lng.Degrees(), 1e-9)
		assert.InDelta(t, 2.0, node.Point.Lat.Degrees(), 1e-9)
		assert.Empty(t, node.Members)
		assert.True(t, node.IsLatest())

		way := byRef[refW1]
		require.NotNil(t, way)
		assert.Nil(t, way.Point)
		assert.Equal(t, map[string]string{"highway": "residential"}, way.Tags)
		require.Len(t, way.Members, 2)
		assert.Equal(t, refN1, way.Members[0].Ref)
		assert.Equal(t, refN2, way.Members[1].Ref)
		assert.Equal(t, now.UnixMicro(), way.CreatedAt.UnixMicro())
		return nil
	})
	require.NoError(t, err)
}

func TestElementStorage_VersionChainAndPointInTime(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	cs := createTestChangeset(t, ctx, s)
	t1 := time.Now().Add(-time.Hour)
	t2 := t1.Add(10 * time.Minute)
	t3 := t2.Add(10 * time.Minute)

	commitElements(t, ctx, s, t1,
		testNode(cs.ID, 1, 1, 1, 1),
		testNode(cs.ID, 2, 1, 2, 2),
		testWay(cs.ID, 1, 1, 1, 2),
	)
	// Вторая версия way больше не ссылается на n1
	commitElements(t, ctx, s, t2, testWay(cs.ID, 1, 2, 2))

	between := t1.Add(5 * time.Minute)

	readAt := func(at time.Time) (*models.Element, []*models.Element) {
		var latest *models.Element
		var parents []*models.Element
		err := s.ReadSnapshot(ctx, func(r storage.ElementReader) error {
			elements, err := r.LatestByRefs(ctx, []models.ElementRef{refW1}, at)
			require.NoError(t, err)
			require.Len(t, elements, 1)
			latest = elements[0]

			parents, err = r.Parents(ctx, []models.ElementRef{refN1}, 0, at)
			return err
		})
		require.NoError(t, err)
		return latest, parents
	}

	way, parents := readAt(between)
	assert.Equal(t, int64(1), way.Version)
	require.NotNil(t, way.NextSequenceID)
	assert.Len(t, parents, 1)

	way, parents = readAt(time.Time{})
	assert.Equal(t, int64(2), way.Version)
	assert.True(t, way.IsLatest())
	assert.Empty(t, parents)

	// Более поздние коммиты не меняют ответ на момент времени в прошлом
	commitElements(t, ctx, s, t3, testWay(cs.ID, 1, 3, 1, 2))
	again, parentsAgain := readAt(between)
	assert.Equal(t, int64(1), again.Version)
	assert.Len(t, parentsAgain, 1)

	err := s.ReadSnapshot(ctx, func(r storage.ElementReader) error {
		history, err := r.History(ctx, refW1)
		require.NoError(t, err)
		require.Len(t, history, 3)
		for i, e := range history {
			assert.Equal(t, int64(i+1), e.Version)
		}
		// Цепочка: каждая ревизия указывает на следующую
		assert.Equal(t, history[1].SequenceID, *history[0].NextSequenceID)
		assert.Equal(t, history[2].SequenceID, *history[1].NextSequenceID)
		assert.Nil(t, history[2].NextSequenceID)

		exact, err := r.ByVersionedRefs(ctx, []models.VersionedElementRef{{ElementRef: refW1, Version: 2}})
		require.NoError(t, err)
		require.Len(t, exact, 1)
		assert.Len(t, exact[0].Members, 1)
		return nil
	})
	require.NoError(t, err)
}

func TestElementStorage_IsLatestAndIsUnreferenced(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	cs := createTestChangeset(t, ctx, s)
	now := time.Now()

	commitElements(t, ctx, s, now, testNode(cs.ID, 1, 1, 1, 1), testNode(cs.ID, 2, 1, 2, 2))
	var afterNodes int64
	require.NoError(t, s.ReadSnapshot(ctx, func(r storage.ElementReader) error {
		var err error
		afterNodes, err = r.CurrentSequenceID(ctx)
		return err
	}))

	commitElements(t, ctx, s, now, testWay(cs.ID, 1, 1, 1))
	commitElements(t, ctx, s, now, testNode(cs.ID, 2, 2, 5, 5))

	err := s.ReadSnapshot(ctx, func(r storage.ElementReader) error {
		latest, err := r.IsLatest(ctx, []models.VersionedElementRef{
			{ElementRef: refN1, Version: 1},
			{ElementRef: refN2, Version: 2},
		})
		require.NoError(t, err)
		assert.True(t, latest)

		latest, err = r.IsLatest(ctx, []models.VersionedElementRef{{ElementRef: refN2, Version: 1}})
		require.NoError(t, err)
		assert.False(t, latest)

		// w1 появился после afterNodes и ссылается на n1
		unreferenced, err := r.IsUnreferenced(ctx, []models.ElementRef{refN1}, afterNodes)
		require.NoError(t, err)
		assert.False(t, unreferenced)

		unreferenced, err = r.IsUnreferenced(ctx, []models.ElementRef{refN2}, afterNodes)
		require.NoError(t, err)
		assert.True(t, unreferenced)

		// Ссылка, появившаяся до точки отсчета, не учитывается
		seq, err := r.CurrentSequenceID(ctx)
		require.NoError(t, err)
		unreferenced, err = r.IsUnreferenced(ctx, []models.ElementRef{refN1}, seq)
		require.NoError(t, err)
		assert.True(t, unreferenced)

		parents, err := r.Parents(ctx, []models.ElementRef{refN1}, models.ElementTypeRelation, time.Time{})
		require.NoError(t, err)
		assert.Empty(t, parents)
		return nil
	})
	require.NoError(t, err)
}

func TestElementStorage_SnapshotNotBlockedByWriter(t *testing.T) {
	ctx := context.Background()
	s := setupFileStorage(t)

	cs := createTestChangeset(t, ctx, s)
	commitElements(t, ctx, s, time.Now(), testNode(cs.ID, 1, 1, 1, 1))

	err := s.ReadSnapshot(ctx, func(r storage.ElementReader) error {
		before, err := r.CurrentSequenceID(ctx)
		require.NoError(t, err)

		// Писатель коммитит, пока снимок открыт
		commitElements(t, ctx, s, time.Now(), testNode(cs.ID, 1, 2, 2, 2))

		after, err := r.CurrentSequenceID(ctx)
		require.NoError(t, err)
		assert.Equal(t, before, after)

		elements, err := r.LatestByRefs(ctx, []models.ElementRef{refN1}, time.Time{})
		require.NoError(t, err)
		require.Len(t, elements, 1)
		assert.Equal(t, int64(1), elements[0].Version)
		return nil
	})
	require.NoError(t, err)
}

func TestChunk(t *testing.T) {
	assert.Nil(t, chunk([]int{}, 2))
	assert.Equal(t, [][]int{{1, 2}, {3}}, chunk([]int{1, 2, 3}, 2))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}
