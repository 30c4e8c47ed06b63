package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsCollector(t *testing.T) {
	t.Run("memory database has only the writer pool", func(t *testing.T) {
		s, err := New(context.Background(), ":memory:")
		require.NoError(t, err)
		defer s.Close()

		assert.Equal(t, 4, testutil.CollectAndCount(NewStatsCollector(s)))
	})

	t.Run("file database reports both pools", func(t *testing.T) {
		s, err := New(context.Background(), filepath.Join(t.TempDir(), "stats.db"))
		require.NoError(t, err)
		defer s.Close()

		c := NewStatsCollector(s)
		assert.Equal(t, 8, testutil.CollectAndCount(c))
		assert.Equal(t, 2, testutil.CollectAndCount(c, "mapkeeper_sqlite_open_connections"))
	})
}
