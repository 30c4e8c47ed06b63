package sqlite

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
)

// StatsCollector exports connection pool statistics of the writer and reader pools.
type StatsCollector struct {
	storage *Storage

	openConnections *prometheus.Desc
	inUse           *prometheus.Desc
	waitCount       *prometheus.Desc
	waitDuration    *prometheus.Desc
}

// NewStatsCollector creates a collector for s.
func NewStatsCollector(s *Storage) *StatsCollector {
	labels := []string{"pool"}
	return &StatsCollector{
		storage: s,

		openConnections: prometheus.NewDesc(
			"mapkeeper_sqlite_open_connections",
			"Number of established connections",
			labels, nil,
		),
		inUse: prometheus.NewDesc(
			"mapkeeper_sqlite_in_use_connections",
			"Number of connections currently in use",
			labels, nil,
		),
		waitCount: prometheus.NewDesc(
			"mapkeeper_sqlite_wait_count_total",
			"Total number of connections waited for",
			labels, nil,
		),
		waitDuration: prometheus.NewDesc(
			"mapkeeper_sqlite_wait_duration_seconds_total",
			"Total time blocked waiting for a connection",
			labels, nil,
		),
	}
}

func (c *StatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.openConnections
	ch <- c.inUse
	ch <- c.waitCount
	ch <- c.waitDuration
}

func (c *StatsCollector) Collect(ch chan<- prometheus.Metric) {
	// Ожидание писателя показывает конкуренцию за блокировку записи
	c.collect(ch, "writer", c.storage.db.Stats())
	if c.storage.rdb != c.storage.db {
		c.collect(ch, "reader", c.storage.rdb.Stats())
	}
}

func (c *StatsCollector) collect(ch chan<- prometheus.Metric, pool string, stats sql.DBStats) {
	ch <- prometheus.MustNewConstMetric(
		c.openConnections,
		prometheus.GaugeValue,
		float64(stats.OpenConnections),
		pool,
	)
	ch <- prometheus.MustNewConstMetric(
		c.inUse,
		prometheus.GaugeValue,
		float64(stats.InUse),
		pool,
	)
	ch <- prometheus.MustNewConstMetric(
		c.waitCount,
		prometheus.CounterValue,
		float64(stats.WaitCount),
		pool,
	)
	ch <- prometheus.MustNewConstMetric(
		c.waitDuration,
		prometheus.CounterValue,
		stats.WaitDuration.Seconds(),
		pool,
	)
}
