package diff

import "github.com/prometheus/client_golang/prometheus"

// BatchCount counts batches by outcome: applied or the error kind.
var BatchCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mapkeeper",
	Subsystem: "diff",
	Name:      "batches",
}, []string{"result"})

// ElementCount counts committed revisions by element type and action.
var ElementCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mapkeeper",
	Subsystem: "diff",
	Name:      "elements",
}, []string{"type", "action"})

// SkippedCount counts if_unused deletes skipped because the element is still referenced.
var SkippedCount = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "mapkeeper",
	Subsystem: "diff",
	Name:      "skipped_deletes",
})

// applyDuration measures the locked apply transaction, lock wait included.
var applyDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
	Namespace: "mapkeeper",
	Subsystem: "diff",
	Name:      "apply_duration_seconds",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
})

// Metrics returns the engine collectors for registration by the host process.
func Metrics() []prometheus.Collector {
	return []prometheus.Collector{BatchCount, ElementCount, SkippedCount, applyDuration}
}

// batchResult is the "result" label of BatchCount.
func batchResult(err error) string {
	if err == nil {
		return "applied"
	}
	switch KindOf(err) {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindIntegrity:
		return "integrity"
	default:
		return "error"
	}
}

// elementAction is the "action" label of ElementCount.
func elementAction(e *StagedElement) string {
	switch {
	case e.Element.Version == 1:
		return "create"
	case !e.Element.Visible:
		return "delete"
	default:
		return "modify"
	}
}
