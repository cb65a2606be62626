package store

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	rowsAppended    prometheus.Counter
	rowsRestored    prometheus.Counter
	rowsInvalidated prometheus.Counter
}

// newMetrics builds the store collectors and registers them on reg when it
// is non-nil.
func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		rowsAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shadowlogs",
			Subsystem: "store",
			Name:      "rows_appended_total",
			Help:      "Shadow event rows inserted.",
		}),
		rowsRestored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shadowlogs",
			Subsystem: "store",
			Name:      "rows_restored_total",
			Help:      "Removed rows made live again by a block returning to the canonical chain.",
		}),
		rowsInvalidated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shadowlogs",
			Subsystem: "store",
			Name:      "rows_invalidated_total",
			Help:      "Shadow event rows flagged removed.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.rowsAppended, m.rowsRestored, m.rowsInvalidated)
	}
	return m
}
