package engine

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	reasonReverted = "reverted"
	reasonInvalid  = "invalid"
)

type metrics struct {
	blocksProcessed    prometheus.Counter
	blocksFailed       prometheus.Counter
	eventsAppended     prometheus.Counter
	blocksInvalidated  prometheus.Counter
	invalidateRetries  prometheus.Counter
	transactionsFailed *prometheus.CounterVec
	executionSeconds   prometheus.Histogram
	lastAcknowledged   prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		blocksProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shadowlogs_blocks_processed_total",
			Help: "Number of committed blocks re-executed and appended",
		}),
		blocksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shadowlogs_blocks_failed_total",
			Help: "Number of committed blocks whose execution or append failed",
		}),
		eventsAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shadowlogs_events_appended_total",
			Help: "Number of shadow events made live by appends",
		}),
		blocksInvalidated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shadowlogs_blocks_invalidated_total",
			Help: "Number of reverted blocks invalidated",
		}),
		invalidateRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shadowlogs_invalidation_retries_total",
			Help: "Number of invalidation attempts that failed and were retried",
		}),
		transactionsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shadowlogs_transactions_failed_total",
			Help: "Number of transactions that did not succeed under shadow execution",
		}, []string{"reason"}),
		executionSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shadowlogs_block_execution_seconds",
			Help:    "Time spent re-executing one block",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		lastAcknowledged: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shadowlogs_last_acknowledged_block",
			Help: "Block number of the last successfully acknowledged notification",
		}),
	}

	if reg == nil {
		return m, nil
	}
	return m, errors.Join(
		reg.Register(m.blocksProcessed),
		reg.Register(m.blocksFailed),
		reg.Register(m.eventsAppended),
		reg.Register(m.blocksInvalidated),
		reg.Register(m.invalidateRetries),
		reg.Register(m.transactionsFailed),
		reg.Register(m.executionSeconds),
		reg.Register(m.lastAcknowledged),
	)
}
