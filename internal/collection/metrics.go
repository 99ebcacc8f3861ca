package collection

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	opCreate = "create"
	opFind   = "find"
	opUpdate = "update"
	opDelete = "delete"
	opCount  = "count"
	opTx     = "tx"
)

var (
	opsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopstore_collection_ops_total",
			Help: "Collection operations by collection and operation",
		},
		[]string{"collection", "op"},
	)
	opErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopstore_collection_errors_total",
			Help: "Failed collection operations by collection and operation",
		},
		[]string{"collection", "op"},
	)
	opDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shopstore_collection_op_duration_seconds",
			Help:    "Latency of a whole-file collection operation",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		},
		[]string{"collection", "op"},
	)
	documentsGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shopstore_collection_documents",
			Help: "Documents in the collection as of the last operation",
		},
		[]string{"collection"},
	)
)

// Stats tracks operation counts for one collection
type Stats struct {
	Creates uint64 `json:"creates"` // Number of create operations
	Reads   uint64 `json:"reads"`   // Number of find/count operations
	Updates uint64 `json:"updates"` // Number of update and tx operations
	Deletes uint64 `json:"deletes"` // Number of delete operations
	Errors  uint64 `json:"errors"`  // Number of failed operations
}

// observe runs fn and records its outcome
func (c *Collection) observe(op string, fn func() error) error {
	start := time.Now()
	err := fn()

	opsTotal.WithLabelValues(c.name, op).Inc()
	opDuration.WithLabelValues(c.name, op).Observe(time.Since(start).Seconds())

	switch op {
	case opCreate:
		atomic.AddUint64(&c.stats.Creates, 1)
	case opFind, opCount:
		atomic.AddUint64(&c.stats.Reads, 1)
	case opUpdate, opTx:
		atomic.AddUint64(&c.stats.Updates, 1)
	case opDelete:
		atomic.AddUint64(&c.stats.Deletes, 1)
	}
	if err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		opErrorsTotal.WithLabelValues(c.name, op).Inc()
	}
	return err
}

func (c *Collection) recordSize(n int) {
	documentsGauge.WithLabelValues(c.name).Set(float64(n))
}

// Stats returns a snapshot of the operation counters
func (c *Collection) Stats() Stats {
	return Stats{
		Creates: atomic.LoadUint64(&c.stats.Creates),
		Reads:   atomic.LoadUint64(&c.stats.Reads),
		Updates: atomic.LoadUint64(&c.stats.Updates),
		Deletes: atomic.LoadUint64(&c.stats.Deletes),
		Errors:  atomic.LoadUint64(&c.stats.Errors),
	}
}
