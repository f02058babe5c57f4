// Package metrics exposes docstore's Prometheus instrumentation. Metrics
// register on the default registry; hosting applications serve them with
// promhttp as usual.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Retries counts retried remote attempts by operation.
	Retries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docstore",
		Name:      "retries_total",
		Help:      "Remote operation attempts that failed and were retried.",
	}, []string{"operation"})

	// Throttled counts rate-limited responses from the backend.
	Throttled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docstore",
		Name:      "throttled_total",
		Help:      "Backend responses classified as rate limiting.",
	})

	// BulkFlushes counts bulk pipeline flush calls by result.
	BulkFlushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docstore",
		Name:      "bulk_flushes_total",
		Help:      "Bulk execute calls issued by the pipeline.",
	}, []string{"result"})

	// BulkBatchSize tracks the pipeline's current adaptive batch size.
	BulkBatchSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "docstore",
		Name:      "bulk_batch_size",
		Help:      "Current adaptive batch size of the bulk pipeline.",
	})

	// DocumentsWritten counts committed document mutations by kind.
	DocumentsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docstore",
		Name:      "documents_written_total",
		Help:      "Documents committed through the collection adapter.",
	}, []string{"kind"})
)
