// Package metrics implements the Prometheus instrumentation for both
// sides of the pipeline, the collector-side counters, plus the
// shipper's periodic Metrics snapshot.
package metrics

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"rlog/internal/wire"
)

// QueueName identifies one of the four shipper-side queues the Metrics
// message reports on.
type QueueName string

const (
	QueueGelfIn   QueueName = "gelf_in"
	QueueSyslogIn QueueName = "syslog_in"
	QueueFilesIn  QueueName = "files_in"
	QueueGrpcOut  QueueName = "grpc_out"
)

// Shipper tracks the per-queue depth/processed/error counters a shipper
// reports to its collector every 30s, and exposes them locally too via
// Prometheus.
type Shipper struct {
	mu        sync.Mutex
	depth     map[QueueName]*int64
	processed map[QueueName]*int64
	errors    map[QueueName]*int64

	depthGauge     *prometheus.GaugeVec
	processedTotal *prometheus.CounterVec
	errorTotal     *prometheus.CounterVec
}

// NewShipper registers the shipper-side metric families with reg and
// returns a ready Shipper. reg is typically prometheus.NewRegistry(), kept
// separate from the global registry so tests can use independent
// registries side by side.
func NewShipper(reg prometheus.Registerer) *Shipper {
	s := &Shipper{
		depth:     map[QueueName]*int64{},
		processed: map[QueueName]*int64{},
		errors:    map[QueueName]*int64{},
		depthGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rlog_shipper",
			Name:      "queue_depth",
			Help:      "Best-effort current depth of a shipper-side queue.",
		}, []string{"queue"}),
		processedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rlog_shipper",
			Name:      "processed_total",
			Help:      "Records successfully processed by a shipper-side queue.",
		}, []string{"queue"}),
		errorTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rlog_shipper",
			Name:      "error_total",
			Help:      "Records dropped due to an error in a shipper-side queue.",
		}, []string{"queue"}),
	}
	for _, q := range []QueueName{QueueGelfIn, QueueSyslogIn, QueueFilesIn, QueueGrpcOut} {
		var d, p, e int64
		s.depth[q] = &d
		s.processed[q] = &p
		s.errors[q] = &e
	}
	reg.MustRegister(s.depthGauge, s.processedTotal, s.errorTotal, collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return s
}

// IncDepth adjusts queue's best-effort depth gauge by delta (positive on
// enqueue, negative on dequeue).
func (s *Shipper) IncDepth(q QueueName, delta int64) {
	v := atomic.AddInt64(s.depth[q], delta)
	s.depthGauge.WithLabelValues(string(q)).Set(float64(v))
}

// IncProcessed records one successfully processed record for queue.
func (s *Shipper) IncProcessed(q QueueName) {
	atomic.AddInt64(s.processed[q], 1)
	s.processedTotal.WithLabelValues(string(q)).Inc()
}

// IncError records one dropped/failed record for queue.
func (s *Shipper) IncError(q QueueName) {
	atomic.AddInt64(s.errors[q], 1)
	s.errorTotal.WithLabelValues(string(q)).Inc()
}

// Snapshot builds the wire.Metrics message reported to the collector
// every 30s.
func (s *Shipper) Snapshot() *wire.Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	m := &wire.Metrics{
		Hostname:       hostname,
		QueueCount:     map[string]uint64{},
		ProcessedCount: map[string]uint64{},
		ErrorCount:     map[string]uint64{},
	}
	for q := range s.depth {
		m.QueueCount[string(q)] = uint64(atomic.LoadInt64(s.depth[q]))
		m.ProcessedCount[string(q)] = uint64(atomic.LoadInt64(s.processed[q]))
		m.ErrorCount[string(q)] = uint64(atomic.LoadInt64(s.errors[q]))
	}
	return m
}
