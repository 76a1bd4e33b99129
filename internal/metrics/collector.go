package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Collector tracks per-shipper-per-queue Prometheus metrics derived from
// inbound Metrics reports.
//
// processed_count/error_count are monotonically increasing counters *as
// reported by the shipper*, but a shipper restart resets them to zero, and
// concurrent reports can in principle race out of order (a known, tolerated
// race). Rather than reject a decreasing value, Report resets the local
// Prometheus counter and reseeds it at the newly reported value.
type Collector struct {
	mu   sync.Mutex
	last map[counterKey]uint64

	queueDepth     *prometheus.GaugeVec
	processedTotal *prometheus.CounterVec
	errorTotal     *prometheus.CounterVec
}

type counterKey struct {
	hostname string
	queue    string
	kind     string // "processed" or "error"
}

// NewCollector registers the collector-side metric families with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		last: map[counterKey]uint64{},
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rlog_collector",
			Name:      "shipper_queue_depth",
			Help:      "Best-effort queue depth last reported by a shipper.",
		}, []string{"hostname", "queue"}),
		processedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rlog_collector",
			Name:      "shipper_processed_total",
			Help:      "Records processed, as last reported by a shipper.",
		}, []string{"hostname", "queue"}),
		errorTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rlog_collector",
			Name:      "shipper_error_total",
			Help:      "Records errored, as last reported by a shipper.",
		}, []string{"hostname", "queue"}),
	}
	reg.MustRegister(c.queueDepth, c.processedTotal, c.errorTotal, collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return c
}

// Report applies one shipper's Metrics snapshot.
func (c *Collector) Report(hostname string, queueCount, processedCount, errorCount map[string]uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for queue, depth := range queueCount {
		c.queueDepth.WithLabelValues(hostname, queue).Set(float64(depth))
	}
	for queue, v := range processedCount {
		c.applyCounter(c.processedTotal, hostname, queue, "processed", v)
	}
	for queue, v := range errorCount {
		c.applyCounter(c.errorTotal, hostname, queue, "error", v)
	}
}

func (c *Collector) applyCounter(vec *prometheus.CounterVec, hostname, queue, kind string, reported uint64) {
	key := counterKey{hostname: hostname, queue: queue, kind: kind}
	prev, seen := c.last[key]

	if !seen || reported < prev {
		vec.DeleteLabelValues(hostname, queue)
		vec.WithLabelValues(hostname, queue).Add(float64(reported))
		c.last[key] = reported
		return
	}

	delta := reported - prev
	if delta > 0 {
		vec.WithLabelValues(hostname, queue).Add(float64(delta))
	}
	c.last[key] = reported
}
