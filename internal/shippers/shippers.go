// Package shippers tracks which shipper hosts have reported metrics
// recently, grounded on rlog-collector's report_connected_host / reaper
// behavior.
package shippers

import (
	"context"
	"sort"
	"sync"
	"time"
)

// IdleTimeout is how long a shipper may go without a metrics report before
// it is reaped from the connected list.
const IdleTimeout = 90 * time.Second

// ReapInterval is how often the background reaper sweeps for idle entries.
const ReapInterval = 30 * time.Second

// Registry tracks the last-seen time of every shipper that has reported
// metrics.
type Registry struct {
	mu       sync.Mutex
	lastSeen map[string]time.Time
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{lastSeen: map[string]time.Time{}}
}

// Touch records hostname as having just reported, at time now.
func (r *Registry) Touch(hostname string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSeen[hostname] = now
}

// Connected returns the currently connected hostnames, sorted, as of the
// last reap.
func (r *Registry) Connected() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.lastSeen))
	for h := range r.lastSeen {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// reap evicts entries whose last report is older than IdleTimeout relative
// to now.
func (r *Registry) reap(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for host, seen := range r.lastSeen {
		if now.Sub(seen) > IdleTimeout {
			delete(r.lastSeen, host)
		}
	}
}

// Run sweeps for idle entries every ReapInterval until ctx is canceled.
func (r *Registry) Run(ctx context.Context) error {
	ticker := time.NewTicker(ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-ticker.C:
			r.reap(t)
		}
	}
}
