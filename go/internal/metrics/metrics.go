package metrics

import (
	"fmt"
	"io"

	vm "github.com/VictoriaMetrics/metrics"
)

// Collector defines the counters the timer service reports
type Collector interface {
	RecordCacheLookup(hit bool)
	RecordNotModified()
	RecordIdempotentReplay()
	RecordRateLimited(route string)
	RecordTransition(action string, success bool)
}

// NoOpCollector is a no-op implementation for when metrics aren't needed
type NoOpCollector struct{}

func (n *NoOpCollector) RecordCacheLookup(hit bool)                   {}
func (n *NoOpCollector) RecordNotModified()                           {}
func (n *NoOpCollector) RecordIdempotentReplay()                      {}
func (n *NoOpCollector) RecordRateLimited(route string)               {}
func (n *NoOpCollector) RecordTransition(action string, success bool) {}

// VictoriaCollector implements Collector using VictoriaMetrics counters.
type VictoriaCollector struct {
	set *vm.Set
}

// NewVictoriaCollector creates a collector with its own metric set.
func NewVictoriaCollector() *VictoriaCollector {
	return &VictoriaCollector{set: vm.NewSet()}
}

func (c *VictoriaCollector) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.set.GetOrCreateCounter(fmt.Sprintf(`timer_read_cache_lookups_total{result=%q}`, result)).Inc()
}

func (c *VictoriaCollector) RecordNotModified() {
	c.set.GetOrCreateCounter(`timer_read_not_modified_total`).Inc()
}

func (c *VictoriaCollector) RecordIdempotentReplay() {
	c.set.GetOrCreateCounter(`timer_idempotent_replays_total`).Inc()
}

func (c *VictoriaCollector) RecordRateLimited(route string) {
	c.set.GetOrCreateCounter(fmt.Sprintf(`timer_rate_limited_total{route=%q}`, route)).Inc()
}

func (c *VictoriaCollector) RecordTransition(action string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	c.set.GetOrCreateCounter(fmt.Sprintf(`timer_transitions_total{action=%q,status=%q}`, action, status)).Inc()
}

// WritePrometheus writes the collector's metrics plus process metrics in Prometheus text format.
func (c *VictoriaCollector) WritePrometheus(w io.Writer) {
	c.set.WritePrometheus(w)
	vm.WriteProcessMetrics(w)
}
