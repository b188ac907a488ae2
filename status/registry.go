// Package status is the pipeline's metric registry, read by telemetry.
package status

import "sync/atomic"

// Registry groups the metric kinds the pipeline publishes
// Keys are listed in keys.go; a process normally shares one Registry across
// the packet queue, asset queue, render task queue, host and scheduler
type Registry struct {
	Bools   *MetricMap[atomic.Bool]
	Ints    *MetricMap[atomic.Int64]
	Floats  *MetricMap[AtomicFloat]
	Strings *MetricMap[AtomicString]
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{
		Bools:   NewMetricMap[atomic.Bool](),
		Ints:    NewMetricMap[atomic.Int64](),
		Floats:  NewMetricMap[AtomicFloat](),
		Strings: NewMetricMap[AtomicString](),
	}
}

// TotalCount returns the number of metrics of every kind
func (r *Registry) TotalCount() int {
	return r.Bools.Count() + r.Ints.Count() + r.Floats.Count() + r.Strings.Count()
}

// Snapshot reads every metric into a plain map for JSON
func (r *Registry) Snapshot() map[string]any {
	return r.SnapshotPrefix("")
}

// SnapshotPrefix reads the metrics whose key starts with prefix
// Each value is loaded on its own; the result is not a consistent cut across metrics
func (r *Registry) SnapshotPrefix(prefix string) map[string]any {
	out := make(map[string]any)
	r.Bools.Range(prefix, func(k string, p *atomic.Bool) { out[k] = p.Load() })
	r.Ints.Range(prefix, func(k string, p *atomic.Int64) { out[k] = p.Load() })
	r.Floats.Range(prefix, func(k string, p *AtomicFloat) { out[k] = p.Get() })
	r.Strings.Range(prefix, func(k string, p *AtomicString) { out[k] = p.Load() })
	return out
}
