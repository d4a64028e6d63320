// Package metrics provides a small metric registry with Prometheus text
// exposition, covering the capture engine's own health: records captured,
// evictions, contained errors, observer panics, capture overhead.
package metrics

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// MetricType represents the type of a metric.
type MetricType string

const (
	MetricTypeCounter   MetricType = "counter"
	MetricTypeGauge     MetricType = "gauge"
	MetricTypeHistogram MetricType = "histogram"
)

// Metric is the interface implemented by all metric types.
type Metric interface {
	Name() string
	Help() string
	Type() MetricType
	// Collect returns all metric samples for exposition.
	Collect() []Sample
}

// Sample is a single exposition sample with optional labels.
type Sample struct {
	Name   string
	Labels map[string]string
	Value  float64
}

// atomicFloat64 stores float64 bits in a uint64 for atomic access.
type atomicFloat64 struct {
	bits atomic.Uint64
}

func (a *atomicFloat64) Load() float64 {
	return math.Float64frombits(a.bits.Load())
}

func (a *atomicFloat64) Store(val float64) {
	a.bits.Store(math.Float64bits(val))
}

func (a *atomicFloat64) Add(delta float64) {
	for {
		old := a.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if a.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

// Counter is a monotonically increasing metric with an optional single
// label dimension.
type Counter struct {
	name      string
	help      string
	labelName string
	total     atomicFloat64
	mu        sync.RWMutex
	byLabel   map[string]*atomicFloat64
}

// Name returns the metric name.
func (c *Counter) Name() string { return c.name }

// Help returns the help text.
func (c *Counter) Help() string { return c.help }

// Type returns the metric type.
func (c *Counter) Type() MetricType { return MetricTypeCounter }

// Inc increments the unlabeled counter value.
func (c *Counter) Inc() { c.total.Add(1) }

// Add increases the unlabeled counter by delta. Negative deltas are ignored.
func (c *Counter) Add(delta float64) {
	if delta < 0 {
		return
	}
	c.total.Add(delta)
}

// WithLabel returns the counter cell for the given label value.
func (c *Counter) WithLabel(value string) *CounterVec {
	c.mu.Lock()
	cell, ok := c.byLabel[value]
	if !ok {
		cell = &atomicFloat64{}
		c.byLabel[value] = cell
	}
	c.mu.Unlock()
	return &CounterVec{counter: c, cell: cell}
}

// Value returns the current unlabeled value, for tests and introspection.
func (c *Counter) Value() float64 { return c.total.Load() }

// Collect returns all counter samples.
func (c *Counter) Collect() []Sample {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.labelName == "" || len(c.byLabel) == 0 {
		return []Sample{{Name: c.name, Value: c.total.Load()}}
	}
	samples := make([]Sample, 0, len(c.byLabel))
	for value, cell := range c.byLabel {
		samples = append(samples, Sample{
			Name:   c.name,
			Labels: map[string]string{c.labelName: value},
			Value:  cell.Load(),
		})
	}
	return samples
}

// CounterVec is a counter cell bound to one label value.
type CounterVec struct {
	counter *Counter
	cell    *atomicFloat64
}

// Inc increments the cell.
func (v *CounterVec) Inc() { v.cell.Add(1) }

// Add increases the cell by delta. Negative deltas are ignored.
func (v *CounterVec) Add(delta float64) {
	if delta < 0 {
		return
	}
	v.cell.Add(delta)
}

// Value returns the cell's current value.
func (v *CounterVec) Value() float64 { return v.cell.Load() }

// Gauge is a metric that can go up and down.
type Gauge struct {
	name  string
	help  string
	value atomicFloat64
}

// Name returns the metric name.
func (g *Gauge) Name() string { return g.name }

// Help returns the help text.
func (g *Gauge) Help() string { return g.help }

// Type returns the metric type.
func (g *Gauge) Type() MetricType { return MetricTypeGauge }

// Set stores the gauge value.
func (g *Gauge) Set(value float64) { g.value.Store(value) }

// Inc increments the gauge.
func (g *Gauge) Inc() { g.value.Add(1) }

// Dec decrements the gauge.
func (g *Gauge) Dec() { g.value.Add(-1) }

// Value returns the current value.
func (g *Gauge) Value() float64 { return g.value.Load() }

// Collect returns the single gauge sample.
func (g *Gauge) Collect() []Sample {
	return []Sample{{Name: g.name, Value: g.value.Load()}}
}

// Histogram observes value distributions with cumulative buckets.
type Histogram struct {
	name    string
	help    string
	buckets []float64
	mu      sync.Mutex
	counts  []uint64
	sum     float64
	count   uint64
}

// Name returns the metric name.
func (h *Histogram) Name() string { return h.name }

// Help returns the help text.
func (h *Histogram) Help() string { return h.help }

// Type returns the metric type.
func (h *Histogram) Type() MetricType { return MetricTypeHistogram }

// Observe records one value.
func (h *Histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, upper := range h.buckets {
		if value <= upper {
			h.counts[i]++
		}
	}
	h.sum += value
	h.count++
}

// Collect returns bucket, sum, and count samples.
func (h *Histogram) Collect() []Sample {
	h.mu.Lock()
	defer h.mu.Unlock()

	samples := make([]Sample, 0, len(h.buckets)+3)
	for i, upper := range h.buckets {
		samples = append(samples, Sample{
			Name:   h.name + "_bucket",
			Labels: map[string]string{"le": formatFloat(upper)},
			Value:  float64(h.counts[i]),
		})
	}
	samples = append(samples,
		Sample{Name: h.name + "_bucket", Labels: map[string]string{"le": "+Inf"}, Value: float64(h.count)},
		Sample{Name: h.name + "_sum", Value: h.sum},
		Sample{Name: h.name + "_count", Value: float64(h.count)},
	)
	return samples
}

// Registry holds registered metrics and serves their exposition.
type Registry struct {
	mu      sync.RWMutex
	metrics []Metric
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// NewCounter registers and returns a counter. labelName may be empty for an
// unlabeled counter.
func (r *Registry) NewCounter(name, help, labelName string) *Counter {
	c := &Counter{name: name, help: help, labelName: labelName, byLabel: make(map[string]*atomicFloat64)}
	r.register(c)
	return c
}

// NewGauge registers and returns a gauge.
func (r *Registry) NewGauge(name, help string) *Gauge {
	g := &Gauge{name: name, help: help}
	r.register(g)
	return g
}

// NewHistogram registers and returns a histogram with the given upper bounds.
func (r *Registry) NewHistogram(name, help string, buckets []float64) *Histogram {
	sorted := append([]float64(nil), buckets...)
	sort.Float64s(sorted)
	h := &Histogram{name: name, help: help, buckets: sorted, counts: make([]uint64, len(sorted))}
	r.register(h)
	return h
}

func (r *Registry) register(m Metric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = append(r.metrics, m)
}

// Handler returns an http.Handler exposing the registry in Prometheus text
// format (version 0.0.4).
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		r.mu.RLock()
		snapshot := append([]Metric(nil), r.metrics...)
		r.mu.RUnlock()

		for _, m := range snapshot {
			fmt.Fprintf(w, "# HELP %s %s\n", m.Name(), escapeHelp(m.Help()))
			fmt.Fprintf(w, "# TYPE %s %s\n", m.Name(), m.Type())
			for _, s := range m.Collect() {
				fmt.Fprintf(w, "%s%s %s\n", s.Name, formatLabels(s.Labels), formatFloat(s.Value))
			}
		}
	})
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, labels[k]))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func formatFloat(v float64) string {
	if math.IsInf(v, 1) {
		return "+Inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func escapeHelp(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	return strings.ReplaceAll(s, "\n", "\\n")
}
