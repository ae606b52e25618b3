package observability

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric names emitted by the pipeline
const (
	MetricStageDuration   = "stage_duration_seconds"
	MetricStageTotal      = "stage_total"
	MetricBudgetUtil      = "budget_utilization"
	MetricDroppedEvidence = "dropped_evidence"
	MetricCoverageMissing = "coverage_missing"
)

// Sink receives pipeline telemetry. Tags become metric labels.
type Sink interface {
	Counter(name string, value float64, tags map[string]string)
	Gauge(name string, value float64, tags map[string]string)
	Timer(name string, d time.Duration, tags map[string]string)
}

// NopSink discards everything
type NopSink struct{}

// Counter implements Sink
func (NopSink) Counter(string, float64, map[string]string) {}

// Gauge implements Sink
func (NopSink) Gauge(string, float64, map[string]string) {}

// Timer implements Sink
func (NopSink) Timer(string, time.Duration, map[string]string) {}

// RecordStage emits the duration timer and a success or failure counter for one pipeline stage
func RecordStage(sink Sink, stage string, start time.Time, err error) {
	if sink == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	sink.Timer(MetricStageDuration, time.Since(start), map[string]string{"stage": stage})
	sink.Counter(MetricStageTotal, 1, map[string]string{"stage": stage, "status": status})
}

// PrometheusSink maps Sink calls onto Prometheus collectors created lazily per metric
// name. The label set of a name is fixed by its first call; later tags missing a label
// report it as "" and extra tags are dropped. Timers become histograms in seconds.
type PrometheusSink struct {
	mu         sync.Mutex
	factory    promauto.Factory
	namespace  string
	labels     map[string][]string
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

// NewPrometheusSink registers collectors on reg under namespace (e.g. "evidence")
func NewPrometheusSink(reg prometheus.Registerer, namespace string) *PrometheusSink {
	return &PrometheusSink{
		factory:    promauto.With(reg),
		namespace:  namespace,
		labels:     make(map[string][]string),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

// Counter implements Sink
func (p *PrometheusSink) Counter(name string, value float64, tags map[string]string) {
	p.mu.Lock()
	vec, ok := p.counters[name]
	if !ok {
		vec = p.factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Name:      name,
			Help:      "Pipeline counter " + name,
		}, p.labelsFor(name, tags))
		p.counters[name] = vec
	}
	values := p.valuesFor(name, tags)
	p.mu.Unlock()
	vec.WithLabelValues(values...).Add(value)
}

// Gauge implements Sink
func (p *PrometheusSink) Gauge(name string, value float64, tags map[string]string) {
	p.mu.Lock()
	vec, ok := p.gauges[name]
	if !ok {
		vec = p.factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Name:      name,
			Help:      "Pipeline gauge " + name,
		}, p.labelsFor(name, tags))
		p.gauges[name] = vec
	}
	values := p.valuesFor(name, tags)
	p.mu.Unlock()
	vec.WithLabelValues(values...).Set(value)
}

// Timer implements Sink
func (p *PrometheusSink) Timer(name string, d time.Duration, tags map[string]string) {
	p.mu.Lock()
	vec, ok := p.histograms[name]
	if !ok {
		vec = p.factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Name:      name,
			Help:      "Pipeline timer " + name,
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, p.labelsFor(name, tags))
		p.histograms[name] = vec
	}
	values := p.valuesFor(name, tags)
	p.mu.Unlock()
	vec.WithLabelValues(values...).Observe(d.Seconds())
}

// labelsFor fixes the label names of a metric on first use. Caller holds mu.
func (p *PrometheusSink) labelsFor(name string, tags map[string]string) []string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	p.labels[name] = keys
	return keys
}

// valuesFor orders tag values by the metric's label names. Caller holds mu.
func (p *PrometheusSink) valuesFor(name string, tags map[string]string) []string {
	keys := p.labels[name]
	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = tags[k]
	}
	return values
}
