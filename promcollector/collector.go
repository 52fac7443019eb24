// Package promcollector exports pool metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	mc, _ := promcollector.New(reg, promcollector.WithNamespace("game"))
//	store, _ := ecsmem.New(ecsmem.WithMetricsCollector(mc))
package promcollector

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	statusOK    = "ok"
	statusError = "error"
)

type options struct {
	namespace   string
	constLabels prometheus.Labels
	buckets     []float64
}

// Option configures a Collector.
type Option func(*options)

// WithNamespace sets the metric namespace. Default: "ecsmem".
func WithNamespace(ns string) Option {
	return func(o *options) {
		o.namespace = ns
	}
}

// WithConstLabels attaches labels to every metric, e.g. the store name.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(o *options) {
		o.constLabels = labels
	}
}

// WithBuckets sets the latency histogram buckets in seconds.
func WithBuckets(buckets []float64) Option {
	return func(o *options) {
		o.buckets = buckets
	}
}

// Collector implements ecsmem.MetricsCollector (and pool.MetricsCollector)
// on top of Prometheus counters and histograms.
type Collector struct {
	allocations       *prometheus.CounterVec
	allocLatency      prometheus.Histogram
	removals          *prometheus.CounterVec
	chunksCreated     prometheus.Counter
	slotsCreated      prometheus.Counter
	compactions       *prometheus.CounterVec
	compactionLatency prometheus.Histogram
	relocations       prometheus.Counter
	chunksReleased    prometheus.Counter
}

// New creates a Collector and registers its metrics with reg. A nil reg
// selects prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer, opts ...Option) (*Collector, error) {
	o := options{
		namespace: "ecsmem",
		buckets:   prometheus.ExponentialBuckets(1e-7, 4, 12),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   o.namespace,
			Name:        "allocations_total",
			Help:        "Record allocations by outcome.",
			ConstLabels: o.constLabels,
		}, []string{"status"}),
		allocLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   o.namespace,
			Name:        "allocation_duration_seconds",
			Help:        "Latency of record allocations.",
			ConstLabels: o.constLabels,
			Buckets:     o.buckets,
		}),
		removals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   o.namespace,
			Name:        "removals_total",
			Help:        "Record removals; result is \"found\" or \"stale\".",
			ConstLabels: o.constLabels,
		}, []string{"result"}),
		chunksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   o.namespace,
			Name:        "chunks_created_total",
			Help:        "Chunks added to pools.",
			ConstLabels: o.constLabels,
		}),
		slotsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   o.namespace,
			Name:        "slots_created_total",
			Help:        "Record slots added to pools.",
			ConstLabels: o.constLabels,
		}),
		compactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   o.namespace,
			Name:        "compactions_total",
			Help:        "Compaction and empty chunk release runs by outcome.",
			ConstLabels: o.constLabels,
		}, []string{"status"}),
		compactionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   o.namespace,
			Name:        "compaction_duration_seconds",
			Help:        "Latency of compaction runs.",
			ConstLabels: o.constLabels,
			Buckets:     prometheus.DefBuckets,
		}),
		relocations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   o.namespace,
			Name:        "relocations_total",
			Help:        "Records moved by compaction.",
			ConstLabels: o.constLabels,
		}),
		chunksReleased: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   o.namespace,
			Name:        "chunks_released_total",
			Help:        "Chunks returned to the arena.",
			ConstLabels: o.constLabels,
		}),
	}

	var errs []error
	for _, m := range c.collectors() {
		errs = append(errs, reg.Register(m))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Collector) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.allocations,
		c.allocLatency,
		c.removals,
		c.chunksCreated,
		c.slotsCreated,
		c.compactions,
		c.compactionLatency,
		c.relocations,
		c.chunksReleased,
	}
}

// RecordAllocate implements ecsmem.MetricsCollector.
func (c *Collector) RecordAllocate(duration time.Duration, err error) {
	c.allocations.WithLabelValues(status(err)).Inc()
	c.allocLatency.Observe(duration.Seconds())
}

// RecordRemove implements ecsmem.MetricsCollector.
func (c *Collector) RecordRemove(found bool) {
	result := "found"
	if !found {
		result = "stale"
	}
	c.removals.WithLabelValues(result).Inc()
}

// RecordChunkCreated implements ecsmem.MetricsCollector.
func (c *Collector) RecordChunkCreated(capacity int) {
	c.chunksCreated.Inc()
	c.slotsCreated.Add(float64(capacity))
}

// RecordCompaction implements ecsmem.MetricsCollector.
func (c *Collector) RecordCompaction(relocated, chunksReleased int, duration time.Duration, err error) {
	c.compactions.WithLabelValues(status(err)).Inc()
	c.compactionLatency.Observe(duration.Seconds())
	if err != nil {
		return
	}
	c.relocations.Add(float64(relocated))
	c.chunksReleased.Add(float64(chunksReleased))
}

func status(err error) string {
	if err != nil {
		return statusError
	}
	return statusOK
}
