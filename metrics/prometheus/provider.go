// Package prometheus exports metrics.Provider instruments to a Prometheus registry.
package prometheus

import (
	"errors"
	"fmt"
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/ygrebnov/merge/metrics"
)

// Provider implements metrics.Provider on top of Prometheus collectors.
// Counters map to prometheus.Counter, up/down counters to prometheus.Gauge and
// histograms to prometheus.Histogram. Collectors are registered on first use.
type Provider struct {
	namespace string
	reg       prom.Registerer
	buckets   []float64

	mu         sync.Mutex
	collectors map[string]prom.Collector
	errs       []error
}

var _ metrics.Provider = (*Provider)(nil)

// Option configures a Provider.
type Option func(*Provider)

// WithBuckets overrides histogram buckets (default prometheus.DefBuckets).
func WithBuckets(b []float64) Option {
	return func(p *Provider) {
		if len(b) > 0 {
			p.buckets = b
		}
	}
}

// NewProvider returns a Provider registering under namespace on reg.
// Empty namespace defaults to "merge"; nil reg to prometheus.DefaultRegisterer.
func NewProvider(namespace string, reg prom.Registerer, opts ...Option) *Provider {
	if namespace == "" {
		namespace = "merge"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	p := &Provider{
		namespace:  namespace,
		reg:        reg,
		buckets:    prom.DefBuckets,
		collectors: make(map[string]prom.Collector),
	}
	for _, o := range opts {
		if o != nil {
			o(p)
		}
	}
	return p
}

// Err returns registration failures collected so far, joined.
// Instruments that failed to register still work; they are just not exported.
func (p *Provider) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Join(p.errs...)
}

func (p *Provider) Counter(name string, opts ...metrics.InstrumentOption) metrics.Counter {
	c := p.collector(name, func(cfg metrics.InstrumentConfig) prom.Collector {
		return prom.NewCounter(prom.CounterOpts{Namespace: p.namespace, Name: name, Help: help(name, cfg)})
	}, opts)
	if pc, ok := c.(prom.Counter); ok {
		return counter{pc}
	}
	return p.mismatch(name, c)
}

func (p *Provider) UpDownCounter(name string, opts ...metrics.InstrumentOption) metrics.UpDownCounter {
	c := p.collector(name, func(cfg metrics.InstrumentConfig) prom.Collector {
		return prom.NewGauge(prom.GaugeOpts{Namespace: p.namespace, Name: name, Help: help(name, cfg)})
	}, opts)
	if g, ok := c.(prom.Gauge); ok {
		return gauge{g}
	}
	return p.mismatch(name, c)
}

func (p *Provider) Histogram(name string, opts ...metrics.InstrumentOption) metrics.Histogram {
	c := p.collector(name, func(cfg metrics.InstrumentConfig) prom.Collector {
		return prom.NewHistogram(prom.HistogramOpts{
			Namespace: p.namespace, Name: name, Help: help(name, cfg), Buckets: p.buckets,
		})
	}, opts)
	if h, ok := c.(prom.Histogram); ok {
		return histogram{h}
	}
	return p.mismatch(name, c)
}

func (p *Provider) collector(
	name string, newFn func(metrics.InstrumentConfig) prom.Collector, opts []metrics.InstrumentOption,
) prom.Collector {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.collectors[name]; ok {
		return c
	}
	c, err := register(p.reg, newFn(metrics.Apply(opts)))
	if err != nil {
		p.errs = append(p.errs, err)
	}
	p.collectors[name] = c
	return c
}

// mismatch records a name reused across instrument kinds and returns a no-op instrument.
func (p *Provider) mismatch(name string, c prom.Collector) noop {
	p.mu.Lock()
	p.errs = append(p.errs, fmt.Errorf("metric %q already used as %T", name, c))
	p.mu.Unlock()
	return noop{}
}

func register(reg prom.Registerer, c prom.Collector) (prom.Collector, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prom.AlreadyRegisteredError
	if errors.As(err, &are) {
		return are.ExistingCollector, nil
	}
	return c, err
}

func help(name string, cfg metrics.InstrumentConfig) string {
	if cfg.Description != "" {
		return cfg.Description
	}
	return name
}

type counter struct{ c prom.Counter }

// Add ignores negative deltas; Prometheus counters panic on them.
func (c counter) Add(n int64) {
	if n > 0 {
		c.c.Add(float64(n))
	}
}

type gauge struct{ g prom.Gauge }

func (g gauge) Add(n int64) { g.g.Add(float64(n)) }

type histogram struct{ h prom.Histogram }

func (h histogram) Record(v float64) { h.h.Observe(v) }

type noop struct{}

func (noop) Add(int64)      {}
func (noop) Record(float64) {}
