package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Metrics records fetch, cache and operation outcomes.
type Metrics interface {
	IncFetch(mirror, kind, outcome string)
	IncCacheLookup(kind string, hit bool)
	IncOperation(op, status string)
	ObserveKeyResolution(durationSeconds float64)
}

// Noop implements Metrics without emitting anything.
type Noop struct{}

func (Noop) IncFetch(string, string, string) {}
func (Noop) IncCacheLookup(string, bool)     {}
func (Noop) IncOperation(string, string)     {}
func (Noop) ObserveKeyResolution(float64)    {}

// Prom implements Metrics backed by Prometheus collectors.
type Prom struct {
	fetches       *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	operations    *prometheus.CounterVec
	keyResolution prometheus.Histogram
}

// NewProm creates the collectors and registers them with reg. A nil reg
// means the default registerer.
func NewProm(namespace string, reg prometheus.Registerer) (*Prom, error) {
	p := &Prom{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_total",
			Help:      "Mirror fetches by mirror class, document kind and outcome",
		}, []string{"mirror", "kind", "outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by kind and result",
		}, []string{"kind", "result"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Service operations by name and status",
		}, []string{"op", "status"}),
		keyResolution: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "key_resolution_seconds",
			Help:      "Wall time of one key resolution pass",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	for _, c := range []prometheus.Collector{p.fetches, p.cacheLookups, p.operations, p.keyResolution} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prom) IncFetch(mirror, kind, outcome string) {
	p.fetches.WithLabelValues(mirror, kind, outcome).Inc()
}

func (p *Prom) IncCacheLookup(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	p.cacheLookups.WithLabelValues(kind, result).Inc()
}

func (p *Prom) IncOperation(op, status string) {
	p.operations.WithLabelValues(op, status).Inc()
}

func (p *Prom) ObserveKeyResolution(durationSeconds float64) {
	p.keyResolution.Observe(durationSeconds)
}

// WriteText writes every family gathered from g in the Prometheus text
// exposition format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
