package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	lookupsTotal    *prometheus.CounterVec
	lookupDuration  *prometheus.HistogramVec
	adapterRequests *prometheus.CounterVec
	adapterDuration *prometheus.HistogramVec
	proxyAttempts   *prometheus.CounterVec
	adaptersLoaded  prometheus.Gauge
	pairsIndexed    prometheus.Gauge
	factoriesBuilt  prometheus.Counter
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		lookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratemux_lookups_total",
				Help: "Total number of rate lookups by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),

		lookupDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ratemux_lookup_duration_seconds",
				Help:    "Rate lookup duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		adapterRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratemux_adapter_requests_total",
				Help: "Total number of adapter queries by outcome",
			},
			[]string{"adapter", "outcome"},
		),

		adapterDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ratemux_adapter_duration_seconds",
				Help:    "Adapter query duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"adapter"},
		),

		proxyAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratemux_proxy_attempts_total",
				Help: "Total number of proxy route attempts by intermediate",
			},
			[]string{"intermediate"},
		),

		adaptersLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ratemux_adapters_loaded",
				Help: "Number of adapters currently loaded",
			},
		),

		pairsIndexed: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ratemux_pairs_indexed",
				Help: "Number of distinct pairs in the index",
			},
		),

		factoriesBuilt: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ratemux_factories_built_total",
				Help: "Total number of adapters built through the factory registry",
			},
		),
	}

	reg.MustRegister(r.lookupsTotal)
	reg.MustRegister(r.lookupDuration)
	reg.MustRegister(r.adapterRequests)
	reg.MustRegister(r.adapterDuration)
	reg.MustRegister(r.proxyAttempts)
	reg.MustRegister(r.adaptersLoaded)
	reg.MustRegister(r.pairsIndexed)
	reg.MustRegister(r.factoriesBuilt)

	return r
}

// RecordLookup records the outcome of one manager lookup.
func (r *Registry) RecordLookup(operation, outcome string) {
	r.lookupsTotal.WithLabelValues(operation, outcome).Inc()
}

// ObserveLookupDuration records how long a lookup took.
func (r *Registry) ObserveLookupDuration(operation string, seconds float64) {
	r.lookupDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordAdapterRequest records one adapter query outcome.
func (r *Registry) RecordAdapterRequest(adapter, outcome string) {
	r.adapterRequests.WithLabelValues(adapter, outcome).Inc()
}

// ObserveAdapterDuration records how long one adapter query took.
func (r *Registry) ObserveAdapterDuration(adapter string, seconds float64) {
	r.adapterDuration.WithLabelValues(adapter).Observe(seconds)
}

// RecordProxyAttempt records a proxy route attempt through an intermediate.
func (r *Registry) RecordProxyAttempt(intermediate string) {
	r.proxyAttempts.WithLabelValues(intermediate).Inc()
}

// RecordFactoryBuild records a deferred adapter instantiation.
func (r *Registry) RecordFactoryBuild() {
	r.factoriesBuilt.Inc()
}

// SetAdaptersLoaded sets the loaded-adapter gauge.
func (r *Registry) SetAdaptersLoaded(count int) {
	r.adaptersLoaded.Set(float64(count))
}

// SetPairsIndexed sets the indexed-pair gauge.
func (r *Registry) SetPairsIndexed(count int) {
	r.pairsIndexed.Set(float64(count))
}
