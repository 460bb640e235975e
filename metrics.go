package breakpad

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus instruments a Resolver maintains across
// its lifetime. They are always updated in-process; registration with a
// Registerer is optional (see WithMetricsRegisterer).
type Metrics struct {
	ModulesLoaded  prometheus.Counter
	LoadErrors     prometheus.Counter
	KnownSymbols   prometheus.Counter
	UnknownSymbols prometheus.Counter
	UnknownModule  prometheus.Counter
	CacheHits      prometheus.Counter
	LookupDuration prometheus.Histogram
}

// NewMetrics constructs a Metrics and, if reg is non-nil, registers its
// instruments with it.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ModulesLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "breakpad_modules_loaded_total",
			Help: "Total number of symbol-file modules successfully loaded.",
		}),
		LoadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "breakpad_module_load_errors_total",
			Help: "Total number of LoadModule calls that failed to parse.",
		}),
		KnownSymbols: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "breakpad_known_symbols_total",
			Help: "Total number of frame lookups that resolved to a function.",
		}),
		UnknownSymbols: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "breakpad_unknown_symbols_total",
			Help: "Total number of frame lookups that matched a module but no function.",
		}),
		UnknownModule: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "breakpad_unknown_module_total",
			Help: "Total number of frame lookups referencing a module that isn't loaded.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "breakpad_lookup_cache_hits_total",
			Help: "Total number of FillFrame calls served from the lookup cache.",
		}),
		LookupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "breakpad_lookup_duration_seconds",
			Help:    "Time spent in Module.Lookup for cache-missed frame queries.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.ModulesLoaded,
			m.LoadErrors,
			m.KnownSymbols,
			m.UnknownSymbols,
			m.UnknownModule,
			m.CacheHits,
			m.LookupDuration,
		)
	}

	return m
}
