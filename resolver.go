package breakpad

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Resolver owns a set of Modules keyed by module name and routes
// per-frame queries to the right one. Its HasModule/FillFrame/
// ModuleNames surface is safe for concurrent readers as long as no
// LoadModule/LoadModules call is in flight; LoadModule itself requires
// the exclusive lock it takes internally.
type Resolver struct {
	mu      sync.RWMutex
	modules map[string]*Module

	logger  log.Logger
	metrics *Metrics
	cache   *lru.Cache[cacheKey, cacheEntry]
}

// ResolverOption configures a Resolver at construction time.
type ResolverOption func(*resolverOptions)

type resolverOptions struct {
	logger         log.Logger
	registerer     prometheus.Registerer
	lookupCacheLen int
}

// WithLogger sets the logger used for load-time diagnostics. The default
// is a no-op logger.
func WithLogger(logger log.Logger) ResolverOption {
	return func(o *resolverOptions) { o.logger = logger }
}

// WithMetricsRegisterer registers the Resolver's Prometheus metrics with
// reg. Passing nil (the default) disables metrics registration but the
// counters are still maintained in-process.
func WithMetricsRegisterer(reg prometheus.Registerer) ResolverOption {
	return func(o *resolverOptions) { o.registerer = reg }
}

// WithLookupCacheSize enables a bounded LRU cache of the n most recently
// queried (module, rva) pairs in front of FillFrame. A size of 0 (the
// default) disables caching.
func WithLookupCacheSize(n int) ResolverOption {
	return func(o *resolverOptions) { o.lookupCacheLen = n }
}

// NewResolver returns an empty Resolver.
func NewResolver(opts ...ResolverOption) *Resolver {
	o := resolverOptions{logger: log.NewNopLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Resolver{
		modules: make(map[string]*Module),
		logger:  o.logger,
		metrics: NewMetrics(o.registerer),
	}
	if o.lookupCacheLen > 0 {
		c, err := lru.New[cacheKey, cacheEntry](o.lookupCacheLen)
		if err == nil {
			r.cache = c
		} else {
			level.Warn(r.logger).Log("msg", "failed to create lookup cache, proceeding without one", "err", err)
		}
	}
	return r
}

// LoadModule parses r into a new Module named name and installs it. It
// refuses (returning ErrModuleExists) if a module of that name is
// already present, leaving the existing module untouched.
func (r *Resolver) LoadModule(name string, reader io.Reader) error {
	if r.HasModule(name) {
		return ErrModuleExists
	}

	m := NewModule(name)
	if err := m.LoadFromReader(reader, WithLoadLogger(r.logger)); err != nil {
		r.metrics.LoadErrors.Inc()
		return err
	}
	if w := m.Warnings(); w != nil {
		level.Warn(r.logger).Log("msg", "module loaded with tolerable anomalies", "module", name, "warnings", w)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.modules[name]; exists {
		return ErrModuleExists
	}
	r.modules[name] = m
	r.metrics.ModulesLoaded.Inc()
	return nil
}

// moduleSource pairs a module name with the reader its symbol file
// should be parsed from, for use with LoadModules.
type moduleSource struct {
	Name   string
	Reader io.Reader
}

// LoadModules parses every source concurrently — parsing is pure and
// touches no shared state — then installs the results under a single
// exclusive lock. If any module fails to parse, or any name collides
// with an already-loaded module or a sibling in this same batch, no
// module from the batch is installed and the first error is returned.
func (r *Resolver) LoadModules(ctx context.Context, sources []moduleSource) error {
	parsed := make([]*Module, len(sources))

	g, _ := errgroup.WithContext(ctx)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			m := NewModule(src.Name)
			if err := m.LoadFromReader(src.Reader, WithLoadLogger(r.logger)); err != nil {
				return err
			}
			parsed[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.metrics.LoadErrors.Inc()
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool, len(parsed))
	for _, m := range parsed {
		if r.modules[m.Name] != nil || seen[m.Name] {
			return ErrModuleExists
		}
		seen[m.Name] = true
	}
	for _, m := range parsed {
		r.modules[m.Name] = m
	}
	r.metrics.ModulesLoaded.Add(float64(len(parsed)))
	return nil
}

// HasModule reports whether a module of the given name is loaded.
func (r *Resolver) HasModule(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.modules[name]
	return ok
}

// Module returns the loaded module of the given name, or ErrModuleNotFound
// if none is loaded. Callers use this to inspect a module's Warnings()
// after a LoadModule/LoadModules call.
func (r *Resolver) Module(name string) (*Module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[name]
	if !ok {
		return nil, ErrModuleNotFound
	}
	return m, nil
}

// ModuleNames returns a sorted snapshot of the currently loaded module
// names.
func (r *Resolver) ModuleNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := lo.Keys(r.modules)
	sort.Strings(names)
	return names
}

type cacheKey struct {
	module string
	rva    Addr
}

type cacheEntry struct {
	sym    FrameSymbol
	unwind UnwindInfo
}

// FillFrame resolves in.Instruction within in.ModuleName's address space
// and returns the matching FrameSymbol and UnwindInfo. A frame whose
// module isn't loaded, or whose RVA matches nothing, simply comes back
// with zero-valued, unfound fields — this is a query miss, not an error.
func (r *Resolver) FillFrame(in FrameIn) (FrameSymbol, UnwindInfo) {
	r.mu.RLock()
	m, ok := r.modules[in.ModuleName]
	r.mu.RUnlock()
	if !ok {
		r.metrics.UnknownModule.Inc()
		return FrameSymbol{}, UnwindInfo{}
	}

	rva := in.Instruction - in.ModuleBase
	key := cacheKey{module: in.ModuleName, rva: rva}
	if r.cache != nil {
		if e, ok := r.cache.Get(key); ok {
			r.metrics.CacheHits.Inc()
			return e.sym, e.unwind
		}
	}

	timer := prometheus.NewTimer(r.metrics.LookupDuration)
	sym, unwind := m.Lookup(rva)
	timer.ObserveDuration()

	if sym.FunctionFound {
		r.metrics.KnownSymbols.Inc()
	} else {
		r.metrics.UnknownSymbols.Inc()
	}

	if r.cache != nil {
		r.cache.Add(key, cacheEntry{sym: sym, unwind: unwind})
	}
	return sym, unwind
}
