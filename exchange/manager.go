package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quotelab/ratemux/metrics"
)

// Options configures a Manager. The zero value is usable: logging is
// disabled, metrics are skipped and the default proxy table applies.
type Options struct {
	Logger    *zap.Logger
	Metrics   *metrics.Registry
	Proxies   ProxyTable
	Priority  []string
	Factories map[string]Factory
}

// Manager owns the adapter set, the pair index and the proxy table, and
// resolves rates across all loaded sources. Safe for concurrent use.
type Manager struct {
	log      *zap.Logger
	metrics  *metrics.Registry
	proxies  ProxyTable
	priority []string

	mu        sync.RWMutex
	adapters  map[string]Adapter
	order     []string
	index     *pairIndex
	factories map[string]Factory
	paths     map[string]string
}

// managerView is a consistent read snapshot of the adapter set and index.
// The map and index are replaced wholesale on mutation, never edited in
// place, so a view stays valid after the lock is released.
type managerView struct {
	adapters map[string]Adapter
	index    *pairIndex
}

// NewManager creates an empty manager.
func NewManager(opts Options) *Manager {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	proxies := opts.Proxies
	if proxies.IsZero() {
		proxies = DefaultProxyTable()
	}

	m := &Manager{
		log:       log,
		metrics:   opts.Metrics,
		proxies:   proxies.normalized(),
		priority:  append([]string(nil), opts.Priority...),
		adapters:  make(map[string]Adapter),
		factories: make(map[string]Factory, len(opts.Factories)),
		paths:     make(map[string]string),
	}
	for path, f := range opts.Factories {
		m.factories[path] = f
	}
	m.index = buildIndex(nil)
	return m
}

func (m *Manager) view() managerView {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return managerView{adapters: m.adapters, index: m.index}
}

// LoadAdapter registers a single adapter and rebuilds the pair index.
func (m *Manager) LoadAdapter(a Adapter) error {
	return m.LoadAdapters(a)
}

// LoadAdapters registers adapters keyed by their unique codes. The batch is
// all-or-nothing: a duplicate code rejects the whole call and loads nothing.
func (m *Manager) LoadAdapters(adapters ...Adapter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch := make(map[string]struct{}, len(adapters))
	for _, a := range adapters {
		if a == nil {
			return WrapError(ErrAdapterInvalid, fmt.Errorf("nil adapter"))
		}
		code := a.Code()
		if code == "" {
			return WrapError(ErrAdapterInvalid, fmt.Errorf("adapter %q has an empty code", a.Name()))
		}
		if _, dup := m.adapters[code]; dup {
			return WrapError(ErrAdapterConflict, fmt.Errorf("adapter %q already loaded", code))
		}
		if _, dup := batch[code]; dup {
			return WrapError(ErrAdapterConflict, fmt.Errorf("adapter %q appears twice in batch", code))
		}
		batch[code] = struct{}{}
	}

	next := make(map[string]Adapter, len(m.adapters)+len(adapters))
	for code, a := range m.adapters {
		next[code] = a
	}
	for _, a := range adapters {
		next[a.Code()] = a
		m.order = append(m.order, a.Code())
		m.log.Info("adapter loaded",
			zap.String("code", a.Code()),
			zap.String("name", a.Name()),
			zap.Int("pairs", len(a.Provides())))
	}
	m.adapters = next
	m.rebuildLocked()
	return nil
}

// UnloadAdapter removes an adapter and rebuilds the pair index. The
// adapter's cache goes with it.
func (m *Manager) UnloadAdapter(code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.adapters[code]; !ok {
		return WrapError(ErrAdapterNotFound, fmt.Errorf("adapter %q not loaded", code))
	}
	next := make(map[string]Adapter, len(m.adapters)-1)
	for c, a := range m.adapters {
		if c != code {
			next[c] = a
		}
	}
	m.adapters = next
	for i, c := range m.order {
		if c == code {
			m.order = append(m.order[:i:i], m.order[i+1:]...)
			break
		}
	}
	for path, c := range m.paths {
		if c == code {
			delete(m.paths, path)
		}
	}
	m.rebuildLocked()
	m.log.Info("adapter unloaded", zap.String("code", code))
	return nil
}

// rebuildLocked swaps in a fresh index built over the effective priority
// order. Callers hold the write lock.
func (m *Manager) rebuildLocked() {
	effective := applyPriority(m.order, m.priority)
	ordered := make([]Adapter, 0, len(effective))
	for _, code := range effective {
		ordered = append(ordered, m.adapters[code])
	}
	m.index = buildIndex(ordered)
	if m.metrics != nil {
		m.metrics.SetAdaptersLoaded(len(m.adapters))
		m.metrics.SetPairsIndexed(m.index.pairCount())
	}
}

// applyPriority reorders registration order by an explicit priority list.
// Listed codes come first in list order; unlisted ones keep registration
// order after them; unknown listed codes are ignored.
func applyPriority(order, priority []string) []string {
	if len(priority) == 0 {
		return order
	}
	known := make(map[string]struct{}, len(order))
	for _, code := range order {
		known[code] = struct{}{}
	}
	out := make([]string, 0, len(order))
	taken := make(map[string]struct{}, len(order))
	for _, code := range priority {
		if _, ok := known[code]; !ok {
			continue
		}
		if _, dup := taken[code]; dup {
			continue
		}
		taken[code] = struct{}{}
		out = append(out, code)
	}
	for _, code := range order {
		if _, ok := taken[code]; !ok {
			out = append(out, code)
		}
	}
	return out
}

// AdapterByCode returns the loaded adapter with the given code.
func (m *Manager) AdapterByCode(code string) (Adapter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.adapters[code]
	if !ok {
		return nil, WrapError(ErrAdapterNotFound, fmt.Errorf("no adapter with code %q", code))
	}
	return a, nil
}

// AdapterByName returns the first loaded adapter with the given display
// name, in registration order.
func (m *Manager) AdapterByName(name string) (Adapter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, code := range m.order {
		if a := m.adapters[code]; a.Name() == name {
			return a, nil
		}
	}
	return nil, WrapError(ErrAdapterNotFound, fmt.Errorf("no adapter named %q", name))
}

// RegisterFactory makes an adapter constructible on demand through
// AdapterByPath under the given locator.
func (m *Manager) RegisterFactory(path string, f Factory) error {
	if f == nil {
		return WrapError(ErrAdapterInvalid, fmt.Errorf("nil factory for %q", path))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.factories[path]; dup {
		return WrapError(ErrAdapterConflict, fmt.Errorf("factory %q already registered", path))
	}
	m.factories[path] = f
	return nil
}

// AdapterByPath resolves an adapter by locator string, instantiating and
// loading it through the factory registry on first use. Later calls with
// the same locator return the loaded instance.
func (m *Manager) AdapterByPath(path string) (Adapter, error) {
	m.mu.RLock()
	if code, ok := m.paths[path]; ok {
		if a, loaded := m.adapters[code]; loaded {
			m.mu.RUnlock()
			return a, nil
		}
	}
	f, ok := m.factories[path]
	m.mu.RUnlock()
	if !ok {
		return nil, WrapError(ErrAdapterNotFound, fmt.Errorf("no adapter factory for %q", path))
	}

	a, err := f()
	if err != nil {
		return nil, WrapError(ErrAdapterInvalid, fmt.Errorf("constructing adapter %q: %w", path, err))
	}
	if m.metrics != nil {
		m.metrics.RecordFactoryBuild()
	}
	if err := m.LoadAdapter(a); err != nil {
		// Another caller won the instantiation race, or the code was
		// loaded directly. The registered instance wins.
		if errors.Is(err, ErrAdapterConflict) {
			existing, lookupErr := m.AdapterByCode(a.Code())
			if lookupErr == nil {
				m.rememberPath(path, a.Code())
				return existing, nil
			}
		}
		return nil, err
	}
	m.rememberPath(path, a.Code())
	return a, nil
}

func (m *Manager) rememberPath(path, code string) {
	m.mu.Lock()
	m.paths[path] = code
	m.mu.Unlock()
}

// AdapterCodes returns the codes of all loaded adapters in registration
// order.
func (m *Manager) AdapterCodes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

// PairExists reports whether (base, quote) is resolvable without network
// I/O: identity pairs, direct index hits, and viable proxy routes qualify.
func (m *Manager) PairExists(base, quote string) bool {
	b, q := CanonicalSymbol(base), CanonicalSymbol(quote)
	if b == "" || q == "" {
		return false
	}
	if b == q {
		return true
	}
	pair := Pair{Base: b, Quote: q}
	v := m.view()
	if v.index.has(pair) {
		return true
	}
	return m.proxyRouteExists(pair, v.index)
}

// ListPairsFrom lists all quote symbols directly paired with base. Proxy
// routes are excluded so callers can tell native coverage from synthesized
// coverage.
func (m *Manager) ListPairsFrom(base string) []string {
	return m.view().index.pairsFrom(CanonicalSymbol(base))
}

// ListPairsTo lists all base symbols directly paired into quote.
func (m *Manager) ListPairsTo(quote string) []string {
	return m.view().index.pairsTo(CanonicalSymbol(quote))
}

// GetPair resolves the exchange rate for (base, quote). Identity pairs
// return a unit price without I/O. Directly supported pairs fan out to all
// providing adapters and the first success in priority order wins. Pairs
// with no direct support resolve through the proxy table.
func (m *Manager) GetPair(ctx context.Context, base, quote string) (Quote, error) {
	start := time.Now()
	defer func() {
		m.observeLookup("get_pair", time.Since(start).Seconds())
	}()

	b, q, err := canonicalPairInput(base, quote)
	if err != nil {
		m.recordLookup("get_pair", "invalid")
		return Quote{}, err
	}
	if b == q {
		m.recordLookup("get_pair", "identity")
		return identityQuote(b), nil
	}

	pair := Pair{Base: b, Quote: q}
	v := m.view()
	log := m.lookupLogger(pair)

	if v.index.has(pair) {
		direct, err := m.queryFirst(ctx, pair, v, log)
		if err != nil {
			m.recordLookup("get_pair", "error")
			return Quote{}, err
		}
		m.recordLookup("get_pair", "direct")
		return direct, nil
	}

	log.Debug("no direct adapter for pair, resolving via proxy")
	synthesized, err := m.resolveProxy(ctx, pair, v, log)
	if err != nil {
		m.recordLookup("get_pair", "error")
		return Quote{}, err
	}
	m.recordLookup("get_pair", "proxy")
	return synthesized, nil
}

// GetTickers queries every adapter directly providing (base, quote)
// concurrently and returns all successful quotes keyed by adapter code.
// Partial failure is tolerated; an empty result is an error carrying the
// most specific failure cause.
func (m *Manager) GetTickers(ctx context.Context, base, quote string) (map[string]Quote, error) {
	start := time.Now()
	defer func() {
		m.observeLookup("get_tickers", time.Since(start).Seconds())
	}()

	b, q, err := canonicalPairInput(base, quote)
	if err != nil {
		m.recordLookup("get_tickers", "invalid")
		return nil, err
	}
	pair := Pair{Base: b, Quote: q}
	v := m.view()
	log := m.lookupLogger(pair)

	codes := v.index.adaptersFor(pair)
	if len(codes) == 0 {
		m.recordLookup("get_tickers", "error")
		return nil, WrapError(ErrPairNotFound, fmt.Errorf("no adapter provides %s", pair))
	}

	results := m.spawnQueries(ctx, pair, codes, v)
	quotes := make(map[string]Quote, len(codes))
	var failures []adapterFailure
	for i, code := range codes {
		r := <-results[i]
		if r.err != nil {
			log.Warn("adapter query failed",
				zap.String("adapter", code), zap.Error(r.err))
			failures = append(failures, adapterFailure{code: code, err: r.err})
			continue
		}
		quotes[code] = r.quote
	}
	if len(quotes) == 0 {
		m.recordLookup("get_tickers", "error")
		return nil, m.aggregateFailures(pair, failures)
	}
	m.recordLookup("get_tickers", "ok")
	return quotes, nil
}

// Stats reports the manager's current shape.
type Stats struct {
	Adapters   int
	Pairs      int
	ProxyOf    int
	ProxyCoins int
	Factories  int
}

// Stats returns counts of loaded adapters, indexed pairs and proxy
// configuration entries.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		Adapters:   len(m.adapters),
		Pairs:      m.index.pairCount(),
		ProxyOf:    len(m.proxies.ProxyOf),
		ProxyCoins: len(m.proxies.Coins),
		Factories:  len(m.factories),
	}
}

type adapterResult struct {
	quote Quote
	err   error
}

type adapterFailure struct {
	code string
	err  error
}

// queryFirst fans out to every adapter providing the pair and returns the
// first success in priority order. Once the winner is known, outstanding
// lower-priority queries are cancelled and their results discarded.
func (m *Manager) queryFirst(ctx context.Context, pair Pair, v managerView, log *zap.Logger) (Quote, error) {
	codes := v.index.adaptersFor(pair)
	if len(codes) == 0 {
		return Quote{}, WrapError(ErrPairNotFound, fmt.Errorf("no adapter provides %s", pair))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	results := m.spawnQueries(ctx, pair, codes, v)

	// Await in priority order, not completion order, so the winner is
	// deterministic for a fixed adapter set and cache state.
	var failures []adapterFailure
	for i, code := range codes {
		r := <-results[i]
		if r.err == nil {
			log.Debug("direct quote",
				zap.String("adapter", code),
				zap.String("price", r.quote.Price.String()))
			return r.quote, nil
		}
		log.Warn("adapter query failed",
			zap.String("adapter", code), zap.Error(r.err))
		failures = append(failures, adapterFailure{code: code, err: r.err})
	}
	return Quote{}, m.aggregateFailures(pair, failures)
}

// spawnQueries starts one goroutine per adapter code, each delivering into
// its own buffered slot so abandoned queries never block.
func (m *Manager) spawnQueries(ctx context.Context, pair Pair, codes []string, v managerView) []chan adapterResult {
	results := make([]chan adapterResult, len(codes))
	for i, code := range codes {
		results[i] = make(chan adapterResult, 1)
		go m.queryAdapter(ctx, v.adapters[code], pair, results[i])
	}
	return results
}

func (m *Manager) queryAdapter(ctx context.Context, a Adapter, pair Pair, out chan<- adapterResult) {
	start := time.Now()
	q, err := a.GetPair(ctx, pair.Base, pair.Quote)
	m.observeAdapter(a.Code(), time.Since(start).Seconds())
	if err == nil && !q.IsValid() {
		err = WrapError(ErrExchangeDown,
			fmt.Errorf("adapter %q returned an invalid quote for %s", a.Code(), pair))
	}
	switch {
	case err == nil:
		m.recordAdapterResult(a.Code(), "success")
	case errors.Is(err, context.Canceled):
		m.recordAdapterResult(a.Code(), "canceled")
	default:
		m.recordAdapterResult(a.Code(), "error")
	}
	out <- adapterResult{quote: q, err: err}
}

// aggregateFailures picks the most specific failure to surface, breaking
// ties by adapter priority.
func (m *Manager) aggregateFailures(pair Pair, failures []adapterFailure) error {
	if len(failures) == 0 {
		return WrapError(ErrPairNotFound, fmt.Errorf("no adapter provides %s", pair))
	}
	best := failures[0]
	bestRank := severity(best.err)
	for _, f := range failures[1:] {
		if r := severity(f.err); r > bestRank {
			best, bestRank = f, r
		}
	}
	codes := make([]string, 0, len(failures))
	for _, f := range failures {
		codes = append(codes, f.code)
	}
	return WrapError(kindOf(best.err),
		fmt.Errorf("all %d adapter(s) failed for %s (%s): %w",
			len(failures), pair, strings.Join(codes, ", "), best.err))
}

func canonicalPairInput(base, quote string) (string, string, error) {
	b, q := CanonicalSymbol(base), CanonicalSymbol(quote)
	if err := ValidateSymbol(b); err != nil {
		return "", "", WrapError(ErrPairNotFound, err)
	}
	if err := ValidateSymbol(q); err != nil {
		return "", "", WrapError(ErrPairNotFound, err)
	}
	return b, q, nil
}

// lookupLogger tags log entries of one resolution call with a correlation
// id so concurrent lookups stay distinguishable.
func (m *Manager) lookupLogger(pair Pair) *zap.Logger {
	return m.log.With(
		zap.String("lookup_id", uuid.NewString()),
		zap.String("pair", pair.String()))
}

func (m *Manager) recordLookup(op, outcome string) {
	if m.metrics != nil {
		m.metrics.RecordLookup(op, outcome)
	}
}

func (m *Manager) observeLookup(op string, seconds float64) {
	if m.metrics != nil {
		m.metrics.ObserveLookupDuration(op, seconds)
	}
}

func (m *Manager) recordAdapterResult(code, outcome string) {
	if m.metrics != nil {
		m.metrics.RecordAdapterRequest(code, outcome)
	}
}

func (m *Manager) observeAdapter(code string, seconds float64) {
	if m.metrics != nil {
		m.metrics.ObserveAdapterDuration(code, seconds)
	}
}

func (m *Manager) recordProxyAttempt(intermediate string) {
	if m.metrics != nil {
		m.metrics.RecordProxyAttempt(intermediate)
	}
}
