package datasource

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/marketbench/backsim/internal/logger"
	"github.com/marketbench/backsim/internal/types"
	"github.com/marketbench/backsim/pkg/errors"
)

// DefaultCacheMaxEntries bounds the manager's result cache unless overridden.
const DefaultCacheMaxEntries = 256

// Manager aggregates registered data sources behind one facade with result
// caching. Requests are routed to the first registered source whose
// capability descriptor covers the requested data kind.
type Manager struct {
	log     *logger.Logger
	sources map[string]DataSource
	caps    map[string]Capabilities
	// byKind keeps registration order per data kind so routing is deterministic.
	byKind map[DataKind][]string
	cache  *Cache
}

// NewManager creates a manager with the given cache bound and eviction policy.
func NewManager(log *logger.Logger, cacheMaxEntries int, policy EvictionPolicy) *Manager {
	return &Manager{
		log:     log,
		sources: make(map[string]DataSource),
		caps:    make(map[string]Capabilities),
		byKind:  make(map[DataKind][]string),
		cache:   NewCache(cacheMaxEntries, policy),
	}
}

// NewDefaultManager creates a manager with the default FIFO-bounded cache.
func NewDefaultManager(log *logger.Logger) *Manager {
	return NewManager(log, DefaultCacheMaxEntries, NewFIFOPolicy())
}

// RegisterDataSource adds a source under its declared capabilities. It fails
// if another source is already registered under the same name.
func (m *Manager) RegisterDataSource(source DataSource, caps Capabilities) error {
	name := source.Name()
	if _, exists := m.sources[name]; exists {
		return errors.Newf(errors.ErrCodeSourceAlreadyExists, "data source already registered: %s", name)
	}

	m.sources[name] = source
	m.caps[name] = caps

	for _, kind := range []DataKind{DataKindBars, DataKindTicks, DataKindOrderBooks} {
		if caps.Supports(kind) {
			m.byKind[kind] = append(m.byKind[kind], name)
		}
	}

	m.log.Debug("Data source registered",
		zap.String("name", name),
		zap.Bool("bars", caps.Bars),
		zap.Bool("ticks", caps.Ticks),
		zap.Bool("order_books", caps.OrderBooks),
	)

	return nil
}

// RemoveDataSource removes a registered source by name.
func (m *Manager) RemoveDataSource(name string) error {
	if _, exists := m.sources[name]; !exists {
		return errors.Newf(errors.ErrCodeSourceNotFound, "data source not registered: %s", name)
	}

	delete(m.sources, name)
	delete(m.caps, name)

	for kind, names := range m.byKind {
		for i, n := range names {
			if n == name {
				m.byKind[kind] = append(names[:i], names[i+1:]...)

				break
			}
		}
	}

	return nil
}

// selectSource returns the first registered source supporting the kind.
func (m *Manager) selectSource(kind DataKind) (DataSource, error) {
	names := m.byKind[kind]
	if len(names) == 0 {
		return nil, errors.Newf(errors.ErrCodeDataUnavailable, "no registered data source supports %s", kind)
	}

	return m.sources[names[0]], nil
}

// GetBars returns bars for the symbol and interval within [start, end],
// serving repeated identical requests from the cache.
func (m *Manager) GetBars(symbol string, interval types.Interval, start time.Time, end time.Time) ([]types.Bar, error) {
	key := fmt.Sprintf("%s|%s|%s|%d|%d", DataKindBars, symbol, interval, start.UnixNano(), end.UnixNano())
	if cached, ok := m.cache.Get(key); ok {
		return cached.([]types.Bar), nil
	}

	source, err := m.selectSource(DataKindBars)
	if err != nil {
		return nil, err
	}

	bars, err := source.GetBars(symbol, interval, start, end)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeSourceFailed, err, "source %s failed to load bars for %s", source.Name(), symbol)
	}

	m.cache.Set(key, bars)

	return bars, nil
}

// GetTicks returns ticks for the symbol within [start, end].
func (m *Manager) GetTicks(symbol string, start time.Time, end time.Time) ([]types.Tick, error) {
	key := fmt.Sprintf("%s|%s|%d|%d", DataKindTicks, symbol, start.UnixNano(), end.UnixNano())
	if cached, ok := m.cache.Get(key); ok {
		return cached.([]types.Tick), nil
	}

	source, err := m.selectSource(DataKindTicks)
	if err != nil {
		return nil, err
	}

	ticks, err := source.GetTicks(symbol, start, end)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeSourceFailed, err, "source %s failed to load ticks for %s", source.Name(), symbol)
	}

	m.cache.Set(key, ticks)

	return ticks, nil
}

// GetOrderBooks returns order book snapshots for the symbol within [start, end].
func (m *Manager) GetOrderBooks(symbol string, start time.Time, end time.Time) ([]types.OrderBook, error) {
	key := fmt.Sprintf("%s|%s|%d|%d", DataKindOrderBooks, symbol, start.UnixNano(), end.UnixNano())
	if cached, ok := m.cache.Get(key); ok {
		return cached.([]types.OrderBook), nil
	}

	source, err := m.selectSource(DataKindOrderBooks)
	if err != nil {
		return nil, err
	}

	books, err := source.GetOrderBooks(symbol, start, end)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeSourceFailed, err, "source %s failed to load order books for %s", source.Name(), symbol)
	}

	m.cache.Set(key, books)

	return books, nil
}

// GetAvailableSymbols returns the deduplicated union of every source's
// symbols. A failing source is logged and skipped so one bad source does not
// block the others.
func (m *Manager) GetAvailableSymbols() []string {
	seen := make(map[string]struct{})

	for name, source := range m.sources {
		symbols, err := source.GetAvailableSymbols()
		if err != nil {
			m.log.Warn("Data source failed to list symbols",
				zap.String("source", name),
				zap.Error(err),
			)

			continue
		}

		for _, symbol := range symbols {
			seen[symbol] = struct{}{}
		}
	}

	union := make([]string, 0, len(seen))
	for symbol := range seen {
		union = append(union, symbol)
	}

	sort.Strings(union)

	return union
}

// GetTimeRange returns the widest [min(start), max(end)] over every source
// that knows the symbol.
func (m *Manager) GetTimeRange(symbol string) (time.Time, time.Time, error) {
	var (
		earliest time.Time
		latest   time.Time
		found    bool
	)

	for name, source := range m.sources {
		start, end, err := source.GetTimeRange(symbol)
		if err != nil {
			m.log.Warn("Data source failed to report time range",
				zap.String("source", name),
				zap.String("symbol", symbol),
				zap.Error(err),
			)

			continue
		}

		if !found || start.Before(earliest) {
			earliest = start
		}

		if !found || end.After(latest) {
			latest = end
		}

		found = true
	}

	if !found {
		return time.Time{}, time.Time{}, errors.Newf(errors.ErrCodeDataNotFound, "no data source knows symbol %s", symbol)
	}

	return earliest, latest, nil
}

// ClearCache drops every cached query result.
func (m *Manager) ClearCache() {
	m.cache.Clear()
}
