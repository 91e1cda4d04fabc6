// Package csv provides a file-backed bar source for local CSV datasets.
package csv

import (
	"encoding/csv"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/marketbench/backsim/internal/datasource"
	"github.com/marketbench/backsim/internal/logger"
	"github.com/marketbench/backsim/internal/types"
	"github.com/marketbench/backsim/pkg/errors"
)

// BarSource serves bars from a single CSV file loaded eagerly into memory.
// The file must carry a header row with at least the columns symbol,
// timestamp, open, high, low, close, volume; timestamps are RFC 3339. Every
// row is assumed to be at the source's configured interval.
type BarSource struct {
	name     string
	path     string
	interval types.Interval
	log      *logger.Logger

	bars map[string][]types.Bar
}

// NewBarSource loads the file at path. Rows are grouped by symbol and sorted
// by timestamp once at construction.
func NewBarSource(name string, path string, interval types.Interval, log *logger.Logger) (*BarSource, error) {
	if _, err := interval.Duration(); err != nil {
		return nil, err
	}

	source := &BarSource{
		name:     name,
		path:     path,
		interval: interval,
		log:      log,
		bars:     make(map[string][]types.Bar),
	}

	if err := source.load(); err != nil {
		return nil, err
	}

	return source, nil
}

func (s *BarSource) load() error {
	file, err := os.Open(s.path)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeSourceFailed, err, "failed to open %s", s.path)
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return errors.Wrapf(errors.ErrCodeSourceFailed, err, "failed to read header of %s", s.path)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[name] = i
	}

	for _, required := range []string{"symbol", "timestamp", "open", "high", "low", "close", "volume"} {
		if _, ok := columns[required]; !ok {
			return errors.Newf(errors.ErrCodeSourceFailed, "%s is missing column %s", s.path, required)
		}
	}

	row := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}

		if err != nil {
			return errors.Wrapf(errors.ErrCodeSourceFailed, err, "failed to read row %d of %s", row, s.path)
		}

		row++

		bar, err := parseBar(record, columns)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeSourceFailed, err, "bad row %d in %s", row, s.path)
		}

		s.bars[bar.Symbol] = append(s.bars[bar.Symbol], bar)
	}

	for symbol := range s.bars {
		bars := s.bars[symbol]
		sort.Slice(bars, func(i, j int) bool {
			return bars[i].Timestamp.Before(bars[j].Timestamp)
		})
	}

	s.log.Debug("CSV bars loaded",
		zap.String("path", s.path),
		zap.Int("symbols", len(s.bars)),
	)

	return nil
}

func parseBar(record []string, columns map[string]int) (types.Bar, error) {
	timestamp, err := time.Parse(time.RFC3339, record[columns["timestamp"]])
	if err != nil {
		return types.Bar{}, err
	}

	fields := make(map[string]float64, 5)

	for _, name := range []string{"open", "high", "low", "close", "volume"} {
		value, err := strconv.ParseFloat(record[columns[name]], 64)
		if err != nil {
			return types.Bar{}, err
		}

		fields[name] = value
	}

	return types.Bar{
		Symbol:    record[columns["symbol"]],
		Timestamp: timestamp,
		Open:      fields["open"],
		High:      fields["high"],
		Low:       fields["low"],
		Close:     fields["close"],
		Volume:    fields["volume"],
	}, nil
}

// Capabilities returns the source's registration descriptor.
func (s *BarSource) Capabilities() datasource.Capabilities {
	return datasource.Capabilities{Bars: true}
}

// Name implements datasource.DataSource.
func (s *BarSource) Name() string {
	return s.name
}

// Description implements datasource.DataSource.
func (s *BarSource) Description() string {
	return "CSV bar file: " + s.path
}

// GetBars implements datasource.DataSource.
func (s *BarSource) GetBars(symbol string, interval types.Interval, start time.Time, end time.Time) ([]types.Bar, error) {
	if interval != s.interval {
		return nil, errors.Newf(errors.ErrCodeDataNotFound, "source %s has no %s bars", s.name, interval)
	}

	var matched []types.Bar

	for _, bar := range s.bars[symbol] {
		if bar.Timestamp.Before(start) || bar.Timestamp.After(end) {
			continue
		}

		matched = append(matched, bar)
	}

	return matched, nil
}

// GetTicks implements datasource.DataSource.
func (s *BarSource) GetTicks(string, time.Time, time.Time) ([]types.Tick, error) {
	return nil, errors.Newf(errors.ErrCodeSourceUnsupportedKind, "source %s does not serve ticks", s.name)
}

// GetOrderBooks implements datasource.DataSource.
func (s *BarSource) GetOrderBooks(string, time.Time, time.Time) ([]types.OrderBook, error) {
	return nil, errors.Newf(errors.ErrCodeSourceUnsupportedKind, "source %s does not serve order books", s.name)
}

// GetAvailableSymbols implements datasource.DataSource.
func (s *BarSource) GetAvailableSymbols() ([]string, error) {
	symbols := make([]string, 0, len(s.bars))
	for symbol := range s.bars {
		symbols = append(symbols, symbol)
	}

	sort.Strings(symbols)

	return symbols, nil
}

// GetTimeRange implements datasource.DataSource.
func (s *BarSource) GetTimeRange(symbol string) (time.Time, time.Time, error) {
	bars := s.bars[symbol]
	if len(bars) == 0 {
		return time.Time{}, time.Time{}, errors.Newf(errors.ErrCodeDataNotFound, "source %s has no data for %s", s.name, symbol)
	}

	return bars[0].Timestamp, bars[len(bars)-1].Timestamp, nil
}
