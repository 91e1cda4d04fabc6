// Package duckdb provides a DuckDB-backed bar source. It queries a bars table
// or a view created over Parquet/CSV files, keeping the dataset out of process
// memory.
package duckdb

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/marketbench/backsim/internal/datasource"
	"github.com/marketbench/backsim/internal/logger"
	"github.com/marketbench/backsim/internal/types"
	"github.com/marketbench/backsim/pkg/errors"
)

// BarSource serves bars from a DuckDB database. The bars table carries the
// columns symbol, interval, timestamp, open, high, low, close, volume.
type BarSource struct {
	name string
	db   *sql.DB
	log  *logger.Logger
	sq   squirrel.StatementBuilderType
}

// NewBarSource opens the database at path. Use ":memory:" for an in-memory
// database populated through Attach.
func NewBarSource(name string, path string, log *logger.Logger) (*BarSource, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeSourceFailed, err, "failed to open duckdb at %s", path)
	}

	if err := db.Ping(); err != nil {
		db.Close()

		return nil, errors.Wrapf(errors.ErrCodeSourceFailed, err, "failed to connect to duckdb at %s", path)
	}

	return &BarSource{
		name: name,
		db:   db,
		log:  log,
		sq:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

// Attach creates the bars view over an external Parquet or CSV file. DuckDB
// infers the reader from the extension.
func (s *BarSource) Attach(path string) error {
	if _, err := s.db.Exec(`DROP VIEW IF EXISTS bars`); err != nil {
		return errors.Wrap(errors.ErrCodeSourceFailed, "failed to drop bars view", err)
	}

	query := fmt.Sprintf(`CREATE VIEW bars AS SELECT * FROM '%s'`, path)
	if _, err := s.db.Exec(query); err != nil {
		return errors.Wrapf(errors.ErrCodeSourceFailed, err, "failed to create bars view over %s", path)
	}

	s.log.Debug("Bars view attached", zap.String("path", path))

	return nil
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
	return "DuckDB bar store"
}

// GetBars implements datasource.DataSource.
func (s *BarSource) GetBars(symbol string, interval types.Interval, start time.Time, end time.Time) ([]types.Bar, error) {
	rows, err := s.sq.
		Select("symbol", "timestamp", "open", "high", "low", "close", "volume").
		From("bars").
		Where(squirrel.Eq{"symbol": symbol, "interval": string(interval)}).
		Where(squirrel.GtOrEq{"timestamp": start}).
		Where(squirrel.LtOrEq{"timestamp": end}).
		OrderBy("timestamp ASC").
		RunWith(s.db).
		Query()
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeSourceFailed, err, "failed to query bars for %s", symbol)
	}
	defer rows.Close()

	var bars []types.Bar

	for rows.Next() {
		var bar types.Bar

		err := rows.Scan(
			&bar.Symbol,
			&bar.Timestamp,
			&bar.Open,
			&bar.High,
			&bar.Low,
			&bar.Close,
			&bar.Volume,
		)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeSourceFailed, "failed to scan bar", err)
		}

		bars = append(bars, bar)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeSourceFailed, "error iterating bars", err)
	}

	return bars, nil
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
	rows, err := s.sq.
		Select("DISTINCT symbol").
		From("bars").
		OrderBy("symbol ASC").
		RunWith(s.db).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSourceFailed, "failed to query symbols", err)
	}
	defer rows.Close()

	var symbols []string

	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, errors.Wrap(errors.ErrCodeSourceFailed, "failed to scan symbol", err)
		}

		symbols = append(symbols, symbol)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeSourceFailed, "error iterating symbols", err)
	}

	return symbols, nil
}

// GetTimeRange implements datasource.DataSource.
func (s *BarSource) GetTimeRange(symbol string) (time.Time, time.Time, error) {
	var (
		earliest sql.NullTime
		latest   sql.NullTime
	)

	err := s.sq.
		Select("MIN(timestamp)", "MAX(timestamp)").
		From("bars").
		Where(squirrel.Eq{"symbol": symbol}).
		RunWith(s.db).
		QueryRow().
		Scan(&earliest, &latest)
	if err != nil {
		return time.Time{}, time.Time{}, errors.Wrapf(errors.ErrCodeSourceFailed, err, "failed to query time range for %s", symbol)
	}

	if !earliest.Valid || !latest.Valid {
		return time.Time{}, time.Time{}, errors.Newf(errors.ErrCodeDataNotFound, "source %s has no data for %s", s.name, symbol)
	}

	return earliest.Time, latest.Time, nil
}

// Close closes the underlying database.
func (s *BarSource) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}
