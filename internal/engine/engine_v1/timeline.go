package engine

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/marketbench/backsim/internal/logger"
	"github.com/marketbench/backsim/internal/types"
	"github.com/marketbench/backsim/pkg/errors"
)

// LogRecord is a strategy log entry stamped with simulated time.
type LogRecord struct {
	Timestamp time.Time
	Level     types.LogLevel
	Message   string
	Fields    map[string]string
}

// NotificationRecord is a strategy notification stamped with simulated time.
type NotificationRecord struct {
	Timestamp time.Time
	Level     types.NotificationLevel
	Title     string
	Message   string
}

// Timeline records strategy logs and notifications against the simulated
// clock in an in-memory DuckDB database, so a run's commentary can be queried
// and exported after the fact.
type Timeline struct {
	db  *sql.DB
	log *logger.Logger
	sq  squirrel.StatementBuilderType
}

// NewTimeline opens an in-memory store and creates its tables.
func NewTimeline(log *logger.Logger) (*Timeline, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeTimelineFailed, "failed to open timeline database", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()

		return nil, errors.Wrap(errors.ErrCodeTimelineFailed, "failed to connect to timeline database", err)
	}

	timeline := &Timeline{
		db:  db,
		log: log,
		sq:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}

	if err := timeline.initialize(); err != nil {
		db.Close()

		return nil, err
	}

	return timeline, nil
}

func (t *Timeline) initialize() error {
	statements := []string{
		`CREATE SEQUENCE IF NOT EXISTS log_id_seq`,
		`CREATE SEQUENCE IF NOT EXISTS notification_id_seq`,
		`CREATE TABLE IF NOT EXISTS logs (
			id INTEGER PRIMARY KEY,
			timestamp TIMESTAMP,
			level TEXT,
			message TEXT,
			fields TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id INTEGER PRIMARY KEY,
			timestamp TIMESTAMP,
			level TEXT,
			title TEXT,
			message TEXT
		)`,
	}

	for _, statement := range statements {
		if _, err := t.db.Exec(statement); err != nil {
			return errors.Wrap(errors.ErrCodeTimelineFailed, "failed to initialize timeline tables", err)
		}
	}

	return nil
}

// AppendLog records a log entry.
func (t *Timeline) AppendLog(record LogRecord) error {
	var nextID int
	if err := t.db.QueryRow("SELECT nextval('log_id_seq')").Scan(&nextID); err != nil {
		return errors.Wrap(errors.ErrCodeTimelineFailed, "failed to get next log id", err)
	}

	var fieldsJSON string

	if len(record.Fields) > 0 {
		data, err := json.Marshal(record.Fields)
		if err != nil {
			return errors.Wrap(errors.ErrCodeTimelineFailed, "failed to marshal log fields", err)
		}

		fieldsJSON = string(data)
	}

	_, err := t.sq.
		Insert("logs").
		Columns("id", "timestamp", "level", "message", "fields").
		Values(nextID, record.Timestamp, string(record.Level), record.Message, fieldsJSON).
		RunWith(t.db).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeTimelineFailed, "failed to insert log entry", err)
	}

	return nil
}

// AppendNotification records a notification.
func (t *Timeline) AppendNotification(record NotificationRecord) error {
	var nextID int
	if err := t.db.QueryRow("SELECT nextval('notification_id_seq')").Scan(&nextID); err != nil {
		return errors.Wrap(errors.ErrCodeTimelineFailed, "failed to get next notification id", err)
	}

	_, err := t.sq.
		Insert("notifications").
		Columns("id", "timestamp", "level", "title", "message").
		Values(nextID, record.Timestamp, string(record.Level), record.Title, record.Message).
		RunWith(t.db).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeTimelineFailed, "failed to insert notification", err)
	}

	return nil
}

// Logs returns every recorded log entry in insertion order.
func (t *Timeline) Logs() ([]LogRecord, error) {
	rows, err := t.sq.
		Select("timestamp", "level", "message", "fields").
		From("logs").
		OrderBy("id ASC").
		RunWith(t.db).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeTimelineFailed, "failed to query logs", err)
	}
	defer rows.Close()

	var records []LogRecord

	for rows.Next() {
		var (
			record     LogRecord
			levelStr   string
			fieldsJSON sql.NullString
		)

		if err := rows.Scan(&record.Timestamp, &levelStr, &record.Message, &fieldsJSON); err != nil {
			return nil, errors.Wrap(errors.ErrCodeTimelineFailed, "failed to scan log entry", err)
		}

		record.Level = types.LogLevel(levelStr)

		if fieldsJSON.Valid && fieldsJSON.String != "" {
			var fields map[string]string
			if err := json.Unmarshal([]byte(fieldsJSON.String), &fields); err != nil {
				return nil, errors.Wrap(errors.ErrCodeTimelineFailed, "failed to unmarshal log fields", err)
			}

			record.Fields = fields
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeTimelineFailed, "error iterating logs", err)
	}

	return records, nil
}

// Notifications returns every recorded notification in insertion order.
func (t *Timeline) Notifications() ([]NotificationRecord, error) {
	rows, err := t.sq.
		Select("timestamp", "level", "title", "message").
		From("notifications").
		OrderBy("id ASC").
		RunWith(t.db).
		Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeTimelineFailed, "failed to query notifications", err)
	}
	defer rows.Close()

	var records []NotificationRecord

	for rows.Next() {
		var (
			record   NotificationRecord
			levelStr string
		)

		if err := rows.Scan(&record.Timestamp, &levelStr, &record.Title, &record.Message); err != nil {
			return nil, errors.Wrap(errors.ErrCodeTimelineFailed, "failed to scan notification", err)
		}

		record.Level = types.NotificationLevel(levelStr)

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeTimelineFailed, "error iterating notifications", err)
	}

	return records, nil
}

// Export writes the timeline to Parquet files under the given directory.
func (t *Timeline) Export(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeTimelineFailed, "failed to create export directory", err)
	}

	logsPath := filepath.Join(dir, "logs.parquet")
	if _, err := t.db.Exec(fmt.Sprintf(`COPY logs TO '%s' (FORMAT PARQUET)`, logsPath)); err != nil {
		return errors.Wrap(errors.ErrCodeTimelineFailed, "failed to export logs", err)
	}

	notificationsPath := filepath.Join(dir, "notifications.parquet")
	if _, err := t.db.Exec(fmt.Sprintf(`COPY notifications TO '%s' (FORMAT PARQUET)`, notificationsPath)); err != nil {
		return errors.Wrap(errors.ErrCodeTimelineFailed, "failed to export notifications", err)
	}

	t.log.Info("Timeline exported",
		zap.String("logs", logsPath),
		zap.String("notifications", notificationsPath),
	)

	return nil
}

// Cleanup drops and recreates the timeline tables.
func (t *Timeline) Cleanup() error {
	_, err := t.db.Exec(`
		DROP TABLE IF EXISTS logs;
		DROP TABLE IF EXISTS notifications;
		DROP SEQUENCE IF EXISTS log_id_seq;
		DROP SEQUENCE IF EXISTS notification_id_seq;
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeTimelineFailed, "failed to drop timeline tables", err)
	}

	return t.initialize()
}

// Close closes the underlying database.
func (t *Timeline) Close() error {
	if t == nil || t.db == nil {
		return nil
	}

	return t.db.Close()
}
