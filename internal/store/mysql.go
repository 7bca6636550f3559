package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql" // MySQL driver

	"github.com/deltaflow/deltaflow/internal/config"
	"github.com/deltaflow/deltaflow/internal/timeseries"
)

const mysqlSchema = `
CREATE TABLE IF NOT EXISTS samples (
    id        BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
    stream    VARCHAR(255)    NOT NULL,
    timestamp DATETIME(3)     NOT NULL,
    value     DOUBLE          NOT NULL,
    unit      VARCHAR(64)     NOT NULL DEFAULT '',
    PRIMARY KEY (id),
    KEY idx_stream_ts (stream, timestamp)
)
`

// MySQL is the relational time-series backend.
type MySQL struct {
	db *sql.DB

	fetchStmt  *sql.Stmt
	appendStmt *sql.Stmt
}

// NewMySQL opens a connection using the configured DSN and ensures the
// samples table exists. Statements are prepared once and reused.
func NewMySQL(cfg config.MySQLConfig) (*MySQL, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("mysql: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("mysql: ping: %w", err)
	}

	if _, err := db.Exec(mysqlSchema); err != nil {
		return nil, fmt.Errorf("mysql: create samples table: %w", err)
	}

	fetchStmt, err := db.Prepare(
		"SELECT timestamp, value FROM samples WHERE stream = ? ORDER BY timestamp DESC LIMIT 1")
	if err != nil {
		return nil, fmt.Errorf("mysql: prepare fetch: %w", err)
	}
	appendStmt, err := db.Prepare(
		"INSERT INTO samples (stream, timestamp, value, unit) VALUES (?, ?, ?, ?)")
	if err != nil {
		return nil, fmt.Errorf("mysql: prepare append: %w", err)
	}

	return &MySQL{db: db, fetchStmt: fetchStmt, appendStmt: appendStmt}, nil
}

// FetchLatest returns the newest sample of the stream.
func (m *MySQL) FetchLatest(ctx context.Context, stream string) (timeseries.Sample, bool, error) {
	var s timeseries.Sample
	row := m.fetchStmt.QueryRowContext(ctx, stream)
	if err := row.Scan(&s.Time, &s.Value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return timeseries.Sample{}, false, nil
		}
		return timeseries.Sample{}, false, fmt.Errorf("mysql: fetch latest: %w", err)
	}
	return s, true, nil
}

// Append inserts one sample.
func (m *MySQL) Append(ctx context.Context, stream string, sample timeseries.Sample, unit string) error {
	if _, err := m.appendStmt.ExecContext(ctx, stream, sample.Time, sample.Value, unit); err != nil {
		return fmt.Errorf("mysql: append: %w", err)
	}
	return nil
}

// Close closes the prepared statements and the connection.
func (m *MySQL) Close() error {
	m.fetchStmt.Close()
	m.appendStmt.Close()
	return m.db.Close()
}
