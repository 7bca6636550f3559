package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/deltaflow/deltaflow/internal/config"
	"github.com/deltaflow/deltaflow/internal/timeseries"
)

const clickhouseSchema = `
CREATE TABLE IF NOT EXISTS samples (
    timestamp DateTime64(3),
    stream    String,
    value     Float64,
    unit      String
) ENGINE = MergeTree()
ORDER BY (stream, timestamp)
TTL toDateTime(timestamp) + INTERVAL 90 DAY
`

// ClickHouse is the columnar time-series backend.
type ClickHouse struct {
	conn driver.Conn
}

// NewClickHouse connects to ClickHouse and ensures the samples table exists.
func NewClickHouse(cfg config.ClickHouseConfig) (*ClickHouse, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password(),
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse: open: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("clickhouse: ping: %w", err)
	}

	db := &ClickHouse{conn: conn}
	if err := db.initSchema(context.Background()); err != nil {
		return nil, err
	}
	return db, nil
}

func (c *ClickHouse) initSchema(ctx context.Context) error {
	if err := c.conn.Exec(ctx, clickhouseSchema); err != nil {
		return fmt.Errorf("clickhouse: create samples table: %w", err)
	}
	return nil
}

// FetchLatest returns the newest sample of the stream.
func (c *ClickHouse) FetchLatest(ctx context.Context, stream string) (timeseries.Sample, bool, error) {
	query := `
		SELECT timestamp, value
		FROM samples
		WHERE stream = ?
		ORDER BY timestamp DESC
		LIMIT 1
	`

	var (
		ts    time.Time
		value float64
	)
	row := c.conn.QueryRow(ctx, query, stream)
	if err := row.Scan(&ts, &value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return timeseries.Sample{}, false, nil
		}
		return timeseries.Sample{}, false, fmt.Errorf("clickhouse: fetch latest: %w", err)
	}
	return timeseries.Sample{Time: ts, Value: value}, true, nil
}

// Append inserts one sample.
func (c *ClickHouse) Append(ctx context.Context, stream string, sample timeseries.Sample, unit string) error {
	query := `INSERT INTO samples (timestamp, stream, value, unit) VALUES (?, ?, ?, ?)`
	if err := c.conn.Exec(ctx, query, sample.Time, stream, sample.Value, unit); err != nil {
		return fmt.Errorf("clickhouse: append: %w", err)
	}
	return nil
}

// Close closes the connection.
func (c *ClickHouse) Close() error {
	return c.conn.Close()
}
