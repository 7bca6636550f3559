package store

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go"

	"github.com/deltaflow/deltaflow/internal/config"
	"github.com/deltaflow/deltaflow/internal/timeseries"
)

const (
	dialAttempts = 5
	dialDelay    = 2 * time.Second
)

// Open connects to the configured backend. The dial is retried a few times
// with a fixed delay so a store that is still booting (compose startup,
// container restart) does not kill the process.
func Open(cfg config.StoreConfig) (timeseries.Store, error) {
	switch cfg.Backend {
	case "memory":
		slog.Info("store: using in-memory backend — samples are not persisted")
		return NewMemory(), nil

	case "clickhouse":
		var db *ClickHouse
		err := retry.Do(
			func() error {
				var err error
				db, err = NewClickHouse(cfg.ClickHouse)
				return err
			},
			retry.Attempts(dialAttempts),
			retry.Delay(dialDelay),
			retry.OnRetry(func(n uint, err error) {
				slog.Warn("store: clickhouse dial failed, retrying",
					"attempt", n+1, "addr", cfg.ClickHouse.Addr, "err", err)
			}),
		)
		if err != nil {
			return nil, err
		}
		slog.Info("store: connected to clickhouse", "addr", cfg.ClickHouse.Addr)
		return db, nil

	case "mysql":
		var db *MySQL
		err := retry.Do(
			func() error {
				var err error
				db, err = NewMySQL(cfg.MySQL)
				return err
			},
			retry.Attempts(dialAttempts),
			retry.Delay(dialDelay),
			retry.OnRetry(func(n uint, err error) {
				slog.Warn("store: mysql dial failed, retrying", "attempt", n+1, "err", err)
			}),
		)
		if err != nil {
			return nil, err
		}
		slog.Info("store: connected to mysql")
		return db, nil

	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.Backend)
	}
}
