package ingest

import (
	"context"
	"fmt"

	"github.com/deltaflow/deltaflow/internal/config"
	"github.com/deltaflow/deltaflow/internal/timeseries"
)

// Source is a running sample producer. Run blocks until ctx is cancelled or
// the source fails unrecoverably; every sample it receives is appended to
// the store under the stream derived from its device and measurement ids.
type Source interface {
	Run(ctx context.Context) error
}

// New returns the appropriate Source for the given source configuration.
func New(src config.Source, store timeseries.Store) (Source, error) {
	switch src.Type {
	case "mqtt":
		return newMQTTSource(src, store), nil
	case "amqp":
		return newAMQPSource(src, store), nil
	case "prometheus":
		return newPromSource(src, store), nil
	default:
		return nil, fmt.Errorf("ingest: unsupported type %q", src.Type)
	}
}
