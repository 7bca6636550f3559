package function

import (
	"context"
	"fmt"
	"time"

	"github.com/deltaflow/deltaflow/internal/timeseries"
)

// Emitter publishes derived values to the store, tagged with the function's
// output measurement and unit. One value per successful cycle, no batching,
// no retry — a failed append is reported to the caller and the value is lost.
type Emitter struct {
	store  timeseries.Store
	stream string
	unit   string
}

// NewEmitter creates an Emitter writing to the stream of the given output
// selector.
func NewEmitter(store timeseries.Store, output timeseries.Selector, unit string) *Emitter {
	return &Emitter{store: store, stream: output.Stream(), unit: unit}
}

// Emit appends one derived sample timestamped at now.
func (e *Emitter) Emit(ctx context.Context, value float64, now time.Time) error {
	sample := timeseries.Sample{Time: now, Value: value}
	if err := e.store.Append(ctx, e.stream, sample, e.unit); err != nil {
		return fmt.Errorf("emit %q: %w", e.stream, err)
	}
	return nil
}

// Stream returns the output stream id.
func (e *Emitter) Stream() string {
	return e.stream
}
