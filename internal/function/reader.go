package function

import (
	"context"
	"fmt"
	"time"

	"github.com/deltaflow/deltaflow/internal/timeseries"
)

// Reader fetches the most recent sample of a stream subject to a staleness
// bound. It is a thin wrapper over the store's read path: no interpolation,
// no resampling, no unit conversion.
type Reader struct {
	store timeseries.Store
}

// NewReader creates a Reader over the given store.
func NewReader(store timeseries.Store) *Reader {
	return &Reader{store: store}
}

// Read returns the latest sample of stream, or nil when the stream has no
// samples or its latest sample is older than maxAge relative to now. The
// bound is inclusive: a sample aged exactly maxAge is still accepted.
//
// An error means the read itself failed (storage, transport); the caller
// abandons the whole cycle rather than treating the input as absent.
func (r *Reader) Read(ctx context.Context, stream string, maxAge time.Duration, now time.Time) (*timeseries.Sample, error) {
	s, ok, err := r.store.FetchLatest(ctx, stream)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", stream, err)
	}
	if !ok {
		return nil, nil
	}
	if s.Age(now) > maxAge {
		return nil, nil
	}
	return &s, nil
}
