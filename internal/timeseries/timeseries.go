package timeseries

import (
	"context"
	"fmt"
	"time"
)

// Sample is one timestamped measurement value read from or written to a stream.
type Sample struct {
	Time  time.Time
	Value float64
}

// Age returns how old the sample is relative to now.
func (s Sample) Age(now time.Time) time.Duration {
	return now.Sub(s.Time)
}

// Selector identifies a measurement source: a device (or input) and one of
// its measurement channels. It is resolved to a concrete stream id once, at
// configuration time, and never re-resolved per tick.
type Selector struct {
	DeviceID      string `yaml:"device_id"`
	MeasurementID string `yaml:"measurement_id"`
}

// Stream returns the canonical stream id for the selector.
func (s Selector) Stream() string {
	return s.DeviceID + "/" + s.MeasurementID
}

// Validate reports whether both selector parts are set.
func (s Selector) Validate() error {
	if s.DeviceID == "" {
		return fmt.Errorf("selector: device_id is required")
	}
	if s.MeasurementID == "" {
		return fmt.Errorf("selector: measurement_id is required")
	}
	return nil
}

// Store is the read/write contract against the time-series backend.
//
// FetchLatest returns the most recent sample of the stream, with ok=false
// (and a nil error) when the stream holds no samples. Staleness is not the
// store's concern; callers bound the age themselves.
//
// Append writes one sample to the stream, tagged with its unit. Appends are
// fire-and-forget from the caller's point of view: a failed append is
// reported but never retried by this layer.
type Store interface {
	FetchLatest(ctx context.Context, stream string) (Sample, bool, error)
	Append(ctx context.Context, stream string, sample Sample, unit string) error
}
