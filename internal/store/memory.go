package store

import (
	"context"
	"sync"

	"github.com/deltaflow/deltaflow/internal/timeseries"
)

// Memory is a thread-safe in-memory stream store. It backs the "memory"
// config backend for local development and serves as the in-process store
// double in tests. Samples are held per stream in append order; FetchLatest
// scans for the newest timestamp so out-of-order appends are handled.
type Memory struct {
	mu      sync.RWMutex
	streams map[string][]timeseries.Sample
	units   map[string]string
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		streams: make(map[string][]timeseries.Sample),
		units:   make(map[string]string),
	}
}

// FetchLatest returns the sample with the newest timestamp in the stream.
func (m *Memory) FetchLatest(_ context.Context, stream string) (timeseries.Sample, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	samples := m.streams[stream]
	if len(samples) == 0 {
		return timeseries.Sample{}, false, nil
	}

	latest := samples[0]
	for _, s := range samples[1:] {
		if s.Time.After(latest.Time) {
			latest = s
		}
	}
	return latest, true, nil
}

// Append adds one sample to the stream.
func (m *Memory) Append(_ context.Context, stream string, sample timeseries.Sample, unit string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.streams[stream] = append(m.streams[stream], sample)
	if unit != "" {
		m.units[stream] = unit
	}
	return nil
}

// Count returns the number of samples held for the stream.
func (m *Memory) Count(stream string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.streams[stream])
}

// Samples returns a copy of the stream's samples in append order.
func (m *Memory) Samples(stream string) []timeseries.Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]timeseries.Sample, len(m.streams[stream]))
	copy(out, m.streams[stream])
	return out
}

// Unit returns the unit most recently recorded for the stream.
func (m *Memory) Unit(stream string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.units[stream]
}
