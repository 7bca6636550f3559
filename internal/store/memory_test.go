package store

import (
	"context"
	"testing"
	"time"

	"github.com/deltaflow/deltaflow/internal/timeseries"
)

var baseTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestMemory_FetchLatest_Missing(t *testing.T) {
	m := NewMemory()
	_, ok, err := m.FetchLatest(context.Background(), "dev/temp")
	if err != nil {
		t.Fatalf("FetchLatest error = %v", err)
	}
	if ok {
		t.Fatal("FetchLatest on empty store: expected ok=false")
	}
}

func TestMemory_FetchLatest_NewestWins(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	// Appended out of order; the newest timestamp must win regardless.
	offsets := []struct {
		offset time.Duration
		value  float64
	}{
		{2 * time.Minute, 7.0},
		{0, 1.0},
		{5 * time.Minute, 9.0},
		{3 * time.Minute, 4.0},
	}
	for _, o := range offsets {
		s := timeseries.Sample{Time: baseTime.Add(o.offset), Value: o.value}
		if err := m.Append(ctx, "dev/temp", s, ""); err != nil {
			t.Fatalf("Append error = %v", err)
		}
	}

	got, ok, err := m.FetchLatest(ctx, "dev/temp")
	if err != nil {
		t.Fatalf("FetchLatest error = %v", err)
	}
	if !ok {
		t.Fatal("FetchLatest: expected ok=true")
	}
	if got.Value != 9.0 {
		t.Errorf("FetchLatest value = %v, want 9.0 (newest)", got.Value)
	}
}

func TestMemory_StreamsAreIndependent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	a := timeseries.Sample{Time: baseTime, Value: 1.0}
	b := timeseries.Sample{Time: baseTime, Value: 2.0}
	if err := m.Append(ctx, "dev/temp", a, "C"); err != nil {
		t.Fatalf("Append error = %v", err)
	}
	if err := m.Append(ctx, "dev/humidity", b, "%"); err != nil {
		t.Fatalf("Append error = %v", err)
	}

	got, ok, _ := m.FetchLatest(ctx, "dev/temp")
	if !ok || got.Value != 1.0 {
		t.Errorf("dev/temp latest = %v (ok=%v), want 1.0", got.Value, ok)
	}
	got, ok, _ = m.FetchLatest(ctx, "dev/humidity")
	if !ok || got.Value != 2.0 {
		t.Errorf("dev/humidity latest = %v (ok=%v), want 2.0", got.Value, ok)
	}
	if m.Unit("dev/temp") != "C" || m.Unit("dev/humidity") != "%" {
		t.Errorf("units = %q/%q, want C/%%", m.Unit("dev/temp"), m.Unit("dev/humidity"))
	}
}

func TestMemory_CountAndSamples(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		s := timeseries.Sample{Time: baseTime.Add(time.Duration(i) * time.Second), Value: float64(i)}
		if err := m.Append(ctx, "dev/temp", s, ""); err != nil {
			t.Fatalf("Append error = %v", err)
		}
	}
	if got := m.Count("dev/temp"); got != 3 {
		t.Errorf("Count = %d, want 3", got)
	}
	samples := m.Samples("dev/temp")
	if len(samples) != 3 {
		t.Fatalf("Samples len = %d, want 3", len(samples))
	}
	// Mutating the copy must not affect the store.
	samples[0].Value = 99
	if got := m.Samples("dev/temp")[0].Value; got != 0 {
		t.Errorf("store mutated through Samples copy: got %v, want 0", got)
	}
}
