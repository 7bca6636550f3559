package function

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/deltaflow/deltaflow/internal/config"
	"github.com/deltaflow/deltaflow/internal/store"
	"github.com/deltaflow/deltaflow/internal/timeseries"
)

// failingStore fails reads and/or writes on demand; successful calls fall
// through to an in-memory store.
type failingStore struct {
	mem      *store.Memory
	fetchErr error
	writeErr error
}

func (f *failingStore) FetchLatest(ctx context.Context, stream string) (timeseries.Sample, bool, error) {
	if f.fetchErr != nil {
		return timeseries.Sample{}, false, f.fetchErr
	}
	return f.mem.FetchLatest(ctx, stream)
}

func (f *failingStore) Append(ctx context.Context, stream string, s timeseries.Sample, unit string) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	return f.mem.Append(ctx, stream, s, unit)
}

// testFunction returns the config used across the scenario tests:
// period 60s, inputs a/temp and b/temp with 360s max ages, output diff/C.
func testFunction() config.Function {
	return config.Function{
		ID:     "diff-1",
		Period: time.Minute,
		InputA: config.Input{
			Selector: timeseries.Selector{DeviceID: "a", MeasurementID: "temp"},
			MaxAge:   360 * time.Second,
		},
		InputB: config.Input{
			Selector: timeseries.Selector{DeviceID: "b", MeasurementID: "temp"},
			MaxAge:   360 * time.Second,
		},
		Output: config.Output{Measurement: "difference", Unit: "C"},
	}
}

func appendAt(t *testing.T, mem *store.Memory, stream string, offset time.Duration, value float64) {
	t.Helper()
	s := timeseries.Sample{Time: baseTime.Add(offset), Value: value}
	if err := mem.Append(context.Background(), stream, s, ""); err != nil {
		t.Fatalf("Append(%s) error = %v", stream, err)
	}
}

func TestUnit_RejectsNonPositivePeriod(t *testing.T) {
	cfg := testFunction()
	cfg.Period = 0
	if _, err := New(cfg, store.NewMemory(), baseTime); err == nil {
		t.Fatal("New with period 0: expected error, got nil")
	}
	cfg.Period = -time.Second
	if _, err := New(cfg, store.NewMemory(), baseTime); err == nil {
		t.Fatal("New with negative period: expected error, got nil")
	}
}

// A has samples at t=0 (5.0) and t=55s (8.0), B at t=10s (3.0); both bounds
// 360s. The tick at t=60s reads A=8.0 (age 5s) and B=3.0 (age 50s) and
// emits 5.0.
func TestUnit_EmitsDifferenceOfLatestSamples(t *testing.T) {
	mem := store.NewMemory()
	appendAt(t, mem, "a/temp", 0, 5.0)
	appendAt(t, mem, "a/temp", 55*time.Second, 8.0)
	appendAt(t, mem, "b/temp", 10*time.Second, 3.0)

	u, err := New(testFunction(), mem, baseTime)
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	u.Tick(context.Background(), baseTime.Add(time.Minute))

	out := mem.Samples("diff-1/difference")
	if len(out) != 1 {
		t.Fatalf("output samples = %d, want 1", len(out))
	}
	last := out[0]
	if last.Value != 5.0 {
		t.Errorf("emitted value = %v, want 5.0", last.Value)
	}
	if !last.Time.Equal(baseTime.Add(time.Minute)) {
		t.Errorf("emitted timestamp = %v, want tick time %v", last.Time, baseTime.Add(time.Minute))
	}
	if got := mem.Unit("diff-1/difference"); got != "C" {
		t.Errorf("emitted unit = %q, want %q", got, "C")
	}
}

// Same scenario with B's bound tightened to 5s: B's sample is 50s old at the
// tick, so nothing is emitted.
func TestUnit_StaleInputSuppressesEmission(t *testing.T) {
	mem := store.NewMemory()
	appendAt(t, mem, "a/temp", 55*time.Second, 8.0)
	appendAt(t, mem, "b/temp", 10*time.Second, 3.0)

	cfg := testFunction()
	cfg.InputB.MaxAge = 5 * time.Second

	u, err := New(cfg, mem, baseTime)
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	u.Tick(context.Background(), baseTime.Add(time.Minute))

	if n := mem.Count("diff-1/difference"); n != 0 {
		t.Errorf("output samples = %d, want 0 (input b stale)", n)
	}
}

func TestUnit_ReverseAbsolute(t *testing.T) {
	mem := store.NewMemory()
	appendAt(t, mem, "a/temp", 55*time.Second, 2.0)
	appendAt(t, mem, "b/temp", 55*time.Second, 9.0)

	cfg := testFunction()
	cfg.ReverseOrder = true
	cfg.Absolute = true

	u, err := New(cfg, mem, baseTime)
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	u.Tick(context.Background(), baseTime.Add(time.Minute))

	out := mem.Samples("diff-1/difference")
	if len(out) != 1 {
		t.Fatalf("output samples = %d, want 1", len(out))
	}
	if out[0].Value != 7.0 {
		t.Errorf("emitted value = %v, want 7.0 (|9.0-2.0|)", out[0].Value)
	}
}

// Across a run with N scheduled fires and fresh inputs throughout, exactly N
// values are appended, each timestamped at its fire time.
func TestUnit_NoDoubleEmit(t *testing.T) {
	mem := store.NewMemory()
	u, err := New(testFunction(), mem, baseTime)
	if err != nil {
		t.Fatalf("New error = %v", err)
	}

	ctx := context.Background()
	fires := 0
	for d := time.Duration(0); d <= 10*time.Minute; d += time.Second {
		now := baseTime.Add(d)
		// Keep both inputs fresh relative to now.
		appendAt(t, mem, "a/temp", d, 10.0)
		appendAt(t, mem, "b/temp", d, 4.0)

		before := mem.Count("diff-1/difference")
		u.Tick(ctx, now)
		if after := mem.Count("diff-1/difference"); after > before {
			if after != before+1 {
				t.Fatalf("tick at +%v appended %d values, want at most 1", d, after-before)
			}
			fires++
		}
	}

	// Anchor fire at t=0 plus one per elapsed minute.
	if fires != 11 {
		t.Errorf("emitted values over 10m = %d, want 11", fires)
	}
	for _, s := range mem.Samples("diff-1/difference") {
		if s.Value != 6.0 {
			t.Errorf("emitted value = %v, want 6.0", s.Value)
		}
	}
}

func TestUnit_StallEmitsOnce(t *testing.T) {
	mem := store.NewMemory()
	u, err := New(testFunction(), mem, baseTime)
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	ctx := context.Background()
	u.Tick(ctx, baseTime) // anchor fire; inputs absent, nothing emitted

	// Ten periods pass with no ticks (stall), then fresh data and one tick.
	stallEnd := 10 * time.Minute
	appendAt(t, mem, "a/temp", stallEnd, 20.0)
	appendAt(t, mem, "b/temp", stallEnd, 15.0)
	u.Tick(ctx, baseTime.Add(stallEnd))
	u.Tick(ctx, baseTime.Add(stallEnd+time.Second))

	if n := mem.Count("diff-1/difference"); n != 1 {
		t.Errorf("output samples after stall = %d, want 1 (no catch-up burst)", n)
	}
}

func TestUnit_ReadFailureAbandonsCycle(t *testing.T) {
	fs := &failingStore{mem: store.NewMemory(), fetchErr: errors.New("storage down")}
	u, err := New(testFunction(), fs, baseTime)
	if err != nil {
		t.Fatalf("New error = %v", err)
	}

	ctx := context.Background()
	u.Tick(ctx, baseTime.Add(time.Minute)) // must not panic or emit

	if n := fs.mem.Count("diff-1/difference"); n != 0 {
		t.Errorf("output samples after read failure = %d, want 0", n)
	}

	// Next cycle retries independently and succeeds.
	fs.fetchErr = nil
	appendAt(t, fs.mem, "a/temp", 2*time.Minute, 3.0)
	appendAt(t, fs.mem, "b/temp", 2*time.Minute, 1.0)
	u.Tick(ctx, baseTime.Add(2*time.Minute))

	if n := fs.mem.Count("diff-1/difference"); n != 1 {
		t.Errorf("output samples after recovery = %d, want 1", n)
	}
}

func TestUnit_WriteFailureDoesNotBlockSchedule(t *testing.T) {
	fs := &failingStore{mem: store.NewMemory(), writeErr: errors.New("storage down")}
	u, err := New(testFunction(), fs, baseTime)
	if err != nil {
		t.Fatalf("New error = %v", err)
	}

	ctx := context.Background()
	appendAt(t, fs.mem, "a/temp", time.Minute, 3.0)
	appendAt(t, fs.mem, "b/temp", time.Minute, 1.0)
	u.Tick(ctx, baseTime.Add(time.Minute)) // value lost, no retry, no panic

	if n := fs.mem.Count("diff-1/difference"); n != 0 {
		t.Errorf("output samples after write failure = %d, want 0 (value lost)", n)
	}

	// The schedule was not blocked: the next period emits normally.
	fs.writeErr = nil
	appendAt(t, fs.mem, "a/temp", 2*time.Minute, 3.0)
	appendAt(t, fs.mem, "b/temp", 2*time.Minute, 1.0)
	u.Tick(ctx, baseTime.Add(2*time.Minute))

	if n := fs.mem.Count("diff-1/difference"); n != 1 {
		t.Errorf("output samples after write recovery = %d, want 1", n)
	}
}

func TestUnit_IndependentInstancesShareNothing(t *testing.T) {
	mem := store.NewMemory()
	cfgA := testFunction()
	cfgB := testFunction()
	cfgB.ID = "diff-2"
	cfgB.ReverseOrder = true

	u1, err := New(cfgA, mem, baseTime)
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	u2, err := New(cfgB, mem, baseTime)
	if err != nil {
		t.Fatalf("New error = %v", err)
	}

	ctx := context.Background()
	appendAt(t, mem, "a/temp", time.Minute, 10.0)
	appendAt(t, mem, "b/temp", time.Minute, 4.0)
	u1.Tick(ctx, baseTime.Add(time.Minute))
	u2.Tick(ctx, baseTime.Add(time.Minute))

	s1 := mem.Samples("diff-1/difference")
	s2 := mem.Samples("diff-2/difference")
	if len(s1) != 1 || len(s2) != 1 {
		t.Fatalf("samples = %d/%d, want 1/1", len(s1), len(s2))
	}
	if s1[0].Value != 6.0 {
		t.Errorf("diff-1 value = %v, want 6.0", s1[0].Value)
	}
	if s2[0].Value != -6.0 {
		t.Errorf("diff-2 value = %v, want -6.0 (reversed)", s2[0].Value)
	}
}
