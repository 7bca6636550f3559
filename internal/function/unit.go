package function

import (
	"context"
	"log/slog"
	"time"

	"github.com/deltaflow/deltaflow/internal/config"
	"github.com/deltaflow/deltaflow/internal/schedule"
	"github.com/deltaflow/deltaflow/internal/timeseries"
)

// Unit is one running difference-function instance. It owns its schedule
// state and config exclusively; instances sharing a process share nothing
// and need no synchronization between them.
//
// The host drives a Unit either through Run (self-contained polling loop)
// or by calling Tick directly from its own loop.
type Unit struct {
	cfg     config.Function
	ticker  *schedule.Ticker
	reader  *Reader
	emitter *Emitter

	// Stream ids resolved from the selectors once, at construction.
	streamA string
	streamB string
}

// New builds a Unit from one function config entry. The schedule is anchored
// at now; both input selectors and the output identity are resolved here and
// never again. A non-positive period is a configuration error.
func New(cfg config.Function, store timeseries.Store, now time.Time) (*Unit, error) {
	ticker, err := schedule.New(cfg.Period, now)
	if err != nil {
		return nil, err
	}

	output := timeseries.Selector{DeviceID: cfg.ID, MeasurementID: cfg.Output.Measurement}
	return &Unit{
		cfg:     cfg,
		ticker:  ticker,
		reader:  NewReader(store),
		emitter: NewEmitter(store, output, cfg.Output.Unit),
		streamA: cfg.InputA.Selector.Stream(),
		streamB: cfg.InputB.Selector.Stream(),
	}, nil
}

// ID returns the instance id.
func (u *Unit) ID() string {
	return u.cfg.ID
}

// Tick evaluates the fire condition at now and, when due, runs one cycle:
// read A, read B, combine, emit. All collaborator failures are contained
// here — a read failure abandons the cycle, a write failure loses that
// cycle's value — so the caller's loop never dies on a bad cycle. The next
// scheduled fire retries from scratch.
func (u *Unit) Tick(ctx context.Context, now time.Time) {
	if !u.ticker.Tick(now) {
		return
	}

	a, err := u.reader.Read(ctx, u.streamA, u.cfg.InputA.MaxAge, now)
	if err != nil {
		slog.Warn("function: read failed, abandoning cycle",
			"function", u.cfg.ID, "stream", u.streamA, "err", err)
		return
	}
	b, err := u.reader.Read(ctx, u.streamB, u.cfg.InputB.MaxAge, now)
	if err != nil {
		slog.Warn("function: read failed, abandoning cycle",
			"function", u.cfg.ID, "stream", u.streamB, "err", err)
		return
	}

	if a == nil {
		slog.Debug("function: no current sample for input a",
			"function", u.cfg.ID, "stream", u.streamA, "max_age", u.cfg.InputA.MaxAge)
	}
	if b == nil {
		slog.Debug("function: no current sample for input b",
			"function", u.cfg.ID, "stream", u.streamB, "max_age", u.cfg.InputB.MaxAge)
	}

	value, ok := Difference(a, b, u.cfg.ReverseOrder, u.cfg.Absolute)
	if !ok {
		return
	}

	if err := u.emitter.Emit(ctx, value, now); err != nil {
		// The value for this cycle is lost; the schedule is not blocked.
		slog.Warn("function: emit failed, value lost",
			"function", u.cfg.ID, "stream", u.emitter.Stream(), "err", err)
		return
	}

	slog.Debug("function: emitted difference",
		"function", u.cfg.ID, "value", value, "stream", u.emitter.Stream())
}

// Run drives Tick from a polling loop waking every poll until ctx is
// cancelled. poll should be well below the function's period; the schedule
// itself guarantees at most one fire per elapsed period regardless.
func (u *Unit) Run(ctx context.Context, poll time.Duration) {
	t := time.NewTicker(poll)
	defer t.Stop()

	slog.Info("function: started",
		"function", u.cfg.ID, "period", u.cfg.Period,
		"input_a", u.streamA, "input_b", u.streamB,
		"output", u.emitter.Stream())

	for {
		select {
		case <-ctx.Done():
			slog.Info("function: stopped", "function", u.cfg.ID)
			return
		case now := <-t.C:
			u.Tick(ctx, now)
		}
	}
}
