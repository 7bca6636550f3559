// Package schedule implements drift-correcting periodic scheduling.
//
// Ticker keeps one "next fire" deadline per function instance. Tick(now)
// fires when the deadline has been reached and then advances the deadline by
// whole periods until it passes now. This preserves the schedule's phase
// across arbitrarily long stalls without firing extra catch-up events: after
// a 10-minute suspend of a 60s schedule, the next Tick fires exactly once.
//
// The deadline is anchored at creation time and is not persisted; a process
// restart resets the phase of the schedule.
package schedule
