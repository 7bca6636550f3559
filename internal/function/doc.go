// Package function implements the periodic difference metric: on each fire
// of its drift-correcting schedule, a Unit samples the most recent value of
// two configured streams (each under its own staleness bound), computes the
// signed or absolute difference, and appends the result to the store under
// the function's output identity.
//
// The pipeline per cycle is Reader → Difference → Emitter. Absence of either
// input skips the cycle silently: nothing is emitted, no zero, no sentinel.
// Read failures abandon the cycle; write failures lose that cycle's value.
// Neither interrupts the schedule.
//
// The combine step performs no interpolation, resampling, unit conversion,
// or aggregation — exactly one sample per stream in, at most one value out.
package function
