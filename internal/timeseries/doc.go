// Package timeseries defines the shared vocabulary between sample producers
// (ingest sources) and consumers (derived-metric functions): the Sample and
// Selector types and the Store read/write contract implemented by the
// backends in internal/store.
package timeseries
