// Package store provides the time-series backends implementing
// timeseries.Store: ClickHouse (columnar, the production default), MySQL
// (relational), and an in-memory map used for development and tests.
//
// All backends share one logical schema — (timestamp, stream, value, unit)
// rows, latest-row reads per stream — created at startup if missing.
// Open(cfg) dispatches on the configured backend and retries the initial
// dial so the process survives a store that is still coming up.
package store
