// Package config loads and watches the deltaflow configuration file
// (config.yaml).
//
// Top-level types:
//   - Config{PollInterval, Store, Ingest, Functions} — full config tree
//   - StoreConfig — backend (clickhouse|mysql|memory) plus per-backend settings;
//     credentials are resolved from environment variables, never stored inline
//   - Source — one ingest source: id, type (mqtt|amqp|prometheus) and the
//     fields for that type
//   - Function — one derived-metric instance: id, period, input_a/input_b
//     (selector + max_age), reverse_order, absolute, output (measurement, unit)
//
// Load(path) reads the YAML file, applies defaults (1s poll interval, 360s
// max ages, 30s scrape interval, memory store), then validates required
// fields and enums. A non-positive function period is rejected here, at
// load time, so a misconfigured instance never starts.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. Running functions are immutable for
// their lifetime, so the reload is informational only.
package config
