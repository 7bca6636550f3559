// Package ingest feeds the time-series store with samples from external
// producers so the difference functions have streams to read.
//
// Three source types are supported:
//   - mqtt: subscribes <topic_prefix>/+/+ on a broker; the last two topic
//     segments name the device and measurement, the payload is a bare float
//     or {"value": .., "unit": ..}
//   - amqp: binds a queue to topic keys on an exchange and consumes JSON
//     bodies {"device", "measurement", "value", "unit"}
//   - prometheus: scrapes a text-exposition endpoint on an interval and maps
//     configured metric names to measurements of one device id
//
// Sources assign timestamps server-side on receipt (mqtt/amqp) or at scrape
// time (prometheus). Each sample lands in the store via a single Append;
// a failed append is logged and dropped, matching the store's no-retry
// write contract.
package ingest
