// Package prometheus renders authstate engine counters and the validate
// latency histogram in the Prometheus text format.
//
// It writes the exposition by hand from a MetricsSnapshot instead of
// registering collectors, so scraping never touches engine locks.
//
// # What this package must NOT do
//
//   - Mutate engine state.
//   - Register with a global Prometheus registry.
package prometheus
