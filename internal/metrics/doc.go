// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Channel connection state and reconnect counts
//   - Message ingest rates and parse errors
//   - Spot update application and drop counts
//   - Alert volume and latency probe results
package metrics
