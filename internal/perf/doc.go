// Package perf tracks engine health: push-channel latency, message
// rate, and connection uptime.
//
// A fixed-interval loop probes any connected channel; ticks with no
// live channel are skipped. The snapshot is a single record updated in
// place.
package perf
