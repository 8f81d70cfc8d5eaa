// Package state maintains the working set of parking spots and lot
// aggregates.
//
// The reconciler applies spot updates in arrival order and recomputes
// each affected lot's aggregate by rescanning its member spots, so the
// four status counts always sum to the lot's member count. Consumers
// subscribe to a non-blocking change feed instead of polling.
package state
