// Package engine assembles the sync engine: REST snapshot load,
// push channels, dispatch, state reconciliation, alerts, and
// performance monitoring behind one handle.
//
// A single pump goroutine moves inbound events from the connection
// manager into the dispatcher, so state mutations apply in arrival
// order.
package engine
