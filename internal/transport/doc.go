// Package transport implements the push-update wire client.
//
// A Client wraps a single WebSocket connection carrying named events in a
// {type, data} JSON envelope. It exposes:
//   - Emit for outbound named events
//   - a catch-all inbound stream (every frame, known type or not)
//   - heartbeat-based stale connection detection
//   - an on-demand latency probe using ping/pong control frames
//
// Reconnection is orchestrated by the connection manager, not here.
package transport
