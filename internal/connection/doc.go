// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns a registry of named push channels (primary updates, analytics,
//     notifications), each with an independent lifecycle
//   - Drives each channel's state machine: disconnected -> connecting ->
//     {connected | error}, with automatic retry on error
//   - Applies exponential backoff with randomized jitter between retries,
//     capped at a configured maximum delay
//   - Re-issues a channel's subscriptions after every successful connect
//   - Raises a persistent alert when a channel exhausts its retry budget
//   - Merges all channels' inbound events into one stream for the dispatcher
package connection
