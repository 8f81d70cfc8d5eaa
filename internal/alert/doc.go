// Package alert keeps the user-facing alert list.
//
// Alerts are held newest-first and capped; acknowledging is idempotent
// so repeated acknowledgements of the same alert never corrupt the
// unread count.
package alert
