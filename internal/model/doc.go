// Package model defines shared data types used across the LotSync engine.
//
// Conventions:
//   - Timestamps: time.Time, stamped locally on arrival (wall-clock arrival
//     order is authoritative for last-writer-wins on a spot)
//   - IDs: string for spots/lots/channels, uuid.UUID for alerts and messages
package model
