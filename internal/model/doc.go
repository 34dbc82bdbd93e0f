// Package model defines shared data types used across the ordersync layer.
//
// Conventions:
//   - Order IDs: int64, assigned by the backend
//   - Order states: small integer ids on the wire (1-8), OrderState in Go
//   - Timestamps: RFC 3339 strings, carried through as received
package model
