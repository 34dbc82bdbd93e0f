// Package api provides the client for the backend REST collaborator.
//
// The REST layer is the write path of record: order state changes commit
// through UpdateOrderState, and the push layer merely reflects the resulting
// change back to every observer. ListOrders seeds the dashboards once at
// view mount and on every reseed tick.
package api
