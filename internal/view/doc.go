// Package view implements the View Reconciler component.
//
// Each dashboard screen owns one Reconciler. It consumes the multiplexed
// snapshot stream for its topic and maintains a private collection holding
// exactly the orders whose most-recently-seen state matches the view's
// relevant-state set: relevant snapshots insert or replace, irrelevant
// snapshots evict. ReplaceAll seeds the collection from a REST listing at
// view mount, before live events start arriving.
package view
