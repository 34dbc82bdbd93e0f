// Package poller implements the Reseeder component.
//
// The Reseeder:
//   - Periodically fetches the full order list from the REST collaborator
//   - Replaces every registered view's collection with the fresh listing
//   - Reseeds immediately after each reconnect (Kick), healing any events
//     missed while the push connection was down
package poller
