// Package mux implements the Subscription Multiplexer component.
//
// The Subscription Multiplexer:
//   - Lets many listeners share one transport-level subscription per topic
//   - Reference-counts listeners and releases the topic on the last cancel
//   - Decodes each inbound snapshot once and fans it out in arrival order
//   - Isolates listener panics so one bad view cannot starve the rest
package mux
