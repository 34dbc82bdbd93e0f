// Package connection implements the Transport Connection component.
//
// The Transport Connection:
//   - Owns the single physical broker connection for the whole process
//   - Performs the CONNECT/CONNECTED handshake and heartbeat exchange
//   - Reconnects automatically at a fixed delay until Disconnect
//   - Re-issues topic subscriptions after every reconnect
//   - Delivers inbound MESSAGE frames to the Subscription Multiplexer
package connection
