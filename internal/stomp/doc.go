// Package stomp implements the text framing of the broker protocol:
// command line, colon-separated headers, blank line, body, NUL terminator.
// It covers only the frames this layer exchanges (CONNECT/CONNECTED,
// SUBSCRIBE/UNSUBSCRIBE, SEND, MESSAGE, ERROR, DISCONNECT) plus the
// newline heartbeat.
package stomp
