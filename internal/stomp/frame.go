package stomp

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Frame commands used by the broker protocol.
const (
	CmdConnect     = "CONNECT"
	CmdConnected   = "CONNECTED"
	CmdSubscribe   = "SUBSCRIBE"
	CmdUnsubscribe = "UNSUBSCRIBE"
	CmdSend        = "SEND"
	CmdMessage     = "MESSAGE"
	CmdError       = "ERROR"
	CmdDisconnect  = "DISCONNECT"
)

// Well-known header names.
const (
	HdrAcceptVersion = "accept-version"
	HdrHeartBeat     = "heart-beat"
	HdrDestination   = "destination"
	HdrID            = "id"
	HdrSubscription  = "subscription"
	HdrContentType   = "content-type"
	HdrContentLength = "content-length"
	HdrMessage       = "message"
)

var (
	ErrEmptyFrame     = errors.New("empty frame")
	ErrMalformedFrame = errors.New("malformed frame")
)

// Frame is a single protocol frame: command, headers, and an optional body.
type Frame struct {
	Command string
	Headers map[string]string
	Body    []byte
}

// NewFrame builds a frame with the given command and alternating
// header key/value pairs.
func NewFrame(command string, headers ...string) *Frame {
	f := &Frame{
		Command: command,
		Headers: make(map[string]string, len(headers)/2),
	}
	for i := 0; i+1 < len(headers); i += 2 {
		f.Headers[headers[i]] = headers[i+1]
	}
	return f
}

// Header returns the value of the named header, or "" if absent.
func (f *Frame) Header(name string) string {
	return f.Headers[name]
}

// Marshal renders the frame in wire format: command line, header lines,
// blank line, body, NUL terminator.
func (f *Frame) Marshal() []byte {
	var buf bytes.Buffer
	buf.WriteString(f.Command)
	buf.WriteByte('\n')

	for k, v := range f.Headers {
		buf.WriteString(escapeHeader(k))
		buf.WriteByte(':')
		buf.WriteString(escapeHeader(v))
		buf.WriteByte('\n')
	}
	if len(f.Body) > 0 {
		buf.WriteString(HdrContentLength)
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(len(f.Body)))
		buf.WriteByte('\n')
	}

	buf.WriteByte('\n')
	buf.Write(f.Body)
	buf.WriteByte(0)
	return buf.Bytes()
}

// Heartbeat is the single-newline keepalive frame.
var Heartbeat = []byte("\n")

// IsHeartbeat reports whether raw is a heartbeat frame (bare EOL).
func IsHeartbeat(raw []byte) bool {
	trimmed := bytes.TrimRight(raw, "\r\n")
	return len(trimmed) == 0
}

// Parse decodes a wire-format frame. Heartbeat frames yield ErrEmptyFrame;
// callers should check IsHeartbeat first when that matters.
func Parse(raw []byte) (*Frame, error) {
	raw = bytes.TrimRight(raw, "\x00")
	if IsHeartbeat(raw) {
		return nil, ErrEmptyFrame
	}

	head, body, found := bytes.Cut(raw, []byte("\n\n"))
	if !found {
		// Frame with headers but no blank line terminator.
		head = raw
		body = nil
	}

	lines := strings.Split(strings.TrimRight(string(head), "\r\n"), "\n")
	command := strings.TrimRight(lines[0], "\r")
	if command == "" {
		return nil, ErrMalformedFrame
	}

	f := &Frame{
		Command: command,
		Headers: make(map[string]string, len(lines)-1),
	}

	for _, line := range lines[1:] {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%w: header %q", ErrMalformedFrame, line)
		}
		// First occurrence wins, per the protocol.
		key := unescapeHeader(k)
		if _, exists := f.Headers[key]; !exists {
			f.Headers[key] = unescapeHeader(v)
		}
	}

	f.Body = body
	return f, nil
}

// ParseHeartBeat splits a "cx,cy" heart-beat header into its two interval
// values in milliseconds. Returns zeros on absent or malformed input.
func ParseHeartBeat(value string) (cx, cy int) {
	tx, ty, ok := strings.Cut(value, ",")
	if !ok {
		return 0, 0
	}
	cx, _ = strconv.Atoi(strings.TrimSpace(tx))
	cy, _ = strconv.Atoi(strings.TrimSpace(ty))
	return cx, cy
}

var headerEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\r", `\r`,
	"\n", `\n`,
	":", `\c`,
)

var headerUnescaper = strings.NewReplacer(
	`\r`, "\r",
	`\n`, "\n",
	`\c`, ":",
	`\\`, `\`,
)

func escapeHeader(s string) string   { return headerEscaper.Replace(s) }
func unescapeHeader(s string) string { return headerUnescaper.Replace(s) }
