package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mesafina/ordersync/internal/stomp"
)

// Conn owns the single physical broker connection. All dashboards share one
// Conn; it is constructed once by the composition root and injected wherever
// the connection is needed.
type Conn struct {
	cfg    Config
	logger *slog.Logger

	mu               sync.Mutex
	state            State
	ws               *websocket.Conn
	stop             chan struct{} // closed by Disconnect; nil while disconnected
	connectListeners []func()
	subs             map[string]string // topic -> subscription id for the current session

	writeMu sync.Mutex

	messages chan Message
	lastRead atomic.Int64 // unix nanos of the last inbound read
	nextSub  atomic.Int64
}

// New creates a broker connection in the Disconnected state.
func New(cfg Config, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}

	return &Conn{
		cfg:      cfg,
		logger:   logger,
		state:    StateDisconnected,
		subs:     make(map[string]string),
		messages: make(chan Message, cfg.BufferSize),
	}
}

// State returns the current connection state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Messages returns the channel of inbound topic messages. The channel stays
// open across reconnects and is shared by all sessions.
func (c *Conn) Messages() <-chan Message {
	return c.messages
}

// OnConnect registers fn to be invoked once per transition to Connected,
// in registration order. Registration is permanent for the life of the Conn.
func (c *Conn) OnConnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectListeners = append(c.connectListeners, fn)
}

// Connect starts the connect/reconnect loop. Calling it while Connecting or
// Connected is a no-op. Transport failures are absorbed: the loop retries at
// the configured fixed delay until Disconnect is called or ctx is canceled.
func (c *Conn) Connect(ctx context.Context) {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	stop := make(chan struct{})
	c.stop = stop
	c.mu.Unlock()

	c.logger.Info("connecting to broker", "url", c.cfg.URL)
	go c.run(ctx, stop)
}

// Disconnect tears down all active topic subscriptions, closes the transport,
// and transitions to Disconnected. Calling it while Disconnected is a no-op.
// Registered topics are remembered and re-subscribed on a later Connect.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	stop := c.stop
	ws := c.ws
	wasConnected := c.state == StateConnected
	subs := maps.Clone(c.subs)
	c.state = StateDisconnected
	c.ws = nil
	c.stop = nil
	if stop != nil {
		// Closed under the lock so the run loop can never observe the old
		// stop channel open after the state flips to Disconnected.
		close(stop)
	}
	c.mu.Unlock()

	if wasConnected && ws != nil {
		for topic, id := range subs {
			c.writeFrameTo(ws, stomp.NewFrame(stomp.CmdUnsubscribe, stomp.HdrID, id))
			c.logger.Debug("unsubscribed", "topic", topic, "id", id)
		}
		c.writeFrameTo(ws, stomp.NewFrame(stomp.CmdDisconnect))
		ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		ws.Close()
	}

	c.logger.Info("disconnected from broker")
}

// Publish serializes body and sends it to destination. body may be a string,
// []byte, or any JSON-marshalable value. When the connection is not in the
// Connected state the message is logged and dropped; order state is observed
// through the event stream, not confirmed through command delivery.
func (c *Conn) Publish(destination string, body any) error {
	data, err := encodeBody(body)
	if err != nil {
		return fmt.Errorf("encode publish body: %w", err)
	}

	c.mu.Lock()
	ws := c.ws
	connected := c.state == StateConnected
	c.mu.Unlock()

	if !connected || ws == nil {
		c.logger.Warn("publish while not connected, dropping",
			"destination", destination,
			"size", len(data),
		)
		return ErrNotConnected
	}

	f := stomp.NewFrame(stomp.CmdSend,
		stomp.HdrDestination, destination,
		stomp.HdrContentType, "application/json",
	)
	f.Body = data
	return c.writeFrameTo(ws, f)
}

// Subscribe registers topic for delivery. The transport-level SUBSCRIBE frame
// is sent immediately when Connected, otherwise deferred to the next
// Connected transition. Subscribing an already-registered topic is a no-op.
func (c *Conn) Subscribe(topic string) {
	c.mu.Lock()
	if _, exists := c.subs[topic]; exists {
		c.mu.Unlock()
		return
	}
	id := c.newSubID()
	c.subs[topic] = id
	ws := c.ws
	connected := c.state == StateConnected
	c.mu.Unlock()

	if connected && ws != nil {
		c.sendSubscribe(ws, topic, id)
	} else {
		c.logger.Debug("subscribe deferred until connected", "topic", topic)
	}
}

// Unsubscribe releases the transport-level subscription for topic.
// Unsubscribing an unknown topic is a no-op.
func (c *Conn) Unsubscribe(topic string) {
	c.mu.Lock()
	id, exists := c.subs[topic]
	if exists {
		delete(c.subs, topic)
	}
	ws := c.ws
	connected := c.state == StateConnected
	c.mu.Unlock()

	if !exists {
		return
	}

	if connected && ws != nil {
		if err := c.writeFrameTo(ws, stomp.NewFrame(stomp.CmdUnsubscribe, stomp.HdrID, id)); err != nil {
			c.logger.Warn("failed to send unsubscribe", "topic", topic, "error", err)
		}
	}
	c.logger.Debug("unsubscribed", "topic", topic, "id", id)
}

// Topics returns the topics currently registered for delivery.
func (c *Conn) Topics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	topics := slices.Collect(maps.Keys(c.subs))
	slices.Sort(topics)
	return topics
}

// run is the connect/reconnect loop. One instance runs per Connect call,
// living until Disconnect or ctx cancellation.
func (c *Conn) run(ctx context.Context, stop chan struct{}) {
	for {
		ws, err := c.dial(ctx)
		if err != nil {
			c.logger.Warn("broker handshake failed",
				"error", err,
				"retry_in", c.cfg.ReconnectDelay,
			)
			select {
			case <-stop:
				return
			case <-ctx.Done():
				c.Disconnect()
				return
			case <-time.After(c.cfg.ReconnectDelay):
			}
			continue
		}

		c.mu.Lock()
		select {
		case <-stop:
			// Disconnect raced the handshake.
			c.mu.Unlock()
			ws.Close()
			return
		default:
		}
		c.ws = ws
		c.state = StateConnected
		listeners := slices.Clone(c.connectListeners)
		resubs := make(map[string]string, len(c.subs))
		for topic := range c.subs {
			id := c.newSubID()
			c.subs[topic] = id
			resubs[topic] = id
		}
		c.mu.Unlock()

		c.logger.Info("broker connected", "url", c.cfg.URL, "topics", len(resubs))

		for topic, id := range resubs {
			c.sendSubscribe(ws, topic, id)
		}
		for _, fn := range listeners {
			c.notifyConnect(fn)
		}

		sessionDone := make(chan struct{})
		go c.heartbeatLoop(ws, sessionDone)

		readErr := c.readLoop(ws, stop)
		close(sessionDone)
		ws.Close()

		select {
		case <-ctx.Done():
			c.Disconnect()
			return
		default:
		}

		c.mu.Lock()
		select {
		case <-stop:
			c.mu.Unlock()
			return
		default:
		}
		c.ws = nil
		c.state = StateConnecting
		c.mu.Unlock()

		c.logger.Warn("connection dropped, reconnecting",
			"error", readErr,
			"delay", c.cfg.ReconnectDelay,
		)

		select {
		case <-stop:
			return
		case <-ctx.Done():
			c.Disconnect()
			return
		case <-time.After(c.cfg.ReconnectDelay):
		}
	}
}

// dial opens the WebSocket and performs the CONNECT/CONNECTED handshake.
func (c *Conn) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.DialTimeout,
	}

	ws, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return nil, err
	}

	beat := c.cfg.HeartbeatInterval.Milliseconds()
	connect := stomp.NewFrame(stomp.CmdConnect,
		stomp.HdrAcceptVersion, "1.1,1.2",
		stomp.HdrHeartBeat, fmt.Sprintf("%d,%d", beat, beat),
	)

	ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := ws.WriteMessage(websocket.TextMessage, connect.Marshal()); err != nil {
		ws.Close()
		return nil, fmt.Errorf("send CONNECT: %w", err)
	}

	ws.SetReadDeadline(time.Now().Add(c.cfg.DialTimeout))
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			ws.Close()
			return nil, fmt.Errorf("await CONNECTED: %w", err)
		}
		if stomp.IsHeartbeat(data) {
			continue
		}

		f, err := stomp.Parse(data)
		if err != nil {
			ws.Close()
			return nil, fmt.Errorf("%w: %v", ErrHandshake, err)
		}

		switch f.Command {
		case stomp.CmdConnected:
			ws.SetReadDeadline(time.Time{})
			c.lastRead.Store(time.Now().UnixNano())
			return ws, nil
		case stomp.CmdError:
			ws.Close()
			return nil, fmt.Errorf("%w: %s", ErrHandshake, f.Header(stomp.HdrMessage))
		default:
			ws.Close()
			return nil, fmt.Errorf("%w: unexpected %s frame", ErrHandshake, f.Command)
		}
	}
}

// readLoop reads frames until the connection drops or stop closes. A nil
// return means the stop was deliberate.
func (c *Conn) readLoop(ws *websocket.Conn, stop chan struct{}) error {
	for {
		_, data, err := ws.ReadMessage()
		receivedAt := time.Now()
		c.lastRead.Store(receivedAt.UnixNano())

		if err != nil {
			select {
			case <-stop:
				return nil
			default:
				return err
			}
		}

		if stomp.IsHeartbeat(data) {
			continue
		}

		f, err := stomp.Parse(data)
		if err != nil {
			c.logger.Warn("dropping malformed frame", "error", err)
			continue
		}

		switch f.Command {
		case stomp.CmdMessage:
			msg := Message{
				Topic:      f.Header(stomp.HdrDestination),
				Body:       f.Body,
				ReceivedAt: receivedAt,
			}
			select {
			case c.messages <- msg:
			default:
				c.logger.Warn("message buffer full, dropping", "topic", msg.Topic)
			}

		case stomp.CmdError:
			c.logger.Warn("broker error frame",
				"message", f.Header(stomp.HdrMessage),
				"body", string(f.Body),
			)

		default:
			c.logger.Debug("ignoring frame", "command", f.Command)
		}
	}
}

// heartbeatLoop sends outgoing heartbeats and watches for a stale peer.
// Exactly one instance runs per Connected session.
func (c *Conn) heartbeatLoop(ws *websocket.Conn, done chan struct{}) {
	interval := c.cfg.HeartbeatInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			err := ws.WriteMessage(websocket.TextMessage, stomp.Heartbeat)
			c.writeMu.Unlock()
			if err != nil {
				c.logger.Debug("heartbeat send failed", "error", err)
			}

			last := time.Unix(0, c.lastRead.Load())
			if time.Since(last) > 3*interval {
				c.logger.Warn("no data from broker, closing stale connection",
					"last_read", last,
				)
				ws.Close()
				return
			}
		}
	}
}

// sendSubscribe issues the transport-level SUBSCRIBE frame for topic.
func (c *Conn) sendSubscribe(ws *websocket.Conn, topic, id string) {
	f := stomp.NewFrame(stomp.CmdSubscribe,
		stomp.HdrID, id,
		stomp.HdrDestination, topic,
	)
	if err := c.writeFrameTo(ws, f); err != nil {
		c.logger.Warn("failed to send subscribe", "topic", topic, "error", err)
		return
	}
	c.logger.Debug("subscribed", "topic", topic, "id", id)
}

// writeFrameTo serializes one frame write to ws under the write lock.
func (c *Conn) writeFrameTo(ws *websocket.Conn, f *stomp.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return ws.WriteMessage(websocket.TextMessage, f.Marshal())
}

// notifyConnect invokes one connect listener, isolating panics.
func (c *Conn) notifyConnect(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("connect listener panicked", "panic", r)
		}
	}()
	fn()
}

func (c *Conn) newSubID() string {
	return fmt.Sprintf("sub-%d", c.nextSub.Add(1))
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		return json.Marshal(b)
	}
}
