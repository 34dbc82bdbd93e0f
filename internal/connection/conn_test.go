package connection

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mesafina/ordersync/internal/stomp"
)

// fakeBroker is a minimal in-process broker: it completes the
// CONNECT/CONNECTED handshake and records every other inbound frame.
type fakeBroker struct {
	t      *testing.T
	server *httptest.Server

	frames   chan *stomp.Frame
	sessions chan *websocket.Conn

	mu    sync.Mutex
	conns []*websocket.Conn
}

func newFakeBroker(t *testing.T) *fakeBroker {
	b := &fakeBroker{
		t:        t,
		frames:   make(chan *stomp.Frame, 64),
		sessions: make(chan *websocket.Conn, 8),
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		b.mu.Lock()
		b.conns = append(b.conns, conn)
		b.mu.Unlock()
		b.serve(conn)
	}))

	t.Cleanup(b.close)
	return b
}

func (b *fakeBroker) serve(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if stomp.IsHeartbeat(data) {
			continue
		}
		f, err := stomp.Parse(data)
		if err != nil {
			b.t.Logf("broker parse error: %v", err)
			continue
		}
		if f.Command == stomp.CmdConnect {
			connected := stomp.NewFrame(stomp.CmdConnected, stomp.HdrHeartBeat, "0,0")
			conn.WriteMessage(websocket.TextMessage, connected.Marshal())
			select {
			case b.sessions <- conn:
			default:
			}
			continue
		}
		select {
		case b.frames <- f:
		default:
			b.t.Log("broker frame buffer full")
		}
	}
}

// publish sends a MESSAGE frame on the most recent session.
func (b *fakeBroker) publish(topic string, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.conns) == 0 {
		b.t.Fatal("no broker session to publish on")
	}
	conn := b.conns[len(b.conns)-1]
	f := stomp.NewFrame(stomp.CmdMessage, stomp.HdrDestination, topic)
	f.Body = []byte(body)
	conn.WriteMessage(websocket.TextMessage, f.Marshal())
}

// dropAll closes every live session without a close handshake.
func (b *fakeBroker) dropAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, conn := range b.conns {
		conn.Close()
	}
	b.conns = nil
}

func (b *fakeBroker) close() {
	b.dropAll()
	b.server.Close()
}

func (b *fakeBroker) url() string {
	return "ws" + strings.TrimPrefix(b.server.URL, "http")
}

// awaitFrame waits for the next recorded frame with the given command.
func (b *fakeBroker) awaitFrame(t *testing.T, command string) *stomp.Frame {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case f := <-b.frames:
			if f.Command == command {
				return f
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s frame", command)
			return nil
		}
	}
}

func testConfig(url string) Config {
	cfg := DefaultConfig()
	cfg.URL = url
	cfg.HeartbeatInterval = time.Second
	cfg.ReconnectDelay = 50 * time.Millisecond
	cfg.DialTimeout = time.Second
	cfg.BufferSize = 64
	return cfg
}

func waitForState(t *testing.T, c *Conn, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %v, want %v", c.State(), want)
}

func TestConnectAndDisconnect(t *testing.T) {
	broker := newFakeBroker(t)
	c := New(testConfig(broker.url()), nil)

	if c.State() != StateDisconnected {
		t.Fatalf("initial state = %v, want DISCONNECTED", c.State())
	}

	c.Connect(context.Background())
	waitForState(t, c, StateConnected)

	c.Disconnect()
	if c.State() != StateDisconnected {
		t.Errorf("state after Disconnect = %v, want DISCONNECTED", c.State())
	}

	// Idempotent.
	c.Disconnect()
}

func TestConnectIdempotent(t *testing.T) {
	broker := newFakeBroker(t)
	c := New(testConfig(broker.url()), nil)
	defer c.Disconnect()

	ctx := context.Background()
	c.Connect(ctx)
	c.Connect(ctx)
	waitForState(t, c, StateConnected)

	c.Connect(ctx)
	if c.State() != StateConnected {
		t.Errorf("state = %v, want CONNECTED", c.State())
	}

	// Only one session should have been established.
	select {
	case <-broker.sessions:
	default:
		t.Fatal("expected one broker session")
	}
	select {
	case <-broker.sessions:
		t.Error("unexpected second broker session")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscribeBeforeConnect(t *testing.T) {
	broker := newFakeBroker(t)
	c := New(testConfig(broker.url()), nil)
	defer c.Disconnect()

	c.Subscribe("/topic/dashboard/cocina")
	c.Connect(context.Background())

	f := broker.awaitFrame(t, stomp.CmdSubscribe)
	if got := f.Header(stomp.HdrDestination); got != "/topic/dashboard/cocina" {
		t.Errorf("subscribe destination = %q, want %q", got, "/topic/dashboard/cocina")
	}
	if f.Header(stomp.HdrID) == "" {
		t.Error("subscribe frame missing id header")
	}
}

func TestSubscribeWhileConnected(t *testing.T) {
	broker := newFakeBroker(t)
	c := New(testConfig(broker.url()), nil)
	defer c.Disconnect()

	c.Connect(context.Background())
	waitForState(t, c, StateConnected)

	c.Subscribe("/topic/dashboard/cajero")
	c.Subscribe("/topic/dashboard/cajero") // no-op

	f := broker.awaitFrame(t, stomp.CmdSubscribe)
	if got := f.Header(stomp.HdrDestination); got != "/topic/dashboard/cajero" {
		t.Errorf("subscribe destination = %q", got)
	}

	select {
	case f := <-broker.frames:
		t.Errorf("unexpected extra frame %s", f.Command)
	case <-time.After(100 * time.Millisecond):
	}

	topics := c.Topics()
	if len(topics) != 1 || topics[0] != "/topic/dashboard/cajero" {
		t.Errorf("Topics() = %v", topics)
	}
}

func TestUnsubscribe(t *testing.T) {
	broker := newFakeBroker(t)
	c := New(testConfig(broker.url()), nil)
	defer c.Disconnect()

	c.Connect(context.Background())
	waitForState(t, c, StateConnected)

	c.Subscribe("/topic/dashboard/delivery")
	sub := broker.awaitFrame(t, stomp.CmdSubscribe)

	c.Unsubscribe("/topic/dashboard/delivery")
	unsub := broker.awaitFrame(t, stomp.CmdUnsubscribe)
	if unsub.Header(stomp.HdrID) != sub.Header(stomp.HdrID) {
		t.Errorf("unsubscribe id = %q, want %q", unsub.Header(stomp.HdrID), sub.Header(stomp.HdrID))
	}

	// Unknown topic is a no-op, not an error.
	c.Unsubscribe("/topic/nope")

	if len(c.Topics()) != 0 {
		t.Errorf("Topics() = %v, want empty", c.Topics())
	}
}

func TestPublish(t *testing.T) {
	broker := newFakeBroker(t)
	c := New(testConfig(broker.url()), nil)
	defer c.Disconnect()

	c.Connect(context.Background())
	waitForState(t, c, StateConnected)

	payload := map[string]any{"orderId": 7, "newStateId": 3}
	if err := c.Publish("/app/order/state", payload); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	f := broker.awaitFrame(t, stomp.CmdSend)
	if got := f.Header(stomp.HdrDestination); got != "/app/order/state" {
		t.Errorf("send destination = %q", got)
	}

	var decoded map[string]any
	if err := json.Unmarshal(f.Body, &decoded); err != nil {
		t.Fatalf("body not JSON: %v", err)
	}
	if decoded["orderId"] != float64(7) {
		t.Errorf("orderId = %v, want 7", decoded["orderId"])
	}
}

func TestPublishWhileDisconnected(t *testing.T) {
	c := New(testConfig("ws://127.0.0.1:1/ws"), nil)

	if err := c.Publish("/app/order/state", "{}"); err != ErrNotConnected {
		t.Errorf("Publish err = %v, want ErrNotConnected", err)
	}
}

func TestMessagesDelivered(t *testing.T) {
	broker := newFakeBroker(t)
	c := New(testConfig(broker.url()), nil)
	defer c.Disconnect()

	c.Connect(context.Background())
	waitForState(t, c, StateConnected)

	broker.publish("/topic/dashboard/cocina", `{"id":5,"stateId":2}`)

	select {
	case msg := <-c.Messages():
		if msg.Topic != "/topic/dashboard/cocina" {
			t.Errorf("Topic = %q", msg.Topic)
		}
		if string(msg.Body) != `{"id":5,"stateId":2}` {
			t.Errorf("Body = %q", msg.Body)
		}
		if msg.ReceivedAt.IsZero() {
			t.Error("ReceivedAt not set")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestOnConnectOrderAndIsolation(t *testing.T) {
	broker := newFakeBroker(t)
	c := New(testConfig(broker.url()), nil)
	defer c.Disconnect()

	var mu sync.Mutex
	var calls []int
	c.OnConnect(func() {
		mu.Lock()
		calls = append(calls, 1)
		mu.Unlock()
	})
	c.OnConnect(func() { panic("listener boom") })
	c.OnConnect(func() {
		mu.Lock()
		calls = append(calls, 3)
		mu.Unlock()
	})

	c.Connect(context.Background())
	waitForState(t, c, StateConnected)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(calls)
		mu.Unlock()
		if n == 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 2 || calls[0] != 1 || calls[1] != 3 {
		t.Errorf("calls = %v, want [1 3]", calls)
	}
}

func TestReconnectAndResubscribe(t *testing.T) {
	broker := newFakeBroker(t)
	c := New(testConfig(broker.url()), nil)
	defer c.Disconnect()

	c.Subscribe("/topic/dashboard/cocina")
	c.Connect(context.Background())
	waitForState(t, c, StateConnected)
	broker.awaitFrame(t, stomp.CmdSubscribe)

	// Kill the session; the client must come back on its own and re-issue
	// the subscription without any caller involvement.
	broker.dropAll()
	waitForState(t, c, StateConnected)

	f := broker.awaitFrame(t, stomp.CmdSubscribe)
	if got := f.Header(stomp.HdrDestination); got != "/topic/dashboard/cocina" {
		t.Errorf("resubscribe destination = %q", got)
	}

	select {
	case <-broker.sessions:
	default:
	}
}

func TestDisconnectTearsDownSubscriptions(t *testing.T) {
	broker := newFakeBroker(t)
	c := New(testConfig(broker.url()), nil)

	c.Connect(context.Background())
	waitForState(t, c, StateConnected)

	c.Subscribe("/topic/dashboard/cajero")
	broker.awaitFrame(t, stomp.CmdSubscribe)

	c.Disconnect()

	broker.awaitFrame(t, stomp.CmdUnsubscribe)
	broker.awaitFrame(t, stomp.CmdDisconnect)
}
