package mux

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/mesafina/ordersync/internal/connection"
	"github.com/mesafina/ordersync/internal/model"
)

// Listener receives decoded order snapshots for one topic.
type Listener func(model.Order)

// Transport is the slice of the broker connection the multiplexer needs.
// *connection.Conn satisfies it.
type Transport interface {
	Subscribe(topic string)
	Unsubscribe(topic string)
	Messages() <-chan connection.Message
}

// Stats contains dispatch counters.
type Stats struct {
	Received     int64
	Dispatched   int64
	DecodeErrors int64
	NoListeners  int64
}

// Subscription is the handle returned by Subscribe. Cancel releases the
// listener; canceling twice is a no-op.
type Subscription struct {
	Topic string

	id  uuid.UUID
	mux *Mux
}

// Cancel removes this listener from its topic. When the last listener for
// the topic is removed, the transport-level subscription is torn down.
func (s Subscription) Cancel() {
	if s.mux != nil {
		s.mux.cancel(s.Topic, s.id)
	}
}

type entry struct {
	id uuid.UUID
	fn Listener
}

// Mux fans inbound topic messages out to registered listeners over one
// shared transport connection.
type Mux struct {
	transport Transport
	logger    *slog.Logger

	mu     sync.Mutex
	topics map[string][]entry

	statsMu sync.Mutex
	stats   Stats
}

// New creates a multiplexer over transport. Call Run to start dispatching.
func New(transport Transport, logger *slog.Logger) *Mux {
	if logger == nil {
		logger = slog.Default()
	}

	return &Mux{
		transport: transport,
		logger:    logger,
		topics:    make(map[string][]entry),
	}
}

// Subscribe registers fn for topic and returns a cancelable handle. The
// first listener for a topic triggers the transport-level subscribe; the
// connection defers it until Connected when necessary.
func (m *Mux) Subscribe(topic string, fn Listener) Subscription {
	sub := Subscription{Topic: topic, id: uuid.New(), mux: m}

	m.mu.Lock()
	listeners := m.topics[topic]
	m.topics[topic] = append(listeners, entry{id: sub.id, fn: fn})
	first := len(listeners) == 0
	m.mu.Unlock()

	if first {
		m.transport.Subscribe(topic)
	}

	m.logger.Debug("listener registered", "topic", topic, "id", sub.id)
	return sub
}

// Drop removes every listener for topic and tears down the transport-level
// subscription. Dropping an unknown topic is a no-op.
func (m *Mux) Drop(topic string) {
	m.mu.Lock()
	_, exists := m.topics[topic]
	delete(m.topics, topic)
	m.mu.Unlock()

	if exists {
		m.transport.Unsubscribe(topic)
		m.logger.Debug("topic dropped", "topic", topic)
	}
}

// ListenerCount returns the number of listeners registered for topic.
func (m *Mux) ListenerCount(topic string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.topics[topic])
}

// Stats returns a snapshot of dispatch counters.
func (m *Mux) Stats() Stats {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	return m.stats
}

// Run consumes the transport's message stream and dispatches until ctx is
// canceled or the stream ends. All fan-out happens on this single goroutine,
// preserving per-topic arrival order.
func (m *Mux) Run(ctx context.Context) {
	m.logger.Info("multiplexer started")
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("multiplexer stopped")
			return
		case msg, ok := <-m.transport.Messages():
			if !ok {
				m.logger.Info("transport message stream closed")
				return
			}
			m.dispatch(msg)
		}
	}
}

// dispatch decodes one message and invokes every listener for its topic
// with the same decoded snapshot.
func (m *Mux) dispatch(msg connection.Message) {
	m.statsMu.Lock()
	m.stats.Received++
	m.statsMu.Unlock()

	m.mu.Lock()
	listeners := make([]entry, len(m.topics[msg.Topic]))
	copy(listeners, m.topics[msg.Topic])
	m.mu.Unlock()

	if len(listeners) == 0 {
		m.statsMu.Lock()
		m.stats.NoListeners++
		m.statsMu.Unlock()
		m.logger.Debug("message for topic without listeners", "topic", msg.Topic)
		return
	}

	var order model.Order
	if err := json.Unmarshal(msg.Body, &order); err != nil {
		m.statsMu.Lock()
		m.stats.DecodeErrors++
		m.statsMu.Unlock()
		m.logger.Warn("dropping malformed snapshot",
			"topic", msg.Topic,
			"error", err,
		)
		return
	}

	for _, l := range listeners {
		m.invoke(msg.Topic, l, order)
	}

	m.statsMu.Lock()
	m.stats.Dispatched++
	m.statsMu.Unlock()
}

// invoke calls one listener, isolating panics so the remaining listeners
// for the same message still run.
func (m *Mux) invoke(topic string, l entry, order model.Order) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("listener panicked",
				"topic", topic,
				"id", l.id,
				"panic", r,
			)
		}
	}()
	l.fn(order)
}

// cancel removes one listener by token. Removing an already-absent listener
// is a no-op.
func (m *Mux) cancel(topic string, id uuid.UUID) {
	m.mu.Lock()
	listeners := m.topics[topic]
	kept := listeners[:0]
	removed := false
	for _, l := range listeners {
		if l.id == id {
			removed = true
			continue
		}
		kept = append(kept, l)
	}
	last := false
	if removed {
		if len(kept) == 0 {
			delete(m.topics, topic)
			last = true
		} else {
			m.topics[topic] = kept
		}
	}
	m.mu.Unlock()

	if last {
		m.transport.Unsubscribe(topic)
	}
	if removed {
		m.logger.Debug("listener removed", "topic", topic, "id", id, "last", last)
	}
}
