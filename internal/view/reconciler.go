package view

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/mesafina/ordersync/internal/model"
	"github.com/mesafina/ordersync/internal/mux"
)

// Reconciler derives a filtered, deduplicated order collection for one
// dashboard from the raw snapshot stream of its topic. Reconcilers are not
// shared: each view owns its private collection.
type Reconciler struct {
	name     string
	topic    string
	relevant model.StateSet
	logger   *slog.Logger

	mu     sync.RWMutex
	orders map[int64]model.Order

	subMu    sync.Mutex
	sub      mux.Subscription
	attached bool
}

// New creates a reconciler for one dashboard view. name identifies the view
// in logs; topic is the channel carrying its snapshots; relevant is the set
// of states the view displays.
func New(name, topic string, relevant model.StateSet, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Reconciler{
		name:     name,
		topic:    topic,
		relevant: relevant,
		logger:   logger.With("view", name),
		orders:   make(map[int64]model.Order),
	}
}

// Name returns the view name.
func (r *Reconciler) Name() string { return r.name }

// Topic returns the topic this view consumes.
func (r *Reconciler) Topic() string { return r.topic }

// Attach subscribes the reconciler to its topic on m. Attaching twice is a
// no-op. Call Close when the view unmounts.
func (r *Reconciler) Attach(m *mux.Mux) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	if r.attached {
		return
	}
	r.sub = m.Subscribe(r.topic, r.Apply)
	r.attached = true
	r.logger.Debug("view attached", "topic", r.topic)
}

// Close detaches the reconciler from the multiplexer. If it was the last
// listener for its topic, the transport-level subscription is released.
func (r *Reconciler) Close() {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	if !r.attached {
		return
	}
	r.sub.Cancel()
	r.attached = false
	r.logger.Debug("view detached", "topic", r.topic)
}

// Apply merges one inbound snapshot into the collection:
//
//   - relevant and present: replace the stored snapshot wholesale
//   - relevant and absent: insert
//   - irrelevant and present: evict (the order left this view's states)
//   - irrelevant and absent: ignore
func (r *Reconciler) Apply(o model.Order) {
	isRelevant := r.relevant.Contains(o.StateID)

	r.mu.Lock()
	_, exists := r.orders[o.ID]
	switch {
	case isRelevant:
		r.orders[o.ID] = o
	case exists:
		delete(r.orders, o.ID)
	}
	size := len(r.orders)
	r.mu.Unlock()

	switch {
	case isRelevant && exists:
		r.logger.Debug("order updated", "id", o.ID, "state", o.StateID, "size", size)
	case isRelevant:
		r.logger.Debug("order added", "id", o.ID, "state", o.StateID, "size", size)
	case exists:
		r.logger.Debug("order evicted", "id", o.ID, "state", o.StateID, "size", size)
	}
}

// ReplaceAll discards the collection and reseeds it from a full listing,
// keeping only relevant orders. Used once at view mount to bridge the REST
// snapshot and the live delta stream; both key on the backend order id, so
// any seed/stream disagreement self-corrects on the next event.
func (r *Reconciler) ReplaceAll(orders []model.Order) {
	next := make(map[int64]model.Order, len(orders))
	for _, o := range orders {
		if r.relevant.Contains(o.StateID) {
			next[o.ID] = o
		}
	}

	r.mu.Lock()
	r.orders = next
	r.mu.Unlock()

	r.logger.Debug("view reseeded", "listed", len(orders), "kept", len(next))
}

// Get returns the stored snapshot for id.
func (r *Reconciler) Get(id int64) (model.Order, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	return o, ok
}

// Len returns the number of orders currently in the collection.
func (r *Reconciler) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.orders)
}

// Orders returns a snapshot of the collection ordered by id. Callers
// re-sort and paginate downstream as they see fit.
func (r *Reconciler) Orders() []model.Order {
	r.mu.RLock()
	out := make([]model.Order, 0, len(r.orders))
	for _, o := range r.orders {
		out = append(out, o)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b model.Order) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

// IDs returns the order identifiers currently held, sorted.
func (r *Reconciler) IDs() []int64 {
	r.mu.RLock()
	out := make([]int64, 0, len(r.orders))
	for id := range r.orders {
		out = append(out, id)
	}
	r.mu.RUnlock()

	slices.Sort(out)
	return out
}
