package model

import "fmt"

// OrderState is the lifecycle state of an order.
//
// Wire values are the backend's integer state ids. The zero value is
// StateUnknown and never appears in a valid snapshot.
type OrderState int

const (
	StateUnknown    OrderState = 0
	StateIncoming   OrderState = 1
	StateStandby    OrderState = 2
	StatePreparing  OrderState = 3
	StateReady      OrderState = 4
	StateDelivering OrderState = 5
	StateDelivered  OrderState = 6
	StateRejected   OrderState = 7
	StateCancelled  OrderState = 8
)

var stateNames = map[OrderState]string{
	StateIncoming:   "INCOMING",
	StateStandby:    "STANDBY",
	StatePreparing:  "PREPARING",
	StateReady:      "READY",
	StateDelivering: "DELIVERING",
	StateDelivered:  "DELIVERED",
	StateRejected:   "REJECTED",
	StateCancelled:  "CANCELLED",
}

// String returns the canonical upper-case name of the state.
func (s OrderState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(s))
}

// Valid reports whether s is one of the defined order states.
func (s OrderState) Valid() bool {
	_, ok := stateNames[s]
	return ok
}

// ParseState resolves a canonical state name (e.g. "PREPARING") to its
// OrderState. Returns StateUnknown and false for unrecognized names.
func ParseState(name string) (OrderState, bool) {
	for s, n := range stateNames {
		if n == name {
			return s, true
		}
	}
	return StateUnknown, false
}

// StateSet is a fixed set of order states, used as a view's relevance filter.
type StateSet map[OrderState]struct{}

// NewStateSet builds a StateSet from the given states.
func NewStateSet(states ...OrderState) StateSet {
	set := make(StateSet, len(states))
	for _, s := range states {
		set[s] = struct{}{}
	}
	return set
}

// Contains reports whether s is in the set.
func (ss StateSet) Contains(s OrderState) bool {
	_, ok := ss[s]
	return ok
}

// Customer is the customer block carried on an order snapshot.
// The sync layer does not interpret it.
type Customer struct {
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// OrderItem is a single line item on an order snapshot.
type OrderItem struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	Notes     string  `json:"notes,omitempty"`
}

// Order is a full, self-contained snapshot of one order at a point in time.
// Every inbound event replaces the previous snapshot wholesale; there are no
// partial patches.
type Order struct {
	ID            int64       `json:"id"`
	StateID       OrderState  `json:"stateId"`
	EstimatedTime string      `json:"estimatedTime,omitempty"`
	Customer      Customer    `json:"customer"`
	Items         []OrderItem `json:"items,omitempty"`
	Total         float64     `json:"total,omitempty"`
	CreatedAt     string      `json:"createdAt,omitempty"`
	Delivery      bool        `json:"delivery,omitempty"`
}

// StateChange is the outbound command payload requesting an order state
// transition. Commands are idempotent re-statements of desired state.
type StateChange struct {
	OrderID       int64      `json:"orderId"`
	NewStateID    OrderState `json:"newStateId"`
	EstimatedTime string     `json:"estimatedTime,omitempty"`
}
