package model

import (
	"encoding/json"
	"testing"
)

func TestOrderStateString(t *testing.T) {
	tests := []struct {
		state OrderState
		want  string
	}{
		{StateIncoming, "INCOMING"},
		{StateStandby, "STANDBY"},
		{StatePreparing, "PREPARING"},
		{StateReady, "READY"},
		{StateDelivering, "DELIVERING"},
		{StateDelivered, "DELIVERED"},
		{StateRejected, "REJECTED"},
		{StateCancelled, "CANCELLED"},
		{OrderState(99), "UNKNOWN(99)"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("OrderState(%d).String() = %q, want %q", int(tt.state), got, tt.want)
		}
	}
}

func TestParseState(t *testing.T) {
	s, ok := ParseState("DELIVERING")
	if !ok || s != StateDelivering {
		t.Errorf("ParseState(DELIVERING) = %v, %v; want %v, true", s, ok, StateDelivering)
	}

	if _, ok := ParseState("FRIED"); ok {
		t.Error("ParseState(FRIED) succeeded, want failure")
	}
}

func TestStateSetContains(t *testing.T) {
	set := NewStateSet(StateIncoming, StateStandby)

	if !set.Contains(StateIncoming) {
		t.Error("expected set to contain INCOMING")
	}
	if set.Contains(StateReady) {
		t.Error("expected set to not contain READY")
	}
}

func TestOrderJSONRoundTrip(t *testing.T) {
	in := Order{
		ID:            42,
		StateID:       StatePreparing,
		EstimatedTime: "25 min",
		Customer:      Customer{Name: "Ana", Phone: "555-0101", Address: "Calle 7"},
		Items: []OrderItem{
			{Name: "Milanesa", Quantity: 2, UnitPrice: 9.50},
		},
		Total:    19.0,
		Delivery: true,
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var out Order
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if out.ID != in.ID || out.StateID != in.StateID {
		t.Errorf("round trip changed identity: got id=%d state=%v", out.ID, out.StateID)
	}
	if out.Customer.Name != "Ana" {
		t.Errorf("Customer.Name = %q, want %q", out.Customer.Name, "Ana")
	}
	if len(out.Items) != 1 || out.Items[0].Quantity != 2 {
		t.Errorf("Items not carried through: %+v", out.Items)
	}
}
