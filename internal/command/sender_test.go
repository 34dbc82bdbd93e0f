package command

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/mesafina/ordersync/internal/model"
)

type capturePublisher struct {
	destination string
	body        any
	err         error
}

func (c *capturePublisher) Publish(destination string, body any) error {
	c.destination = destination
	c.body = body
	return c.err
}

func TestSendStateChange(t *testing.T) {
	pub := &capturePublisher{}
	s := New(pub, "/app/order/state", nil)

	s.SendStateChange(12, model.StateReady, "5 min")

	if pub.destination != "/app/order/state" {
		t.Errorf("destination = %q, want %q", pub.destination, "/app/order/state")
	}

	data, err := json.Marshal(pub.body)
	if err != nil {
		t.Fatalf("body not marshalable: %v", err)
	}
	want := `{"orderId":12,"newStateId":4,"estimatedTime":"5 min"}`
	if string(data) != want {
		t.Errorf("body = %s, want %s", data, want)
	}
}

func TestSendStateChangeOmitsEmptyEstimate(t *testing.T) {
	pub := &capturePublisher{}
	s := New(pub, "/app/order/state", nil)

	s.SendStateChange(3, model.StateRejected, "")

	data, _ := json.Marshal(pub.body)
	want := `{"orderId":3,"newStateId":7}`
	if string(data) != want {
		t.Errorf("body = %s, want %s", data, want)
	}
}

func TestSendStateChangeAbsorbsFailure(t *testing.T) {
	pub := &capturePublisher{err: errors.New("not connected")}
	s := New(pub, "/app/order/state", nil)

	// Must not panic or propagate; the caller retries through the UI.
	s.SendStateChange(9, model.StatePreparing, "")
}
