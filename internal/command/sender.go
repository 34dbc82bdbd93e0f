// Package command implements the Command Sender component: a thin outbound
// path that publishes order state-change intents on the shared broker
// connection. The REST endpoint is the authoritative write path; this is the
// secondary one, and no acknowledgement is awaited — the resulting state
// change is observed through the normal event stream.
package command

import (
	"log/slog"

	"github.com/mesafina/ordersync/internal/model"
)

// Publisher is the slice of the broker connection the sender needs.
// *connection.Conn satisfies it.
type Publisher interface {
	Publish(destination string, body any) error
}

// Sender publishes state-change commands to one destination.
type Sender struct {
	pub         Publisher
	destination string
	logger      *slog.Logger
}

// New creates a Sender publishing to destination.
func New(pub Publisher, destination string, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}

	return &Sender{
		pub:         pub,
		destination: destination,
		logger:      logger,
	}
}

// SendStateChange publishes an intent to move orderID to newState.
// estimatedTime is optional and passed through verbatim. Delivery failures
// are logged, never surfaced: commands are idempotent re-statements of
// desired state and the operator simply retries.
func (s *Sender) SendStateChange(orderID int64, newState model.OrderState, estimatedTime string) {
	cmd := model.StateChange{
		OrderID:       orderID,
		NewStateID:    newState,
		EstimatedTime: estimatedTime,
	}

	if err := s.pub.Publish(s.destination, cmd); err != nil {
		s.logger.Warn("state change command not delivered",
			"order_id", orderID,
			"new_state", newState,
			"error", err,
		)
		return
	}

	s.logger.Debug("state change command sent",
		"order_id", orderID,
		"new_state", newState,
	)
}
