package api

import (
	"context"
	"fmt"

	"github.com/mesafina/ordersync/internal/model"
)

// ordersResponse is the wire shape of the order listing.
type ordersResponse struct {
	Orders []model.Order `json:"orders"`
}

// updateStateRequest is the wire shape of the state-change commit.
type updateStateRequest struct {
	NewStateID    model.OrderState `json:"newStateId"`
	EstimatedTime string           `json:"estimatedTime,omitempty"`
}

// ListOrders fetches the full current order list. Used to seed each view's
// collection before live events start arriving.
func (c *Client) ListOrders(ctx context.Context) ([]model.Order, error) {
	var resp ordersResponse
	if err := c.get(ctx, "/orders", nil, &resp); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	return resp.Orders, nil
}

// UpdateOrderState commits an order state change. This is the authoritative
// write path; every dashboard observes the result through the push stream.
func (c *Client) UpdateOrderState(ctx context.Context, orderID int64, newState model.OrderState, estimatedTime string) error {
	req := updateStateRequest{
		NewStateID:    newState,
		EstimatedTime: estimatedTime,
	}

	path := fmt.Sprintf("/orders/%d/state", orderID)
	if err := c.put(ctx, path, req); err != nil {
		return fmt.Errorf("update order %d state: %w", orderID, err)
	}

	c.logger.Debug("order state committed",
		"order_id", orderID,
		"new_state", newState,
	)
	return nil
}
