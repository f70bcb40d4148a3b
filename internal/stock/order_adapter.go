package stock

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/meridian-oms/stockcore/internal/orders"
)

// OrderAdapter adapts the read-only orders repository to the OrderLookup
// interface required by the allocation engine.
type OrderAdapter struct {
	repo *orders.Repository
}

// NewOrderAdapter creates a new order adapter.
func NewOrderAdapter(repo *orders.Repository) *OrderAdapter {
	return &OrderAdapter{repo: repo}
}

// Lookup fetches the allocation view of one order.
func (a *OrderAdapter) Lookup(ctx context.Context, orderID uuid.UUID) (OrderInfo, error) {
	if a == nil || a.repo == nil {
		return OrderInfo{}, errors.New("stock: order adapter not initialised")
	}
	order, err := a.repo.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			return OrderInfo{}, ErrOrderNotFound
		}
		return OrderInfo{}, err
	}
	info := OrderInfo{
		ID:       order.ID,
		Terminal: order.Status.Terminal(),
		Lines:    make(map[uuid.UUID]int64, len(order.Lines)),
	}
	for _, line := range order.Lines {
		info.Lines[line.VariantID] += line.Quantity
	}
	return info, nil
}
