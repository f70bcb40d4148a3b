package orders

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status mirrors the order lifecycle owned by the upstream order service.
// The stock engine only cares whether an order is still actionable.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusShipped   Status = "SHIPPED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether the order can no longer be allocated against.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Order is a read-only projection of a sales order.
type Order struct {
	ID        uuid.UUID
	Status    Status
	Lines     []Line
	CreatedAt time.Time
}

// Line is one ordered quantity of a variant.
type Line struct {
	VariantID uuid.UUID
	Quantity  int64
}

// ErrNotFound indicates the order does not exist.
var ErrNotFound = errors.New("orders: not found")
