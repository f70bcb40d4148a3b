package stock

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Reason classifies a ledger entry. Together with the reference id and the
// variant id it forms the idempotency key for externally driven operations.
type Reason string

const (
	// ReasonReceipt records stock received into the warehouse.
	ReasonReceipt Reason = "Receipt"
	// ReasonWriteOff records damaged or lost stock leaving on-hand.
	ReasonWriteOff Reason = "WriteOff"
	// ReasonShipmentAllocation converts a reservation into a shipment decrement.
	ReasonShipmentAllocation Reason = "ShipmentAllocation"
	// ReasonReturnReceipt records a customer return arriving back on-hand.
	ReasonReturnReceipt Reason = "ReturnReceipt"
	// ReasonReservationHold marks units promised to an order.
	ReasonReservationHold Reason = "ReservationHold"
	// ReasonReservationRelease marks promised units freed again.
	ReasonReservationRelease Reason = "ReservationRelease"
)

// State holds the two mutable counters per variant. Mutated only through the
// conditional writes in this package.
type State struct {
	VariantID uuid.UUID
	OnHand    int64
	Reserved  int64
	UpdatedAt time.Time
}

// Available is the sellable headroom: on-hand minus reserved.
func (s State) Available() int64 {
	return s.OnHand - s.Reserved
}

// LedgerEntry is one immutable signed stock movement. A zero delta records a
// reservation event that moves the promise but not physical stock.
type LedgerEntry struct {
	ID            int64
	VariantID     uuid.UUID
	QuantityDelta int64
	Reason        Reason
	ReferenceID   *uuid.UUID
	CreatedAt     time.Time
}

// MovementInput describes a single-variant operation.
type MovementInput struct {
	VariantID   uuid.UUID
	Quantity    int64
	Reason      Reason
	ReferenceID *uuid.UUID
}

// AdjustmentInput describes a direct on-hand correction. Delta is signed:
// positive for receipts and count corrections, negative for write-offs.
type AdjustmentInput struct {
	VariantID   uuid.UUID
	Delta       int64
	Reason      Reason
	ReferenceID *uuid.UUID
}

// AllocationLine is one order line to allocate at fulfillment.
type AllocationLine struct {
	VariantID uuid.UUID
	Quantity  int64
}

// LedgerFilter narrows ledger listings.
type LedgerFilter struct {
	VariantID uuid.UUID
	From      time.Time
	To        time.Time
	Limit     int
}

// OrderInfo is the read-only view of an order the allocation engine needs.
// Lines maps variant id to the ordered quantity.
type OrderInfo struct {
	ID       uuid.UUID
	Terminal bool
	Lines    map[uuid.UUID]int64
}

var (
	// ErrVariantNotFound indicates the variant has no stock state.
	ErrVariantNotFound = errors.New("stock: variant not found")
	// ErrOrderNotFound indicates the order is absent or terminal.
	ErrOrderNotFound = errors.New("stock: order not found")
	// ErrInsufficientStock indicates available headroom is below the requested quantity.
	ErrInsufficientStock = errors.New("stock: insufficient available stock")
	// ErrInsufficientReserved indicates fewer units are held than requested.
	ErrInsufficientReserved = errors.New("stock: insufficient reserved stock")
	// ErrLineNotOwned indicates an allocation line that is not on the order.
	ErrLineNotOwned = errors.New("stock: line not owned by order")
	// ErrStockConflict indicates a conditional write matched zero rows because
	// state changed between read and write. Callers may re-read and retry.
	ErrStockConflict = errors.New("stock: concurrent modification")
	// ErrInvalidQuantity indicates a non-positive quantity or zero delta.
	ErrInvalidQuantity = errors.New("stock: quantity must be positive")
	// ErrReferenceRequired indicates an operation that is only safe with an
	// external reference was called without one.
	ErrReferenceRequired = errors.New("stock: reference id required")
)
