package stock

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// LedgerLookup is the read surface the guard needs.
type LedgerLookup interface {
	HasLedgerEntry(ctx context.Context, referenceID uuid.UUID, reason Reason, variantID uuid.UUID) (bool, error)
}

// Guard detects operations already recorded under the same external
// reference. Every engine that accepts a reference consults it before
// mutating state, so at-least-once redelivery from upstream callers becomes a
// silent no-op instead of a double application.
type Guard struct {
	ledger LedgerLookup
}

// NewGuard constructs the guard over a ledger lookup.
func NewGuard(ledger LedgerLookup) *Guard {
	return &Guard{ledger: ledger}
}

// AlreadyApplied reports whether the (reference, reason, variant) tuple was
// recorded by a previous successful operation. A nil reference never matches:
// unreferenced operations carry no replay identity.
func (g *Guard) AlreadyApplied(ctx context.Context, referenceID *uuid.UUID, reason Reason, variantID uuid.UUID) (bool, error) {
	if g == nil || g.ledger == nil {
		return false, errors.New("stock: idempotency guard not initialised")
	}
	if referenceID == nil {
		return false, nil
	}
	return g.ledger.HasLedgerEntry(ctx, *referenceID, reason, variantID)
}
