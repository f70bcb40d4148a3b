package stock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetState(ctx context.Context, variantID uuid.UUID) (State, error)
	ListLedger(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error)
}

// OrderLookup is the read-only order collaborator consumed by allocation.
type OrderLookup interface {
	Lookup(ctx context.Context, orderID uuid.UUID) (OrderInfo, error)
}

// VariantLookup is the read-only catalog collaborator.
type VariantLookup interface {
	Exists(ctx context.Context, variantID uuid.UUID) (bool, error)
}

// IntegrationHandler receives movement events after a mutation commits.
type IntegrationHandler interface {
	HandleStockMoved(ctx context.Context, evt StockMovedEvent) error
}

// MetricsPort records operation outcomes.
type MetricsPort interface {
	ObserveOperation(operation, outcome string)
}

// Service coordinates the reservation, allocation and adjustment engines.
// It holds no mutable state of its own; all contention is resolved by the
// conditional writes in the repository.
type Service struct {
	logger  *slog.Logger
	repo    RepositoryPort
	guard   *Guard
	orders  OrderLookup
	catalog VariantLookup
	hooks   IntegrationHandler
	metrics MetricsPort
}

// NewService builds Service.
func NewService(logger *slog.Logger, repo RepositoryPort, guard *Guard, orders OrderLookup, catalog VariantLookup, hooks IntegrationHandler, metrics MetricsPort) *Service {
	return &Service{logger: logger, repo: repo, guard: guard, orders: orders, catalog: catalog, hooks: hooks, metrics: metrics}
}

// errAlreadyApplied aborts a transaction whose ledger append hit the unique
// index backstop: a concurrent call recorded the same tuple first.
var errAlreadyApplied = errors.New("stock: operation already applied")

// Reserve promises quantity to an order without moving physical stock.
func (s *Service) Reserve(ctx context.Context, input MovementInput) error {
	if input.Quantity <= 0 {
		return s.observe("reserve", ErrInvalidQuantity)
	}
	if input.Reason == "" {
		input.Reason = ReasonReservationHold
	}
	applied, err := s.guard.AlreadyApplied(ctx, input.ReferenceID, input.Reason, input.VariantID)
	if err != nil {
		return s.observe("reserve", err)
	}
	if applied {
		s.observeOutcome("reserve", "duplicate")
		return nil
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		st, err := s.resolveState(ctx, tx, input.VariantID)
		if err != nil {
			return err
		}
		if st.Available() < input.Quantity {
			return ErrInsufficientStock
		}
		matched, err := tx.ReserveStock(ctx, input.VariantID, input.Quantity)
		if err != nil {
			return err
		}
		if !matched {
			return ErrStockConflict
		}
		return appendEntry(ctx, tx, LedgerEntry{
			VariantID:   input.VariantID,
			Reason:      input.Reason,
			ReferenceID: input.ReferenceID,
		})
	})
	if errors.Is(err, errAlreadyApplied) {
		s.observeOutcome("reserve", "duplicate")
		return nil
	}
	if err != nil {
		return s.observe("reserve", err)
	}
	s.emit(ctx, input.VariantID, 0, input.Reason)
	return s.observe("reserve", nil)
}

// Release frees promised quantity that will not ship.
func (s *Service) Release(ctx context.Context, input MovementInput) error {
	if input.Quantity <= 0 {
		return s.observe("release", ErrInvalidQuantity)
	}
	if input.Reason == "" {
		input.Reason = ReasonReservationRelease
	}
	applied, err := s.guard.AlreadyApplied(ctx, input.ReferenceID, input.Reason, input.VariantID)
	if err != nil {
		return s.observe("release", err)
	}
	if applied {
		s.observeOutcome("release", "duplicate")
		return nil
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		st, err := tx.GetState(ctx, input.VariantID)
		if err != nil {
			return err
		}
		if st.Reserved < input.Quantity {
			return ErrInsufficientReserved
		}
		matched, err := tx.ReleaseStock(ctx, input.VariantID, input.Quantity)
		if err != nil {
			return err
		}
		if !matched {
			return ErrStockConflict
		}
		return appendEntry(ctx, tx, LedgerEntry{
			VariantID:   input.VariantID,
			Reason:      input.Reason,
			ReferenceID: input.ReferenceID,
		})
	})
	if errors.Is(err, errAlreadyApplied) {
		s.observeOutcome("release", "duplicate")
		return nil
	}
	if err != nil {
		return s.observe("release", err)
	}
	s.emit(ctx, input.VariantID, 0, input.Reason)
	return s.observe("release", nil)
}

// AllocateForOrder converts reservations into permanent decrements for every
// line of one order. Lines already allocated for the order are skipped;
// any other failure rolls the whole batch back.
func (s *Service) AllocateForOrder(ctx context.Context, orderID uuid.UUID, lines []AllocationLine) error {
	if len(lines) == 0 {
		return s.observe("allocate", ErrInvalidQuantity)
	}
	for _, line := range lines {
		if line.Quantity <= 0 {
			return s.observe("allocate", ErrInvalidQuantity)
		}
	}
	order, err := s.orders.Lookup(ctx, orderID)
	if err != nil {
		return s.observe("allocate", err)
	}
	if order.Terminal {
		return s.observe("allocate", ErrOrderNotFound)
	}
	for _, line := range lines {
		ordered, ok := order.Lines[line.VariantID]
		if !ok || line.Quantity > ordered {
			return s.observe("allocate", fmt.Errorf("%w: variant %s", ErrLineNotOwned, line.VariantID))
		}
	}
	var moved []StockMovedEvent
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		moved = moved[:0]
		for _, line := range lines {
			applied, err := tx.HasLedgerEntry(ctx, orderID, ReasonShipmentAllocation, line.VariantID)
			if err != nil {
				return err
			}
			if applied {
				continue
			}
			st, err := tx.GetState(ctx, line.VariantID)
			if err != nil {
				return err
			}
			if st.Reserved < line.Quantity {
				return fmt.Errorf("%w: variant %s", ErrInsufficientReserved, line.VariantID)
			}
			matched, err := tx.AllocateStock(ctx, line.VariantID, line.Quantity)
			if err != nil {
				return err
			}
			if !matched {
				return ErrStockConflict
			}
			ref := orderID
			if err := tx.AppendLedger(ctx, LedgerEntry{
				VariantID:     line.VariantID,
				QuantityDelta: -line.Quantity,
				Reason:        ReasonShipmentAllocation,
				ReferenceID:   &ref,
			}); err != nil {
				if errors.Is(err, ErrDuplicateLedgerEntry) {
					// A concurrent allocation of the same order won this
					// line; abort so a retry observes it via the guard.
					return ErrStockConflict
				}
				return err
			}
			moved = append(moved, StockMovedEvent{
				VariantID: line.VariantID,
				Delta:     -line.Quantity,
				Reason:    ReasonShipmentAllocation,
			})
		}
		return nil
	})
	if err != nil {
		return s.observe("allocate", err)
	}
	for _, evt := range moved {
		s.emit(ctx, evt.VariantID, evt.Delta, evt.Reason)
	}
	return s.observe("allocate", nil)
}

// Adjust applies a signed on-hand correction with no availability guard: the
// caller performing a physical count is authoritative, and a write-off may
// drive on-hand negative.
func (s *Service) Adjust(ctx context.Context, input AdjustmentInput) error {
	if input.Delta == 0 {
		return s.observe("adjust", ErrInvalidQuantity)
	}
	if input.Reason == "" {
		if input.Delta > 0 {
			input.Reason = ReasonReceipt
		} else {
			input.Reason = ReasonWriteOff
		}
	}
	applied, err := s.guard.AlreadyApplied(ctx, input.ReferenceID, input.Reason, input.VariantID)
	if err != nil {
		return s.observe("adjust", err)
	}
	if applied {
		s.observeOutcome("adjust", "duplicate")
		return nil
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := s.addOnHand(ctx, tx, input.VariantID, input.Delta); err != nil {
			return err
		}
		return appendEntry(ctx, tx, LedgerEntry{
			VariantID:     input.VariantID,
			QuantityDelta: input.Delta,
			Reason:        input.Reason,
			ReferenceID:   input.ReferenceID,
		})
	})
	if errors.Is(err, errAlreadyApplied) {
		s.observeOutcome("adjust", "duplicate")
		return nil
	}
	if err != nil {
		return s.observe("adjust", err)
	}
	s.emit(ctx, input.VariantID, input.Delta, input.Reason)
	return s.observe("adjust", nil)
}

// ReturnReceipt puts a returned unit back on-hand. Reserved is untouched: a
// returned unit is not promised to any order.
func (s *Service) ReturnReceipt(ctx context.Context, input MovementInput) error {
	if input.Quantity <= 0 {
		return s.observe("return_receipt", ErrInvalidQuantity)
	}
	if input.ReferenceID == nil {
		return s.observe("return_receipt", ErrReferenceRequired)
	}
	if input.Reason == "" {
		input.Reason = ReasonReturnReceipt
	}
	applied, err := s.guard.AlreadyApplied(ctx, input.ReferenceID, input.Reason, input.VariantID)
	if err != nil {
		return s.observe("return_receipt", err)
	}
	if applied {
		s.observeOutcome("return_receipt", "duplicate")
		return nil
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := s.addOnHand(ctx, tx, input.VariantID, input.Quantity); err != nil {
			return err
		}
		return appendEntry(ctx, tx, LedgerEntry{
			VariantID:     input.VariantID,
			QuantityDelta: input.Quantity,
			Reason:        input.Reason,
			ReferenceID:   input.ReferenceID,
		})
	})
	if errors.Is(err, errAlreadyApplied) {
		s.observeOutcome("return_receipt", "duplicate")
		return nil
	}
	if err != nil {
		return s.observe("return_receipt", err)
	}
	s.emit(ctx, input.VariantID, input.Quantity, input.Reason)
	return s.observe("return_receipt", nil)
}

// GetState returns the current counters for a variant.
func (s *Service) GetState(ctx context.Context, variantID uuid.UUID) (State, error) {
	return s.repo.GetState(ctx, variantID)
}

// ListLedger lists movement history.
func (s *Service) ListLedger(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error) {
	if filter.VariantID == uuid.Nil {
		return nil, errors.New("stock: variant required")
	}
	return s.repo.ListLedger(ctx, filter)
}

// resolveState reads the counters, seeding a zeroed row for variants that
// exist in the catalog but predate the engine.
func (s *Service) resolveState(ctx context.Context, tx TxRepository, variantID uuid.UUID) (State, error) {
	st, err := tx.GetState(ctx, variantID)
	if err == nil || !errors.Is(err, ErrVariantNotFound) {
		return st, err
	}
	if s.catalog == nil {
		return State{}, ErrVariantNotFound
	}
	exists, err := s.catalog.Exists(ctx, variantID)
	if err != nil {
		return State{}, err
	}
	if !exists {
		return State{}, ErrVariantNotFound
	}
	if err := tx.EnsureState(ctx, variantID); err != nil {
		return State{}, err
	}
	return tx.GetState(ctx, variantID)
}

func (s *Service) addOnHand(ctx context.Context, tx TxRepository, variantID uuid.UUID, delta int64) error {
	matched, err := tx.AddOnHand(ctx, variantID, delta)
	if err != nil {
		return err
	}
	if matched {
		return nil
	}
	if _, err := s.resolveState(ctx, tx, variantID); err != nil {
		return err
	}
	matched, err = tx.AddOnHand(ctx, variantID, delta)
	if err != nil {
		return err
	}
	if !matched {
		return ErrVariantNotFound
	}
	return nil
}

func appendEntry(ctx context.Context, tx TxRepository, entry LedgerEntry) error {
	if err := tx.AppendLedger(ctx, entry); err != nil {
		if errors.Is(err, ErrDuplicateLedgerEntry) {
			return errAlreadyApplied
		}
		return err
	}
	return nil
}

// emit notifies integrations after commit. The mutation is already durable,
// so a failing hook is logged and never surfaced to the caller.
func (s *Service) emit(ctx context.Context, variantID uuid.UUID, delta int64, reason Reason) {
	if s.hooks == nil {
		return
	}
	err := s.hooks.HandleStockMoved(ctx, StockMovedEvent{
		VariantID:  variantID,
		Delta:      delta,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("stock moved hook failed",
			slog.String("variant_id", variantID.String()),
			slog.Any("error", err))
	}
}

func (s *Service) observeOutcome(operation, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(operation, outcome)
	}
}

func (s *Service) observe(operation string, err error) error {
	if s.metrics != nil {
		s.metrics.ObserveOperation(operation, outcomeLabel(err))
	}
	return err
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrStockConflict):
		return "conflict"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrInsufficientReserved):
		return "insufficient_reserved"
	case errors.Is(err, ErrLineNotOwned):
		return "line_not_owned"
	case errors.Is(err, ErrVariantNotFound), errors.Is(err, ErrOrderNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrReferenceRequired):
		return "invalid"
	default:
		return "error"
	}
}
