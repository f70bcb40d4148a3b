package stock

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type memoryRepo struct {
	mu     sync.Mutex
	states map[uuid.UUID]State
	ledger []LedgerEntry
	nextID int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{states: make(map[uuid.UUID]State)}
}

func (r *memoryRepo) seed(variantID uuid.UUID, onHand, reserved int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[variantID] = State{VariantID: variantID, OnHand: onHand, Reserved: reserved}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := make(map[uuid.UUID]State, len(r.states))
	for k, v := range r.states {
		snapshot[k] = v
	}
	ledgerLen := len(r.ledger)
	savedID := r.nextID
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.states = snapshot
		r.ledger = r.ledger[:ledgerLen]
		r.nextID = savedID
		return err
	}
	return nil
}

func (r *memoryRepo) GetState(ctx context.Context, variantID uuid.UUID) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lookupState(r.states, variantID)
}

func (r *memoryRepo) ListLedger(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []LedgerEntry
	for _, entry := range r.ledger {
		if entry.VariantID == filter.VariantID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (r *memoryRepo) HasLedgerEntry(ctx context.Context, referenceID uuid.UUID, reason Reason, variantID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return hasEntry(r.ledger, referenceID, reason, variantID), nil
}

func lookupState(states map[uuid.UUID]State, variantID uuid.UUID) (State, error) {
	if st, ok := states[variantID]; ok {
		return st, nil
	}
	return State{}, ErrVariantNotFound
}

func hasEntry(ledger []LedgerEntry, referenceID uuid.UUID, reason Reason, variantID uuid.UUID) bool {
	for _, entry := range ledger {
		if entry.ReferenceID != nil && *entry.ReferenceID == referenceID && entry.Reason == reason && entry.VariantID == variantID {
			return true
		}
	}
	return false
}

func (tx *memoryTx) GetState(ctx context.Context, variantID uuid.UUID) (State, error) {
	return lookupState(tx.repo.states, variantID)
}

func (tx *memoryTx) EnsureState(ctx context.Context, variantID uuid.UUID) error {
	if _, ok := tx.repo.states[variantID]; !ok {
		tx.repo.states[variantID] = State{VariantID: variantID}
	}
	return nil
}

func (tx *memoryTx) ReserveStock(ctx context.Context, variantID uuid.UUID, qty int64) (bool, error) {
	st, ok := tx.repo.states[variantID]
	if !ok || st.OnHand-st.Reserved < qty {
		return false, nil
	}
	st.Reserved += qty
	tx.repo.states[variantID] = st
	return true, nil
}

func (tx *memoryTx) ReleaseStock(ctx context.Context, variantID uuid.UUID, qty int64) (bool, error) {
	st, ok := tx.repo.states[variantID]
	if !ok || st.Reserved < qty {
		return false, nil
	}
	st.Reserved -= qty
	tx.repo.states[variantID] = st
	return true, nil
}

func (tx *memoryTx) AllocateStock(ctx context.Context, variantID uuid.UUID, qty int64) (bool, error) {
	st, ok := tx.repo.states[variantID]
	if !ok || st.Reserved < qty {
		return false, nil
	}
	st.OnHand -= qty
	st.Reserved -= qty
	tx.repo.states[variantID] = st
	return true, nil
}

func (tx *memoryTx) AddOnHand(ctx context.Context, variantID uuid.UUID, delta int64) (bool, error) {
	st, ok := tx.repo.states[variantID]
	if !ok {
		return false, nil
	}
	st.OnHand += delta
	tx.repo.states[variantID] = st
	return true, nil
}

func (tx *memoryTx) AppendLedger(ctx context.Context, entry LedgerEntry) error {
	if entry.ReferenceID != nil && hasEntry(tx.repo.ledger, *entry.ReferenceID, entry.Reason, entry.VariantID) {
		return ErrDuplicateLedgerEntry
	}
	tx.repo.nextID++
	entry.ID = tx.repo.nextID
	entry.CreatedAt = time.Now().UTC()
	tx.repo.ledger = append(tx.repo.ledger, entry)
	return nil
}

func (tx *memoryTx) HasLedgerEntry(ctx context.Context, referenceID uuid.UUID, reason Reason, variantID uuid.UUID) (bool, error) {
	return hasEntry(tx.repo.ledger, referenceID, reason, variantID), nil
}

// riggedRepo swaps the transactional surface handed to the service, standing
// in for a concurrent writer that beats the current transaction.
type riggedRepo struct {
	*memoryRepo
	rig func(TxRepository) TxRepository
}

func (r *riggedRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.memoryRepo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return fn(ctx, r.rig(tx))
	})
}

// unmatchedReserveTx reports zero rows matched on the reserve write, as when
// another transaction consumed the headroom between read and write.
type unmatchedReserveTx struct {
	TxRepository
}

func (tx unmatchedReserveTx) ReserveStock(ctx context.Context, variantID uuid.UUID, qty int64) (bool, error) {
	return false, nil
}

// duplicateAppendTx hits the ledger unique index, as when a concurrent call
// recorded the same idempotency tuple first.
type duplicateAppendTx struct {
	TxRepository
}

func (tx duplicateAppendTx) AppendLedger(ctx context.Context, entry LedgerEntry) error {
	return ErrDuplicateLedgerEntry
}

type stubOrders struct {
	info OrderInfo
	err  error
}

func (s stubOrders) Lookup(ctx context.Context, orderID uuid.UUID) (OrderInfo, error) {
	if s.err != nil {
		return OrderInfo{}, s.err
	}
	return s.info, nil
}

type stubCatalog struct {
	exists bool
}

func (s stubCatalog) Exists(ctx context.Context, variantID uuid.UUID) (bool, error) {
	return s.exists, nil
}

type eventRecorder struct {
	mu     sync.Mutex
	events []StockMovedEvent
}

func (r *eventRecorder) HandleStockMoved(ctx context.Context, evt StockMovedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *eventRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type metricsRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func newMetricsRecorder() *metricsRecorder {
	return &metricsRecorder{outcomes: make(map[string]int)}
}

func (m *metricsRecorder) ObserveOperation(operation, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[operation+"/"+outcome]++
}

func (m *metricsRecorder) get(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcomes[key]
}

func newTestService(repo *memoryRepo, orders OrderLookup, catalog VariantLookup) (*Service, *eventRecorder, *metricsRecorder) {
	hooks := &eventRecorder{}
	metrics := newMetricsRecorder()
	if orders == nil {
		orders = stubOrders{}
	}
	if catalog == nil {
		catalog = stubCatalog{}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(logger, repo, NewGuard(repo), orders, catalog, hooks, metrics)
	return svc, hooks, metrics
}

func TestReserveInsufficientStock(t *testing.T) {
	repo := newMemoryRepo()
	svc, hooks, metrics := newTestService(repo, nil, nil)
	ctx := context.Background()
	variantID := uuid.New()
	repo.seed(variantID, 5, 0)

	err := svc.Reserve(ctx, MovementInput{VariantID: variantID, Quantity: 10})
	require.ErrorIs(t, err, ErrInsufficientStock)

	st, err := repo.GetState(ctx, variantID)
	require.NoError(t, err)
	require.EqualValues(t, 5, st.OnHand)
	require.EqualValues(t, 0, st.Reserved)
	require.Equal(t, 0, hooks.count())
	require.Equal(t, 1, metrics.get("reserve/insufficient_stock"))

	require.NoError(t, svc.Reserve(ctx, MovementInput{VariantID: variantID, Quantity: 3}))
	st, err = repo.GetState(ctx, variantID)
	require.NoError(t, err)
	require.EqualValues(t, 3, st.Reserved)
	require.EqualValues(t, 2, st.Available())
	require.Equal(t, 1, hooks.count())

	entries, err := repo.ListLedger(ctx, LedgerFilter{VariantID: variantID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, ReasonReservationHold, entries[0].Reason)
	require.EqualValues(t, 0, entries[0].QuantityDelta)
}

func TestReserveIdempotent(t *testing.T) {
	repo := newMemoryRepo()
	svc, hooks, metrics := newTestService(repo, nil, nil)
	ctx := context.Background()
	variantID := uuid.New()
	ref := uuid.New()
	repo.seed(variantID, 10, 0)

	input := MovementInput{VariantID: variantID, Quantity: 4, ReferenceID: &ref}
	require.NoError(t, svc.Reserve(ctx, input))
	require.NoError(t, svc.Reserve(ctx, input))

	st, err := repo.GetState(ctx, variantID)
	require.NoError(t, err)
	require.EqualValues(t, 4, st.Reserved)

	entries, err := repo.ListLedger(ctx, LedgerFilter{VariantID: variantID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, 1, hooks.count())
	require.Equal(t, 1, metrics.get("reserve/duplicate"))
}

func TestReleaseMoreThanHeld(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo, nil, nil)
	ctx := context.Background()
	variantID := uuid.New()
	repo.seed(variantID, 10, 2)

	err := svc.Release(ctx, MovementInput{VariantID: variantID, Quantity: 5})
	require.ErrorIs(t, err, ErrInsufficientReserved)

	st, err := repo.GetState(ctx, variantID)
	require.NoError(t, err)
	require.EqualValues(t, 2, st.Reserved)
}

func TestReserveReleaseRoundTrip(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo, nil, nil)
	ctx := context.Background()
	variantID := uuid.New()
	repo.seed(variantID, 10, 0)

	require.NoError(t, svc.Reserve(ctx, MovementInput{VariantID: variantID, Quantity: 4}))
	require.NoError(t, svc.Release(ctx, MovementInput{VariantID: variantID, Quantity: 4}))

	st, err := repo.GetState(ctx, variantID)
	require.NoError(t, err)
	require.EqualValues(t, 10, st.OnHand)
	require.EqualValues(t, 0, st.Reserved)
	require.EqualValues(t, 10, st.Available())

	entries, err := repo.ListLedger(ctx, LedgerFilter{VariantID: variantID})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, ReasonReservationHold, entries[0].Reason)
	require.Equal(t, ReasonReservationRelease, entries[1].Reason)
}

func TestAllocateForOrder(t *testing.T) {
	repo := newMemoryRepo()
	orderID := uuid.New()
	variantA := uuid.New()
	variantB := uuid.New()
	repo.seed(variantA, 10, 3)
	repo.seed(variantB, 8, 2)
	orders := stubOrders{info: OrderInfo{
		ID:    orderID,
		Lines: map[uuid.UUID]int64{variantA: 3, variantB: 2},
	}}
	svc, hooks, _ := newTestService(repo, orders, nil)
	ctx := context.Background()

	lines := []AllocationLine{
		{VariantID: variantA, Quantity: 3},
		{VariantID: variantB, Quantity: 2},
	}
	require.NoError(t, svc.AllocateForOrder(ctx, orderID, lines))

	stA, err := repo.GetState(ctx, variantA)
	require.NoError(t, err)
	require.EqualValues(t, 7, stA.OnHand)
	require.EqualValues(t, 0, stA.Reserved)
	stB, err := repo.GetState(ctx, variantB)
	require.NoError(t, err)
	require.EqualValues(t, 6, stB.OnHand)
	require.EqualValues(t, 0, stB.Reserved)
	require.Equal(t, 2, hooks.count())

	// Redelivered allocation must change nothing.
	require.NoError(t, svc.AllocateForOrder(ctx, orderID, lines))
	stA, err = repo.GetState(ctx, variantA)
	require.NoError(t, err)
	require.EqualValues(t, 7, stA.OnHand)
	require.EqualValues(t, 0, stA.Reserved)
	require.Equal(t, 2, hooks.count())

	entries, err := repo.ListLedger(ctx, LedgerFilter{VariantID: variantA})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, ReasonShipmentAllocation, entries[0].Reason)
	require.EqualValues(t, -3, entries[0].QuantityDelta)
	require.NotNil(t, entries[0].ReferenceID)
	require.Equal(t, orderID, *entries[0].ReferenceID)
}

func TestAllocateLineNotOwned(t *testing.T) {
	repo := newMemoryRepo()
	orderID := uuid.New()
	variantID := uuid.New()
	other := uuid.New()
	repo.seed(variantID, 10, 5)
	orders := stubOrders{info: OrderInfo{
		ID:    orderID,
		Lines: map[uuid.UUID]int64{variantID: 2},
	}}
	svc, _, _ := newTestService(repo, orders, nil)
	ctx := context.Background()

	err := svc.AllocateForOrder(ctx, orderID, []AllocationLine{{VariantID: other, Quantity: 1}})
	require.ErrorIs(t, err, ErrLineNotOwned)

	err = svc.AllocateForOrder(ctx, orderID, []AllocationLine{{VariantID: variantID, Quantity: 3}})
	require.ErrorIs(t, err, ErrLineNotOwned)

	st, err := repo.GetState(ctx, variantID)
	require.NoError(t, err)
	require.EqualValues(t, 10, st.OnHand)
	require.EqualValues(t, 5, st.Reserved)
}

func TestAllocateTerminalOrder(t *testing.T) {
	repo := newMemoryRepo()
	orderID := uuid.New()
	variantID := uuid.New()
	repo.seed(variantID, 10, 5)
	orders := stubOrders{info: OrderInfo{
		ID:       orderID,
		Terminal: true,
		Lines:    map[uuid.UUID]int64{variantID: 2},
	}}
	svc, _, _ := newTestService(repo, orders, nil)

	err := svc.AllocateForOrder(context.Background(), orderID, []AllocationLine{{VariantID: variantID, Quantity: 2}})
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestAllocateRollsBackWholeBatch(t *testing.T) {
	repo := newMemoryRepo()
	orderID := uuid.New()
	variantA := uuid.New()
	variantB := uuid.New()
	repo.seed(variantA, 10, 3)
	repo.seed(variantB, 8, 0)
	orders := stubOrders{info: OrderInfo{
		ID:    orderID,
		Lines: map[uuid.UUID]int64{variantA: 3, variantB: 2},
	}}
	svc, hooks, _ := newTestService(repo, orders, nil)
	ctx := context.Background()

	err := svc.AllocateForOrder(ctx, orderID, []AllocationLine{
		{VariantID: variantA, Quantity: 3},
		{VariantID: variantB, Quantity: 2},
	})
	require.ErrorIs(t, err, ErrInsufficientReserved)

	stA, err := repo.GetState(ctx, variantA)
	require.NoError(t, err)
	require.EqualValues(t, 10, stA.OnHand)
	require.EqualValues(t, 3, stA.Reserved)
	require.Equal(t, 0, hooks.count())

	entries, err := repo.ListLedger(ctx, LedgerFilter{VariantID: variantA})
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestAdjustAllowsNegativeOnHand(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo, nil, stubCatalog{exists: true})
	ctx := context.Background()
	variantID := uuid.New()

	// First receipt seeds the state row through the catalog lookup.
	require.NoError(t, svc.Adjust(ctx, AdjustmentInput{VariantID: variantID, Delta: 20}))
	st, err := repo.GetState(ctx, variantID)
	require.NoError(t, err)
	require.EqualValues(t, 20, st.OnHand)

	require.NoError(t, svc.Adjust(ctx, AdjustmentInput{VariantID: variantID, Delta: -30}))
	st, err = repo.GetState(ctx, variantID)
	require.NoError(t, err)
	require.EqualValues(t, -10, st.OnHand)

	entries, err := repo.ListLedger(ctx, LedgerFilter{VariantID: variantID})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, ReasonReceipt, entries[0].Reason)
	require.Equal(t, ReasonWriteOff, entries[1].Reason)
}

func TestAdjustUnknownVariant(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo, nil, stubCatalog{exists: false})

	err := svc.Adjust(context.Background(), AdjustmentInput{VariantID: uuid.New(), Delta: 5})
	require.ErrorIs(t, err, ErrVariantNotFound)
}

func TestReturnReceipt(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, metrics := newTestService(repo, nil, nil)
	ctx := context.Background()
	variantID := uuid.New()
	ref := uuid.New()
	repo.seed(variantID, 5, 2)

	err := svc.ReturnReceipt(ctx, MovementInput{VariantID: variantID, Quantity: 1})
	require.ErrorIs(t, err, ErrReferenceRequired)

	input := MovementInput{VariantID: variantID, Quantity: 1, ReferenceID: &ref}
	require.NoError(t, svc.ReturnReceipt(ctx, input))
	require.NoError(t, svc.ReturnReceipt(ctx, input))

	st, err := repo.GetState(ctx, variantID)
	require.NoError(t, err)
	require.EqualValues(t, 6, st.OnHand)
	require.EqualValues(t, 2, st.Reserved)
	require.Equal(t, 1, metrics.get("return_receipt/duplicate"))
}

func TestParallelReserveNoOversell(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo, nil, nil)
	ctx := context.Background()
	variantID := uuid.New()
	repo.seed(variantID, 5, 0)

	var succeeded, rejected int64
	var mu sync.Mutex
	var g errgroup.Group
	for i := 0; i < 10; i++ {
		g.Go(func() error {
			err := svc.Reserve(ctx, MovementInput{VariantID: variantID, Quantity: 1})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrInsufficientStock):
				rejected++
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.EqualValues(t, 5, succeeded)
	require.EqualValues(t, 5, rejected)

	st, err := repo.GetState(ctx, variantID)
	require.NoError(t, err)
	require.EqualValues(t, 5, st.Reserved)
	require.EqualValues(t, 0, st.Available())
}

func TestReserveLostRaceIsConflict(t *testing.T) {
	inner := newMemoryRepo()
	variantID := uuid.New()
	inner.seed(variantID, 10, 0)
	repo := &riggedRepo{memoryRepo: inner, rig: func(tx TxRepository) TxRepository {
		return unmatchedReserveTx{tx}
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := newMetricsRecorder()
	svc := NewService(logger, repo, NewGuard(inner), stubOrders{}, stubCatalog{}, nil, metrics)

	err := svc.Reserve(context.Background(), MovementInput{VariantID: variantID, Quantity: 3})
	require.ErrorIs(t, err, ErrStockConflict)
	require.Equal(t, 1, metrics.get("reserve/conflict"))

	st, err := inner.GetState(context.Background(), variantID)
	require.NoError(t, err)
	require.EqualValues(t, 0, st.Reserved)
}

func TestReserveDuplicateAppendIsSilent(t *testing.T) {
	inner := newMemoryRepo()
	variantID := uuid.New()
	ref := uuid.New()
	inner.seed(variantID, 10, 0)
	repo := &riggedRepo{memoryRepo: inner, rig: func(tx TxRepository) TxRepository {
		return duplicateAppendTx{tx}
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hooks := &eventRecorder{}
	metrics := newMetricsRecorder()
	svc := NewService(logger, repo, NewGuard(inner), stubOrders{}, stubCatalog{}, hooks, metrics)

	err := svc.Reserve(context.Background(), MovementInput{VariantID: variantID, Quantity: 3, ReferenceID: &ref})
	require.NoError(t, err)
	require.Equal(t, 1, metrics.get("reserve/duplicate"))
	require.Equal(t, 0, hooks.count())

	// The transaction rolled back; the winner's state is untouched here.
	st, err := inner.GetState(context.Background(), variantID)
	require.NoError(t, err)
	require.EqualValues(t, 0, st.Reserved)
}

func TestAllocateDuplicateAppendIsConflict(t *testing.T) {
	inner := newMemoryRepo()
	orderID := uuid.New()
	variantID := uuid.New()
	inner.seed(variantID, 10, 3)
	repo := &riggedRepo{memoryRepo: inner, rig: func(tx TxRepository) TxRepository {
		return duplicateAppendTx{tx}
	}}
	orders := stubOrders{info: OrderInfo{
		ID:    orderID,
		Lines: map[uuid.UUID]int64{variantID: 3},
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hooks := &eventRecorder{}
	metrics := newMetricsRecorder()
	svc := NewService(logger, repo, NewGuard(inner), orders, stubCatalog{}, hooks, metrics)

	err := svc.AllocateForOrder(context.Background(), orderID, []AllocationLine{{VariantID: variantID, Quantity: 3}})
	require.ErrorIs(t, err, ErrStockConflict)
	require.Equal(t, 1, metrics.get("allocate/conflict"))
	require.Equal(t, 0, hooks.count())

	st, err := inner.GetState(context.Background(), variantID)
	require.NoError(t, err)
	require.EqualValues(t, 10, st.OnHand)
	require.EqualValues(t, 3, st.Reserved)
}

type failingHooks struct{}

func (failingHooks) HandleStockMoved(ctx context.Context, evt StockMovedEvent) error {
	return errors.New("integration down")
}

func TestHookFailureDoesNotFailOperation(t *testing.T) {
	repo := newMemoryRepo()
	variantID := uuid.New()
	repo.seed(variantID, 10, 0)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := newMetricsRecorder()
	svc := NewService(logger, repo, NewGuard(repo), stubOrders{}, stubCatalog{}, failingHooks{}, metrics)

	require.NoError(t, svc.Reserve(context.Background(), MovementInput{VariantID: variantID, Quantity: 2}))
	require.Equal(t, 1, metrics.get("reserve/success"))

	st, err := repo.GetState(context.Background(), variantID)
	require.NoError(t, err)
	require.EqualValues(t, 2, st.Reserved)
}

func TestLedgerSumMatchesOnHand(t *testing.T) {
	repo := newMemoryRepo()
	orderID := uuid.New()
	variantID := uuid.New()
	orders := stubOrders{info: OrderInfo{
		ID:    orderID,
		Lines: map[uuid.UUID]int64{variantID: 2},
	}}
	svc, _, _ := newTestService(repo, orders, stubCatalog{exists: true})
	ctx := context.Background()

	require.NoError(t, svc.Adjust(ctx, AdjustmentInput{VariantID: variantID, Delta: 10}))
	require.NoError(t, svc.Reserve(ctx, MovementInput{VariantID: variantID, Quantity: 2}))
	require.NoError(t, svc.AllocateForOrder(ctx, orderID, []AllocationLine{{VariantID: variantID, Quantity: 2}}))
	ref := uuid.New()
	require.NoError(t, svc.ReturnReceipt(ctx, MovementInput{VariantID: variantID, Quantity: 1, ReferenceID: &ref}))

	st, err := repo.GetState(ctx, variantID)
	require.NoError(t, err)

	entries, err := repo.ListLedger(ctx, LedgerFilter{VariantID: variantID})
	require.NoError(t, err)
	var sum int64
	for _, entry := range entries {
		sum += entry.QuantityDelta
	}
	require.Equal(t, st.OnHand, sum)
}
