package stock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists stock state and the ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations used by the service.
// Every mutation embeds its own precondition and reports whether the write
// matched a row, so losing a race is a typed outcome rather than an inferred
// zero-row count.
type TxRepository interface {
	GetState(ctx context.Context, variantID uuid.UUID) (State, error)
	EnsureState(ctx context.Context, variantID uuid.UUID) error
	ReserveStock(ctx context.Context, variantID uuid.UUID, qty int64) (bool, error)
	ReleaseStock(ctx context.Context, variantID uuid.UUID, qty int64) (bool, error)
	AllocateStock(ctx context.Context, variantID uuid.UUID, qty int64) (bool, error)
	AddOnHand(ctx context.Context, variantID uuid.UUID, delta int64) (bool, error)
	AppendLedger(ctx context.Context, entry LedgerEntry) error
	HasLedgerEntry(ctx context.Context, referenceID uuid.UUID, reason Reason, variantID uuid.UUID) (bool, error)
}

type txRepository struct {
	tx pgx.Tx
}

// ErrDuplicateLedgerEntry indicates the (reference, reason, variant) tuple was
// already recorded; the operation must be treated as applied.
var ErrDuplicateLedgerEntry = errors.New("stock: ledger entry already recorded")

// WithTx executes the callback inside a repeatable-read transaction. The state
// mutation and its ledger append commit together or not at all.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("stock repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return conflictError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return conflictError(err)
	}
	return nil
}

// conflictError maps serialization failures (40001) and deadlocks (40P01) to
// the typed conflict outcome. At repeatable read a raced conditional write
// aborts with 40001 instead of matching zero rows, so both raise the same
// retryable signal as a zero-row match.
func conflictError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01") {
		return ErrStockConflict
	}
	return err
}

// GetState reads the counters outside a transaction.
func (r *Repository) GetState(ctx context.Context, variantID uuid.UUID) (State, error) {
	if r == nil {
		return State{}, errors.New("stock repository not initialised")
	}
	return scanState(ctx, r.pool, variantID)
}

// HasLedgerEntry reports whether the idempotency tuple was already recorded.
func (r *Repository) HasLedgerEntry(ctx context.Context, referenceID uuid.UUID, reason Reason, variantID uuid.UUID) (bool, error) {
	if r == nil {
		return false, errors.New("stock repository not initialised")
	}
	return scanLedgerExists(ctx, r.pool, referenceID, reason, variantID)
}

// ListLedger returns movement history for a variant, oldest first.
func (r *Repository) ListLedger(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error) {
	if r == nil {
		return nil, errors.New("stock repository not initialised")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, variant_id, quantity_delta, reason, reference_id, created_at
FROM stock_ledger
WHERE variant_id=$1 AND created_at BETWEEN COALESCE($2, '-infinity') AND COALESCE($3, 'infinity')
ORDER BY created_at ASC, id ASC
LIMIT $4`, filter.VariantID, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []LedgerEntry{}
	for rows.Next() {
		var entry LedgerEntry
		if err := rows.Scan(&entry.ID, &entry.VariantID, &entry.QuantityDelta, &entry.Reason, &entry.ReferenceID, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *txRepository) GetState(ctx context.Context, variantID uuid.UUID) (State, error) {
	return scanState(ctx, r.tx, variantID)
}

// EnsureState seeds a zeroed counters row for a variant that predates the
// engine. No-op when the row already exists.
func (r *txRepository) EnsureState(ctx context.Context, variantID uuid.UUID) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO variant_stock (variant_id, on_hand, reserved, updated_at)
VALUES ($1, 0, 0, NOW())
ON CONFLICT (variant_id) DO NOTHING`, variantID)
	return err
}

// ReserveStock increments reserved only while on_hand - reserved still covers
// the quantity, guarding the headroom against concurrent reservations.
func (r *txRepository) ReserveStock(ctx context.Context, variantID uuid.UUID, qty int64) (bool, error) {
	tag, err := r.tx.Exec(ctx, `UPDATE variant_stock
SET reserved = reserved + $2, updated_at = NOW()
WHERE variant_id = $1 AND on_hand - reserved >= $2`, variantID, qty)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *txRepository) ReleaseStock(ctx context.Context, variantID uuid.UUID, qty int64) (bool, error) {
	tag, err := r.tx.Exec(ctx, `UPDATE variant_stock
SET reserved = reserved - $2, updated_at = NOW()
WHERE variant_id = $1 AND reserved >= $2`, variantID, qty)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// AllocateStock moves reserved units out of on-hand. The reserved guard keeps
// an unreserved sale from stealing fulfillment held for another order.
func (r *txRepository) AllocateStock(ctx context.Context, variantID uuid.UUID, qty int64) (bool, error) {
	tag, err := r.tx.Exec(ctx, `UPDATE variant_stock
SET on_hand = on_hand - $2, reserved = reserved - $2, updated_at = NOW()
WHERE variant_id = $1 AND reserved >= $2`, variantID, qty)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// AddOnHand applies a signed correction with no availability guard. The
// matched result is false only when the variant row is missing.
func (r *txRepository) AddOnHand(ctx context.Context, variantID uuid.UUID, delta int64) (bool, error) {
	tag, err := r.tx.Exec(ctx, `UPDATE variant_stock
SET on_hand = on_hand + $2, updated_at = NOW()
WHERE variant_id = $1`, variantID, delta)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *txRepository) AppendLedger(ctx context.Context, entry LedgerEntry) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_ledger (variant_id, quantity_delta, reason, reference_id, created_at)
VALUES ($1,$2,$3,$4,NOW())`, entry.VariantID, entry.QuantityDelta, string(entry.Reason), entry.ReferenceID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateLedgerEntry
		}
		return err
	}
	return nil
}

func (r *txRepository) HasLedgerEntry(ctx context.Context, referenceID uuid.UUID, reason Reason, variantID uuid.UUID) (bool, error) {
	return scanLedgerExists(ctx, r.tx, referenceID, reason, variantID)
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanState(ctx context.Context, q queryRower, variantID uuid.UUID) (State, error) {
	var st State
	err := q.QueryRow(ctx, `SELECT variant_id, on_hand, reserved, updated_at FROM variant_stock WHERE variant_id=$1`, variantID).
		Scan(&st.VariantID, &st.OnHand, &st.Reserved, &st.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return State{VariantID: variantID}, ErrVariantNotFound
		}
		return State{}, err
	}
	return st, nil
}

func scanLedgerExists(ctx context.Context, q queryRower, referenceID uuid.UUID, reason Reason, variantID uuid.UUID) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM stock_ledger WHERE reference_id=$1 AND reason=$2 AND variant_id=$3)`,
		referenceID, string(reason), variantID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
