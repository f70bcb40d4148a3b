package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-oms/stockcore/internal/platform/db"
)

// Repository persists variants in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts the variant and seeds its zeroed stock counters in one
// transaction, so the stock state exists from the moment the variant does.
func (r *Repository) Create(ctx context.Context, variant Variant) error {
	if r == nil {
		return errors.New("catalog repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO variants (id, sku, name, active, created_at)
VALUES ($1,$2,$3,$4,NOW())`, variant.ID, variant.SKU, variant.Name, variant.Active)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrDuplicateSKU
			}
			return err
		}
		_, err = tx.Exec(ctx, `INSERT INTO variant_stock (variant_id, on_hand, reserved, updated_at)
VALUES ($1, 0, 0, NOW())`, variant.ID)
		return err
	})
}

// Get fetches one variant.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Variant, error) {
	if r == nil {
		return Variant{}, errors.New("catalog repository not initialised")
	}
	var v Variant
	err := r.pool.QueryRow(ctx, `SELECT id, sku, name, active, created_at FROM variants WHERE id=$1`, id).
		Scan(&v.ID, &v.SKU, &v.Name, &v.Active, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Variant{}, ErrVariantNotFound
		}
		return Variant{}, err
	}
	return v, nil
}

// Exists reports whether the variant id is known. Used by the stock engine as
// its catalog lookup.
func (r *Repository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	if r == nil {
		return false, errors.New("catalog repository not initialised")
	}
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM variants WHERE id=$1)`, id).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
