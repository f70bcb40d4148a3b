package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads sales orders from PostgreSQL. The engine never writes
// order data; status advancement stays with the order service.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get fetches one order with its lines.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Order, error) {
	if r == nil {
		return Order{}, errors.New("orders repository not initialised")
	}
	var order Order
	err := r.pool.QueryRow(ctx, `SELECT id, status, created_at FROM sales_orders WHERE id=$1`, id).
		Scan(&order.ID, &order.Status, &order.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT variant_id, quantity FROM sales_order_lines WHERE order_id=$1 ORDER BY variant_id`, id)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.VariantID, &line.Quantity); err != nil {
			return Order{}, err
		}
		order.Lines = append(order.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return Order{}, err
	}
	return order, nil
}
