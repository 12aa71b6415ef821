package postgres

import (
	"context"
	"fmt"

	"github.com/utafrali/orderservice/internal/domain"
	"github.com/utafrali/orderservice/pkg/database"
)

// SagaLogRepository implements repository.SagaLogRepository using
// PostgreSQL. The journal is append-only.
type SagaLogRepository struct {
	pool database.DBTX
}

// NewSagaLogRepository creates a new PostgreSQL-backed saga log repository.
func NewSagaLogRepository(pool database.DBTX) *SagaLogRepository {
	return &SagaLogRepository{pool: pool}
}

// Append records one saga step.
func (r *SagaLogRepository) Append(ctx context.Context, e *domain.SagaLogEntry) error {
	query := `
		INSERT INTO checkout_saga_log (id, checkout_id, cart_id, step, product_id, quantity, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		e.ID,
		e.CheckoutID,
		e.CartID,
		e.Step,
		e.ProductID,
		e.Quantity,
		e.Detail,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert saga log entry: %w", err)
	}

	return nil
}

// ListByCheckoutID returns all entries of one checkout run in append order.
func (r *SagaLogRepository) ListByCheckoutID(ctx context.Context, checkoutID string) ([]domain.SagaLogEntry, error) {
	query := `
		SELECT id, checkout_id, cart_id, step, product_id, quantity, detail, created_at
		FROM checkout_saga_log
		WHERE checkout_id = $1
		ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query, checkoutID)
	if err != nil {
		return nil, fmt.Errorf("list saga log entries: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.SagaLogEntry, 0)
	for rows.Next() {
		var e domain.SagaLogEntry
		if err := rows.Scan(
			&e.ID,
			&e.CheckoutID,
			&e.CartID,
			&e.Step,
			&e.ProductID,
			&e.Quantity,
			&e.Detail,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan saga log entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate saga log rows: %w", err)
	}

	return entries, nil
}
