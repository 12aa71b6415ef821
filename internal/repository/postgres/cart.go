package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/orderservice/internal/domain"
	"github.com/utafrali/orderservice/pkg/database"
	apperrors "github.com/utafrali/orderservice/pkg/errors"
)

// CartRepository implements repository.CartRepository using PostgreSQL.
//
// Item mutations run inside a transaction that also performs a
// check-and-increment on the cart version. If the version no longer
// matches (or the target item row is gone), the transaction is rolled
// back and false is returned, which the service layer surfaces as a
// conflict.
type CartRepository struct {
	pool database.DBTX
}

// NewCartRepository creates a new PostgreSQL-backed cart repository.
func NewCartRepository(pool database.DBTX) *CartRepository {
	return &CartRepository{pool: pool}
}

// Create inserts a new empty cart.
func (r *CartRepository) Create(ctx context.Context, c *domain.Cart) error {
	query := `
		INSERT INTO carts (id, version, created_at)
		VALUES ($1, $2, $3)`

	if _, err := r.pool.Exec(ctx, query, c.ID, c.Version, c.CreatedAt); err != nil {
		return fmt.Errorf("insert cart: %w", err)
	}

	return nil
}

// GetByID retrieves a cart by its ID, eagerly loading its items in a
// single query using LEFT JOIN + JSONB_AGG. Items come back in the
// order they were added, which fixes the purchase order at checkout.
func (r *CartRepository) GetByID(ctx context.Context, id string) (*domain.Cart, error) {
	cartQuery := `
		SELECT
			c.id, c.version, c.created_at,
			COALESCE(
				JSONB_AGG(
					JSONB_BUILD_OBJECT(
						'id', ci.id,
						'cart_id', ci.cart_id,
						'product_id', ci.product_id,
						'quantity', ci.quantity,
						'price_at_purchase', ci.price_at_purchase,
						'created_at', ci.created_at
					) ORDER BY ci.created_at, ci.id
				) FILTER (WHERE ci.id IS NOT NULL),
				'[]'::jsonb
			) AS items
		FROM carts c
		LEFT JOIN cart_items ci ON c.id = ci.cart_id
		WHERE c.id = $1
		GROUP BY c.id, c.version, c.created_at`

	var (
		c         domain.Cart
		itemsJSON []byte
	)

	err := r.pool.QueryRow(ctx, cartQuery, id).Scan(
		&c.ID,
		&c.Version,
		&c.CreatedAt,
		&itemsJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan cart: %w", err)
	}

	if len(itemsJSON) > 0 && string(itemsJSON) != "null" && string(itemsJSON) != "[]" {
		if err := json.Unmarshal(itemsJSON, &c.Items); err != nil {
			return nil, fmt.Errorf("unmarshal cart items: %w", err)
		}
	} else {
		c.Items = []domain.CartItem{}
	}

	return &c, nil
}

// List returns a page of carts with the total count.
func (r *CartRepository) List(ctx context.Context, page, perPage int) ([]domain.Cart, int, error) {
	limit := perPage
	if limit <= 0 {
		limit = 10
	}
	offset := 0
	if page > 1 {
		offset = (page - 1) * limit
	}

	// Use count(*) OVER() for total count in a single query.
	query := `
		SELECT id, version, created_at,
			   count(*) OVER() AS total_count
		FROM carts
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list carts: %w", err)
	}
	defer rows.Close()

	var totalCount int
	carts := make([]domain.Cart, 0)

	for rows.Next() {
		var c domain.Cart
		if err := rows.Scan(&c.ID, &c.Version, &c.CreatedAt, &totalCount); err != nil {
			return nil, 0, fmt.Errorf("scan cart row: %w", err)
		}
		carts = append(carts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate cart rows: %w", err)
	}

	// Batch-load items for all carts in a single query to avoid N+1.
	if len(carts) > 0 {
		cartIDs := make([]string, len(carts))
		for i := range carts {
			cartIDs[i] = carts[i].ID
		}

		itemsQuery := `
			SELECT id, cart_id, product_id, quantity, price_at_purchase, created_at
			FROM cart_items
			WHERE cart_id = ANY($1)
			ORDER BY created_at, id`

		itemRows, err := r.pool.Query(ctx, itemsQuery, cartIDs)
		if err != nil {
			return nil, 0, fmt.Errorf("batch load cart items: %w", err)
		}
		defer itemRows.Close()

		itemsByCartID := make(map[string][]domain.CartItem, len(carts))
		for itemRows.Next() {
			var item domain.CartItem
			if err := itemRows.Scan(
				&item.ID,
				&item.CartID,
				&item.ProductID,
				&item.Quantity,
				&item.PriceAtPurchase,
				&item.CreatedAt,
			); err != nil {
				return nil, 0, fmt.Errorf("scan cart item: %w", err)
			}
			itemsByCartID[item.CartID] = append(itemsByCartID[item.CartID], item)
		}
		if err := itemRows.Err(); err != nil {
			return nil, 0, fmt.Errorf("iterate batch cart item rows: %w", err)
		}

		for i := range carts {
			if items, ok := itemsByCartID[carts[i].ID]; ok {
				carts[i].Items = items
			} else {
				carts[i].Items = []domain.CartItem{}
			}
		}
	}

	return carts, totalCount, nil
}

// AddItem inserts a new cart item and bumps the cart version atomically.
func (r *CartRepository) AddItem(ctx context.Context, item *domain.CartItem, expectedVersion int64) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	itemQuery := `
		INSERT INTO cart_items (id, cart_id, product_id, quantity, price_at_purchase, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = tx.Exec(ctx, itemQuery,
		item.ID,
		item.CartID,
		item.ProductID,
		item.Quantity,
		item.PriceAtPurchase,
		item.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert cart item: %w", err)
	}

	ok, err := bumpVersion(ctx, tx, item.CartID, expectedVersion)
	if err != nil || !ok {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit transaction: %w", err)
	}

	return true, nil
}

// UpdateItemQuantity sets the quantity of an existing item and bumps
// the cart version atomically.
func (r *CartRepository) UpdateItemQuantity(ctx context.Context, cartID, productID string, quantity int, expectedVersion int64) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	itemQuery := `
		UPDATE cart_items
		SET quantity = $1
		WHERE cart_id = $2 AND product_id = $3`

	ct, err := tx.Exec(ctx, itemQuery, quantity, cartID, productID)
	if err != nil {
		return false, fmt.Errorf("update cart item: %w", err)
	}
	if ct.RowsAffected() == 0 {
		// Item disappeared between load and update.
		return false, nil
	}

	ok, err := bumpVersion(ctx, tx, cartID, expectedVersion)
	if err != nil || !ok {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit transaction: %w", err)
	}

	return true, nil
}

// RemoveItem deletes a single item by product id and bumps the cart
// version atomically.
func (r *CartRepository) RemoveItem(ctx context.Context, cartID, productID string, expectedVersion int64) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	itemQuery := `
		DELETE FROM cart_items
		WHERE cart_id = $1 AND product_id = $2`

	ct, err := tx.Exec(ctx, itemQuery, cartID, productID)
	if err != nil {
		return false, fmt.Errorf("delete cart item: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return false, nil
	}

	ok, err := bumpVersion(ctx, tx, cartID, expectedVersion)
	if err != nil || !ok {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit transaction: %w", err)
	}

	return true, nil
}

// Delete removes a cart; items go with it via ON DELETE CASCADE.
func (r *CartRepository) Delete(ctx context.Context, id string) (bool, error) {
	ct, err := r.pool.Exec(ctx, `DELETE FROM carts WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete cart: %w", err)
	}

	return ct.RowsAffected() > 0, nil
}

// DeleteIfVersion removes a cart only while its version is unchanged.
// Zero rows affected means the cart was mutated concurrently (or is
// already gone) and must not be destroyed under the caller.
func (r *CartRepository) DeleteIfVersion(ctx context.Context, id string, expectedVersion int64) (bool, error) {
	ct, err := r.pool.Exec(ctx, `DELETE FROM carts WHERE id = $1 AND version = $2`, id, expectedVersion)
	if err != nil {
		return false, fmt.Errorf("delete cart: %w", err)
	}

	return ct.RowsAffected() > 0, nil
}

// bumpVersion performs the optimistic concurrency check inside an item
// mutation transaction. Zero rows affected means the caller's version
// is stale; the surrounding deferred rollback undoes the item change.
func bumpVersion(ctx context.Context, tx pgx.Tx, cartID string, expectedVersion int64) (bool, error) {
	ct, err := tx.Exec(ctx, `
		UPDATE carts
		SET version = version + 1
		WHERE id = $1 AND version = $2`,
		cartID, expectedVersion,
	)
	if err != nil {
		return false, fmt.Errorf("bump cart version: %w", err)
	}

	return ct.RowsAffected() == 1, nil
}
