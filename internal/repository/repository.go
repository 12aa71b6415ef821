package repository

import (
	"context"

	"github.com/utafrali/orderservice/internal/domain"
)

// CartRepository defines the interface for cart persistence operations.
//
// Item mutations take the cart version observed by the caller and apply
// the change together with a version check-and-increment in one
// transaction. A false return means the check failed (the cart or item
// changed concurrently, or was removed); the caller maps this to a
// conflict, never a fault.
type CartRepository interface {
	// Create inserts a new empty cart.
	Create(ctx context.Context, cart *domain.Cart) error

	// GetByID retrieves a cart with its items eagerly loaded, in the
	// deterministic order they were added. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, id string) (*domain.Cart, error)

	// List returns a page of carts with items along with the total count.
	List(ctx context.Context, page, perPage int) ([]domain.Cart, int, error)

	// AddItem inserts a new cart item and bumps the cart version.
	AddItem(ctx context.Context, item *domain.CartItem, expectedVersion int64) (bool, error)

	// UpdateItemQuantity sets the quantity of an existing item and bumps
	// the cart version.
	UpdateItemQuantity(ctx context.Context, cartID, productID string, quantity int, expectedVersion int64) (bool, error)

	// RemoveItem deletes a single item by product id and bumps the cart
	// version.
	RemoveItem(ctx context.Context, cartID, productID string, expectedVersion int64) (bool, error)

	// Delete removes a cart and, by cascade, its items. Returns false if
	// no row was deleted; the store itself does not treat that as an error.
	Delete(ctx context.Context, id string) (bool, error)

	// DeleteIfVersion removes a cart only if its version still matches
	// the caller's observed value. A false return means the cart changed
	// concurrently or is already gone; its current contents are left
	// untouched.
	DeleteIfVersion(ctx context.Context, id string, expectedVersion int64) (bool, error)
}

// OrderRepository defines the interface for order persistence operations.
type OrderRepository interface {
	// Create inserts a new order and its items into the store atomically.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID retrieves an order by its unique identifier, including items.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// List returns a page of orders with items along with the total count.
	List(ctx context.Context, page, perPage int) ([]domain.Order, int, error)

	// UpdateStatus changes the status of an order. Returns ErrNotFound if
	// no row was affected.
	UpdateStatus(ctx context.Context, id string, status string) error

	// Delete removes an order and, by cascade, its items. Returns false if
	// no row was deleted.
	Delete(ctx context.Context, id string) (bool, error)
}

// SagaLogRepository defines the interface for the checkout saga journal.
// Entries are append-only; the journal exists so a crash mid-checkout
// leaves a trail of purchases made and compensations owed.
type SagaLogRepository interface {
	// Append records one saga step.
	Append(ctx context.Context, entry *domain.SagaLogEntry) error

	// ListByCheckoutID returns all entries of one checkout run in append order.
	ListByCheckoutID(ctx context.Context, checkoutID string) ([]domain.SagaLogEntry, error)
}
