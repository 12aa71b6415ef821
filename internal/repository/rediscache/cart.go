package rediscache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/orderservice/internal/domain"
	"github.com/utafrali/orderservice/internal/repository"
)

const keyPrefix = "cart:"

// CartRepository is a read-through cache decorator over a
// repository.CartRepository. Reads of single carts are served from
// Redis when possible; every mutation writes through to the inner
// store and invalidates the cached entry. Cache failures are logged
// and degrade to the inner store, never surfaced to callers.
type CartRepository struct {
	inner  repository.CartRepository
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCartRepository wraps the given repository with a Redis cache.
func NewCartRepository(inner repository.CartRepository, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CartRepository {
	return &CartRepository{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Create delegates to the inner store. New carts are not cached until
// first read.
func (r *CartRepository) Create(ctx context.Context, cart *domain.Cart) error {
	return r.inner.Create(ctx, cart)
}

// GetByID serves the cart from Redis when cached, falling back to the
// inner store and populating the cache on a miss.
func (r *CartRepository) GetByID(ctx context.Context, id string) (*domain.Cart, error) {
	key := keyPrefix + id

	data, err := r.client.Get(ctx, key).Bytes()
	if err == nil {
		var cart domain.Cart
		if err := json.Unmarshal(data, &cart); err == nil {
			return &cart, nil
		}
		// Corrupt entry; drop it and fall through to the store.
		r.invalidate(ctx, id)
	} else if err != redis.Nil {
		r.logger.WarnContext(ctx, "redis get cart failed, falling back to store",
			slog.String("cart_id", id),
			slog.String("error", err.Error()),
		)
	}

	cart, err := r.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(cart); err == nil {
		if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
			r.logger.WarnContext(ctx, "redis set cart failed",
				slog.String("cart_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	return cart, nil
}

// List always goes to the inner store; pages are not cached.
func (r *CartRepository) List(ctx context.Context, page, perPage int) ([]domain.Cart, int, error) {
	return r.inner.List(ctx, page, perPage)
}

// AddItem writes through and invalidates the cached cart.
func (r *CartRepository) AddItem(ctx context.Context, item *domain.CartItem, expectedVersion int64) (bool, error) {
	ok, err := r.inner.AddItem(ctx, item, expectedVersion)
	if ok {
		r.invalidate(ctx, item.CartID)
	}
	return ok, err
}

// UpdateItemQuantity writes through and invalidates the cached cart.
func (r *CartRepository) UpdateItemQuantity(ctx context.Context, cartID, productID string, quantity int, expectedVersion int64) (bool, error) {
	ok, err := r.inner.UpdateItemQuantity(ctx, cartID, productID, quantity, expectedVersion)
	if ok {
		r.invalidate(ctx, cartID)
	}
	return ok, err
}

// RemoveItem writes through and invalidates the cached cart.
func (r *CartRepository) RemoveItem(ctx context.Context, cartID, productID string, expectedVersion int64) (bool, error) {
	ok, err := r.inner.RemoveItem(ctx, cartID, productID, expectedVersion)
	if ok {
		r.invalidate(ctx, cartID)
	}
	return ok, err
}

// Delete writes through and invalidates the cached cart.
func (r *CartRepository) Delete(ctx context.Context, id string) (bool, error) {
	ok, err := r.inner.Delete(ctx, id)
	if ok {
		r.invalidate(ctx, id)
	}
	return ok, err
}

// DeleteIfVersion writes through and invalidates the cached cart.
func (r *CartRepository) DeleteIfVersion(ctx context.Context, id string, expectedVersion int64) (bool, error) {
	ok, err := r.inner.DeleteIfVersion(ctx, id, expectedVersion)
	if ok {
		r.invalidate(ctx, id)
	}
	return ok, err
}

func (r *CartRepository) invalidate(ctx context.Context, cartID string) {
	if err := r.client.Del(ctx, keyPrefix+cartID).Err(); err != nil {
		r.logger.WarnContext(ctx, "redis del cart failed",
			slog.String("cart_id", cartID),
			slog.String("error", err.Error()),
		)
	}
}

// interface guard
var _ repository.CartRepository = (*CartRepository)(nil)
