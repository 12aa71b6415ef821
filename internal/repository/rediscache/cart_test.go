package rediscache

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/orderservice/internal/domain"
	apperrors "github.com/utafrali/orderservice/pkg/errors"
)

// stubCartRepository is a minimal in-memory CartRepository that counts
// calls, used to observe whether the decorator hit the inner store.
type stubCartRepository struct {
	carts    map[string]*domain.Cart
	getCalls int
}

func newStubCartRepository() *stubCartRepository {
	return &stubCartRepository{carts: make(map[string]*domain.Cart)}
}

func (s *stubCartRepository) Create(_ context.Context, cart *domain.Cart) error {
	s.carts[cart.ID] = cart
	return nil
}

func (s *stubCartRepository) GetByID(_ context.Context, id string) (*domain.Cart, error) {
	s.getCalls++
	cart, ok := s.carts[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return cart, nil
}

func (s *stubCartRepository) List(_ context.Context, _, _ int) ([]domain.Cart, int, error) {
	carts := make([]domain.Cart, 0, len(s.carts))
	for _, c := range s.carts {
		carts = append(carts, *c)
	}
	return carts, len(carts), nil
}

func (s *stubCartRepository) AddItem(_ context.Context, item *domain.CartItem, _ int64) (bool, error) {
	cart, ok := s.carts[item.CartID]
	if !ok {
		return false, nil
	}
	cart.Items = append(cart.Items, *item)
	cart.Version++
	return true, nil
}

func (s *stubCartRepository) UpdateItemQuantity(_ context.Context, cartID, productID string, quantity int, _ int64) (bool, error) {
	cart, ok := s.carts[cartID]
	if !ok {
		return false, nil
	}
	item := cart.FindItem(productID)
	if item == nil {
		return false, nil
	}
	item.Quantity = quantity
	cart.Version++
	return true, nil
}

func (s *stubCartRepository) RemoveItem(_ context.Context, cartID, productID string, _ int64) (bool, error) {
	cart, ok := s.carts[cartID]
	if !ok {
		return false, nil
	}
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
			cart.Version++
			return true, nil
		}
	}
	return false, nil
}

func (s *stubCartRepository) Delete(_ context.Context, id string) (bool, error) {
	if _, ok := s.carts[id]; !ok {
		return false, nil
	}
	delete(s.carts, id)
	return true, nil
}

func (s *stubCartRepository) DeleteIfVersion(_ context.Context, id string, expectedVersion int64) (bool, error) {
	cart, ok := s.carts[id]
	if !ok || cart.Version != expectedVersion {
		return false, nil
	}
	delete(s.carts, id)
	return true, nil
}

func setupTestCache(t *testing.T) (*CartRepository, *stubCartRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	inner := newStubCartRepository()
	repo := NewCartRepository(inner, client, time.Hour, slog.Default())
	return repo, inner, mr
}

func cachedCart() *domain.Cart {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.Cart{
		ID:      "cart-001",
		Version: 2,
		Items: []domain.CartItem{
			{ID: "item-1", CartID: "cart-001", ProductID: "prod-1", Quantity: 2, PriceAtPurchase: 1990, CreatedAt: now},
		},
		CreatedAt: now,
	}
}

func TestCachedCartRepository_GetByID_Miss_PopulatesCache(t *testing.T) {
	repo, inner, mr := setupTestCache(t)

	cart := cachedCart()
	require.NoError(t, inner.Create(context.Background(), cart))

	got, err := repo.GetByID(context.Background(), cart.ID)
	require.NoError(t, err)
	assert.Equal(t, cart.ID, got.ID)
	assert.Equal(t, 1, inner.getCalls)

	// Entry is now cached.
	assert.True(t, mr.Exists("cart:"+cart.ID))

	// Second read is served from the cache.
	got, err = repo.GetByID(context.Background(), cart.ID)
	require.NoError(t, err)
	assert.Equal(t, cart.ID, got.ID)
	assert.Equal(t, int64(2), got.Version)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "prod-1", got.Items[0].ProductID)
	assert.Equal(t, 1, inner.getCalls)
}

func TestCachedCartRepository_GetByID_Hit(t *testing.T) {
	repo, inner, mr := setupTestCache(t)

	cart := cachedCart()
	data, err := json.Marshal(cart)
	require.NoError(t, err)
	require.NoError(t, mr.Set("cart:"+cart.ID, string(data)))

	got, err := repo.GetByID(context.Background(), cart.ID)
	require.NoError(t, err)
	assert.Equal(t, cart.ID, got.ID)
	assert.Equal(t, 0, inner.getCalls)
}

func TestCachedCartRepository_GetByID_NotFound(t *testing.T) {
	repo, _, _ := setupTestCache(t)

	got, err := repo.GetByID(context.Background(), "missing")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCachedCartRepository_GetByID_CorruptEntry_FallsBack(t *testing.T) {
	repo, inner, mr := setupTestCache(t)

	cart := cachedCart()
	require.NoError(t, inner.Create(context.Background(), cart))
	require.NoError(t, mr.Set("cart:"+cart.ID, "{not json"))

	got, err := repo.GetByID(context.Background(), cart.ID)
	require.NoError(t, err)
	assert.Equal(t, cart.ID, got.ID)
	assert.Equal(t, 1, inner.getCalls)
}

func TestCachedCartRepository_AddItem_InvalidatesCache(t *testing.T) {
	repo, inner, mr := setupTestCache(t)

	cart := cachedCart()
	require.NoError(t, inner.Create(context.Background(), cart))

	// Prime the cache.
	_, err := repo.GetByID(context.Background(), cart.ID)
	require.NoError(t, err)
	require.True(t, mr.Exists("cart:"+cart.ID))

	ok, err := repo.AddItem(context.Background(), &domain.CartItem{
		ID: "item-2", CartID: cart.ID, ProductID: "prod-2", Quantity: 1, PriceAtPurchase: 500,
	}, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.False(t, mr.Exists("cart:"+cart.ID))
}

func TestCachedCartRepository_Delete_InvalidatesCache(t *testing.T) {
	repo, inner, mr := setupTestCache(t)

	cart := cachedCart()
	require.NoError(t, inner.Create(context.Background(), cart))

	_, err := repo.GetByID(context.Background(), cart.ID)
	require.NoError(t, err)
	require.True(t, mr.Exists("cart:"+cart.ID))

	ok, err := repo.Delete(context.Background(), cart.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.False(t, mr.Exists("cart:"+cart.ID))

	_, err = repo.GetByID(context.Background(), cart.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCachedCartRepository_DeleteIfVersion_StaleKeepsCart(t *testing.T) {
	repo, inner, mr := setupTestCache(t)

	cart := cachedCart()
	require.NoError(t, inner.Create(context.Background(), cart))

	_, err := repo.GetByID(context.Background(), cart.ID)
	require.NoError(t, err)
	require.True(t, mr.Exists("cart:"+cart.ID))

	// Stale version: the cart survives and so does the cached copy.
	ok, err := repo.DeleteIfVersion(context.Background(), cart.ID, cart.Version+1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, mr.Exists("cart:"+cart.ID))

	// Matching version deletes and invalidates.
	ok, err = repo.DeleteIfVersion(context.Background(), cart.ID, cart.Version)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, mr.Exists("cart:"+cart.ID))
}

func TestCachedCartRepository_FailedMutation_KeepsCache(t *testing.T) {
	repo, inner, mr := setupTestCache(t)

	cart := cachedCart()
	require.NoError(t, inner.Create(context.Background(), cart))

	_, err := repo.GetByID(context.Background(), cart.ID)
	require.NoError(t, err)
	require.True(t, mr.Exists("cart:"+cart.ID))

	// Item does not exist; mutation reports false and the cache stays.
	ok, err := repo.UpdateItemQuantity(context.Background(), cart.ID, "prod-missing", 5, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.True(t, mr.Exists("cart:"+cart.ID))
}
