package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/utafrali/orderservice/internal/domain"
	"github.com/utafrali/orderservice/internal/event"
	"github.com/utafrali/orderservice/internal/gateway"
	"github.com/utafrali/orderservice/internal/metrics"
	"github.com/utafrali/orderservice/internal/repository"
	apperrors "github.com/utafrali/orderservice/pkg/errors"
)

// GatewayTimeouts bounds each product service call inside cart
// operations and the checkout saga. A zero value means no per-call
// timeout beyond the request context.
type GatewayTimeouts struct {
	Availability time.Duration
	Purchase     time.Duration
	Cancel       time.Duration
}

// CartService orchestrates cart operations and the checkout saga.
type CartService struct {
	carts    repository.CartRepository
	orders   repository.OrderRepository
	sagaLog  repository.SagaLogRepository
	gateway  gateway.ProductGateway
	producer *event.Producer
	timeouts GatewayTimeouts
	logger   *slog.Logger
}

// NewCartService creates a new cart service.
func NewCartService(
	carts repository.CartRepository,
	orders repository.OrderRepository,
	sagaLog repository.SagaLogRepository,
	gw gateway.ProductGateway,
	producer *event.Producer,
	timeouts GatewayTimeouts,
	logger *slog.Logger,
) *CartService {
	return &CartService{
		carts:    carts,
		orders:   orders,
		sagaLog:  sagaLog,
		gateway:  gw,
		producer: producer,
		timeouts: timeouts,
		logger:   logger,
	}
}

// CreateCart creates a new empty cart.
func (s *CartService) CreateCart(ctx context.Context) (*domain.Cart, error) {
	cart := &domain.Cart{
		ID:        uuid.New().String(),
		Version:   0,
		Items:     []domain.CartItem{},
		CreatedAt: time.Now().UTC(),
	}

	if err := s.carts.Create(ctx, cart); err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}

	s.logger.InfoContext(ctx, "cart created", slog.String("cart_id", cart.ID))

	return cart, nil
}

// GetCart retrieves a cart with its items.
func (s *CartService) GetCart(ctx context.Context, id string) (*domain.Cart, error) {
	cart, err := s.carts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("cart", id)
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	return cart, nil
}

// ListCarts retrieves a paginated list of carts.
func (s *CartService) ListCarts(ctx context.Context, page, perPage int) ([]domain.Cart, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 10
	}

	carts, total, err := s.carts.List(ctx, page, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list carts: %w", err)
	}

	return carts, total, nil
}

// AddItem adds a product to a cart at the price the product service
// quotes right now. Adding a product already in the cart merges into
// the existing line by summing quantities; the original price is kept.
func (s *CartService) AddItem(ctx context.Context, cartID, productID string, quantity int) (*domain.ServiceResult, error) {
	if quantity <= 0 {
		return nil, apperrors.InvalidInput("quantity must be greater than zero")
	}

	cart, err := s.carts.GetByID(ctx, cartID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("cart", cartID)
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	info, err := s.checkAvailability(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !info.IsAvailable {
		return nil, apperrors.InvalidInput(fmt.Sprintf("product %s is not available", productID))
	}

	var ok bool
	if existing := cart.FindItem(productID); existing != nil {
		ok, err = s.carts.UpdateItemQuantity(ctx, cartID, productID, existing.Quantity+quantity, cart.Version)
	} else {
		item := &domain.CartItem{
			ID:              uuid.New().String(),
			CartID:          cartID,
			ProductID:       productID,
			Quantity:        quantity,
			PriceAtPurchase: info.CurrentPrice,
			CreatedAt:       time.Now().UTC(),
		}
		ok, err = s.carts.AddItem(ctx, item, cart.Version)
	}
	if err != nil {
		return nil, fmt.Errorf("add cart item: %w", err)
	}
	if !ok {
		return nil, apperrors.Conflict("cart may have been modified, please retry")
	}

	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("cart_id", cartID),
		slog.String("product_id", productID),
		slog.Int("quantity", quantity),
	)

	return domain.OK("item added to cart", nil), nil
}

// UpdateItem sets the quantity of an existing cart item. A quantity of
// zero removes the item.
func (s *CartService) UpdateItem(ctx context.Context, cartID, productID string, quantity int) (*domain.ServiceResult, error) {
	if quantity < 0 {
		return nil, apperrors.InvalidInput("quantity must not be negative")
	}

	if quantity == 0 {
		return s.RemoveItem(ctx, cartID, productID)
	}

	cart, err := s.carts.GetByID(ctx, cartID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("cart", cartID)
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	if cart.FindItem(productID) == nil {
		return nil, apperrors.NotFound("cart item", productID)
	}

	ok, err := s.carts.UpdateItemQuantity(ctx, cartID, productID, quantity, cart.Version)
	if err != nil {
		return nil, fmt.Errorf("update cart item: %w", err)
	}
	if !ok {
		return nil, apperrors.Conflict("cart may have been modified, please retry")
	}

	s.logger.InfoContext(ctx, "cart item updated",
		slog.String("cart_id", cartID),
		slog.String("product_id", productID),
		slog.Int("quantity", quantity),
	)

	return domain.OK("cart item updated", nil), nil
}

// RemoveItem removes a single item from a cart by product id.
func (s *CartService) RemoveItem(ctx context.Context, cartID, productID string) (*domain.ServiceResult, error) {
	cart, err := s.carts.GetByID(ctx, cartID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("cart", cartID)
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	if cart.FindItem(productID) == nil {
		return nil, apperrors.NotFound("cart item", productID)
	}

	ok, err := s.carts.RemoveItem(ctx, cartID, productID, cart.Version)
	if err != nil {
		return nil, fmt.Errorf("remove cart item: %w", err)
	}
	if !ok {
		return nil, apperrors.Conflict("cart may have been modified, please retry")
	}

	s.logger.InfoContext(ctx, "item removed from cart",
		slog.String("cart_id", cartID),
		slog.String("product_id", productID),
	)

	return domain.OK("item removed from cart", nil), nil
}

// DeleteCart removes a cart and all its items.
func (s *CartService) DeleteCart(ctx context.Context, id string) (*domain.ServiceResult, error) {
	ok, err := s.carts.Delete(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("delete cart: %w", err)
	}
	if !ok {
		return nil, apperrors.NotFound("cart", id)
	}

	s.logger.InfoContext(ctx, "cart deleted", slog.String("cart_id", id))

	return domain.OK("cart deleted", nil), nil
}

// Checkout converts a cart into an order by purchasing every item from
// the product service, in the order the items were added. The first
// failed purchase stops the run, cancels every purchase already made in
// reverse order, and leaves the cart untouched. Only when all purchases
// succeed is the order persisted and the cart deleted.
func (s *CartService) Checkout(ctx context.Context, cartID string) (*domain.ServiceResult, error) {
	timer := prometheus.NewTimer(metrics.CheckoutDuration)
	defer timer.ObserveDuration()

	cart, err := s.carts.GetByID(ctx, cartID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		metrics.CheckoutAttempts.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("get cart: %w", err)
	}
	if cart == nil || cart.IsEmpty() {
		metrics.CheckoutAttempts.WithLabelValues("invalid").Inc()
		return nil, apperrors.InvalidInput("cart not found or empty")
	}

	checkoutID := uuid.New().String()

	s.logger.InfoContext(ctx, "checkout started",
		slog.String("checkout_id", checkoutID),
		slog.String("cart_id", cartID),
		slog.Int("item_count", len(cart.Items)),
	)

	receipts := make([]*domain.PurchaseReceipt, len(cart.Items))
	for i, item := range cart.Items {
		receipt, err := s.purchase(ctx, item)
		if err != nil {
			s.journal(ctx, checkoutID, cartID, domain.SagaStepPurchaseFailed, item.ProductID, item.Quantity, err.Error())

			compensations := s.compensate(ctx, checkoutID, cartID, cart.Items[:i])

			reason := err.Error()
			var appErr *apperrors.AppError
			if errors.As(err, &appErr) {
				reason = appErr.Message
			}

			if pubErr := s.producer.PublishCheckoutFailed(ctx, checkoutID, cartID, item.ProductID, reason, compensations); pubErr != nil {
				s.logger.ErrorContext(ctx, "failed to publish checkout failed event",
					slog.String("checkout_id", checkoutID),
					slog.String("error", pubErr.Error()),
				)
			}

			metrics.CheckoutAttempts.WithLabelValues("purchase_failed").Inc()

			s.logger.WarnContext(ctx, "checkout failed, purchases rolled back",
				slog.String("checkout_id", checkoutID),
				slog.String("cart_id", cartID),
				slog.String("product_id", item.ProductID),
				slog.Int("compensations", compensations),
			)

			return nil, apperrors.Upstream(
				fmt.Sprintf("failed to purchase product %s: %s", item.ProductID, reason),
				err,
			)
		}

		receipts[i] = receipt
		s.journal(ctx, checkoutID, cartID, domain.SagaStepPurchased, item.ProductID, item.Quantity, receipt.TransactionID)
	}

	order := &domain.Order{
		ID:        uuid.New().String(),
		Status:    domain.OrderStatusPending,
		CreatedAt: time.Now().UTC(),
		Items:     make([]domain.OrderItem, len(cart.Items)),
	}
	for i, item := range cart.Items {
		order.Items[i] = domain.OrderItem{
			ID:              uuid.New().String(),
			OrderID:         order.ID,
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			PriceAtPurchase: item.PriceAtPurchase,
			Receipt:         receipts[i],
		}
	}

	if err := s.orders.Create(ctx, order); err != nil {
		s.compensate(ctx, checkoutID, cartID, cart.Items)
		metrics.CheckoutAttempts.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("create order: %w", err)
	}
	s.journal(ctx, checkoutID, cartID, domain.SagaStepOrderCreated, "", 0, order.ID)

	// The delete carries the version observed at the start of the run so
	// a cart mutated mid-checkout survives with its new contents instead
	// of being destroyed under the caller.
	if ok, err := s.carts.DeleteIfVersion(ctx, cartID, cart.Version); err != nil {
		// The order exists; the stale cart is an operator concern, not a
		// checkout failure.
		s.logger.ErrorContext(ctx, "failed to delete cart after checkout",
			slog.String("checkout_id", checkoutID),
			slog.String("cart_id", cartID),
			slog.String("error", err.Error()),
		)
	} else if !ok {
		s.logger.WarnContext(ctx, "cart changed or removed during checkout, leaving it in place",
			slog.String("checkout_id", checkoutID),
			slog.String("cart_id", cartID),
		)
	} else {
		s.journal(ctx, checkoutID, cartID, domain.SagaStepCartDeleted, "", 0, "")
	}

	if err := s.producer.PublishOrderCreated(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order created event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.producer.PublishCheckoutCompleted(ctx, checkoutID, cartID, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish checkout completed event",
			slog.String("checkout_id", checkoutID),
			slog.String("error", err.Error()),
		)
	}

	metrics.CheckoutAttempts.WithLabelValues("completed").Inc()

	s.logger.InfoContext(ctx, "checkout completed",
		slog.String("checkout_id", checkoutID),
		slog.String("cart_id", cartID),
		slog.String("order_id", order.ID),
		slog.Int("item_count", len(order.Items)),
	)

	return domain.OK("checkout completed successfully", order), nil
}

func (s *CartService) checkAvailability(ctx context.Context, productID string) (*domain.AvailabilityInfo, error) {
	if s.timeouts.Availability > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeouts.Availability)
		defer cancel()
	}

	timer := prometheus.NewTimer(metrics.GatewayCallDuration.WithLabelValues("availability"))
	defer timer.ObserveDuration()

	return s.gateway.CheckAvailability(ctx, productID)
}

func (s *CartService) purchase(ctx context.Context, item domain.CartItem) (*domain.PurchaseReceipt, error) {
	if s.timeouts.Purchase > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeouts.Purchase)
		defer cancel()
	}

	timer := prometheus.NewTimer(metrics.GatewayCallDuration.WithLabelValues("purchase"))
	defer timer.ObserveDuration()

	return s.gateway.Purchase(ctx, item.ProductID, item.Quantity, item.PriceAtPurchase)
}

// compensate cancels already-committed purchases in reverse order and
// returns the number of cancel calls issued. Failed cancels are
// journaled and logged but do not stop the remaining compensations.
func (s *CartService) compensate(ctx context.Context, checkoutID, cartID string, purchased []domain.CartItem) int {
	for i := len(purchased) - 1; i >= 0; i-- {
		item := purchased[i]
		if err := s.cancelPurchase(ctx, item); err != nil {
			metrics.CompensationsIssued.WithLabelValues("failed").Inc()
			s.journal(ctx, checkoutID, cartID, domain.SagaStepCancelFailed, item.ProductID, item.Quantity, err.Error())
			s.logger.ErrorContext(ctx, "failed to cancel purchase, manual intervention may be required",
				slog.String("checkout_id", checkoutID),
				slog.String("product_id", item.ProductID),
				slog.Int("quantity", item.Quantity),
				slog.String("error", err.Error()),
			)
			continue
		}

		metrics.CompensationsIssued.WithLabelValues("issued").Inc()
		s.journal(ctx, checkoutID, cartID, domain.SagaStepCanceled, item.ProductID, item.Quantity, "")
	}

	return len(purchased)
}

func (s *CartService) cancelPurchase(ctx context.Context, item domain.CartItem) error {
	if s.timeouts.Cancel > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeouts.Cancel)
		defer cancel()
	}

	timer := prometheus.NewTimer(metrics.GatewayCallDuration.WithLabelValues("cancel"))
	defer timer.ObserveDuration()

	return s.gateway.CancelPurchase(ctx, item.ProductID, item.Quantity)
}

// journal appends one saga step. Journaling is best effort; a failed
// append must never fail the checkout itself.
func (s *CartService) journal(ctx context.Context, checkoutID, cartID, step, productID string, quantity int, detail string) {
	entry := &domain.SagaLogEntry{
		ID:         uuid.New().String(),
		CheckoutID: checkoutID,
		CartID:     cartID,
		Step:       step,
		ProductID:  productID,
		Quantity:   quantity,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.sagaLog.Append(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to append saga log entry",
			slog.String("checkout_id", checkoutID),
			slog.String("step", step),
			slog.String("error", err.Error()),
		)
	}
}
