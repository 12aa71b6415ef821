package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/orderservice/internal/domain"
	"github.com/utafrali/orderservice/internal/event"
	"github.com/utafrali/orderservice/internal/repository"
	apperrors "github.com/utafrali/orderservice/pkg/errors"
)

// CreateOrderInput carries the data needed to create an order directly,
// outside the checkout flow.
type CreateOrderInput struct {
	Status string                 `json:"status"`
	Items  []CreateOrderItemInput `json:"items" validate:"required,min=1,dive"`
}

// CreateOrderItemInput is one line of a directly created order. A
// receipt is optional; orders imported from an external purchase flow
// may carry one.
type CreateOrderItemInput struct {
	ProductID       string                  `json:"product_id" validate:"required"`
	Quantity        int                     `json:"quantity" validate:"required,gt=0"`
	PriceAtPurchase int64                   `json:"price_at_purchase" validate:"gte=0"`
	Receipt         *domain.PurchaseReceipt `json:"purchase_receipt,omitempty"`
}

// OrderService handles order business logic.
type OrderService struct {
	repo     repository.OrderRepository
	producer *event.Producer
	logger   *slog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(repo repository.OrderRepository, producer *event.Producer, logger *slog.Logger) *OrderService {
	return &OrderService{
		repo:     repo,
		producer: producer,
		logger:   logger,
	}
}

// CreateOrder persists a new order. The status defaults to Pending when
// the caller does not set one.
func (s *OrderService) CreateOrder(ctx context.Context, input CreateOrderInput) (*domain.Order, error) {
	if len(input.Items) == 0 {
		return nil, apperrors.InvalidInput("order must contain at least one item")
	}

	status := input.Status
	if status == "" {
		status = domain.OrderStatusPending
	}

	order := &domain.Order{
		ID:        uuid.New().String(),
		Status:    status,
		CreatedAt: time.Now().UTC(),
		Items:     make([]domain.OrderItem, len(input.Items)),
	}
	for i, item := range input.Items {
		order.Items[i] = domain.OrderItem{
			ID:              uuid.New().String(),
			OrderID:         order.ID,
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			PriceAtPurchase: item.PriceAtPurchase,
			Receipt:         item.Receipt,
		}
	}

	if err := s.repo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if err := s.producer.PublishOrderCreated(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order created event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order created",
		slog.String("order_id", order.ID),
		slog.String("status", order.Status),
		slog.Int("item_count", len(order.Items)),
	)

	return order, nil
}

// GetOrder retrieves an order by ID.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	return order, nil
}

// ListOrders retrieves a paginated list of orders.
func (s *OrderService) ListOrders(ctx context.Context, page, perPage int) ([]domain.Order, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 10
	}

	orders, total, err := s.repo.List(ctx, page, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}

	return orders, total, nil
}

// UpdateOrderStatus changes the status of an existing order.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id, status string) (*domain.Order, error) {
	if status == "" {
		return nil, apperrors.InvalidInput("status cannot be empty")
	}

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	oldStatus := order.Status
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}
	order.Status = status

	if err := s.producer.PublishOrderStatusChanged(ctx, id, oldStatus, status); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order status changed event",
			slog.String("order_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order status updated",
		slog.String("order_id", id),
		slog.String("old_status", oldStatus),
		slog.String("new_status", status),
	)

	return order, nil
}

// DeleteOrder removes an order and its items.
func (s *OrderService) DeleteOrder(ctx context.Context, id string) (*domain.ServiceResult, error) {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("delete order: %w", err)
	}
	if !ok {
		return nil, apperrors.NotFound("order", id)
	}

	if err := s.producer.PublishOrderDeleted(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order deleted event",
			slog.String("order_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order deleted", slog.String("order_id", id))

	return domain.OK("order deleted", nil), nil
}
