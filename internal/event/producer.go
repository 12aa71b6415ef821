package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/orderservice/internal/domain"
	pkgkafka "github.com/utafrali/orderservice/pkg/kafka"
)

// Kafka topics for order and checkout domain events.
var (
	TopicOrderCreated       = pkgkafka.Topic("order", "created")
	TopicOrderStatusChanged = pkgkafka.Topic("order", "status-changed")
	TopicOrderDeleted       = pkgkafka.Topic("order", "deleted")
	TopicCheckoutCompleted  = pkgkafka.Topic("checkout", "completed")
	TopicCheckoutFailed     = pkgkafka.Topic("checkout", "failed")
)

// Aggregate type constants.
const (
	AggregateTypeOrder = "order"
	AggregateTypeCart  = "cart"
)

// Source identifier for events originating from this service.
const Source = "order-service"

// OrderCreatedData is the payload for an order created event (full snapshot).
type OrderCreatedData struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	Items       []OrderItemData `json:"items"`
	TotalAmount int64           `json:"total_amount"`
}

// OrderItemData is the event payload for an order item.
type OrderItemData struct {
	ID              string `json:"id"`
	ProductID       string `json:"product_id"`
	Quantity        int    `json:"quantity"`
	PriceAtPurchase int64  `json:"price_at_purchase"`
	Purchased       bool   `json:"purchased"`
}

// OrderStatusChangedData is the payload for an order status change event.
type OrderStatusChangedData struct {
	OrderID   string `json:"order_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// OrderDeletedData is the payload for an order deleted event.
type OrderDeletedData struct {
	OrderID string `json:"order_id"`
}

// CheckoutCompletedData is the payload for a completed checkout.
type CheckoutCompletedData struct {
	CheckoutID string `json:"checkout_id"`
	CartID     string `json:"cart_id"`
	OrderID    string `json:"order_id"`
	ItemCount  int    `json:"item_count"`
}

// CheckoutFailedData is the payload for a failed checkout.
type CheckoutFailedData struct {
	CheckoutID    string `json:"checkout_id"`
	CartID        string `json:"cart_id"`
	ProductID     string `json:"product_id"`
	Reason        string `json:"reason"`
	Compensations int    `json:"compensations"`
}

// Producer publishes order and checkout domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishOrderCreated publishes an order created event with the full snapshot.
func (p *Producer) PublishOrderCreated(ctx context.Context, order *domain.Order) error {
	items := make([]OrderItemData, len(order.Items))
	for i, item := range order.Items {
		items[i] = OrderItemData{
			ID:              item.ID,
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			PriceAtPurchase: item.PriceAtPurchase,
			Purchased:       item.Receipt != nil,
		}
	}

	data := OrderCreatedData{
		ID:          order.ID,
		Status:      order.Status,
		Items:       items,
		TotalAmount: order.TotalAmount(),
	}

	event, err := pkgkafka.NewEvent(TopicOrderCreated, order.ID, AggregateTypeOrder, Source, data)
	if err != nil {
		return fmt.Errorf("create order created event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicOrderCreated, event); err != nil {
		return fmt.Errorf("publish order created event: %w", err)
	}

	p.logger.DebugContext(ctx, "published order created event",
		slog.String("order_id", order.ID),
	)

	return nil
}

// PublishOrderStatusChanged publishes an order status change event.
func (p *Producer) PublishOrderStatusChanged(ctx context.Context, orderID, oldStatus, newStatus string) error {
	data := OrderStatusChangedData{
		OrderID:   orderID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
	}

	event, err := pkgkafka.NewEvent(TopicOrderStatusChanged, orderID, AggregateTypeOrder, Source, data)
	if err != nil {
		return fmt.Errorf("create order status changed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicOrderStatusChanged, event); err != nil {
		return fmt.Errorf("publish order status changed event: %w", err)
	}

	return nil
}

// PublishOrderDeleted publishes an order deleted event.
func (p *Producer) PublishOrderDeleted(ctx context.Context, orderID string) error {
	event, err := pkgkafka.NewEvent(TopicOrderDeleted, orderID, AggregateTypeOrder, Source, OrderDeletedData{OrderID: orderID})
	if err != nil {
		return fmt.Errorf("create order deleted event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicOrderDeleted, event); err != nil {
		return fmt.Errorf("publish order deleted event: %w", err)
	}

	return nil
}

// PublishCheckoutCompleted publishes a checkout completed event.
func (p *Producer) PublishCheckoutCompleted(ctx context.Context, checkoutID string, cartID string, order *domain.Order) error {
	data := CheckoutCompletedData{
		CheckoutID: checkoutID,
		CartID:     cartID,
		OrderID:    order.ID,
		ItemCount:  len(order.Items),
	}

	event, err := pkgkafka.NewEvent(TopicCheckoutCompleted, cartID, AggregateTypeCart, Source, data)
	if err != nil {
		return fmt.Errorf("create checkout completed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCheckoutCompleted, event); err != nil {
		return fmt.Errorf("publish checkout completed event: %w", err)
	}

	return nil
}

// PublishCheckoutFailed publishes a checkout failed event.
func (p *Producer) PublishCheckoutFailed(ctx context.Context, checkoutID, cartID, productID, reason string, compensations int) error {
	data := CheckoutFailedData{
		CheckoutID:    checkoutID,
		CartID:        cartID,
		ProductID:     productID,
		Reason:        reason,
		Compensations: compensations,
	}

	event, err := pkgkafka.NewEvent(TopicCheckoutFailed, cartID, AggregateTypeCart, Source, data)
	if err != nil {
		return fmt.Errorf("create checkout failed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCheckoutFailed, event); err != nil {
		return fmt.Errorf("publish checkout failed event: %w", err)
	}

	return nil
}
