package domain

import "time"

// OrderStatusPending is the initial status of every order. Status is
// free-form beyond this: orders are advanced by explicit status updates
// and the service does not enforce a transition graph.
const OrderStatusPending = "Pending"

// Order represents a persisted order. Items are immutable after
// creation; checkout is the only item-producing path.
type Order struct {
	ID        string      `json:"id"`
	Status    string      `json:"status"`
	Items     []OrderItem `json:"items"`
	CreatedAt time.Time   `json:"created_at"`
}

// OrderItem represents a line item in an order. PriceAtPurchase carries
// the original cart price, not any price returned by the purchase call.
// A nil Receipt means the item was not created via a successful
// purchase (e.g. the order was created directly through the API).
type OrderItem struct {
	ID              string           `json:"id"`
	OrderID         string           `json:"order_id"`
	ProductID       string           `json:"product_id"`
	Quantity        int              `json:"quantity"`
	PriceAtPurchase int64            `json:"price_at_purchase"`
	Receipt         *PurchaseReceipt `json:"purchase_receipt,omitempty"`
}

// PurchaseReceipt is the opaque receipt returned by the product service
// for a successful purchase.
type PurchaseReceipt struct {
	TransactionID    string    `json:"transaction_id"`
	ExternalID       string    `json:"external_id"`
	ConfirmationCode string    `json:"confirmation_code"`
	Amount           int64     `json:"amount"`
	Currency         string    `json:"currency"`
	Timestamp        time.Time `json:"timestamp"`
	Provider         string    `json:"provider"`
	Success          bool      `json:"success"`
	Message          string    `json:"message"`
}

// LineTotal returns the total price for this line item.
func (i *OrderItem) LineTotal() int64 {
	return i.PriceAtPurchase * int64(i.Quantity)
}

// TotalAmount returns the sum of all line totals in the order.
func (o *Order) TotalAmount() int64 {
	var total int64
	for i := range o.Items {
		total += o.Items[i].LineTotal()
	}
	return total
}
