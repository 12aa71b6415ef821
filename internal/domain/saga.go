package domain

import "time"

// Saga log step constants. Each checkout appends one entry per
// externally visible action so a crash mid-checkout leaves a
// diagnosable trail of compensations owed.
const (
	SagaStepPurchased      = "purchased"
	SagaStepPurchaseFailed = "purchase_failed"
	SagaStepCanceled       = "canceled"
	SagaStepCancelFailed   = "cancel_failed"
	SagaStepOrderCreated   = "order_created"
	SagaStepCartDeleted    = "cart_deleted"
)

// SagaLogEntry records one step of a checkout run. CheckoutID groups
// all entries of a single run; entries are append-only.
type SagaLogEntry struct {
	ID         string    `json:"id"`
	CheckoutID string    `json:"checkout_id"`
	CartID     string    `json:"cart_id"`
	Step       string    `json:"step"`
	ProductID  string    `json:"product_id,omitempty"`
	Quantity   int       `json:"quantity,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
