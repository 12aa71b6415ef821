package domain

import "time"

// Cart represents a mutable pre-order collection of desired items.
// Version is an optimistic concurrency token incremented on every
// item mutation; a stale version causes the mutation to be rejected.
type Cart struct {
	ID        string     `json:"id"`
	Version   int64      `json:"version"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
}

// CartItem represents a line item in a cart. PriceAtPurchase is the
// price captured from the availability check at add time, in minor
// currency units; it is never re-derived later.
type CartItem struct {
	ID              string    `json:"id"`
	CartID          string    `json:"cart_id"`
	ProductID       string    `json:"product_id"`
	Quantity        int       `json:"quantity"`
	PriceAtPurchase int64     `json:"price_at_purchase"`
	CreatedAt       time.Time `json:"created_at"`
}

// FindItem returns the cart item for the given product, or nil if the
// cart holds no item for it. A cart never holds two items for the same
// product; duplicates are merged by quantity at add time.
func (c *Cart) FindItem(productID string) *CartItem {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return &c.Items[i]
		}
	}
	return nil
}

// IsEmpty reports whether the cart has no items.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// TotalAmount returns the sum of all line totals in the cart.
func (c *Cart) TotalAmount() int64 {
	var total int64
	for i := range c.Items {
		total += c.Items[i].LineTotal()
	}
	return total
}

// LineTotal returns the total price for this line item.
func (i *CartItem) LineTotal() int64 {
	return i.PriceAtPurchase * int64(i.Quantity)
}
