package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/utafrali/orderservice/internal/domain"
	apperrors "github.com/utafrali/orderservice/pkg/errors"
	"github.com/utafrali/orderservice/pkg/httpclient"
)

// serviceName qualifies upstream error messages.
const serviceName = "product-service"

// CircuitOpenFallback substitutes a structured error with a retry hint
// when the circuit breaker rejects a product service call.
func CircuitOpenFallback(_ context.Context, err error) (*http.Response, error) {
	return nil, apperrors.Upstream("product service is temporarily unavailable, please retry shortly", err)
}

// HTTPDoer abstracts the HTTP client so the gateway can be tested and
// wrapped with a circuit breaker.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// ProductGateway wraps calls to the external product service. Every
// transport fault or non-2xx response is converted into an error value
// carrying the upstream reason; faults never escape raw.
type ProductGateway interface {
	// CheckAvailability returns whether a product is purchasable and at
	// what price.
	CheckAvailability(ctx context.Context, productID string) (*domain.AvailabilityInfo, error)

	// Purchase commits a purchase of the given quantity and returns the
	// receipt.
	Purchase(ctx context.Context, productID string, quantity int, priceAtPurchase int64) (*domain.PurchaseReceipt, error)

	// CancelPurchase compensates an already-committed purchase.
	CancelPurchase(ctx context.Context, productID string, quantity int) error
}

// HTTPProductGateway implements ProductGateway over the product
// service's REST API.
type HTTPProductGateway struct {
	client  HTTPDoer
	baseURL string
	logger  *slog.Logger
}

// NewHTTPProductGateway creates a gateway for the product service at baseURL.
func NewHTTPProductGateway(client HTTPDoer, baseURL string, logger *slog.Logger) *HTTPProductGateway {
	return &HTTPProductGateway{
		client:  client,
		baseURL: baseURL,
		logger:  logger,
	}
}

// CheckAvailability calls GET /Product/{id}/availability.
func (g *HTTPProductGateway) CheckAvailability(ctx context.Context, productID string) (*domain.AvailabilityInfo, error) {
	url := fmt.Sprintf("%s/Product/%s/availability", g.baseURL, productID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create availability request: %w", err)
	}

	resp, err := g.client.Do(ctx, req)
	if err != nil {
		return nil, apperrors.Upstream(
			fmt.Sprintf("%s: availability check failed for product %s", serviceName, productID),
			err,
		)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, httpclient.ParseResponseError(resp, serviceName)
	}
	defer func() { _ = resp.Body.Close() }()

	var body struct {
		ProductID    string `json:"productId"`
		IsAvailable  bool   `json:"isAvailable"`
		CurrentPrice int64  `json:"currentPrice"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, apperrors.Upstream(
			fmt.Sprintf("%s: invalid availability response for product %s", serviceName, productID),
			err,
		)
	}

	return &domain.AvailabilityInfo{
		ProductID:    productID,
		IsAvailable:  body.IsAvailable,
		CurrentPrice: body.CurrentPrice,
	}, nil
}

// Purchase calls POST /Product/{id}/purchase.
func (g *HTTPProductGateway) Purchase(ctx context.Context, productID string, quantity int, priceAtPurchase int64) (*domain.PurchaseReceipt, error) {
	url := fmt.Sprintf("%s/Product/%s/purchase", g.baseURL, productID)

	payload, err := json.Marshal(struct {
		Quantity        int   `json:"quantity"`
		PriceAtPurchase int64 `json:"priceAtPurchase"`
	}{Quantity: quantity, PriceAtPurchase: priceAtPurchase})
	if err != nil {
		return nil, fmt.Errorf("marshal purchase request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create purchase request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(ctx, req)
	if err != nil {
		return nil, apperrors.Upstream(
			fmt.Sprintf("%s: purchase failed for product %s", serviceName, productID),
			err,
		)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, httpclient.ParseResponseError(resp, serviceName)
	}
	defer func() { _ = resp.Body.Close() }()

	var receipt domain.PurchaseReceipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		// The purchase went through upstream; surface a distinct message
		// so operators know a compensation may be owed.
		return nil, apperrors.Upstream(
			fmt.Sprintf("%s: purchase succeeded but response for product %s could not be decoded", serviceName, productID),
			err,
		)
	}

	g.logger.DebugContext(ctx, "product purchased",
		slog.String("product_id", productID),
		slog.Int("quantity", quantity),
		slog.String("transaction_id", receipt.TransactionID),
	)

	return &receipt, nil
}

// CancelPurchase calls POST /Product/{id}/cancel.
func (g *HTTPProductGateway) CancelPurchase(ctx context.Context, productID string, quantity int) error {
	url := fmt.Sprintf("%s/Product/%s/cancel", g.baseURL, productID)

	payload, err := json.Marshal(struct {
		Quantity int `json:"quantity"`
	}{Quantity: quantity})
	if err != nil {
		return fmt.Errorf("marshal cancel request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create cancel request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(ctx, req)
	if err != nil {
		return apperrors.Upstream(
			fmt.Sprintf("%s: cancel failed for product %s", serviceName, productID),
			err,
		)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return httpclient.ParseResponseError(resp, serviceName)
	}
	_ = resp.Body.Close()

	g.logger.DebugContext(ctx, "purchase canceled",
		slog.String("product_id", productID),
		slog.Int("quantity", quantity),
	)

	return nil
}

// interface guard
var _ ProductGateway = (*HTTPProductGateway)(nil)
