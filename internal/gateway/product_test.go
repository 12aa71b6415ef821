package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/orderservice/pkg/errors"
)

// plainDoer adapts a bare *http.Client to the HTTPDoer interface.
type plainDoer struct {
	client *http.Client
}

func (d *plainDoer) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return d.client.Do(req.WithContext(ctx))
}

func newTestGateway(t *testing.T, handler http.Handler) *HTTPProductGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPProductGateway(&plainDoer{client: srv.Client()}, srv.URL, slog.Default())
}

// --- CheckAvailability ---

func TestCheckAvailability_Success(t *testing.T) {
	var gotPath string
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"productId":    "prod-001",
			"isAvailable":  true,
			"currentPrice": 1999,
		})
	}))

	info, err := gw.CheckAvailability(context.Background(), "prod-001")
	require.NoError(t, err)

	assert.Equal(t, "/Product/prod-001/availability", gotPath)
	assert.Equal(t, "prod-001", info.ProductID)
	assert.True(t, info.IsAvailable)
	assert.Equal(t, int64(1999), info.CurrentPrice)
}

func TestCheckAvailability_Unavailable(t *testing.T) {
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"productId":    "prod-001",
			"isAvailable":  false,
			"currentPrice": 0,
		})
	}))

	info, err := gw.CheckAvailability(context.Background(), "prod-001")
	require.NoError(t, err)
	assert.False(t, info.IsAvailable)
}

func TestCheckAvailability_NotFound(t *testing.T) {
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"product not found"}}`))
	}))

	info, err := gw.CheckAvailability(context.Background(), "prod-missing")
	assert.Nil(t, info)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCheckAvailability_ServerError(t *testing.T) {
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))

	info, err := gw.CheckAvailability(context.Background(), "prod-001")
	assert.Nil(t, info)
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
	assert.Contains(t, err.Error(), "product-service")
}

func TestCheckAvailability_TransportFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	gw := NewHTTPProductGateway(&plainDoer{client: srv.Client()}, srv.URL, slog.Default())
	srv.Close() // connection refused from here on

	info, err := gw.CheckAvailability(context.Background(), "prod-001")
	assert.Nil(t, info)
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
}

// --- Purchase ---

func TestPurchase_Success(t *testing.T) {
	ts := time.Now().UTC().Truncate(time.Second)

	var gotPath string
	var gotBody map[string]any
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"transaction_id":    "txn-001",
			"external_id":       "ext-001",
			"confirmation_code": "CONF-42",
			"amount":            3998,
			"currency":          "USD",
			"timestamp":         ts,
			"provider":          "acme-payments",
			"success":           true,
			"message":           "purchased",
		})
	}))

	receipt, err := gw.Purchase(context.Background(), "prod-001", 2, 1999)
	require.NoError(t, err)

	assert.Equal(t, "/Product/prod-001/purchase", gotPath)
	assert.Equal(t, float64(2), gotBody["quantity"])
	assert.Equal(t, float64(1999), gotBody["priceAtPurchase"])

	assert.Equal(t, "txn-001", receipt.TransactionID)
	assert.Equal(t, "CONF-42", receipt.ConfirmationCode)
	assert.Equal(t, int64(3998), receipt.Amount)
	assert.True(t, receipt.Success)
}

func TestPurchase_UpstreamRejection(t *testing.T) {
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"INVALID_INPUT","message":"insufficient stock"}}`))
	}))

	receipt, err := gw.Purchase(context.Background(), "prod-001", 99, 1999)
	assert.Nil(t, receipt)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "insufficient stock")
}

func TestPurchase_MalformedReceipt(t *testing.T) {
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))

	receipt, err := gw.Purchase(context.Background(), "prod-001", 1, 100)
	assert.Nil(t, receipt)
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
	assert.Contains(t, err.Error(), "could not be decoded")
}

// --- CancelPurchase ---

func TestCancelPurchase_Success(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))

	err := gw.CancelPurchase(context.Background(), "prod-001", 2)
	require.NoError(t, err)

	assert.Equal(t, "/Product/prod-001/cancel", gotPath)
	assert.Equal(t, float64(2), gotBody["quantity"])
}

func TestCancelPurchase_UpstreamError(t *testing.T) {
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("maintenance"))
	}))

	err := gw.CancelPurchase(context.Background(), "prod-001", 2)
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
}

// --- Doer error propagation ---

type failingDoer struct{}

func (failingDoer) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return nil, errors.New("circuit breaker is open")
}

func TestGateway_DoerErrorIsUpstream(t *testing.T) {
	gw := NewHTTPProductGateway(failingDoer{}, "http://product-service", slog.Default())

	_, err := gw.Purchase(context.Background(), "prod-001", 1, 100)
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
	assert.Contains(t, err.Error(), "circuit breaker is open")
}
