package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/orderservice/internal/domain"
	"github.com/utafrali/orderservice/internal/event"
	"github.com/utafrali/orderservice/internal/service"
	apperrors "github.com/utafrali/orderservice/pkg/errors"
	"github.com/utafrali/orderservice/pkg/httputil"
	pkgkafka "github.com/utafrali/orderservice/pkg/kafka"
)

const (
	testOrderID   = "550e8400-e29b-41d4-a716-446655440001"
	testProductID = "550e8400-e29b-41d4-a716-446655440002"
)

// --- Mock OrderRepository ---

type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *mockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) List(ctx context.Context, page, perPage int) ([]domain.Order, int, error) {
	args := m.Called(ctx, page, perPage)
	return args.Get(0).([]domain.Order), args.Int(1), args.Error(2)
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, id string, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *mockOrderRepository) Delete(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// --- Test Helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testEventProducer() *event.Producer {
	logger := testLogger()
	kafkaCfg := pkgkafka.DefaultProducerConfig([]string{"localhost:19092"})
	kafkaProducer := pkgkafka.NewProducer(kafkaCfg, logger)
	return event.NewProducer(kafkaProducer, logger)
}

func testOrderHandler(repo *mockOrderRepository) *OrderHandler {
	svc := service.NewOrderService(repo, testEventProducer(), testLogger())
	return NewOrderHandler(svc, testLogger())
}

// setupOrderRouter creates a chi router matching the production route layout.
func setupOrderRouter(handler *OrderHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Route("/orders", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Post("/", handler.CreateOrder)
		r.Get("/", handler.ListOrders)
		r.Get("/{id}", handler.GetOrder)
		r.Put("/{id}", handler.UpdateOrder)
		r.Patch("/{id}/status", handler.UpdateOrderStatus)
		r.Delete("/{id}", handler.DeleteOrder)
	})
	return r
}

// decodeResponse reads the response body into the httputil.Response struct.
func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	return resp
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func sampleOrder() *domain.Order {
	return &domain.Order{
		ID:        testOrderID,
		Status:    domain.OrderStatusPending,
		CreatedAt: time.Now().UTC(),
		Items: []domain.OrderItem{
			{
				ID:              "550e8400-e29b-41d4-a716-446655440003",
				OrderID:         testOrderID,
				ProductID:       testProductID,
				Quantity:        2,
				PriceAtPurchase: 1999,
				Receipt:         &domain.PurchaseReceipt{TransactionID: "txn-1", Amount: 3998, Success: true},
			},
		},
	}
}

// --- CreateOrder ---

func TestCreateOrderHandler_Success(t *testing.T) {
	repo := new(mockOrderRepository)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Order")).Return(nil)
	router := setupOrderRouter(testOrderHandler(repo))

	req := jsonRequest(t, http.MethodPost, "/orders", map[string]any{
		"items": []map[string]any{
			{"product_id": testProductID, "quantity": 2, "price_at_purchase": 1999},
		},
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Data)
	repo.AssertExpectations(t)
}

func TestCreateOrderHandler_InvalidJSON(t *testing.T) {
	repo := new(mockOrderRepository)
	router := setupOrderRouter(testOrderHandler(repo))

	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
}

func TestCreateOrderHandler_NoItems(t *testing.T) {
	repo := new(mockOrderRepository)
	router := setupOrderRouter(testOrderHandler(repo))

	req := jsonRequest(t, http.MethodPost, "/orders", map[string]any{"items": []map[string]any{}})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// --- ListOrders ---

func TestListOrdersHandler_Success(t *testing.T) {
	repo := new(mockOrderRepository)
	repo.On("List", mock.Anything, 1, 10).Return([]domain.Order{*sampleOrder()}, 1, nil)
	router := setupOrderRouter(testOrderHandler(repo))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp OrdersListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 10, resp.PageSize)
	assert.Equal(t, 1, resp.TotalCount)
	require.Len(t, resp.Orders, 1)
	assert.Equal(t, testOrderID, resp.Orders[0].ID)
}

func TestListOrdersHandler_WithPagination(t *testing.T) {
	repo := new(mockOrderRepository)
	repo.On("List", mock.Anything, 3, 25).Return([]domain.Order{}, 60, nil)
	router := setupOrderRouter(testOrderHandler(repo))

	req := httptest.NewRequest(http.MethodGet, "/orders?page=3&pageSize=25", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp OrdersListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 3, resp.Page)
	assert.Equal(t, 25, resp.PageSize)
	assert.Equal(t, 60, resp.TotalCount)
	assert.NotNil(t, resp.Orders)
}

func TestListOrdersHandler_PageSizeTooLarge_FallsBack(t *testing.T) {
	repo := new(mockOrderRepository)
	repo.On("List", mock.Anything, 1, 10).Return([]domain.Order{}, 0, nil)
	router := setupOrderRouter(testOrderHandler(repo))

	req := httptest.NewRequest(http.MethodGet, "/orders?pageSize=5000", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	repo.AssertExpectations(t)
}

// --- GetOrder ---

func TestGetOrderHandler_Success(t *testing.T) {
	repo := new(mockOrderRepository)
	repo.On("GetByID", mock.Anything, testOrderID).Return(sampleOrder(), nil)
	router := setupOrderRouter(testOrderHandler(repo))

	req := httptest.NewRequest(http.MethodGet, "/orders/"+testOrderID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Data)
}

func TestGetOrderHandler_InvalidUUID(t *testing.T) {
	repo := new(mockOrderRepository)
	router := setupOrderRouter(testOrderHandler(repo))

	req := httptest.NewRequest(http.MethodGet, "/orders/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_PARAMETER", resp.Error.Code)
}

func TestGetOrderHandler_NotFound(t *testing.T) {
	repo := new(mockOrderRepository)
	repo.On("GetByID", mock.Anything, testOrderID).Return(nil, apperrors.ErrNotFound)
	router := setupOrderRouter(testOrderHandler(repo))

	req := httptest.NewRequest(http.MethodGet, "/orders/"+testOrderID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

// --- UpdateOrder / UpdateOrderStatus ---

func TestUpdateOrderHandler_Success(t *testing.T) {
	repo := new(mockOrderRepository)
	repo.On("GetByID", mock.Anything, testOrderID).Return(sampleOrder(), nil)
	repo.On("UpdateStatus", mock.Anything, testOrderID, "Shipped").Return(nil)
	router := setupOrderRouter(testOrderHandler(repo))

	req := jsonRequest(t, http.MethodPut, "/orders/"+testOrderID, map[string]any{"status": "Shipped"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	repo.AssertExpectations(t)
}

func TestUpdateOrderStatusHandler_Success(t *testing.T) {
	repo := new(mockOrderRepository)
	repo.On("GetByID", mock.Anything, testOrderID).Return(sampleOrder(), nil)
	repo.On("UpdateStatus", mock.Anything, testOrderID, "Delivered").Return(nil)
	router := setupOrderRouter(testOrderHandler(repo))

	req := jsonRequest(t, http.MethodPatch, "/orders/"+testOrderID+"/status", map[string]any{"status": "Delivered"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	repo.AssertExpectations(t)
}

func TestUpdateOrderStatusHandler_EmptyStatus(t *testing.T) {
	repo := new(mockOrderRepository)
	router := setupOrderRouter(testOrderHandler(repo))

	req := jsonRequest(t, http.MethodPatch, "/orders/"+testOrderID+"/status", map[string]any{"status": ""})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateOrderStatusHandler_NotFound(t *testing.T) {
	repo := new(mockOrderRepository)
	repo.On("GetByID", mock.Anything, testOrderID).Return(nil, apperrors.ErrNotFound)
	router := setupOrderRouter(testOrderHandler(repo))

	req := jsonRequest(t, http.MethodPatch, "/orders/"+testOrderID+"/status", map[string]any{"status": "Shipped"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// --- DeleteOrder ---

func TestDeleteOrderHandler_Success(t *testing.T) {
	repo := new(mockOrderRepository)
	repo.On("Delete", mock.Anything, testOrderID).Return(true, nil)
	router := setupOrderRouter(testOrderHandler(repo))

	req := httptest.NewRequest(http.MethodDelete, "/orders/"+testOrderID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeleteOrderHandler_NotFound(t *testing.T) {
	repo := new(mockOrderRepository)
	repo.On("Delete", mock.Anything, testOrderID).Return(false, nil)
	router := setupOrderRouter(testOrderHandler(repo))

	req := httptest.NewRequest(http.MethodDelete, "/orders/"+testOrderID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// --- ContentTypeJSON ---

func TestContentTypeJSON_RejectsXML(t *testing.T) {
	repo := new(mockOrderRepository)
	router := setupOrderRouter(testOrderHandler(repo))

	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString("<order/>"))
	req.Header.Set("Content-Type", "application/xml")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestContentTypeJSON_BodylessRequestPasses(t *testing.T) {
	repo := new(mockOrderRepository)
	repo.On("Delete", mock.Anything, testOrderID).Return(true, nil)
	router := setupOrderRouter(testOrderHandler(repo))

	req := httptest.NewRequest(http.MethodDelete, "/orders/"+testOrderID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
