package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/orderservice/internal/domain"
	"github.com/utafrali/orderservice/pkg/database"
)

func newTestSagaLogRepo(t *testing.T) (*SagaLogRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	repo := NewSagaLogRepository(mock)
	return repo, mock
}

func TestSagaLogRepository_Append_Success(t *testing.T) {
	repo, mock := newTestSagaLogRepo(t)
	defer mock.ExpectationsWereMet()

	now := time.Now().UTC().Truncate(time.Microsecond)
	entry := &domain.SagaLogEntry{
		ID:         "log-001",
		CheckoutID: "checkout-001",
		CartID:     "cart-001",
		Step:       domain.SagaStepPurchased,
		ProductID:  "prod-001",
		Quantity:   2,
		Detail:     "",
		CreatedAt:  now,
	}

	mock.ExpectExec("INSERT INTO checkout_saga_log").
		WithArgs(entry.ID, entry.CheckoutID, entry.CartID, entry.Step, entry.ProductID, entry.Quantity, entry.Detail, entry.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Append(context.Background(), entry)
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSagaLogRepository_Append_ExecError(t *testing.T) {
	repo, mock := newTestSagaLogRepo(t)
	defer mock.ExpectationsWereMet()

	mock.ExpectExec("INSERT INTO checkout_saga_log").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("disk full"))

	err := repo.Append(context.Background(), &domain.SagaLogEntry{ID: "log-001", CreatedAt: time.Now().UTC()})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "insert saga log entry")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSagaLogRepository_ListByCheckoutID_Success(t *testing.T) {
	repo, mock := newTestSagaLogRepo(t)
	defer mock.ExpectationsWereMet()

	now := time.Now().UTC().Truncate(time.Microsecond)

	rows := pgxmock.NewRows([]string{"id", "checkout_id", "cart_id", "step", "product_id", "quantity", "detail", "created_at"}).
		AddRow("log-001", "checkout-001", "cart-001", domain.SagaStepPurchased, "prod-001", 2, "", now).
		AddRow("log-002", "checkout-001", "cart-001", domain.SagaStepPurchaseFailed, "prod-002", 3, "product-service: out of stock", now).
		AddRow("log-003", "checkout-001", "cart-001", domain.SagaStepCanceled, "prod-001", 2, "", now)

	mock.ExpectQuery("SELECT .+ FROM checkout_saga_log").
		WithArgs("checkout-001").
		WillReturnRows(rows)

	entries, err := repo.ListByCheckoutID(context.Background(), "checkout-001")
	require.NoError(t, err)

	require.Len(t, entries, 3)
	assert.Equal(t, domain.SagaStepPurchased, entries[0].Step)
	assert.Equal(t, domain.SagaStepPurchaseFailed, entries[1].Step)
	assert.Equal(t, "product-service: out of stock", entries[1].Detail)
	assert.Equal(t, domain.SagaStepCanceled, entries[2].Step)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSagaLogRepository_ListByCheckoutID_Empty(t *testing.T) {
	repo, mock := newTestSagaLogRepo(t)
	defer mock.ExpectationsWereMet()

	rows := pgxmock.NewRows([]string{"id", "checkout_id", "cart_id", "step", "product_id", "quantity", "detail", "created_at"})

	mock.ExpectQuery("SELECT .+ FROM checkout_saga_log").
		WithArgs("checkout-unknown").
		WillReturnRows(rows)

	entries, err := repo.ListByCheckoutID(context.Background(), "checkout-unknown")
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NotNil(t, entries)

	assert.NoError(t, mock.ExpectationsWereMet())
}
