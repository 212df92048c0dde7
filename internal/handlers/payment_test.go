package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"food-ordering/internal/apperrors"
	"food-ordering/internal/models"
	"food-ordering/internal/settlement"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type notification struct {
	orderID string
	status  models.OrderStatus
}

type stubNotifier struct {
	mu    sync.Mutex
	calls []notification
	err   error
}

func (s *stubNotifier) UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, notification{orderID: orderID, status: status})
	return s.err
}

func (s *stubNotifier) notifications() []notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notification(nil), s.calls...)
}

func setupPaymentTest(t *testing.T, decider settlement.Decider, notifier OrderNotifier) (sqlmock.Sqlmock, *gin.Engine) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	handler := NewPaymentHandler(db, decider, notifier, zaptest.NewLogger(t))

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/payments", handler.CreatePayment)
	router.GET("/payments", handler.GetPayments)
	router.GET("/payments/:id", handler.GetPayment)
	router.GET("/payments/user/:userId", handler.GetPaymentsByUser)
	router.POST("/payments/:id/confirm", handler.ConfirmPayment)
	router.PUT("/payments/:id/status", handler.UpdatePaymentStatus)

	return mock, router
}

func paymentRow(id string, status models.PaymentStatus, processedAt any) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "order_id", "user_id", "amount", "status", "payment_method", "transaction_id", "created_at", "processed_at",
	}).AddRow(id, "o1", "u1", 20.0, string(status), "credit_card", "txn_abc123def", time.Now(), processedAt)
}

const createPaymentBody = `{"orderId": "o1", "userId": "u1", "amount": 20}`

func TestPaymentHandler_CreatePayment_ForcedSuccess(t *testing.T) {
	notifier := &stubNotifier{}
	mock, router := setupPaymentTest(t, settlement.Fixed(settlement.OutcomeCompleted), notifier)

	mock.ExpectQuery("INSERT INTO payments").
		WithArgs(sqlmock.AnyArg(), "o1", "u1", 20.0, "completed", "credit_card", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(createPaymentBody))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var payment models.Payment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payment))
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
	assert.Equal(t, 20.0, payment.Amount)
	assert.True(t, strings.HasPrefix(payment.TransactionID, "txn_"))
	require.NotNil(t, payment.ProcessedAt)

	require.Equal(t, []notification{{orderID: "o1", status: models.OrderStatusConfirmed}}, notifier.notifications())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentHandler_CreatePayment_ForcedFailure(t *testing.T) {
	notifier := &stubNotifier{}
	mock, router := setupPaymentTest(t, settlement.Fixed(settlement.OutcomeFailed), notifier)

	mock.ExpectQuery("INSERT INTO payments").
		WithArgs(sqlmock.AnyArg(), "o1", "u1", 20.0, "failed", "credit_card", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(createPaymentBody))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var payment models.Payment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payment))
	assert.Equal(t, models.PaymentStatusFailed, payment.Status)

	require.Equal(t, []notification{{orderID: "o1", status: models.OrderStatusPaymentFailed}}, notifier.notifications())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentHandler_CreatePayment_MissingFields(t *testing.T) {
	mock, router := setupPaymentTest(t, settlement.Fixed(settlement.OutcomeCompleted), &stubNotifier{})

	req := httptest.NewRequest(http.MethodPost, "/payments",
		strings.NewReader(`{"orderId": "o1"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentHandler_CreatePayment_CallbackFailureSwallowed(t *testing.T) {
	notifier := &stubNotifier{err: apperrors.Downstream("order-service", context.DeadlineExceeded)}
	mock, router := setupPaymentTest(t, settlement.Fixed(settlement.OutcomeCompleted), notifier)

	mock.ExpectQuery("INSERT INTO payments").
		WithArgs(sqlmock.AnyArg(), "o1", "u1", 20.0, "completed", "credit_card", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(createPaymentBody))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	// The payment record carries the true outcome even when the order side
	// never hears about it.
	require.Equal(t, http.StatusCreated, w.Code)

	var payment models.Payment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payment))
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentHandler_ConfirmPayment_AlreadyCompleted(t *testing.T) {
	notifier := &stubNotifier{}
	mock, router := setupPaymentTest(t, settlement.Fixed(settlement.OutcomeCompleted), notifier)

	mock.ExpectQuery("SELECT (.+) FROM payments WHERE id = \\$1").
		WithArgs("p1").
		WillReturnRows(paymentRow("p1", models.PaymentStatusCompleted, time.Now()))

	req := httptest.NewRequest(http.MethodPost, "/payments/p1/confirm", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Payment already confirmed")

	// No forced update and no second callback.
	assert.Empty(t, notifier.notifications())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentHandler_ConfirmPayment_ForcesCompletion(t *testing.T) {
	notifier := &stubNotifier{}
	mock, router := setupPaymentTest(t, settlement.Fixed(settlement.OutcomeCompleted), notifier)

	mock.ExpectQuery("SELECT (.+) FROM payments WHERE id = \\$1").
		WithArgs("p1").
		WillReturnRows(paymentRow("p1", models.PaymentStatusPending, nil))
	mock.ExpectQuery("UPDATE payments SET status = \\$2, processed_at = \\$3").
		WithArgs("p1", "completed", sqlmock.AnyArg()).
		WillReturnRows(paymentRow("p1", models.PaymentStatusCompleted, time.Now()))

	req := httptest.NewRequest(http.MethodPost, "/payments/p1/confirm", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Payment confirmed")

	require.Equal(t, []notification{{orderID: "o1", status: models.OrderStatusConfirmed}}, notifier.notifications())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentHandler_ConfirmPayment_NotFound(t *testing.T) {
	mock, router := setupPaymentTest(t, settlement.Fixed(settlement.OutcomeCompleted), &stubNotifier{})

	mock.ExpectQuery("SELECT (.+) FROM payments WHERE id = \\$1").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	req := httptest.NewRequest(http.MethodPost, "/payments/missing/confirm", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentHandler_UpdatePaymentStatus_TerminalStampsProcessedAt(t *testing.T) {
	notifier := &stubNotifier{}
	mock, router := setupPaymentTest(t, settlement.Fixed(settlement.OutcomeCompleted), notifier)

	mock.ExpectQuery("UPDATE payments SET status = \\$2, processed_at = \\$3").
		WithArgs("p1", "failed", sqlmock.AnyArg()).
		WillReturnRows(paymentRow("p1", models.PaymentStatusFailed, time.Now()))

	req := httptest.NewRequest(http.MethodPut, "/payments/p1/status",
		strings.NewReader(`{"status": "failed"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var payment models.Payment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payment))
	assert.Equal(t, models.PaymentStatusFailed, payment.Status)
	assert.NotNil(t, payment.ProcessedAt)

	// Overrides through this endpoint never call back into the order service.
	assert.Empty(t, notifier.notifications())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentHandler_UpdatePaymentStatus_NonTerminal(t *testing.T) {
	mock, router := setupPaymentTest(t, settlement.Fixed(settlement.OutcomeCompleted), &stubNotifier{})

	mock.ExpectQuery("UPDATE payments SET status = \\$2 WHERE").
		WithArgs("p1", "pending").
		WillReturnRows(paymentRow("p1", models.PaymentStatusPending, nil))

	req := httptest.NewRequest(http.MethodPut, "/payments/p1/status",
		strings.NewReader(`{"status": "pending"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var payment models.Payment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payment))
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	assert.Nil(t, payment.ProcessedAt)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentHandler_GetPayment_NotFound(t *testing.T) {
	mock, router := setupPaymentTest(t, settlement.Fixed(settlement.OutcomeCompleted), &stubNotifier{})

	mock.ExpectQuery("SELECT (.+) FROM payments WHERE id = \\$1").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	req := httptest.NewRequest(http.MethodGet, "/payments/missing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentHandler_GetPaymentsByUser(t *testing.T) {
	mock, router := setupPaymentTest(t, settlement.Fixed(settlement.OutcomeCompleted), &stubNotifier{})

	mock.ExpectQuery("SELECT (.+) FROM payments WHERE user_id = \\$1").
		WithArgs("u1").
		WillReturnRows(paymentRow("p1", models.PaymentStatusCompleted, time.Now()))

	req := httptest.NewRequest(http.MethodGet, "/payments/user/u1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var payments []models.Payment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payments))
	require.Len(t, payments, 1)
	assert.Equal(t, "u1", payments[0].UserID)

	require.NoError(t, mock.ExpectationsWereMet())
}
