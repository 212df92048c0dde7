package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"food-ordering/internal/middleware"
	"food-ordering/internal/models"
	"food-ordering/internal/settlement"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// OrderNotifier is the callback channel back into the order service. Calls
// are best effort: a failed notification is logged and swallowed, leaving the
// payment record as the only witness of the true outcome.
type OrderNotifier interface {
	UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus) error
}

type PaymentHandler struct {
	db      *sql.DB
	decider settlement.Decider
	orders  OrderNotifier
	logger  *zap.Logger
}

func NewPaymentHandler(
	db *sql.DB,
	decider settlement.Decider,
	orders OrderNotifier,
	logger *zap.Logger,
) *PaymentHandler {
	return &PaymentHandler{
		db:      db,
		decider: decider,
		orders:  orders,
		logger:  logger,
	}
}

const paymentColumns = "id, order_id, user_id, amount, status, payment_method, transaction_id, created_at, processed_at"

func scanPayment(s interface{ Scan(dest ...any) error }) (models.Payment, error) {
	var (
		payment       models.Payment
		transactionID sql.NullString
		processedAt   sql.NullTime
	)
	err := s.Scan(
		&payment.ID,
		&payment.OrderID,
		&payment.UserID,
		&payment.Amount,
		&payment.Status,
		&payment.PaymentMethod,
		&transactionID,
		&payment.CreatedAt,
		&processedAt,
	)
	if err != nil {
		return models.Payment{}, err
	}
	payment.TransactionID = transactionID.String
	if processedAt.Valid {
		t := processedAt.Time
		payment.ProcessedAt = &t
	}
	return payment, nil
}

func newTransactionID() string {
	return "txn_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:9]
}

// CreatePayment settles a payment attempt in one shot: the injected decider
// picks the outcome, the record is persisted already terminal, and the order
// service is notified synchronously before the response goes out.
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	ctx, span := otel.Tracer("payment-service").Start(c.Request.Context(), "CreatePayment")
	defer span.End()

	var req models.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	span.SetAttributes(
		attribute.String("order.id", req.OrderID),
		attribute.String("user.id", req.UserID),
		attribute.Float64("amount", req.Amount),
	)

	outcome := h.decider.Decide()
	now := time.Now()

	payment := models.Payment{
		ID:            uuid.New().String(),
		OrderID:       req.OrderID,
		UserID:        req.UserID,
		Amount:        req.Amount,
		Status:        models.PaymentStatus(outcome),
		PaymentMethod: "credit_card",
		TransactionID: newTransactionID(),
		ProcessedAt:   &now,
	}

	span.SetAttributes(attribute.Bool("payment.success", outcome == settlement.OutcomeCompleted))

	err := h.db.QueryRowContext(
		ctx,
		"INSERT INTO payments (id, order_id, user_id, amount, status, payment_method, transaction_id, processed_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING created_at",
		payment.ID,
		payment.OrderID,
		payment.UserID,
		payment.Amount,
		payment.Status,
		payment.PaymentMethod,
		payment.TransactionID,
		payment.ProcessedAt,
	).Scan(&payment.CreatedAt)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to create payment", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	span.SetAttributes(attribute.String("payment.id", payment.ID))
	middleware.RecordPaymentProcessed(string(payment.Status))

	orderStatus := models.OrderStatusConfirmed
	if outcome == settlement.OutcomeFailed {
		orderStatus = models.OrderStatusPaymentFailed
	}
	h.notifyOrder(ctx, payment.OrderID, orderStatus)

	h.logger.Info("Payment processed",
		zap.String("payment_id", payment.ID),
		zap.String("order_id", payment.OrderID),
		zap.String("status", string(payment.Status)),
		zap.String("transaction_id", payment.TransactionID),
	)
	c.JSON(http.StatusCreated, payment)
}

func (h *PaymentHandler) notifyOrder(ctx context.Context, orderID string, status models.OrderStatus) {
	if err := h.orders.UpdateOrderStatus(ctx, orderID, status); err != nil {
		h.logger.Error("Order service notification failed",
			zap.String("order_id", orderID),
			zap.String("status", string(status)),
			zap.String("correlation_id", middleware.CorrelationIDFrom(ctx)),
			zap.Error(err),
		)
	}
}

func (h *PaymentHandler) GetPayments(c *gin.Context) {
	rows, err := h.db.QueryContext(c.Request.Context(), "SELECT "+paymentColumns+" FROM payments")
	if err != nil {
		h.logger.Error("Failed to list payments", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	payments := make([]models.Payment, 0)
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			h.logger.Error("Failed to scan payment", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		h.logger.Error("Failed to list payments", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, payments)
}

func (h *PaymentHandler) GetPayment(c *gin.Context) {
	paymentID := c.Param("id")

	payment, err := scanPayment(h.db.QueryRowContext(c.Request.Context(),
		"SELECT "+paymentColumns+" FROM payments WHERE id = $1", paymentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
			return
		}
		h.logger.Error("Failed to get payment", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, payment)
}

func (h *PaymentHandler) GetPaymentsByUser(c *gin.Context) {
	userID := c.Param("userId")

	rows, err := h.db.QueryContext(c.Request.Context(),
		"SELECT "+paymentColumns+" FROM payments WHERE user_id = $1", userID)
	if err != nil {
		h.logger.Error("Failed to list user payments", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	payments := make([]models.Payment, 0)
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			h.logger.Error("Failed to scan payment", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		h.logger.Error("Failed to list user payments", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, payments)
}

// ConfirmPayment is the manual override path. Confirming an already-completed
// payment returns the existing record unchanged and fires no second callback.
func (h *PaymentHandler) ConfirmPayment(c *gin.Context) {
	ctx, span := otel.Tracer("payment-service").Start(c.Request.Context(), "ConfirmPayment")
	defer span.End()

	paymentID := c.Param("id")
	span.SetAttributes(attribute.String("payment.id", paymentID))

	payment, err := scanPayment(h.db.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE id = $1", paymentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to get payment", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if payment.Status == models.PaymentStatusCompleted {
		c.JSON(http.StatusOK, gin.H{"message": "Payment already confirmed", "payment": payment})
		return
	}

	now := time.Now()
	payment, err = scanPayment(h.db.QueryRowContext(ctx,
		"UPDATE payments SET status = $2, processed_at = $3 WHERE id = $1 RETURNING "+paymentColumns,
		paymentID, models.PaymentStatusCompleted, now))
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to confirm payment", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.notifyOrder(ctx, payment.OrderID, models.OrderStatusConfirmed)

	h.logger.Info("Payment confirmed",
		zap.String("payment_id", payment.ID),
		zap.String("order_id", payment.OrderID),
	)
	c.JSON(http.StatusOK, gin.H{"message": "Payment confirmed", "payment": payment})
}

// UpdatePaymentStatus is an unconditional overwrite; processedAt is stamped
// only when the new status is terminal. Overrides through this endpoint do
// not notify the order service.
func (h *PaymentHandler) UpdatePaymentStatus(c *gin.Context) {
	ctx, span := otel.Tracer("payment-service").Start(c.Request.Context(), "UpdatePaymentStatus")
	defer span.End()

	paymentID := c.Param("id")
	span.SetAttributes(attribute.String("payment.id", paymentID))

	var req models.UpdatePaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	span.SetAttributes(attribute.String("payment.status", string(req.Status)))

	var (
		payment models.Payment
		err     error
	)
	if req.Status.Terminal() {
		payment, err = scanPayment(h.db.QueryRowContext(ctx,
			"UPDATE payments SET status = $2, processed_at = $3 WHERE id = $1 RETURNING "+paymentColumns,
			paymentID, req.Status, time.Now()))
	} else {
		payment, err = scanPayment(h.db.QueryRowContext(ctx,
			"UPDATE payments SET status = $2 WHERE id = $1 RETURNING "+paymentColumns,
			paymentID, req.Status))
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to update payment status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, payment)
}
