package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"food-ordering/internal/apperrors"
	"food-ordering/internal/middleware"
	"food-ordering/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// RestaurantDirectory answers existence checks against the restaurant
// service. Returns nil when the restaurant exists, apperrors.ErrNotFound when
// it does not, and a downstream error when the directory cannot answer.
type RestaurantDirectory interface {
	CheckRestaurant(ctx context.Context, restaurantID string) error
}

// PaymentInitiator hands the order off to the payment service.
type PaymentInitiator interface {
	Initiate(ctx context.Context, req models.CreatePaymentRequest) error
}

type OrderHandler struct {
	db        *sql.DB
	directory RestaurantDirectory
	payments  PaymentInitiator
	logger    *zap.Logger
}

func NewOrderHandler(
	db *sql.DB,
	directory RestaurantDirectory,
	payments PaymentInitiator,
	logger *zap.Logger,
) *OrderHandler {
	return &OrderHandler{
		db:        db,
		directory: directory,
		payments:  payments,
		logger:    logger,
	}
}

const orderColumns = "id, user_id, restaurant_id, items, total_price, status, delivery_status, note, created_at"

func scanOrder(s interface{ Scan(dest ...any) error }) (models.Order, error) {
	var (
		order     models.Order
		itemsJSON []byte
		note      sql.NullString
	)
	err := s.Scan(
		&order.ID,
		&order.UserID,
		&order.RestaurantID,
		&itemsJSON,
		&order.TotalPrice,
		&order.Status,
		&order.DeliveryStatus,
		&note,
		&order.CreatedAt,
	)
	if err != nil {
		return models.Order{}, err
	}
	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return models.Order{}, err
	}
	order.Note = note.String
	return order, nil
}

// CreateOrder runs the first half of the saga: validate, check the
// restaurant, persist the order as pending, then hand off to the payment
// service without waiting for settlement. Clients observe the final status
// by re-fetching the order.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	ctx, span := otel.Tracer("order-service").Start(c.Request.Context(), "CreateOrder")
	defer span.End()

	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(
		attribute.String("user.id", req.UserID),
		attribute.String("restaurant.id", req.RestaurantID),
		attribute.Int("items.count", len(req.Items)),
	)

	// Fail closed: a directory that cannot answer is treated the same as a
	// missing restaurant.
	if err := h.directory.CheckRestaurant(ctx, req.RestaurantID); err != nil {
		span.RecordError(err)
		if apperrors.IsDownstream(err) {
			h.logger.Warn("Restaurant directory unreachable, failing closed",
				zap.String("restaurant_id", req.RestaurantID),
				zap.Error(err),
			)
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "Restaurant not found"})
		return
	}

	var totalPrice float64
	for _, item := range req.Items {
		totalPrice += item.Price * float64(item.Quantity)
	}

	itemsJSON, err := json.Marshal(req.Items)
	if err != nil {
		span.RecordError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	order := models.Order{
		ID:             uuid.New().String(),
		UserID:         req.UserID,
		RestaurantID:   req.RestaurantID,
		Items:          req.Items,
		TotalPrice:     totalPrice,
		Status:         models.OrderStatusPending,
		DeliveryStatus: models.DeliveryStatusPending,
	}

	err = h.db.QueryRowContext(
		ctx,
		"INSERT INTO orders (id, user_id, restaurant_id, items, total_price, status, delivery_status) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at",
		order.ID,
		order.UserID,
		order.RestaurantID,
		itemsJSON,
		order.TotalPrice,
		order.Status,
		order.DeliveryStatus,
	).Scan(&order.CreatedAt)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to create order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	span.SetAttributes(attribute.String("order.id", order.ID))
	middleware.RecordOrderCreated()

	// Fire-and-forget handoff: if the dispatch fails the order stays pending
	// with no compensating rollback.
	initCtx := context.WithoutCancel(ctx)
	go func() {
		initReq := models.CreatePaymentRequest{
			OrderID: order.ID,
			UserID:  order.UserID,
			Amount:  order.TotalPrice,
		}
		if err := h.payments.Initiate(initCtx, initReq); err != nil {
			h.logger.Error("Payment initiation failed, order left pending",
				zap.String("order_id", order.ID),
				zap.String("correlation_id", middleware.CorrelationIDFrom(initCtx)),
				zap.Error(err),
			)
		}
	}()

	h.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.Float64("total_price", order.TotalPrice),
	)
	c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) GetOrders(c *gin.Context) {
	rows, err := h.db.QueryContext(c.Request.Context(), "SELECT "+orderColumns+" FROM orders")
	if err != nil {
		h.logger.Error("Failed to list orders", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	orders := make([]models.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			h.logger.Error("Failed to scan order", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		h.logger.Error("Failed to list orders", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	ctx, span := otel.Tracer("order-service").Start(c.Request.Context(), "GetOrder")
	defer span.End()

	orderID := c.Param("id")
	span.SetAttributes(attribute.String("order.id", orderID))

	order, err := scanOrder(h.db.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1", orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to get order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) GetOrdersByUser(c *gin.Context) {
	userID := c.Param("userId")

	rows, err := h.db.QueryContext(c.Request.Context(),
		"SELECT "+orderColumns+" FROM orders WHERE user_id = $1", userID)
	if err != nil {
		h.logger.Error("Failed to list user orders", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	orders := make([]models.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			h.logger.Error("Failed to scan order", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		h.logger.Error("Failed to list user orders", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) GetOrderStatus(c *gin.Context) {
	orderID := c.Param("id")

	var resp models.OrderStatusResponse
	err := h.db.QueryRowContext(c.Request.Context(),
		"SELECT id, status, delivery_status FROM orders WHERE id = $1", orderID,
	).Scan(&resp.OrderID, &resp.Status, &resp.DeliveryStatus)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		h.logger.Error("Failed to get order status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// UpdateOrderStatus applies a partial status update. It doubles as the
// settlement callback target, so the write is an unconditional overwrite and
// re-applying the same outcome is a no-op.
func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	ctx, span := otel.Tracer("order-service").Start(c.Request.Context(), "UpdateOrderStatus")
	defer span.End()

	orderID := c.Param("id")
	span.SetAttributes(attribute.String("order.id", orderID))

	var req models.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Status == nil && req.DeliveryStatus == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No status or deliveryStatus provided"})
		return
	}

	var status, deliveryStatus sql.NullString
	if req.Status != nil {
		status = sql.NullString{String: string(*req.Status), Valid: true}
		span.SetAttributes(attribute.String("order.status", string(*req.Status)))
	}
	if req.DeliveryStatus != nil {
		deliveryStatus = sql.NullString{String: string(*req.DeliveryStatus), Valid: true}
	}

	order, err := scanOrder(h.db.QueryRowContext(ctx,
		"UPDATE orders SET status = COALESCE($2, status), delivery_status = COALESCE($3, delivery_status) WHERE id = $1 RETURNING "+orderColumns,
		orderID, status, deliveryStatus))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to update order status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.logger.Info("Order status updated",
		zap.String("order_id", order.ID),
		zap.String("status", string(order.Status)),
		zap.String("delivery_status", string(order.DeliveryStatus)),
	)
	c.JSON(http.StatusOK, order)
}

// CancelOrder is a hard delete. A completed payment for the order is left
// untouched; there is no refund compensation step.
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	ctx, span := otel.Tracer("order-service").Start(c.Request.Context(), "CancelOrder")
	defer span.End()

	orderID := c.Param("id")
	span.SetAttributes(attribute.String("order.id", orderID))

	order, err := scanOrder(h.db.QueryRowContext(ctx,
		"DELETE FROM orders WHERE id = $1 RETURNING "+orderColumns, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to cancel order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.logger.Info("Order cancelled", zap.String("order_id", order.ID))
	c.JSON(http.StatusOK, gin.H{"message": "Order cancelled", "order": order})
}

func (h *OrderHandler) AddNote(c *gin.Context) {
	h.setNote(c, http.StatusCreated, "Note added")
}

func (h *OrderHandler) UpdateNote(c *gin.Context) {
	h.setNote(c, http.StatusOK, "Note updated")
}

func (h *OrderHandler) setNote(c *gin.Context, successCode int, message string) {
	orderID := c.Param("id")

	var req models.NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Note is required"})
		return
	}

	order, err := scanOrder(h.db.QueryRowContext(c.Request.Context(),
		"UPDATE orders SET note = $2 WHERE id = $1 RETURNING "+orderColumns,
		orderID, req.Note))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		h.logger.Error("Failed to set order note", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(successCode, gin.H{"message": message, "order": order})
}

func (h *OrderHandler) DeleteNote(c *gin.Context) {
	orderID := c.Param("id")

	order, err := scanOrder(h.db.QueryRowContext(c.Request.Context(),
		"UPDATE orders SET note = NULL WHERE id = $1 RETURNING "+orderColumns, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		h.logger.Error("Failed to remove order note", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Note removed", "order": order})
}
