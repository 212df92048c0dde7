package models

import "time"

type OrderStatus string

const (
	OrderStatusPending       OrderStatus = "pending"
	OrderStatusConfirmed     OrderStatus = "confirmed"
	OrderStatusPaymentFailed OrderStatus = "payment_failed"
	OrderStatusCancelled     OrderStatus = "cancelled"
)

// DeliveryStatus is owned by the delivery service; this side only reads it.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusOnTheWay  DeliveryStatus = "on_the_way"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
)

type OrderItem struct {
	ItemID   string  `json:"itemId" binding:"required"`
	Name     string  `json:"name" binding:"required"`
	Quantity int     `json:"quantity" binding:"required,gte=1"`
	Price    float64 `json:"price" binding:"gte=0"`
}

type Order struct {
	ID             string         `json:"id"`
	UserID         string         `json:"userId"`
	RestaurantID   string         `json:"restaurantId"`
	Items          []OrderItem    `json:"items"`
	TotalPrice     float64        `json:"totalPrice"`
	Status         OrderStatus    `json:"status"`
	DeliveryStatus DeliveryStatus `json:"deliveryStatus"`
	Note           string         `json:"note,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

type CreateOrderRequest struct {
	UserID       string      `json:"userId" binding:"required"`
	RestaurantID string      `json:"restaurantId" binding:"required"`
	Items        []OrderItem `json:"items" binding:"required,min=1,dive"`
}

// UpdateOrderStatusRequest carries a partial update; at least one field must
// be set. The same endpoint serves the settlement callback, so values are
// applied as-is with no transition guard.
type UpdateOrderStatusRequest struct {
	Status         *OrderStatus    `json:"status"`
	DeliveryStatus *DeliveryStatus `json:"deliveryStatus"`
}

type OrderStatusResponse struct {
	OrderID        string         `json:"orderId"`
	Status         OrderStatus    `json:"status"`
	DeliveryStatus DeliveryStatus `json:"deliveryStatus"`
}

type NoteRequest struct {
	Note string `json:"note" binding:"required"`
}
