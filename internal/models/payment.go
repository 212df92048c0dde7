package models

import "time"

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Terminal reports whether a payment status admits no further settlement.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed
}

type Payment struct {
	ID            string        `json:"id"`
	OrderID       string        `json:"orderId"`
	UserID        string        `json:"userId"`
	Amount        float64       `json:"amount"`
	Status        PaymentStatus `json:"status"`
	PaymentMethod string        `json:"paymentMethod"`
	TransactionID string        `json:"transactionId"`
	CreatedAt     time.Time     `json:"createdAt"`
	ProcessedAt   *time.Time    `json:"processedAt"`
}

type CreatePaymentRequest struct {
	OrderID string  `json:"orderId" binding:"required"`
	UserID  string  `json:"userId" binding:"required"`
	Amount  float64 `json:"amount" binding:"required,gt=0"`
	// Status is accepted for wire compatibility but ignored; settlement
	// alone decides the stored status.
	Status PaymentStatus `json:"status,omitempty"`
}

type UpdatePaymentStatusRequest struct {
	Status PaymentStatus `json:"status" binding:"required"`
}
