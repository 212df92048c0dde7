package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"food-ordering/internal/apperrors"
	"food-ordering/internal/circuitbreaker"
	"food-ordering/internal/models"

	"go.uber.org/zap"
)

// PaymentClient dispatches payment initiation to the payment service. The
// coordinator treats the dispatch as best effort: a failure leaves the order
// pending with no compensating rollback.
type PaymentClient struct {
	baseURL        string
	httpClient     *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	logger         *zap.Logger
}

func NewPaymentClient(logger *zap.Logger) *PaymentClient {
	return &PaymentClient{
		baseURL:        getEnv("PAYMENT_SERVICE_URL", "http://localhost:3003"),
		httpClient:     &http.Client{Timeout: requestTimeout},
		circuitBreaker: circuitbreaker.NewCircuitBreaker(breakerMaxFailures, breakerResetTimeout),
		logger:         logger,
	}
}

// NewPaymentClientForURL is used by tests to point at an httptest server.
func NewPaymentClientForURL(baseURL string, logger *zap.Logger) *PaymentClient {
	c := NewPaymentClient(logger)
	c.baseURL = baseURL
	return c
}

func (c *PaymentClient) Initiate(ctx context.Context, req models.CreatePaymentRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/payments", c.baseURL)

	return c.circuitBreaker.Execute(ctx, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		setCorrelationHeader(ctx, httpReq)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return apperrors.Downstream("payment-service", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			return apperrors.Downstream("payment-service",
				fmt.Errorf("unexpected status %d", resp.StatusCode))
		}
		return nil
	})
}
