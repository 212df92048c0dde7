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

// OrderClient is the settlement callback channel: synchronous, at-most-once,
// no retry beyond the immediate attempt.
type OrderClient struct {
	baseURL        string
	httpClient     *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	logger         *zap.Logger
}

func NewOrderClient(logger *zap.Logger) *OrderClient {
	return &OrderClient{
		baseURL:        getEnv("ORDER_SERVICE_URL", "http://localhost:3002"),
		httpClient:     &http.Client{Timeout: requestTimeout},
		circuitBreaker: circuitbreaker.NewCircuitBreaker(breakerMaxFailures, breakerResetTimeout),
		logger:         logger,
	}
}

// NewOrderClientForURL is used by tests to point at an httptest server.
func NewOrderClientForURL(baseURL string, logger *zap.Logger) *OrderClient {
	c := NewOrderClient(logger)
	c.baseURL = baseURL
	return c
}

func (c *OrderClient) UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus) error {
	body, err := json.Marshal(models.UpdateOrderStatusRequest{Status: &status})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/orders/%s/status", c.baseURL, orderID)

	return c.circuitBreaker.Execute(ctx, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		setCorrelationHeader(ctx, httpReq)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return apperrors.Downstream("order-service", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return apperrors.ErrNotFound
		case resp.StatusCode >= 400:
			return apperrors.Downstream("order-service",
				fmt.Errorf("unexpected status %d", resp.StatusCode))
		}
		return nil
	})
}
