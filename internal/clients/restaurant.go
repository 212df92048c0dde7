// Package clients holds the HTTP clients for the saga's collaborators. Every
// call carries a bounded timeout and the caller's correlation id, and runs
// behind a circuit breaker.
package clients

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"food-ordering/internal/apperrors"
	"food-ordering/internal/cache"
	"food-ordering/internal/circuitbreaker"
	"food-ordering/internal/middleware"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	requestTimeout      = 5 * time.Second
	restaurantCacheTTL  = 5 * time.Minute
	breakerMaxFailures  = 5
	breakerResetTimeout = 30 * time.Second
)

// directoryCache caches positive restaurant lookups. Both methods are best
// effort: a failing cache never fails the lookup that consulted it.
type directoryCache interface {
	Known(ctx context.Context, id string) bool
	Mark(ctx context.Context, id string, ttl time.Duration) error
}

// RestaurantClient is a read-only view of the restaurant directory, with an
// optional cache of positive lookups.
type RestaurantClient struct {
	baseURL        string
	httpClient     *http.Client
	cache          directoryCache
	circuitBreaker *circuitbreaker.CircuitBreaker
	logger         *zap.Logger
}

func NewRestaurantClient(rdb *redis.Client, logger *zap.Logger) *RestaurantClient {
	c := &RestaurantClient{
		baseURL:        getEnv("RESTAURANT_SERVICE_URL", "http://localhost:5000"),
		httpClient:     &http.Client{Timeout: requestTimeout},
		circuitBreaker: circuitbreaker.NewCircuitBreaker(breakerMaxFailures, breakerResetTimeout),
		logger:         logger,
	}
	if rdb != nil {
		c.cache = cache.NewRestaurantCache(rdb)
	}
	return c
}

// NewRestaurantClientForURL is used by tests to point at an httptest server.
func NewRestaurantClientForURL(baseURL string, rdb *redis.Client, logger *zap.Logger) *RestaurantClient {
	c := NewRestaurantClient(rdb, logger)
	c.baseURL = baseURL
	return c
}

// CheckRestaurant returns nil when the restaurant exists,
// apperrors.ErrNotFound when the directory says it does not, and a
// downstream error when the directory cannot answer.
func (c *RestaurantClient) CheckRestaurant(ctx context.Context, restaurantID string) error {
	if c.cache != nil && c.cache.Known(ctx, restaurantID) {
		return nil
	}

	url := fmt.Sprintf("%s/restaurants/%s", c.baseURL, restaurantID)

	err := c.circuitBreaker.Execute(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		setCorrelationHeader(ctx, req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return apperrors.Downstream("restaurant-service", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return apperrors.ErrNotFound
		case resp.StatusCode >= 400:
			return apperrors.Downstream("restaurant-service",
				fmt.Errorf("unexpected status %d", resp.StatusCode))
		}
		return nil
	})
	if err != nil {
		return err
	}

	if c.cache != nil {
		if cerr := c.cache.Mark(ctx, restaurantID, restaurantCacheTTL); cerr != nil {
			c.logger.Warn("Failed to cache restaurant lookup", zap.Error(cerr))
		}
	}
	return nil
}

func setCorrelationHeader(ctx context.Context, req *http.Request) {
	if id := middleware.CorrelationIDFrom(ctx); id != "" {
		req.Header.Set(middleware.HeaderCorrelationID, id)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
