package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"food-ordering/internal/apperrors"
	"food-ordering/internal/middleware"
	"food-ordering/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRestaurantClient_CheckRestaurant_Exists(t *testing.T) {
	var gotCorrelation string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCorrelation = r.Header.Get(middleware.HeaderCorrelationID)
		if r.URL.Path == "/restaurants/r1" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewRestaurantClientForURL(srv.URL, nil, zaptest.NewLogger(t))
	ctx := middleware.WithCorrelationID(context.Background(), "cid-1")

	require.NoError(t, client.CheckRestaurant(ctx, "r1"))
	assert.Equal(t, "cid-1", gotCorrelation)
}

func TestRestaurantClient_CheckRestaurant_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewRestaurantClientForURL(srv.URL, nil, zaptest.NewLogger(t))

	err := client.CheckRestaurant(context.Background(), "missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRestaurantClient_CheckRestaurant_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client := NewRestaurantClientForURL(srv.URL, nil, zaptest.NewLogger(t))

	err := client.CheckRestaurant(context.Background(), "r1")
	require.Error(t, err)
	assert.True(t, apperrors.IsDownstream(err))
}

func TestRestaurantClient_CheckRestaurant_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewRestaurantClientForURL(srv.URL, nil, zaptest.NewLogger(t))
	client.httpClient = &http.Client{Timeout: 20 * time.Millisecond}

	err := client.CheckRestaurant(context.Background(), "r1")
	require.Error(t, err)

	var de *apperrors.DownstreamError
	require.ErrorAs(t, err, &de)
	assert.True(t, de.Timeout)
}

type stubCache struct {
	known   bool
	markErr error
	marked  []string
}

func (s *stubCache) Known(ctx context.Context, id string) bool { return s.known }

func (s *stubCache) Mark(ctx context.Context, id string, ttl time.Duration) error {
	s.marked = append(s.marked, id)
	return s.markErr
}

func TestRestaurantClient_CheckRestaurant_CacheHitSkipsLookup(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewRestaurantClientForURL(srv.URL, nil, zaptest.NewLogger(t))
	client.cache = &stubCache{known: true}

	require.NoError(t, client.CheckRestaurant(context.Background(), "r1"))
	assert.Equal(t, 0, requests)
}

func TestRestaurantClient_CheckRestaurant_CacheFailureFallsThrough(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	failing := &stubCache{markErr: errors.New("redis: connection refused")}
	client := NewRestaurantClientForURL(srv.URL, nil, zaptest.NewLogger(t))
	client.cache = failing

	// A broken cache degrades to an uncached lookup, never to an error.
	require.NoError(t, client.CheckRestaurant(context.Background(), "r1"))
	assert.Equal(t, 1, requests)
	assert.Equal(t, []string{"r1"}, failing.marked)
}

func TestPaymentClient_Initiate(t *testing.T) {
	var got models.CreatePaymentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/payments", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := NewPaymentClientForURL(srv.URL, zaptest.NewLogger(t))

	err := client.Initiate(context.Background(), models.CreatePaymentRequest{
		OrderID: "o1", UserID: "u1", Amount: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, "o1", got.OrderID)
	assert.Equal(t, 20.0, got.Amount)
}

func TestPaymentClient_Initiate_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewPaymentClientForURL(srv.URL, zaptest.NewLogger(t))

	err := client.Initiate(context.Background(), models.CreatePaymentRequest{
		OrderID: "o1", UserID: "u1", Amount: 20,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsDownstream(err))
}

func TestOrderClient_UpdateOrderStatus(t *testing.T) {
	var (
		gotMethod      string
		gotPath        string
		gotCorrelation string
		gotBody        models.UpdateOrderStatusRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotCorrelation = r.Header.Get(middleware.HeaderCorrelationID)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewOrderClientForURL(srv.URL, zaptest.NewLogger(t))
	ctx := middleware.WithCorrelationID(context.Background(), "cid-2")

	require.NoError(t, client.UpdateOrderStatus(ctx, "o1", models.OrderStatusConfirmed))
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/orders/o1/status", gotPath)
	assert.Equal(t, "cid-2", gotCorrelation)
	require.NotNil(t, gotBody.Status)
	assert.Equal(t, models.OrderStatusConfirmed, *gotBody.Status)
}

func TestOrderClient_UpdateOrderStatus_OrderGone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewOrderClientForURL(srv.URL, zaptest.NewLogger(t))

	err := client.UpdateOrderStatus(context.Background(), "gone", models.OrderStatusConfirmed)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}
