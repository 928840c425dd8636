package checkout_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/asheth-dev/backend-daan/internal/checkout"
)

func TestClientCreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/payments/orders", r.URL.Path)
		require.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, float64(49.99), body["amount"])
		_ = json.NewEncoder(w).Encode(checkout.CreateOrderResponse{
			RazorpayOrderID: "order_1",
			OrderID:         "intent-1",
			Amount:          4999,
			Currency:        "INR",
		})
	}))
	defer srv.Close()

	client := checkout.NewClient(srv.URL)
	resp, err := client.CreateOrder(context.Background(), checkout.CreateOrderRequest{
		Amount:         decimal.RequireFromString("49.99"),
		IdempotencyKey: "key-1",
	})
	require.NoError(t, err)
	require.Equal(t, "order_1", resp.RazorpayOrderID)
	require.Equal(t, int64(4999), resp.Amount)
}

func TestClientCreateOrderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "payment gateway unavailable"})
	}))
	defer srv.Close()

	client := checkout.NewClient(srv.URL)
	_, err := client.CreateOrder(context.Background(), checkout.CreateOrderRequest{
		Amount: decimal.RequireFromString("49.99"),
	})
	require.ErrorContains(t, err, "payment gateway unavailable")
}

func TestClientVerifyRejectionIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/payments/verify", r.URL.Path)
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(checkout.VerifyResponse{Verified: false, Message: "signature verification failed"})
	}))
	defer srv.Close()

	client := checkout.NewClient(srv.URL)
	verdict, err := client.Verify(context.Background(), checkout.VerifyRequest{
		OrderID:           "intent-1",
		RazorpayPaymentID: "pay_1",
		RazorpayOrderID:   "order_1",
		RazorpaySignature: "bad",
	})
	require.NoError(t, err)
	require.False(t, verdict.Verified)
	require.Equal(t, "signature verification failed", verdict.Message)
}
