package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/asheth-dev/backend-daan/internal/obs"
	"github.com/asheth-dev/backend-daan/internal/resilience"
)

// Razorpay implements Client against the Razorpay Orders REST API using
// Basic authentication with the key id/secret pair.
type Razorpay struct {
	KeyID     string
	KeySecret string
	BaseURL   string
	HTTP      *resilience.HTTPClient
}

type razorpayOrder struct {
	ID         string `json:"id"`
	Amount     int64  `json:"amount"`
	AmountPaid int64  `json:"amount_paid"`
	Currency   string `json:"currency"`
	Receipt    string `json:"receipt"`
	Status     string `json:"status"`
	CreatedAt  int64  `json:"created_at"`
}

type razorpayPayment struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Amount  int64  `json:"amount"`
	Method  string `json:"method"`
}

type razorpayCollection struct {
	Count int               `json:"count"`
	Items []razorpayPayment `json:"items"`
}

// CreateOrder opens a new gateway order for the requested amount. Any non-2xx
// response or transport failure is reported as ErrUnavailable so callers can
// distinguish "gateway never acknowledged" from local failures.
func (c Razorpay) CreateOrder(ctx context.Context, req OrderRequest) (Order, error) {
	if req.AmountMinor <= 0 {
		return Order{}, errors.New("gateway: amount must be positive")
	}
	if strings.TrimSpace(req.Currency) == "" {
		return Order{}, errors.New("gateway: currency is required")
	}
	body := map[string]any{
		"amount":   req.AmountMinor,
		"currency": req.Currency,
		"receipt":  req.Receipt,
	}
	if len(req.Notes) > 0 {
		body["notes"] = req.Notes
	}
	var out razorpayOrder
	if err := c.call(ctx, http.MethodPost, "/v1/orders", "create_order", body, &out); err != nil {
		return Order{}, err
	}
	if strings.TrimSpace(out.ID) == "" {
		return Order{}, fmt.Errorf("%w: order id missing in response", ErrUnavailable)
	}
	return toOrder(out), nil
}

// FetchOrder retrieves the current status of a gateway order.
func (c Razorpay) FetchOrder(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, errors.New("gateway: order id is required")
	}
	var out razorpayOrder
	if err := c.call(ctx, http.MethodGet, "/v1/orders/"+orderID, "fetch_order", nil, &out); err != nil {
		return Order{}, err
	}
	return toOrder(out), nil
}

// ListOrderPayments returns the payment attempts recorded against an order.
func (c Razorpay) ListOrderPayments(ctx context.Context, orderID string) ([]Payment, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, errors.New("gateway: order id is required")
	}
	var out razorpayCollection
	if err := c.call(ctx, http.MethodGet, "/v1/orders/"+orderID+"/payments", "list_payments", nil, &out); err != nil {
		return nil, err
	}
	payments := make([]Payment, 0, len(out.Items))
	for _, item := range out.Items {
		payments = append(payments, Payment{
			ID:          item.ID,
			OrderID:     item.OrderID,
			Status:      item.Status,
			AmountMinor: item.Amount,
			Method:      item.Method,
		})
	}
	return payments, nil
}

func (c Razorpay) call(ctx context.Context, method, path, operation string, body any, out any) error {
	start := time.Now()
	result := "error"
	defer func() {
		if obs.GatewayRequestLatency != nil {
			obs.GatewayRequestLatency.WithLabelValues(operation, result).Observe(obs.DurationMillis(time.Since(start)))
		}
	}()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL()+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.SetBasicAuth(c.KeyID, c.KeySecret)

	resp, err := c.do(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, operation, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain a bounded amount for the error message without echoing secrets
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s: status %d: %s", ErrUnavailable, operation, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: %s: decode response: %v", ErrUnavailable, operation, err)
		}
	}
	result = "success"
	return nil
}

func (c Razorpay) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.HTTP != nil {
		return c.HTTP.Do(ctx, req)
	}
	return http.DefaultClient.Do(req)
}

func (c Razorpay) baseURL() string {
	host := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if host == "" {
		return "https://api.razorpay.com"
	}
	return host
}

func toOrder(o razorpayOrder) Order {
	return Order{
		ID:          o.ID,
		AmountMinor: o.Amount,
		AmountPaid:  o.AmountPaid,
		Currency:    o.Currency,
		Receipt:     o.Receipt,
		Status:      o.Status,
		CreatedAt:   o.CreatedAt,
	}
}
