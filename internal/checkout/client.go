package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CreateOrderRequest is the payload for opening a payment order.
type CreateOrderRequest struct {
	Amount         decimal.Decimal
	Currency       string
	OrderID        string
	IdempotencyKey string
}

// CreateOrderResponse mirrors the server's order-creation response. Amount is
// in minor units, ready for the checkout script.
type CreateOrderResponse struct {
	RazorpayOrderID string `json:"razorpayOrderId"`
	OrderID         string `json:"orderId"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
}

// VerifyRequest carries the callback credentials to the verification endpoint.
type VerifyRequest struct {
	OrderID           string `json:"orderId"`
	RazorpayPaymentID string `json:"razorpayPaymentId"`
	RazorpayOrderID   string `json:"razorpayOrderId"`
	RazorpaySignature string `json:"razorpaySignature"`
}

// VerifyResponse mirrors the server's verification verdict.
type VerifyResponse struct {
	Verified  bool   `json:"verified"`
	PaymentID string `json:"paymentId"`
	Message   string `json:"message"`
}

// Client talks to the payment endpoints over HTTP. It implements both
// OrderAPI and VerifyAPI for the initiator.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient builds a Client against the given API base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

type wireCreateOrder struct {
	Amount   json.Number `json:"amount"`
	Currency string      `json:"currency,omitempty"`
	OrderID  string      `json:"orderId,omitempty"`
}

// CreateOrder opens a payment order via the server.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (CreateOrderResponse, error) {
	var resp CreateOrderResponse
	headers := map[string]string{}
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		headers["Idempotency-Key"] = key
	}
	err := c.post(ctx, "/api/v1/payments/orders", wireCreateOrder{
		Amount:   json.Number(req.Amount.String()),
		Currency: req.Currency,
		OrderID:  req.OrderID,
	}, headers, &resp)
	if err != nil {
		return CreateOrderResponse{}, err
	}
	return resp, nil
}

// Verify submits the callback credentials for signature verification. A 400
// verdict is not an error; the Verified flag carries the outcome.
func (c *Client) Verify(ctx context.Context, req VerifyRequest) (VerifyResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return VerifyResponse{}, fmt.Errorf("encode verify request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/payments/verify", bytes.NewReader(body))
	if err != nil {
		return VerifyResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return VerifyResponse{}, fmt.Errorf("verify payment: %w", err)
	}
	defer httpResp.Body.Close()

	switch httpResp.StatusCode {
	case http.StatusOK, http.StatusBadRequest:
		var verdict VerifyResponse
		if decodeErr := json.NewDecoder(httpResp.Body).Decode(&verdict); decodeErr != nil {
			return VerifyResponse{}, fmt.Errorf("decode verify response: %w", decodeErr)
		}
		return verdict, nil
	default:
		return VerifyResponse{}, apiError(httpResp)
	}
}

func (c *Client) post(ctx context.Context, path string, payload any, headers map[string]string, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func apiError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(snippet, &body) == nil {
		if body.Error != "" {
			return fmt.Errorf("payment api: status %d: %s", resp.StatusCode, body.Error)
		}
		if body.Message != "" {
			return fmt.Errorf("payment api: status %d: %s", resp.StatusCode, body.Message)
		}
	}
	return fmt.Errorf("payment api: status %d", resp.StatusCode)
}
