package gateway

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the gateway rejected or never acknowledged a call.
// Callers must not persist local state for charges the gateway never accepted.
var ErrUnavailable = errors.New("gateway: unavailable")

// OrderRequest captures the parameters for opening a charge with the gateway.
type OrderRequest struct {
	// AmountMinor is the charge amount in the smallest currency unit.
	AmountMinor int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

// Order is the gateway's view of a charge attempt.
type Order struct {
	ID          string
	AmountMinor int64
	AmountPaid  int64
	Currency    string
	Receipt     string
	Status      string
	CreatedAt   int64
}

// Payment is a single payment attempt recorded against a gateway order.
type Payment struct {
	ID          string
	OrderID     string
	Status      string
	AmountMinor int64
	Method      string
}

// Order statuses reported by the gateway.
const (
	OrderStatusCreated   = "created"
	OrderStatusAttempted = "attempted"
	OrderStatusPaid      = "paid"
)

// Payment statuses reported by the gateway.
const (
	PaymentStatusCaptured = "captured"
	PaymentStatusFailed   = "failed"
)

// Client abstracts the operations required from the upstream payment gateway.
type Client interface {
	CreateOrder(ctx context.Context, req OrderRequest) (Order, error)
	FetchOrder(ctx context.Context, orderID string) (Order, error)
	ListOrderPayments(ctx context.Context, orderID string) ([]Payment, error)
}
