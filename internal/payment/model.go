package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status enumerates the lifecycle states of a payment intent.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Intent is a locally persisted record of a charge opened with the gateway.
// It exists only after the gateway has acknowledged the order, so a row in
// the pending state always corresponds to a real gateway order.
type Intent struct {
	ID               uuid.UUID
	OrderID          uuid.NullUUID
	GatewayOrderID   string
	GatewayPaymentID string
	Amount           decimal.Decimal
	Currency         string
	Status           Status
	Method           string
	IdempotencyKey   string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Settled reports whether the intent has reached a terminal successful state.
func (i Intent) Settled() bool {
	return i.Status == StatusCompleted
}
