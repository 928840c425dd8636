package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/asheth-dev/backend-daan/internal/events"
	"github.com/asheth-dev/backend-daan/internal/gateway"
	"github.com/asheth-dev/backend-daan/internal/obs"
)

var tracer = otel.Tracer("payment")

// ReplayGuard reserves a one-shot slot per gateway payment id so a verified
// callback is only settled once. Reservations are made after signature
// validation succeeds, never before, so forged callbacks cannot burn slots.
type ReplayGuard struct {
	Client *redis.Client
	TTL    time.Duration
}

// Reserve returns true when this is the first valid callback seen for the
// given gateway payment id.
func (g *ReplayGuard) Reserve(ctx context.Context, gatewayPaymentID string) (bool, error) {
	if g == nil || g.Client == nil {
		return true, nil
	}
	ttl := g.TTL
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	key := "payment:callback:" + gatewayPaymentID
	ok, err := g.Client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reserve callback slot: %w", err)
	}
	return ok, nil
}

// Service implements order-intent creation and callback verification.
type Service struct {
	Store    Store
	Gateway  gateway.Client
	Secret   string
	Currency string
	Replay   *ReplayGuard
	Bus      *events.Bus
	Logger   zerolog.Logger
}

// CreateIntentInput carries the validated parameters for opening a charge.
type CreateIntentInput struct {
	Amount         decimal.Decimal
	Currency       string
	OrderID        uuid.NullUUID
	Receipt        string
	Notes          map[string]string
	IdempotencyKey string
}

// CreateIntentResult pairs the persisted intent with the minor-unit amount
// the client must hand to the checkout script.
type CreateIntentResult struct {
	Intent      Intent
	AmountMinor int64
	Reused      bool
}

// CreateIntent opens an order with the gateway and persists a pending intent.
// The gateway call happens first and the local row is written only after the
// gateway acknowledges, so a failed gateway call leaves no orphan record.
func (s *Service) CreateIntent(ctx context.Context, input CreateIntentInput) (CreateIntentResult, error) {
	ctx, span := tracer.Start(ctx, "payment.CreateIntent")
	defer span.End()

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = s.Currency
	}
	if input.Amount.Sign() <= 0 {
		s.countIntent("invalid")
		return CreateIntentResult{}, ErrInvalidAmount
	}
	minor, err := MinorUnits(input.Amount, currency)
	if err != nil {
		s.countIntent("invalid")
		return CreateIntentResult{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}

	if key := strings.TrimSpace(input.IdempotencyKey); key != "" {
		existing, lookupErr := s.Store.GetIntentByIdempotencyKey(ctx, key)
		if lookupErr == nil {
			span.SetAttributes(attribute.Bool("payment.idempotent_replay", true))
			s.countIntent("reused")
			prior, convErr := MinorUnits(existing.Amount, existing.Currency)
			if convErr != nil {
				return CreateIntentResult{}, convErr
			}
			return CreateIntentResult{Intent: existing, AmountMinor: prior, Reused: true}, nil
		}
		if !errors.Is(lookupErr, ErrIntentNotFound) {
			s.countIntent("error")
			return CreateIntentResult{}, lookupErr
		}
	}

	// Razorpay treats the receipt as our reference for the order. Generate one
	// when the caller has none so every gateway order stays traceable back here.
	receipt := strings.TrimSpace(input.Receipt)
	if receipt == "" {
		receipt = "rcpt_" + uuid.NewString()
	}

	order, err := s.Gateway.CreateOrder(ctx, gateway.OrderRequest{
		AmountMinor: minor,
		Currency:    currency,
		Receipt:     receipt,
		Notes:       input.Notes,
	})
	if err != nil {
		s.countIntent("gateway_error")
		s.Logger.Error().Err(err).Int64("amount_minor", minor).Str("currency", currency).
			Msg("gateway order creation failed")
		return CreateIntentResult{}, fmt.Errorf("create gateway order: %w", err)
	}
	span.SetAttributes(attribute.String("payment.gateway_order_id", order.ID))

	intent, err := s.Store.InsertIntent(ctx, InsertIntentParams{
		OrderID:        input.OrderID,
		GatewayOrderID: order.ID,
		Amount:         input.Amount,
		Currency:       currency,
		Method:         "razorpay",
		IdempotencyKey: strings.TrimSpace(input.IdempotencyKey),
	})
	if err != nil {
		// A concurrent request with the same idempotency key may have won the
		// insert between our lookup and now. Return its row instead.
		if IsUniqueViolation(err) && strings.TrimSpace(input.IdempotencyKey) != "" {
			existing, raceErr := s.Store.GetIntentByIdempotencyKey(ctx, strings.TrimSpace(input.IdempotencyKey))
			if raceErr == nil {
				s.countIntent("reused")
				prior, convErr := MinorUnits(existing.Amount, existing.Currency)
				if convErr != nil {
					return CreateIntentResult{}, convErr
				}
				return CreateIntentResult{Intent: existing, AmountMinor: prior, Reused: true}, nil
			}
		}
		s.countIntent("error")
		return CreateIntentResult{}, fmt.Errorf("persist intent: %w", err)
	}

	s.emit(ctx, events.TopicPaymentCreated, intent.ID, map[string]any{
		"gateway_order_id": intent.GatewayOrderID,
		"amount":           intent.Amount.String(),
		"currency":         intent.Currency,
	})
	s.countIntent("created")
	s.Logger.Info().
		Str("intent_id", intent.ID.String()).
		Str("gateway_order_id", intent.GatewayOrderID).
		Int64("amount_minor", minor).
		Str("currency", currency).
		Msg("payment intent created")
	return CreateIntentResult{Intent: intent, AmountMinor: minor}, nil
}

// VerifyInput carries the browser callback fields to validate.
type VerifyInput struct {
	IntentID         uuid.UUID
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

// Verify validates the checkout callback signature and settles the intent.
// An invalid signature marks the intent failed; repeating the same invalid
// callback simply marks it failed again.
func (s *Service) Verify(ctx context.Context, input VerifyInput) (Intent, error) {
	ctx, span := tracer.Start(ctx, "payment.Verify", trace.WithAttributes(
		attribute.String("payment.intent_id", input.IntentID.String()),
	))
	defer span.End()

	intent, err := s.Store.GetIntent(ctx, input.IntentID)
	if err != nil {
		s.countVerify("not_found")
		return Intent{}, err
	}

	// The full callback payload is retained on the row for audit and dispute
	// resolution, whichever way verification goes.
	callback, err := json.Marshal(map[string]string{
		"razorpay_order_id":   input.GatewayOrderID,
		"razorpay_payment_id": input.GatewayPaymentID,
		"razorpay_signature":  input.Signature,
	})
	if err != nil {
		s.countVerify("error")
		return Intent{}, fmt.Errorf("encode callback payload: %w", err)
	}

	valid := gateway.VerifySignature(s.Secret, input.GatewayOrderID, input.GatewayPaymentID, input.Signature)
	if valid && intent.GatewayOrderID != input.GatewayOrderID {
		// A well-signed callback for a different order cannot settle this intent.
		valid = false
	}
	if !valid {
		failed, markErr := s.Store.MarkFailed(ctx, intent.ID, "signature mismatch", callback)
		if markErr != nil && !errors.Is(markErr, ErrAlreadySettled) {
			s.countVerify("error")
			return Intent{}, markErr
		}
		s.emit(ctx, events.TopicPaymentFailed, intent.ID, map[string]any{
			"gateway_order_id": intent.GatewayOrderID,
			"reason":           "signature mismatch",
		})
		s.countVerify("invalid_signature")
		s.Logger.Warn().
			Str("intent_id", intent.ID.String()).
			Str("gateway_order_id", input.GatewayOrderID).
			Msg("callback signature rejected")
		return failed, ErrVerificationFailed
	}

	fresh, err := s.Replay.Reserve(ctx, input.GatewayPaymentID)
	if err != nil {
		s.countVerify("error")
		return Intent{}, err
	}
	if !fresh {
		s.countVerify("replay")
		return intent, ErrReplay
	}

	settled, err := s.Store.Settle(ctx, intent.ID, input.GatewayPaymentID, callback)
	if errors.Is(err, ErrAlreadySettled) {
		s.countVerify("replay")
		return settled, ErrReplay
	}
	if err != nil {
		s.countVerify("error")
		return Intent{}, err
	}

	s.emit(ctx, events.TopicPaymentCompleted, settled.ID, map[string]any{
		"gateway_order_id":   settled.GatewayOrderID,
		"gateway_payment_id": settled.GatewayPaymentID,
	})
	if settled.OrderID.Valid {
		s.emit(ctx, events.TopicOrderPaid, settled.OrderID.UUID, map[string]any{
			"payment_id": settled.ID.String(),
		})
	}
	s.countVerify("completed")
	s.Logger.Info().
		Str("intent_id", settled.ID.String()).
		Str("gateway_payment_id", settled.GatewayPaymentID).
		Msg("payment verified and settled")
	return settled, nil
}

// Status returns the current state of an intent by id.
func (s *Service) Status(ctx context.Context, id uuid.UUID) (Intent, error) {
	return s.Store.GetIntent(ctx, id)
}

func (s *Service) emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) {
	if s.Bus == nil {
		return
	}
	if _, err := s.Bus.Emit(ctx, topic, aggregateID, payload); err != nil {
		s.Logger.Warn().Err(err).Str("topic", topic).Msg("domain event emission failed")
	}
}

func (s *Service) countIntent(result string) {
	if obs.PaymentIntentTotal != nil {
		obs.PaymentIntentTotal.WithLabelValues(result).Inc()
	}
}

func (s *Service) countVerify(result string) {
	if obs.PaymentVerifyTotal != nil {
		obs.PaymentVerifyTotal.WithLabelValues(result).Inc()
	}
}
