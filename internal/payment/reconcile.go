package payment

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/asheth-dev/backend-daan/internal/events"
	"github.com/asheth-dev/backend-daan/internal/gateway"
	"github.com/asheth-dev/backend-daan/internal/obs"
)

// Reconciler resolves intents stuck in pending because the browser callback
// never arrived. It asks the gateway for the authoritative order state over
// the authenticated REST API, which carries the same trust as a verified
// callback signature.
type Reconciler struct {
	Store     Store
	Gateway   gateway.Client
	Bus       *events.Bus
	Logger    zerolog.Logger
	After     time.Duration
	Abandon   time.Duration
	BatchSize int32
}

// Run processes one batch of stale pending intents. It returns the number of
// intents it transitioned out of pending.
func (r *Reconciler) Run(ctx context.Context) (int, error) {
	after := r.After
	if after <= 0 {
		after = 30 * time.Minute
	}
	abandon := r.Abandon
	if abandon <= 0 {
		abandon = 24 * time.Hour
	}
	batch := r.BatchSize
	if batch <= 0 {
		batch = 100
	}

	now := time.Now().UTC()
	intents, err := r.Store.ListPendingBefore(ctx, now.Add(-after), batch)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, intent := range intents {
		if ctx.Err() != nil {
			return resolved, ctx.Err()
		}
		switch r.reconcileOne(ctx, intent, now.Add(-abandon)) {
		case reconcileSettled, reconcileAbandoned:
			resolved++
		}
	}
	return resolved, nil
}

type reconcileOutcome string

const (
	reconcileSettled   reconcileOutcome = "settled"
	reconcileAbandoned reconcileOutcome = "abandoned"
	reconcileSkipped   reconcileOutcome = "skipped"
	reconcileErrored   reconcileOutcome = "error"
)

func (r *Reconciler) reconcileOne(ctx context.Context, intent Intent, abandonCutoff time.Time) reconcileOutcome {
	log := r.Logger.With().
		Str("intent_id", intent.ID.String()).
		Str("gateway_order_id", intent.GatewayOrderID).
		Logger()

	order, err := r.Gateway.FetchOrder(ctx, intent.GatewayOrderID)
	if err != nil {
		log.Warn().Err(err).Msg("reconcile: gateway order lookup failed")
		return r.count(reconcileErrored)
	}

	switch order.Status {
	case gateway.OrderStatusPaid:
		payments, err := r.Gateway.ListOrderPayments(ctx, intent.GatewayOrderID)
		if err != nil {
			log.Warn().Err(err).Msg("reconcile: gateway payment listing failed")
			return r.count(reconcileErrored)
		}
		captured, ok := firstCaptured(payments)
		if !ok {
			log.Warn().Msg("reconcile: order paid but no captured payment reported")
			return r.count(reconcileSkipped)
		}
		response, _ := json.Marshal(map[string]any{
			"source":             "reconciler",
			"gateway_order_id":   order.ID,
			"gateway_payment_id": captured.ID,
			"order_status":       order.Status,
		})
		settled, err := r.Store.Settle(ctx, intent.ID, captured.ID, response)
		if errors.Is(err, ErrAlreadySettled) {
			return r.count(reconcileSkipped)
		}
		if err != nil {
			log.Error().Err(err).Msg("reconcile: settlement failed")
			return r.count(reconcileErrored)
		}
		r.emit(ctx, events.TopicPaymentCompleted, settled)
		log.Info().Str("gateway_payment_id", captured.ID).Msg("reconcile: settled stale intent")
		return r.count(reconcileSettled)

	case gateway.OrderStatusCreated, gateway.OrderStatusAttempted:
		if intent.CreatedAt.After(abandonCutoff) {
			return r.count(reconcileSkipped)
		}
		response, _ := json.Marshal(map[string]any{
			"source":           "reconciler",
			"gateway_order_id": order.ID,
			"order_status":     order.Status,
		})
		failed, err := r.Store.MarkFailed(ctx, intent.ID, "abandoned after reconcile window", response)
		if errors.Is(err, ErrAlreadySettled) {
			return r.count(reconcileSkipped)
		}
		if err != nil {
			log.Error().Err(err).Msg("reconcile: abandonment failed")
			return r.count(reconcileErrored)
		}
		r.emit(ctx, events.TopicPaymentFailed, failed)
		log.Info().Msg("reconcile: abandoned stale intent")
		return r.count(reconcileAbandoned)

	default:
		log.Warn().Str("order_status", order.Status).Msg("reconcile: unrecognised gateway order status")
		return r.count(reconcileSkipped)
	}
}

func (r *Reconciler) emit(ctx context.Context, topic string, intent Intent) {
	if r.Bus == nil {
		return
	}
	payload := map[string]any{
		"gateway_order_id": intent.GatewayOrderID,
		"status":           string(intent.Status),
		"source":           "reconciler",
	}
	if _, err := r.Bus.Emit(ctx, topic, intent.ID, payload); err != nil {
		r.Logger.Warn().Err(err).Str("topic", topic).Msg("reconcile: event emission failed")
	}
}

func (r *Reconciler) count(outcome reconcileOutcome) reconcileOutcome {
	if obs.PaymentReconcileTotal != nil {
		obs.PaymentReconcileTotal.WithLabelValues(string(outcome)).Inc()
	}
	return outcome
}

func firstCaptured(payments []gateway.Payment) (gateway.Payment, bool) {
	for _, p := range payments {
		if p.Status == gateway.PaymentStatusCaptured {
			return p, true
		}
	}
	return gateway.Payment{}, false
}
