package payment_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/asheth-dev/backend-daan/internal/gateway"
	"github.com/asheth-dev/backend-daan/internal/payment"
)

func backdateIntents(store *memStore, age time.Duration) {
	for id, it := range store.intents {
		it.CreatedAt = time.Now().UTC().Add(-age)
		store.intents[id] = it
	}
}

func TestReconcilerSettlesPaidOrder(t *testing.T) {
	store := newMemStore()
	gw := &stubGateway{}
	svc := newService(store, gw)

	created, err := svc.CreateIntent(context.Background(), payment.CreateIntentInput{
		Amount: decimal.RequireFromString("100.00"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	backdateIntents(store, time.Hour)

	gw.fetchOrder = gateway.Order{ID: created.Intent.GatewayOrderID, Status: gateway.OrderStatusPaid}
	gw.payments = []gateway.Payment{
		{ID: "pay_retry", OrderID: created.Intent.GatewayOrderID, Status: gateway.PaymentStatusFailed},
		{ID: "pay_ok", OrderID: created.Intent.GatewayOrderID, Status: gateway.PaymentStatusCaptured},
	}

	rec := &payment.Reconciler{
		Store:   store,
		Gateway: gw,
		Logger:  zerolog.Nop(),
		After:   30 * time.Minute,
		Abandon: 24 * time.Hour,
	}
	resolved, err := rec.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if resolved != 1 {
		t.Fatalf("resolved = %d, want 1", resolved)
	}

	settled := store.intents[created.Intent.ID]
	if settled.Status != payment.StatusCompleted {
		t.Fatalf("status = %s, want completed", settled.Status)
	}
	if settled.GatewayPaymentID != "pay_ok" {
		t.Fatalf("gateway payment id = %q, want pay_ok", settled.GatewayPaymentID)
	}
}

func TestReconcilerAbandonsOldUnpaidOrder(t *testing.T) {
	store := newMemStore()
	gw := &stubGateway{}
	svc := newService(store, gw)

	created, err := svc.CreateIntent(context.Background(), payment.CreateIntentInput{
		Amount: decimal.RequireFromString("100.00"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	backdateIntents(store, 48*time.Hour)
	gw.fetchOrder = gateway.Order{ID: created.Intent.GatewayOrderID, Status: gateway.OrderStatusCreated}

	rec := &payment.Reconciler{
		Store:   store,
		Gateway: gw,
		Logger:  zerolog.Nop(),
		After:   30 * time.Minute,
		Abandon: 24 * time.Hour,
	}
	resolved, err := rec.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if resolved != 1 {
		t.Fatalf("resolved = %d, want 1", resolved)
	}
	if got := store.intents[created.Intent.ID].Status; got != payment.StatusFailed {
		t.Fatalf("status = %s, want failed", got)
	}
}

func TestReconcilerLeavesRecentUnpaidOrderPending(t *testing.T) {
	store := newMemStore()
	gw := &stubGateway{}
	svc := newService(store, gw)

	created, err := svc.CreateIntent(context.Background(), payment.CreateIntentInput{
		Amount: decimal.RequireFromString("100.00"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// Old enough to inspect, too recent to abandon.
	backdateIntents(store, time.Hour)
	gw.fetchOrder = gateway.Order{ID: created.Intent.GatewayOrderID, Status: gateway.OrderStatusAttempted}

	rec := &payment.Reconciler{
		Store:   store,
		Gateway: gw,
		Logger:  zerolog.Nop(),
		After:   30 * time.Minute,
		Abandon: 24 * time.Hour,
	}
	resolved, err := rec.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if resolved != 0 {
		t.Fatalf("resolved = %d, want 0", resolved)
	}
	if got := store.intents[created.Intent.ID].Status; got != payment.StatusPending {
		t.Fatalf("status = %s, want pending", got)
	}
}
