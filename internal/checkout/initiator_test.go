package checkout_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/asheth-dev/backend-daan/internal/checkout"
)

type stubLoader struct {
	calls int
	err   error
}

func (l *stubLoader) Load(context.Context) error {
	l.calls++
	return l.err
}

type stubModal struct {
	opened int
	result checkout.ModalResult
	err    error
	opts   checkout.CheckoutOptions
}

func (m *stubModal) Open(_ context.Context, opts checkout.CheckoutOptions) (checkout.ModalResult, error) {
	m.opened++
	m.opts = opts
	return m.result, m.err
}

type stubOrderAPI struct {
	resp checkout.CreateOrderResponse
	err  error
}

func (o *stubOrderAPI) CreateOrder(context.Context, checkout.CreateOrderRequest) (checkout.CreateOrderResponse, error) {
	return o.resp, o.err
}

type stubVerifyAPI struct {
	calls   int
	verdict checkout.VerifyResponse
	err     error
	block   bool
}

func (v *stubVerifyAPI) Verify(ctx context.Context, _ checkout.VerifyRequest) (checkout.VerifyResponse, error) {
	v.calls++
	if v.block {
		<-ctx.Done()
		return checkout.VerifyResponse{}, ctx.Err()
	}
	return v.verdict, v.err
}

func newTestInitiator(loader *stubLoader, modal *stubModal, orders *stubOrderAPI, verifier *stubVerifyAPI) *checkout.Initiator {
	init := checkout.NewInitiator(&checkout.Session{})
	init.Loader = loader
	init.Modal = modal
	init.Orders = orders
	init.Verifier = verifier
	init.GatewayKey = "rzp_test_key"
	init.Logger = zerolog.Nop()
	return init
}

func payRequest() checkout.PayRequest {
	return checkout.PayRequest{Amount: decimal.RequireFromString("100.00"), Currency: "INR"}
}

func orderResponse() checkout.CreateOrderResponse {
	return checkout.CreateOrderResponse{
		RazorpayOrderID: "order_1",
		OrderID:         "intent-1",
		Amount:          10000,
		Currency:        "INR",
	}
}

func TestPaySuccess(t *testing.T) {
	loader := &stubLoader{}
	modal := &stubModal{result: checkout.ModalResult{
		GatewayOrderID:   "order_1",
		GatewayPaymentID: "pay_1",
		Signature:        "sig",
	}}
	verifier := &stubVerifyAPI{verdict: checkout.VerifyResponse{Verified: true, PaymentID: "intent-1", Message: "payment verified"}}
	init := newTestInitiator(loader, modal, &stubOrderAPI{resp: orderResponse()}, verifier)

	result, err := init.Pay(context.Background(), payRequest())
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if result.Outcome != checkout.OutcomeSucceeded {
		t.Fatalf("outcome = %s, want succeeded", result.Outcome)
	}
	if result.IntentID != "intent-1" {
		t.Fatalf("intent id = %q", result.IntentID)
	}
	if init.State() != checkout.StateSucceeded {
		t.Fatalf("state = %s, want succeeded", init.State())
	}
	if modal.opts.AmountMinor != 10000 || modal.opts.GatewayOrderID != "order_1" {
		t.Fatalf("modal options = %+v", modal.opts)
	}
}

func TestDismissalReturnsToIdle(t *testing.T) {
	loader := &stubLoader{}
	verifier := &stubVerifyAPI{}
	modal := &stubModal{result: checkout.ModalResult{Dismissed: true}}
	init := newTestInitiator(loader, modal, &stubOrderAPI{resp: orderResponse()}, verifier)

	result, err := init.Pay(context.Background(), payRequest())
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if result.Outcome != checkout.OutcomeDismissed {
		t.Fatalf("outcome = %s, want dismissed", result.Outcome)
	}
	if init.State() != checkout.StateIdle {
		t.Fatalf("state = %s, want idle after dismissal", init.State())
	}
	if verifier.calls != 0 {
		t.Fatalf("verification called %d times after dismissal", verifier.calls)
	}
}

func TestScriptLoadFailure(t *testing.T) {
	loader := &stubLoader{err: errors.New("network down")}
	modal := &stubModal{}
	init := newTestInitiator(loader, modal, &stubOrderAPI{resp: orderResponse()}, &stubVerifyAPI{})

	result, err := init.Pay(context.Background(), payRequest())
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if result.Outcome != checkout.OutcomeFailed || result.Reason != checkout.ReasonScriptLoadFailed {
		t.Fatalf("result = %+v, want ScriptLoadFailed", result)
	}
	if modal.opened != 0 {
		t.Fatal("modal opened despite script load failure")
	}
}

func TestScriptLoadedOncePerSession(t *testing.T) {
	loader := &stubLoader{}
	modal := &stubModal{result: checkout.ModalResult{Dismissed: true}}
	init := newTestInitiator(loader, modal, &stubOrderAPI{resp: orderResponse()}, &stubVerifyAPI{})

	for i := 0; i < 3; i++ {
		if _, err := init.Pay(context.Background(), payRequest()); err != nil {
			t.Fatalf("pay %d: %v", i, err)
		}
	}
	if loader.calls != 1 {
		t.Fatalf("script loaded %d times, want 1", loader.calls)
	}
}

func TestOrderCreationFailureSkipsModal(t *testing.T) {
	modal := &stubModal{}
	orders := &stubOrderAPI{err: errors.New("payment api: status 502: payment gateway unavailable")}
	init := newTestInitiator(&stubLoader{}, modal, orders, &stubVerifyAPI{})

	result, err := init.Pay(context.Background(), payRequest())
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if result.Outcome != checkout.OutcomeFailed || result.Reason != checkout.ReasonOrderCreationFailed {
		t.Fatalf("result = %+v, want OrderCreationFailed", result)
	}
	if modal.opened != 0 {
		t.Fatal("modal opened despite order creation failure")
	}
}

func TestVerificationRejectionFails(t *testing.T) {
	modal := &stubModal{result: checkout.ModalResult{
		GatewayOrderID:   "order_1",
		GatewayPaymentID: "pay_1",
		Signature:        "bad",
	}}
	verifier := &stubVerifyAPI{verdict: checkout.VerifyResponse{Verified: false, Message: "signature verification failed"}}
	init := newTestInitiator(&stubLoader{}, modal, &stubOrderAPI{resp: orderResponse()}, verifier)

	result, err := init.Pay(context.Background(), payRequest())
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if result.Outcome != checkout.OutcomeFailed || result.Reason != checkout.ReasonVerificationFailed {
		t.Fatalf("result = %+v, want VerificationFailed", result)
	}
	if init.State() != checkout.StateFailed {
		t.Fatalf("state = %s, want failed", init.State())
	}
}

func TestVerifyTimeout(t *testing.T) {
	modal := &stubModal{result: checkout.ModalResult{
		GatewayOrderID:   "order_1",
		GatewayPaymentID: "pay_1",
		Signature:        "sig",
	}}
	verifier := &stubVerifyAPI{block: true}
	init := newTestInitiator(&stubLoader{}, modal, &stubOrderAPI{resp: orderResponse()}, verifier)
	init.VerifyTimeout = 20 * time.Millisecond

	result, err := init.Pay(context.Background(), payRequest())
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if result.Outcome != checkout.OutcomeFailed || result.Reason != checkout.ReasonVerifyTimeout {
		t.Fatalf("result = %+v, want VerifyTimeout", result)
	}
}
