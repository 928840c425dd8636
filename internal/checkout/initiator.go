package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// State enumerates the phases of a checkout attempt.
type State string

const (
	StateIdle      State = "idle"
	StateLoading   State = "scriptLoading"
	StateLoaded    State = "scriptLoaded"
	StateModalOpen State = "gatewayModalOpen"
	StateVerifying State = "verifying"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateDismissed State = "dismissed"
)

// Failure reasons surfaced to the caller.
const (
	ReasonScriptLoadFailed    = "ScriptLoadFailed"
	ReasonOrderCreationFailed = "OrderCreationFailed"
	ReasonVerificationFailed  = "VerificationFailed"
	ReasonVerifyTimeout       = "VerifyTimeout"
)

// Session carries per-page-session state. The loaded flag lives here rather
// than in a package global so each session decides independently whether the
// gateway script still needs loading.
type Session struct {
	ScriptLoaded bool
}

// ScriptLoader fetches the gateway's checkout script.
type ScriptLoader interface {
	Load(ctx context.Context) error
}

// CheckoutOptions parameterise the gateway modal.
type CheckoutOptions struct {
	Key            string
	AmountMinor    int64
	Currency       string
	GatewayOrderID string
	Description    string
	PrefillName    string
	PrefillEmail   string
	PrefillContact string
}

// ModalResult reports how the gateway modal concluded. Dismissed means the
// user closed it without attempting payment; otherwise the callback fields
// are populated.
type ModalResult struct {
	Dismissed        bool
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

// Modal drives the gateway's checkout UI.
type Modal interface {
	Open(ctx context.Context, opts CheckoutOptions) (ModalResult, error)
}

// OrderAPI creates server-side payment intents.
type OrderAPI interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (CreateOrderResponse, error)
}

// VerifyAPI submits callback credentials for signature verification.
type VerifyAPI interface {
	Verify(ctx context.Context, req VerifyRequest) (VerifyResponse, error)
}

// PayRequest starts a checkout attempt.
type PayRequest struct {
	Amount      decimal.Decimal
	Currency    string
	OrderID     string
	Description string
	Name        string
	Email       string
	Contact     string
}

// Outcome is the terminal disposition of a checkout attempt.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeDismissed Outcome = "dismissed"
	OutcomeFailed    Outcome = "failed"
)

// Result describes how a checkout attempt ended.
type Result struct {
	Outcome  Outcome
	Reason   string
	IntentID string
	Message  string
}

// Initiator is the checkout state machine. It is driven from a single
// goroutine (the UI event loop equivalent); it is not safe for concurrent use.
type Initiator struct {
	Session       *Session
	Loader        ScriptLoader
	Modal         Modal
	Orders        OrderAPI
	Verifier      VerifyAPI
	GatewayKey    string
	VerifyTimeout time.Duration
	Logger        zerolog.Logger

	state State
}

// NewInitiator returns an idle initiator bound to the given session.
func NewInitiator(session *Session) *Initiator {
	return &Initiator{Session: session, state: StateIdle}
}

// State returns the current phase of the state machine.
func (i *Initiator) State() State {
	if i.state == "" {
		return StateIdle
	}
	return i.state
}

// ErrBusy indicates a checkout attempt is already in flight.
var ErrBusy = errors.New("checkout: attempt already in progress")

// Pay runs one complete checkout attempt. Terminal states reset so the user
// can retry; a dismissal resets to idle since no charge attempt occurred.
func (i *Initiator) Pay(ctx context.Context, req PayRequest) (Result, error) {
	switch i.State() {
	case StateIdle, StateSucceeded, StateFailed, StateDismissed:
		// Retrying from a terminal state starts a fresh attempt.
	default:
		return Result{}, ErrBusy
	}

	if !i.Session.ScriptLoaded {
		i.state = StateLoading
		if err := i.Loader.Load(ctx); err != nil {
			i.state = StateFailed
			i.Logger.Warn().Err(err).Msg("checkout script load failed")
			return Result{Outcome: OutcomeFailed, Reason: ReasonScriptLoadFailed, Message: "could not load payment script"}, nil
		}
		i.Session.ScriptLoaded = true
	}
	i.state = StateLoaded

	order, err := i.Orders.CreateOrder(ctx, CreateOrderRequest{
		Amount:   req.Amount,
		Currency: req.Currency,
		OrderID:  req.OrderID,
	})
	if err != nil {
		i.state = StateFailed
		i.Logger.Warn().Err(err).Msg("order intent creation failed")
		return Result{Outcome: OutcomeFailed, Reason: ReasonOrderCreationFailed, Message: "could not start payment"}, nil
	}

	i.state = StateModalOpen
	modalResult, err := i.Modal.Open(ctx, CheckoutOptions{
		Key:            i.GatewayKey,
		AmountMinor:    order.Amount,
		Currency:       order.Currency,
		GatewayOrderID: order.RazorpayOrderID,
		Description:    req.Description,
		PrefillName:    req.Name,
		PrefillEmail:   req.Email,
		PrefillContact: req.Contact,
	})
	if err != nil {
		i.state = StateFailed
		return Result{Outcome: OutcomeFailed, Reason: ReasonVerificationFailed, Message: "checkout aborted"}, fmt.Errorf("open checkout modal: %w", err)
	}
	if modalResult.Dismissed {
		// No charge attempt happened; the intent stays pending until the
		// reconciler abandons it.
		i.state = StateIdle
		return Result{Outcome: OutcomeDismissed, IntentID: order.OrderID}, nil
	}

	i.state = StateVerifying
	verifyCtx := ctx
	if i.VerifyTimeout > 0 {
		var cancel context.CancelFunc
		verifyCtx, cancel = context.WithTimeout(ctx, i.VerifyTimeout)
		defer cancel()
	}
	verdict, err := i.Verifier.Verify(verifyCtx, VerifyRequest{
		OrderID:           order.OrderID,
		RazorpayPaymentID: modalResult.GatewayPaymentID,
		RazorpayOrderID:   modalResult.GatewayOrderID,
		RazorpaySignature: modalResult.Signature,
	})
	if err != nil {
		i.state = StateFailed
		reason := ReasonVerificationFailed
		if errors.Is(err, context.DeadlineExceeded) {
			reason = ReasonVerifyTimeout
		}
		i.Logger.Warn().Err(err).Str("intent_id", order.OrderID).Msg("payment verification errored")
		return Result{Outcome: OutcomeFailed, Reason: reason, IntentID: order.OrderID, Message: "payment could not be verified"}, nil
	}
	if !verdict.Verified {
		i.state = StateFailed
		return Result{Outcome: OutcomeFailed, Reason: ReasonVerificationFailed, IntentID: order.OrderID, Message: verdict.Message}, nil
	}

	i.state = StateSucceeded
	return Result{Outcome: OutcomeSucceeded, IntentID: verdict.PaymentID, Message: verdict.Message}, nil
}
