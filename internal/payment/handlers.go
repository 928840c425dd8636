package payment

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/asheth-dev/backend-daan/internal/common"
	"github.com/asheth-dev/backend-daan/internal/gateway"
)

// Handler exposes the payment endpoints over HTTP.
type Handler struct {
	Service  *Service
	Validate *validator.Validate
	Logger   zerolog.Logger
}

// NewHandler constructs a Handler with a shared validator instance.
func NewHandler(service *Service, logger zerolog.Logger) *Handler {
	return &Handler{
		Service:  service,
		Validate: validator.New(),
		Logger:   logger,
	}
}

// Routes mounts the payment endpoints on a fresh router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/orders", h.CreateOrder)
	r.Post("/verify", h.VerifyCallback)
	r.Get("/{intentID}/status", h.IntentStatus)
	return r
}

type createOrderRequest struct {
	Amount   json.Number `json:"amount" validate:"required"`
	Currency string      `json:"currency"`
	OrderID  string      `json:"orderId"`
	Receipt  string      `json:"receipt"`
}

type createOrderResponse struct {
	RazorpayOrderID string `json:"razorpayOrderId"`
	OrderID         string `json:"orderId"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
}

// CreateOrder opens a gateway order and returns the checkout parameters.
// Amount arrives in major units and is returned in minor units, which is what
// the checkout script expects.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeVerifyError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		writeVerifyError(w, http.StatusBadRequest, "amount is required")
		return
	}
	amount, err := decimal.NewFromString(req.Amount.String())
	if err != nil {
		writeVerifyError(w, http.StatusBadRequest, "amount must be a number")
		return
	}

	var orderID uuid.NullUUID
	if trimmed := strings.TrimSpace(req.OrderID); trimmed != "" {
		parsed, parseErr := uuid.Parse(trimmed)
		if parseErr != nil {
			writeVerifyError(w, http.StatusBadRequest, "orderId must be a valid UUID")
			return
		}
		orderID = uuid.NullUUID{UUID: parsed, Valid: true}
	}

	result, err := h.Service.CreateIntent(r.Context(), CreateIntentInput{
		Amount:         amount,
		Currency:       req.Currency,
		OrderID:        orderID,
		Receipt:        strings.TrimSpace(req.Receipt),
		IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	})
	switch {
	case err == nil:
		common.JSON(w, http.StatusOK, createOrderResponse{
			RazorpayOrderID: result.Intent.GatewayOrderID,
			OrderID:         result.Intent.ID.String(),
			Amount:          result.AmountMinor,
			Currency:        result.Intent.Currency,
		})
	case errors.Is(err, ErrInvalidAmount):
		writeVerifyError(w, http.StatusBadRequest, "amount must be greater than zero")
	case errors.Is(err, gateway.ErrUnavailable):
		h.Logger.Error().Err(err).Msg("gateway order creation failed")
		writeServerError(w, http.StatusBadGateway, "payment gateway unavailable")
	default:
		h.Logger.Error().Err(err).Msg("order intent creation failed")
		writeServerError(w, http.StatusInternalServerError, "could not create payment order")
	}
}

type verifyRequest struct {
	OrderID           string `json:"orderId" validate:"required,uuid"`
	RazorpayPaymentID string `json:"razorpayPaymentId" validate:"required"`
	RazorpayOrderID   string `json:"razorpayOrderId" validate:"required"`
	RazorpaySignature string `json:"razorpaySignature" validate:"required"`
}

type verifyResponse struct {
	Verified  bool   `json:"verified"`
	PaymentID string `json:"paymentId,omitempty"`
	Message   string `json:"message"`
}

// VerifyCallback validates the checkout callback signature and settles the
// intent on success.
func (h *Handler) VerifyCallback(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeVerifyError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		writeVerifyError(w, http.StatusBadRequest, "missing verification fields")
		return
	}
	intentID, err := uuid.Parse(req.OrderID)
	if err != nil {
		writeVerifyError(w, http.StatusBadRequest, "orderId must be a valid UUID")
		return
	}

	intent, err := h.Service.Verify(r.Context(), VerifyInput{
		IntentID:         intentID,
		GatewayOrderID:   req.RazorpayOrderID,
		GatewayPaymentID: req.RazorpayPaymentID,
		Signature:        req.RazorpaySignature,
	})
	switch {
	case err == nil:
		common.JSON(w, http.StatusOK, verifyResponse{
			Verified:  true,
			PaymentID: intent.ID.String(),
			Message:   "payment verified",
		})
	case errors.Is(err, ErrVerificationFailed):
		writeVerifyError(w, http.StatusBadRequest, "signature verification failed")
	case errors.Is(err, ErrIntentNotFound):
		writeVerifyError(w, http.StatusNotFound, "payment not found")
	case errors.Is(err, ErrReplay):
		writeServerError(w, http.StatusConflict, "callback already processed")
	default:
		h.Logger.Error().Err(err).Msg("payment verification failed")
		writeServerError(w, http.StatusInternalServerError, "could not verify payment")
	}
}

type statusResponse struct {
	PaymentID       string `json:"paymentId"`
	RazorpayOrderID string `json:"razorpayOrderId"`
	Status          string `json:"status"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
}

// IntentStatus reports the current state of an intent, letting a client poll
// after a lost callback instead of re-charging.
func (h *Handler) IntentStatus(w http.ResponseWriter, r *http.Request) {
	intentID, err := uuid.Parse(chi.URLParam(r, "intentID"))
	if err != nil {
		writeVerifyError(w, http.StatusBadRequest, "intent id must be a valid UUID")
		return
	}
	intent, err := h.Service.Status(r.Context(), intentID)
	switch {
	case err == nil:
		common.JSON(w, http.StatusOK, statusResponse{
			PaymentID:       intent.ID.String(),
			RazorpayOrderID: intent.GatewayOrderID,
			Status:          string(intent.Status),
			Amount:          intent.Amount.String(),
			Currency:        intent.Currency,
		})
	case errors.Is(err, ErrIntentNotFound):
		writeVerifyError(w, http.StatusNotFound, "payment not found")
	default:
		h.Logger.Error().Err(err).Msg("payment status lookup failed")
		writeServerError(w, http.StatusInternalServerError, "could not load payment status")
	}
}

// writeVerifyError renders the non-success verification shape.
func writeVerifyError(w http.ResponseWriter, status int, message string) {
	common.JSON(w, status, verifyResponse{Verified: false, Message: message})
}

// writeServerError renders the flat error shape used for gateway and
// persistence failures.
func writeServerError(w http.ResponseWriter, status int, message string) {
	common.JSON(w, status, map[string]string{"error": message})
}
