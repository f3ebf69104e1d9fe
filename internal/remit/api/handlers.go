// Package api exposes the remittance service over HTTP.
package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"remitgate/internal/common/api"
	"remitgate/internal/common/money"
	"remitgate/internal/providers/stripe"
	"remitgate/internal/remit"
)

// Handler handles remittance HTTP requests
type Handler struct {
	service *remit.Service
}

// NewHandler creates a new remittance handler
func NewHandler(service *remit.Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the remittance routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	// Payment routes
	r.Post("/payments", h.CreatePayment)
	r.Get("/payments", h.ListPayments)
	r.Get("/payments/{id}", h.GetPayment)
	r.Post("/payments/{id}/capture", h.CapturePayment)
	r.Post("/payments/{id}/cancel", h.CancelPayment)
	r.Post("/payments/{id}/refund", h.RefundPayment)

	// Transfer routes
	r.Post("/transfers", h.CreateTransfer)
	r.Post("/transfers/{id}/reverse", h.ReverseTransfer)

	// Payout routes
	r.Post("/payouts", h.CreatePayout)
	r.Get("/balance", h.GetBalance)

	// Connect account routes
	r.Post("/accounts", h.CreateConnectAccount)
	r.Get("/accounts/{id}/status", h.GetConnectAccountStatus)

	// Provider webhooks
	r.Post("/webhooks/{adapter}", h.Webhook)

	return r
}

// CreatePaymentRequest is the API request for creating a payment
type CreatePaymentRequest struct {
	Adapter        string            `json:"adapter"`
	Amount         string            `json:"amount" validate:"required"`
	Currency       string            `json:"currency" validate:"required,len=3"`
	CustomerID     string            `json:"customer_id"`
	Description    string            `json:"description"`
	IdempotencyKey string            `json:"idempotency_key"`
	Metadata       map[string]string `json:"metadata"`
}

// CreatePayment handles POST /payments
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}

	amount, err := money.Parse(req.Amount, money.Currency(req.Currency))
	if err != nil {
		api.BadRequest(w, "invalid amount: "+err.Error())
		return
	}

	payment, err := h.service.CreatePayment(r.Context(), remit.CreatePaymentRequest{
		Adapter:        req.Adapter,
		Amount:         amount,
		CustomerID:     req.CustomerID,
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
		Metadata:       req.Metadata,
	})
	if err != nil {
		api.WriteGatewayError(w, err)
		return
	}

	api.WriteData(w, http.StatusCreated, payment)
}

// GetPayment handles GET /payments/{id}
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	payment, err := h.service.GetPayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.WriteGatewayError(w, err)
		return
	}
	api.WriteData(w, http.StatusOK, payment)
}

// ListPayments handles GET /payments
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	payments, err := h.service.ListPayments(r.Context(), limit)
	if err != nil {
		api.WriteGatewayError(w, err)
		return
	}
	api.WriteData(w, http.StatusOK, payments)
}

// CapturePayment handles POST /payments/{id}/capture
func (h *Handler) CapturePayment(w http.ResponseWriter, r *http.Request) {
	payment, err := h.service.CapturePayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.WriteGatewayError(w, err)
		return
	}
	api.WriteData(w, http.StatusOK, payment)
}

// CancelPaymentRequest is the API request for cancelling a payment
type CancelPaymentRequest struct {
	Reason string `json:"reason"`
}

// CancelPayment handles POST /payments/{id}/cancel
func (h *Handler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	var req CancelPaymentRequest
	// An empty body means no reason given; anything else must decode.
	if err := api.DecodeAndValidate(r, &req); err != nil && !errors.Is(err, io.EOF) {
		api.BadRequest(w, "invalid request body: "+err.Error())
		return
	}

	payment, err := h.service.CancelPayment(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		api.WriteGatewayError(w, err)
		return
	}
	api.WriteData(w, http.StatusOK, payment)
}

// RefundPaymentRequest is the API request for refunding a payment.
// Amount omitted means a full refund.
type RefundPaymentRequest struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Reason   string `json:"reason"`
}

// RefundPayment handles POST /payments/{id}/refund
func (h *Handler) RefundPayment(w http.ResponseWriter, r *http.Request) {
	var req RefundPaymentRequest
	// An empty body is a full refund; a body that fails to decode must
	// not be, or a malformed partial refund silently refunds everything.
	if err := api.DecodeAndValidate(r, &req); err != nil && !errors.Is(err, io.EOF) {
		api.BadRequest(w, "invalid request body: "+err.Error())
		return
	}

	var amount *money.Amount
	if req.Amount != "" {
		a, err := money.Parse(req.Amount, money.Currency(req.Currency))
		if err != nil {
			api.BadRequest(w, "invalid amount: "+err.Error())
			return
		}
		amount = &a
	}

	payment, err := h.service.RefundPayment(r.Context(), chi.URLParam(r, "id"), amount, req.Reason)
	if err != nil {
		api.WriteGatewayError(w, err)
		return
	}
	api.WriteData(w, http.StatusOK, payment)
}

// CreateTransferRequest is the API request for creating a transfer
type CreateTransferRequest struct {
	PaymentID        string            `json:"payment_id"`
	ConnectAccountID string            `json:"connect_account_id" validate:"required"`
	Amount           string            `json:"amount" validate:"required"`
	Currency         string            `json:"currency" validate:"required,len=3"`
	Metadata         map[string]string `json:"metadata"`
}

// CreateTransfer handles POST /transfers
func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req CreateTransferRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}

	amount, err := money.Parse(req.Amount, money.Currency(req.Currency))
	if err != nil {
		api.BadRequest(w, "invalid amount: "+err.Error())
		return
	}

	transfer, err := h.service.CreateTransfer(r.Context(), remit.CreateTransferRequest{
		PaymentID:        req.PaymentID,
		ConnectAccountID: req.ConnectAccountID,
		Amount:           amount,
		Metadata:         req.Metadata,
	})
	if err != nil {
		api.WriteGatewayError(w, err)
		return
	}
	api.WriteData(w, http.StatusCreated, transfer)
}

// ReverseTransferRequest is the API request for reversing a transfer.
// Amount omitted means a full reversal.
type ReverseTransferRequest struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// ReverseTransfer handles POST /transfers/{id}/reverse
func (h *Handler) ReverseTransfer(w http.ResponseWriter, r *http.Request) {
	var req ReverseTransferRequest
	// An empty body reverses in full; a malformed one must not.
	if err := api.DecodeAndValidate(r, &req); err != nil && !errors.Is(err, io.EOF) {
		api.BadRequest(w, "invalid request body: "+err.Error())
		return
	}

	var amount *money.Amount
	if req.Amount != "" {
		a, err := money.Parse(req.Amount, money.Currency(req.Currency))
		if err != nil {
			api.BadRequest(w, "invalid amount: "+err.Error())
			return
		}
		amount = &a
	}

	transfer, err := h.service.ReverseTransfer(r.Context(), chi.URLParam(r, "id"), amount)
	if err != nil {
		api.WriteGatewayError(w, err)
		return
	}
	api.WriteData(w, http.StatusOK, transfer)
}

// CreatePayoutRequest is the API request for creating a payout.
// Amount omitted sweeps the full available balance.
type CreatePayoutRequest struct {
	ConnectAccountID string            `json:"connect_account_id" validate:"required"`
	Amount           string            `json:"amount"`
	Currency         string            `json:"currency" validate:"required,len=3"`
	Speed            string            `json:"speed" validate:"omitempty,oneof=standard instant"`
	Metadata         map[string]string `json:"metadata"`
}

// CreatePayout handles POST /payouts
func (h *Handler) CreatePayout(w http.ResponseWriter, r *http.Request) {
	var req CreatePayoutRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}

	var amount *money.Amount
	if req.Amount != "" {
		a, err := money.Parse(req.Amount, money.Currency(req.Currency))
		if err != nil {
			api.BadRequest(w, "invalid amount: "+err.Error())
			return
		}
		amount = &a
	}

	payout, err := h.service.CreatePayout(r.Context(), remit.CreatePayoutRequest{
		ConnectAccountID: req.ConnectAccountID,
		Amount:           amount,
		Currency:         money.Currency(req.Currency),
		Speed:            req.Speed,
		Metadata:         req.Metadata,
	})
	if err != nil {
		api.WriteGatewayError(w, err)
		return
	}
	api.WriteData(w, http.StatusCreated, payout)
}

// CreateConnectAccountRequest is the API request for creating a
// recipient sub-account
type CreateConnectAccountRequest struct {
	RecipientID   string            `json:"recipient_id"`
	Email         string            `json:"email" validate:"required,email"`
	Country       string            `json:"country" validate:"required,len=2"`
	AccountType   string            `json:"account_type" validate:"omitempty,oneof=express custom"`
	BypassKYC     bool              `json:"bypass_kyc"`
	KYCAuthorizer string            `json:"kyc_authorizer"`
	RefreshURL    string            `json:"refresh_url"`
	ReturnURL     string            `json:"return_url"`
	Metadata      map[string]string `json:"metadata"`
}

// CreateConnectAccount handles POST /accounts
func (h *Handler) CreateConnectAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateConnectAccountRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}

	accountType := req.AccountType
	if accountType == "" {
		accountType = "express"
	}

	account, err := h.service.CreateConnectAccount(r.Context(), stripe.ConnectAccountParams{
		RecipientID: req.RecipientID,
		Email:       req.Email,
		Country:     req.Country,
		AccountType: accountType,
		Override: stripe.KYCOverride{
			BypassRequested: req.BypassKYC,
			AuthorizedBy:    req.KYCAuthorizer,
		},
		RefreshURL: req.RefreshURL,
		ReturnURL:  req.ReturnURL,
		Metadata:   req.Metadata,
	})
	if err != nil {
		api.WriteGatewayError(w, err)
		return
	}
	api.WriteData(w, http.StatusCreated, account)
}

// GetBalance handles GET /balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.service.GetBalance(r.Context())
	if err != nil {
		api.WriteGatewayError(w, err)
		return
	}
	api.WriteData(w, http.StatusOK, balance)
}

// GetConnectAccountStatus handles GET /accounts/{id}/status
func (h *Handler) GetConnectAccountStatus(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.GetConnectAccountStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.WriteGatewayError(w, err)
		return
	}
	api.WriteData(w, http.StatusOK, account)
}

// Webhook handles POST /webhooks/{adapter}. The raw body and signature
// header are passed to the adapter verbatim for verification.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		api.BadRequest(w, "failed to read body")
		return
	}
	defer r.Body.Close()

	sig := r.Header.Get("Stripe-Signature")
	if sig == "" {
		sig = r.Header.Get("X-Webhook-Signature")
	}

	event, err := h.service.HandleWebhook(r.Context(), chi.URLParam(r, "adapter"), body, sig)
	if err != nil {
		api.WriteGatewayError(w, err)
		return
	}

	api.WriteData(w, http.StatusOK, map[string]string{
		"received": "true",
		"event_id": event.ID,
	})
}
