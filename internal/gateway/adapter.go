// Package gateway defines the processor-agnostic payment contract: the
// adapter interface every processor integration satisfies, the normalized
// result and event types, the closed error taxonomy, and the manager that
// routes calls to a registered adapter.
package gateway

import (
	"context"
	"time"

	"remitgate/internal/common/money"
)

// PaymentParams carries processor-facing options for creating a payment.
type PaymentParams struct {
	CustomerID         string
	Description        string
	PaymentMethodTypes []string
	Metadata           map[string]string
}

// RefundParams carries options for refunding a payment. A nil Amount
// means a full refund.
type RefundParams struct {
	Amount   *money.Amount
	Reason   string
	Metadata map[string]string
}

// ListParams carries filters for listing payments.
type ListParams struct {
	Limit         int
	StartingAfter string
	CreatedAfter  time.Time
}

// PaymentResult is the normalized outcome of a payment operation.
type PaymentResult struct {
	ID           string            `json:"id"`
	Status       Status            `json:"status"`
	Amount       money.Amount      `json:"amount"`
	CustomerID   string            `json:"customer_id,omitempty"`
	ClientSecret string            `json:"client_secret,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// RefundResult is the normalized outcome of a refund.
type RefundResult struct {
	ID        string       `json:"id"`
	PaymentID string       `json:"payment_id"`
	Status    Status       `json:"status"`
	Amount    money.Amount `json:"amount"`
	CreatedAt time.Time    `json:"created_at"`
}

// Event is a verified, normalized webhook notification. It exists only
// for the duration of one verify-and-dispatch call; processors deliver
// at least once, so consumers must handle events idempotently by ID.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	CreatedAt time.Time      `json:"created_at"`
	Livemode  bool           `json:"livemode"`
	Data      map[string]any `json:"data"`
}

// Adapter is the contract every payment processor integration satisfies.
// Implementations map their processor's native error types into the
// gateway error taxonomy and their native statuses into the normalized
// Status set. Each method is a single bounded external call; adapters
// own their HTTP timeout and map a timeout to a processing or rate-limit
// error rather than leaving the call unbounded.
type Adapter interface {
	// Name returns the adapter's registry name (e.g. "stripe", "mockpay").
	Name() string

	// CreatePayment starts collection of funds from a sender. The amount
	// must be strictly positive with a three-letter uppercase currency
	// code; a validation error is returned otherwise.
	CreatePayment(ctx context.Context, amount money.Amount, params PaymentParams) (*PaymentResult, error)

	// CapturePayment captures a previously authorized payment.
	CapturePayment(ctx context.Context, paymentID string) (*PaymentResult, error)

	// RefundPayment refunds a payment back to the sender. A nil
	// params.Amount means a full refund.
	RefundPayment(ctx context.Context, paymentID string, params RefundParams) (*RefundResult, error)

	// CancelPayment cancels a payment that has not been captured.
	CancelPayment(ctx context.Context, paymentID, reason string) (*PaymentResult, error)

	// WebhookVerify cryptographically verifies a webhook delivery and
	// returns the normalized event. The raw payload and signature header
	// must be passed verbatim; the payload is never parsed before the
	// signature check succeeds.
	WebhookVerify(ctx context.Context, payload []byte, sigHeader string) (*Event, error)
}

// StatusReader is the optional read capability. Callers type-assert an
// Adapter to StatusReader instead of probing for a not-implemented error.
type StatusReader interface {
	GetPaymentStatus(ctx context.Context, paymentID string) (*PaymentResult, error)
	ListPayments(ctx context.Context, params ListParams) ([]PaymentResult, error)
}

// ValidateAmount enforces the shared money invariant before any adapter
// talks to its processor.
func ValidateAmount(amount money.Amount) error {
	if !money.ValidCode(string(amount.Currency)) {
		return ValidationError("currency must be a three-letter uppercase code, got %q", amount.Currency)
	}
	if !amount.IsPositive() {
		return ValidationError("amount must be positive, got %s", amount.Value)
	}
	return nil
}
