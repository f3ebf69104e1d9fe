// Package mockpay provides a deterministic in-house payment adapter used
// as an integration-test double and as a non-critical-path fallback.
package mockpay

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"time"
	"unicode/utf8"

	"remitgate/internal/common/money"
	"remitgate/internal/gateway"
)

// DefaultSignature is the signature accepted when none is configured.
const DefaultSignature = "test_signature"

// Adapter satisfies the gateway contract with predictable responses and
// no side effects.
type Adapter struct {
	expectedSignature string
}

// New creates a mockpay adapter. expectedSignature is the only webhook
// signature header value considered valid; empty picks the default, so
// signature handling stays exercised even in tests.
func New(expectedSignature string) *Adapter {
	if expectedSignature == "" {
		expectedSignature = DefaultSignature
	}
	return &Adapter{expectedSignature: expectedSignature}
}

// Name implements gateway.Adapter.
func (a *Adapter) Name() string {
	return "mockpay"
}

// CreatePayment implements gateway.Adapter.
func (a *Adapter) CreatePayment(ctx context.Context, amount money.Amount, params gateway.PaymentParams) (*gateway.PaymentResult, error) {
	if err := gateway.ValidateAmount(amount); err != nil {
		return nil, err
	}
	return &gateway.PaymentResult{
		ID:         "mockpay_payment",
		Status:     gateway.StatusCreated,
		Amount:     amount,
		CustomerID: params.CustomerID,
		Metadata:   params.Metadata,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// CapturePayment implements gateway.Adapter.
func (a *Adapter) CapturePayment(ctx context.Context, paymentID string) (*gateway.PaymentResult, error) {
	if paymentID == "" {
		return nil, gateway.ValidationError("payment id must not be empty")
	}
	return &gateway.PaymentResult{
		ID:        paymentID,
		Status:    gateway.StatusCaptured,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// RefundPayment implements gateway.Adapter. A nil params.Amount is a full
// refund and leaves the result amount zero-valued.
func (a *Adapter) RefundPayment(ctx context.Context, paymentID string, params gateway.RefundParams) (*gateway.RefundResult, error) {
	if paymentID == "" {
		return nil, gateway.ValidationError("payment id must not be empty")
	}
	result := &gateway.RefundResult{
		ID:        "mockpay_refund",
		PaymentID: paymentID,
		Status:    gateway.StatusRefunded,
		CreatedAt: time.Now().UTC(),
	}
	if params.Amount != nil {
		if err := gateway.ValidateAmount(*params.Amount); err != nil {
			return nil, err
		}
		result.Amount = *params.Amount
	}
	return result, nil
}

// CancelPayment implements gateway.Adapter.
func (a *Adapter) CancelPayment(ctx context.Context, paymentID, reason string) (*gateway.PaymentResult, error) {
	if paymentID == "" {
		return nil, gateway.ValidationError("payment id must not be empty")
	}
	return &gateway.PaymentResult{
		ID:        paymentID,
		Status:    gateway.StatusCancelled,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// WebhookVerify implements gateway.Adapter. The signature comparison is
// constant-time so even this test adapter cannot serve as a timing
// oracle; the payload is not parsed until the signature matches.
func (a *Adapter) WebhookVerify(ctx context.Context, payload []byte, sigHeader string) (*gateway.Event, error) {
	if sigHeader == "" {
		return nil, gateway.WebhookErrorf("missing webhook signature header")
	}
	if subtle.ConstantTimeCompare([]byte(sigHeader), []byte(a.expectedSignature)) != 1 {
		return nil, gateway.WebhookErrorf("invalid webhook signature")
	}

	if !utf8.Valid(payload) {
		return nil, gateway.WebhookErrorf("invalid webhook payload encoding")
	}

	var body struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, gateway.WebhookErrorf("invalid webhook payload: %v", err)
	}

	eventType := body.Type
	if eventType == "" {
		eventType = "unknown"
	}
	data := body.Data
	if data == nil {
		data = map[string]any{}
	}

	return &gateway.Event{
		ID:        "mockpay_event",
		Type:      eventType,
		CreatedAt: time.Now().UTC(),
		Data:      data,
	}, nil
}
