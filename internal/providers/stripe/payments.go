package stripe

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"remitgate/internal/common/money"
	"remitgate/internal/gateway"
)

func (a *Adapter) paymentResult(pi *paymentIntent) *gateway.PaymentResult {
	return &gateway.PaymentResult{
		ID:           pi.ID,
		Status:       gateway.NormalizeStatus(pi.Status),
		Amount:       money.FromMinor(pi.Amount, money.Currency(strings.ToUpper(pi.Currency))),
		CustomerID:   pi.Customer,
		ClientSecret: pi.ClientSecret,
		Metadata:     pi.Metadata,
		CreatedAt:    time.Unix(pi.Created, 0).UTC(),
	}
}

// CreatePayment implements gateway.Adapter. It creates a PaymentIntent
// against the sender and returns the client secret the sender-side app
// confirms against.
func (a *Adapter) CreatePayment(ctx context.Context, amount money.Amount, params gateway.PaymentParams) (*gateway.PaymentResult, error) {
	if err := gateway.ValidateAmount(amount); err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amount.MinorUnits(), 10))
	form.Set("currency", strings.ToLower(string(amount.Currency)))
	if params.CustomerID != "" {
		form.Set("customer", params.CustomerID)
	}
	if params.Description != "" {
		form.Set("description", params.Description)
	}
	if len(params.PaymentMethodTypes) > 0 {
		for i, t := range params.PaymentMethodTypes {
			form.Set(fmt.Sprintf("payment_method_types[%d]", i), t)
		}
	} else {
		form.Set("automatic_payment_methods[enabled]", "true")
	}
	for k, v := range params.Metadata {
		form.Set("metadata["+k+"]", v)
	}

	var pi paymentIntent
	err := a.call(ctx, callParams{
		method:     http.MethodPost,
		path:       "/payment_intents",
		form:       form,
		idempotent: true,
	}, &pi)
	if err != nil {
		return nil, err
	}

	a.logger.Info("created payment intent",
		"payment_id", pi.ID,
		"amount", pi.Amount,
		"currency", pi.Currency,
	)
	return a.paymentResult(&pi), nil
}

// ConfirmPayment confirms a PaymentIntent server-side, optionally with an
// explicit payment method.
func (a *Adapter) ConfirmPayment(ctx context.Context, paymentID, paymentMethodID string) (*gateway.PaymentResult, error) {
	if paymentID == "" {
		return nil, gateway.ValidationError("payment id must not be empty")
	}

	form := url.Values{}
	if paymentMethodID != "" {
		form.Set("payment_method", paymentMethodID)
	}

	var pi paymentIntent
	err := a.call(ctx, callParams{
		method:     http.MethodPost,
		path:       "/payment_intents/" + paymentID + "/confirm",
		form:       form,
		idempotent: true,
	}, &pi)
	if err != nil {
		return nil, err
	}

	a.logger.Info("confirmed payment intent", "payment_id", pi.ID, "status", pi.Status)
	return a.paymentResult(&pi), nil
}

// CapturePayment implements gateway.Adapter.
func (a *Adapter) CapturePayment(ctx context.Context, paymentID string) (*gateway.PaymentResult, error) {
	if paymentID == "" {
		return nil, gateway.ValidationError("payment id must not be empty")
	}

	var pi paymentIntent
	err := a.call(ctx, callParams{
		method:     http.MethodPost,
		path:       "/payment_intents/" + paymentID + "/capture",
		form:       url.Values{},
		idempotent: true,
	}, &pi)
	if err != nil {
		return nil, err
	}

	a.logger.Info("captured payment intent", "payment_id", pi.ID)
	return a.paymentResult(&pi), nil
}

// CancelPayment implements gateway.Adapter.
func (a *Adapter) CancelPayment(ctx context.Context, paymentID, reason string) (*gateway.PaymentResult, error) {
	if paymentID == "" {
		return nil, gateway.ValidationError("payment id must not be empty")
	}

	form := url.Values{}
	if reason != "" {
		form.Set("cancellation_reason", reason)
	}

	var pi paymentIntent
	err := a.call(ctx, callParams{
		method:     http.MethodPost,
		path:       "/payment_intents/" + paymentID + "/cancel",
		form:       form,
		idempotent: true,
	}, &pi)
	if err != nil {
		return nil, err
	}

	a.logger.Info("cancelled payment intent", "payment_id", pi.ID, "reason", pi.CancellationReason)
	return a.paymentResult(&pi), nil
}

// RefundPayment implements gateway.Adapter. A nil params.Amount refunds
// the full captured amount.
func (a *Adapter) RefundPayment(ctx context.Context, paymentID string, params gateway.RefundParams) (*gateway.RefundResult, error) {
	if paymentID == "" {
		return nil, gateway.ValidationError("payment id must not be empty")
	}

	form := url.Values{}
	form.Set("payment_intent", paymentID)
	if params.Amount != nil {
		if err := gateway.ValidateAmount(*params.Amount); err != nil {
			return nil, err
		}
		form.Set("amount", strconv.FormatInt(params.Amount.MinorUnits(), 10))
	}
	if params.Reason != "" {
		form.Set("reason", params.Reason)
	}
	for k, v := range params.Metadata {
		form.Set("metadata["+k+"]", v)
	}

	var refund refundObject
	err := a.call(ctx, callParams{
		method:     http.MethodPost,
		path:       "/refunds",
		form:       form,
		idempotent: true,
	}, &refund)
	if err != nil {
		// Refund failures get their own kind so callers can route them
		// to refund-specific recovery.
		if gateway.IsKind(err, gateway.KindPaymentProcessing) {
			return nil, gateway.RefundError(err, "refund failed for payment %s", paymentID)
		}
		return nil, err
	}

	a.logger.Info("created refund",
		"refund_id", refund.ID,
		"payment_id", refund.PaymentIntent,
		"amount", refund.Amount,
	)
	return &gateway.RefundResult{
		ID:        refund.ID,
		PaymentID: refund.PaymentIntent,
		Status:    gateway.NormalizeStatus(refund.Status),
		Amount:    money.FromMinor(refund.Amount, money.Currency(strings.ToUpper(refund.Currency))),
		CreatedAt: time.Unix(refund.Created, 0).UTC(),
	}, nil
}

// GetPaymentStatus implements gateway.StatusReader.
func (a *Adapter) GetPaymentStatus(ctx context.Context, paymentID string) (*gateway.PaymentResult, error) {
	if paymentID == "" {
		return nil, gateway.ValidationError("payment id must not be empty")
	}

	var pi paymentIntent
	err := a.call(ctx, callParams{
		method: http.MethodGet,
		path:   "/payment_intents/" + paymentID,
	}, &pi)
	if err != nil {
		return nil, err
	}
	return a.paymentResult(&pi), nil
}

// ListPayments implements gateway.StatusReader.
func (a *Adapter) ListPayments(ctx context.Context, params gateway.ListParams) ([]gateway.PaymentResult, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	form := url.Values{}
	form.Set("limit", strconv.Itoa(limit))
	if params.StartingAfter != "" {
		form.Set("starting_after", params.StartingAfter)
	}
	if !params.CreatedAfter.IsZero() {
		form.Set("created[gte]", strconv.FormatInt(params.CreatedAfter.Unix(), 10))
	}

	var list paymentIntentList
	err := a.call(ctx, callParams{
		method: http.MethodGet,
		path:   "/payment_intents",
		form:   form,
	}, &list)
	if err != nil {
		return nil, err
	}

	results := make([]gateway.PaymentResult, 0, len(list.Data))
	for i := range list.Data {
		results = append(results, *a.paymentResult(&list.Data[i]))
	}
	return results, nil
}

// AttachPaymentMethod attaches a payment method to a customer for reuse.
func (a *Adapter) AttachPaymentMethod(ctx context.Context, paymentMethodID, customerID string) (*PaymentMethod, error) {
	if paymentMethodID == "" || customerID == "" {
		return nil, gateway.ValidationError("payment method id and customer id must not be empty")
	}

	form := url.Values{}
	form.Set("customer", customerID)

	var pm paymentMethodObject
	err := a.call(ctx, callParams{
		method:     http.MethodPost,
		path:       "/payment_methods/" + paymentMethodID + "/attach",
		form:       form,
		idempotent: true,
	}, &pm)
	if err != nil {
		return nil, err
	}

	return &PaymentMethod{
		ID:         pm.ID,
		Type:       pm.Type,
		CustomerID: pm.Customer,
		CreatedAt:  time.Unix(pm.Created, 0).UTC(),
	}, nil
}

// PaymentMethod is a stored payment instrument attached to a customer.
type PaymentMethod struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	CustomerID string    `json:"customer_id"`
	CreatedAt  time.Time `json:"created_at"`
}
