package gateway

import (
	"errors"
	"fmt"
)

// Kind classifies a gateway error. Every adapter maps its processor's
// native failures into exactly one of these so callers dispatch on a
// single closed set regardless of which adapter is active.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindPaymentNotFound   Kind = "payment_not_found"
	KindPaymentProcessing Kind = "payment_processing"
	KindRefund            Kind = "refund"
	KindWebhook           Kind = "webhook"
	KindRateLimit         Kind = "rate_limit"
	KindAuthentication    Kind = "authentication"
)

// Error is the error type returned by every adapter and the manager.
// Processor-native errors never cross the adapter boundary; they are
// carried as the wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error // upstream cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is match on kind, so sentinel-style checks like
// errors.Is(err, gateway.ErrValidation) work across wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// Kind sentinels for errors.Is checks.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrInsufficientFunds = &Error{Kind: KindInsufficientFunds}
	ErrPaymentNotFound   = &Error{Kind: KindPaymentNotFound}
	ErrPaymentProcessing = &Error{Kind: KindPaymentProcessing}
	ErrRefund            = &Error{Kind: KindRefund}
	ErrWebhook           = &Error{Kind: KindWebhook}
	ErrRateLimit         = &Error{Kind: KindRateLimit}
	ErrAuthentication    = &Error{Kind: KindAuthentication}
)

// KindOf returns the kind of err, or "" if err is not a gateway error.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}

// IsKind reports whether err is a gateway error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func newError(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// ValidationError reports malformed or semantically invalid input.
func ValidationError(format string, args ...any) *Error {
	return newError(KindValidation, nil, format, args...)
}

// InsufficientFundsError reports a decline for lack of funds.
func InsufficientFundsError(cause error, format string, args ...any) *Error {
	return newError(KindInsufficientFunds, cause, format, args...)
}

// NotFoundError reports a payment or transfer id unknown to the processor.
func NotFoundError(format string, args ...any) *Error {
	return newError(KindPaymentNotFound, nil, format, args...)
}

// ProcessingError reports a processor-side failure not otherwise classified.
func ProcessingError(cause error, format string, args ...any) *Error {
	return newError(KindPaymentProcessing, cause, format, args...)
}

// RefundError reports a refund-specific processing failure.
func RefundError(cause error, format string, args ...any) *Error {
	return newError(KindRefund, cause, format, args...)
}

// WebhookErrorf reports a webhook signature or payload verification failure.
func WebhookErrorf(format string, args ...any) *Error {
	return newError(KindWebhook, nil, format, args...)
}

// RateLimitError reports processor throttling.
func RateLimitError(cause error, format string, args ...any) *Error {
	return newError(KindRateLimit, cause, format, args...)
}

// AuthenticationError reports rejected adapter credentials.
func AuthenticationError(cause error, format string, args ...any) *Error {
	return newError(KindAuthentication, cause, format, args...)
}
