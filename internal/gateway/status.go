package gateway

import "strings"

// Status is the normalized payment status vocabulary. Every adapter maps
// its processor's native statuses into this set; the mapping is lossy by
// design and callers rely only on the normalized values.
type Status string

const (
	StatusPending           Status = "pending"
	StatusProcessing        Status = "processing"
	StatusAuthorized        Status = "authorized"
	StatusCompleted         Status = "completed"
	StatusFailed            Status = "failed"
	StatusCancelled         Status = "cancelled"
	StatusRefunded          Status = "refunded"
	StatusPartiallyRefunded Status = "partially_refunded"

	// Outside the webhook-facing set: synchronous creation and capture
	// results on adapters whose processor acknowledges before settling.
	StatusCreated  Status = "created"
	StatusCaptured Status = "captured"
)

var nativeStatuses = map[string]Status{
	"pending":            StatusPending,
	"processing":         StatusProcessing,
	"succeeded":          StatusCompleted,
	"completed":          StatusCompleted,
	"failed":             StatusFailed,
	"canceled":           StatusCancelled,
	"cancelled":          StatusCancelled,
	"refunded":           StatusRefunded,
	"partially_refunded": StatusPartiallyRefunded,

	// Stripe PaymentIntent statuses
	"requires_payment_method": StatusPending,
	"requires_confirmation":   StatusPending,
	"requires_action":         StatusPending,
	"requires_capture":        StatusAuthorized,
	"payment_failed":          StatusFailed,
}

// NormalizeStatus maps a processor-native status into the normalized
// vocabulary. Unrecognized statuses pass through lowercased so callers
// can still log and persist them.
func NormalizeStatus(native string) Status {
	s := strings.ToLower(native)
	if normalized, ok := nativeStatuses[s]; ok {
		return normalized
	}
	return Status(s)
}

// Terminal reports whether a status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}
