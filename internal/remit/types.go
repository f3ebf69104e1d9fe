// Package remit orchestrates remittance money movement: collect from the
// sender, transfer to the recipient's sub-account, pay out to their bank.
package remit

import (
	"time"

	"remitgate/internal/common/money"
	"remitgate/internal/gateway"
)

// Status is the lifecycle state of a remittance payment.
type Status string

const (
	StatusCreated           Status = "created"
	StatusAuthorized        Status = "authorized"
	StatusCaptured          Status = "captured"
	StatusTransferred       Status = "transferred"
	StatusPaidOut           Status = "paid_out"
	StatusCancelled         Status = "cancelled"
	StatusFailed            Status = "failed"
	StatusRefunded          Status = "refunded"
	StatusPartiallyRefunded Status = "partially_refunded"
)

// transitions lists the allowed moves between payment states.
var transitions = map[Status][]Status{
	StatusCreated:           {StatusAuthorized, StatusCaptured, StatusCancelled, StatusFailed},
	StatusAuthorized:        {StatusCaptured, StatusCancelled, StatusFailed},
	StatusCaptured:          {StatusTransferred, StatusRefunded, StatusPartiallyRefunded, StatusFailed},
	StatusTransferred:       {StatusPaidOut, StatusRefunded, StatusPartiallyRefunded, StatusFailed},
	StatusPartiallyRefunded: {StatusRefunded, StatusPartiallyRefunded, StatusTransferred},
}

// CanTransition reports whether moving from one status to another is
// allowed. A transition to the current status is a no-op and allowed.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	switch s {
	case StatusPaidOut, StatusCancelled, StatusFailed, StatusRefunded:
		return true
	}
	return false
}

// fromGatewayStatus maps a processor status onto the remittance
// lifecycle.
func fromGatewayStatus(s gateway.Status) Status {
	switch s {
	case gateway.StatusCreated, gateway.StatusPending, gateway.StatusProcessing:
		return StatusCreated
	case gateway.StatusAuthorized:
		return StatusAuthorized
	case gateway.StatusCaptured, gateway.StatusCompleted:
		return StatusCaptured
	case gateway.StatusCancelled:
		return StatusCancelled
	case gateway.StatusFailed:
		return StatusFailed
	case gateway.StatusRefunded:
		return StatusRefunded
	case gateway.StatusPartiallyRefunded:
		return StatusPartiallyRefunded
	default:
		return StatusCreated
	}
}

// Payment is a remittance payment aggregate.
type Payment struct {
	ID             string            `json:"id"`
	Adapter        string            `json:"adapter"`
	ProviderID     string            `json:"provider_id"`
	CustomerID     string            `json:"customer_id,omitempty"`
	Amount         money.Amount      `json:"amount"`
	RefundedAmount money.Amount      `json:"refunded_amount"`
	Status         Status            `json:"status"`
	Description    string            `json:"description,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	TransferID     string            `json:"transfer_id,omitempty"`
	FailureReason  string            `json:"failure_reason,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Transfer is a movement of captured funds to a recipient sub-account.
type Transfer struct {
	ID               string       `json:"id"`
	PaymentID        string       `json:"payment_id,omitempty"`
	ProviderID       string       `json:"provider_id"`
	ConnectAccountID string       `json:"connect_account_id"`
	Amount           money.Amount `json:"amount"`
	Reversed         bool         `json:"reversed"`
	ReversedAmount   money.Amount `json:"reversed_amount"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// Payout is an outbound movement from a sub-account to its bank.
type Payout struct {
	ID               string        `json:"id"`
	ProviderID       string        `json:"provider_id"`
	ConnectAccountID string        `json:"connect_account_id"`
	Amount           *money.Amount `json:"amount,omitempty"`
	Currency         string        `json:"currency"`
	Speed            string        `json:"speed"`
	Status           string        `json:"status"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// WebhookRecord marks a provider event as processed for dedup.
type WebhookRecord struct {
	ProviderEventID string    `json:"provider_event_id"`
	Adapter         string    `json:"adapter"`
	EventType       string    `json:"event_type"`
	ReceivedAt      time.Time `json:"received_at"`
}
