// Package events defines the domain event envelope published for
// every money movement transition.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// Event represents a domain event envelope
type Event struct {
	ID            string          `json:"event_id"`
	Type          string          `json:"type"`
	Version       int             `json:"version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CorrelationID string          `json:"correlation_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event
func NewEvent(eventType, aggregateType, aggregateID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            ulid.Make().String(),
		Type:          eventType,
		Version:       1,
		OccurredAt:    time.Now().UTC(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Data:          dataBytes,
	}, nil
}

// WithCorrelation adds a correlation ID
func (e *Event) WithCorrelation(correlationID string) *Event {
	e.CorrelationID = correlationID
	return e
}

// DecodeData decodes the event data into a struct
func (e *Event) DecodeData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// EventPublisher publishes events to a message broker
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
	PublishBatch(ctx context.Context, events []*Event) error
}

// EventHandler handles incoming events
type EventHandler interface {
	Handle(ctx context.Context, event *Event) error
	EventTypes() []string
}

// Common event types
const (
	// Payment events
	EventPaymentCreated    = "payment.created"
	EventPaymentAuthorized = "payment.authorized"
	EventPaymentCaptured   = "payment.captured"
	EventPaymentCancelled  = "payment.cancelled"
	EventPaymentFailed     = "payment.failed"
	EventPaymentRefunded   = "payment.refunded"

	// Transfer events
	EventTransferCreated  = "transfer.created"
	EventTransferReversed = "transfer.reversed"

	// Payout events
	EventPayoutInitiated = "payout.initiated"
	EventPayoutPaid      = "payout.paid"
	EventPayoutFailed    = "payout.failed"

	// Connect account events
	EventAccountCreated = "account.created"
	EventAccountUpdated = "account.updated"

	// Webhook events
	EventWebhookReceived = "webhook.received"
)

// PaymentTransitionData is the data for payment.* events
type PaymentTransitionData struct {
	PaymentID  string `json:"payment_id"`
	ProviderID string `json:"provider_id"`
	Adapter    string `json:"adapter"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
}

// TransferData is the data for transfer.* events
type TransferData struct {
	TransferID       string `json:"transfer_id"`
	PaymentID        string `json:"payment_id,omitempty"`
	ConnectAccountID string `json:"connect_account_id"`
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
	Reversed         bool   `json:"reversed,omitempty"`
}

// PayoutData is the data for payout.* events
type PayoutData struct {
	PayoutID         string `json:"payout_id"`
	ConnectAccountID string `json:"connect_account_id"`
	Amount           string `json:"amount,omitempty"`
	Currency         string `json:"currency"`
	Speed            string `json:"speed"`
	Status           string `json:"status"`
}

// WebhookReceivedData is the data for webhook.received events
type WebhookReceivedData struct {
	ProviderEventID string `json:"provider_event_id"`
	Adapter         string `json:"adapter"`
	EventType       string `json:"event_type"`
	Livemode        bool   `json:"livemode"`
}
