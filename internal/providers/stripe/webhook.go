package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"remitgate/internal/gateway"
)

// Event families, decoded once at the boundary. Anything outside the
// closed set is familyUnknown; such events are still verified, accepted,
// and passed through for the caller to decide on.
type eventFamily int

const (
	familyUnknown eventFamily = iota
	familyPaymentIntent
	familyTransfer
	familyPayout
	familyAccount
	familyDispute
)

func classifyEvent(eventType string) eventFamily {
	switch {
	case strings.HasPrefix(eventType, "charge.dispute"):
		return familyDispute
	case strings.HasPrefix(eventType, "payment_intent"):
		return familyPaymentIntent
	case strings.HasPrefix(eventType, "transfer"):
		return familyTransfer
	case strings.HasPrefix(eventType, "payout"):
		return familyPayout
	case strings.HasPrefix(eventType, "account"):
		return familyAccount
	default:
		return familyUnknown
	}
}

// criticalEvents are flagged for elevated operational attention. Not an
// exhaustive list of actionable types; downstream reconciliation treats
// these as higher priority.
var criticalEvents = map[string]bool{
	"payment_intent.succeeded":      true,
	"payment_intent.payment_failed": true,
	"payment_intent.failed":         true,
	"charge.dispute.created":        true,
	"transfer.failed":               true,
	"payout.failed":                 true,
}

type webhookEvent struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Created  int64  `json:"created"`
	Livemode bool   `json:"livemode"`
	Data     struct {
		Object map[string]any `json:"object"`
	} `json:"data"`
}

// WebhookVerify implements gateway.Adapter. The signature header is
// checked before the payload is parsed; a delivery that fails
// verification is fatal for that attempt. Deliveries are at-least-once,
// so consumers must dedupe by event id.
func (a *Adapter) WebhookVerify(ctx context.Context, payload []byte, sigHeader string) (*gateway.Event, error) {
	if err := a.verifySignature(payload, sigHeader, time.Now()); err != nil {
		return nil, err
	}

	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, gateway.WebhookErrorf("malformed webhook payload: %v", err)
	}
	if event.ID == "" || event.Type == "" {
		return nil, gateway.WebhookErrorf("webhook payload missing event id or type")
	}

	if criticalEvents[event.Type] {
		a.logger.Warn("critical webhook event received",
			"event_id", event.ID,
			"event_type", event.Type,
			"livemode", event.Livemode,
		)
	} else {
		a.logger.Info("webhook event verified",
			"event_id", event.ID,
			"event_type", event.Type,
		)
	}

	return &gateway.Event{
		ID:        event.ID,
		Type:      event.Type,
		CreatedAt: time.Unix(event.Created, 0).UTC(),
		Livemode:  event.Livemode,
		Data:      extractEventData(event.Type, event.Data.Object),
	}, nil
}

// verifySignature checks the Stripe-Signature header: HMAC-SHA256 of
// "<timestamp>.<payload>" with the webhook secret, constant-time compare
// against every v1 candidate, timestamp bounded by the tolerance window.
func (a *Adapter) verifySignature(payload []byte, sigHeader string, now time.Time) error {
	if sigHeader == "" {
		return gateway.WebhookErrorf("missing webhook signature header")
	}

	var timestamp string
	var candidates []string
	for _, part := range strings.Split(sigHeader, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			candidates = append(candidates, value)
		}
	}
	if timestamp == "" || len(candidates) == 0 {
		return gateway.WebhookErrorf("malformed webhook signature header")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return gateway.WebhookErrorf("malformed webhook signature timestamp")
	}
	age := now.Sub(time.Unix(ts, 0))
	if age > a.config.SignatureTolerance || age < -a.config.SignatureTolerance {
		return gateway.WebhookErrorf("webhook signature timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, []byte(a.config.WebhookSecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, candidate := range candidates {
		if hmac.Equal([]byte(candidate), []byte(expected)) {
			return nil
		}
	}
	return gateway.WebhookErrorf("webhook signature mismatch")
}

// extractEventData pulls the fields relevant to the event's family from
// the raw object. Unknown families keep the common fields only.
func extractEventData(eventType string, object map[string]any) map[string]any {
	data := map[string]any{
		"id":       object["id"],
		"object":   object["object"],
		"created":  object["created"],
		"livemode": object["livemode"],
	}

	copyFields := func(fields ...string) {
		for _, f := range fields {
			if v, ok := object[f]; ok {
				data[f] = v
			}
		}
	}

	switch classifyEvent(eventType) {
	case familyPaymentIntent:
		copyFields("amount", "currency", "customer", "status", "metadata")
		if lpe, ok := object["last_payment_error"].(map[string]any); ok {
			data["failure_message"] = lpe["message"]
		}
	case familyTransfer:
		copyFields("amount", "currency", "destination", "metadata")
	case familyPayout:
		copyFields("amount", "currency", "arrival_date", "status", "type")
	case familyAccount:
		copyFields("charges_enabled", "payouts_enabled", "requirements")
	case familyDispute:
		copyFields("amount", "currency", "reason", "status")
		if evidence, ok := object["evidence_details"].(map[string]any); ok {
			data["evidence_due_by"] = evidence["due_by"]
		}
	}
	return data
}
