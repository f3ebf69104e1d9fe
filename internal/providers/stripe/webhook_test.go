package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remitgate/internal/gateway"
)

func signPayload(secret string, payload []byte, ts time.Time) string {
	timestamp := fmt.Sprintf("%d", ts.Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

func newWebhookAdapter(t *testing.T) *Adapter {
	t.Helper()
	adapter, err := New(Config{
		APIKey:        "sk_test_123",
		WebhookSecret: testWebhookSecret,
	}, nil)
	require.NoError(t, err)
	return adapter
}

func TestWebhookVerifyValidSignature(t *testing.T) {
	adapter := newWebhookAdapter(t)
	payload := []byte(`{
		"id": "evt_1",
		"type": "payment_intent.succeeded",
		"created": 1700000000,
		"livemode": true,
		"data": {"object": {"id": "pi_1", "amount": 10050, "currency": "usd", "status": "succeeded"}}
	}`)

	event, err := adapter.WebhookVerify(context.Background(), payload, signPayload(testWebhookSecret, payload, time.Now()))
	require.NoError(t, err)

	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, "payment_intent.succeeded", event.Type)
	assert.True(t, event.Livemode)
	assert.Equal(t, "pi_1", event.Data["id"])
	assert.Equal(t, float64(10050), event.Data["amount"])
	assert.Equal(t, "succeeded", event.Data["status"])
}

func TestWebhookVerifyTamperedPayload(t *testing.T) {
	adapter := newWebhookAdapter(t)
	payload := []byte(`{"id":"evt_1","type":"payout.paid","data":{"object":{}}}`)
	sig := signPayload(testWebhookSecret, payload, time.Now())

	tampered := []byte(`{"id":"evt_1","type":"payout.paid","data":{"object":{"amount":999}}}`)
	_, err := adapter.WebhookVerify(context.Background(), tampered, sig)
	assert.True(t, gateway.IsKind(err, gateway.KindWebhook))
}

func TestWebhookVerifyWrongSecret(t *testing.T) {
	adapter := newWebhookAdapter(t)
	payload := []byte(`{"id":"evt_1","type":"payout.paid","data":{"object":{}}}`)

	_, err := adapter.WebhookVerify(context.Background(), payload, signPayload("whsec_other", payload, time.Now()))
	assert.True(t, gateway.IsKind(err, gateway.KindWebhook))
}

func TestWebhookVerifyStaleTimestamp(t *testing.T) {
	adapter := newWebhookAdapter(t)
	payload := []byte(`{"id":"evt_1","type":"payout.paid","data":{"object":{}}}`)

	stale := signPayload(testWebhookSecret, payload, time.Now().Add(-10*time.Minute))
	_, err := adapter.WebhookVerify(context.Background(), payload, stale)
	assert.True(t, gateway.IsKind(err, gateway.KindWebhook))

	future := signPayload(testWebhookSecret, payload, time.Now().Add(10*time.Minute))
	_, err = adapter.WebhookVerify(context.Background(), payload, future)
	assert.True(t, gateway.IsKind(err, gateway.KindWebhook))
}

func TestWebhookVerifyHeaderShapes(t *testing.T) {
	adapter := newWebhookAdapter(t)
	payload := []byte(`{"id":"evt_1","type":"payout.paid","data":{"object":{}}}`)
	ctx := context.Background()

	for _, header := range []string{"", "garbage", "t=abc,v1=def", "v1=deadbeef"} {
		_, err := adapter.WebhookVerify(ctx, payload, header)
		assert.True(t, gateway.IsKind(err, gateway.KindWebhook), "header %q", header)
	}
}

func TestWebhookVerifyRequiresIDAndType(t *testing.T) {
	adapter := newWebhookAdapter(t)
	payload := []byte(`{"created":1700000000,"data":{"object":{}}}`)

	_, err := adapter.WebhookVerify(context.Background(), payload, signPayload(testWebhookSecret, payload, time.Now()))
	assert.True(t, gateway.IsKind(err, gateway.KindWebhook))
}

func TestWebhookVerifyUnknownEventPassesThrough(t *testing.T) {
	adapter := newWebhookAdapter(t)
	payload := []byte(`{
		"id": "evt_2",
		"type": "radar.early_fraud_warning.created",
		"data": {"object": {"id": "issfr_1", "charge": "ch_1"}}
	}`)

	event, err := adapter.WebhookVerify(context.Background(), payload, signPayload(testWebhookSecret, payload, time.Now()))
	require.NoError(t, err)

	assert.Equal(t, "radar.early_fraud_warning.created", event.Type)
	// Unknown families keep the common fields only.
	assert.Equal(t, "issfr_1", event.Data["id"])
	assert.NotContains(t, event.Data, "charge")
}

func TestExtractEventDataByFamily(t *testing.T) {
	disputeObject := map[string]any{
		"id":               "dp_1",
		"amount":           float64(10050),
		"currency":         "usd",
		"reason":           "fraudulent",
		"status":           "needs_response",
		"evidence_details": map[string]any{"due_by": float64(1700600000)},
	}
	data := extractEventData("charge.dispute.created", disputeObject)
	assert.Equal(t, "fraudulent", data["reason"])
	assert.Equal(t, float64(1700600000), data["evidence_due_by"])

	accountObject := map[string]any{
		"id":              "acct_1",
		"charges_enabled": true,
		"payouts_enabled": false,
	}
	data = extractEventData("account.updated", accountObject)
	assert.Equal(t, true, data["charges_enabled"])
	assert.Equal(t, false, data["payouts_enabled"])

	failedIntent := map[string]any{
		"id":                 "pi_1",
		"status":             "requires_payment_method",
		"last_payment_error": map[string]any{"message": "Your card was declined."},
	}
	data = extractEventData("payment_intent.payment_failed", failedIntent)
	assert.Equal(t, "Your card was declined.", data["failure_message"])
}

func TestClassifyEvent(t *testing.T) {
	assert.Equal(t, familyDispute, classifyEvent("charge.dispute.created"))
	assert.Equal(t, familyPaymentIntent, classifyEvent("payment_intent.succeeded"))
	assert.Equal(t, familyTransfer, classifyEvent("transfer.reversed"))
	assert.Equal(t, familyPayout, classifyEvent("payout.paid"))
	assert.Equal(t, familyAccount, classifyEvent("account.updated"))
	assert.Equal(t, familyUnknown, classifyEvent("invoice.paid"))
}
