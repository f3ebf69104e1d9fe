package stripe

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remitgate/internal/common/money"
	"remitgate/internal/gateway"
)

func TestCreatePaymentFormEncoding(t *testing.T) {
	var form map[string][]string
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		assert.Equal(t, "/payment_intents", r.URL.Path)
		fmt.Fprint(w, `{"id":"pi_1","status":"requires_payment_method","amount":10050,"currency":"usd","client_secret":"pi_1_secret"}`)
	})

	result, err := adapter.CreatePayment(context.Background(), usd("100.50"), gateway.PaymentParams{
		CustomerID:  "cus_1",
		Description: "remittance to PH",
		Metadata:    map[string]string{"recipient": "acct_9"},
	})
	require.NoError(t, err)

	// Amounts cross the wire in minor units.
	assert.Equal(t, "10050", form["amount"][0])
	assert.Equal(t, "usd", form["currency"][0])
	assert.Equal(t, "cus_1", form["customer"][0])
	assert.Equal(t, "true", form["automatic_payment_methods[enabled]"][0])
	assert.Equal(t, "acct_9", form["metadata[recipient]"][0])

	assert.Equal(t, "pi_1", result.ID)
	assert.Equal(t, gateway.StatusPending, result.Status)
	assert.Equal(t, "pi_1_secret", result.ClientSecret)
	assert.True(t, result.Amount.Equal(usd("100.50")))
}

func TestCreatePaymentExplicitMethodTypes(t *testing.T) {
	var form map[string][]string
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		fmt.Fprint(w, `{"id":"pi_1","status":"requires_payment_method","amount":1000,"currency":"usd"}`)
	})

	_, err := adapter.CreatePayment(context.Background(), usd("10"), gateway.PaymentParams{
		PaymentMethodTypes: []string{"card", "us_bank_account"},
	})
	require.NoError(t, err)

	assert.Equal(t, "card", form["payment_method_types[0]"][0])
	assert.Equal(t, "us_bank_account", form["payment_method_types[1]"][0])
	assert.Empty(t, form["automatic_payment_methods[enabled]"])
}

func TestCapturePayment(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payment_intents/pi_1/capture", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		fmt.Fprint(w, `{"id":"pi_1","status":"succeeded","amount":1000,"currency":"usd"}`)
	})

	result, err := adapter.CapturePayment(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusCompleted, result.Status)
}

func TestCancelPaymentSendsReason(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "/payment_intents/pi_1/cancel", r.URL.Path)
		assert.Equal(t, "requested_by_customer", r.PostForm.Get("cancellation_reason"))
		fmt.Fprint(w, `{"id":"pi_1","status":"canceled","amount":1000,"currency":"usd"}`)
	})

	result, err := adapter.CancelPayment(context.Background(), "pi_1", "requested_by_customer")
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusCancelled, result.Status)
}

func TestRefundPayment(t *testing.T) {
	var form map[string][]string
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		assert.Equal(t, "/refunds", r.URL.Path)
		fmt.Fprint(w, `{"id":"re_1","payment_intent":"pi_1","amount":2500,"currency":"usd","status":"succeeded"}`)
	})

	amount := usd("25")
	result, err := adapter.RefundPayment(context.Background(), "pi_1", gateway.RefundParams{
		Amount: &amount,
		Reason: "requested_by_customer",
	})
	require.NoError(t, err)

	assert.Equal(t, "pi_1", form["payment_intent"][0])
	assert.Equal(t, "2500", form["amount"][0])
	assert.Equal(t, "requested_by_customer", form["reason"][0])
	assert.Equal(t, "re_1", result.ID)
	assert.Equal(t, "pi_1", result.PaymentID)
}

func TestRefundPaymentFullOmitsAmount(t *testing.T) {
	var form map[string][]string
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		fmt.Fprint(w, `{"id":"re_1","payment_intent":"pi_1","amount":10000,"currency":"usd","status":"succeeded"}`)
	})

	_, err := adapter.RefundPayment(context.Background(), "pi_1", gateway.RefundParams{})
	require.NoError(t, err)
	assert.Empty(t, form["amount"])
}

func TestGetPaymentStatus(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payment_intents/pi_1", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		fmt.Fprint(w, `{"id":"pi_1","status":"requires_capture","amount":1000,"currency":"usd"}`)
	})

	// stripe exposes the optional read capability.
	var reader gateway.StatusReader = adapter

	result, err := reader.GetPaymentStatus(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusAuthorized, result.Status)
}

func TestListPaymentsPagination(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "25", q.Get("limit"))
		assert.Equal(t, "pi_0", q.Get("starting_after"))
		fmt.Fprint(w, `{"data":[{"id":"pi_1","status":"succeeded","amount":1000,"currency":"usd"}],"has_more":false}`)
	})

	results, err := adapter.ListPayments(context.Background(), gateway.ListParams{
		Limit:         25,
		StartingAfter: "pi_0",
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "pi_1", results[0].ID)
}

func TestCreatePayoutRoutesToConnectAccount(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "/payouts", r.URL.Path)
		assert.Equal(t, "acct_9", r.Header.Get("Stripe-Account"))
		assert.Equal(t, "5000", r.PostForm.Get("amount"))
		assert.Equal(t, "instant", r.PostForm.Get("method"))
		fmt.Fprint(w, `{"id":"po_1","amount":5000,"currency":"usd","status":"pending","method":"instant"}`)
	})

	amount := usd("50")
	payout, err := adapter.CreatePayout(context.Background(), PayoutParams{
		ConnectAccountID: "acct_9",
		Amount:           &amount,
		Currency:         money.USD,
		Speed:            PayoutInstant,
	})
	require.NoError(t, err)
	assert.Equal(t, "po_1", payout.ID)
}

func TestCreateTransferLinksSourceTransaction(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "/transfers", r.URL.Path)
		assert.Equal(t, "acct_9", r.PostForm.Get("destination"))
		assert.Equal(t, "ch_1", r.PostForm.Get("source_transaction"))
		fmt.Fprint(w, `{"id":"tr_1","amount":10000,"currency":"usd","destination":"acct_9"}`)
	})

	transfer, err := adapter.CreateTransfer(context.Background(), TransferParams{
		Amount:              usd("100"),
		DestinationID:       "acct_9",
		SourceTransactionID: "ch_1",
	})
	require.NoError(t, err)
	assert.Equal(t, "tr_1", transfer.ID)
}
