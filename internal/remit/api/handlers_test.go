package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remitgate/internal/common/database"
	"remitgate/internal/gateway"
	"remitgate/internal/providers/mockpay"
	"remitgate/internal/remit"
)

// stubStore is a minimal in-memory remit.Store for handler tests.
type stubStore struct {
	mu       sync.Mutex
	payments map[string]*remit.Payment
	webhooks map[string]bool
}

func newStubStore() *stubStore {
	return &stubStore{
		payments: map[string]*remit.Payment{},
		webhooks: map[string]bool{},
	}
}

func (s *stubStore) CreatePayment(ctx context.Context, p *remit.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.payments[p.ID] = &cp
	return nil
}

func (s *stubStore) GetPayment(ctx context.Context, id string) (*remit.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *stubStore) GetPaymentByProviderID(ctx context.Context, providerID string) (*remit.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if p.ProviderID == providerID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *stubStore) GetPaymentByIdempotencyKey(ctx context.Context, key string) (*remit.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if p.IdempotencyKey == key {
			cp := *p
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *stubStore) UpdatePayment(ctx context.Context, p *remit.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payments[p.ID]; !ok {
		return database.ErrNotFound
	}
	cp := *p
	s.payments[p.ID] = &cp
	return nil
}

func (s *stubStore) ListPayments(ctx context.Context, limit int) ([]*remit.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*remit.Payment
	for _, p := range s.payments {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (s *stubStore) CreateTransfer(ctx context.Context, t *remit.Transfer) error { return nil }

func (s *stubStore) GetTransfer(ctx context.Context, id string) (*remit.Transfer, error) {
	return nil, database.ErrNotFound
}

func (s *stubStore) GetTransferByProviderID(ctx context.Context, providerID string) (*remit.Transfer, error) {
	return nil, database.ErrNotFound
}

func (s *stubStore) UpdateTransfer(ctx context.Context, t *remit.Transfer) error {
	return database.ErrNotFound
}

func (s *stubStore) CreatePayout(ctx context.Context, p *remit.Payout) error { return nil }

func (s *stubStore) GetPayoutByProviderID(ctx context.Context, providerID string) (*remit.Payout, error) {
	return nil, database.ErrNotFound
}

func (s *stubStore) UpdatePayout(ctx context.Context, p *remit.Payout) error {
	return database.ErrNotFound
}

func (s *stubStore) MarkWebhookProcessed(ctx context.Context, rec *remit.WebhookRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.webhooks[rec.ProviderEventID] {
		return database.ErrAlreadyExists
	}
	s.webhooks[rec.ProviderEventID] = true
	return nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	manager := gateway.NewManager(nil)
	require.NoError(t, manager.Register("mockpay", mockpay.New(""), true))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := remit.NewService(newStubStore(), manager, nil, logger)

	srv := httptest.NewServer(NewHandler(svc).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	return resp
}

func decodeEnvelope(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var envelope map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope
}

func TestCreatePaymentEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/payments", map[string]any{
		"amount":   "100.50",
		"currency": "USD",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	envelope := decodeEnvelope(t, resp)
	data := envelope["data"].(map[string]any)
	assert.Equal(t, "created", data["status"])
	assert.Equal(t, "mockpay", data["adapter"])
	assert.Equal(t, "mockpay_payment", data["provider_id"])
}

func TestCreatePaymentValidation(t *testing.T) {
	srv := newTestServer(t)

	// Missing currency fails struct validation with field details.
	resp := postJSON(t, srv.URL+"/payments", map[string]any{"amount": "100"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	envelope := decodeEnvelope(t, resp)
	apiErr := envelope["error"].(map[string]any)
	assert.Equal(t, "VALIDATION_ERROR", apiErr["code"])
	assert.Contains(t, apiErr["details"], "Currency")

	// A non-numeric amount fails parsing.
	resp = postJSON(t, srv.URL+"/payments", map[string]any{
		"amount":   "lots",
		"currency": "USD",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	envelope = decodeEnvelope(t, resp)
	assert.Equal(t, "BAD_REQUEST", envelope["error"].(map[string]any)["code"])

	// A negative amount is rejected by the adapter contract.
	resp = postJSON(t, srv.URL+"/payments", map[string]any{
		"amount":   "-5",
		"currency": "USD",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	envelope = decodeEnvelope(t, resp)
	assert.Equal(t, "VALIDATION_ERROR", envelope["error"].(map[string]any)["code"])
}

func TestGetPaymentNotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/payments/does-not-exist")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	envelope := decodeEnvelope(t, resp)
	assert.Equal(t, "NOT_FOUND", envelope["error"].(map[string]any)["code"])
}

func TestCaptureAndCancelConflict(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/payments", map[string]any{
		"amount":   "100",
		"currency": "USD",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := decodeEnvelope(t, resp)["data"].(map[string]any)["id"].(string)

	resp = postJSON(t, srv.URL+"/payments/"+id+"/capture", map[string]any{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "captured", decodeEnvelope(t, resp)["data"].(map[string]any)["status"])

	// Cancelling a captured payment is an invalid lifecycle move.
	resp = postJSON(t, srv.URL+"/payments/"+id+"/cancel", map[string]any{"reason": "changed mind"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "UNPROCESSABLE", decodeEnvelope(t, resp)["error"].(map[string]any)["code"])
}

func TestRefundEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/payments", map[string]any{
		"amount":   "100",
		"currency": "USD",
	})
	id := decodeEnvelope(t, resp)["data"].(map[string]any)["id"].(string)

	resp = postJSON(t, srv.URL+"/payments/"+id+"/capture", map[string]any{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/payments/"+id+"/refund", map[string]any{
		"amount":   "40",
		"currency": "USD",
		"reason":   "requested_by_customer",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := decodeEnvelope(t, resp)["data"].(map[string]any)
	assert.Equal(t, "partially_refunded", data["status"])

	// Refunding more than the remaining balance is rejected.
	resp = postJSON(t, srv.URL+"/payments/"+id+"/refund", map[string]any{
		"amount":   "80",
		"currency": "USD",
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()
}

func postRaw(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func createCapturedPayment(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp := postJSON(t, srv.URL+"/payments", map[string]any{
		"amount":   "100",
		"currency": "USD",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := decodeEnvelope(t, resp)["data"].(map[string]any)["id"].(string)

	resp = postJSON(t, srv.URL+"/payments/"+id+"/capture", map[string]any{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	return id
}

func TestRefundRejectsMalformedBody(t *testing.T) {
	srv := newTestServer(t)
	id := createCapturedPayment(t, srv)

	// A numeric amount does not decode into the string field. It must
	// not fall through to a full refund.
	resp := postRaw(t, srv.URL+"/payments/"+id+"/refund", `{"amount": 50, "currency": "USD"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "BAD_REQUEST", decodeEnvelope(t, resp)["error"].(map[string]any)["code"])

	getResp, err := http.Get(srv.URL + "/payments/" + id)
	require.NoError(t, err)
	assert.Equal(t, "captured", decodeEnvelope(t, getResp)["data"].(map[string]any)["status"])
}

func TestRefundEmptyBodyRefundsInFull(t *testing.T) {
	srv := newTestServer(t)
	id := createCapturedPayment(t, srv)

	resp, err := http.Post(srv.URL+"/payments/"+id+"/refund", "application/json", http.NoBody)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "refunded", decodeEnvelope(t, resp)["data"].(map[string]any)["status"])
}

func TestReverseTransferRejectsMalformedBody(t *testing.T) {
	srv := newTestServer(t)

	resp := postRaw(t, srv.URL+"/transfers/tr_x/reverse", `{"amount": 10, "currency": "USD"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "BAD_REQUEST", decodeEnvelope(t, resp)["error"].(map[string]any)["code"])
}

func TestCancelRejectsMalformedBody(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/payments", map[string]any{
		"amount":   "100",
		"currency": "USD",
	})
	id := decodeEnvelope(t, resp)["data"].(map[string]any)["id"].(string)

	resp = postRaw(t, srv.URL+"/payments/"+id+"/cancel", `{"reason": 7}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestBalanceWithoutConnectProvider(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/balance")
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", decodeEnvelope(t, resp)["error"].(map[string]any)["code"])
}

func TestTransferWithoutConnectProvider(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/transfers", map[string]any{
		"connect_account_id": "acct_1",
		"amount":             "50",
		"currency":           "USD",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", decodeEnvelope(t, resp)["error"].(map[string]any)["code"])
}

func TestWebhookEndpoint(t *testing.T) {
	srv := newTestServer(t)

	body := []byte(`{"type":"ping","data":{"seq":1}}`)
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/webhooks/mockpay", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("X-Webhook-Signature", mockpay.DefaultSignature)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := decodeEnvelope(t, resp)["data"].(map[string]any)
	assert.Equal(t, "true", data["received"])
	assert.Equal(t, "mockpay_event", data["event_id"])
}

func TestWebhookEndpointBadSignature(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/webhooks/mockpay", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	req.Header.Set("X-Webhook-Signature", "wrong")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "UNPROCESSABLE", decodeEnvelope(t, resp)["error"].(map[string]any)["code"])
}
