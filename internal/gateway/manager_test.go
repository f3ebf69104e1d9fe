package gateway

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remitgate/internal/common/money"
)

// fakeAdapter records calls and returns canned results.
type fakeAdapter struct {
	name     string
	captured []string
	refunded []string
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) CreatePayment(ctx context.Context, amount money.Amount, params PaymentParams) (*PaymentResult, error) {
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}
	return &PaymentResult{ID: f.name + "_pi_1", Status: StatusCreated, Amount: amount}, nil
}

func (f *fakeAdapter) CapturePayment(ctx context.Context, paymentID string) (*PaymentResult, error) {
	f.captured = append(f.captured, paymentID)
	return &PaymentResult{ID: paymentID, Status: StatusCaptured}, nil
}

func (f *fakeAdapter) RefundPayment(ctx context.Context, paymentID string, params RefundParams) (*RefundResult, error) {
	f.refunded = append(f.refunded, paymentID)
	return &RefundResult{ID: f.name + "_re_1", PaymentID: paymentID, Status: StatusRefunded}, nil
}

func (f *fakeAdapter) CancelPayment(ctx context.Context, paymentID, reason string) (*PaymentResult, error) {
	return &PaymentResult{ID: paymentID, Status: StatusCancelled}, nil
}

func (f *fakeAdapter) WebhookVerify(ctx context.Context, payload []byte, sigHeader string) (*Event, error) {
	return &Event{ID: "evt_1", Type: "ping"}, nil
}

// statusAdapter additionally reports payment status.
type statusAdapter struct {
	fakeAdapter
}

func (s *statusAdapter) GetPaymentStatus(ctx context.Context, paymentID string) (*PaymentResult, error) {
	return &PaymentResult{ID: paymentID, Status: StatusCompleted}, nil
}

func (s *statusAdapter) ListPayments(ctx context.Context, params ListParams) ([]PaymentResult, error) {
	return nil, nil
}

func usd(v string) money.Amount {
	d, _ := decimal.NewFromString(v)
	return money.New(d, money.USD)
}

func TestFirstRegisteredBecomesDefault(t *testing.T) {
	m := NewManager(nil)

	require.NoError(t, m.Register("alpha", &fakeAdapter{name: "alpha"}, false))
	_, def := m.List()
	assert.Equal(t, "alpha", def)

	// A later registration without setAsDefault does not steal it.
	require.NoError(t, m.Register("beta", &fakeAdapter{name: "beta"}, false))
	_, def = m.List()
	assert.Equal(t, "alpha", def)

	// But an explicit default does.
	require.NoError(t, m.Register("gamma", &fakeAdapter{name: "gamma"}, true))
	_, def = m.List()
	assert.Equal(t, "gamma", def)
}

func TestRegisterValidation(t *testing.T) {
	m := NewManager(nil)

	assert.True(t, IsKind(m.Register("", &fakeAdapter{name: "x"}, false), KindValidation))
	assert.True(t, IsKind(m.Register("   ", &fakeAdapter{name: "x"}, false), KindValidation))
	assert.True(t, IsKind(m.Register("x", nil, false), KindValidation))
}

func TestRegisterReplacesWithoutDuplicating(t *testing.T) {
	m := NewManager(nil)

	first := &fakeAdapter{name: "stripe"}
	second := &fakeAdapter{name: "stripe"}
	require.NoError(t, m.Register("stripe", first, false))
	require.NoError(t, m.Register("Stripe", second, false))

	names, def := m.List()
	assert.Equal(t, []string{"stripe"}, names)
	assert.Equal(t, "stripe", def)

	got, err := m.Get("stripe")
	require.NoError(t, err)
	assert.Same(t, second, got)
}

func TestGetEmptyNameResolvesDefault(t *testing.T) {
	m := NewManager(nil)

	_, err := m.Get("")
	assert.True(t, IsKind(err, KindValidation))

	adapter := &fakeAdapter{name: "mockpay"}
	require.NoError(t, m.Register("mockpay", adapter, false))

	got, err := m.Get("")
	require.NoError(t, err)
	assert.Same(t, adapter, got)
}

func TestGetMissEnumeratesRegistered(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.Register("stripe", &fakeAdapter{name: "stripe"}, false))
	require.NoError(t, m.Register("mockpay", &fakeAdapter{name: "mockpay"}, false))

	_, err := m.Get("square")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stripe")
	assert.Contains(t, err.Error(), "mockpay")
}

func TestRemovePromotesEarliestRemaining(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.Register("alpha", &fakeAdapter{name: "alpha"}, false))
	require.NoError(t, m.Register("beta", &fakeAdapter{name: "beta"}, false))
	require.NoError(t, m.Register("gamma", &fakeAdapter{name: "gamma"}, true))

	require.NoError(t, m.Remove("gamma"))
	_, def := m.List()
	assert.Equal(t, "alpha", def)

	require.NoError(t, m.Remove("alpha"))
	_, def = m.List()
	assert.Equal(t, "beta", def)

	require.NoError(t, m.Remove("beta"))
	names, def := m.List()
	assert.Empty(t, names)
	assert.Empty(t, def)

	assert.True(t, IsKind(m.Remove("beta"), KindValidation))
}

func TestGetPaymentStatusCapability(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.Register("plain", &fakeAdapter{name: "plain"}, false))
	require.NoError(t, m.Register("rich", &statusAdapter{fakeAdapter{name: "rich"}}, false))

	// Adapter without the capability fails with a taxonomy error.
	_, err := m.GetPaymentStatus(context.Background(), "plain", "pi_1")
	assert.True(t, IsKind(err, KindValidation))

	result, err := m.GetPaymentStatus(context.Background(), "rich", "pi_1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
}

func TestManagerEndToEnd(t *testing.T) {
	m := NewManager(nil)
	custom := &fakeAdapter{name: "custom"}
	require.NoError(t, m.Register("custom", custom, true))

	ctx := context.Background()

	created, err := m.CreatePayment(ctx, "custom", usd("100.50"), PaymentParams{Description: "remittance"})
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, created.Status)

	capturedResult, err := m.CapturePayment(ctx, "custom", created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCaptured, capturedResult.Status)
	assert.Equal(t, []string{created.ID}, custom.captured)

	refund, err := m.RefundPayment(ctx, "", created.ID, RefundParams{})
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, refund.Status)
	assert.Equal(t, []string{created.ID}, custom.refunded)
}

func TestCreatePaymentRejectsInvalidAmount(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.Register("custom", &fakeAdapter{name: "custom"}, false))

	_, err := m.CreatePayment(context.Background(), "", usd("-5"), PaymentParams{})
	assert.True(t, IsKind(err, KindValidation))

	_, err = m.CreatePayment(context.Background(), "", usd("0"), PaymentParams{})
	assert.True(t, IsKind(err, KindValidation))
}
