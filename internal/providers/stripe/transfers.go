package stripe

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"remitgate/internal/common/money"
	"remitgate/internal/gateway"
)

// Transfer is a movement of collected funds from the platform balance to
// a recipient's Connect account.
type Transfer struct {
	ID                  string            `json:"id"`
	Amount              money.Amount      `json:"amount"`
	DestinationID       string            `json:"destination_id"`
	SourceTransactionID string            `json:"source_transaction_id,omitempty"`
	Metadata            map[string]string `json:"metadata,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
}

// TransferParams describes a transfer to create. SourceTransactionID
// links the transfer to the originating charge for audit linkage under
// the separate-charges-and-transfers pattern.
type TransferParams struct {
	Amount              money.Amount
	DestinationID       string
	SourceTransactionID string
	Description         string
	Metadata            map[string]string
}

// CreateTransfer moves already-collected funds to a recipient account.
func (a *Adapter) CreateTransfer(ctx context.Context, params TransferParams) (*Transfer, error) {
	if err := gateway.ValidateAmount(params.Amount); err != nil {
		return nil, err
	}
	if params.DestinationID == "" {
		return nil, gateway.ValidationError("destination account id must not be empty")
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(params.Amount.MinorUnits(), 10))
	form.Set("currency", strings.ToLower(string(params.Amount.Currency)))
	form.Set("destination", params.DestinationID)
	if params.Description != "" {
		form.Set("description", params.Description)
	}
	if params.SourceTransactionID != "" {
		form.Set("source_transaction", params.SourceTransactionID)
		form.Set("metadata[source_transaction]", params.SourceTransactionID)
	}
	for k, v := range params.Metadata {
		form.Set("metadata["+k+"]", v)
	}

	var transfer transferObject
	if err := a.call(ctx, callParams{
		method:     http.MethodPost,
		path:       "/transfers",
		form:       form,
		idempotent: true,
	}, &transfer); err != nil {
		return nil, err
	}

	a.logger.Info("created transfer",
		"transfer_id", transfer.ID,
		"destination", transfer.Destination,
		"amount", transfer.Amount,
	)
	return &Transfer{
		ID:                  transfer.ID,
		Amount:              money.FromMinor(transfer.Amount, money.Currency(strings.ToUpper(transfer.Currency))),
		DestinationID:       transfer.Destination,
		SourceTransactionID: transfer.SourceTransaction,
		Metadata:            transfer.Metadata,
		CreatedAt:           time.Unix(transfer.Created, 0).UTC(),
	}, nil
}

// Reversal is a platform-side clawback of a Transfer.
type Reversal struct {
	ID         string       `json:"id"`
	TransferID string       `json:"transfer_id"`
	Amount     money.Amount `json:"amount"`
	CreatedAt  time.Time    `json:"created_at"`
}

// ReverseTransfer claws back a transfer from a Connect account. A nil
// amount reverses the transfer in full.
func (a *Adapter) ReverseTransfer(ctx context.Context, transferID string, amount *money.Amount, metadata map[string]string) (*Reversal, error) {
	if transferID == "" {
		return nil, gateway.ValidationError("transfer id must not be empty")
	}

	form := url.Values{}
	if amount != nil {
		if err := gateway.ValidateAmount(*amount); err != nil {
			return nil, err
		}
		form.Set("amount", strconv.FormatInt(amount.MinorUnits(), 10))
	}
	for k, v := range metadata {
		form.Set("metadata["+k+"]", v)
	}

	var reversal reversalObject
	if err := a.call(ctx, callParams{
		method:     http.MethodPost,
		path:       "/transfers/" + transferID + "/reversals",
		form:       form,
		idempotent: true,
	}, &reversal); err != nil {
		return nil, err
	}

	a.logger.Info("created transfer reversal",
		"reversal_id", reversal.ID,
		"transfer_id", reversal.Transfer,
		"amount", reversal.Amount,
	)
	return &Reversal{
		ID:         reversal.ID,
		TransferID: reversal.Transfer,
		Amount:     money.FromMinor(reversal.Amount, money.Currency(strings.ToUpper(reversal.Currency))),
		CreatedAt:  time.Unix(reversal.Created, 0).UTC(),
	}, nil
}

// PayoutSpeed selects the payout rail speed.
type PayoutSpeed string

const (
	PayoutStandard PayoutSpeed = "standard"
	PayoutInstant  PayoutSpeed = "instant"
)

// PayoutParams describes a payout from a Connect account balance to the
// recipient's bank. A nil Amount sweeps the full available balance.
type PayoutParams struct {
	ConnectAccountID string
	Amount           *money.Amount
	Currency         money.Currency
	Speed            PayoutSpeed
	Metadata         map[string]string
}

// Payout is an outbound movement to the recipient's external bank.
type Payout struct {
	ID          string       `json:"id"`
	Amount      money.Amount `json:"amount"`
	Speed       PayoutSpeed  `json:"speed"`
	Status      string       `json:"status"`
	Type        string       `json:"type"`
	ArrivalDate time.Time    `json:"arrival_date"`
}

// CreatePayout creates a payout on the Connect account.
func (a *Adapter) CreatePayout(ctx context.Context, params PayoutParams) (*Payout, error) {
	if params.ConnectAccountID == "" {
		return nil, gateway.ValidationError("connect account id must not be empty")
	}
	speed := params.Speed
	if speed == "" {
		speed = PayoutStandard
	}
	if speed != PayoutStandard && speed != PayoutInstant {
		return nil, gateway.ValidationError("payout speed must be standard or instant, got %q", speed)
	}

	form := url.Values{}
	form.Set("method", string(speed))
	if params.Amount != nil {
		if err := gateway.ValidateAmount(*params.Amount); err != nil {
			return nil, err
		}
		form.Set("amount", strconv.FormatInt(params.Amount.MinorUnits(), 10))
		form.Set("currency", strings.ToLower(string(params.Amount.Currency)))
	} else if params.Currency != "" {
		form.Set("currency", strings.ToLower(string(params.Currency)))
	}
	for k, v := range params.Metadata {
		form.Set("metadata["+k+"]", v)
	}

	var payout payoutObject
	if err := a.call(ctx, callParams{
		method:     http.MethodPost,
		path:       "/payouts",
		form:       form,
		account:    params.ConnectAccountID,
		idempotent: true,
	}, &payout); err != nil {
		return nil, err
	}

	a.logger.Info("created payout",
		"payout_id", payout.ID,
		"account_id", params.ConnectAccountID,
		"amount", payout.Amount,
		"method", payout.Method,
	)
	return &Payout{
		ID:          payout.ID,
		Amount:      money.FromMinor(payout.Amount, money.Currency(strings.ToUpper(payout.Currency))),
		Speed:       PayoutSpeed(payout.Method),
		Status:      payout.Status,
		Type:        payout.Type,
		ArrivalDate: time.Unix(payout.ArrivalDate, 0).UTC(),
	}, nil
}

// Balance is the platform account balance by currency.
type Balance struct {
	Available []money.Amount `json:"available"`
	Pending   []money.Amount `json:"pending"`
}

// GetBalance retrieves the platform account balance.
func (a *Adapter) GetBalance(ctx context.Context) (*Balance, error) {
	var balance balanceObject
	if err := a.call(ctx, callParams{
		method: http.MethodGet,
		path:   "/balance",
	}, &balance); err != nil {
		return nil, err
	}

	result := &Balance{}
	for _, b := range balance.Available {
		result.Available = append(result.Available, money.FromMinor(b.Amount, money.Currency(strings.ToUpper(b.Currency))))
	}
	for _, b := range balance.Pending {
		result.Pending = append(result.Pending, money.FromMinor(b.Amount, money.Currency(strings.ToUpper(b.Currency))))
	}
	return result, nil
}

// BalanceTransaction is one ledger line at the processor, used for
// reconciliation against local records.
type BalanceTransaction struct {
	ID          string       `json:"id"`
	Amount      money.Amount `json:"amount"`
	Type        string       `json:"type"`
	Description string       `json:"description,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	AvailableOn time.Time    `json:"available_on"`
}

// ListTransactions lists processor balance transactions for reconciliation.
func (a *Adapter) ListTransactions(ctx context.Context, params gateway.ListParams) ([]BalanceTransaction, bool, error) {
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

	var list balanceTransactionList
	if err := a.call(ctx, callParams{
		method: http.MethodGet,
		path:   "/balance_transactions",
		form:   form,
	}, &list); err != nil {
		return nil, false, err
	}

	results := make([]BalanceTransaction, 0, len(list.Data))
	for _, t := range list.Data {
		results = append(results, BalanceTransaction{
			ID:          t.ID,
			Amount:      money.FromMinor(t.Amount, money.Currency(strings.ToUpper(t.Currency))),
			Type:        t.Type,
			Description: t.Description,
			CreatedAt:   time.Unix(t.Created, 0).UTC(),
			AvailableOn: time.Unix(t.AvailableOn, 0).UTC(),
		})
	}
	return results, list.HasMore, nil
}
