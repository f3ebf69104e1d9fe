package stripe

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"remitgate/internal/gateway"
)

// Customer is a sender profile held at the processor.
type Customer struct {
	ID        string            `json:"id"`
	Email     string            `json:"email"`
	Name      string            `json:"name,omitempty"`
	Phone     string            `json:"phone,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// CustomerParams describes a sender to create or update.
type CustomerParams struct {
	UserID   string
	Email    string
	Name     string
	Phone    string
	Metadata map[string]string
}

// CreateOrUpdateCustomer converges on one Customer per email: repeated
// onboarding calls update the existing record instead of duplicating it.
func (a *Adapter) CreateOrUpdateCustomer(ctx context.Context, params CustomerParams) (*Customer, error) {
	if params.Email == "" {
		return nil, gateway.ValidationError("customer email must not be empty")
	}

	lookup := url.Values{}
	lookup.Set("email", params.Email)
	lookup.Set("limit", "1")

	var existing customerList
	if err := a.call(ctx, callParams{
		method: http.MethodGet,
		path:   "/customers",
		form:   lookup,
	}, &existing); err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("email", params.Email)
	if params.Name != "" {
		form.Set("name", params.Name)
	}
	if params.Phone != "" {
		form.Set("phone", params.Phone)
	}
	form.Set("metadata[user_id]", params.UserID)
	for k, v := range params.Metadata {
		form.Set("metadata["+k+"]", v)
	}

	path := "/customers"
	if len(existing.Data) > 0 {
		path = "/customers/" + existing.Data[0].ID
	}

	var customer customerObject
	if err := a.call(ctx, callParams{
		method:     http.MethodPost,
		path:       path,
		form:       form,
		idempotent: true,
	}, &customer); err != nil {
		return nil, err
	}

	if len(existing.Data) > 0 {
		a.logger.Info("updated customer", "customer_id", customer.ID, "user_id", params.UserID)
	} else {
		a.logger.Info("created customer", "customer_id", customer.ID, "user_id", params.UserID)
	}

	return &Customer{
		ID:        customer.ID,
		Email:     customer.Email,
		Name:      customer.Name,
		Phone:     customer.Phone,
		Metadata:  customer.Metadata,
		CreatedAt: time.Unix(customer.Created, 0).UTC(),
	}, nil
}

// KYCOverride authorizes skipping recipient onboarding. Both fields must
// be set for the bypass to take effect: a bare request without a named
// authorizing principal is a no-op, and vice versa.
type KYCOverride struct {
	BypassRequested bool
	AuthorizedBy    string
}

// Granted reports whether both keys of the override are present.
func (o KYCOverride) Granted() bool {
	return o.BypassRequested && o.AuthorizedBy != ""
}

// ConnectAccountParams describes a recipient sub-account to create.
type ConnectAccountParams struct {
	RecipientID string
	Email       string
	Country     string // ISO 3166-1 alpha-2
	AccountType string // "express" or "custom"
	Override    KYCOverride
	RefreshURL  string
	ReturnURL   string
	Metadata    map[string]string
}

// ConnectAccount is a recipient sub-account with its onboarding state.
type ConnectAccount struct {
	ID             string   `json:"id"`
	Country        string   `json:"country"`
	Type           string   `json:"type"`
	ChargesEnabled bool     `json:"charges_enabled"`
	PayoutsEnabled bool     `json:"payouts_enabled"`
	CurrentlyDue   []string `json:"currently_due,omitempty"`
	EventuallyDue  []string `json:"eventually_due,omitempty"`
	DisabledReason string   `json:"disabled_reason,omitempty"`
	OnboardingURL  string   `json:"onboarding_url,omitempty"`
}

// CreateConnectAccount creates a recipient sub-account. Unless the KYC
// override is fully granted, an onboarding link is generated for the
// recipient to complete verification.
func (a *Adapter) CreateConnectAccount(ctx context.Context, params ConnectAccountParams) (*ConnectAccount, error) {
	if params.Email == "" {
		return nil, gateway.ValidationError("recipient email must not be empty")
	}
	if len(params.Country) != 2 {
		return nil, gateway.ValidationError("country must be a two-letter code, got %q", params.Country)
	}
	accountType := params.AccountType
	if accountType == "" {
		accountType = "express"
	}
	if accountType != "express" && accountType != "custom" {
		return nil, gateway.ValidationError("account type must be express or custom, got %q", accountType)
	}

	form := url.Values{}
	form.Set("type", accountType)
	form.Set("country", strings.ToUpper(params.Country))
	form.Set("email", params.Email)
	form.Set("capabilities[transfers][requested]", "true")
	form.Set("metadata[recipient_id]", params.RecipientID)
	form.Set("metadata[kyc_bypassed]", strconv.FormatBool(params.Override.Granted()))
	if params.Override.Granted() {
		form.Set("metadata[kyc_bypass_authorized_by]", params.Override.AuthorizedBy)
	}
	for k, v := range params.Metadata {
		form.Set("metadata["+k+"]", v)
	}

	var account accountObject
	if err := a.call(ctx, callParams{
		method:     http.MethodPost,
		path:       "/accounts",
		form:       form,
		idempotent: true,
	}, &account); err != nil {
		return nil, err
	}

	result := &ConnectAccount{
		ID:             account.ID,
		Country:        account.Country,
		Type:           accountType,
		ChargesEnabled: account.ChargesEnabled,
		PayoutsEnabled: account.PayoutsEnabled,
	}

	if params.Override.Granted() {
		a.logger.Warn("connect account created with KYC bypass",
			"account_id", account.ID,
			"recipient_id", params.RecipientID,
			"authorized_by", params.Override.AuthorizedBy,
		)
		return result, nil
	}

	linkForm := url.Values{}
	linkForm.Set("account", account.ID)
	linkForm.Set("refresh_url", params.RefreshURL)
	linkForm.Set("return_url", params.ReturnURL)
	linkForm.Set("type", "account_onboarding")

	var link accountLink
	if err := a.call(ctx, callParams{
		method: http.MethodPost,
		path:   "/account_links",
		form:   linkForm,
	}, &link); err != nil {
		return nil, err
	}
	result.OnboardingURL = link.URL

	a.logger.Info("created connect account",
		"account_id", account.ID,
		"recipient_id", params.RecipientID,
		"country", account.Country,
	)
	return result, nil
}

// CheckConnectAccountStatus polls a recipient account's onboarding and
// verification progress.
func (a *Adapter) CheckConnectAccountStatus(ctx context.Context, accountID string) (*ConnectAccount, error) {
	if accountID == "" {
		return nil, gateway.ValidationError("account id must not be empty")
	}

	var account accountObject
	if err := a.call(ctx, callParams{
		method: http.MethodGet,
		path:   "/accounts/" + accountID,
	}, &account); err != nil {
		return nil, err
	}

	result := &ConnectAccount{
		ID:             account.ID,
		Country:        account.Country,
		ChargesEnabled: account.ChargesEnabled,
		PayoutsEnabled: account.PayoutsEnabled,
	}
	if account.Requirements != nil {
		result.CurrentlyDue = account.Requirements.CurrentlyDue
		result.EventuallyDue = account.Requirements.EventuallyDue
		result.DisabledReason = account.Requirements.DisabledReason
	}
	return result, nil
}
