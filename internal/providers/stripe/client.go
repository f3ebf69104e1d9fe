// Package stripe provides the production payment adapter for the Stripe
// network: sender-side PaymentIntents, Connect accounts for recipients,
// separate charges and transfers, payouts, refunds and reversals, and
// signed webhook interpretation.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"remitgate/internal/gateway"
)

const apiVersion = "2024-06-20"

// Config holds Stripe adapter configuration.
type Config struct {
	APIKey            string        `envconfig:"STRIPE_API_KEY"`
	WebhookSecret     string        `envconfig:"STRIPE_WEBHOOK_SECRET"`
	PlatformAccountID string        `envconfig:"STRIPE_PLATFORM_ACCOUNT"`
	BaseURL           string        `envconfig:"STRIPE_BASE_URL" default:"https://api.stripe.com/v1"`
	Timeout           time.Duration `envconfig:"STRIPE_TIMEOUT" default:"30s"`

	// SignatureTolerance bounds webhook timestamp skew.
	SignatureTolerance time.Duration `envconfig:"STRIPE_SIGNATURE_TOLERANCE" default:"5m"`
}

// Adapter implements the gateway contract against the Stripe API.
type Adapter struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a Stripe adapter. Credentials are opaque strings; empty
// ones fail construction rather than the first request.
func New(cfg Config, logger *slog.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("stripe: api key is required")
	}
	if strings.TrimSpace(cfg.WebhookSecret) == "" {
		return nil, fmt.Errorf("stripe: webhook secret is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.stripe.com/v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.SignatureTolerance <= 0 {
		cfg.SignatureTolerance = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}, nil
}

// Name implements gateway.Adapter.
func (a *Adapter) Name() string {
	return "stripe"
}

// apiError is the error envelope returned by the Stripe API.
type apiError struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	Message     string `json:"message"`
	Param       string `json:"param"`
	DeclineCode string `json:"decline_code"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

// callParams describes one API call.
type callParams struct {
	method string
	path   string
	form   url.Values
	// account routes the call to a Connect account via Stripe-Account.
	account string
	// idempotent attaches an Idempotency-Key to the request.
	idempotent bool
}

// call performs one bounded API call, retrying once on throttling or a
// server error, and decodes the response into out. Failures come back as
// gateway errors; the Stripe error body is carried as the wrapped cause.
func (a *Adapter) call(ctx context.Context, p callParams, out any) error {
	var body io.Reader
	path := a.config.BaseURL + p.path
	if p.method == http.MethodGet {
		if len(p.form) > 0 {
			path += "?" + p.form.Encode()
		}
	} else if p.form != nil {
		body = strings.NewReader(p.form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, p.method, path, body)
	if err != nil {
		return gateway.ProcessingError(err, "building %s %s request", p.method, p.path)
	}

	req.Header.Set("Authorization", "Bearer "+a.config.APIKey)
	req.Header.Set("Stripe-Version", apiVersion)
	if p.method != http.MethodGet {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if p.account != "" {
		req.Header.Set("Stripe-Account", p.account)
	}
	if p.idempotent {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}

	resp, err := a.doWithRetry(ctx, req, p)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return gateway.ProcessingError(err, "reading %s response", p.path)
	}

	if resp.StatusCode >= 400 {
		var envelope errorEnvelope
		_ = json.Unmarshal(respBody, &envelope)
		return a.mapAPIError(resp.StatusCode, envelope.Error, p.path)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return gateway.ProcessingError(err, "decoding %s response", p.path)
		}
	}
	return nil
}

// doWithRetry sends the request, retrying a single time on 429 and 5xx.
// Request bodies are form strings, so they can be rebuilt for the retry.
func (a *Adapter) doWithRetry(ctx context.Context, req *http.Request, p callParams) (*http.Response, error) {
	resp, err := a.httpClient.Do(req)
	if err == nil && resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
		return resp, nil
	}
	if resp != nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}

	select {
	case <-ctx.Done():
		return nil, gateway.ProcessingError(ctx.Err(), "%s %s cancelled", p.method, p.path)
	case <-time.After(500 * time.Millisecond):
	}

	retry := req.Clone(ctx)
	if p.method != http.MethodGet && p.form != nil {
		retry.Body = io.NopCloser(strings.NewReader(p.form.Encode()))
	}
	resp, err = a.httpClient.Do(retry)
	if err != nil {
		return nil, gateway.ProcessingError(err, "%s %s failed", p.method, p.path)
	}
	return resp, nil
}

// mapAPIError translates a Stripe failure into the gateway taxonomy.
func (a *Adapter) mapAPIError(status int, e apiError, path string) error {
	cause := fmt.Errorf("stripe %s: %s (type=%s code=%s decline_code=%s)",
		path, e.Message, e.Type, e.Code, e.DeclineCode)

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return gateway.AuthenticationError(cause, "stripe rejected credentials")
	case status == http.StatusNotFound || e.Code == "resource_missing":
		return gateway.NotFoundError("no such resource at %s", path)
	case status == http.StatusTooManyRequests:
		return gateway.RateLimitError(cause, "stripe throttled the request")
	case e.DeclineCode == "insufficient_funds":
		return gateway.InsufficientFundsError(cause, "payment declined for insufficient funds")
	case status == http.StatusPaymentRequired, e.Type == "card_error":
		return gateway.InsufficientFundsError(cause, "card declined: %s", e.Code)
	case status == http.StatusBadRequest:
		return gateway.ValidationError("invalid request: %s", e.Message)
	default:
		return gateway.ProcessingError(cause, "stripe request failed with status %d", status)
	}
}
