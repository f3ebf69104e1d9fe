package remit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"remitgate/internal/common/database"
	"remitgate/internal/common/money"
)

// Store persists payments, transfers, payouts and webhook dedup marks.
type Store interface {
	CreatePayment(ctx context.Context, p *Payment) error
	GetPayment(ctx context.Context, id string) (*Payment, error)
	GetPaymentByProviderID(ctx context.Context, providerID string) (*Payment, error)
	GetPaymentByIdempotencyKey(ctx context.Context, key string) (*Payment, error)
	UpdatePayment(ctx context.Context, p *Payment) error
	ListPayments(ctx context.Context, limit int) ([]*Payment, error)

	CreateTransfer(ctx context.Context, t *Transfer) error
	GetTransfer(ctx context.Context, id string) (*Transfer, error)
	GetTransferByProviderID(ctx context.Context, providerID string) (*Transfer, error)
	UpdateTransfer(ctx context.Context, t *Transfer) error

	CreatePayout(ctx context.Context, p *Payout) error
	GetPayoutByProviderID(ctx context.Context, providerID string) (*Payout, error)
	UpdatePayout(ctx context.Context, p *Payout) error

	// MarkWebhookProcessed records a provider event ID. It returns
	// database.ErrAlreadyExists when the event was seen before.
	MarkWebhookProcessed(ctx context.Context, rec *WebhookRecord) error
}

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db *database.DB
}

// NewPostgresStore creates a new PostgreSQL store.
func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreatePayment inserts a new payment.
func (s *PostgresStore) CreatePayment(ctx context.Context, p *Payment) error {
	query := `
		INSERT INTO payments (
			id, adapter, provider_id, customer_id,
			amount, currency, refunded_amount, status,
			description, idempotency_key, transfer_id, failure_reason,
			metadata, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
	`

	metadata, _ := json.Marshal(p.Metadata)

	_, err := s.db.Exec(ctx, query,
		p.ID, p.Adapter, nullStr(p.ProviderID), nullStr(p.CustomerID),
		p.Amount.Value, string(p.Amount.Currency), p.RefundedAmount.Value, string(p.Status),
		nullStr(p.Description), nullStr(p.IdempotencyKey), nullStr(p.TransferID), nullStr(p.FailureReason),
		metadata, p.CreatedAt, p.UpdatedAt,
	)
	if database.IsUniqueViolation(err) {
		return database.ErrAlreadyExists
	}
	return err
}

const paymentColumns = `
	id, adapter, provider_id, customer_id,
	amount, currency, refunded_amount, status,
	description, idempotency_key, transfer_id, failure_reason,
	metadata, created_at, updated_at
`

// GetPayment retrieves a payment by ID.
func (s *PostgresStore) GetPayment(ctx context.Context, id string) (*Payment, error) {
	row := s.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	return scanPayment(row)
}

// GetPaymentByProviderID retrieves a payment by its processor reference.
func (s *PostgresStore) GetPaymentByProviderID(ctx context.Context, providerID string) (*Payment, error) {
	row := s.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE provider_id = $1`, providerID)
	return scanPayment(row)
}

// GetPaymentByIdempotencyKey retrieves a payment by idempotency key.
func (s *PostgresStore) GetPaymentByIdempotencyKey(ctx context.Context, key string) (*Payment, error) {
	row := s.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE idempotency_key = $1`, key)
	return scanPayment(row)
}

// UpdatePayment updates a payment's mutable fields.
func (s *PostgresStore) UpdatePayment(ctx context.Context, p *Payment) error {
	query := `
		UPDATE payments SET
			provider_id = $2, refunded_amount = $3, status = $4,
			transfer_id = $5, failure_reason = $6, updated_at = $7
		WHERE id = $1
	`

	p.UpdatedAt = time.Now().UTC()

	tag, err := s.db.Exec(ctx, query,
		p.ID, nullStr(p.ProviderID), p.RefundedAmount.Value, string(p.Status),
		nullStr(p.TransferID), nullStr(p.FailureReason), p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

// ListPayments lists payments, most recent first.
func (s *PostgresStore) ListPayments(ctx context.Context, limit int) ([]*Payment, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+paymentColumns+` FROM payments ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func scanPayment(row pgx.Row) (*Payment, error) {
	var (
		p                                                  Payment
		providerID, customerID                             *string
		description, idempotencyKey, transferID, failure   *string
		amount, refunded                                   decimal.Decimal
		currency                                           string
		metadata                                           []byte
	)

	err := row.Scan(
		&p.ID, &p.Adapter, &providerID, &customerID,
		&amount, &currency, &refunded, &p.Status,
		&description, &idempotencyKey, &transferID, &failure,
		&metadata, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, database.ErrNotFound
		}
		return nil, err
	}

	p.Amount = money.Amount{Value: amount, Currency: money.Currency(currency)}
	p.RefundedAmount = money.Amount{Value: refunded, Currency: money.Currency(currency)}
	p.ProviderID = deref(providerID)
	p.CustomerID = deref(customerID)
	p.Description = deref(description)
	p.IdempotencyKey = deref(idempotencyKey)
	p.TransferID = deref(transferID)
	p.FailureReason = deref(failure)

	if len(metadata) > 0 {
		_ = json.Unmarshal(metadata, &p.Metadata)
	}

	return &p, nil
}

// CreateTransfer inserts a new transfer.
func (s *PostgresStore) CreateTransfer(ctx context.Context, t *Transfer) error {
	query := `
		INSERT INTO transfers (
			id, payment_id, provider_id, connect_account_id,
			amount, currency, reversed, reversed_amount,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.db.Exec(ctx, query,
		t.ID, nullStr(t.PaymentID), t.ProviderID, t.ConnectAccountID,
		t.Amount.Value, string(t.Amount.Currency), t.Reversed, t.ReversedAmount.Value,
		t.CreatedAt, t.UpdatedAt,
	)
	if database.IsUniqueViolation(err) {
		return database.ErrAlreadyExists
	}
	return err
}

const transferColumns = `
	id, payment_id, provider_id, connect_account_id,
	amount, currency, reversed, reversed_amount,
	created_at, updated_at
`

// GetTransfer retrieves a transfer by ID.
func (s *PostgresStore) GetTransfer(ctx context.Context, id string) (*Transfer, error) {
	row := s.db.QueryRow(ctx, `SELECT `+transferColumns+` FROM transfers WHERE id = $1`, id)
	return scanTransfer(row)
}

// GetTransferByProviderID retrieves a transfer by its processor reference.
func (s *PostgresStore) GetTransferByProviderID(ctx context.Context, providerID string) (*Transfer, error) {
	row := s.db.QueryRow(ctx, `SELECT `+transferColumns+` FROM transfers WHERE provider_id = $1`, providerID)
	return scanTransfer(row)
}

// UpdateTransfer updates a transfer's reversal state.
func (s *PostgresStore) UpdateTransfer(ctx context.Context, t *Transfer) error {
	query := `
		UPDATE transfers SET reversed = $2, reversed_amount = $3, updated_at = $4
		WHERE id = $1
	`

	t.UpdatedAt = time.Now().UTC()

	tag, err := s.db.Exec(ctx, query, t.ID, t.Reversed, t.ReversedAmount.Value, t.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

func scanTransfer(row pgx.Row) (*Transfer, error) {
	var (
		t                Transfer
		paymentID        *string
		amount, reversed decimal.Decimal
		currency         string
	)

	err := row.Scan(
		&t.ID, &paymentID, &t.ProviderID, &t.ConnectAccountID,
		&amount, &currency, &t.Reversed, &reversed,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, database.ErrNotFound
		}
		return nil, err
	}

	t.PaymentID = deref(paymentID)
	t.Amount = money.Amount{Value: amount, Currency: money.Currency(currency)}
	t.ReversedAmount = money.Amount{Value: reversed, Currency: money.Currency(currency)}

	return &t, nil
}

// CreatePayout inserts a new payout.
func (s *PostgresStore) CreatePayout(ctx context.Context, p *Payout) error {
	query := `
		INSERT INTO payouts (
			id, provider_id, connect_account_id,
			amount, currency, speed, status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	var amount *decimal.Decimal
	if p.Amount != nil {
		amount = &p.Amount.Value
	}

	_, err := s.db.Exec(ctx, query,
		p.ID, p.ProviderID, p.ConnectAccountID,
		amount, p.Currency, p.Speed, p.Status,
		p.CreatedAt, p.UpdatedAt,
	)
	if database.IsUniqueViolation(err) {
		return database.ErrAlreadyExists
	}
	return err
}

// GetPayoutByProviderID retrieves a payout by its processor reference.
func (s *PostgresStore) GetPayoutByProviderID(ctx context.Context, providerID string) (*Payout, error) {
	query := `
		SELECT id, provider_id, connect_account_id,
			   amount, currency, speed, status,
			   created_at, updated_at
		FROM payouts WHERE provider_id = $1
	`

	var (
		p      Payout
		amount *decimal.Decimal
	)
	err := s.db.QueryRow(ctx, query, providerID).Scan(
		&p.ID, &p.ProviderID, &p.ConnectAccountID,
		&amount, &p.Currency, &p.Speed, &p.Status,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, database.ErrNotFound
		}
		return nil, err
	}

	if amount != nil {
		a := money.Amount{Value: *amount, Currency: money.Currency(p.Currency)}
		p.Amount = &a
	}

	return &p, nil
}

// UpdatePayout updates a payout's status.
func (s *PostgresStore) UpdatePayout(ctx context.Context, p *Payout) error {
	p.UpdatedAt = time.Now().UTC()

	tag, err := s.db.Exec(ctx,
		`UPDATE payouts SET status = $2, updated_at = $3 WHERE id = $1`,
		p.ID, p.Status, p.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

// MarkWebhookProcessed records a provider event for dedup.
func (s *PostgresStore) MarkWebhookProcessed(ctx context.Context, rec *WebhookRecord) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO webhook_events (provider_event_id, adapter, event_type, received_at)
		 VALUES ($1, $2, $3, $4)`,
		rec.ProviderEventID, rec.Adapter, rec.EventType, rec.ReceivedAt)
	if database.IsUniqueViolation(err) {
		return database.ErrAlreadyExists
	}
	return err
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
