package remit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"remitgate/internal/common/database"
	"remitgate/internal/common/events"
	"remitgate/internal/common/money"
	"remitgate/internal/gateway"
	"remitgate/internal/providers/stripe"
)

// ConnectProvider is the processor surface for sub-account money
// movement. Satisfied by the stripe adapter.
type ConnectProvider interface {
	CreateConnectAccount(ctx context.Context, params stripe.ConnectAccountParams) (*stripe.ConnectAccount, error)
	CheckConnectAccountStatus(ctx context.Context, accountID string) (*stripe.ConnectAccount, error)
	CreateTransfer(ctx context.Context, params stripe.TransferParams) (*stripe.Transfer, error)
	ReverseTransfer(ctx context.Context, transferID string, amount *money.Amount, metadata map[string]string) (*stripe.Reversal, error)
	CreatePayout(ctx context.Context, params stripe.PayoutParams) (*stripe.Payout, error)
	GetBalance(ctx context.Context) (*stripe.Balance, error)
}

// Service orchestrates the remittance lifecycle across the configured
// payment adapters.
type Service struct {
	store     Store
	adapters  *gateway.Manager
	connect   ConnectProvider
	publisher events.EventPublisher
	logger    *slog.Logger
}

// NewService creates a new remittance service. connect may be nil when
// no sub-account provider is configured.
func NewService(store Store, adapters *gateway.Manager, publisher events.EventPublisher, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		adapters:  adapters,
		publisher: publisher,
		logger:    logger,
	}
}

// SetConnectProvider sets the sub-account provider.
func (s *Service) SetConnectProvider(p ConnectProvider) { s.connect = p }

// Adapters returns the adapter manager.
func (s *Service) Adapters() *gateway.Manager { return s.adapters }

// CreatePaymentRequest is the request to collect funds from a sender.
type CreatePaymentRequest struct {
	Adapter        string
	Amount         money.Amount
	CustomerID     string
	Description    string
	IdempotencyKey string
	Metadata       map[string]string
}

// CreatePayment collects funds from the sender via the named adapter.
// Requests with a previously seen idempotency key return the original
// payment.
func (s *Service) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*Payment, error) {
	if req.IdempotencyKey != "" {
		existing, err := s.store.GetPaymentByIdempotencyKey(ctx, req.IdempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !database.IsNotFound(err) {
			return nil, fmt.Errorf("looking up idempotency key: %w", err)
		}
	}

	result, err := s.adapters.CreatePayment(ctx, req.Adapter, req.Amount, gateway.PaymentParams{
		CustomerID:  req.CustomerID,
		Description: req.Description,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return nil, err
	}

	adapterName := req.Adapter
	if adapterName == "" {
		_, adapterName = s.adapters.List()
	}

	now := time.Now().UTC()
	payment := &Payment{
		ID:             ulid.Make().String(),
		Adapter:        adapterName,
		ProviderID:     result.ID,
		CustomerID:     req.CustomerID,
		Amount:         req.Amount,
		RefundedAmount: money.Zero(req.Amount.Currency),
		Status:         fromGatewayStatus(result.Status),
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
		Metadata:       req.Metadata,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.store.CreatePayment(ctx, payment); err != nil {
		if errors.Is(err, database.ErrAlreadyExists) && req.IdempotencyKey != "" {
			return s.store.GetPaymentByIdempotencyKey(ctx, req.IdempotencyKey)
		}
		return nil, fmt.Errorf("persisting payment: %w", err)
	}

	s.logger.Info("payment created",
		"payment_id", payment.ID,
		"provider_id", payment.ProviderID,
		"adapter", payment.Adapter,
		"amount", payment.Amount.String(),
	)

	s.publishTransition(ctx, payment, "", payment.Status)

	return payment, nil
}

// GetPayment retrieves a payment by ID.
func (s *Service) GetPayment(ctx context.Context, id string) (*Payment, error) {
	p, err := s.store.GetPayment(ctx, id)
	if database.IsNotFound(err) {
		return nil, gateway.NotFoundError(id)
	}
	return p, err
}

// ListPayments lists payments, most recent first.
func (s *Service) ListPayments(ctx context.Context, limit int) ([]*Payment, error) {
	return s.store.ListPayments(ctx, limit)
}

// CapturePayment captures an authorized payment.
func (s *Service) CapturePayment(ctx context.Context, id string) (*Payment, error) {
	payment, err := s.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(payment.Status, StatusCaptured) {
		return nil, gateway.ProcessingError(nil,
			"payment %s cannot be captured from status %s", id, payment.Status)
	}

	result, err := s.adapters.CapturePayment(ctx, payment.Adapter, payment.ProviderID)
	if err != nil {
		return nil, err
	}

	return s.transition(ctx, payment, fromGatewayStatus(result.Status))
}

// CancelPayment cancels a payment before capture.
func (s *Service) CancelPayment(ctx context.Context, id, reason string) (*Payment, error) {
	payment, err := s.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(payment.Status, StatusCancelled) {
		return nil, gateway.ProcessingError(nil,
			"payment %s cannot be cancelled from status %s", id, payment.Status)
	}

	if _, err := s.adapters.CancelPayment(ctx, payment.Adapter, payment.ProviderID, reason); err != nil {
		return nil, err
	}

	return s.transition(ctx, payment, StatusCancelled)
}

// RefundPayment refunds a captured payment. A nil amount refunds the
// remaining balance in full.
func (s *Service) RefundPayment(ctx context.Context, id string, amount *money.Amount, reason string) (*Payment, error) {
	payment, err := s.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}

	target := StatusRefunded
	if amount != nil {
		remaining, err := payment.Amount.Sub(payment.RefundedAmount)
		if err != nil {
			return nil, gateway.RefundError(err, "computing remaining balance")
		}
		cmp, err := amount.Compare(remaining)
		if err != nil {
			return nil, gateway.ValidationError("refund currency does not match payment: %v", err)
		}
		if cmp > 0 {
			return nil, gateway.RefundError(nil,
				"refund %s exceeds remaining balance %s", amount.String(), remaining.String())
		}
		if cmp < 0 {
			target = StatusPartiallyRefunded
		}
	}
	if !CanTransition(payment.Status, target) {
		return nil, gateway.RefundError(nil,
			"payment %s cannot be refunded from status %s", id, payment.Status)
	}

	result, err := s.adapters.RefundPayment(ctx, payment.Adapter, payment.ProviderID, gateway.RefundParams{
		Amount: amount,
		Reason: reason,
	})
	if err != nil {
		return nil, err
	}

	if amount != nil {
		refunded, err := payment.RefundedAmount.Add(*amount)
		if err != nil {
			return nil, gateway.RefundError(err, "accumulating refunded amount")
		}
		payment.RefundedAmount = refunded
	} else {
		payment.RefundedAmount = payment.Amount
	}

	s.logger.Info("payment refunded",
		"payment_id", payment.ID,
		"refund_id", result.ID,
		"refunded", payment.RefundedAmount.String(),
	)

	return s.transition(ctx, payment, target)
}

// CreateTransferRequest is the request to move captured funds to a
// recipient sub-account.
type CreateTransferRequest struct {
	PaymentID        string
	ConnectAccountID string
	Amount           money.Amount
	Metadata         map[string]string
}

// CreateTransfer moves captured funds to the recipient's sub-account.
func (s *Service) CreateTransfer(ctx context.Context, req CreateTransferRequest) (*Transfer, error) {
	if s.connect == nil {
		return nil, gateway.ValidationError("no connect provider configured")
	}

	var payment *Payment
	if req.PaymentID != "" {
		var err error
		payment, err = s.GetPayment(ctx, req.PaymentID)
		if err != nil {
			return nil, err
		}
		if !CanTransition(payment.Status, StatusTransferred) {
			return nil, gateway.ProcessingError(nil,
				"payment %s cannot be transferred from status %s", req.PaymentID, payment.Status)
		}
	}

	params := stripe.TransferParams{
		Amount:        req.Amount,
		DestinationID: req.ConnectAccountID,
		Metadata:      req.Metadata,
	}
	if payment != nil {
		params.SourceTransactionID = payment.ProviderID
	}

	result, err := s.connect.CreateTransfer(ctx, params)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	transfer := &Transfer{
		ID:               ulid.Make().String(),
		PaymentID:        req.PaymentID,
		ProviderID:       result.ID,
		ConnectAccountID: req.ConnectAccountID,
		Amount:           req.Amount,
		ReversedAmount:   money.Zero(req.Amount.Currency),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.store.CreateTransfer(ctx, transfer); err != nil {
		return nil, fmt.Errorf("persisting transfer: %w", err)
	}

	if payment != nil {
		payment.TransferID = transfer.ID
		if _, err := s.transition(ctx, payment, StatusTransferred); err != nil {
			return nil, err
		}
	}

	s.publishEvent(ctx, events.EventTransferCreated, "transfer", transfer.ID, events.TransferData{
		TransferID:       transfer.ID,
		PaymentID:        transfer.PaymentID,
		ConnectAccountID: transfer.ConnectAccountID,
		Amount:           transfer.Amount.Value.String(),
		Currency:         string(transfer.Amount.Currency),
	})

	return transfer, nil
}

// ReverseTransfer reverses a transfer. A nil amount reverses in full.
func (s *Service) ReverseTransfer(ctx context.Context, transferID string, amount *money.Amount) (*Transfer, error) {
	if s.connect == nil {
		return nil, gateway.ValidationError("no connect provider configured")
	}

	transfer, err := s.store.GetTransfer(ctx, transferID)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, gateway.NotFoundError(transferID)
		}
		return nil, err
	}
	if transfer.Reversed {
		return nil, gateway.ProcessingError(nil, "transfer %s already reversed", transferID)
	}

	if _, err := s.connect.ReverseTransfer(ctx, transfer.ProviderID, amount, nil); err != nil {
		return nil, err
	}

	if amount != nil {
		reversed, err := transfer.ReversedAmount.Add(*amount)
		if err != nil {
			return nil, gateway.ValidationError("reversal currency does not match transfer: %v", err)
		}
		cmp, err := reversed.Compare(transfer.Amount)
		if err != nil {
			return nil, gateway.ValidationError("reversal currency does not match transfer: %v", err)
		}
		transfer.ReversedAmount = reversed
		transfer.Reversed = cmp >= 0
	} else {
		transfer.ReversedAmount = transfer.Amount
		transfer.Reversed = true
	}

	if err := s.store.UpdateTransfer(ctx, transfer); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.EventTransferReversed, "transfer", transfer.ID, events.TransferData{
		TransferID:       transfer.ID,
		PaymentID:        transfer.PaymentID,
		ConnectAccountID: transfer.ConnectAccountID,
		Amount:           transfer.ReversedAmount.Value.String(),
		Currency:         string(transfer.Amount.Currency),
		Reversed:         transfer.Reversed,
	})

	return transfer, nil
}

// CreatePayoutRequest is the request to pay out a sub-account balance.
type CreatePayoutRequest struct {
	ConnectAccountID string
	Amount           *money.Amount
	Currency         money.Currency
	Speed            string
	Metadata         map[string]string
}

// CreatePayout pays out a recipient's sub-account balance to their
// bank. A nil amount sweeps the full available balance.
func (s *Service) CreatePayout(ctx context.Context, req CreatePayoutRequest) (*Payout, error) {
	if s.connect == nil {
		return nil, gateway.ValidationError("no connect provider configured")
	}

	speed := stripe.PayoutStandard
	if req.Speed != "" {
		speed = stripe.PayoutSpeed(req.Speed)
	}

	result, err := s.connect.CreatePayout(ctx, stripe.PayoutParams{
		ConnectAccountID: req.ConnectAccountID,
		Amount:           req.Amount,
		Currency:         req.Currency,
		Speed:            speed,
		Metadata:         req.Metadata,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	payout := &Payout{
		ID:               ulid.Make().String(),
		ProviderID:       result.ID,
		ConnectAccountID: req.ConnectAccountID,
		Amount:           req.Amount,
		Currency:         string(req.Currency),
		Speed:            string(speed),
		Status:           result.Status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.store.CreatePayout(ctx, payout); err != nil {
		return nil, fmt.Errorf("persisting payout: %w", err)
	}

	data := events.PayoutData{
		PayoutID:         payout.ID,
		ConnectAccountID: payout.ConnectAccountID,
		Currency:         payout.Currency,
		Speed:            payout.Speed,
		Status:           payout.Status,
	}
	if payout.Amount != nil {
		data.Amount = payout.Amount.Value.String()
	}
	s.publishEvent(ctx, events.EventPayoutInitiated, "payout", payout.ID, data)

	return payout, nil
}

// CreateConnectAccount creates a recipient sub-account.
func (s *Service) CreateConnectAccount(ctx context.Context, params stripe.ConnectAccountParams) (*stripe.ConnectAccount, error) {
	if s.connect == nil {
		return nil, gateway.ValidationError("no connect provider configured")
	}

	account, err := s.connect.CreateConnectAccount(ctx, params)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.EventAccountCreated, "account", account.ID, account)

	return account, nil
}

// GetConnectAccountStatus reports a sub-account's onboarding state.
func (s *Service) GetConnectAccountStatus(ctx context.Context, accountID string) (*stripe.ConnectAccount, error) {
	if s.connect == nil {
		return nil, gateway.ValidationError("no connect provider configured")
	}
	return s.connect.CheckConnectAccountStatus(ctx, accountID)
}

// GetBalance reports the platform's pooled balance at the processor.
func (s *Service) GetBalance(ctx context.Context) (*stripe.Balance, error) {
	if s.connect == nil {
		return nil, gateway.ValidationError("no connect provider configured")
	}
	return s.connect.GetBalance(ctx)
}

// transition moves a payment to the target status and publishes the
// transition fact.
func (s *Service) transition(ctx context.Context, payment *Payment, to Status) (*Payment, error) {
	from := payment.Status
	if from == to {
		return payment, nil
	}

	payment.Status = to
	if err := s.store.UpdatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("updating payment: %w", err)
	}

	s.logger.Info("payment transitioned",
		"payment_id", payment.ID,
		"from", from,
		"to", to,
	)

	s.publishTransition(ctx, payment, from, to)

	return payment, nil
}

func transitionEventType(to Status) string {
	switch to {
	case StatusCreated:
		return events.EventPaymentCreated
	case StatusAuthorized:
		return events.EventPaymentAuthorized
	case StatusCaptured:
		return events.EventPaymentCaptured
	case StatusCancelled:
		return events.EventPaymentCancelled
	case StatusFailed:
		return events.EventPaymentFailed
	case StatusRefunded, StatusPartiallyRefunded:
		return events.EventPaymentRefunded
	default:
		return ""
	}
}

func (s *Service) publishTransition(ctx context.Context, payment *Payment, from, to Status) {
	eventType := transitionEventType(to)
	if eventType == "" {
		return
	}
	s.publishEvent(ctx, eventType, "payment", payment.ID, events.PaymentTransitionData{
		PaymentID:  payment.ID,
		ProviderID: payment.ProviderID,
		Adapter:    payment.Adapter,
		Amount:     payment.Amount.Value.String(),
		Currency:   string(payment.Amount.Currency),
		FromStatus: string(from),
		ToStatus:   string(to),
	})
}

// publishEvent publishes a domain event. Publishing failures are logged
// and never fail the money movement.
func (s *Service) publishEvent(ctx context.Context, eventType, aggregateType, aggregateID string, data interface{}) {
	if s.publisher == nil {
		return
	}

	event, err := events.NewEvent(eventType, aggregateType, aggregateID, data)
	if err != nil {
		s.logger.Error("failed to build event", "type", eventType, "error", err)
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish event", "type", eventType, "error", err)
	}
}
