package remit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"remitgate/internal/common/database"
	"remitgate/internal/common/events"
	"remitgate/internal/gateway"
)

// HandleWebhook verifies an incoming provider notification, reconciles
// local state and records the event ID. The record is written only
// after reconciliation succeeds, so a transient store failure leaves
// the event unrecorded and the processor's redelivery repairs it.
// Reconciliation itself is idempotent (transitions to the current
// status are no-ops), so a replay that races the record is harmless;
// an already recorded event is acknowledged without effect.
func (s *Service) HandleWebhook(ctx context.Context, adapterName string, payload []byte, sigHeader string) (*gateway.Event, error) {
	event, err := s.adapters.WebhookVerify(ctx, adapterName, payload, sigHeader)
	if err != nil {
		return nil, err
	}

	if err := s.reconcile(ctx, event); err != nil {
		return nil, err
	}

	rec := &WebhookRecord{
		ProviderEventID: event.ID,
		Adapter:         adapterName,
		EventType:       event.Type,
		ReceivedAt:      time.Now().UTC(),
	}
	if err := s.store.MarkWebhookProcessed(ctx, rec); err != nil {
		if errors.Is(err, database.ErrAlreadyExists) {
			s.logger.Info("webhook replay ignored", "event_id", event.ID, "type", event.Type)
			return event, nil
		}
		return nil, fmt.Errorf("recording webhook: %w", err)
	}

	s.publishEvent(ctx, events.EventWebhookReceived, "webhook", event.ID, events.WebhookReceivedData{
		ProviderEventID: event.ID,
		Adapter:         adapterName,
		EventType:       event.Type,
		Livemode:        event.Livemode,
	})

	return event, nil
}

// reconcile applies a verified provider event to local state. Events
// for unknown objects are accepted without effect.
func (s *Service) reconcile(ctx context.Context, event *gateway.Event) error {
	switch {
	case strings.HasPrefix(event.Type, "payment_intent."):
		return s.reconcilePayment(ctx, event)
	case strings.HasPrefix(event.Type, "transfer."):
		return s.reconcileTransfer(ctx, event)
	case strings.HasPrefix(event.Type, "payout."):
		return s.reconcilePayout(ctx, event)
	default:
		s.logger.Debug("webhook event passed through", "type", event.Type)
		return nil
	}
}

func (s *Service) reconcilePayment(ctx context.Context, event *gateway.Event) error {
	objectID, _ := event.Data["id"].(string)
	if objectID == "" {
		return nil
	}

	payment, err := s.store.GetPaymentByProviderID(ctx, objectID)
	if err != nil {
		if database.IsNotFound(err) {
			s.logger.Debug("webhook for unknown payment", "provider_id", objectID)
			return nil
		}
		return err
	}

	var target Status
	switch event.Type {
	case "payment_intent.amount_capturable_updated":
		target = StatusAuthorized
	case "payment_intent.succeeded":
		target = StatusCaptured
	case "payment_intent.canceled":
		target = StatusCancelled
	case "payment_intent.payment_failed", "payment_intent.failed":
		target = StatusFailed
	default:
		return nil
	}

	if !CanTransition(payment.Status, target) {
		s.logger.Warn("webhook transition skipped",
			"payment_id", payment.ID,
			"from", payment.Status,
			"to", target,
			"event", event.Type,
		)
		return nil
	}

	if target == StatusFailed {
		if msg, ok := event.Data["failure_message"].(string); ok {
			payment.FailureReason = msg
		}
	}

	_, err = s.transition(ctx, payment, target)
	return err
}

func (s *Service) reconcileTransfer(ctx context.Context, event *gateway.Event) error {
	objectID, _ := event.Data["id"].(string)
	if objectID == "" {
		return nil
	}

	transfer, err := s.store.GetTransferByProviderID(ctx, objectID)
	if err != nil {
		if database.IsNotFound(err) {
			return nil
		}
		return err
	}

	if event.Type == "transfer.reversed" && !transfer.Reversed {
		transfer.Reversed = true
		transfer.ReversedAmount = transfer.Amount
		return s.store.UpdateTransfer(ctx, transfer)
	}
	return nil
}

func (s *Service) reconcilePayout(ctx context.Context, event *gateway.Event) error {
	objectID, _ := event.Data["id"].(string)
	if objectID == "" {
		return nil
	}

	payout, err := s.store.GetPayoutByProviderID(ctx, objectID)
	if err != nil {
		if database.IsNotFound(err) {
			return nil
		}
		return err
	}

	var (
		status    string
		eventType string
	)
	switch event.Type {
	case "payout.paid":
		status, eventType = "paid", events.EventPayoutPaid
	case "payout.failed":
		status, eventType = "failed", events.EventPayoutFailed
	case "payout.canceled":
		status = "canceled"
	default:
		return nil
	}

	if payout.Status == status {
		return nil
	}
	payout.Status = status
	if err := s.store.UpdatePayout(ctx, payout); err != nil {
		return err
	}

	// The related payment moves to paid_out once the payout lands.
	if eventType == events.EventPayoutPaid {
		s.markPaymentsPaidOut(ctx, payout)
	}

	if eventType != "" {
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
		s.publishEvent(ctx, eventType, "payout", payout.ID, data)
	}

	return nil
}

// markPaymentsPaidOut advances transferred payments for the payout's
// account. Best effort: a miss here is corrected by the next
// reconciliation pass.
func (s *Service) markPaymentsPaidOut(ctx context.Context, payout *Payout) {
	payments, err := s.store.ListPayments(ctx, 100)
	if err != nil {
		s.logger.Error("listing payments for payout reconciliation", "error", err)
		return
	}
	for _, p := range payments {
		if p.Status != StatusTransferred || p.TransferID == "" {
			continue
		}
		transfer, err := s.store.GetTransfer(ctx, p.TransferID)
		if err != nil || transfer.ConnectAccountID != payout.ConnectAccountID {
			continue
		}
		if _, err := s.transition(ctx, p, StatusPaidOut); err != nil {
			s.logger.Error("marking payment paid out", "payment_id", p.ID, "error", err)
		}
	}
}
