package gateway

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"remitgate/internal/common/money"
)

// Manager is a registry of payment adapters with one designated default.
// It decouples callers from adapter selection: requests name an adapter
// or leave selection to the default, and the manager delegates without
// adding behavior of its own. The registry is normally populated once at
// startup; runtime mutation is guarded by a read-write lock.
type Manager struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	order    []string // registration order, drives default promotion
	def      string
	logger   *slog.Logger
}

// NewManager creates an empty adapter manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		adapters: make(map[string]Adapter),
		logger:   logger,
	}
}

// Register adds an adapter under name. The first adapter ever registered
// becomes the default even without setAsDefault; registering again under
// an existing name replaces the adapter but never steals the default
// unless setAsDefault is set.
func (m *Manager) Register(name string, adapter Adapter, setAsDefault bool) error {
	if strings.TrimSpace(name) == "" {
		return ValidationError("adapter name must be a non-empty string")
	}
	if adapter == nil {
		return ValidationError("adapter must not be nil")
	}

	key := strings.ToLower(name)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.adapters[key]; !exists {
		m.order = append(m.order, key)
	}
	m.adapters[key] = adapter
	m.logger.Info("registered payment adapter", "name", key)

	if setAsDefault || m.def == "" {
		m.def = key
		m.logger.Info("set default payment adapter", "name", key)
	}
	return nil
}

// Get resolves an adapter by name. An empty name resolves to the current
// default. A miss enumerates the registered names in the error message.
func (m *Manager) Get(name string) (Adapter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.get(name)
}

// get requires m.mu held (read or write).
func (m *Manager) get(name string) (Adapter, error) {
	if name == "" {
		if m.def == "" {
			return nil, ValidationError("no default payment adapter configured")
		}
		name = m.def
	}

	key := strings.ToLower(name)
	adapter, ok := m.adapters[key]
	if !ok {
		return nil, ValidationError("payment adapter %q not found, available adapters: %s",
			name, strings.Join(m.order, ", "))
	}
	return adapter, nil
}

// Remove unregisters an adapter. Removing the current default promotes
// the earliest remaining registration, or leaves the registry
// default-less when none remain.
func (m *Manager) Remove(name string) error {
	key := strings.ToLower(name)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.adapters[key]; !ok {
		return ValidationError("payment adapter %q not found", name)
	}

	delete(m.adapters, key)
	for i, n := range m.order {
		if n == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.logger.Info("removed payment adapter", "name", key)

	if m.def == key {
		m.def = ""
		if len(m.order) > 0 {
			m.def = m.order[0]
			m.logger.Info("promoted default payment adapter", "name", m.def)
		}
	}
	return nil
}

// Has reports whether an adapter is registered under name.
func (m *Manager) Has(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.adapters[strings.ToLower(name)]
	return ok
}

// List returns the registered adapter names in registration order and
// the current default ("" when none).
func (m *Manager) List() (names []string, def string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names = make([]string, len(m.order))
	copy(names, m.order)
	return names, m.def
}

// Convenience pass-throughs. Each resolves the adapter (empty
// adapterName means the default) and delegates; error semantics beyond
// resolution belong entirely to the adapter.

// CreatePayment creates a payment on the named or default adapter.
func (m *Manager) CreatePayment(ctx context.Context, adapterName string, amount money.Amount, params PaymentParams) (*PaymentResult, error) {
	adapter, err := m.Get(adapterName)
	if err != nil {
		return nil, err
	}
	return adapter.CreatePayment(ctx, amount, params)
}

// CapturePayment captures a payment on the named or default adapter.
func (m *Manager) CapturePayment(ctx context.Context, adapterName, paymentID string) (*PaymentResult, error) {
	adapter, err := m.Get(adapterName)
	if err != nil {
		return nil, err
	}
	return adapter.CapturePayment(ctx, paymentID)
}

// RefundPayment refunds a payment on the named or default adapter.
func (m *Manager) RefundPayment(ctx context.Context, adapterName, paymentID string, params RefundParams) (*RefundResult, error) {
	adapter, err := m.Get(adapterName)
	if err != nil {
		return nil, err
	}
	return adapter.RefundPayment(ctx, paymentID, params)
}

// CancelPayment cancels a payment on the named or default adapter.
func (m *Manager) CancelPayment(ctx context.Context, adapterName, paymentID, reason string) (*PaymentResult, error) {
	adapter, err := m.Get(adapterName)
	if err != nil {
		return nil, err
	}
	return adapter.CancelPayment(ctx, paymentID, reason)
}

// WebhookVerify verifies a webhook delivery on the named or default adapter.
func (m *Manager) WebhookVerify(ctx context.Context, adapterName string, payload []byte, sigHeader string) (*Event, error) {
	adapter, err := m.Get(adapterName)
	if err != nil {
		return nil, err
	}
	return adapter.WebhookVerify(ctx, payload, sigHeader)
}

// GetPaymentStatus reads payment status on the named or default adapter.
// Adapters without the read capability yield a validation error.
func (m *Manager) GetPaymentStatus(ctx context.Context, adapterName, paymentID string) (*PaymentResult, error) {
	adapter, err := m.Get(adapterName)
	if err != nil {
		return nil, err
	}
	reader, ok := adapter.(StatusReader)
	if !ok {
		return nil, ValidationError("adapter %q does not support payment status reads", adapter.Name())
	}
	return reader.GetPaymentStatus(ctx, paymentID)
}
