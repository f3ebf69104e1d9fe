package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		native string
		want   Status
	}{
		{"succeeded", StatusCompleted},
		{"requires_capture", StatusAuthorized},
		{"requires_payment_method", StatusPending},
		{"requires_action", StatusPending},
		{"canceled", StatusCancelled},
		{"cancelled", StatusCancelled},
		{"payment_failed", StatusFailed},
		{"Processing", StatusProcessing},
		{"partially_refunded", StatusPartiallyRefunded},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeStatus(tt.native), "native %q", tt.native)
	}
}

func TestNormalizeStatusUnknownPassesThrough(t *testing.T) {
	assert.Equal(t, Status("weird_new_state"), NormalizeStatus("Weird_New_State"))
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusFailed, StatusCancelled, StatusRefunded} {
		assert.True(t, s.Terminal(), "%s should be terminal", s)
	}
	for _, s := range []Status{StatusPending, StatusProcessing, StatusAuthorized, StatusPartiallyRefunded} {
		assert.False(t, s.Terminal(), "%s should not be terminal", s)
	}
}
