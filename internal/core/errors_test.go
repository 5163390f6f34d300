package core

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		terminal  bool
	}{
		{"nil", nil, false, false},
		{"rate limited", fmt.Errorf("call: %w", ErrRateLimited), true, false},
		{"server error", ErrServerError, true, false},
		{"config error", NewConfigError("evaluation_mode", "unknown mode %q", "bogus"), false, true},
		{"registry error", NewRegistryError("pair_critic", errors.New("missing")), false, true},
		{"parse error", NewParseError("evaluation", 3, "missing label"), false, true},
		{"node wraps parse", NewNodeError("edition_critic", 4, NewParseError("evaluation", 0, "x")), false, true},
		{"retryable exhausted", NewRetryableError(ErrTimeout, time.Second, 3, 3), false, false},
		{"retryable pending", NewRetryableError(ErrTimeout, time.Second, 3, 1), true, false},
		{"unknown", errors.New("boom"), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
			assert.Equal(t, tt.terminal, IsTerminal(tt.err))
		})
	}
}

func TestRetryableErrorCanRetry(t *testing.T) {
	err := NewRetryableError(errors.New("flaky"), time.Second, 3, 1)
	assert.True(t, err.CanRetry())

	err.Attempts = 3
	assert.False(t, err.CanRetry())
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "configuration error in mode: bad", NewConfigError("mode", "bad").Error())
	assert.Equal(t, "configuration error: bad", NewConfigError("", "bad").Error())
	assert.Equal(t, "book parser: line 2: no page separator", NewParseError("book", 2, "no page separator").Error())

	regErr := NewRegistryError("critic", errors.New("not found"))
	assert.Contains(t, regErr.Error(), `"critic"`)
	assert.ErrorIs(t, regErr, ErrRegistryLookup)
}
