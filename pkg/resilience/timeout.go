package resilience

import (
	"context"
	"fmt"
	"time"
)

// TimeoutConfig defines the timeout hierarchy for outbound remote calls
//
// Timeout Hierarchy (from outermost to innermost):
//
//	Command (150s - remotectl invocation)
//	  ↓
//	Call (120s - all attempts of one logical request, including backoff)
//	  ↓
//	Attempt (30s - one TLS exchange)
//	  ↓
//	Connect (10s - TCP dial + TLS handshake)
//
// Each layer must finish before its parent gives up, and Call must cover
// every attempt plus the backoff waits between them (see ValidateRetries).
type TimeoutConfig struct {
	Command time.Duration
	Call    time.Duration
	Attempt time.Duration
	Connect time.Duration
}

// DefaultTimeoutConfig returns production timeout values
func DefaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		Command: 150 * time.Second,
		Call:    120 * time.Second,
		Attempt: 30 * time.Second,
		Connect: 10 * time.Second,
	}
}

// Headroom added when Call and Command are derived
const (
	callHeadroom    = time.Second
	commandHeadroom = 30 * time.Second
)

// NewTimeoutConfig derives Call from the retry budget of attempts and
// Command from Call. attempt bounds one exchange, connect its dial and handshake.
func NewTimeoutConfig(attempt, connect time.Duration, attempts int, backoff BackoffStrategy) *TimeoutConfig {
	tc := &TimeoutConfig{
		Attempt: attempt,
		Connect: connect,
	}
	tc.Call = tc.RetryBudget(attempts, backoff) + callHeadroom
	tc.Command = tc.Call + commandHeadroom
	return tc
}

// TestTimeoutConfig returns shorter timeouts for testing
func TestTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		Command: 5 * time.Second,
		Call:    4 * time.Second,
		Attempt: 2 * time.Second,
		Connect: 1 * time.Second,
	}
}

// Validate checks that every layer is positive and strictly inside its parent
func (tc *TimeoutConfig) Validate() error {
	layers := []struct {
		name  string
		value time.Duration
	}{
		{"command", tc.Command},
		{"call", tc.Call},
		{"attempt", tc.Attempt},
		{"connect", tc.Connect},
	}
	for i, l := range layers {
		if l.value <= 0 {
			return fmt.Errorf("%s timeout must be positive, got %v", l.name, l.value)
		}
		if i > 0 && l.value >= layers[i-1].value {
			return fmt.Errorf("%s timeout (%v) must be less than %s timeout (%v)",
				l.name, l.value, layers[i-1].name, layers[i-1].value)
		}
	}
	return nil
}

// CommandContext bounds a whole CLI invocation
func (tc *TimeoutConfig) CommandContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.Command)
}

// CallContext bounds one logical request across all of its attempts
func (tc *TimeoutConfig) CallContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.Call)
}

// AttemptContext bounds a single exchange
func (tc *TimeoutConfig) AttemptContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.Attempt)
}

// RetryBudget is the worst case for attempts exchanges of Attempt each plus
// the backoff waits between them
func (tc *TimeoutConfig) RetryBudget(attempts int, backoff BackoffStrategy) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	budget := time.Duration(attempts) * tc.Attempt
	if backoff == nil {
		return budget
	}
	for retry := 0; retry < attempts-1; retry++ {
		budget += upperDelay(backoff, retry)
	}
	return budget
}

// ValidateRetries runs Validate and checks that Call covers RetryBudget
func (tc *TimeoutConfig) ValidateRetries(attempts int, backoff BackoffStrategy) error {
	if err := tc.Validate(); err != nil {
		return err
	}
	if budget := tc.RetryBudget(attempts, backoff); budget > tc.Call {
		return fmt.Errorf("call timeout (%v) cannot cover %d attempts of %v plus backoff (needs %v)",
			tc.Call, attempts, tc.Attempt, budget)
	}
	return nil
}

// boundedBackoff is implemented by strategies whose delay is randomized
type boundedBackoff interface {
	MaxNextDelay(attempt int) time.Duration
}

func upperDelay(b BackoffStrategy, attempt int) time.Duration {
	if bb, ok := b.(boundedBackoff); ok {
		return bb.MaxNextDelay(attempt)
	}
	return b.NextDelay(attempt)
}
