package resilience

import (
	"errors"
	"sync"
	"time"
)

// CircuitState is the position of a CircuitBreaker
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

var stateNames = map[CircuitState]string{
	StateClosed:   "closed",
	StateOpen:     "open",
	StateHalfOpen: "half-open",
}

func (s CircuitState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

var (
	// ErrCircuitOpen rejects calls while the remote is considered down
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests rejects calls beyond the half-open trial allowance
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// CircuitBreakerConfig configures a CircuitBreaker
type CircuitBreakerConfig struct {
	// Consecutive counted failures that open a closed circuit
	MaxFailures uint32
	// Cool-down before an open circuit admits trial calls
	Timeout time.Duration
	// Trial calls admitted at once while half-open (default 1)
	MaxRequestsHalfOpen uint32
	// IsFailure decides whether an error counts against the breaker.
	// nil counts every non-nil error.
	IsFailure func(err error) bool
	// OnStateChange runs outside the lock after each transition
	OnStateChange func(from, to CircuitState)
}

// DefaultCircuitBreakerConfig opens after 5 consecutive failures and lets a
// trial call through after 30 seconds
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxFailures:         5,
		Timeout:             30 * time.Second,
		MaxRequestsHalfOpen: 1,
	}
}

type breakerCounts struct {
	failures  uint32
	successes uint32
	trials    uint32 // half-open calls admitted
}

type transition struct {
	from, to CircuitState
}

// CircuitBreaker stops calling a remote that keeps failing
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu      sync.RWMutex
	state   CircuitState
	counts  breakerCounts
	entered time.Time

	now func() time.Time
}

func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.MaxRequestsHalfOpen == 0 {
		config.MaxRequestsHalfOpen = 1
	}
	return &CircuitBreaker{
		config:  config,
		state:   StateClosed,
		entered: time.Now(),
		now:     time.Now,
	}
}

// Call runs fn when the breaker admits it and records the outcome
func (cb *CircuitBreaker) Call(fn func() error) error {
	if err := cb.acquire(); err != nil {
		return err
	}
	err := fn()
	cb.release(err != nil && cb.countsAsFailure(err))
	return err
}

// Allow reports whether Call would currently run fn. It takes no trial slot.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	switch cb.state {
	case StateOpen:
		return cb.cooledDown()
	case StateHalfOpen:
		return cb.counts.trials < cb.config.MaxRequestsHalfOpen
	}
	return true
}

func (cb *CircuitBreaker) cooledDown() bool {
	return cb.now().Sub(cb.entered) > cb.config.Timeout
}

func (cb *CircuitBreaker) acquire() error {
	var fired []transition

	cb.mu.Lock()
	err := cb.admit(&fired)
	cb.mu.Unlock()

	cb.announce(fired)
	return err
}

func (cb *CircuitBreaker) admit(fired *[]transition) error {
	if cb.state == StateOpen {
		if !cb.cooledDown() {
			return ErrCircuitOpen
		}
		cb.moveTo(StateHalfOpen, fired)
	}
	if cb.state == StateHalfOpen {
		if cb.counts.trials >= cb.config.MaxRequestsHalfOpen {
			return ErrTooManyRequests
		}
		cb.counts.trials++
	}
	return nil
}

func (cb *CircuitBreaker) release(failed bool) {
	var fired []transition

	cb.mu.Lock()
	if failed {
		cb.counts.failures++
		if cb.state == StateHalfOpen || cb.counts.failures >= cb.config.MaxFailures {
			cb.moveTo(StateOpen, &fired)
		}
	} else {
		cb.counts.successes++
		switch cb.state {
		case StateHalfOpen:
			cb.moveTo(StateClosed, &fired)
		case StateClosed:
			cb.counts.failures = 0
		}
	}
	cb.mu.Unlock()

	cb.announce(fired)
}

func (cb *CircuitBreaker) countsAsFailure(err error) bool {
	return cb.config.IsFailure == nil || cb.config.IsFailure(err)
}

// moveTo switches state and clears the counters. An opened circuit keeps
// its failure tally for inspection.
func (cb *CircuitBreaker) moveTo(to CircuitState, fired *[]transition) {
	if cb.state == to {
		return
	}
	*fired = append(*fired, transition{from: cb.state, to: to})

	prev := cb.counts
	cb.counts = breakerCounts{}
	if to == StateOpen {
		cb.counts.failures = prev.failures
		cb.counts.successes = prev.successes
	}
	cb.state = to
	cb.entered = cb.now()
}

func (cb *CircuitBreaker) announce(fired []transition) {
	if cb.config.OnStateChange == nil {
		return
	}
	for _, tr := range fired {
		cb.config.OnStateChange(tr.from, tr.to)
	}
}

func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

func (cb *CircuitBreaker) Failures() uint32 {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.counts.failures
}

func (cb *CircuitBreaker) Successes() uint32 {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.counts.successes
}

// Reset closes the circuit and clears the counters without notifying
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.counts = breakerCounts{}
	cb.entered = cb.now()
}
