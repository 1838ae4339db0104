package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"
)

var errRemote = errors.New("remote down")

// advance moves the breaker's clock forward without sleeping
func advance(cb *CircuitBreaker, d time.Duration) {
	base := cb.now()
	cb.now = func() time.Time { return base.Add(d) }
}

// step is one action against a breaker in a scenario
type step struct {
	wait    time.Duration // advance the clock before calling
	fail    bool          // fn returns errRemote
	want    error         // error Call must return
	ran     bool          // fn must have run
	state   CircuitState  // state after the call
	failing uint32        // Failures() after the call
}

func TestCircuitBreaker_Scenarios(t *testing.T) {
	cfg := CircuitBreakerConfig{MaxFailures: 3, Timeout: 100 * time.Millisecond}

	tests := []struct {
		name  string
		steps []step
	}{
		{
			name: "successes keep it closed",
			steps: []step{
				{ran: true, state: StateClosed},
				{ran: true, state: StateClosed},
			},
		},
		{
			name: "success clears the failure streak",
			steps: []step{
				{fail: true, want: errRemote, ran: true, state: StateClosed, failing: 1},
				{fail: true, want: errRemote, ran: true, state: StateClosed, failing: 2},
				{ran: true, state: StateClosed},
				{fail: true, want: errRemote, ran: true, state: StateClosed, failing: 1},
			},
		},
		{
			name: "threshold opens and short-circuits",
			steps: []step{
				{fail: true, want: errRemote, ran: true, state: StateClosed, failing: 1},
				{fail: true, want: errRemote, ran: true, state: StateClosed, failing: 2},
				{fail: true, want: errRemote, ran: true, state: StateOpen, failing: 3},
				{want: ErrCircuitOpen, state: StateOpen, failing: 3},
				{wait: 50 * time.Millisecond, want: ErrCircuitOpen, state: StateOpen, failing: 3},
			},
		},
		{
			name: "trial success closes",
			steps: []step{
				{fail: true, want: errRemote, ran: true, state: StateClosed, failing: 1},
				{fail: true, want: errRemote, ran: true, state: StateClosed, failing: 2},
				{fail: true, want: errRemote, ran: true, state: StateOpen, failing: 3},
				{wait: 150 * time.Millisecond, ran: true, state: StateClosed},
			},
		},
		{
			name: "trial failure reopens",
			steps: []step{
				{fail: true, want: errRemote, ran: true, state: StateClosed, failing: 1},
				{fail: true, want: errRemote, ran: true, state: StateClosed, failing: 2},
				{fail: true, want: errRemote, ran: true, state: StateOpen, failing: 3},
				{wait: 150 * time.Millisecond, fail: true, want: errRemote, ran: true, state: StateOpen, failing: 1},
				{want: ErrCircuitOpen, state: StateOpen, failing: 1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := NewCircuitBreaker(cfg)

			for i, s := range tt.steps {
				if s.wait > 0 {
					advance(cb, s.wait)
				}
				ran := false
				err := cb.Call(func() error {
					ran = true
					if s.fail {
						return errRemote
					}
					return nil
				})

				if err != s.want {
					t.Errorf("step %d: err = %v, want %v", i, err, s.want)
				}
				if ran != s.ran {
					t.Errorf("step %d: ran = %v, want %v", i, ran, s.ran)
				}
				if got := cb.State(); got != s.state {
					t.Errorf("step %d: state = %v, want %v", i, got, s.state)
				}
				if got := cb.Failures(); got != s.failing {
					t.Errorf("step %d: failures = %d, want %d", i, got, s.failing)
				}
			}
		})
	}
}

func TestCircuitBreaker_Defaults(t *testing.T) {
	config := DefaultCircuitBreakerConfig()
	if config.MaxFailures != 5 || config.Timeout != 30*time.Second || config.MaxRequestsHalfOpen != 1 {
		t.Errorf("unexpected defaults: %+v", config)
	}

	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 1})
	if cb.config.MaxRequestsHalfOpen != 1 {
		t.Errorf("MaxRequestsHalfOpen = %d, want 1", cb.config.MaxRequestsHalfOpen)
	}
	if cb.State() != StateClosed || cb.Failures() != 0 || cb.Successes() != 0 {
		t.Errorf("new breaker not zeroed: %v %d %d", cb.State(), cb.Failures(), cb.Successes())
	}
}

func TestCircuitBreaker_HalfOpenAdmitsLimitedTrials(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:         2,
		Timeout:             100 * time.Millisecond,
		MaxRequestsHalfOpen: 2,
	})
	_ = cb.Call(func() error { return errRemote })
	_ = cb.Call(func() error { return errRemote })
	advance(cb, 150*time.Millisecond)

	for i := 0; i < 2; i++ {
		if err := cb.acquire(); err != nil {
			t.Fatalf("trial %d rejected: %v", i+1, err)
		}
	}
	if cb.Allow() {
		t.Error("Allow should report the trial slots as taken")
	}
	if err := cb.acquire(); err != ErrTooManyRequests {
		t.Errorf("third trial: err = %v, want ErrTooManyRequests", err)
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	var changes int
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:   1,
		Timeout:       time.Second,
		OnStateChange: func(from, to CircuitState) { changes++ },
	})
	_ = cb.Call(func() error { return errRemote })
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	cb.Reset()

	if cb.State() != StateClosed || cb.Failures() != 0 || cb.Successes() != 0 {
		t.Errorf("after Reset: %v failures=%d successes=%d", cb.State(), cb.Failures(), cb.Successes())
	}
	if changes != 1 {
		t.Errorf("Reset must not notify, got %d notifications", changes)
	}
}

func TestCircuitBreaker_StateString(t *testing.T) {
	tests := map[CircuitState]string{
		StateClosed:       "closed",
		StateOpen:         "open",
		StateHalfOpen:     "half-open",
		CircuitState(999): "unknown",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("CircuitState(%d).String() = %q, want %q", int(state), got, want)
		}
	}
}

func TestCircuitBreaker_ConcurrentCalls(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 10, Timeout: time.Second})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := cb.Call(func() error { return nil }); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
	if cb.Successes() != 100 {
		t.Errorf("successes = %d, want 100", cb.Successes())
	}
}

func TestCircuitBreaker_IsFailureFilter(t *testing.T) {
	permanent := errors.New("permanent")
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures: 2,
		Timeout:     time.Second,
		IsFailure:   func(err error) bool { return !errors.Is(err, permanent) },
	})

	for i := 0; i < 5; i++ {
		_ = cb.Call(func() error { return permanent })
	}

	if cb.State() != StateClosed || cb.Failures() != 0 {
		t.Errorf("ignored errors counted: state=%v failures=%d", cb.State(), cb.Failures())
	}
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures: 1,
		Timeout:     100 * time.Millisecond,
		OnStateChange: func(from, to CircuitState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_ = cb.Call(func() error { return errRemote })
	advance(cb, 150*time.Millisecond)
	_ = cb.Call(func() error { return nil })

	expected := []string{"closed->open", "open->half-open", "half-open->closed"}
	if len(transitions) != len(expected) {
		t.Fatalf("transitions = %v, want %v", transitions, expected)
	}
	for i := range expected {
		if transitions[i] != expected[i] {
			t.Errorf("transition %d = %s, want %s", i, transitions[i], expected[i])
		}
	}
}

func TestCircuitBreaker_Allow(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 1, Timeout: 100 * time.Millisecond})

	if !cb.Allow() {
		t.Error("closed circuit should allow calls")
	}

	_ = cb.Call(func() error { return errRemote })
	if cb.Allow() {
		t.Error("open circuit should reject calls before the cool-down")
	}

	advance(cb, 150*time.Millisecond)
	if !cb.Allow() {
		t.Error("open circuit should admit a trial call after the cool-down")
	}
	if cb.State() != StateOpen {
		t.Errorf("Allow must not change state, got %v", cb.State())
	}
}
