package circuitbreaker

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(threshold int, clock *fakeClock) *CircuitBreaker {
	return New(Config{
		Name:            "test",
		Threshold:       threshold,
		Cooldown:        time.Minute,
		HalfOpenTimeout: 10 * time.Second,
		Now:             clock.Now,
	})
}

func trip(cb *CircuitBreaker) {
	for i := 0; i < cb.threshold; i++ {
		cb.RecordFailure()
	}
}

func TestNew(t *testing.T) {
	cb := New(Config{
		Name:      "catalog",
		Threshold: 3,
		Cooldown:  10 * time.Second,
	})

	if cb.name != "catalog" {
		t.Errorf("Expected name 'catalog', got %q", cb.name)
	}
	if cb.threshold != 3 {
		t.Errorf("Expected threshold 3, got %d", cb.threshold)
	}
	if cb.cooldown != 10*time.Second {
		t.Errorf("Expected cooldown 10s, got %v", cb.cooldown)
	}
	if cb.state != StateClosed {
		t.Errorf("Expected initial state CLOSED, got %s", cb.state)
	}
}

func TestNew_Defaults(t *testing.T) {
	cb := New(Config{})

	if cb.threshold != 5 {
		t.Errorf("Expected default threshold 5, got %d", cb.threshold)
	}
	if cb.cooldown != 30*time.Second {
		t.Errorf("Expected default cooldown 30s, got %v", cb.cooldown)
	}
	if cb.halfOpenTimeout != 15*time.Second {
		t.Errorf("Expected default halfOpenTimeout 15s, got %v", cb.halfOpenTimeout)
	}
	if cb.name != "default" {
		t.Errorf("Expected default name 'default', got %q", cb.name)
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := newTestBreaker(3, newFakeClock())

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != StateClosed {
		t.Errorf("Expected CLOSED after 2 failures, got %s", cb.State())
	}

	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Errorf("Expected OPEN after 3 failures, got %s", cb.State())
	}
	if cb.Allow() {
		t.Error("Expected Allow() to return false in OPEN state")
	}
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := newTestBreaker(3, newFakeClock())

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()

	if cb.Failures() != 0 {
		t.Errorf("Expected 0 failures after success, got %d", cb.Failures())
	}
}

func TestCircuitBreaker_HalfOpenTransitions(t *testing.T) {
	tests := []struct {
		name     string
		outcome  func(cb *CircuitBreaker)
		expected State
	}{
		{"probe succeeds", (*CircuitBreaker).RecordSuccess, StateClosed},
		{"probe fails", (*CircuitBreaker).RecordFailure, StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			cb := newTestBreaker(2, clock)
			trip(cb)

			clock.Advance(59 * time.Second)
			if cb.Allow() {
				t.Fatal("Expected request blocked before cooldown")
			}

			clock.Advance(time.Second)
			if !cb.Allow() {
				t.Fatal("Expected probe allowed after cooldown")
			}
			if cb.State() != StateHalfOpen {
				t.Fatalf("Expected HALF-OPEN, got %s", cb.State())
			}
			if cb.Allow() {
				t.Error("Expected second request blocked while probing")
			}

			tt.outcome(cb)
			if cb.State() != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, cb.State())
			}
		})
	}
}

func TestCircuitBreaker_HalfOpenTimeout(t *testing.T) {
	clock := newFakeClock()
	cb := newTestBreaker(2, clock)
	trip(cb)

	clock.Advance(time.Minute)
	cb.Allow()

	if got := cb.TimeUntilRetry(); got != 10*time.Second {
		t.Errorf("Expected 10s probe window, got %v", got)
	}

	clock.Advance(10 * time.Second)
	if cb.Allow() {
		t.Error("Expected Allow() false once the probe timed out")
	}
	if cb.State() != StateOpen {
		t.Errorf("Expected OPEN after probe timeout, got %s", cb.State())
	}
	if got := cb.TimeUntilRetry(); got != time.Minute {
		t.Errorf("Expected a fresh cooldown, got %v", got)
	}
}

func TestCircuitBreaker_TimeUntilRetry(t *testing.T) {
	clock := newFakeClock()
	cb := newTestBreaker(2, clock)

	if cb.TimeUntilRetry() != 0 {
		t.Errorf("Expected 0 in CLOSED state, got %v", cb.TimeUntilRetry())
	}

	trip(cb)
	clock.Advance(20 * time.Second)
	if got := cb.TimeUntilRetry(); got != 40*time.Second {
		t.Errorf("Expected 40s remaining, got %v", got)
	}

	clock.Advance(time.Hour)
	if cb.TimeUntilRetry() != 0 {
		t.Errorf("Expected 0 after cooldown, got %v", cb.TimeUntilRetry())
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	clock := newFakeClock()
	cb := newTestBreaker(2, clock)
	trip(cb)
	clock.Advance(time.Minute)
	cb.Allow()

	cb.Reset()

	if cb.State() != StateClosed || cb.Failures() != 0 {
		t.Errorf("Expected CLOSED with 0 failures, got %s with %d", cb.State(), cb.Failures())
	}
	if !cb.halfOpenStart.IsZero() {
		t.Error("Expected halfOpenStart cleared after Reset()")
	}
	if !cb.Allow() {
		t.Error("Expected Allow() after reset")
	}
}

func TestCircuitBreaker_Execute(t *testing.T) {
	errNotFound := errors.New("not found")
	errUpstream := errors.New("bad gateway")
	ignore := func(err error) bool { return errors.Is(err, errNotFound) }

	cb := newTestBreaker(2, newFakeClock())

	if err := cb.Execute(func() error { return errNotFound }, ignore); !errors.Is(err, errNotFound) {
		t.Errorf("Expected ignored error returned, got %v", err)
	}
	if cb.Failures() != 0 {
		t.Errorf("Expected ignored error not counted, got %d failures", cb.Failures())
	}

	cb.Execute(func() error { return errUpstream }, ignore)
	cb.Execute(func() error { return errUpstream }, ignore)
	if !cb.IsOpen() {
		t.Fatal("Expected circuit open after upstream failures")
	}

	called := false
	err := cb.Execute(func() error { called = true; return nil }, ignore)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Error("Expected fn not called while open")
	}
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	clock := newFakeClock()
	var transitions []string
	cb := New(Config{
		Name:      "catalog",
		Threshold: 1,
		Cooldown:  time.Second,
		Now:       clock.Now,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, from.String()+">"+to.String())
		},
	})

	cb.RecordFailure()
	clock.Advance(time.Second)
	cb.Allow()
	cb.RecordSuccess()
	cb.RecordSuccess()

	expected := []string{"CLOSED>OPEN", "OPEN>HALF-OPEN", "HALF-OPEN>CLOSED"}
	if len(transitions) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, transitions)
	}
	for i := range expected {
		if transitions[i] != expected[i] {
			t.Errorf("Transition %d: expected %s, got %s", i, expected[i], transitions[i])
		}
	}
}

func TestCircuitBreaker_Snapshot(t *testing.T) {
	cb := newTestBreaker(3, newFakeClock())
	cb.RecordFailure()
	cb.RecordFailure()

	snap := cb.Snapshot()
	if snap.State != "CLOSED" || snap.Failures != 2 || snap.Threshold != 3 {
		t.Errorf("Unexpected snapshot: %+v", snap)
	}
	if snap.LastFailure.IsZero() {
		t.Error("Expected non-zero last failure")
	}
}

func TestCircuitBreaker_StateString(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateClosed, "CLOSED"},
		{StateOpen, "OPEN"},
		{StateHalfOpen, "HALF-OPEN"},
		{State(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if tt.state.String() != tt.expected {
			t.Errorf("Expected %q, got %q", tt.expected, tt.state.String())
		}
	}
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	cb := New(Config{Threshold: 100, Cooldown: time.Minute})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				cb.Allow()
				cb.RecordFailure()
				cb.RecordSuccess()
				cb.Snapshot()
			}
		}()
	}
	wg.Wait()

	state := cb.State()
	if state != StateClosed && state != StateOpen && state != StateHalfOpen {
		t.Errorf("Invalid state after concurrent access: %v", state)
	}
}
