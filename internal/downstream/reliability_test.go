package downstream

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubCaller struct {
	errs  []error
	calls int
	data  []byte
}

func (s *stubCaller) Call(ctx context.Context, service, method, url string, body any) ([]byte, error) {
	s.calls++
	if s.calls <= len(s.errs) && s.errs[s.calls-1] != nil {
		return nil, s.errs[s.calls-1]
	}
	return s.data, nil
}

func transportFault() error {
	return &Fault{Service: "inventory", Class: TransportFault, Detail: "timeout"}
}

func TestRetryPolicy_RetriesWithBackoff(t *testing.T) {
	attempts := 0
	var delays []time.Duration

	policy := RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   10 * time.Millisecond,
		MaxDelay:    50 * time.Millisecond,
		Jitter:      func(d time.Duration) time.Duration { return d },
		Sleep: func(ctx context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		},
		ShouldRetry: func(error) bool { return true },
	}

	err := policy.Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("fail")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if len(delays) != 2 || delays[0] != 10*time.Millisecond || delays[1] != 20*time.Millisecond {
		t.Fatalf("unexpected delays: %v", delays)
	}
}

func TestRetryPolicy_DefaultRetriesTransportOnly(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts: 3,
		Sleep:       func(context.Context, time.Duration) error { return nil },
	}

	attempts := 0
	err := policy.Do(context.Background(), func() error {
		attempts++
		return transportFault()
	})
	if !IsTransport(err) {
		t.Fatalf("expected transport fault, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts for transport fault, got %d", attempts)
	}

	attempts = 0
	clientErr := &Fault{Service: "payment", Class: ClientFault, Status: 402, Detail: "declined"}
	err = policy.Do(context.Background(), func() error {
		attempts++
		return clientErr
	})
	if !errors.Is(err, clientErr) {
		t.Fatalf("expected client fault, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("client faults must not be retried, got %d attempts", attempts)
	}
}

func TestRetryPolicy_DefaultSkipsCircuitOpen(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts: 3,
		Sleep:       func(context.Context, time.Duration) error { return nil },
	}

	attempts := 0
	err := policy.Do(context.Background(), func() error {
		attempts++
		return ErrCircuitOpen
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected circuit open, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("open circuit must not be retried, got %d attempts", attempts)
	}
}

func TestRetryPolicy_ZeroValueSingleAttempt(t *testing.T) {
	attempts := 0
	err := RetryPolicy{}.Do(context.Background(), func() error {
		attempts++
		return transportFault()
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected single attempt by default, got %d", attempts)
	}
}

func TestCircuitBreaker_OpensAndResets(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	calls := 0

	breaker := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:  2,
		ResetTimeout: time.Second,
		Now:          func() time.Time { return now },
	})

	fail := func() error {
		calls++
		return errors.New("fail")
	}

	if err := breaker.Execute(fail); err == nil {
		t.Fatalf("expected failure")
	}
	if err := breaker.Execute(fail); err == nil {
		t.Fatalf("expected failure")
	}

	if err := breaker.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected circuit open error, got %v", err)
	}

	now = now.Add(2 * time.Second)

	if err := breaker.Execute(func() error { return nil }); err != nil {
		t.Fatalf("expected breaker to allow trial, got %v", err)
	}
	if err := breaker.Execute(func() error { return nil }); err != nil {
		t.Fatalf("expected breaker to close, got %v", err)
	}

	if calls != 2 {
		t.Fatalf("expected 2 failed calls, got %d", calls)
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	breaker := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:  1,
		ResetTimeout: time.Second,
		Now:          func() time.Time { return now },
	})

	if err := breaker.Execute(func() error { return errors.New("fail") }); err == nil {
		t.Fatalf("expected failure")
	}

	now = now.Add(2 * time.Second)

	if err := breaker.Execute(func() error { return errors.New("fail again") }); err == nil {
		t.Fatalf("expected trial failure")
	}

	if err := breaker.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected reopened circuit, got %v", err)
	}
}

func TestRateLimiter_WaitsWhenExhausted(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	var waits []time.Duration

	limiter := NewRateLimiter(100*time.Millisecond, 1)
	limiter.now = func() time.Time { return now }
	limiter.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		now = now.Add(d)
		return nil
	}

	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("first wait should pass: %v", err)
	}
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("second wait should pass after refill: %v", err)
	}
	if len(waits) == 0 {
		t.Fatalf("expected the limiter to sleep before refill")
	}
}

func TestReliableCaller_RetriesTransportFaults(t *testing.T) {
	base := &stubCaller{
		errs: []error{transportFault(), transportFault()},
		data: []byte(`{"id":"ok"}`),
	}
	caller := NewReliableCaller(base, nil, nil, RetryPolicy{
		MaxAttempts: 3,
		Sleep:       func(context.Context, time.Duration) error { return nil },
	})

	data, err := caller.Call(context.Background(), "inventory", "POST", "http://x/reserve", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"id":"ok"}` {
		t.Fatalf("unexpected data: %s", data)
	}
	if base.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", base.calls)
	}
}

func TestReliableCaller_PassThroughByDefault(t *testing.T) {
	fault := &Fault{Service: "payment", Class: ServerFault, Status: 500, Detail: "boom"}
	base := &stubCaller{errs: []error{fault}}
	caller := NewReliableCaller(base, nil, nil, RetryPolicy{})

	_, err := caller.Call(context.Background(), "payment", "POST", "http://x/charges", nil)
	if !errors.Is(err, fault) {
		t.Fatalf("expected the fault unchanged, got %v", err)
	}
	if base.calls != 1 {
		t.Fatalf("expected exactly one attempt, got %d", base.calls)
	}
}

func TestReliableCaller_BreakerShortCircuits(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	base := &stubCaller{errs: []error{transportFault(), transportFault(), transportFault()}}
	breaker := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:  1,
		ResetTimeout: time.Minute,
		Now:          func() time.Time { return now },
	})
	caller := NewReliableCaller(base, nil, breaker, RetryPolicy{})

	if _, err := caller.Call(context.Background(), "inventory", "POST", "http://x", nil); err == nil {
		t.Fatalf("expected failure")
	}
	if _, err := caller.Call(context.Background(), "inventory", "POST", "http://x", nil); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected circuit open, got %v", err)
	}
	if base.calls != 1 {
		t.Fatalf("breaker must block the second call, got %d calls", base.calls)
	}
}
