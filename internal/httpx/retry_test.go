package httpx

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestExecuteWithRetry_Success(t *testing.T) {
	ctx := context.Background()
	cfg := Config{
		MaxRetries:   3,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
	}

	calls := 0
	err := ExecuteWithRetry(ctx, cfg, func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestExecuteWithRetry_FatalError(t *testing.T) {
	ctx := context.Background()
	cfg := Config{
		MaxRetries:   5,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
	}

	calls := 0
	err := ExecuteWithRetry(ctx, cfg, func() error {
		calls++
		return fmt.Errorf("400 bad request")
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if calls != 1 {
		t.Errorf("expected 1 call (no retry on fatal), got %d", calls)
	}
}

func TestExecuteWithRetry_ContextCancelledDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{
		MaxRetries:   5,
		InitialDelay: 5 * time.Second,
		MaxDelay:     30 * time.Second,
	}

	calls := 0
	start := time.Now()

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := ExecuteWithRetry(ctx, cfg, func() error {
		calls++
		return fmt.Errorf("connection reset")
	})

	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if elapsed > 1*time.Second {
		t.Errorf("expected quick return after context cancel, but took %v", elapsed)
	}
	if calls < 1 {
		t.Errorf("expected at least 1 call, got %d", calls)
	}
}

func TestExecuteWithRetry_CredentialRefreshRunsBeforeEachAttempt(t *testing.T) {
	ctx := context.Background()
	cfg := Config{
		MaxRetries:   3,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
	}

	refreshes := 0
	cfg.CredentialRefresh = func(context.Context) error {
		refreshes++
		return nil
	}

	calls := 0
	err := ExecuteWithRetry(ctx, cfg, func() error {
		calls++
		if calls < 2 {
			return fmt.Errorf("connection reset")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got: %v", err)
	}
	if refreshes != calls {
		t.Errorf("expected a credential refresh before each of the %d attempts, got %d", calls, refreshes)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err      error
		expected ErrorType
	}{
		{nil, ErrorTypeSuccess},
		{context.Canceled, ErrorTypeFatal},
		{context.DeadlineExceeded, ErrorTypeNetwork},
		{fmt.Errorf("403 unauthorized"), ErrorTypeCredential},
		{fmt.Errorf("connection reset by peer"), ErrorTypeNetwork},
		{fmt.Errorf("429 too many requests"), ErrorTypeRetryable},
		{fmt.Errorf("404 not found"), ErrorTypeFatal},
	}

	for _, tt := range tests {
		if got := ClassifyError(tt.err); got != tt.expected {
			t.Errorf("ClassifyError(%v) = %s, want %s", tt.err, ErrorTypeName(got), ErrorTypeName(tt.expected))
		}
	}
}

func TestCalculateBackoff_ZeroAttempt(t *testing.T) {
	if got := CalculateBackoff(0, 10*time.Millisecond, time.Second); got != 0 {
		t.Errorf("expected zero backoff for attempt 0, got %v", got)
	}
}

func TestCalculateBackoff_CapsAtMaxDelay(t *testing.T) {
	for i := 0; i < 20; i++ {
		got := CalculateBackoff(10, 10*time.Millisecond, 50*time.Millisecond)
		if got > 50*time.Millisecond {
			t.Fatalf("backoff %v exceeded max delay", got)
		}
	}
}
