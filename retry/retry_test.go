package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	x402 "github.com/devcode8/fetch.ai-X-x402-integration"
)

func TestWithRetry(t *testing.T) {
	t.Run("succeeds on first attempt", func(t *testing.T) {
		calls := 0
		result, err := WithRetry(context.Background(), DefaultConfig,
			func(error) bool { return true },
			func() (string, error) {
				calls++
				return "success", nil
			},
		)

		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		if result != "success" {
			t.Errorf("expected 'success', got %s", result)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("retries on retryable error", func(t *testing.T) {
		calls := 0
		config := Config{
			MaxAttempts:  5,
			InitialDelay: 1 * time.Millisecond,
			MaxDelay:     10 * time.Millisecond,
			Multiplier:   2.0,
		}
		result, err := WithRetry(context.Background(), config,
			func(error) bool { return true },
			func() (string, error) {
				calls++
				if calls < 3 {
					return "", errors.New("temporary error")
				}
				return "success", nil
			},
		)

		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		if result != "success" {
			t.Errorf("expected 'success', got %s", result)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
	})

	t.Run("respects max attempts", func(t *testing.T) {
		calls := 0
		config := Config{
			MaxAttempts:  2,
			InitialDelay: 1 * time.Millisecond,
			MaxDelay:     10 * time.Millisecond,
			Multiplier:   2.0,
		}

		_, err := WithRetry(context.Background(), config,
			func(error) bool { return true },
			func() (string, error) {
				calls++
				return "", errors.New("persistent error")
			},
		)

		if err == nil {
			t.Error("expected error, got nil")
		}
		if calls != 2 {
			t.Errorf("expected 2 calls, got %d", calls)
		}
	})

	t.Run("does not retry non-retryable errors", func(t *testing.T) {
		calls := 0
		_, err := WithLedgerRetry(context.Background(), func() (string, error) {
			calls++
			return "", x402.ErrInsufficientFunds
		})

		if !errors.Is(err, x402.ErrInsufficientFunds) {
			t.Errorf("expected ErrInsufficientFunds, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call (no retries), got %d", calls)
		}
	})

	t.Run("respects context cancellation before attempt", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		calls := 0
		_, err := WithLedgerRetry(ctx, func() (string, error) {
			calls++
			return "", x402.ErrLedgerUnavailable
		})

		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if calls != 0 {
			t.Errorf("expected 0 calls (canceled before first attempt), got %d", calls)
		}
	})

	t.Run("respects context cancellation during retry delay", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		calls := 0
		config := Config{
			MaxAttempts:  10,
			InitialDelay: 100 * time.Millisecond, // Longer than context timeout
			MaxDelay:     1 * time.Second,
			Multiplier:   2.0,
		}

		_, err := WithRetry(ctx, config,
			func(error) bool { return true },
			func() (string, error) {
				calls++
				return "", errors.New("error")
			},
		)

		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected context.DeadlineExceeded, got %v", err)
		}
		if calls == 0 || calls >= 10 {
			t.Errorf("expected a partial run cut short by the context, got %d calls", calls)
		}
	})

	t.Run("exponential backoff increases delay", func(t *testing.T) {
		calls := 0
		config := Config{
			MaxAttempts:  3,
			InitialDelay: 10 * time.Millisecond,
			MaxDelay:     100 * time.Millisecond,
			Multiplier:   2.0,
		}

		start := time.Now()
		_, err := WithRetry(context.Background(), config,
			func(error) bool { return true },
			func() (string, error) {
				calls++
				return "", errors.New("error")
			},
		)
		elapsed := time.Since(start)

		if err == nil {
			t.Error("expected error, got nil")
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}

		// Expected delays: 10ms + 20ms = 30ms minimum
		if elapsed < 30*time.Millisecond {
			t.Errorf("expected at least 30ms elapsed for exponential backoff, got %v", elapsed)
		}
	})
}

func TestLedgerTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"ledger unavailable", x402.ErrLedgerUnavailable, true},
		{"wrapped ledger unavailable", fmt.Errorf("balance: %w", x402.ErrLedgerUnavailable), true},
		{"insufficient funds", x402.ErrInsufficientFunds, false},
		{"invalid input", x402.ErrInvalidInput, false},
		{"arbitrary error", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LedgerTransient(tt.err); got != tt.want {
				t.Errorf("LedgerTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestWithLedgerRetryRecovers(t *testing.T) {
	calls := 0
	result, err := WithLedgerRetry(context.Background(), func() (int, error) {
		calls++
		if calls == 1 {
			return 0, fmt.Errorf("head block: %w", x402.ErrLedgerUnavailable)
		}
		return 7, nil
	})

	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if result != 7 || calls != 2 {
		t.Errorf("result = %d after %d calls, want 7 after 2", result, calls)
	}
}
