package rpc

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetryConfig(maxAttempts int) RetryConfig {
	cfg := DefaultRetryConfig
	cfg.MaxAttempts = maxAttempts
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 5 * time.Millisecond
	return cfg
}

func TestWithRetry_SucceedsAfterRetryableErrors(t *testing.T) {
	calls := 0
	result, err := WithRetry(context.Background(), fastRetryConfig(5), func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("429 Too Many Requests")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Errorf("result = %q, want ok", result)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestWithRetry_NonRetryableFailsImmediately(t *testing.T) {
	calls := 0
	wantErr := errors.New("account not found")
	_, err := WithRetry(context.Background(), fastRetryConfig(5), func(ctx context.Context) (int, error) {
		calls++
		return 0, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected original error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := WithRetry(context.Background(), fastRetryConfig(3), func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("connection reset by peer")
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := fastRetryConfig(5)
	cfg.InitialDelay = time.Hour // would hang without the ctx check

	_, err := WithRetry(ctx, cfg, func(ctx context.Context) (int, error) {
		return 0, errors.New("timeout")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		err  string
		want bool
	}{
		{"HTTP 429 rate limited", true},
		{"server returned 503", true},
		{"dial tcp: i/o TIMEOUT", true},
		{"read: ECONNRESET", true},
		{"invalid base58 signature", false},
		{"rpc: code -32602", false},
	}
	for _, tc := range cases {
		if got := DefaultRetryConfig.Retryable(errors.New(tc.err)); got != tc.want {
			t.Errorf("Retryable(%q) = %v, want %v", tc.err, got, tc.want)
		}
	}
	if DefaultRetryConfig.Retryable(nil) {
		t.Error("nil error must not be retryable")
	}
}

func TestIsUnsupportedFilter(t *testing.T) {
	if !IsUnsupportedFilter(errors.New("rpc error: code -32602 invalid params")) {
		t.Error("-32602 should flag the filter as unsupported")
	}
	if !IsUnsupportedFilter(errors.New("Invalid Mentions filter")) {
		t.Error("invalid mentions should flag the filter as unsupported")
	}
	if IsUnsupportedFilter(errors.New("connection refused")) {
		t.Error("transport errors are not filter rejections")
	}
	if IsUnsupportedFilter(nil) {
		t.Error("nil is not a filter rejection")
	}
}
