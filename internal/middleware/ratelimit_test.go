package middleware

import (
	"context"
	"testing"
)

func TestRateLimiterAllowBeforeFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := NewRateLimiter(ctx, 5)
	defer rl.Stop()

	if !rl.Allow("192.168.1.1") {
		t.Fatal("Allow should return true for unknown IP")
	}
}

func TestRateLimiterExceedLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := NewRateLimiter(ctx, 3)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		rl.RecordFailure("10.0.0.1")
	}

	// All burst tokens consumed; Allow should now fail.
	if rl.Allow("10.0.0.1") {
		t.Fatal("Allow should return false after exceeding limit")
	}
}

func TestRateLimiterDifferentIPsIndependent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := NewRateLimiter(ctx, 2)
	defer rl.Stop()

	for i := 0; i < 2; i++ {
		rl.RecordFailure("10.0.0.1")
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("10.0.0.1 should be rate limited")
	}
	if !rl.Allow("10.0.0.2") {
		t.Fatal("10.0.0.2 should be unaffected")
	}
}

func TestRateLimiterRecordFailureAndAllow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rl := NewRateLimiter(ctx, 2)
	defer rl.Stop()

	if !rl.RecordFailureAndAllow("10.0.0.3") {
		t.Fatal("first failure should still be allowed")
	}
	if !rl.RecordFailureAndAllow("10.0.0.3") {
		t.Fatal("second failure should still be allowed")
	}
	if rl.RecordFailureAndAllow("10.0.0.3") {
		t.Fatal("third failure should be rejected")
	}
}

func TestExtractIP(t *testing.T) {
	tests := []struct {
		remoteAddr string
		want       string
	}{
		{"10.0.0.1:8080", "10.0.0.1"},
		{"10.0.0.1", "10.0.0.1"},
		{"[::1]:8080", "::1"},
	}

	for _, tt := range tests {
		if got := ExtractIP(tt.remoteAddr); got != tt.want {
			t.Fatalf("ExtractIP(%q) = %q, want %q", tt.remoteAddr, got, tt.want)
		}
	}
}
