package service

import (
	"testing"
	"time"
)

func TestRateLimiter_Allow(t *testing.T) {
	r := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !r.Allow("chat") {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	if r.Allow("chat") {
		t.Fatalf("fourth attempt should be limited")
	}
	if !r.Allow("other") {
		t.Fatalf("limit is per conversation")
	}
}

func TestRateLimiter_WindowExpires(t *testing.T) {
	r := NewRateLimiter(1, 30*time.Millisecond)

	if !r.Allow("chat") {
		t.Fatalf("first attempt should be allowed")
	}
	if r.Allow("chat") {
		t.Fatalf("second attempt should be limited")
	}
	time.Sleep(50 * time.Millisecond)
	if !r.Allow("chat") {
		t.Fatalf("attempt after the window should be allowed")
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	r := NewRateLimiter(0, time.Minute)
	for i := 0; i < 100; i++ {
		if !r.Allow("chat") {
			t.Fatalf("disabled limiter must allow everything")
		}
	}

	var nilLimiter *RateLimiter
	if !nilLimiter.Allow("chat") {
		t.Fatalf("nil limiter must allow everything")
	}
}
