package internal

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiter_AllowsUpToLimit(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !limiter.allow("10.0.0.1") {
			t.Fatalf("Request %d should be allowed", i+1)
		}
	}
	if limiter.allow("10.0.0.1") {
		t.Error("Request over the limit should be rejected")
	}

	// Other clients have their own bucket.
	if !limiter.allow("10.0.0.2") {
		t.Error("Different IP should be allowed")
	}
}

func TestRateLimiter_WindowReset(t *testing.T) {
	window := 50 * time.Millisecond
	limiter := NewRateLimiter(1, window)

	if !limiter.allow("10.0.0.1") {
		t.Fatal("First request should be allowed")
	}
	if limiter.allow("10.0.0.1") {
		t.Fatal("Second request should be rejected")
	}

	time.Sleep(window + 20*time.Millisecond)

	if !limiter.allow("10.0.0.1") {
		t.Error("Request after the window should be allowed again")
	}
}

func TestRateLimiter_CleanupExpiredBuckets(t *testing.T) {
	window := 50 * time.Millisecond
	limiter := NewRateLimiter(10, window)

	for i := 0; i < 50; i++ {
		limiter.allow("192.168.1." + string(rune('a'+i%26)))
	}
	if len(limiter.requests) == 0 {
		t.Fatal("Expected populated bucket map")
	}

	time.Sleep(window + 20*time.Millisecond)

	// The sweep runs every cleanupEvery requests.
	for i := 0; i < cleanupEvery; i++ {
		limiter.allow("10.0.0.1")
	}

	if size := len(limiter.requests); size > 2 {
		t.Errorf("Expected expired buckets to be swept, map size = %d", size)
	}
}

func TestRateLimiter_Middleware(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/webhook", nil)
	req.RemoteAddr = "10.0.0.1:12345"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("First request status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("Second request status = %d, want 429", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("POST", "/webhook", nil)
	req.RemoteAddr = "10.0.0.1:12345"

	if got := clientIP(req); got != "10.0.0.1:12345" {
		t.Errorf("clientIP = %q", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := clientIP(req); got != "203.0.113.7" {
		t.Errorf("clientIP with X-Forwarded-For = %q", got)
	}
}
