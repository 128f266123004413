package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// ---------------------------------------------------------------------------
// Allow
// ---------------------------------------------------------------------------

func TestRateLimiter_AllowWithinBurst(t *testing.T) {
	rl := NewRateLimiter(1, 3, false)

	for i := 0; i < 3; i++ {
		if !rl.Allow("1.2.3.4") {
			t.Fatalf("request %d within burst should be allowed", i+1)
		}
	}
	if rl.Allow("1.2.3.4") {
		t.Error("request beyond burst should be denied")
	}
}

func TestRateLimiter_PerIPIsolation(t *testing.T) {
	rl := NewRateLimiter(1, 1, false)

	if !rl.Allow("1.1.1.1") {
		t.Fatal("first request from first IP should pass")
	}
	if !rl.Allow("2.2.2.2") {
		t.Error("exhausting one IP's bucket must not affect another IP")
	}
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

func TestRateLimiter_MiddlewareReturns429(t *testing.T) {
	rl := NewRateLimiter(0.001, 1, false)
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/signin", nil)
	req.RemoteAddr = "9.9.9.9:1234"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request should be limited, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Error("expected Retry-After header")
	}
}

// ---------------------------------------------------------------------------
// clientIP
// ---------------------------------------------------------------------------

func TestClientIP_IgnoresProxyHeadersByDefault(t *testing.T) {
	rl := NewRateLimiter(1, 1, false)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	req.Header.Set("X-Forwarded-For", "8.8.8.8")

	if ip := rl.clientIP(req); ip != "10.0.0.1" {
		t.Errorf("expected RemoteAddr IP, got %q", ip)
	}
}

func TestClientIP_TrustsProxyWhenConfigured(t *testing.T) {
	rl := NewRateLimiter(1, 1, true)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	req.Header.Set("X-Forwarded-For", "8.8.8.8, 10.0.0.1")

	if ip := rl.clientIP(req); ip != "8.8.8.8" {
		t.Errorf("expected first forwarded IP, got %q", ip)
	}
}

func TestClientIP_XRealIPFallback(t *testing.T) {
	rl := NewRateLimiter(1, 1, true)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	req.Header.Set("X-Real-IP", "7.7.7.7")

	if ip := rl.clientIP(req); ip != "7.7.7.7" {
		t.Errorf("expected X-Real-IP, got %q", ip)
	}
}
