package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiter_BurstThenDeny(t *testing.T) {
	l := NewRateLimiter(1, 3)
	fixed := time.Now()
	l.now = func() time.Time { return fixed }

	for i := 0; i < 3; i++ {
		if !l.Allow("user:a") {
			t.Fatalf("request %d denied within burst", i+1)
		}
	}
	if l.Allow("user:a") {
		t.Error("request beyond burst allowed")
	}
	if !l.Allow("user:b") {
		t.Error("other key should have its own bucket")
	}

	// One second later one token has been refilled
	fixed = fixed.Add(time.Second)
	if !l.Allow("user:a") {
		t.Error("token not refilled after one second")
	}
}

func TestRateLimiter_SweepsIdleEntries(t *testing.T) {
	l := NewRateLimiter(1, 1)
	fixed := time.Now()
	l.now = func() time.Time { return fixed }

	l.Allow("user:idle")
	fixed = fixed.Add(limiterIdleTTL + 2*time.Minute)
	l.Allow("user:fresh")

	if _, ok := l.entries["user:idle"]; ok {
		t.Error("idle limiter was not swept")
	}
	if len(l.entries) != 1 {
		t.Errorf("entries = %d, want 1", len(l.entries))
	}
}

func TestRateLimiter_Middleware(t *testing.T) {
	l := NewRateLimiter(1, 1)
	handler := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	newReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		return req.WithContext(context.WithValue(req.Context(), UserIDKey, testUserID))
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newReq())
	if rec.Code != http.StatusNoContent {
		t.Fatalf("first request status = %d, want 204", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, newReq())
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}
