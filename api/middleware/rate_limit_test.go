package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeLimiter struct {
	counts map[string]int64
	err    error
}

func (f *fakeLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	if f.err != nil {
		return false, 0, f.err
	}
	if f.counts == nil {
		f.counts = map[string]int64{}
	}
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

func TestUserRateLimitBlocksAfterLimit(t *testing.T) {
	limiter := &fakeLimiter{}
	mw := UserRateLimit(NewRateLimitPolicy("reports", 2, time.Hour), limiter, nil)(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/reports", nil)
		req = req.WithContext(WithUserID(req.Context(), "user-1"))
		resp := httptest.NewRecorder()
		mw.ServeHTTP(resp, req)
		codes = append(codes, resp.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}
	if limiter.counts["reports:user-1"] != 3 {
		t.Fatalf("expected per-user scope, got %v", limiter.counts)
	}

	other := httptest.NewRequest(http.MethodPost, "/api/v1/reports", nil)
	other = other.WithContext(WithUserID(other.Context(), "user-2"))
	resp := httptest.NewRecorder()
	mw.ServeHTTP(resp, other)
	if resp.Code != http.StatusOK {
		t.Fatalf("other users have their own window, got %d", resp.Code)
	}
}

func TestUserRateLimitStoreFailure(t *testing.T) {
	mw := UserRateLimit(NewRateLimitPolicy("offers", 1, time.Hour), &fakeLimiter{err: errors.New("redis down")}, nil)(okHandler())
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req = req.WithContext(WithUserID(req.Context(), "user-1"))
	resp := httptest.NewRecorder()
	mw.ServeHTTP(resp, req)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestUserRateLimitDisabledPolicy(t *testing.T) {
	limiter := &fakeLimiter{}
	mw := UserRateLimit(NewRateLimitPolicy("offers", 0, time.Hour), limiter, nil)(okHandler())
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req = req.WithContext(WithUserID(req.Context(), "user-1"))
	mw.ServeHTTP(httptest.NewRecorder(), req)
	if len(limiter.counts) != 0 {
		t.Fatalf("disabled policy should not touch the store")
	}
}
