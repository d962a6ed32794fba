package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/region23/salonbot/pkg/logger"
)

func TestRateLimiter_PerKey(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute, logger.NewNop())
	defer rl.Close()

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("Expected burst of two requests to pass")
	}
	if rl.Allow("a") {
		t.Error("Expected third request to be limited")
	}
	if !rl.AllowChat(42) {
		t.Error("Expected other key to have its own budget")
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(10, time.Minute, logger.NewNop())
	defer rl.Close()

	rl.Allow("old")
	rl.cleanup(time.Now().Add(11 * time.Minute))

	if rl.Size() != 0 {
		t.Errorf("Expected idle limiter to be removed, got %d", rl.Size())
	}
}

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	rl := NewRateLimiter(10, time.Minute, logger.NewNop())
	defer rl.Close()

	var (
		wg      sync.WaitGroup
		allowed atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.AllowChat(7) {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	// Burst равен лимиту, за время теста токены почти не пополняются
	if n := allowed.Load(); n < 10 || n > 11 {
		t.Errorf("Expected about 10 allowed requests, got %d", n)
	}
}

func TestHTTPRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute, logger.NewNop())
	defer rl.Close()

	handler := HTTPRateLimitMiddleware(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("Expected 200 then 429, got %v", codes)
	}
}

func TestGetRealIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.5:51234"
	if got := GetRealIP(req); got != "192.168.1.5" {
		t.Errorf("GetRealIP() = %s", got)
	}

	req.Header.Set("X-Real-IP", "8.8.8.8")
	if got := GetRealIP(req); got != "8.8.8.8" {
		t.Errorf("GetRealIP() = %s", got)
	}

	req.Header.Set("X-Forwarded-For", "10.0.0.1, 192.168.1.1")
	if got := GetRealIP(req); got != "10.0.0.1" {
		t.Errorf("X-Forwarded-For should win over X-Real-IP, got %s", got)
	}
}

func TestPrometheusMiddleware_CapturesStatus(t *testing.T) {
	handler := PrometheusMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/unknown/path", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("Expected status to pass through, got %d", rec.Code)
	}
}
