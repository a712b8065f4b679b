package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/starstream/internal/model"
)

func testRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(1000),
		GeneralBurst:    3,
		CheckoutRate:    rate.Limit(1000),
		CheckoutBurst:   2,
		CleanupInterval: time.Hour,
	}
}

func authedRequest(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/checkout", nil)
	return req.WithContext(ContextWithSession(req.Context(), &model.Session{
		ID:        "s-" + userID,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Hour),
	}))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestGeneralMiddleware_BurstExhaustion(t *testing.T) {
	config := testRateLimiterConfig()
	config.GeneralRate = rate.Limit(0.001) // 補充をほぼ止める
	rl := NewRateLimiter(config)
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < config.GeneralBurst; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authedRequest("user-1"))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest("user-1"))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header is missing")
	}
}

func TestGeneralMiddleware_PerUser(t *testing.T) {
	config := testRateLimiterConfig()
	config.GeneralRate = rate.Limit(0.001)
	rl := NewRateLimiter(config)
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	// user-1のバーストを使い切る
	for i := 0; i < config.GeneralBurst+1; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), authedRequest("user-1"))
	}

	// user-2は影響を受けない
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest("user-2"))
	if rec.Code != http.StatusOK {
		t.Errorf("user-2 status = %d, want 200", rec.Code)
	}
}

func TestCheckoutMiddleware_IndependentOfGeneral(t *testing.T) {
	config := testRateLimiterConfig()
	config.CheckoutRate = rate.Limit(0.001)
	rl := NewRateLimiter(config)
	defer rl.Stop()

	checkoutHandler := rl.CheckoutMiddleware()(okHandler())
	generalHandler := rl.GeneralMiddleware()(okHandler())

	// チェックアウトのバーストを使い切る
	for i := 0; i < config.CheckoutBurst; i++ {
		rec := httptest.NewRecorder()
		checkoutHandler.ServeHTTP(rec, authedRequest("user-1"))
		if rec.Code != http.StatusOK {
			t.Fatalf("checkout request %d: status = %d", i, rec.Code)
		}
	}
	rec := httptest.NewRecorder()
	checkoutHandler.ServeHTTP(rec, authedRequest("user-1"))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("checkout status = %d, want 429", rec.Code)
	}

	// API全般は引き続き許可される
	rec = httptest.NewRecorder()
	generalHandler.ServeHTTP(rec, authedRequest("user-1"))
	if rec.Code != http.StatusOK {
		t.Errorf("general status = %d, want 200", rec.Code)
	}
}

func TestRateLimiter_Unauthenticated(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	config := testRateLimiterConfig()
	config.CleanupInterval = 10 * time.Millisecond
	rl := NewRateLimiter(config)
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())
	handler.ServeHTTP(httptest.NewRecorder(), authedRequest("user-1"))

	if rl.GeneralLimiterCount() != 1 {
		t.Fatalf("GeneralLimiterCount() = %d, want 1", rl.GeneralLimiterCount())
	}

	// TTL（CleanupInterval*2）経過後にクリーンアップされる
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if rl.GeneralLimiterCount() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("expired limiter entry was not cleaned up")
}

func TestDefaultRateLimiterConfig(t *testing.T) {
	config := DefaultRateLimiterConfig()
	if config.GeneralBurst != 120 {
		t.Errorf("GeneralBurst = %d, want 120", config.GeneralBurst)
	}
	if config.CheckoutBurst != 10 {
		t.Errorf("CheckoutBurst = %d, want 10", config.CheckoutBurst)
	}
}
