package app

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIPRateLimiterAllow(t *testing.T) {
	l := NewIPRateLimiter(2, 0)
	if ok, _ := l.Allow("k"); !ok {
		t.Fatalf("first request should pass")
	}
	if ok, _ := l.Allow("k"); !ok {
		t.Fatalf("second request should pass")
	}
	ok, retry := l.Allow("k")
	if ok {
		t.Fatalf("third request should be blocked")
	}
	if retry <= 0 || retry > time.Minute {
		t.Fatalf("unexpected retry %v", retry)
	}
	if ok, _ := l.Allow("other"); !ok {
		t.Fatalf("other keys keep their own budget")
	}
}

func TestIPRateLimiterWindowResets(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewIPRateLimiter(1, time.Minute)
	l.now = func() time.Time { return now }

	if ok, _ := l.Allow("k"); !ok {
		t.Fatalf("first request should pass")
	}
	if ok, _ := l.Allow("k"); ok {
		t.Fatalf("second request in window should be blocked")
	}
	now = now.Add(61 * time.Second)
	if ok, _ := l.Allow("k"); !ok {
		t.Fatalf("request after window should pass")
	}
}

func TestIPRateLimiterSweepsExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewIPRateLimiter(5, time.Second)
	l.now = func() time.Time { return now }
	l.sweepAt = 3

	l.Allow("a")
	l.Allow("b")
	l.Allow("c")
	now = now.Add(2 * time.Second)
	l.Allow("d")

	if len(l.store) != 1 {
		t.Fatalf("expected expired buckets swept, have %d", len(l.store))
	}
}

func TestRateLimitMiddlewareSetsRetryAfter(t *testing.T) {
	mw := RateLimitMiddleware(NewIPRateLimiter(1, time.Minute))
	next := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/parse", nil)
		w := httptest.NewRecorder()
		next.ServeHTTP(w, req)
		if w.Code != want {
			t.Fatalf("request %d: expected %d, got %d", i, want, w.Code)
		}
		if want == http.StatusTooManyRequests && w.Header().Get("Retry-After") == "" {
			t.Fatalf("expected Retry-After header")
		}
	}
}

func TestCSRFMiddlewareEnforced(t *testing.T) {
	mw := CSRFMiddleware(true)
	next := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sheets/abc/submit", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "abc"})
	req.Header.Set(csrfHeaderName, "abc")
	w := httptest.NewRecorder()
	next.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestCSRFMiddlewareRejectsMissingToken(t *testing.T) {
	mw := CSRFMiddleware(true)
	next := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sheets/abc/submit", nil)
	w := httptest.NewRecorder()
	next.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestIssueCSRFTokenSetsCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/csrf", nil)
	w := httptest.NewRecorder()
	IssueCSRFToken(false)(w, req)

	res := w.Result()
	defer res.Body.Close()
	var found bool
	for _, c := range res.Cookies() {
		if c.Name == csrfCookieName && len(c.Value) == 32 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s cookie", csrfCookieName)
	}
}
