package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
)

func TestThrottleAllow(t *testing.T) {
	throttle := NewThrottle(rate.Every(time.Hour), 2)

	if !throttle.Allow("1.2.3.4") {
		t.Error("first request should be allowed")
	}
	if !throttle.Allow("1.2.3.4") {
		t.Error("second request within burst should be allowed")
	}
	if throttle.Allow("1.2.3.4") {
		t.Error("third request should exceed burst")
	}
}

func TestThrottlePerIPIsolation(t *testing.T) {
	throttle := NewThrottle(rate.Every(time.Hour), 1)

	if !throttle.Allow("1.1.1.1") {
		t.Error("first IP should be allowed")
	}
	if throttle.Allow("1.1.1.1") {
		t.Error("first IP should now be limited")
	}
	if !throttle.Allow("2.2.2.2") {
		t.Error("second IP must have its own budget")
	}
}

func TestThrottleMiddleware(t *testing.T) {
	throttle := NewThrottle(rate.Every(time.Hour), 1)

	r := mux.NewRouter()
	r.Use(throttle.Middleware())
	r.HandleFunc("/api/forms/contact", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodPost)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/forms/contact", nil)
		req.RemoteAddr = "10.0.0.1:51000"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	if rec := send(); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 within burst, got %d", rec.Code)
	}
	rec := send()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 past burst, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header on throttled response")
	}
}
