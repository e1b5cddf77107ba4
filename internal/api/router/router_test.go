package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/afyabook/afyabook/internal/ussd"
	"github.com/afyabook/afyabook/pkg/logging"
)

func testRouter(t *testing.T, cfg *Config) http.Handler {
	t.Helper()
	logger := logging.NewWithWriter("error", &strings.Builder{})
	engine := ussd.NewEngine(ussd.NewMemoryStore(time.Hour), logger)
	if err := engine.StartState(ussd.StateConfig{
		Run: func(ctx context.Context, req *ussd.Request) error {
			req.End("hello")
			return nil
		},
	}); err != nil {
		t.Fatalf("StartState: %v", err)
	}
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.Logger = logger
	cfg.USSDHandler = ussd.NewHandler(engine, logger, nil)
	return New(cfg)
}

func TestHealthRoute(t *testing.T) {
	h := testRouter(t, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestUSSDRoute(t *testing.T) {
	h := testRouter(t, nil)
	form := url.Values{
		"sessionId":   {"AT123"},
		"phoneNumber": {"+254722123456"},
		"text":        {""},
	}
	req := httptest.NewRequest(http.MethodPost, "/ussd", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "END hello" {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestUSSDRouteMethodNotAllowed(t *testing.T) {
	h := testRouter(t, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ussd", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestMetricsRouteAbsentWithoutHandler(t *testing.T) {
	h := testRouter(t, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestMetricsRouteServesHandler(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("metrics here"))
	})
	h := testRouter(t, &Config{MetricsHandler: metrics})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "metrics here" {
		t.Fatalf("metrics response = %d %q", rec.Code, rec.Body.String())
	}
}

func TestRateLimitRejectsBurstOverflow(t *testing.T) {
	h := testRouter(t, &Config{RateLimitPerSec: 1, RateLimitBurst: 2})
	form := url.Values{
		"sessionId":   {"AT123"},
		"phoneNumber": {"+254722123456"},
	}

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/ussd", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.RemoteAddr = "10.0.0.9:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", last)
	}
}
