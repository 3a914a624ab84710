package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/volforecast/internal/domain/dto"
)

func TestErrorHandler(t *testing.T) {
	cases := []struct {
		name     string
		handler  gin.HandlerFunc
		wantCode int
		wantMsg  string
	}{
		{
			name:     "plain error becomes 500",
			handler:  func(c *gin.Context) { _ = c.Error(assertErr{}) },
			wantCode: http.StatusInternalServerError,
			wantMsg:  "Internal server error",
		},
		{
			name: "error response keeps status and message",
			handler: func(c *gin.Context) {
				c.Status(http.StatusUnprocessableEntity)
				_ = c.Error(dto.NewErrorResponse("cannot do that", nil))
			},
			wantCode: http.StatusUnprocessableEntity,
			wantMsg:  "cannot do that",
		},
		{
			name:     "no errors untouched",
			handler:  func(c *gin.Context) { c.String(http.StatusOK, "ok") },
			wantCode: http.StatusOK,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			r := gin.New()
			r.Use(ErrorHandler)
			r.GET("/", tc.handler)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
			if w.Code != tc.wantCode {
				t.Fatalf("code=%d want %d", w.Code, tc.wantCode)
			}
			if tc.wantMsg == "" {
				return
			}
			var body dto.ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Message != tc.wantMsg {
				t.Fatalf("message=%q want %q", body.Message, tc.wantMsg)
			}
		})
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

func TestRecoveryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), RecoveryMiddleware())
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	if w.Code != 500 {
		t.Fatalf("code=%d", w.Code)
	}
	var body dto.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.ErrorDetails != "boom" {
		t.Fatalf("unexpected body %s (%v)", w.Body.String(), err)
	}
}

func TestRateLimiter(t *testing.T) {
	cases := []struct {
		name   string
		reqs   int
		lim    int
		expect int
	}{
		{name: "within limit", reqs: 2, lim: 3, expect: http.StatusOK},
		{name: "at limit", reqs: 3, lim: 3, expect: http.StatusOK},
		{name: "exceed limit", reqs: 5, lim: 3, expect: http.StatusTooManyRequests},
		{name: "disabled", reqs: 50, lim: 0, expect: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			r := gin.New()
			r.Use(RateLimiter(tc.lim, time.Minute))
			r.GET("/", func(c *gin.Context) { c.String(200, "ok") })
			var last *httptest.ResponseRecorder
			for i := 0; i < tc.reqs; i++ {
				last = httptest.NewRecorder()
				r.ServeHTTP(last, httptest.NewRequest(http.MethodGet, "/", nil))
			}
			if last.Code != tc.expect {
				t.Fatalf("expected %d, got %d", tc.expect, last.Code)
			}
			if tc.expect == http.StatusTooManyRequests && last.Header().Get("Retry-After") != "60" {
				t.Fatalf("expected Retry-After 60, got %q", last.Header().Get("Retry-After"))
			}
		})
	}
}

func TestRateLimiter_WindowResets(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := &rateLimiter{clients: map[string]*client{}, limit: 1, window: time.Minute, now: func() time.Time { return now }}

	if !rl.allow("1.2.3.4") {
		t.Fatalf("first request must pass")
	}
	if rl.allow("1.2.3.4") {
		t.Fatalf("second request in window must be limited")
	}
	if !rl.allow("5.6.7.8") {
		t.Fatalf("other clients are independent")
	}
	now = now.Add(2 * time.Minute)
	if !rl.allow("1.2.3.4") {
		t.Fatalf("new window must pass")
	}
	rl.prune(now.Add(2 * time.Minute))
	if len(rl.clients) != 0 {
		t.Fatalf("expected expired clients pruned, %d left", len(rl.clients))
	}
}

func TestAbortWithError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler)
	r.GET("/err", func(c *gin.Context) {
		AbortWithError(c, http.StatusBadRequest, "bad stuff", assertErr{})
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/err", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("code=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct == "" {
		t.Fatalf("expected content-type set")
	}
	var body dto.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Message != "bad stuff" || body.ErrorDetails != "boom" {
		t.Fatalf("unexpected body %s (%v)", w.Body.String(), err)
	}
}

type httpRecorder struct {
	route  string
	status int
}

func (h *httpRecorder) ObserveHTTP(route, _ string, status int, _ time.Duration) {
	h.route, h.status = route, status
}

func TestMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := &httpRecorder{}
	r := gin.New()
	r.Use(Metrics(rec))
	r.GET("/models/:ticker", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/models/AAPL", nil))
	if rec.route != "/models/:ticker" || rec.status != http.StatusNoContent {
		t.Fatalf("got route=%q status=%d", rec.route, rec.status)
	}

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.route != "unmatched" || rec.status != http.StatusNotFound {
		t.Fatalf("got route=%q status=%d", rec.route, rec.status)
	}
}
