package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"referral-bot/internal/services"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

type stubValidator struct {
	role string
	err  error
}

func (s stubValidator) ValidateToken(string) (*services.Claims, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &services.Claims{Role: s.role, RegisteredClaims: jwt.RegisteredClaims{Subject: s.role}}, nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	handler := NewRateLimiter(1, 1).Middleware()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be rate limited, got %d", res.Code)
	}
}

func TestRateLimiterIsPerClient(t *testing.T) {
	handler := NewRateLimiter(1, 1).Middleware()(okHandler())

	for _, addr := range []string{"192.0.2.1:1000", "192.0.2.2:1000"} {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = addr
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusOK {
			t.Fatalf("expected first request from %s to succeed, got %d", addr, res.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "192.0.2.9:1000"
	req.Header.Set("X-Forwarded-For", "192.0.2.1, 10.0.0.1")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected forwarded client to share its bucket, got %d", res.Code)
	}
}

func TestAuthentication(t *testing.T) {
	cases := []struct {
		name      string
		header    string
		validator stubValidator
		want      int
	}{
		{"missing header", "", stubValidator{role: services.OperatorSubject}, http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", stubValidator{role: services.OperatorSubject}, http.StatusUnauthorized},
		{"invalid token", "Bearer abc", stubValidator{err: errors.New("bad")}, http.StatusUnauthorized},
		{"wrong role", "Bearer abc", stubValidator{role: "user"}, http.StatusForbidden},
		{"operator", "bearer abc", stubValidator{role: services.OperatorSubject}, http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := Authentication(tc.validator)(okHandler())
			req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts/1/balance", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)
			if res.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, res.Code)
			}
		})
	}
}

func TestRequestIDPropagates(t *testing.T) {
	var seen string
	handler := Logger(zerolog.Nop())(RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r)
	})))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if seen == "" || res.Header().Get("X-Request-ID") != seen {
		t.Fatalf("request id not propagated: ctx=%q header=%q", seen, res.Header().Get("X-Request-ID"))
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "abc-123" {
		t.Fatalf("expected caller request id to be kept, got %q", seen)
	}
}

func TestRequestValidation(t *testing.T) {
	handler := RequestValidation()(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "text/plain")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-JSON body, got %d", res.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/accounts/1/bonus", nil)
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected empty POST to pass, got %d", res.Code)
	}
}

func TestRecoverReturns500(t *testing.T) {
	handler := Recover()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", res.Code)
	}
}
