package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"valid token", "Bearer secret-key", "secret-key"},
		{"missing header", "", ""},
		{"wrong scheme", "Basic secret-key", ""},
		{"lowercase scheme rejected", "bearer secret-key", ""},
		{"token with surrounding space", "Bearer  secret-key ", "secret-key"},
		{"prefix only", "Bearer ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if got := extractBearerToken(r); got != tt.want {
				t.Errorf("extractBearerToken() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConstantTimeEqual(t *testing.T) {
	if !constantTimeEqual("abc", "abc") {
		t.Error("Expected equal strings to match")
	}
	if constantTimeEqual("abc", "abd") {
		t.Error("Expected different strings to mismatch")
	}
	if constantTimeEqual("abc", "abcd") {
		t.Error("Expected different lengths to mismatch")
	}
	if constantTimeEqual("", "x") {
		t.Error("Expected empty vs non-empty to mismatch")
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/panic", nil)
	RecoveryMiddleware(panicking).ServeHTTP(rec, r)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Expected problem+json, got %q", ct)
	}
}

func TestLoggingMiddleware_PreservesStatus(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/tea", nil)
	LoggingMiddleware(h).ServeHTTP(rec, r)

	if rec.Code != http.StatusTeapot {
		t.Errorf("Expected status passed through, got %d", rec.Code)
	}
}
