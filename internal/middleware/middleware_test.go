package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func TestRequestID_Generated(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == "" {
		t.Fatal("expected a generated request ID in context")
	}
	if got := rec.Header().Get(RequestIDHeader); got != seen {
		t.Errorf("response header = %q, context = %q", got, seen)
	}
}

func TestRequestID_Propagated(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		reuse    bool
	}{
		{"well formed", "abc-123", true},
		{"contains space", "abc 123", false},
		{"too long", strings.Repeat("a", maxRequestIDLen+1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetRequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(RequestIDHeader, tt.incoming)
			h.ServeHTTP(httptest.NewRecorder(), req)

			if (seen == tt.incoming) != tt.reuse {
				t.Errorf("request ID = %q, reuse incoming = %v", seen, tt.reuse)
			}
			if seen == "" {
				t.Error("request ID must never be empty")
			}
		})
	}
}

func TestLogger_FieldsAndLevels(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		status    int
		wantLevel string
	}{
		{"success", "/users", http.StatusOK, "INFO"},
		{"client error", "/users", http.StatusNotFound, "WARN"},
		{"server error", "/users", http.StatusInternalServerError, "ERROR"},
		{"quiet probe", "/healthz", http.StatusOK, "DEBUG"},
		{"failing probe", "/healthz", http.StatusServiceUnavailable, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

			h := RequestID(Logger(logger, "/healthz")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("body"))
			})))

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.Header.Set("Authorization", "Bearer secret-token")
			h.ServeHTTP(httptest.NewRecorder(), req)

			var entry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("log output is not JSON: %v: %s", err, buf.String())
			}
			if entry["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %s", entry["level"], tt.wantLevel)
			}
			if entry["msg"] != "http_request" {
				t.Errorf("msg = %v", entry["msg"])
			}
			if entry["path"] != tt.path {
				t.Errorf("path = %v", entry["path"])
			}
			if int(entry["status_code"].(float64)) != tt.status {
				t.Errorf("status_code = %v", entry["status_code"])
			}
			if int(entry["bytes"].(float64)) != 4 {
				t.Errorf("bytes = %v", entry["bytes"])
			}
			if entry["request_id"] == "" {
				t.Error("request_id missing")
			}
			if strings.Contains(buf.String(), "secret-token") {
				t.Error("request headers must not be logged")
			}
		})
	}
}

func TestRecoverer(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := Recoverer(logger, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %s", ct)
	}
	if !strings.Contains(rec.Body.String(), "INTERNAL_ERROR") {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
	if !strings.Contains(buf.String(), "panic_recovered") || !strings.Contains(buf.String(), "boom") {
		t.Errorf("panic not logged: %s", buf.String())
	}
	if strings.Contains(buf.String(), "stack") {
		t.Error("stack should be omitted when withStack is false")
	}
}

func TestSecurityHeaders(t *testing.T) {
	for _, dev := range []bool{false, true} {
		rec := httptest.NewRecorder()
		SecurityHeaders(dev)(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		h := rec.Header()
		if h.Get("X-Content-Type-Options") != "nosniff" {
			t.Error("X-Content-Type-Options not set")
		}
		if h.Get("X-Frame-Options") != "DENY" {
			t.Error("X-Frame-Options not set")
		}
		if h.Get("Cache-Control") != "no-store" {
			t.Error("Cache-Control not set")
		}
		hsts := h.Get("Strict-Transport-Security")
		if dev && hsts != "" {
			t.Error("HSTS must not be set in development")
		}
		if !dev && hsts == "" {
			t.Error("HSTS must be set outside development")
		}
	}
}

func TestMaxBodySize(t *testing.T) {
	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var v map[string]any
		if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	h := MaxBodySize(32)(echo)

	t.Run("within limit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"name":"a"}`)))
		if rec.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rec.Code)
		}
	})

	t.Run("declared length over limit", func(t *testing.T) {
		body := `{"name":"` + strings.Repeat("a", 64) + `"}`
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body)))
		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("expected status 413, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "PAYLOAD_TOO_LARGE") {
			t.Errorf("unexpected body %s", rec.Body.String())
		}
	})

	t.Run("streamed body over limit", func(t *testing.T) {
		body := `{"name":"` + strings.Repeat("a", 64) + `"}`
		req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body))
		req.ContentLength = -1
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected decoder failure, got %d", rec.Code)
		}
	})
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		origins    []string
		origin     string
		method     string
		wantStatus int
		wantAllow  string
	}{
		{"no origin header", []string{"https://example.com"}, "", http.MethodGet, http.StatusOK, ""},
		{"nothing configured", nil, "https://example.com", http.MethodGet, http.StatusOK, ""},
		{"exact match", []string{"https://example.com"}, "https://example.com", http.MethodGet, http.StatusOK, "https://example.com"},
		{"case insensitive", []string{"https://Example.com"}, "https://EXAMPLE.com", http.MethodGet, http.StatusOK, "https://EXAMPLE.com"},
		{"preflight allowed", []string{"https://example.com"}, "https://example.com", http.MethodOptions, http.StatusNoContent, "https://example.com"},
		{"preflight denied", []string{"https://example.com"}, "https://evil.com", http.MethodOptions, http.StatusForbidden, ""},
		{"subdomain pattern", []string{"*.example.com"}, "https://api.example.com", http.MethodGet, http.StatusOK, "https://api.example.com"},
		{"suffix is not a subdomain", []string{"*.example.com"}, "https://notexample.com", http.MethodGet, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := CORS(DefaultCORSConfig(tt.origins))(okHandler())

			req := httptest.NewRequest(tt.method, "/users", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantAllow)
			}
		})
	}
}

func TestCORS_PreflightHeaders(t *testing.T) {
	h := CORS(DefaultCORSConfig([]string{"https://example.com"}))(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/users", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, OPTIONS" {
		t.Errorf("Allow-Methods = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Max-Age"); got != "86400" {
		t.Errorf("Max-Age = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Expose-Headers"); got != RequestIDHeader {
		t.Errorf("Expose-Headers = %q", got)
	}
}
