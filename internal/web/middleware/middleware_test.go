package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// =============================================================================
// APIKeyAuth
// =============================================================================

func TestAPIKeyAuth(t *testing.T) {
	tests := []struct {
		name     string
		keys     []string
		header   string
		wantCode int
	}{
		{name: "no keys configured", keys: nil, header: "", wantCode: http.StatusOK},
		{name: "missing key", keys: []string{"a"}, header: "", wantCode: http.StatusUnauthorized},
		{name: "wrong key", keys: []string{"a"}, header: "b", wantCode: http.StatusForbidden},
		{name: "first key", keys: []string{"a", "b"}, header: "a", wantCode: http.StatusOK},
		{name: "second key", keys: []string{"a", "b"}, header: "b", wantCode: http.StatusOK},
		{name: "prefix is not a match", keys: []string{"abc"}, header: "ab", wantCode: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/status", nil)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}
			rec := httptest.NewRecorder()
			APIKeyAuth(tt.keys)(okHandler()).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode != http.StatusOK {
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			}
		})
	}
}

// =============================================================================
// TrustedRealIP
// =============================================================================

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name       string
		trusted    []string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "untrusted source keeps remote addr",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "192.168.1.5:4000",
			headers:    map[string]string{"X-Real-IP": "1.2.3.4"},
			want:       "192.168.1.5:4000",
		},
		{
			name:       "trusted proxy with X-Real-IP",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.1.2.3:4000",
			headers:    map[string]string{"X-Real-IP": "1.2.3.4"},
			want:       "1.2.3.4",
		},
		{
			name:       "trusted proxy with X-Forwarded-For chain",
			trusted:    []string{"10.1.2.3"},
			remoteAddr: "10.1.2.3:4000",
			headers:    map[string]string{"X-Forwarded-For": "5.6.7.8, 10.1.2.3"},
			want:       "5.6.7.8",
		},
		{
			name:       "invalid header value ignored",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.1.2.3:4000",
			headers:    map[string]string{"X-Real-IP": "not-an-ip"},
			want:       "10.1.2.3:4000",
		},
		{
			name:       "ipv6 prefix",
			trusted:    []string{"fd00::/8"},
			remoteAddr: "[fd00::1]:4000",
			headers:    map[string]string{"X-Forwarded-For": "2001:db8::7"},
			want:       "2001:db8::7",
		},
		{
			name:       "invalid CIDR skipped",
			trusted:    []string{"bogus"},
			remoteAddr: "10.1.2.3:4000",
			headers:    map[string]string{"X-Real-IP": "1.2.3.4"},
			want:       "10.1.2.3:4000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			})
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			TrustedRealIP(tt.trusted)(next).ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.want, got)
		})
	}
}

// =============================================================================
// Logger
// =============================================================================

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	teapot := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	Logger(teapot).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, buf.String(), "status=418")
	assert.Contains(t, buf.String(), "path=/status")
	assert.Contains(t, buf.String(), "level=WARN")

	buf.Reset()
	Logger(okHandler()).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Empty(t, buf.String(), "health checks log at debug")
}

func TestRequestLevel(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		status int
		want   slog.Level
	}{
		{name: "passing health check", path: "/healthz", status: http.StatusOK, want: slog.LevelDebug},
		{name: "status", path: "/status", status: http.StatusOK, want: slog.LevelInfo},
		{name: "not found", path: "/status/themes/x", status: http.StatusNotFound, want: slog.LevelWarn},
		{name: "panic", path: "/status", status: http.StatusInternalServerError, want: slog.LevelError},
		{name: "failing health check", path: "/healthz", status: http.StatusServiceUnavailable, want: slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, requestLevel(tt.path, tt.status))
		})
	}
}
