package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestRequestIDPropagates(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "abc-123" || rec.Header().Get("X-Request-ID") != "abc-123" {
		t.Fatalf("request id = %q / %q", seen, rec.Header().Get("X-Request-ID"))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(seen) != 36 {
		t.Fatalf("generated id = %q, want uuid", seen)
	}
}

func TestRequestIDSources(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{name: "correlation fallback", headers: map[string]string{"X-Correlation-ID": "corr.42"}, want: "corr.42"},
		{name: "request id wins", headers: map[string]string{"X-Request-ID": "req:1", "X-Correlation-ID": "corr"}, want: "req:1"},
		{name: "invalid request id falls through", headers: map[string]string{"X-Request-ID": "bad id\n", "X-Correlation-ID": "corr"}, want: "corr"},
		{name: "too long", headers: map[string]string{"X-Request-ID": strings.Repeat("a", 129)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var seen string
			h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = RequestIDFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if tc.want == "" {
				if len(seen) != 36 {
					t.Fatalf("expected a generated uuid, got %q", seen)
				}
				return
			}
			if seen != tc.want {
				t.Fatalf("request id = %q, want %q", seen, tc.want)
			}
		})
	}
}

func TestLoggerRecordsStatusAndFlushes(t *testing.T) {
	var buf strings.Builder
	l := zerolog.New(&buf)
	h := RequestID(Logger(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := w.(http.Flusher); !ok {
			t.Fatal("wrapped writer must implement http.Flusher")
		}
		zerolog.Ctx(r.Context()).Info().Msg("inside")
		w.WriteHeader(http.StatusTeapot)
	})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/healthz", nil))

	out := buf.String()
	for _, want := range []string{`"status":418`, `"path":"/v1/healthz"`, `"message":"inside"`, `"request_id":`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output %q missing %s", out, want)
		}
	}
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    string
	}{
		{name: "listed", allowed: []string{"https://bona.parks"}, origin: "https://bona.parks", want: "https://bona.parks"},
		{name: "unlisted", allowed: []string{"https://bona.parks"}, origin: "https://evil.example", want: ""},
		{name: "wildcard", allowed: []string{"*"}, origin: "https://any.example", want: "*"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/", nil)
			req.Header.Set("Origin", tc.origin)
			rec := httptest.NewRecorder()
			CORS(tc.allowed)(next).ServeHTTP(rec, req)
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tc.want {
				t.Fatalf("Allow-Origin = %q, want %q", got, tc.want)
			}
			if rec.Code != http.StatusNoContent {
				t.Fatalf("preflight status = %d", rec.Code)
			}
		})
	}
}
