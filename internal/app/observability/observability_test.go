package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNormalizedPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "/api/v1/sheets/0123456789abcdef01234567/answers/9", want: "/api/v1/sheets/{id}/answers/{id}"},
		{in: "/api/v1/parse", want: "/api/v1/parse"},
		{in: "/api/v1/sheets/deadbeef", want: "/api/v1/sheets/deadbeef"},
		{in: "", want: "/"},
	}
	for _, tc := range tests {
		if got := normalizedPath(tc.in); got != tc.want {
			t.Fatalf("normalizedPath(%q) got=%s want=%s", tc.in, got, tc.want)
		}
	}
}

func TestExtractSheetID(t *testing.T) {
	if id := extractSheetID("/api/v1/sheets/0123456789abcdef01234567/submit"); id != "0123456789abcdef01234567" {
		t.Fatalf("unexpected id %q", id)
	}
	if id := extractSheetID("/api/v1/parse"); id != "" {
		t.Fatalf("expected empty id for non-sheet path, got %q", id)
	}
}

func TestMiddlewareLogsAndCounts(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	c := NewCollector(nil, zap.New(core))

	h := c.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sheets/0123456789abcdef01234567", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	c.Count("sheets_submitted")

	if logs.Len() != 1 {
		t.Fatalf("expected 1 log entry, got %d", logs.Len())
	}
	fields := logs.All()[0].ContextMap()
	if fields["sheet_id"] != "0123456789abcdef01234567" || fields["status"] != int64(http.StatusTeapot) {
		t.Fatalf("unexpected log fields %v", fields)
	}

	rec := httptest.NewRecorder()
	c.MetricsHandler(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, `cbtscan_http_requests_total{method="GET",path="/api/v1/sheets/{id}",status="418"} 1`) {
		t.Fatalf("missing request counter in metrics:\n%s", body)
	}
	if !strings.Contains(body, `cbtscan_events_total{event="sheets_submitted"} 1`) {
		t.Fatalf("missing event counter in metrics:\n%s", body)
	}
}
