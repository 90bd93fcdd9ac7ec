package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tally/internal/log"
	"tally/internal/metrics"
)

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Level: slog.LevelInfo, Format: "json", Output: &buf})
	m := metrics.New()

	var seenID string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/bills/{id}", func(w http.ResponseWriter, r *http.Request) {
		seenID = GetRequestID(r.Context())
		log.FromContext(r.Context()).InfoContext(r.Context(), "Handling bill")
		http.Error(w, "missing", http.StatusNotFound)
	})
	h := NewMiddleware(logger, m, func(*http.Request) string { return "10.0.0.1" }).Middleware(mux)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/bills/b1", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if seenID == "" || rec.Header().Get(HeaderRequestID) != seenID {
		t.Errorf("request id: handler saw %q, header %q", seenID, rec.Header().Get(HeaderRequestID))
	}
	out := buf.String()
	if !strings.Contains(out, `"msg":"Handling bill"`) || !strings.Contains(out, `"request_id":"`+seenID+`"`) {
		t.Errorf("handler log missing request id: %s", out)
	}
	if !strings.Contains(out, `"level":"WARN"`) || !strings.Contains(out, `"route":"GET /api/bills/{id}"`) {
		t.Errorf("completion log = %s", out)
	}
	mrec := httptest.NewRecorder()
	m.Handler().ServeHTTP(mrec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	want := `tally_http_requests_total{method="GET",route="GET /api/bills/{id}",status="404"} 1`
	if !strings.Contains(mrec.Body.String(), want) {
		t.Errorf("metrics missing %s", want)
	}
}

func TestMiddlewareKeepsValidIncomingID(t *testing.T) {
	h := NewMiddleware(nil, nil, nil).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	r.Header.Set(HeaderRequestID, "abc-123")
	h.ServeHTTP(rec, r)
	if rec.Header().Get(HeaderRequestID) != "abc-123" {
		t.Errorf("request id = %q", rec.Header().Get(HeaderRequestID))
	}

	rec = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	r.Header.Set(HeaderRequestID, "bad id\n")
	h.ServeHTTP(rec, r)
	if !strings.HasPrefix(rec.Header().Get(HeaderRequestID), "req_") {
		t.Errorf("invalid incoming id kept: %q", rec.Header().Get(HeaderRequestID))
	}
}

func TestGenerateRequestID(t *testing.T) {
	a, b := GenerateRequestID(), GenerateRequestID()
	if a == b || len(a) != len("req_")+16 {
		t.Errorf("ids %q %q", a, b)
	}
}
