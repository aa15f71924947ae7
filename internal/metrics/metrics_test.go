package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCanonicalPath(t *testing.T) {
	tests := map[string]string{
		"":                           "/",
		"/":                          "/",
		"/healthz":                   "/healthz",
		"/api/login":                 "/api/login",
		"/api/delete-veiculo/abc-12": "/api/delete-veiculo",
		"/files/uploads/u/a.pdf":     "/files",
	}
	for in, want := range tests {
		if got := canonicalPath(in); got != want {
			t.Fatalf("canonicalPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestInstrumentHandlerCountsRequests(t *testing.T) {
	h := InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	before := testutil.ToFloat64(httpRequests.WithLabelValues("DELETE", "/api/delete-veiculo", "418"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/api/delete-veiculo/v-1", nil))
	after := testutil.ToFloat64(httpRequests.WithLabelValues("DELETE", "/api/delete-veiculo", "418"))
	if after-before != 1 {
		t.Fatalf("expected one counted request, got %v", after-before)
	}
}

func TestRecordUpload(t *testing.T) {
	before := testutil.ToFloat64(submissions.WithLabelValues("Segunda Via", "partial"))
	RecordUpload("Segunda Via", 2, 1)
	if got := testutil.ToFloat64(submissions.WithLabelValues("Segunda Via", "partial")) - before; got != 1 {
		t.Fatalf("expected partial submission, got delta %v", got)
	}
}

func TestHandlerServesRegistry(t *testing.T) {
	RecordPayment("pix", true)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "despachante_payments_charges_total") {
		t.Fatalf("expected payment counter in output")
	}
}
