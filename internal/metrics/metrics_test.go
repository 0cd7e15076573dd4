package metrics

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestProvider_RegistersStandardCollectors_AndBuildInfo(t *testing.T) {
	p := Init(BuildInfo{Version: "test", Revision: "r", BuildDate: "now"})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	body := rr.Body.String()

	if !strings.Contains(body, "go_goroutines") {
		t.Fatalf("expected go_goroutines in payload; got:\n%s", body)
	}
	if !strings.Contains(body, `qpexport_build_info{`) {
		t.Fatalf("expected qpexport_build_info in payload; got:\n%s", body)
	}
}

func TestNewBatch_CountersRegisterAndCount(t *testing.T) {
	p := Init(BuildInfo{})
	b := NewBatch(p.Registerer())

	b.ImagesProcessed.Inc()
	b.AnnotationsExported.Add(3)
	b.AnnotationsSkipped.WithLabelValues("unsupported_geometry").Inc()
	b.ItemErrors.WithLabelValues("annotation").Inc()

	if got := testutil.ToFloat64(b.ImagesProcessed); got != 1 {
		t.Fatalf("images processed=%v want 1", got)
	}
	if got := testutil.ToFloat64(b.AnnotationsExported); got != 3 {
		t.Fatalf("annotations exported=%v want 3", got)
	}
	if got := testutil.ToFloat64(b.AnnotationsSkipped.WithLabelValues("unsupported_geometry")); got != 1 {
		t.Fatalf("skipped=%v want 1", got)
	}
}

func TestLogSummary_EmitsCounterTotals(t *testing.T) {
	p := Init(BuildInfo{})
	b := NewBatch(p.Registerer())
	b.MasksWritten.Add(7)

	var buf strings.Builder
	log := slog.New(slog.NewTextHandler(&buf, nil))
	p.LogSummary(log)

	out := buf.String()
	if !strings.Contains(out, "qpexport_masks_written_total") {
		t.Fatalf("summary missing mask counter:\n%s", out)
	}
	if !strings.Contains(out, "=7") {
		t.Fatalf("summary missing counter value:\n%s", out)
	}
}

func TestServe_ExposesHealthAndMetrics(t *testing.T) {
	p := Init(BuildInfo{})

	// exercise the handler wiring directly rather than binding a port
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	if len(body) == 0 {
		t.Fatal("empty metrics payload")
	}
}
