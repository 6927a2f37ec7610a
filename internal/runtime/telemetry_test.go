package runtime

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/scribelabs/scribe-core/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSetupTelemetryServesScrapeEndpoint(t *testing.T) {
	cfg := config.Default()

	shutdown, handler, err := setupTelemetry(cfg, testLogger())
	if err != nil {
		t.Fatalf("setupTelemetry: %v", err)
	}
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	if handler == nil {
		t.Fatal("expected a prometheus scrape handler")
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("scrape status = %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, "target_info") {
		t.Errorf("scrape output missing resource info:\n%s", body)
	}
}
