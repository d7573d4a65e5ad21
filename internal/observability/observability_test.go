package observability_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/opsgovern/lanegate/internal/observability"
)

func setupMeter(t *testing.T) (*sdkmetric.ManualReader, metric.Meter) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	return reader, mp.Meter("test")
}

func collectMetricNames(t *testing.T, reader *sdkmetric.ManualReader) map[string]bool {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	names := map[string]bool{}

	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			names[m.Name] = true
		}
	}

	return names
}

func TestREDMetrics_RecordRequest(t *testing.T) {
	t.Parallel()

	reader, meter := setupMeter(t)

	rm, err := observability.NewREDMetrics(meter)
	require.NoError(t, err)

	done := rm.TrackInflight(context.Background(), "scan")
	rm.RecordRequest(context.Background(), "scan", "error", 250*time.Millisecond)
	done()

	names := collectMetricNames(t, reader)
	assert.True(t, names["lanegate.requests.total"])
	assert.True(t, names["lanegate.request.duration.seconds"])
	assert.True(t, names["lanegate.errors.total"])
}

func TestPipelineMetrics_RecordsInstruments(t *testing.T) {
	t.Parallel()

	reader, meter := setupMeter(t)

	pm, err := observability.NewPipelineMetrics(meter)
	require.NoError(t, err)

	pm.RecordScan(context.Background(), "svc-a", 12, 30, 2*time.Second)
	pm.RecordBundle(context.Background(), "repo:svc-a")
	pm.RecordEventAppend(context.Background(), "svc-a")
	pm.RecordGateRejection(context.Background(), "repo:svc-a", "knowledge_stale")

	names := collectMetricNames(t, reader)
	assert.True(t, names["lanegate.scan.repos.total"])
	assert.True(t, names["lanegate.scan.facts.total"])
	assert.True(t, names["lanegate.bundle.builds.total"])
	assert.True(t, names["lanegate.events.appended.total"])
	assert.True(t, names["lanegate.gate.rejections.total"])
}

func TestHealthHandlers(t *testing.T) {
	t.Parallel()

	live := httptest.NewRecorder()
	observability.HealthHandler().ServeHTTP(live, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, live.Code)
	assert.JSONEq(t, `{"status":"ok"}`, live.Body.String())

	failing := func(context.Context) error { return io.ErrUnexpectedEOF }
	ready := httptest.NewRecorder()
	observability.ReadyHandler(failing).ServeHTTP(ready, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, ready.Code)
}

func TestTracingHandler_AttachesServiceAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(observability.NewTracingHandler(inner, "lanegate", "dev", observability.ModeCLI))

	logger.Info("scan complete", "repo_id", "svc-a")

	out := buf.String()
	assert.Contains(t, out, `"service":"lanegate"`)
	assert.Contains(t, out, `"mode":"cli"`)
	assert.Contains(t, out, `"env":"dev"`)
	assert.Contains(t, out, `"repo_id":"svc-a"`)
}

func TestInit_NoEndpointIsNoop(t *testing.T) {
	cfg := observability.DefaultConfig()

	providers, err := observability.Init(cfg)
	require.NoError(t, err)
	require.NotNil(t, providers.Logger)
	require.NotNil(t, providers.Tracer)
	require.NotNil(t, providers.Meter)

	assert.NoError(t, providers.Shutdown(context.Background()))
}

func TestDiagnosticsServer_ServesEndpoints(t *testing.T) {
	t.Parallel()

	_, meter := setupMeter(t)

	srv, err := observability.NewDiagnosticsServer("127.0.0.1:0", meter)
	require.NoError(t, err)
	defer srv.Close()

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
