package metrics

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

var _ Recorder = NoopRecorder{}
var _ Recorder = (*PrometheusRecorder)(nil)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStageDuration("build", 150*time.Millisecond)
	pr.ObserveRunDuration(500 * time.Millisecond)
	pr.IncRunOutcome("succeeded")
	pr.IncRunOutcome("succeeded")
	pr.IncProjectType("vite")
	pr.IncDeploySource("artifact")
	pr.ObserveCommandDuration("npm", time.Second, true)
	pr.SetQueueDepth(3)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, mfs)

	require.InDelta(t, 2, testutil.ToFloat64(pr.runOutcome.WithLabelValues("succeeded")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(pr.projectTypes.WithLabelValues("vite")), 0)
	require.InDelta(t, 3, testutil.ToFloat64(pr.queueDepth), 0)
	require.Same(t, reg, pr.Registry())
}

func TestPrometheusRecorderNilSafe(t *testing.T) {
	var pr *PrometheusRecorder
	require.NotPanics(t, func() {
		pr.IncRunOutcome("failed")
		pr.ObserveCommandDuration("npm", time.Second, false)
		pr.SetQueueDepth(1)
	})
}

func TestWriteTextfile(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	pr.IncDeploySource("fallback")

	path := filepath.Join(t.TempDir(), "deploybuilder.prom")
	require.NoError(t, WriteTextfile(pr.Registry(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `deploybuilder_deploy_sources_total{source="fallback"} 1`)

	require.Error(t, WriteTextfile(nil, path))
}

func TestHTTPHandler(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	pr.IncProjectType("static")

	rec := httptest.NewRecorder()
	HTTPHandler(pr.Registry()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "deploybuilder_project_types_total")
}
