package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorderCounts(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.IncBuildStarted("app")
	pr.IncBuildStarted("app")
	pr.IncBuildOutcome("app", "success")
	pr.IncBuildOutcome("app", "failure")
	pr.IncBuildOutcome("app", "failure")
	pr.ObserveWait("timeout", 2*time.Second)
	pr.SetRunning(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(pr.buildsStarted.WithLabelValues("app")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.buildOutcomes.WithLabelValues("app", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(pr.buildOutcomes.WithLabelValues("app", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.waitResults.WithLabelValues("timeout")))
	assert.Equal(t, 3.0, testutil.ToFloat64(pr.running))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}

func TestPrometheusRecorderNilSafe(t *testing.T) {
	var pr *PrometheusRecorder
	assert.NotPanics(t, func() {
		pr.IncBuildStarted("x")
		pr.IncBuildOutcome("x", "success")
		pr.ObserveWait("success", time.Second)
		pr.SetRunning(1)
	})
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.SetRunning(1)

	srv := httptest.NewServer(HTTPHandler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "devwatch_devservers_running 1"))
}

func TestOrNoop(t *testing.T) {
	assert.Equal(t, NoopRecorder{}, OrNoop(nil))
	pr := NewPrometheusRecorder(nil)
	assert.Same(t, pr, OrNoop(pr))
}
