package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "devwatch"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	buildsStarted *prom.CounterVec
	buildOutcomes *prom.CounterVec
	waitResults   *prom.CounterVec
	waitDuration  prom.Histogram
	running       prom.Gauge
}

// NewPrometheusRecorder constructs the collectors and registers them on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		buildsStarted: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "builds_started_total",
			Help:      "Rebuilds observed per project",
		}, []string{"project"}),
		buildOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_outcomes_total",
			Help:      "Settled builds by project and status",
		}, []string{"project", "status"}),
		waitResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "wait_results_total",
			Help:      "Wait-for-build calls by returned status",
		}, []string{"status"}),
		waitDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "wait_duration_seconds",
			Help:      "Time spent in wait-for-build calls",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 180, 300},
		}),
		running: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "devservers_running",
			Help:      "Dev servers currently supervised",
		}),
	}
	reg.MustRegister(pr.buildsStarted, pr.buildOutcomes, pr.waitResults, pr.waitDuration, pr.running)
	return pr
}

func (p *PrometheusRecorder) IncBuildStarted(project string) {
	if p == nil || p.buildsStarted == nil {
		return
	}
	p.buildsStarted.WithLabelValues(project).Inc()
}

func (p *PrometheusRecorder) IncBuildOutcome(project, status string) {
	if p == nil || p.buildOutcomes == nil {
		return
	}
	p.buildOutcomes.WithLabelValues(project, status).Inc()
}

func (p *PrometheusRecorder) ObserveWait(status string, d time.Duration) {
	if p == nil || p.waitResults == nil {
		return
	}
	p.waitResults.WithLabelValues(status).Inc()
	p.waitDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetRunning(n int) {
	if p == nil || p.running == nil {
		return
	}
	p.running.Set(float64(n))
}

// HTTPHandler serves the metrics gathered by reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
