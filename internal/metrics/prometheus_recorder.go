package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "deploybuilder"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	reg             *prom.Registry
	stageDuration   *prom.HistogramVec
	runDuration     prom.Histogram
	runOutcome      *prom.CounterVec
	projectTypes    *prom.CounterVec
	deploySources   *prom.CounterVec
	commandDuration *prom.HistogramVec
	queueDepth      prom.Gauge
}

// NewPrometheusRecorder constructs the collectors and registers them on reg.
// A nil reg gets a fresh registry, available through Registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{reg: reg}
	pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Duration of individual pipeline stages",
		Buckets:   prom.DefBuckets,
	}, []string{"stage"})
	pr.runDuration = prom.NewHistogram(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Total pipeline run duration",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
	})
	pr.runOutcome = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "run_outcomes_total",
		Help:      "Pipeline runs by build outcome",
	}, []string{"outcome"})
	pr.projectTypes = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "project_types_total",
		Help:      "Classified projects by type",
	}, []string{"type"})
	pr.deploySources = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "deploy_sources_total",
		Help:      "Staged deployments by content source",
	}, []string{"source"})
	pr.commandDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "command_duration_seconds",
		Help:      "Duration of external build commands",
		Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"command", "result"})
	pr.queueDepth = prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Deploy jobs waiting for a worker",
	})
	reg.MustRegister(pr.stageDuration, pr.runDuration, pr.runOutcome, pr.projectTypes, pr.deploySources, pr.commandDuration, pr.queueDepth)
	return pr
}

// Registry returns the registry the collectors are registered on.
func (p *PrometheusRecorder) Registry() *prom.Registry { return p.reg }

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRunOutcome(outcome string) {
	if p == nil || p.runOutcome == nil {
		return
	}
	p.runOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncProjectType(projectType string) {
	if p == nil || p.projectTypes == nil {
		return
	}
	p.projectTypes.WithLabelValues(projectType).Inc()
}

func (p *PrometheusRecorder) IncDeploySource(source string) {
	if p == nil || p.deploySources == nil {
		return
	}
	p.deploySources.WithLabelValues(source).Inc()
}

func (p *PrometheusRecorder) ObserveCommandDuration(command string, d time.Duration, success bool) {
	if p == nil || p.commandDuration == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.commandDuration.WithLabelValues(command, res).Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetQueueDepth(n int) {
	if p == nil || p.queueDepth == nil {
		return
	}
	p.queueDepth.Set(float64(n))
}
