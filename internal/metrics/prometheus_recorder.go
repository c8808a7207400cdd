package metrics

import (
	"errors"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	packageDuration *prom.HistogramVec
	packageOutcome  *prom.CounterVec
	cellDuration    *prom.HistogramVec
	cellOutcome     *prom.CounterVec
	cloneRetries    *prom.CounterVec
}

// NewPrometheusRecorder constructs a recorder and registers its metrics on reg
// (the default registerer when nil). Constructing a second recorder on the
// same registry reuses the collectors already registered there.
func NewPrometheusRecorder(reg prom.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	return &PrometheusRecorder{
		packageDuration: register(reg, prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "cxxpack",
			Name:      "package_build_duration_seconds",
			Help:      "Duration of individual package builds by final stage",
			Buckets:   prom.ExponentialBuckets(1, 2, 12),
		}, []string{"package", "stage"})),
		packageOutcome: register(reg, prom.NewCounterVec(prom.CounterOpts{
			Namespace: "cxxpack",
			Name:      "package_outcomes_total",
			Help:      "Package outcomes by final state",
		}, []string{"state"})),
		cellDuration: register(reg, prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "cxxpack",
			Name:      "cell_duration_seconds",
			Help:      "Duration of matrix cell runs",
			Buckets:   prom.ExponentialBuckets(10, 2, 12),
		}, []string{"cell", "result"})),
		cellOutcome: register(reg, prom.NewCounterVec(prom.CounterOpts{
			Namespace: "cxxpack",
			Name:      "cell_outcomes_total",
			Help:      "Cell outcomes by success/failure",
		}, []string{"result"})),
		cloneRetries: register(reg, prom.NewCounterVec(prom.CounterOpts{
			Namespace: "cxxpack",
			Name:      "clone_retries_total",
			Help:      "Clone retry attempts beyond the first, per package",
		}, []string{"package"})),
	}
}

// register adds c to reg, returning the existing collector when one with the
// same descriptor is already registered.
func register[C prom.Collector](reg prom.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prom.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector.(C)
		}
		panic(err)
	}
	return c
}

func (p *PrometheusRecorder) ObservePackageDuration(pkg, stage string, d time.Duration) {
	if p == nil || p.packageDuration == nil {
		return
	}
	p.packageDuration.WithLabelValues(pkg, stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncPackageOutcome(state string) {
	if p == nil || p.packageOutcome == nil {
		return
	}
	p.packageOutcome.WithLabelValues(state).Inc()
}

func (p *PrometheusRecorder) ObserveCellDuration(cell string, d time.Duration, success bool) {
	if p == nil || p.cellDuration == nil {
		return
	}
	p.cellDuration.WithLabelValues(cell, resultLabel(success)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncCellOutcome(success bool) {
	if p == nil || p.cellOutcome == nil {
		return
	}
	p.cellOutcome.WithLabelValues(resultLabel(success)).Inc()
}

func (p *PrometheusRecorder) IncCloneRetry(pkg string) {
	if p == nil || p.cloneRetries == nil {
		return
	}
	p.cloneRetries.WithLabelValues(pkg).Inc()
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}
