package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the pdo_ collectors. Every method is safe on a nil *Registry
// so callers may run without metrics.
type Registry struct {
	reg *prometheus.Registry

	PipelineRuns         prometheus.Counter
	PipelineDurationSec  prometheus.Histogram
	AcquisitionFallbacks prometheus.Counter
	Records              *prometheus.CounterVec
	AlertsEmitted        prometheus.Counter

	RestoreApplied     prometheus.Counter
	RestoreSkipped     prometheus.Counter
	TTRSec             prometheus.Gauge
	LastManifestAgeSec prometheus.Gauge

	// scorer transactional metrics
	TxProduced   prometheus.Counter
	TxAborted    prometheus.Counter
	TxLatencySec prometheus.Histogram
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	runs := prometheus.NewCounter(prometheus.CounterOpts{Name: "pdo_pipeline_runs_total"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pdo_pipeline_duration_seconds",
		Buckets: prometheus.DefBuckets,
	})
	fallbacks := prometheus.NewCounter(prometheus.CounterOpts{Name: "pdo_acquisition_fallbacks_total"})
	records := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "pdo_records_total"}, []string{"outcome"})
	alerts := prometheus.NewCounter(prometheus.CounterOpts{Name: "pdo_alerts_emitted_total"})

	applied := prometheus.NewCounter(prometheus.CounterOpts{Name: "pdo_restore_applied_total"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{Name: "pdo_restore_skipped_total"})
	ttr := prometheus.NewGauge(prometheus.GaugeOpts{Name: "pdo_recovery_ttr_seconds"})
	lastAge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "pdo_last_manifest_age_seconds"})

	txProduced := prometheus.NewCounter(prometheus.CounterOpts{Name: "pdo_tx_produced_total"})
	txAborted := prometheus.NewCounter(prometheus.CounterOpts{Name: "pdo_tx_aborted_total"})
	txLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pdo_tx_latency_seconds",
		Buckets: prometheus.DefBuckets,
	})

	r.MustRegister(runs, duration, fallbacks, records, alerts, applied, skipped, ttr, lastAge, txProduced, txAborted, txLatency)
	return &Registry{
		reg:                  r,
		PipelineRuns:         runs,
		PipelineDurationSec:  duration,
		AcquisitionFallbacks: fallbacks,
		Records:              records,
		AlertsEmitted:        alerts,
		RestoreApplied:       applied,
		RestoreSkipped:       skipped,
		TTRSec:               ttr,
		LastManifestAgeSec:   lastAge,
		TxProduced:           txProduced,
		TxAborted:            txAborted,
		TxLatencySec:         txLatency,
	}
}

func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObservePipeline records one dashboard computation.
func (r *Registry) ObservePipeline(d time.Duration, scored, unscored int) {
	if r == nil {
		return
	}
	r.PipelineRuns.Inc()
	r.PipelineDurationSec.Observe(d.Seconds())
	r.Records.WithLabelValues("scored").Add(float64(scored))
	r.Records.WithLabelValues("unscored").Add(float64(unscored))
}

func (r *Registry) Fallback() {
	if r == nil {
		return
	}
	r.AcquisitionFallbacks.Inc()
}

func (r *Registry) Alerts(n int) {
	if r == nil {
		return
	}
	r.AlertsEmitted.Add(float64(n))
}

// ObserveRestore records a warm start.
func (r *Registry) ObserveRestore(applied, skipped int, ttr, manifestAge time.Duration) {
	if r == nil {
		return
	}
	r.RestoreApplied.Add(float64(applied))
	r.RestoreSkipped.Add(float64(skipped))
	r.TTRSec.Set(ttr.Seconds())
	r.LastManifestAgeSec.Set(manifestAge.Seconds())
}

func (r *Registry) TxCommitted(latency time.Duration) {
	if r == nil {
		return
	}
	r.TxProduced.Inc()
	r.TxLatencySec.Observe(latency.Seconds())
}

func (r *Registry) TxAbort() {
	if r == nil {
		return
	}
	r.TxAborted.Inc()
}
