package main

import (
	"net/http"

	"github.com/Tutortoise/weapon-detection-service/model"
	"github.com/Tutortoise/weapon-detection-service/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "weapon_detector"

// poolStatsSource is implemented by model.SessionPool.
type poolStatsSource interface {
	Stats() model.PoolStats
	Available() int
}

type Metrics struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	detections      *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
}

// NewMetrics registers the service collectors on a private registry. pool may be nil.
func NewMetrics(pool poolStatsSource) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "detections_total",
			Help:      "Detections above the confidence threshold by class.",
		}, []string{"class"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"stage"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.detections,
		m.stageDuration,
	)

	if pool != nil {
		m.registerPool(pool)
	}
	return m
}

func (m *Metrics) registerPool(pool poolStatsSource) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "pool_size",
			Help:      "Number of model sessions in the pool.",
		}, func() float64 { return float64(pool.Stats().Size) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "pool_sessions_in_use",
			Help:      "Model sessions currently running inference.",
		}, func() float64 { return float64(pool.Stats().InUse) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "pool_sessions_available",
			Help:      "Idle model sessions.",
		}, func() float64 { return float64(pool.Available()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "pool_acquire_failures_total",
			Help:      "Session acquisitions that timed out or were cancelled.",
		}, func() float64 { return float64(pool.Stats().AcquireFailures) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "inferences_total",
			Help:      "Model forward passes.",
		}, func() float64 { return float64(pool.Stats().Inferences) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "inference_errors_total",
			Help:      "Model forward passes that failed.",
		}, func() float64 { return float64(pool.Stats().InferenceErrors) }),
	)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(route, method, code string, seconds float64) {
	m.requests.WithLabelValues(route, method, code).Inc()
	m.requestDuration.WithLabelValues(route).Observe(seconds)
}

// ObservePipeline records stage timings and per-class detection counts of a
// successful request.
func (m *Metrics) ObservePipeline(t *models.ProcessingTimings, batch models.DetectionBatch) {
	stages := map[string]float64{
		"decode":    t.Decode.Seconds(),
		"inference": t.Inference.Seconds(),
		"filter":    t.Filter.Seconds(),
		"annotate":  t.Annotate.Seconds(),
		"encode":    t.Encode.Seconds(),
		"total":     t.Total.Seconds(),
	}
	for stage, seconds := range stages {
		m.stageDuration.WithLabelValues(stage).Observe(seconds)
	}
	for _, det := range batch {
		m.detections.WithLabelValues(det.ClassName).Inc()
	}
}
