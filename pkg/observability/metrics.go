package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the forest service
type Metrics struct {
	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Augmentation build metrics
	BuildsTotal   *prometheus.CounterVec
	BuildDuration prometheus.Histogram
	BuildErrors   *prometheus.CounterVec

	// Forest metrics
	LocalQuadrants prometheus.Gauge
	GhostQuadrants prometheus.Gauge

	// Virtual layer metrics
	LocalVirtualHosts  prometheus.Gauge
	GhostVirtualHosts  prometheus.Gauge
	AugmentationMemory prometheus.Gauge
	MirrorSlots        prometheus.Gauge
	MirrorSlotsFlagged prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return newMetrics(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates the metrics against a caller-supplied registerer
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	return newMetrics(reg)
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quadforest_requests_total",
				Help: "Total number of HTTP requests by path and status",
			},
			[]string{"path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quadforest_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"path"},
		),
		BuildsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quadforest_augmentation_builds_total",
				Help: "Total number of augmentation builds by connectivity",
			},
			[]string{"connectivity"},
		),
		BuildDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "quadforest_augmentation_build_seconds",
				Help:    "Augmentation build duration in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
		),
		BuildErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quadforest_augmentation_build_errors_total",
				Help: "Total number of failed augmentation builds by reason",
			},
			[]string{"reason"},
		),
		LocalQuadrants: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "quadforest_local_quadrants",
				Help: "Number of quadrants owned by this rank",
			},
		),
		GhostQuadrants: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "quadforest_ghost_quadrants",
				Help: "Number of ghost quadrants replicated on this rank",
			},
		),
		LocalVirtualHosts: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "quadforest_local_virtual_hosts",
				Help: "Number of owned quadrants hosting virtual children",
			},
		),
		GhostVirtualHosts: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "quadforest_ghost_virtual_hosts",
				Help: "Number of ghost quadrants hosting virtual children",
			},
		),
		AugmentationMemory: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "quadforest_augmentation_memory_bytes",
				Help: "Memory held by the virtual augmentation in bytes",
			},
		),
		MirrorSlots: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "quadforest_mirror_slots",
				Help: "Total mirror slots across all destination ranks",
			},
		),
		MirrorSlotsFlagged: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "quadforest_mirror_slots_flagged",
				Help: "Mirror slots whose destination rank expects virtual payload",
			},
		),
	}
}

// RecordBuild observes one successful augmentation build
func (m *Metrics) RecordBuild(connectivity string, duration time.Duration, memoryBytes int) {
	m.BuildsTotal.WithLabelValues(connectivity).Inc()
	m.BuildDuration.Observe(duration.Seconds())
	m.AugmentationMemory.Set(float64(memoryBytes))
}

// RecordRequest observes one HTTP request
func (m *Metrics) RecordRequest(path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(path, status).Inc()
	m.RequestDuration.WithLabelValues(path).Observe(duration.Seconds())
}
