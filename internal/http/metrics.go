package http

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	SearchesTotal         *prometheus.CounterVec
	PlayCommandsTotal     *prometheus.CounterVec
	LibraryMutationsTotal *prometheus.CounterVec
	DeviceEventsTotal     *prometheus.CounterVec
	ErrorsTotal           *prometheus.CounterVec
	SearchDuration        *prometheus.HistogramVec
	DeviceReady           prometheus.Gauge
	Volume                prometheus.Gauge
	LibrarySize           prometheus.Gauge
}

// NewMetrics builds and registers the metric set. Tests pass their own
// registry to avoid collisions on the global one.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		SearchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "thecrate_searches_total",
				Help: "Total number of recommendation searches",
			},
			[]string{"kind", "status"},
		),
		PlayCommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "thecrate_play_commands_total",
				Help: "Total number of playback commands issued",
			},
			[]string{"command", "status"},
		),
		LibraryMutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "thecrate_library_mutations_total",
				Help: "Total number of library mutations",
			},
			[]string{"operation", "status"},
		),
		DeviceEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "thecrate_device_events_total",
				Help: "Total number of playback device events received",
			},
			[]string{"type"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "thecrate_errors_total",
				Help: "Total number of errors",
			},
			[]string{"component", "type"},
		),
		SearchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "thecrate_search_duration_seconds",
				Help:    "Time spent resolving recommendation searches",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		DeviceReady: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "thecrate_device_ready",
				Help: "Whether the playback device is registered and addressable",
			},
		),
		Volume: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "thecrate_volume",
				Help: "Current playback volume, 0 to 100",
			},
		),
		LibrarySize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "thecrate_library_size",
				Help: "Current number of saved tracks",
			},
		),
	}

	registerer.MustRegister(
		metrics.SearchesTotal,
		metrics.PlayCommandsTotal,
		metrics.LibraryMutationsTotal,
		metrics.DeviceEventsTotal,
		metrics.ErrorsTotal,
		metrics.SearchDuration,
		metrics.DeviceReady,
		metrics.Volume,
		metrics.LibrarySize,
	)

	return metrics
}

func (m *Metrics) RecordSearch(kind, status string, duration time.Duration) {
	m.SearchesTotal.WithLabelValues(kind, status).Inc()
	m.SearchDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func (m *Metrics) RecordPlayCommand(command, status string) {
	m.PlayCommandsTotal.WithLabelValues(command, status).Inc()
}

func (m *Metrics) RecordLibraryMutation(operation, status string) {
	m.LibraryMutationsTotal.WithLabelValues(operation, status).Inc()
}

func (m *Metrics) RecordDeviceEvent(eventType string) {
	m.DeviceEventsTotal.WithLabelValues(eventType).Inc()
}

func (m *Metrics) RecordError(component, errorType string) {
	m.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

func (m *Metrics) SetDeviceReady(ready bool) {
	if ready {
		m.DeviceReady.Set(1)
	} else {
		m.DeviceReady.Set(0)
	}
}

func (m *Metrics) SetVolume(volume int) {
	m.Volume.Set(float64(volume))
}

func (m *Metrics) SetLibrarySize(size int) {
	m.LibrarySize.Set(float64(size))
}
