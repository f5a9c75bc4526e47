package monitor

import (
	"math"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soocke/study-buddy-go/domain/distraction"
)

// Metrics holds loop counters and exposes them through a private Prometheus registry.
type Metrics struct {
	FramesRead      atomic.Uint64
	FramesProcessed atomic.Uint64
	FramesSkipped   atomic.Uint64
	DetectorErrors  atomic.Uint64
	PhoneAlerts     atomic.Uint64
	DozingAlerts    atomic.Uint64
	SinkRecords     atomic.Uint64
	SinkDropped     atomic.Uint64
	FrameLatencyMs  atomic.Uint64 // latest end-to-end processing time
	eyeOpenness     atomic.Uint64 // float64 bits, NaN when unmeasured

	registry *prometheus.Registry
}

// NewMetrics creates the counters and registers them. hub may be nil.
func NewMetrics(hub *Hub) *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.eyeOpenness.Store(math.Float64bits(math.NaN()))
	m.register(hub)
	return m
}

func (m *Metrics) register(hub *Hub) {
	counter := func(name, help string, v *atomic.Uint64) {
		m.registry.MustRegister(prometheus.NewCounterFunc(
			prometheus.CounterOpts{Name: name, Help: help},
			func() float64 { return float64(v.Load()) },
		))
	}
	counter("studybuddy_frames_read_total", "Frames read from the capture source", &m.FramesRead)
	counter("studybuddy_frames_processed_total", "Frames that completed detection", &m.FramesProcessed)
	counter("studybuddy_frames_skipped_total", "Frames skipped after a detector failure", &m.FramesSkipped)
	counter("studybuddy_detector_errors_total", "Object or face detector failures", &m.DetectorErrors)
	counter("studybuddy_sink_records_total", "Alerts handed to the event sink", &m.SinkRecords)
	counter("studybuddy_sink_dropped_total", "Alerts dropped because the sink queue was full", &m.SinkDropped)

	alerts := prometheus.NewDesc("studybuddy_alerts_total", "Alerts emitted by kind", []string{"kind"}, nil)
	m.registry.MustRegister(&alertCollector{m: m, desc: alerts})

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: "studybuddy_frame_latency_ms", Help: "Processing time of the latest frame in milliseconds"},
		func() float64 { return float64(m.FrameLatencyMs.Load()) },
	))
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: "studybuddy_eye_openness", Help: "Latest eye aspect ratio, NaN when no face"},
		func() float64 { return m.EyeOpenness() },
	))
	if hub != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: "studybuddy_subscribers", Help: "Active UI subscribers"},
			func() float64 { return float64(hub.Subscribers()) },
		))
		m.registry.MustRegister(prometheus.NewCounterFunc(
			prometheus.CounterOpts{Name: "studybuddy_events_dropped_total", Help: "Events dropped for slow subscribers"},
			func() float64 { return float64(hub.Dropped()) },
		))
	}
}

// alertCollector reports per-kind alert counts as one labeled counter.
type alertCollector struct {
	m    *Metrics
	desc *prometheus.Desc
}

func (c *alertCollector) Describe(ch chan<- *prometheus.Desc) { ch <- c.desc }

func (c *alertCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(c.m.PhoneAlerts.Load()), distraction.PhoneUse.Slug())
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(c.m.DozingAlerts.Load()), distraction.Dozing.Slug())
}

// CountAlert increments the counter for kind.
func (m *Metrics) CountAlert(kind distraction.AlertKind) {
	if m == nil {
		return
	}
	switch kind {
	case distraction.PhoneUse:
		m.PhoneAlerts.Add(1)
	case distraction.Dozing:
		m.DozingAlerts.Add(1)
	}
}

// SetEyeOpenness records the latest measurement.
func (m *Metrics) SetEyeOpenness(v float64, ok bool) {
	if m == nil {
		return
	}
	if !ok {
		v = math.NaN()
	}
	m.eyeOpenness.Store(math.Float64bits(v))
}

// EyeOpenness returns the latest measurement or NaN.
func (m *Metrics) EyeOpenness() float64 { return math.Float64frombits(m.eyeOpenness.Load()) }

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
