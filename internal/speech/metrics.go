package speech

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hammamikhairi/navcompanion/internal/domain"
)

// Metrics instruments the announcement pipeline. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	announcements *prometheus.CounterVec
	renders       *prometheus.CounterVec
	renderLatency *prometheus.HistogramVec
	pending       prometheus.Gauge
	active        prometheus.Gauge
}

// NewMetrics registers the pipeline collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		announcements: f.NewCounterVec(prometheus.CounterOpts{
			Name: "navcompanion_announcements_total",
			Help: "Announcements by final outcome",
		}, []string{"outcome"}),
		renders: f.NewCounterVec(prometheus.CounterOpts{
			Name: "navcompanion_transport_renders_total",
			Help: "Transport render attempts",
		}, []string{"transport", "status"}),
		renderLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "navcompanion_render_seconds",
			Help:    "Time from render start to playback end",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16},
		}, []string{"transport"}),
		pending: f.NewGauge(prometheus.GaugeOpts{
			Name: "navcompanion_pending_announcements",
			Help: "Announcements waiting to be spoken",
		}),
		active: f.NewGauge(prometheus.GaugeOpts{
			Name: "navcompanion_active_announcement",
			Help: "1 while an announcement is being rendered",
		}),
	}
}

func (m *Metrics) countOutcome(o domain.Outcome) {
	if m == nil {
		return
	}
	m.announcements.WithLabelValues(o.String()).Inc()
}

func (m *Metrics) observeRender(transport string, err error, d time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.renders.WithLabelValues(transport, status).Inc()
	if err == nil {
		m.renderLatency.WithLabelValues(transport).Observe(d.Seconds())
	}
}

func (m *Metrics) setPending(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}

func (m *Metrics) setActive(on bool) {
	if m == nil {
		return
	}
	if on {
		m.active.Set(1)
		return
	}
	m.active.Set(0)
}
