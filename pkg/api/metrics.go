package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects counters for the streaming pipeline.
type Metrics struct {
	Connections   prometheus.Gauge
	TurnsTotal    *prometheus.CounterVec
	FramesTotal   *prometheus.CounterVec
	BytesStreamed prometheus.Counter
	TurnDuration  prometheus.Histogram
}

// NewMetrics registers the pipeline metrics on the given registerer.
// A nil registerer uses the default registry. Tests pass their own
// registry so repeated construction does not collide.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Connections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rikugan_ws_connections",
			Help: "Number of currently open WebSocket connections.",
		}),
		TurnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rikugan_turns_total",
			Help: "Number of inference turns processed, by outcome.",
		}, []string{"outcome"}),
		FramesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rikugan_frames_sent_total",
			Help: "Number of protocol frames sent, by message type.",
		}, []string{"type"}),
		BytesStreamed: factory.NewCounter(prometheus.CounterOpts{
			Name: "rikugan_bytes_streamed_total",
			Help: "Total payload bytes sent over WebSocket connections.",
		}),
		TurnDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "rikugan_turn_duration_seconds",
			Help:    "Wall-clock duration of inference turns.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
