package observability

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Snapshot is the process-lifetime counter view served on /stats.
type Snapshot struct {
	TwilioConnections int64 `json:"twilioConnections"`
	ElevenConnections int64 `json:"elevenConnections"`
	BytesFromTwilio   int64 `json:"bytesFromTwilio"`
	BytesToTwilio     int64 `json:"bytesToTwilio"`
	ChunksFrom11L     int64 `json:"chunksFrom11L"`
	ChunksFromTwilio  int64 `json:"chunksFromTwilio"`
}

// Metrics counts bridge traffic. Every counter is kept twice: an atomic for
// the JSON snapshot and a Prometheus instrument for scraping. Counters only
// ever increase.
type Metrics struct {
	registry *prometheus.Registry
	latency  *latencyWindow

	twilioConnections atomic.Int64
	elevenConnections atomic.Int64
	bytesFromTwilio   atomic.Int64
	bytesToTwilio     atomic.Int64
	chunksFrom11L     atomic.Int64
	chunksFromTwilio  atomic.Int64

	ActiveSessions prometheus.Gauge
	SessionEvents  *prometheus.CounterVec
	Connections    *prometheus.CounterVec
	AudioBytes     *prometheus.CounterVec
	AudioChunks    *prometheus.CounterVec
	DroppedChunks  *prometheus.CounterVec
	StageLatency   *prometheus.HistogramVec
}

func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		latency:  newLatencyWindow(256),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of bridged calls currently open.",
		}),
		SessionEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session lifecycle events by type.",
		}, []string{"event"}),
		Connections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Accepted or dialed WebSocket connections by leg.",
		}, []string{"leg"}),
		AudioBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_total",
			Help:      "Telephony audio bytes by direction.",
		}, []string{"direction"}),
		AudioChunks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_total",
			Help:      "Audio messages received by leg.",
		}, []string{"leg"}),
		DroppedChunks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_messages_total",
			Help:      "Messages dropped by leg and reason.",
		}, []string{"leg", "reason"}),
		StageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_latency_ms",
			Help:      "Per-call stage latency in milliseconds.",
			Buckets:   []float64{50, 100, 200, 400, 800, 1200, 2000, 3500, 5000},
		}, []string{"stage"}),
	}
}

func (m *Metrics) InboundConnected() {
	m.twilioConnections.Add(1)
	m.Connections.WithLabelValues("twilio").Inc()
}

func (m *Metrics) OutboundConnected() {
	m.elevenConnections.Add(1)
	m.Connections.WithLabelValues("elevenlabs").Inc()
}

// InboundAudio records one media envelope carrying n decoded μ-law bytes.
func (m *Metrics) InboundAudio(n int) {
	m.bytesFromTwilio.Add(int64(n))
	m.chunksFromTwilio.Add(1)
	m.AudioBytes.WithLabelValues("from_twilio").Add(float64(n))
	m.AudioChunks.WithLabelValues("twilio").Inc()
}

// OutboundAudio records one audio message received from the agent.
func (m *Metrics) OutboundAudio() {
	m.chunksFrom11L.Add(1)
	m.AudioChunks.WithLabelValues("elevenlabs").Inc()
}

// BytesToInbound records n μ-law bytes written to the telephony leg.
func (m *Metrics) BytesToInbound(n int) {
	m.bytesToTwilio.Add(int64(n))
	m.AudioBytes.WithLabelValues("to_twilio").Add(float64(n))
}

func (m *Metrics) SessionEvent(event string) {
	m.SessionEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) Dropped(leg, reason string) {
	m.DroppedChunks.WithLabelValues(leg, reason).Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	m.ActiveSessions.Set(float64(n))
}

func (m *Metrics) ObserveLatency(stage string, d time.Duration) {
	ms := float64(d.Microseconds()) / 1000
	m.latency.Observe(stage, ms)
	m.StageLatency.WithLabelValues(stage).Observe(ms)
}

func (m *Metrics) Latency() LatencySnapshot {
	return m.latency.Snapshot()
}

func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		TwilioConnections: m.twilioConnections.Load(),
		ElevenConnections: m.elevenConnections.Load(),
		BytesFromTwilio:   m.bytesFromTwilio.Load(),
		BytesToTwilio:     m.bytesToTwilio.Load(),
		ChunksFrom11L:     m.chunksFrom11L.Load(),
		ChunksFromTwilio:  m.chunksFromTwilio.Load(),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
