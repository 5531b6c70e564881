package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"omechat/backend/internal/models"
)

const (
	namespace = "omechat"

	reasonLabelName = "reason"
	kindLabelName   = "kind"
)

// Engine holds the collectors of one matchmaking engine. The process-wide
// engine reports to Default; NewEngine gives an isolated set.
type Engine struct {
	OnlineSessions     prometheus.Gauge
	QueueSize          prometheus.Gauge
	ActiveConnections  prometheus.Gauge
	RegisteredChannels prometheus.Gauge
	MatchesTotal       prometheus.Counter
	MatchEndedTotal    *prometheus.CounterVec
}

// NewEngine builds an unregistered collector set.
func NewEngine() *Engine {
	return &Engine{
		OnlineSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "online_sessions",
				Help:      "sessions that are queued or matched",
			}),
		QueueSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queue_size",
				Help:      "sessions waiting for a partner",
			}),
		ActiveConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_connections",
				Help:      "matched pairs currently live",
			}),
		RegisteredChannels: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "registered_channels",
				Help:      "signaling channels registered with the engine",
			}),
		MatchesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "matches_total",
				Help:      "pairs created by the matchmaking engine",
			}),
		MatchEndedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "match_ended_total",
				Help:      "connections torn down, by reason",
			}, []string{reasonLabelName}),
	}
}

// Observe sets the gauges from an engine snapshot.
func (e *Engine) Observe(s models.OnlineStats) {
	e.OnlineSessions.Set(float64(s.OnlineCount))
	e.QueueSize.Set(float64(s.QueueSize))
	e.ActiveConnections.Set(float64(s.ActiveConnections))
	e.RegisteredChannels.Set(float64(s.Registered))
}

func (e *Engine) MatchCreated() { e.MatchesTotal.Inc() }

func (e *Engine) MatchEnded(reason models.EndedReason) {
	e.MatchEndedTotal.WithLabelValues(string(reason)).Inc()
}

func (e *Engine) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		e.OnlineSessions,
		e.QueueSize,
		e.ActiveConnections,
		e.RegisteredChannels,
		e.MatchesTotal,
		e.MatchEndedTotal,
	}
}

// Default is the engine registered by Register.
var Default = NewEngine()

// Relay counters are additive, so every engine in the process shares them.
var (
	RelayedMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relayed_messages_total",
			Help:      "signaling and chat frames delivered to a partner, by kind",
		}, []string{kindLabelName})

	DroppedMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_messages_total",
			Help:      "frames that were not delivered, by reason",
		}, []string{reasonLabelName})
)

// Drop reasons.
const (
	DropNoPartner   = "no_partner"
	DropSendFailed  = "send_failed"
	DropStale       = "stale_connection"
	DropMalformed   = "malformed"
	DropUnknownType = "unknown_type"
)

// Register registers the Default engine and the relay counters with r.
func Register(r prometheus.Registerer) {
	r.MustRegister(Default.collectors()...)
	r.MustRegister(RelayedMessagesTotal)
	r.MustRegister(DroppedMessagesTotal)
}
