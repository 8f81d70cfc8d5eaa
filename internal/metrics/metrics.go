package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every collector the engine exports. All fields are
// registered on construction. Components treat a nil *Metrics as
// metrics-disabled.
type Metrics struct {
	// Connection layer
	ConnectedChannels prometheus.Gauge
	ReconnectsTotal   *prometheus.CounterVec

	// Dispatch layer
	MessagesIngested *prometheus.CounterVec
	ParseErrorsTotal prometheus.Counter
	MessageRate      prometheus.Gauge
	RetainedMessages prometheus.Gauge

	// State layer
	SpotUpdatesApplied prometheus.Counter
	SpotUpdatesDropped prometheus.Counter
	LotRecomputes      prometheus.Counter

	// Alert and performance layers
	AlertsRaised  *prometheus.CounterVec
	UnreadAlerts  prometheus.Gauge
	LatencyMs     prometheus.Gauge
	UptimeSeconds prometheus.Gauge
}

// New creates the collector set and registers it on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectedChannels: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lotsync_connected_channels",
			Help: "Number of channels currently in the connected state.",
		}),
		ReconnectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lotsync_reconnects_total",
			Help: "Total reconnect attempts per channel.",
		}, []string{"channel"}),
		MessagesIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lotsync_messages_ingested_total",
			Help: "Total messages ingested by the dispatcher, by event type.",
		}, []string{"type"}),
		ParseErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lotsync_parse_errors_total",
			Help: "Total payloads that failed to parse.",
		}),
		MessageRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lotsync_message_rate",
			Help: "Messages per second over the last rate window.",
		}),
		RetainedMessages: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lotsync_retained_messages",
			Help: "Messages currently held in the retained dispatch log.",
		}),
		SpotUpdatesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lotsync_spot_updates_applied_total",
			Help: "Spot status updates applied to the working set.",
		}),
		SpotUpdatesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lotsync_spot_updates_dropped_total",
			Help: "Spot status updates dropped because the spot is unknown.",
		}),
		LotRecomputes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lotsync_lot_recomputes_total",
			Help: "Lot aggregate recomputations.",
		}),
		AlertsRaised: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lotsync_alerts_raised_total",
			Help: "Alerts raised, by severity.",
		}, []string{"severity"}),
		UnreadAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lotsync_unread_alerts",
			Help: "Alerts not yet acknowledged.",
		}),
		LatencyMs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lotsync_latency_ms",
			Help: "Last measured push-channel round-trip latency in milliseconds.",
		}),
		UptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lotsync_connection_uptime_seconds",
			Help: "Accumulated seconds with at least one connected channel.",
		}),
	}

	reg.MustRegister(
		m.ConnectedChannels,
		m.ReconnectsTotal,
		m.MessagesIngested,
		m.ParseErrorsTotal,
		m.MessageRate,
		m.RetainedMessages,
		m.SpotUpdatesApplied,
		m.SpotUpdatesDropped,
		m.LotRecomputes,
		m.AlertsRaised,
		m.UnreadAlerts,
		m.LatencyMs,
		m.UptimeSeconds,
	)

	return m
}
