package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Send outcomes use the moderation vocabulary: allowed, warned, banned,
// rejected (validation) and failed (storage).
var (
	Sends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "msgd_sends_total",
		Help: "Send attempts by outcome.",
	}, []string{"outcome"})

	MessagesStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "msgd_messages_stored_total",
		Help: "Messages persisted to the log.",
	})

	Violations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "msgd_violations_total",
		Help: "Denylisted terms recorded against users.",
	})

	Bans = promauto.NewCounter(prometheus.CounterOpts{
		Name: "msgd_bans_total",
		Help: "Ban windows imposed.",
	})

	ActiveBans = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "msgd_active_bans",
		Help: "Users currently inside a ban window (refreshed by the sweep).",
	})
)
