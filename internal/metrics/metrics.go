package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_messages_total",
			Help: "Decoded messages by notification type and delivery status",
		},
		[]string{"type", "result"}, // email|sms , sent|failed
	)

	FailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_failures_total",
			Help: "Processing failures by kind",
		},
		[]string{"kind"}, // decode|processing|external|invalid_response|unclassified
	)

	DeletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "delivery_deleted_total",
			Help: "Messages deleted from their queue",
		},
	)

	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_cycles_total",
			Help: "Completed queue cycles by result",
		},
		[]string{"result"}, // ok|error|panic
	)

	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "delivery_cycle_duration_seconds",
			Help:    "Wall time of one queue cycle",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		MessagesTotal,
		FailuresTotal,
		DeletedTotal,
		CyclesTotal,
		CycleDuration,
	)
}
