package sip

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Package-level transaction metrics, registered against the default
// registry so a process embedding this package gets them for free on its
// existing /metrics endpoint.
var (
	txCreatedTotal = promauto.With(prometheus.DefaultRegisterer).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sip",
			Subsystem: "transaction",
			Name:      "created_total",
			Help:      "Transactions created, by side (client/server).",
		},
		[]string{"side"},
	)

	txRetransmitsTotal = promauto.With(prometheus.DefaultRegisterer).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sip",
			Subsystem: "transaction",
			Name:      "retransmits_total",
			Help:      "Request/response retransmissions sent by a transaction's own timers.",
		},
		[]string{"side"},
	)

	txTimeoutsTotal = promauto.With(prometheus.DefaultRegisterer).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sip",
			Subsystem: "transaction",
			Name:      "timeouts_total",
			Help:      "Transactions that terminated on a timeout timer (Timer B/F/H).",
		},
		[]string{"side"},
	)

	txActive = promauto.With(prometheus.DefaultRegisterer).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "sip",
			Subsystem: "transaction",
			Name:      "active",
			Help:      "Transactions currently held in the transaction table.",
		},
		[]string{"side"},
	)
)

func metricTxCreated(side string) {
	txCreatedTotal.WithLabelValues(side).Inc()
	txActive.WithLabelValues(side).Inc()
}

func metricTxDropped(side string) {
	txActive.WithLabelValues(side).Dec()
}

func metricRetransmit(side string) {
	txRetransmitsTotal.WithLabelValues(side).Inc()
}

func metricTimeout(side string) {
	txTimeoutsTotal.WithLabelValues(side).Inc()
}
