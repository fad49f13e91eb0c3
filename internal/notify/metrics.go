package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bosswatch",
		Subsystem: "notify",
		Name:      "sends_total",
		Help:      "Notification send attempts by sink kind and outcome.",
	}, []string{"sink", "outcome"})

	dropsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bosswatch",
		Subsystem: "notify",
		Name:      "drops_total",
		Help:      "Notifications dropped because the dispatch queue was full.",
	})
)
