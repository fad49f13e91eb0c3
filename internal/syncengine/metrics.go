package syncengine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bosswatch",
		Subsystem: "sync",
		Name:      "cycles_total",
		Help:      "Completed sync cycles by outcome.",
	}, []string{"outcome"})

	skippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bosswatch",
		Subsystem: "sync",
		Name:      "skipped_cycles_total",
		Help:      "Ticks skipped because a cycle was still in flight.",
	})

	uploadedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bosswatch",
		Subsystem: "sync",
		Name:      "records_uploaded_total",
		Help:      "Records uploaded to the remote store.",
	})

	appliedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bosswatch",
		Subsystem: "sync",
		Name:      "records_applied_total",
		Help:      "Downloaded records that changed local state.",
	})
)
