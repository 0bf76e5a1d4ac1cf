package state

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	blocksAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_blocks_appended_total",
		Help: "Total blocks appended by payload type.",
	}, []string{"type"})

	appendFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_append_failures_total",
		Help: "Total failed appends by payload type.",
	}, []string{"type"})

	chainLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ledger_chain_length",
		Help: "Number of blocks in the chain, genesis included.",
	})

	haltedGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ledger_halted",
		Help: "Set to 1 once the ledger halted after an integrity violation.",
	})

	verifyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledger_verify_duration_seconds",
		Help:    "Time spent walking the full chain.",
		Buckets: prometheus.DefBuckets,
	})
)
