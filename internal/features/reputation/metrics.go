package reputation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var ledgerConflicts = promauto.NewCounter(prometheus.CounterOpts{
	Name: "guardian_ledger_conflicts_total",
	Help: "Number of reputation ledger updates retried after a concurrency conflict",
})
