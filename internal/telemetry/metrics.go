package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	JobsCreated       = prometheus.NewCounter(prometheus.CounterOpts{Name: "escrow_jobs_created_total", Help: "Jobs created"})
	JobsFunded        = prometheus.NewCounter(prometheus.CounterOpts{Name: "escrow_jobs_funded_total", Help: "Jobs fully funded"})
	JobsCompleted     = prometheus.NewCounter(prometheus.CounterOpts{Name: "escrow_jobs_completed_total", Help: "Jobs completed and paid out"})
	JobsRefunded      = prometheus.NewCounter(prometheus.CounterOpts{Name: "escrow_jobs_refunded_total", Help: "Jobs refunded (cancel or timeout)"})
	DisputesOpened    = prometheus.NewCounter(prometheus.CounterOpts{Name: "escrow_disputes_opened_total", Help: "Disputes opened"})
	DisputesResolved  = prometheus.NewCounter(prometheus.CounterOpts{Name: "escrow_disputes_resolved_total", Help: "Disputes resolved by arbitration"})
	TransfersRejected = prometheus.NewCounter(prometheus.CounterOpts{Name: "escrow_transfers_rejected_total", Help: "Inbound transfers rejected (bad memo, duplicate, paused)"})
	PayoutFailures    = prometheus.NewCounter(prometheus.CounterOpts{Name: "escrow_payout_failures_total", Help: "Outbound transfers the ledger did not accept"})
)

// Handler exposes /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			JobsCreated,
			JobsFunded,
			JobsCompleted,
			JobsRefunded,
			DisputesOpened,
			DisputesResolved,
			TransfersRejected,
			PayoutFailures,
		)
	})
	return promhttp.Handler()
}
