package ledger

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type runtimeMetrics struct {
	transactionsTotal   *prometheus.CounterVec
	transactionDuration prometheus.Histogram
	slot                prometheus.Gauge
	programErrorsTotal  *prometheus.CounterVec
	airdropsTotal       prometheus.Counter
}

func newRuntimeMetrics(registry prometheus.Registerer) *runtimeMetrics {
	promautoFactory := promauto.With(registry)
	return &runtimeMetrics{
		transactionsTotal: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pow_ledger_transactions_total",
				Help: "Total number of submitted transactions",
			},
			[]string{"status"},
		),
		transactionDuration: promautoFactory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pow_ledger_transaction_duration_seconds",
				Help:    "Duration of transaction execution",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~1.6s
			},
		),
		slot: promautoFactory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pow_ledger_slot",
				Help: "Current ledger slot",
			},
		),
		programErrorsTotal: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pow_ledger_program_errors_total",
				Help: "Total number of failed instructions by error name",
			},
			[]string{"name"},
		),
		airdropsTotal: promautoFactory.NewCounter(
			prometheus.CounterOpts{
				Name: "pow_ledger_airdrops_total",
				Help: "Total number of faucet airdrops",
			},
		),
	}
}

// observe records one transaction attempt. A nil receiver means metrics are
// disabled.
func (m *runtimeMetrics) observe(status string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.transactionsTotal.WithLabelValues(status).Inc()
	m.transactionDuration.Observe(time.Since(started).Seconds())
	var custom *CustomError
	if errors.As(err, &custom) {
		m.programErrorsTotal.WithLabelValues(custom.Name).Inc()
	} else if err != nil && status == "failed" {
		m.programErrorsTotal.WithLabelValues(EncodeError(err).Name).Inc()
	}
}

func (m *runtimeMetrics) setSlot(slot uint64) {
	if m == nil {
		return
	}
	m.slot.Set(float64(slot))
}

func (m *runtimeMetrics) airdrop() {
	if m == nil {
		return
	}
	m.airdropsTotal.Inc()
}
