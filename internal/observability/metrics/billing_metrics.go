package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// ExecutorEmbedded labels passes run by the in-process scheduler,
	// ExecutorDaemon those run by the standalone billing daemon.
	ExecutorEmbedded = "embedded"
	ExecutorDaemon   = "daemon"
)

const (
	OutcomeBilled            = "billed"
	OutcomeInsufficientFunds = "failed_insufficient_funds"
	OutcomeError             = "failed_error"
)

// BillingMetrics captures reconciliation health signals.
type BillingMetrics struct {
	passRuns      *prometheus.CounterVec
	passDuration  *prometheus.HistogramVec
	passErrors    *prometheus.CounterVec
	unitOutcomes  *prometheus.CounterVec
	deferrals     prometheus.Counter
	heartbeats    prometheus.Counter
	amountCharged *prometheus.CounterVec
}

var (
	billingMetricsOnce sync.Once
	billingMetrics     *BillingMetrics
)

// Billing returns the singleton billing metrics registry.
func Billing() *BillingMetrics {
	billingMetricsOnce.Do(func() {
		billingMetrics = newBillingMetrics(prometheus.DefaultRegisterer)
	})
	return billingMetrics
}

// ResetBillingMetricsForTest resets the billing metrics singleton for tests.
func ResetBillingMetricsForTest() {
	billingMetricsOnce = sync.Once{}
	billingMetrics = nil
}

func newBillingMetrics(registerer prometheus.Registerer) *BillingMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	passRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetbill_billing_pass_runs_total",
		Help: "Billing reconciliation passes by executor.",
	}, []string{"executor"})

	passDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fleetbill_billing_pass_duration_seconds",
		Help:    "Billing pass duration by executor.",
		Buckets: prometheus.DefBuckets,
	}, []string{"executor"})

	passErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetbill_billing_pass_errors_total",
		Help: "Billing passes that failed before completing.",
	}, []string{"executor"})

	unitOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetbill_billing_unit_outcomes_total",
		Help: "Per-instance billing outcomes.",
	}, []string{"outcome"})

	deferrals := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fleetbill_scheduler_deferrals_total",
		Help: "Embedded scheduler ticks deferred to a live daemon.",
	})

	heartbeats := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fleetbill_daemon_heartbeats_total",
		Help: "Daemon heartbeat writes.",
	})

	amountCharged := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleetbill_billing_amount_charged_total",
		Help: "Total amount charged, by currency.",
	}, []string{"currency"})

	registerer.MustRegister(passRuns, passDuration, passErrors, unitOutcomes, deferrals, heartbeats, amountCharged)

	return &BillingMetrics{
		passRuns:      passRuns,
		passDuration:  passDuration,
		passErrors:    passErrors,
		unitOutcomes:  unitOutcomes,
		deferrals:     deferrals,
		heartbeats:    heartbeats,
		amountCharged: amountCharged,
	}
}

func (m *BillingMetrics) IncPassRun(executor string) {
	if m == nil {
		return
	}
	m.passRuns.WithLabelValues(executor).Inc()
}

func (m *BillingMetrics) ObservePassDuration(executor string, d time.Duration) {
	if m == nil {
		return
	}
	m.passDuration.WithLabelValues(executor).Observe(d.Seconds())
}

func (m *BillingMetrics) IncPassError(executor string) {
	if m == nil {
		return
	}
	m.passErrors.WithLabelValues(executor).Inc()
}

func (m *BillingMetrics) IncUnitOutcome(outcome string) {
	if m == nil {
		return
	}
	m.unitOutcomes.WithLabelValues(outcome).Inc()
}

func (m *BillingMetrics) IncDeferral() {
	if m == nil {
		return
	}
	m.deferrals.Inc()
}

func (m *BillingMetrics) IncHeartbeat() {
	if m == nil {
		return
	}
	m.heartbeats.Inc()
}

func (m *BillingMetrics) AddAmountCharged(currency string, amount float64) {
	if m == nil || amount <= 0 {
		return
	}
	m.amountCharged.WithLabelValues(currency).Add(amount)
}
