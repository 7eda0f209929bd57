package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	transactions *prometheus.CounterVec
	gaps         prometheus.Counter
	signals      *prometheus.CounterVec
	decisions    *prometheus.CounterVec
	executions   *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	balance      prometheus.Gauge
	totalValue   prometheus.Gauge
	positions    prometheus.Gauge
	riskPaused   prometheus.Gauge
	priceLookups *prometheus.CounterVec
	journal      *prometheus.CounterVec
}

var (
	defaultRecorder *Recorder
	defaultOnce     sync.Once
)

// New returns the process-wide Prometheus recorder. Collectors are registered
// on the default registry once.
func New() *Recorder {
	defaultOnce.Do(func() {
		defaultRecorder = NewWithRegisterer(prometheus.DefaultRegisterer)
	})
	return defaultRecorder
}

// NewWithRegisterer creates a recorder bound to reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		transactions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletmirror_transactions_total",
				Help: "Transactions returned by the poller",
			},
			[]string{"kind"},
		),
		gaps: f.NewCounter(prometheus.CounterOpts{
			Name: "walletmirror_poll_gaps_total",
			Help: "Polls where the anchor fell outside the fetch window",
		}),
		signals: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletmirror_signals_total",
				Help: "Trade signals extracted from transactions",
			},
			[]string{"action"},
		),
		decisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletmirror_decisions_total",
				Help: "Strategy decisions",
			},
			[]string{"action", "executed"},
		),
		executions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletmirror_executions_total",
				Help: "Simulated executions",
			},
			[]string{"action", "result"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletmirror_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "walletmirror_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		balance: f.NewGauge(prometheus.GaugeOpts{
			Name: "walletmirror_balance_usd",
			Help: "Paper account cash balance",
		}),
		totalValue: f.NewGauge(prometheus.GaugeOpts{
			Name: "walletmirror_total_value_usd",
			Help: "Cash plus marked position value",
		}),
		positions: f.NewGauge(prometheus.GaugeOpts{
			Name: "walletmirror_open_positions",
			Help: "Number of open positions",
		}),
		riskPaused: f.NewGauge(prometheus.GaugeOpts{
			Name: "walletmirror_risk_paused",
			Help: "1 while the risk controller blocks new trades",
		}),
		priceLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletmirror_price_lookups_total",
				Help: "Price lookups by source and outcome",
			},
			[]string{"source", "hit"},
		),
		journal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletmirror_journal_messages_total",
				Help: "Trade journal entries sent to a backend",
			},
			[]string{"backend"},
		),
	}
}

func (r *Recorder) RecordTransactions(n int) {
	r.transactions.WithLabelValues("new").Add(float64(n))
}

func (r *Recorder) RecordGap() { r.gaps.Inc() }

func (r *Recorder) RecordSignal(action string) {
	r.signals.WithLabelValues(action).Inc()
}

func (r *Recorder) RecordDecision(action string, executed bool) {
	r.decisions.WithLabelValues(action, strconv.FormatBool(executed)).Inc()
}

func (r *Recorder) RecordExecution(action string, success bool) {
	result := "ok"
	if !success {
		result = "rejected"
	}
	r.executions.WithLabelValues(action, result).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordPortfolio(balance, totalValue float64, positions int) {
	r.balance.Set(balance)
	r.totalValue.Set(totalValue)
	r.positions.Set(float64(positions))
}

func (r *Recorder) RecordRiskPaused(paused bool) {
	if paused {
		r.riskPaused.Set(1)
		return
	}
	r.riskPaused.Set(0)
}

func (r *Recorder) RecordPriceLookup(source string, hit bool) {
	r.priceLookups.WithLabelValues(source, strconv.FormatBool(hit)).Inc()
}

func (r *Recorder) RecordJournal(backend string) {
	r.journal.WithLabelValues(backend).Inc()
}

// Noop discards every measurement.
type Noop struct{}

func (Noop) RecordTransactions(int) {}
func (Noop) RecordGap() {}
func (Noop) RecordSignal(string) {}
func (Noop) RecordDecision(string, bool) {}
func (Noop) RecordExecution(string, bool) {}
func (Noop) RecordError(string) {}
func (Noop) RecordLatency(string, float64) {}
func (Noop) RecordPortfolio(float64, float64, int) {}
func (Noop) RecordRiskPaused(bool) {}
func (Noop) RecordPriceLookup(string, bool) {}
func (Noop) RecordJournal(string) {}
