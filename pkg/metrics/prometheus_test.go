package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounters(t *testing.T) {
	r := NewWithRegisterer(prometheus.NewRegistry())

	r.RecordExecution("BUY", true)
	r.RecordExecution("BUY", false)
	r.RecordExecution("BUY", true)
	r.RecordGap()
	r.RecordTransactions(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.executions.WithLabelValues("BUY", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.executions.WithLabelValues("BUY", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.gaps))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.transactions.WithLabelValues("new")))
}

func TestRecorderGauges(t *testing.T) {
	r := NewWithRegisterer(prometheus.NewRegistry())

	r.RecordPortfolio(900, 1050, 2)
	r.RecordRiskPaused(true)

	assert.Equal(t, 900.0, testutil.ToFloat64(r.balance))
	assert.Equal(t, 1050.0, testutil.ToFloat64(r.totalValue))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.positions))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.riskPaused))

	r.RecordRiskPaused(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(r.riskPaused))
}
