package engine

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/celerix-dev/wardledger/pkg/ledger"
	"github.com/celerix-dev/wardledger/pkg/schema"
)

// Metrics exports ledger activity. A nil *Metrics records nothing.
type Metrics struct {
	operations *prometheus.CounterVec
	records    *prometheus.GaugeVec
}

// NewMetrics builds the collectors and registers them with reg when reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wardledger",
			Name:      "operations_total",
			Help:      "Ledger operations by operation and result code.",
		}, []string{"op", "result"}),
		records: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "wardledger",
			Name:      "records",
			Help:      "Records currently in each lifecycle status.",
		}, []string{"status"}),
	}
	for _, s := range schema.AllStatuses() {
		m.records.WithLabelValues(s.String()).Set(0)
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.records)
	}
	return m
}

func (m *Metrics) observe(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = strings.ToLower(ledger.Code(err))
	}
	m.operations.WithLabelValues(op, result).Inc()
}

func (m *Metrics) created() {
	if m == nil {
		return
	}
	m.records.WithLabelValues(schema.Upcoming.String()).Inc()
}

func (m *Metrics) transitioned(from, to schema.Status) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(from.String()).Dec()
	m.records.WithLabelValues(to.String()).Inc()
}

func (m *Metrics) reset(records []schema.Record) {
	if m == nil {
		return
	}
	counts := make(map[schema.Status]int, len(schema.AllStatuses()))
	for _, rec := range records {
		counts[rec.Status]++
	}
	for _, s := range schema.AllStatuses() {
		m.records.WithLabelValues(s.String()).Set(float64(counts[s]))
	}
}
