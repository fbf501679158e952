package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scan outcome labels.
const (
	ResultSuccess     = "success"
	ResultInvalidCode = "invalid_code"
	ResultMissingCode = "missing_code"
)

// Metrics holds the scanner counters. Increments are side-effect only and
// never influence control flow; all methods tolerate a nil receiver so a
// service wired without metrics keeps working.
type Metrics struct {
	Scans             *prometheus.CounterVec
	StateChanges      *prometheus.CounterVec
	TicketGenerations *prometheus.CounterVec
	EmailsSent        prometheus.Counter
}

// New registers the scanner counters on reg. Tests pass their own registry
// so call counts can be asserted deterministically.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Scans: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_code_scan",
			Help: "Number of scans by result",
		}, []string{"result"}),

		StateChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_code_state_change",
			Help: "Number of state changes by result",
		}, []string{"result"}),

		TicketGenerations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_tickets_generation",
			Help: "Number of ticket generations by result",
		}, []string{"result"}),

		EmailsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "scanner_email_sent",
			Help: "Number of emails sent",
		}),
	}
}

// IncScan records a scan outcome.
func (m *Metrics) IncScan(result string) {
	if m != nil {
		m.Scans.WithLabelValues(result).Inc()
	}
}

// IncStateChange records a state-change outcome; on success the label is the
// action type.
func (m *Metrics) IncStateChange(result string) {
	if m != nil {
		m.StateChanges.WithLabelValues(result).Inc()
	}
}

// IncTicketGeneration records a renderer outcome.
func (m *Metrics) IncTicketGeneration(result string) {
	if m != nil {
		m.TicketGenerations.WithLabelValues(result).Inc()
	}
}

// IncEmailSent records one delivered ticket email.
func (m *Metrics) IncEmailSent() {
	if m != nil {
		m.EmailsSent.Inc()
	}
}
