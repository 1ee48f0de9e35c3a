package subscription

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of the subscription core.
// A nil *Metrics records nothing
type Metrics struct {
	WebhookEventsTotal  *prometheus.CounterVec
	ManageRequestsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers the subscription metrics
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		WebhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subsync_webhook_events_total",
				Help: "Total number of webhook deliveries by event type and outcome",
			},
			[]string{"type", "outcome"},
		),
		ManageRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subsync_manage_requests_total",
				Help: "Total number of manage requests by result",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(
		m.WebhookEventsTotal,
		m.ManageRequestsTotal,
	)

	return m
}

func (m *Metrics) observeEvent(eventType string, outcome Outcome) {
	if m == nil {
		return
	}
	if eventType == "" {
		eventType = "unknown"
	}
	m.WebhookEventsTotal.WithLabelValues(eventType, string(outcome)).Inc()
}

// observeManage labels successes by flow and failures by error kind
func (m *Metrics) observeManage(flow Flow, err error) {
	if m == nil {
		return
	}
	result := string(flow)
	if err != nil {
		result = KindOf(err).String()
	}
	m.ManageRequestsTotal.WithLabelValues(result).Inc()
}
