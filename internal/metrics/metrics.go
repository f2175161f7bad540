package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the counters for operations that move money or table state.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	submissions       prometheus.Counter
	billsPrepared     prometheus.Counter
	closeOuts         *prometheus.CounterVec
	compensations     prometheus.Counter
	statusTransitions *prometheus.CounterVec
	onlineOrders      *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mesa",
			Name:      "kitchen_submissions_total",
			Help:      "Kitchen orders created from table drafts",
		}),
		billsPrepared: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mesa",
			Name:      "bills_prepared_total",
			Help:      "Bills created for tables",
		}),
		closeOuts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mesa",
			Name:      "bill_closeouts_total",
			Help:      "Bill close-out attempts by result",
		}, []string{"result"}),
		compensations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mesa",
			Name:      "payment_flag_rollbacks_total",
			Help:      "Tables released from in-payment after a failed close-out",
		}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mesa",
			Name:      "order_status_transitions_total",
			Help:      "Kitchen order status changes by target status",
		}, []string{"status"}),
		onlineOrders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mesa",
			Name:      "online_orders_total",
			Help:      "Orders recorded from the checkout path by source",
		}, []string{"source"}),
	}
	reg.MustRegister(
		m.submissions,
		m.billsPrepared,
		m.closeOuts,
		m.compensations,
		m.statusTransitions,
		m.onlineOrders,
	)
	return m
}

func (m *Metrics) Submission() {
	if m == nil {
		return
	}
	m.submissions.Inc()
}

func (m *Metrics) BillPrepared() {
	if m == nil {
		return
	}
	m.billsPrepared.Inc()
}

// CloseOut records a close-out attempt; result is "ok" or "failed".
func (m *Metrics) CloseOut(result string) {
	if m == nil {
		return
	}
	m.closeOuts.WithLabelValues(result).Inc()
}

func (m *Metrics) Compensation() {
	if m == nil {
		return
	}
	m.compensations.Inc()
}

func (m *Metrics) StatusTransition(status string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) OnlineOrder(source string) {
	if m == nil {
		return
	}
	m.onlineOrders.WithLabelValues(source).Inc()
}
