// Package metrics holds the Prometheus collectors shared by the broker and vendor.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics groups every protocol counter. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	Registrations  *prometheus.CounterVec
	Certificates   prometheus.Counter
	Commitments    *prometheus.CounterVec
	Payments       *prometheus.CounterVec
	Redemptions    *prometheus.CounterVec
	RedeemedAmount prometheus.Counter
	OpenSessions   prometheus.Gauge
}

// New registers the collectors on a fresh registry tagged with the component name.
func New(component string) *Metrics {
	labels := prometheus.Labels{"component": component}
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "payword_registrations_total",
			Help:        "Registrations processed, by party kind and result",
			ConstLabels: labels,
		}, []string{"kind", "result"}),
		Certificates: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "payword_certificates_issued_total",
			Help:        "User certificates issued",
			ConstLabels: labels,
		}),
		Commitments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "payword_commitments_total",
			Help:        "Commitments received, by result",
			ConstLabels: labels,
		}, []string{"result"}),
		Payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "payword_payments_total",
			Help:        "Payment links received, by status and denomination",
			ConstLabels: labels,
		}, []string{"status", "denomination"}),
		Redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "payword_redemptions_total",
			Help:        "Redeem requests, by result reason",
			ConstLabels: labels,
		}, []string{"result"}),
		RedeemedAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "payword_redeemed_amount_total",
			Help:        "Currency units settled through redemption",
			ConstLabels: labels,
		}),
		OpenSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "payword_open_sessions",
			Help:        "Vendor sessions currently tracked",
			ConstLabels: labels,
		}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Registrations, m.Certificates, m.Commitments, m.Payments,
		m.Redemptions, m.RedeemedAmount, m.OpenSessions,
	)
	return m
}

func result(reason string) string {
	if reason == "" {
		return "ok"
	}
	return reason
}

func (m *Metrics) Registration(kind, reason string) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(kind, result(reason)).Inc()
}

func (m *Metrics) CertificateIssued() {
	if m == nil {
		return
	}
	m.Certificates.Inc()
}

func (m *Metrics) Commitment(reason string) {
	if m == nil {
		return
	}
	m.Commitments.WithLabelValues(result(reason)).Inc()
}

func (m *Metrics) Payment(status, denomination string) {
	if m == nil {
		return
	}
	m.Payments.WithLabelValues(status, denomination).Inc()
}

// Redemption counts a redeem outcome; amount is added only for settled requests.
func (m *Metrics) Redemption(reason string, amount int64) {
	if m == nil {
		return
	}
	m.Redemptions.WithLabelValues(result(reason)).Inc()
	if reason == "" && amount > 0 {
		m.RedeemedAmount.Add(float64(amount))
	}
}

// SetOpenSessions records how many vendor sessions are tracked.
func (m *Metrics) SetOpenSessions(n int) {
	if m == nil {
		return
	}
	m.OpenSessions.Set(float64(n))
}
