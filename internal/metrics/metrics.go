// Package metrics holds the Prometheus collectors of the registration services.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	ResolutionPasses   *prometheus.CounterVec
	ResolutionFailures *prometheus.CounterVec
	FieldChanges       prometheus.Counter
	ImportRows         *prometheus.CounterVec
	ImportBatches      *prometheus.CounterVec
	NotificationsSent  *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ResolutionPasses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "regform_resolution_passes_total",
			Help: "Registration form resolution passes by action and actor",
		}, []string{"action", "management"}),
		ResolutionFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "regform_resolution_failures_total",
			Help: "Resolution passes rejected by validation",
		}, []string{"action"}),
		FieldChanges: f.NewCounter(prometheus.CounterOpts{
			Name: "regform_field_changes_total",
			Help: "Stored field values changed by modify passes",
		}),
		ImportRows: f.NewCounterVec(prometheus.CounterOpts{
			Name: "import_rows_total",
			Help: "CSV import rows by flavour and outcome",
		}, []string{"kind", "outcome"}),
		ImportBatches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "import_batches_total",
			Help: "CSV import batches by flavour and result",
		}, []string{"kind", "result"}),
		NotificationsSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Notifications dispatched by template and result",
		}, []string{"template", "result"}),
	}
}

// ObserveResolution counts one resolution pass.
func (m *Metrics) ObserveResolution(action string, management bool, changes int, err error) {
	if m == nil {
		return
	}
	mgmt := "false"
	if management {
		mgmt = "true"
	}
	m.ResolutionPasses.WithLabelValues(action, mgmt).Inc()
	if err != nil {
		m.ResolutionFailures.WithLabelValues(action).Inc()
		return
	}
	m.FieldChanges.Add(float64(changes))
}

// ObserveImport counts the rows and outcome of one import batch.
func (m *Metrics) ObserveImport(kind string, accepted, skipped int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.ImportBatches.WithLabelValues(kind, "failed").Inc()
		return
	}
	m.ImportBatches.WithLabelValues(kind, "ok").Inc()
	m.ImportRows.WithLabelValues(kind, "accepted").Add(float64(accepted))
	m.ImportRows.WithLabelValues(kind, "skipped").Add(float64(skipped))
}

// ObserveNotification counts one delivery attempt.
func (m *Metrics) ObserveNotification(template string, err error) {
	if m == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "failed"
	}
	m.NotificationsSent.WithLabelValues(template, result).Inc()
}
