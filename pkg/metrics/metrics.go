// Package metrics exports vault activity as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jvs-project/timelock/pkg/errclass"
	"github.com/jvs-project/timelock/pkg/model"
)

const namespace = "timelock"

// StatusSource reports current vault state for the balance gauges.
type StatusSource interface {
	Status() model.VaultStatus
}

// Registry holds all timelock metrics.
type Registry struct {
	reg *prometheus.Registry

	events      *prometheus.CounterVec
	eventAmount *prometheus.CounterVec
	operations  *prometheus.CounterVec

	trackOnce sync.Once
}

// NewRegistry creates a registry with process and Go collectors attached.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Vault events emitted, by type.",
		}, []string{"type"}),
		eventAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_amount_total",
			Help:      "Sum of event amounts in the asset's smallest unit, by type.",
		}, []string{"type"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Mutating vault operations, by operation and result code.",
		}, []string{"op", "code"}),
	}
	r.reg.MustRegister(
		r.events,
		r.eventAmount,
		r.operations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handle counts ev.
func (r *Registry) Handle(_ context.Context, ev model.Event) error {
	r.events.WithLabelValues(string(ev.Type)).Inc()
	if ev.Amount > 0 {
		r.eventAmount.WithLabelValues(string(ev.Type)).Add(float64(ev.Amount))
	}
	return nil
}

// ObserveOperation counts an operation outcome. Accepted calls are labelled
// "ok"; rejected ones carry their error code.
func (r *Registry) ObserveOperation(op string, err error) {
	code := "ok"
	if err != nil {
		if code = errclass.CodeOf(err); code == "" {
			code = "E_INTERNAL"
		}
	}
	r.operations.WithLabelValues(op, code).Inc()
}

// TrackVault exposes src's balance and pending withdrawal as gauges. Only the
// first call has an effect.
func (r *Registry) TrackVault(src StatusSource) {
	r.trackOnce.Do(func() {
		r.reg.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "vault_balance",
				Help:      "Value currently held by the vault.",
			}, func() float64 { return float64(src.Status().Balance) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "vault_pending",
				Help:      "Committed, not yet executed withdrawal.",
			}, func() float64 { return float64(src.Status().PendingWithdrawal) }),
		)
	})
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
