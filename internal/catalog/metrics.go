package catalog

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Refreshes *prometheus.CounterVec
	Coalesced prometheus.Counter
	Events    *prometheus.CounterVec
}

func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_refreshes_total",
				Help: "Catalog refresh attempts by result",
			},
			[]string{"result"},
		),
		Coalesced: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "catalog_refreshes_coalesced_total",
				Help: "Refresh triggers folded into an in-flight refresh",
			},
		),
		Events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_change_events_total",
				Help: "Change feed events received by kind",
			},
			[]string{"kind"},
		),
	}

	reg.MustRegister(m.Refreshes, m.Coalesced, m.Events)
	return m
}
