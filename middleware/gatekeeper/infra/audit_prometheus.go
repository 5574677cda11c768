package infra

import (
	"context"

	"request-gatekeeper/middleware/gatekeeper/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink conta eventos por tipo. Não usa identidade nem path como
// label, para não explodir a cardinalidade.
type PrometheusSink struct {
	events *prometheus.CounterVec
}

func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	events := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gatekeeper",
			Name:      "security_events_total",
			Help:      "Security events emitted by the gatekeeper pipeline, by kind.",
		},
		[]string{"kind"},
	)
	if reg != nil {
		if err := reg.Register(events); err != nil {
			return nil, err
		}
	}
	return &PrometheusSink{events: events}, nil
}

func (s *PrometheusSink) Record(_ context.Context, ev domain.SecurityEvent) error {
	s.events.WithLabelValues(string(ev.Kind)).Inc()
	return nil
}

// Collector expõe o contador (útil em testes com testutil).
func (s *PrometheusSink) Collector() *prometheus.CounterVec { return s.events }
