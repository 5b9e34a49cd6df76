package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/siteiq/siteiq/internal/notify"
)

// PrometheusSink exports turn activity via Prometheus.
type PrometheusSink struct {
	turnsTotal         *prometheus.CounterVec
	conversationsTotal prometheus.Counter
}

// NewPrometheusSink registers the collectors against the provided
// registry. A nil registry falls back to the default registerer.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "siteiq_turns_total",
			Help: "Turns appended, partitioned by whether they opened a conversation.",
		}, []string{"new_conversation"}),
		conversationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "siteiq_conversations_created_total",
			Help: "Conversations created by improve calls.",
		}),
	}
	for _, c := range []prometheus.Collector{s.turnsTotal, s.conversationsTotal} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the counters for one event.
func (s *PrometheusSink) Consume(_ context.Context, evt notify.TurnEvent) error {
	label := "false"
	if evt.NewConversation {
		label = "true"
		s.conversationsTotal.Inc()
	}
	s.turnsTotal.WithLabelValues(label).Inc()
	return nil
}

// Close is a no-op for the Prometheus sink.
func (s *PrometheusSink) Close(context.Context) error { return nil }
