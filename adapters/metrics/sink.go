// Package metrics exposes session lifecycle activity as Prometheus metrics.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	auth "github.com/jayanthbabu123/water-delivery-app-sub000"
	"github.com/jayanthbabu123/water-delivery-app-sub000/activitymap"
)

const defaultNamespace = "auth"

// Option customizes a Sink.
type Option func(*Sink)

// WithRegisterer registers the collectors with reg instead of the default
// registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Sink) {
		if reg != nil {
			s.registerer = reg
		}
	}
}

// WithNamespace sets the metric namespace, "auth" by default.
func WithNamespace(ns string) Option {
	return func(s *Sink) {
		if ns != "" {
			s.namespace = ns
		}
	}
}

// Sink is an auth.ActivitySink that counts events.
type Sink struct {
	registerer prometheus.Registerer
	namespace  string

	events   *prometheus.CounterVec
	signOuts *prometheus.CounterVec
	active   prometheus.Gauge
}

var _ auth.ActivitySink = (*Sink)(nil)

// NewSink creates and registers the collectors.
func NewSink(opts ...Option) *Sink {
	s := &Sink{
		registerer: prometheus.DefaultRegisterer,
		namespace:  defaultNamespace,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	factory := promauto.With(s.registerer)
	s.events = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: s.namespace,
			Name:      "activity_events_total",
			Help:      "Session lifecycle events by type and reason.",
		},
		[]string{"event", "reason"},
	)
	s.signOuts = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: s.namespace,
			Name:      "sign_outs_total",
			Help:      "Sign-outs by reason.",
		},
		[]string{"reason"},
	)
	s.active = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: s.namespace,
		Name:      "session_active",
		Help:      "1 while a session is cached on this device.",
	})
	return s
}

// Record implements auth.ActivitySink.
func (s *Sink) Record(_ context.Context, event auth.ActivityEvent) error {
	record := activitymap.Normalize(event)
	reason, _ := record.Metadata[activitymap.MetadataKeyReason].(string)

	s.events.WithLabelValues(record.Verb, reason).Inc()

	switch event.EventType {
	case auth.ActivityEventSessionEstablished, auth.ActivityEventSessionReconciled:
		s.active.Set(1)
	case auth.ActivityEventSignOut:
		s.signOuts.WithLabelValues(reason).Inc()
		s.active.Set(0)
	case auth.ActivityEventSessionCleared,
		auth.ActivityEventSessionExpired,
		auth.ActivityEventSessionDesync,
		auth.ActivityEventSessionCorrupted:
		s.active.Set(0)
	}
	return nil
}
