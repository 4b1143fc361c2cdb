// Package promhooks exports pipeline lifecycle events as Prometheus
// metrics through [lendguard.Hooks].
package promhooks

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/byte4ever/lendguard"
)

// OutcomeSuccess labels successful requests in the requests counter.
const OutcomeSuccess = "success"

// Metrics holds the collectors. Build it once per registry.
type Metrics struct {
	requests      *prometheus.CounterVec
	retries       *prometheus.CounterVec
	notifications *prometheus.CounterVec
	teardowns     *prometheus.CounterVec
	cacheHits     prometheus.Counter
	duration      *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg. A nil reg uses
// prometheus.DefaultRegisterer. Collectors already registered by an earlier
// call are reused.
func New(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Logical API requests by outcome class.",
		}, []string{"method", "class"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_retries_total",
			Help:      "Retries scheduled by failure class.",
		}, []string{"class"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_notifications_total",
			Help:      "User notifications raised by failure class.",
		}, []string{"class"}),
		teardowns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_teardowns_total",
			Help:      "Sessions torn down after an authentication failure.",
		}, []string{"navigated"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_cache_hits_total",
			Help:      "GET requests served from the response cache.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Latency of logical API requests including retries.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}, []string{"outcome"}),
	}

	var err error

	if m.requests, err = register(reg, m.requests); err != nil {
		return nil, err
	}

	if m.retries, err = register(reg, m.retries); err != nil {
		return nil, err
	}

	if m.notifications, err = register(reg, m.notifications); err != nil {
		return nil, err
	}

	if m.teardowns, err = register(reg, m.teardowns); err != nil {
		return nil, err
	}

	if m.cacheHits, err = register(reg, m.cacheHits); err != nil {
		return nil, err
	}

	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}

	return m, nil
}

// Hooks returns pipeline hooks feeding the collectors.
func (m *Metrics) Hooks() lendguard.Hooks {
	return lendguard.Hooks{
		OnRetry: func(_ *lendguard.RequestContext, class lendguard.Classification, _ int, _ time.Duration) {
			m.retries.WithLabelValues(class.String()).Inc()
		},
		OnSuccess: func(rc *lendguard.RequestContext, _ int, elapsed time.Duration) {
			m.requests.WithLabelValues(rc.Method, OutcomeSuccess).Inc()
			m.duration.WithLabelValues(OutcomeSuccess).Observe(elapsed.Seconds())
		},
		OnFailure: func(rc *lendguard.RequestContext, err *lendguard.RequestError, elapsed time.Duration) {
			m.requests.WithLabelValues(rc.Method, err.Class.String()).Inc()
			m.duration.WithLabelValues("failure").Observe(elapsed.Seconds())
		},
		OnNotify: func(n lendguard.Notification) {
			m.notifications.WithLabelValues(n.Class.String()).Inc()
		},
		OnSessionTeardown: func(_ *lendguard.RequestContext, navigated bool) {
			m.teardowns.WithLabelValues(strconv.FormatBool(navigated)).Inc()
		},
		OnCacheHit: func(string) {
			m.cacheHits.Inc()
		},
	}
}

// Requests returns the request counter for method and outcome.
//
//nolint:ireturn // prometheus collector
func (m *Metrics) Requests(method, outcome string) prometheus.Counter {
	return m.requests.WithLabelValues(method, outcome)
}

// Retries returns the retry counter for class.
//
//nolint:ireturn // prometheus collector
func (m *Metrics) Retries(class lendguard.Classification) prometheus.Counter {
	return m.retries.WithLabelValues(class.String())
}

// Notifications returns the notification counter for class.
//
//nolint:ireturn // prometheus collector
func (m *Metrics) Notifications(class lendguard.Classification) prometheus.Counter {
	return m.notifications.WithLabelValues(class.String())
}

// CacheHits returns the cache hit counter.
//
//nolint:ireturn // prometheus collector
func (m *Metrics) CacheHits() prometheus.Counter { return m.cacheHits }

// register returns the collector already registered under the same
// descriptor when there is one.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}

	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}

	return c, fmt.Errorf("promhooks: register collector: %w", err)
}
