// Package metrics exposes Prometheus instrumentation for the catalog server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "catalog"

// Metrics holds the server's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	booksAdded     prometheus.Counter
	authorsCreated prometheus.Counter
	logins         *prometheus.CounterVec
	resolverErrors *prometheus.CounterVec
	requests       *prometheus.HistogramVec
	subscribers    *prometheus.GaugeVec
	delivered      *prometheus.CounterVec
	dropped        *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		booksAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "books_added_total",
			Help:      "Books added through the addBook mutation.",
		}),
		authorsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authors_created_total",
			Help:      "Authors created implicitly by addBook.",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		resolverErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graphql_errors_total",
			Help:      "GraphQL resolver errors by code.",
		}, []string{"code"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),
		subscribers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers",
			Help:      "Live subscriptions per topic.",
		}, []string{"topic"}),
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_delivered_total",
			Help:      "Events handed to subscribers per topic.",
		}, []string{"topic"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events dropped for slow subscribers per topic.",
		}, []string{"topic"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.booksAdded,
		m.authorsCreated,
		m.logins,
		m.resolverErrors,
		m.requests,
		m.subscribers,
		m.delivered,
		m.dropped,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// BookAdded counts a persisted book.
func (m *Metrics) BookAdded(authorCreated bool) {
	m.booksAdded.Inc()
	if authorCreated {
		m.authorsCreated.Inc()
	}
}

// Login counts a login attempt.
func (m *Metrics) Login(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	m.logins.WithLabelValues(result).Inc()
}

// ResolverError counts a GraphQL error by its code.
func (m *Metrics) ResolverError(code string) {
	m.resolverErrors.WithLabelValues(code).Inc()
}

// ObserveRequest records an HTTP request's latency.
func (m *Metrics) ObserveRequest(route string, status int, d time.Duration) {
	m.requests.WithLabelValues(route, strconv.Itoa(status)).Observe(d.Seconds())
}

// EventPublished implements notify.Observer.
func (m *Metrics) EventPublished(topic string, delivered, dropped int) {
	m.delivered.WithLabelValues(topic).Add(float64(delivered))
	m.dropped.WithLabelValues(topic).Add(float64(dropped))
}

// SubscribersChanged implements notify.Observer.
func (m *Metrics) SubscribersChanged(topic string, count int) {
	m.subscribers.WithLabelValues(topic).Set(float64(count))
}
