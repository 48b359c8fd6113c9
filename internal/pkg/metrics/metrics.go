// Package metrics exports application counters to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "techknowlogia"

// Subscribe lifecycle events.
const (
	EventSubscribed       = "subscribed"
	EventAlreadyActive    = "already_active"
	EventCooldown         = "cooldown"
	EventResubscribed     = "resubscribed"
	EventConfirmed        = "confirmed"
	EventAlreadyConfirmed = "already_confirmed"
	EventConfirmExpired   = "confirm_expired"
	EventConfirmNotFound  = "confirm_not_found"
	EventUnsubscribed     = "unsubscribed"
	EventAlreadyUnsubbed  = "already_unsubscribed"
	EventManageForged     = "manage_forged"
	EventDuplicateRetry   = "duplicate_retry"
	EventTokensPurged     = "tokens_purged"
	EventAdminDeleted     = "admin_deleted"
)

// Metrics holds the registered collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry        *promclient.Registry
	subscribeEvents *promclient.CounterVec
	mailSent        *promclient.CounterVec
	httpDuration    *promclient.HistogramVec
	viewsRecorded   promclient.Counter
}

// New registers every collector on a private registry, plus Go and process collectors.
func New() (*Metrics, error) {
	reg := promclient.NewRegistry()
	m := &Metrics{
		registry: reg,
		subscribeEvents: promclient.NewCounterVec(promclient.CounterOpts{
			Namespace: namespace,
			Name:      "subscribe_events_total",
			Help:      "Subscriber lifecycle outcomes by event.",
		}, []string{"event"}),
		mailSent: promclient.NewCounterVec(promclient.CounterOpts{
			Namespace: namespace,
			Name:      "mail_sent_total",
			Help:      "Transactional emails handed to the provider, by template and result.",
		}, []string{"template", "result"}),
		httpDuration: promclient.NewHistogramVec(promclient.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   promclient.DefBuckets,
		}, []string{"method", "route", "status"}),
		viewsRecorded: promclient.NewCounter(promclient.CounterOpts{
			Namespace: namespace,
			Name:      "article_views_total",
			Help:      "Article views recorded through the views API.",
		}),
	}
	collectorsToRegister := []promclient.Collector{
		m.subscribeEvents,
		m.mailSent,
		m.httpDuration,
		m.viewsRecorded,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range collectorsToRegister {
		if err := reg.Register(c); err != nil {
			var are promclient.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return nil, fmt.Errorf("register metrics collector: %w", err)
		}
	}
	return m, nil
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *promclient.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RecordSubscribeEvent(event string) {
	if m == nil {
		return
	}
	m.subscribeEvents.WithLabelValues(event).Inc()
}

// RecordMail counts one send attempt for template.
func (m *Metrics) RecordMail(template string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.mailSent.WithLabelValues(template, result).Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordView() {
	if m == nil {
		return
	}
	m.viewsRecorded.Inc()
}
