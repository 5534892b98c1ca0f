// Package metrics holds the Prometheus collectors for the site. They are
// served on the private listener at /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "site_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "code"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "site_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	subscriptions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "site_subscriptions_total",
			Help: "Subscription attempts by category and outcome.",
		},
		[]string{"category", "outcome"},
	)
	unsubscribes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "site_unsubscribes_total",
			Help: "Unsubscribe attempts by token scheme and outcome.",
		},
		[]string{"scheme", "outcome"},
	)
	emailsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "site_emails_sent_total",
			Help: "Outbound emails accepted by the mail provider.",
		},
		[]string{"kind"},
	)
	emailErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "site_email_errors_total",
			Help: "Outbound emails that failed, by stage.",
		},
		[]string{"stage"},
	)
	queueProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "site_mailqueue_processed_total",
			Help: "Scheduled emails processed by the batch sender.",
		},
		[]string{"result"},
	)
	queueRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "site_mailqueue_run_duration_seconds",
			Help:    "Duration of one batch sender pass.",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)
	dbQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "site_db_query_duration_seconds",
			Help:    "Database query duration by query name.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)
	rateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "site_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		},
		[]string{"route"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequests,
		httpDuration,
		subscriptions,
		unsubscribes,
		emailsSent,
		emailErrors,
		queueProcessed,
		queueRunDuration,
		dbQueryDuration,
		rateLimited,
	)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveRequest(method, route string, code int, dur time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(dur.Seconds())
}

func SubscriptionAttempt(category, outcome string) {
	subscriptions.WithLabelValues(category, outcome).Inc()
}

func UnsubscribeAttempt(scheme, outcome string) {
	unsubscribes.WithLabelValues(scheme, outcome).Inc()
}

func EmailSent(kind string) {
	emailsSent.WithLabelValues(kind).Inc()
}

func EmailFailed(stage string) {
	emailErrors.WithLabelValues(stage).Inc()
}

func QueueProcessed(sent, failed int, dur time.Duration) {
	queueProcessed.WithLabelValues("sent").Add(float64(sent))
	queueProcessed.WithLabelValues("failed").Add(float64(failed))
	queueRunDuration.Observe(dur.Seconds())
}

func ObserveQuery(name string, dur time.Duration) {
	dbQueryDuration.WithLabelValues(name).Observe(dur.Seconds())
}

func RateLimited(route string) {
	rateLimited.WithLabelValues(route).Inc()
}
