package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	BackendRequests *prometheus.CounterVec
	OrderLoads      *prometheus.CounterVec
	StaleLoads      prometheus.Counter
	StatusChanges   prometheus.Counter
	PublishFailures prometheus.Counter
	WatcherChecks   *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	backend := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_backend_requests_total",
		Help: "Requests to auth/catalogue/orders/reviews backends by outcome.",
	}, []string{"backend", "outcome"})
	loads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_order_loads_total",
		Help: "Order history loads by result (ok, cached, failed, dropped).",
	}, []string{"result"})
	stale := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storefront_stale_loads_discarded_total",
		Help: "Loads that finished after a newer load had already committed.",
	})
	changes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "watcher_status_changes_published_total",
	})
	pubFail := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "watcher_publish_failures_total",
	})
	checks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "watcher_checks_total",
	}, []string{"result"})
	dur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_http_request_duration_seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "code"})

	r.MustRegister(backend, loads, stale, changes, pubFail, checks, dur)
	return &Registry{
		reg:             r,
		BackendRequests: backend,
		OrderLoads:      loads,
		StaleLoads:      stale,
		StatusChanges:   changes,
		PublishFailures: pubFail,
		WatcherChecks:   checks,
		HTTPDuration:    dur,
	}
}

// ObserveBackend подходит как shophttp.Observer.
func (r *Registry) ObserveBackend(backend, outcome string) {
	r.BackendRequests.WithLabelValues(backend, outcome).Inc()
}

func (r *Registry) ObserveHTTP(method, route string, code int, d time.Duration) {
	r.HTTPDuration.WithLabelValues(method, route, strconv.Itoa(code)).Observe(d.Seconds())
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
