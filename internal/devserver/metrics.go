package devserver

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "kudos_devserver"

type metrics struct {
	requests         *prometheus.CounterVec
	latency          *prometheus.HistogramVec
	injectedFailures prometheus.Counter
}

func newMetrics(registerer prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "# of API requests by route and status",
		}, []string{"route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "API request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		injectedFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "injected_failures_total",
			Help:      "# of commits failed on purpose",
		}),
	}
	err := errors.Join(
		registerer.Register(m.requests),
		registerer.Register(m.latency),
		registerer.Register(m.injectedFailures),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *metrics) observe(route string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(route).Observe(elapsed.Seconds())
}
