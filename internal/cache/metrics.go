package cache

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	hits,
	misses,
	evictions prometheus.Counter

	entries prometheus.Gauge
}

func newCounter(namespace, name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	})
}

// Register exports the cache counters to registerer under namespace.
// Counters start from zero at registration.
func (c *Cache) Register(namespace string, registerer prometheus.Registerer) error {
	if c == nil {
		return nil
	}
	m := &metrics{
		hits:      newCounter(namespace, "cache_hits_total", "# of cache lookups that returned a live entry"),
		misses:    newCounter(namespace, "cache_misses_total", "# of cache lookups that found nothing or an expired entry"),
		evictions: newCounter(namespace, "cache_evictions_total", "# of entries removed by expiry or the entry cap"),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "# of entries currently stored",
		}),
	}
	err := errors.Join(
		registerer.Register(m.hits),
		registerer.Register(m.misses),
		registerer.Register(m.evictions),
		registerer.Register(m.entries),
	)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.metrics = m
	m.entries.Set(float64(len(c.entries)))
	c.mu.Unlock()
	return nil
}

// The methods below tolerate a nil receiver so an unregistered cache pays nothing.

func (m *metrics) hit() {
	if m != nil {
		m.hits.Inc()
	}
}

func (m *metrics) miss() {
	if m != nil {
		m.misses.Inc()
	}
}

func (m *metrics) evict(n int) {
	if m != nil {
		m.evictions.Add(float64(n))
	}
}

func (m *metrics) setEntries(n int) {
	if m != nil {
		m.entries.Set(float64(n))
	}
}
