// Package metrics exposes Prometheus counters for the session client, the
// resource cache and the mutation coordinators. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pft"

type Metrics struct {
	Requests     *prometheus.CounterVec
	Retries      prometheus.Counter
	Refreshes    *prometheus.CounterVec
	CacheReads   *prometheus.CounterVec
	CacheFetches *prometheus.CounterVec
	Mutations    *prometheus.CounterVec
	Rollbacks    *prometheus.CounterVec
}

// New registers the collectors with reg. Pass prometheus.NewRegistry() in
// tests to keep instances isolated.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Outbound API requests by method and status code (0 = no response).",
		}, []string{"method", "code"}),
		Retries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "retries_total",
			Help:      "Requests replayed after a successful token refresh.",
		}),
		Refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "refreshes_total",
			Help:      "Calls made to the refresh endpoint by outcome.",
		}, []string{"outcome"}),
		CacheReads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "reads_total",
			Help:      "Cache reads by resource and result (hit, miss).",
		}, []string{"resource", "result"}),
		CacheFetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "fetches_total",
			Help:      "Fetcher invocations by resource and outcome.",
		}, []string{"resource", "outcome"}),
		Mutations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mutation",
			Name:      "settled_total",
			Help:      "Settled mutations by resource, operation and outcome.",
		}, []string{"resource", "op", "outcome"}),
		Rollbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mutation",
			Name:      "rollbacks_total",
			Help:      "Optimistic writes restored from snapshot.",
		}, []string{"resource"}),
	}
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func (m *Metrics) Request(method string, code int) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

func (m *Metrics) Retry() {
	if m == nil {
		return
	}
	m.Retries.Inc()
}

func (m *Metrics) Refresh(ok bool) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(outcome(ok)).Inc()
}

func (m *Metrics) CacheRead(resource string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheReads.WithLabelValues(resource, result).Inc()
}

func (m *Metrics) CacheFetch(resource string, ok bool) {
	if m == nil {
		return
	}
	m.CacheFetches.WithLabelValues(resource, outcome(ok)).Inc()
}

func (m *Metrics) Mutation(resource, op string, ok bool) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(resource, op, outcome(ok)).Inc()
}

func (m *Metrics) Rollback(resource string) {
	if m == nil {
		return
	}
	m.Rollbacks.WithLabelValues(resource).Inc()
}
