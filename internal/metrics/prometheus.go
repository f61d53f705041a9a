// Package metrics holds the Prometheus collectors shared by the transmitter, the dispatcher and the mock receiver.
package metrics

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "goSsf"

var (
	// Sends counts transmission attempts by provider, event and result (success, rejected, transport, local).
	Sends = registerCounterVec(prometheus.DefaultRegisterer, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transmitter",
			Name:      "sends_total",
			Help:      "SET transmission attempts",
		},
		[]string{"provider", "event", "result"},
	))

	SendSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "transmitter",
		Name:      "send_seconds",
		Help:      "Duration of SET POST requests.",
	})

	// DispatchItems counts work items reaching a terminal or skipped state.
	DispatchItems = registerCounterVec(prometheus.DefaultRegisterer, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "items_total",
			Help:      "Work items processed by dispatch runs",
		},
		[]string{"state"},
	))

	ReceiverEvents = registerCounterVec(prometheus.DefaultRegisterer, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "receiver",
			Name:      "events_total",
			Help:      "SETs received by the mock receiver",
		},
		[]string{"result"},
	))

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_duration_seconds",
		Help:      "Duration of HTTP requests.",
	}, []string{"path"})
)

func PrometheusHttpMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}
		timer := prometheus.NewTimer(httpDuration.WithLabelValues(path))
		next.ServeHTTP(w, r)
		timer.ObserveDuration()
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// registerCounterVec returns the collector already registered under the same descriptor, if any. Any other
// registration error is a programming error and panics like promauto.
func registerCounterVec(reg prometheus.Registerer, collector *prometheus.CounterVec) *prometheus.CounterVec {
	err := reg.Register(collector)
	if err == nil {
		return collector
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
			return existing
		}
	}
	panic(err)
}
