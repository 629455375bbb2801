// Package metrics exposes the service's Prometheus metrics. A nil *Metrics is
// valid and records nothing, so components can be built without metrics.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "silentsos"

type Metrics struct {
	AlertsCreated    *prometheus.CounterVec
	Broadcasts       *prometheus.CounterVec
	Validations      *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	WebsocketClients prometheus.Gauge

	registry *prometheus.Registry
}

// New registers all collectors, plus the Go and process collectors, on a
// fresh registry.
func New() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		AlertsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_created_total",
			Help:      "Total number of alerts created, by alert type",
		}, []string{"type"}),
		Broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_broadcasts_total",
			Help:      "Alert notifications sent, by transport and result",
		}, []string{"transport", "result"}),
		Validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Alert validations recorded, by outcome",
		}, []string{"outcome"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		WebsocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Currently connected alert websocket subscribers",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.AlertsCreated,
		m.Broadcasts,
		m.Validations,
		m.RequestDuration,
		m.WebsocketClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return m, nil
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) AlertCreated(alertType string) {
	if m == nil {
		return
	}
	m.AlertsCreated.WithLabelValues(alertType).Inc()
}

// BroadcastResult counts one publish attempt on transport.
func (m *Metrics) BroadcastResult(transport string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.Broadcasts.WithLabelValues(transport, result).Inc()
}

func (m *Metrics) ValidationRecorded(isTrue bool) {
	if m == nil {
		return
	}
	m.Validations.WithLabelValues(strconv.FormatBool(isTrue)).Inc()
}

func (m *Metrics) WebsocketConnected() {
	if m == nil {
		return
	}
	m.WebsocketClients.Inc()
}

func (m *Metrics) WebsocketDisconnected() {
	if m == nil {
		return
	}
	m.WebsocketClients.Dec()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware observes request latency labelled by the matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if m == nil {
			ctx.Next()
			return
		}

		start := time.Now()
		ctx.Next()

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}

		m.RequestDuration.
			WithLabelValues(ctx.Request.Method, route, strconv.Itoa(ctx.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
