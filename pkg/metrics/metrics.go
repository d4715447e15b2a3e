package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/medlinkx/medlinkx/internal/common/cnst"
	"github.com/medlinkx/medlinkx/internal/common/config"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry   *prometheus.Registry
	namespace  string
	httpReqCnt *prometheus.CounterVec
	httpDur    *prometheus.HistogramVec
	httpInfl   *prometheus.GaugeVec
	mutCnt     *prometheus.CounterVec
	mutDur     *prometheus.HistogramVec
	loadCnt    *prometheus.CounterVec
	decisions  *prometheus.CounterVec
}

func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}
	r := prometheus.NewRegistry()
	// Register standard process and Go collectors
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total"}, []string{"method", "route", "status"})
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "http_request_duration_seconds", Buckets: buckets}, []string{"method", "route", "status"})
	httpInfl := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: ns, Name: "http_requests_inflight"}, []string{"route"})
	r.MustRegister(httpReqCnt, httpDur, httpInfl)

	mutCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "mutations_total", Help: "Registry and access rule mutations by outcome"}, []string{"document", "action", "outcome"})
	mutDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "mutation_duration_seconds", Buckets: buckets}, []string{"document", "action"})
	loadCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "document_loads_total", Help: "Document loads by recovery source"}, []string{"document", "source"})
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "access_decisions_total"}, []string{"decision"})
	r.MustRegister(mutCnt, mutDur, loadCnt, decisions)

	return &Metrics{
		registry:   r,
		namespace:  ns,
		httpReqCnt: httpReqCnt,
		httpDur:    httpDur,
		httpInfl:   httpInfl,
		mutCnt:     mutCnt,
		mutDur:     mutDur,
		loadCnt:    loadCnt,
		decisions:  decisions,
	}
}

// MutationDone records one registry or rule mutation
func (m *Metrics) MutationDone(document string, action cnst.ActionType, since time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.mutCnt.WithLabelValues(document, action.String(), outcome).Inc()
	m.mutDur.WithLabelValues(document, action.String()).Observe(time.Since(since).Seconds())
}

// DocumentLoaded records how a document load was resolved: stored, salvaged or defaults
func (m *Metrics) DocumentLoaded(document, source string) {
	if m == nil {
		return
	}
	m.loadCnt.WithLabelValues(document, source).Inc()
}

// AccessDecision records one authorization check made by the HTTP surface
func (m *Metrics) AccessDecision(allowed bool) {
	if m == nil {
		return
	}
	decision := "denied"
	if allowed {
		decision = "allowed"
	}
	m.decisions.WithLabelValues(decision).Inc()
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpInfl.WithLabelValues(route).Inc()
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		m.httpReqCnt.WithLabelValues(c.Request.Method, route, status).Inc()
		m.httpDur.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpInfl.WithLabelValues(route).Dec()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
