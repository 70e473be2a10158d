// Package metrics exposes Prometheus collectors for the HTTP layer and the
// CRM domain.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns every collector so tests can build isolated instances.
type Registry struct {
	reg *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	ProspectsCreated *prometheus.CounterVec
	ProspectScore    prometheus.Histogram
	CampaignMessages *prometheus.CounterVec
	TasksCompleted   prometheus.Counter
}

// New builds a registry with Go runtime and process collectors attached.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crm_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		ProspectsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_prospects_created_total",
				Help: "Prospects created, by segment",
			},
			[]string{"segment"},
		),
		ProspectScore: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crm_prospect_score",
				Help:    "Distribution of computed prospect scores",
				Buckets: prometheus.LinearBuckets(50, 10, 6),
			},
		),
		CampaignMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_campaign_messages_total",
				Help: "Campaign messages by channel and result",
			},
			[]string{"channel", "result"},
		),
		TasksCompleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "crm_tasks_completed_total",
				Help: "Tasks marked done",
			},
		),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.RequestsTotal,
		r.RequestDuration,
		r.ProspectsCreated,
		r.ProspectScore,
		r.CampaignMessages,
		r.TasksCompleted,
	)
	return r
}

// ObserveProspect records a freshly created prospect.
func (r *Registry) ObserveProspect(segment string, score int) {
	if r == nil {
		return
	}
	r.ProspectsCreated.WithLabelValues(segment).Inc()
	r.ProspectScore.Observe(float64(score))
}

// ObserveCampaignMessage records one outbound campaign message.
func (r *Registry) ObserveCampaignMessage(channel string, err error) {
	if r == nil {
		return
	}
	r.CampaignMessages.WithLabelValues(channel, Outcome(err)).Inc()
}

// ObserveTaskCompleted records a task transition to done.
func (r *Registry) ObserveTaskCompleted() {
	if r == nil {
		return
	}
	r.TasksCompleted.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer exposes the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Middleware records request counts and latency keyed by route template.
func (r *Registry) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		r.RequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		r.RequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Outcome labels a success flag for counters.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
