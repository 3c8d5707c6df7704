// Package metrics provides Prometheus-compatible metrics for the analysis
// pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"solguardian/types"
)

// Collector bundles the pipeline's metrics on a dedicated registry.
type Collector struct {
	registry *prometheus.Registry

	analysesTotal    *prometheus.CounterVec
	indicatorsTotal  *prometheus.CounterVec
	toolRunsTotal    *prometheus.CounterVec
	knowledgeQueries prometheus.Counter
	analysisDuration prometheus.Histogram
}

// NewCollector creates a collector with its own registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	c := &Collector{
		registry: registry,
		analysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "solguardian",
			Name:      "analyses_total",
			Help:      "Completed analyses by resulting risk level.",
		}, []string{"risk_level"}),
		indicatorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "solguardian",
			Name:      "indicators_total",
			Help:      "Heuristic indicators found by severity.",
		}, []string{"severity"}),
		toolRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "solguardian",
			Name:      "tool_runs_total",
			Help:      "External tool runs by tool and status.",
		}, []string{"tool", "status"}),
		knowledgeQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "solguardian",
			Name:      "knowledge_queries_total",
			Help:      "Knowledge-base queries issued.",
		}),
		analysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "solguardian",
			Name:      "analysis_duration_seconds",
			Help:      "Wall-clock duration of analyze calls.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	registry.MustRegister(c.analysesTotal, c.indicatorsTotal, c.toolRunsTotal, c.knowledgeQueries, c.analysisDuration)
	return c
}

// ObserveReport records the metrics of one completed analysis.
func (c *Collector) ObserveReport(report *types.AnalysisReport) {
	if c == nil {
		return
	}
	c.analysesTotal.WithLabelValues(string(report.Risk.Level)).Inc()
	for sev, n := range report.Contract.SeverityBreakdown {
		c.indicatorsTotal.WithLabelValues(string(sev)).Add(float64(n))
	}
	for _, tr := range report.Tools {
		c.toolRunsTotal.WithLabelValues(tr.Tool, string(tr.Status)).Inc()
	}
	if report.Knowledge != nil {
		c.knowledgeQueries.Add(float64(len(report.Knowledge.Queries)))
	}
	c.analysisDuration.Observe(report.Duration.Seconds())
}

// Handler exposes the registry in Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
