// Package metrics implements C13: calibration sample capture and
// operational metrics, recorded as raw rows with a daily rollup, alongside
// live Prometheus counters/gauges for dashboards (§4.13).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var queueDepthGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "creditor_inbox_queue_depth",
	Help: "number of InboundMessage rows waiting to be claimed, by processing_status",
}, []string{"status"})

var stageDurationHistogram = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "creditor_inbox_stage_duration_seconds",
	Help:    "duration of one pipeline stage",
	Buckets: prometheus.DefBuckets,
}, []string{"stage"})

var stageErrorCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "creditor_inbox_stage_errors_total",
	Help: "count of pipeline stage failures by stage and error class",
}, []string{"stage", "error_class"})

var tokenUsageCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "creditor_inbox_llm_tokens_total",
	Help: "cumulative input+output tokens consumed, by model and direction",
}, []string{"model", "direction"})

var confidenceDistributionCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "creditor_inbox_confidence_tier_total",
	Help: "count of messages landing in each confidence tier",
}, []string{"tier"})

var promptLatencyHistogram = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "creditor_inbox_prompt_latency_seconds",
	Help:    "per-prompt LLM call latency",
	Buckets: prometheus.DefBuckets,
}, []string{"model", "success"})
