package metrics

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/example/creditor-inbox/ent"
)

// Recorder writes raw metric samples, best-effort (swallow-on-error per
// §7), and mirrors them into the live Prometheus vectors.
type Recorder struct {
	client *ent.Client
}

// NewRecorder builds a Recorder over the given ent client.
func NewRecorder(client *ent.Client) *Recorder {
	return &Recorder{client: client}
}

// recordRaw persists one MetricRaw row, logging but not propagating
// failures.
func (r *Recorder) recordRaw(ctx context.Context, metricType string, value float64, labels map[string]string) {
	builder := r.client.MetricRaw.Create().
		SetID(uuid.New().String()).
		SetMetricType(metricType).
		SetValue(value)
	if labels != nil {
		builder = builder.SetLabels(labels)
	}
	if _, err := builder.Save(ctx); err != nil {
		slog.Warn("metrics: failed to record raw sample", "metric_type", metricType, "error", err)
	}
}

// QueueDepth records the current queue depth for a processing_status.
func (r *Recorder) QueueDepth(ctx context.Context, status string, depth int) {
	queueDepthGauge.WithLabelValues(status).Set(float64(depth))
	r.recordRaw(ctx, "queue_depth", float64(depth), map[string]string{"status": status})
}

// StageDuration records how long one pipeline stage took.
func (r *Recorder) StageDuration(ctx context.Context, stage string, d time.Duration) {
	stageDurationHistogram.WithLabelValues(stage).Observe(d.Seconds())
	r.recordRaw(ctx, "stage_duration_ms", float64(d.Milliseconds()), map[string]string{"stage": stage})
}

// StageError records a pipeline stage failure.
func (r *Recorder) StageError(ctx context.Context, stage, errorClass string) {
	stageErrorCounter.WithLabelValues(stage, errorClass).Inc()
	r.recordRaw(ctx, "stage_error", 1, map[string]string{"stage": stage, "error_class": errorClass})
}

// TokenUsage records token consumption for one model call.
func (r *Recorder) TokenUsage(ctx context.Context, model string, inputTokens, outputTokens int) {
	tokenUsageCounter.WithLabelValues(model, "input").Add(float64(inputTokens))
	tokenUsageCounter.WithLabelValues(model, "output").Add(float64(outputTokens))
	r.recordRaw(ctx, "token_usage", float64(inputTokens+outputTokens), map[string]string{"model": model})
}

// ConfidenceTier records which tier a message landed in.
func (r *Recorder) ConfidenceTier(ctx context.Context, tier string) {
	confidenceDistributionCounter.WithLabelValues(tier).Inc()
	r.recordRaw(ctx, "confidence_distribution", 1, map[string]string{"tier": tier})
}

// PromptLatency records one LLM prompt's latency and outcome.
func (r *Recorder) PromptLatency(ctx context.Context, model string, success bool, d time.Duration) {
	promptLatencyHistogram.WithLabelValues(model, strconv.FormatBool(success)).Observe(d.Seconds())
	r.recordRaw(ctx, "prompt_latency_ms", float64(d.Milliseconds()), map[string]string{"model": model, "success": strconv.FormatBool(success)})
}
