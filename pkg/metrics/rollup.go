package metrics

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/example/creditor-inbox/ent"
	"github.com/example/creditor-inbox/ent/metricdaily"
	"github.com/example/creditor-inbox/ent/metricraw"
)

// rollupInterval is the rollup job's own ticker period, independent of the
// reconciler's hourly loop (§4.13).
const rollupInterval = 24 * time.Hour

// Roller runs the daily raw-to-rollup job.
type Roller struct {
	client *ent.Client

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRoller builds a Roller over the given ent client.
func NewRoller(client *ent.Client) *Roller {
	return &Roller{client: client}
}

// Start launches the background rollup loop.
func (r *Roller) Start(ctx context.Context) {
	if r.cancel != nil {
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	go r.run(ctx)
	slog.Info("metrics rollup started", "interval", rollupInterval)
}

// Stop signals the rollup loop to exit and waits for it to finish.
func (r *Roller) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	slog.Info("metrics rollup stopped")
}

func (r *Roller) run(ctx context.Context) {
	defer close(r.done)

	r.RollupYesterday(ctx)

	ticker := time.NewTicker(rollupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RollupYesterday(ctx)
		}
	}
}

// RollupYesterday rolls up the previous UTC day's MetricRaw rows into
// MetricDaily, grouped by (metric_type, labels_key).
func (r *Roller) RollupYesterday(ctx context.Context) {
	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day()-1, 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	rows, err := r.client.MetricRaw.Query().
		Where(
			metricraw.RecordedAtGTE(dayStart),
			metricraw.RecordedAtLT(dayEnd),
		).
		All(ctx)
	if err != nil {
		slog.Error("metrics rollup: failed to query raw rows", "error", err)
		return
	}

	type group struct {
		values []float64
	}
	groups := make(map[string]*group)
	metricTypeByKey := make(map[string]string)
	labelsKeyByKey := make(map[string]string)

	for _, row := range rows {
		lk := labelsKey(row.Labels)
		key := row.MetricType + "|" + lk
		g, ok := groups[key]
		if !ok {
			g = &group{}
			groups[key] = g
			metricTypeByKey[key] = row.MetricType
			labelsKeyByKey[key] = lk
		}
		g.values = append(g.values, row.Value)
	}

	for key, g := range groups {
		agg := aggregate(g.values)
		metricType := metricTypeByKey[key]
		lk := labelsKeyByKey[key]

		existing, err := r.client.MetricDaily.Query().
			Where(
				metricdaily.MetricTypeEQ(metricType),
				metricdaily.DateEQ(dayStart),
				metricdaily.LabelsKeyEQ(lk),
			).
			Only(ctx)
		if err != nil && !ent.IsNotFound(err) {
			slog.Error("metrics rollup: failed to query existing rollup", "metric_type", metricType, "error", err)
			continue
		}

		if existing != nil {
			_, err = existing.Update().
				SetSampleCount(agg.count).
				SetSum(agg.sum).
				SetAvg(agg.avg).
				SetMin(agg.min).
				SetMax(agg.max).
				SetP95(agg.p95).
				Save(ctx)
		} else {
			_, err = r.client.MetricDaily.Create().
				SetID(uuid.New().String()).
				SetMetricType(metricType).
				SetDate(dayStart).
				SetLabelsKey(lk).
				SetSampleCount(agg.count).
				SetSum(agg.sum).
				SetAvg(agg.avg).
				SetMin(agg.min).
				SetMax(agg.max).
				SetP95(agg.p95).
				Save(ctx)
		}
		if err != nil {
			slog.Error("metrics rollup: failed to persist rollup", "metric_type", metricType, "error", err)
		}
	}
}

type aggregation struct {
	count    int
	sum      float64
	avg      float64
	min      float64
	max      float64
	p95      float64
}

func aggregate(values []float64) aggregation {
	if len(values) == 0 {
		return aggregation{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}

	idx := int(float64(len(sorted))*0.95) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}

	return aggregation{
		count: len(sorted),
		sum:   sum,
		avg:   sum / float64(len(sorted)),
		min:   sorted[0],
		max:   sorted[len(sorted)-1],
		p95:   sorted[idx],
	}
}

// labelsKey canonically serializes a label set into a deterministic string
// key, sorted so the same label set always maps to the same rollup row.
func labelsKey(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := ""
	for i, k := range keys {
		if i > 0 {
			out += ","
		}
		out += k + "=" + labels[k]
	}
	return out
}
