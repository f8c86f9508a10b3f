package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// MetricRaw holds the schema definition for the MetricRaw entity: an
// individual operational or per-prompt sample, rolled up daily into
// MetricDaily and retained for 30 days (§4.13).
type MetricRaw struct {
	ent.Schema
}

// Fields of the MetricRaw.
func (MetricRaw) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("metric_type").
			Comment("e.g. queue_depth, stage_duration_ms, token_usage, prompt_latency_ms"),
		field.Float("value"),
		field.JSON("labels", map[string]string{}).
			Optional(),
		field.Time("recorded_at").
			Default(time.Now).
			Immutable(),
	}
}

// Indexes of the MetricRaw.
func (MetricRaw) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("metric_type", "recorded_at"),
	}
}
