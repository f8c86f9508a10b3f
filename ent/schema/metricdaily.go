package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// MetricDaily holds the schema definition for the MetricDaily entity: the
// permanent daily rollup of MetricRaw samples, one row per
// (metric_type, date, labels_key).
type MetricDaily struct {
	ent.Schema
}

// Fields of the MetricDaily.
func (MetricDaily) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("metric_type"),
		field.Time("date").
			Immutable(),
		field.String("labels_key").
			Default("").
			Comment("canonical serialization of the label set this rollup covers"),
		field.Int("sample_count"),
		field.Float("sum"),
		field.Float("avg"),
		field.Float("min"),
		field.Float("max"),
		field.Float("p95"),
	}
}

// Indexes of the MetricDaily.
func (MetricDaily) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("metric_type", "date", "labels_key").
			Unique(),
	}
}
