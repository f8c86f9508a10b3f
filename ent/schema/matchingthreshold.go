package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// MatchingThreshold holds the schema definition for the MatchingThreshold
// entity: runtime-tunable configuration keyed by (category, threshold_type,
// weight_name). Lookup falls back specific-category -> "default" -> compiled
// constants (ThresholdManager, §4.7/§9).
type MatchingThreshold struct {
	ent.Schema
}

// Fields of the MatchingThreshold.
func (MatchingThreshold) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("category").
			Default("default"),
		field.String("threshold_type").
			Comment("e.g. min_match, gap, weight, name_only_override"),
		field.String("weight_name").
			Default("").
			Comment("empty string when threshold_type is not a per-signal weight"),
		field.Float("value"),
	}
}

// Indexes of the MatchingThreshold.
func (MatchingThreshold) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("category", "threshold_type", "weight_name").
			Unique(),
	}
}
