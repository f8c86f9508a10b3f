package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// MatchResult holds the schema definition for the MatchResult entity.
// One row per scored candidate per matching run; ranked 1..N, with exactly
// one `selected` row when the matcher reaches a decision.
type MatchResult struct {
	ent.Schema
}

// Fields of the MatchResult.
func (MatchResult) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("inbound_message_id").
			Immutable(),
		field.String("inquiry_id").
			Immutable(),
		field.Float("total_score"),
		field.String("confidence_tier").
			Optional().
			Nillable(),
		field.JSON("signal_scores", map[string]float64{}).
			Optional(),
		field.JSON("scoring_details", map[string]any{}).
			Optional().
			Comment("explainability JSON, schema version v2.0 (§4.7)"),
		field.Float("ambiguity_gap").
			Optional().
			Nillable(),
		field.Int("rank"),
		field.Bool("selected").
			Default(false),
		field.String("selection_method").
			Optional().
			Nillable(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the MatchResult.
func (MatchResult) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("message", InboundMessage.Type).
			Ref("match_results").
			Field("inbound_message_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the MatchResult.
func (MatchResult) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("inbound_message_id", "rank"),
	}
}
