package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ReviewItem holds the schema definition for the ReviewItem entity.
// Invariant: a message has at most one unresolved ReviewItem (enforced by
// the partial unique index below); a claimed-but-unresolved item blocks
// re-claiming.
type ReviewItem struct {
	ent.Schema
}

// Fields of the ReviewItem.
func (ReviewItem) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("message_id").
			Immutable(),
		field.Enum("reason").
			Values(
				"low_confidence", "conflict_detected", "validation_failed",
				"manual_escalation", "ambiguous_match", "no_recent_inquiry",
				"below_threshold", "extraction_error", "missing_data",
				"duplicate_suspected",
			),
		field.JSON("reason_details", map[string]any{}).
			Optional(),
		field.Int("priority").
			Comment("1 highest ... 10 lowest; see priority map in §4.11"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("claimed_at").
			Optional().
			Nillable(),
		field.String("claimed_by").
			Optional().
			Nillable(),
		field.Time("resolved_at").
			Optional().
			Nillable(),
		field.Enum("resolution").
			Values("approved", "rejected", "corrected", "escalated", "spam").
			Optional().
			Nillable(),
		field.Text("resolution_notes").
			Optional().
			Nillable(),
		field.Time("expires_at").
			Optional().
			Nillable(),
	}
}

// Edges of the ReviewItem.
func (ReviewItem) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("message", InboundMessage.Type).
			Ref("review_items").
			Field("message_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the ReviewItem.
func (ReviewItem) Indexes() []ent.Index {
	return []ent.Index{
		// at most one unresolved item per message
		index.Fields("message_id").
			Unique().
			Annotations(entsql.IndexWhere("resolved_at IS NULL")),
		// unresolved queue ordering: priority asc, created_at asc
		index.Fields("priority", "created_at").
			Annotations(entsql.IndexWhere("resolved_at IS NULL")),
		// claimed-but-unresolved (for stats and stale-claim detection)
		index.Fields("claimed_at").
			Annotations(entsql.IndexWhere("claimed_at IS NOT NULL AND resolved_at IS NULL")),
	}
}
