package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// InboundMessage holds the schema definition for the InboundMessage entity.
// It is the central aggregate of the pipeline: one row per creditor email,
// carrying its own state machine, checkpoints, match outcome and confidence.
type InboundMessage struct {
	ent.Schema
}

// Fields of the InboundMessage.
func (InboundMessage) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("external_webhook_id").
			Unique().
			Comment("Dedup key supplied by the ingress adapter"),
		field.String("sender_address"),
		field.String("subject").
			Optional(),
		field.Text("raw_html_body").
			Optional().
			Nillable(),
		field.Text("raw_text_body").
			Optional().
			Nillable(),
		field.Text("cleaned_body").
			Optional().
			Nillable(),
		field.Int("tokens_before_clean").
			Optional().
			Nillable(),
		field.Int("tokens_after_clean").
			Optional().
			Nillable(),
		field.JSON("attachments", []map[string]any{}).
			Optional().
			Comment("Ordered {external_id, filename, mime_type, url?, size_bytes}"),
		field.Enum("processing_status").
			Values(
				"received", "queued", "processing", "parsed",
				"intent_classifying", "content_extracting", "consolidating",
				"content_extracted", "extracting", "extracted", "matching",
				"completed", "failed", "not_creditor_reply",
			).
			Default("received"),
		field.Time("received_at").
			Default(time.Now),
		field.Time("started_at").
			Optional().
			Nillable(),
		field.Time("completed_at").
			Optional().
			Nillable(),
		field.Time("processed_at").
			Optional().
			Nillable(),
		field.Int("retry_count").
			Default(0),
		field.String("last_error").
			Optional().
			Nillable(),
		field.JSON("extracted_data", map[string]any{}).
			Optional().
			Comment("Final ConsolidatedExtraction, merged across A1-A3"),
		field.JSON("checkpoints", map[string]any{}).
			Optional().
			Comment("stage_name -> {payload, timestamp, validation_status}; field-merged, never overwritten wholesale"),
		field.String("matched_inquiry_id").
			Optional().
			Nillable(),
		field.Float("match_confidence").
			Optional().
			Nillable(),
		field.Enum("match_status").
			Values("auto_matched", "needs_review", "no_match").
			Optional().
			Nillable(),
		field.Float("confidence_extraction").
			Optional().
			Nillable(),
		field.Float("confidence_overall").
			Optional().
			Nillable(),
		field.String("confidence_route").
			Optional().
			Nillable(),
		field.Bool("needs_review").
			Default(false),
		field.Enum("sync_status").
			Values("pending", "synced", "failed", "not_applicable").
			Default("not_applicable"),
		field.String("idempotency_key").
			Optional().
			Nillable().
			Unique(),
	}
}

// Edges of the InboundMessage.
func (InboundMessage) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("review_items", ReviewItem.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("match_results", MatchResult.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the InboundMessage.
func (InboundMessage) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("processing_status"),
		index.Fields("processing_status", "received_at"),
		index.Fields("sender_address"),
		// stale-processing scan in the auditor (24h rule, §4.12)
		index.Fields("processing_status", "started_at"),
	}
}
