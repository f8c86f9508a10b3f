package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// OutboundInquiry holds the schema definition for the OutboundInquiry entity.
// Owned by an external ingest component; the matching engine only reads it.
type OutboundInquiry struct {
	ent.Schema
}

// Fields of the OutboundInquiry.
func (OutboundInquiry) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("client_name"),
		field.String("client_name_normalized").
			Comment("case-folded, whitespace-collapsed form used for dedup and fuzzy matching"),
		field.String("creditor_name"),
		field.String("creditor_name_normalized"),
		field.Text("creditor_address").
			Optional().
			Nillable(),
		field.String("creditor_email").
			Optional().
			Nillable(),
		field.Float("debt_amount"),
		field.String("reference_number").
			Optional().
			Nillable(),
		field.String("external_ticket_id").
			Optional().
			Nillable(),
		field.String("external_conversation_id").
			Optional().
			Nillable(),
		field.String("external_provider_message_id").
			Optional().
			Nillable(),
		field.String("provider").
			Optional().
			Nillable(),
		field.Time("sent_at"),
		field.Enum("status").
			Values("active", "matched", "expired").
			Default("active"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Indexes of the OutboundInquiry.
func (OutboundInquiry) Indexes() []ent.Index {
	return []ent.Index{
		// candidate window query: sent_at BETWEEN received-30d AND received
		index.Fields("sent_at"),
		index.Fields("creditor_email"),
		// dedup lookup on ingest: (normalized_client_name, creditor_email) + provider id
		index.Fields("client_name_normalized", "creditor_email"),
	}
}
