package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// OutboxMessage holds the schema definition for the OutboxMessage entity.
// Invariant: a row is created in the same transaction as the primary-store
// effect it represents (Phase A of the dual-store writer, §4.10).
type OutboxMessage struct {
	ent.Schema
}

// Fields of the OutboxMessage.
func (OutboxMessage) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("aggregate_type"),
		field.String("aggregate_id"),
		field.String("operation"),
		field.JSON("payload", map[string]any{}),
		field.String("idempotency_key").
			Unique(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("processed_at").
			Optional().
			Nillable(),
		field.Int("retry_count").
			Default(0),
		field.Int("max_retries").
			Default(5),
		field.Text("last_error").
			Optional().
			Nillable(),
	}
}

// Indexes of the OutboxMessage.
func (OutboxMessage) Indexes() []ent.Index {
	return []ent.Index{
		// unprocessed polling, oldest first (reconciler's Phase-B retry pass)
		index.Fields("processed_at", "retry_count").
			Annotations(entsql.IndexWhere("processed_at IS NULL")),
		index.Fields("aggregate_type", "aggregate_id"),
	}
}
