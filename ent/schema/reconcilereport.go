package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ReconcileReport holds the schema definition for the ReconcileReport
// entity: the summary row persisted by each reconciler run (§4.12).
type ReconcileReport struct {
	ent.Schema
}

// Fields of the ReconcileReport.
func (ReconcileReport) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.Time("started_at").
			Default(time.Now).
			Immutable(),
		field.Time("completed_at").
			Optional().
			Nillable(),
		field.Int("records_checked").
			Default(0),
		field.Int("mismatches_found").
			Default(0),
		field.Int("auto_repaired").
			Default(0),
		field.Int("failed_repairs").
			Default(0),
		field.JSON("details", []map[string]any{}).
			Optional(),
		field.Enum("status").
			Values("running", "completed", "failed").
			Default("running"),
	}
}

// Indexes of the ReconcileReport.
func (ReconcileReport) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("started_at"),
	}
}
