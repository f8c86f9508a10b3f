package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// CalibrationSample holds the schema definition for the CalibrationSample
// entity: a labeled sample tying a review resolution to the pipeline's
// predicted confidence, for future threshold calibration (§4.13).
type CalibrationSample struct {
	ent.Schema
}

// Fields of the CalibrationSample.
func (CalibrationSample) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("review_item_id").
			Optional().
			Nillable(),
		field.String("message_id").
			Optional().
			Nillable(),
		field.Bool("was_correct"),
		field.String("correction_type").
			Optional().
			Nillable().
			Comment("single-field tag, or 'multiple'"),
		field.String("document_type").
			Optional().
			Nillable().
			Comment("derived from the A2 checkpoint's source mix"),
		field.String("confidence_bucket").
			Comment("HIGH, MEDIUM, or LOW"),
		field.Float("predicted_confidence").
			Optional().
			Nillable(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Indexes of the CalibrationSample.
func (CalibrationSample) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("document_type", "confidence_bucket"),
	}
}
