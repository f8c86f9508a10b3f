package database

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect/sql"
)

// CreateGINIndexes creates full-text search GIN indexes for PostgreSQL.
// These indexes enable efficient full-text search over cleaned message
// bodies and extracted claim data, which are not expressible as plain
// Ent schema indexes.
func CreateGINIndexes(ctx context.Context, driver *sql.Driver) error {
	db := driver.DB()

	_, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_inbound_messages_cleaned_body_gin
		ON inbound_messages USING gin(to_tsvector('german', COALESCE(cleaned_body, '')))`)
	if err != nil {
		return fmt.Errorf("failed to create cleaned_body GIN index: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_inbound_messages_extracted_data_gin
		ON inbound_messages USING gin(extracted_data jsonb_path_ops)`)
	if err != nil {
		return fmt.Errorf("failed to create extracted_data GIN index: %w", err)
	}

	return nil
}
