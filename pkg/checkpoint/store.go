// Package checkpoint implements C3: per-message per-stage JSON checkpoints
// stored as a structured sub-document on InboundMessage.checkpoints, merged
// field-by-field rather than overwritten whole-document (§4.2, §9).
package checkpoint

import (
	"context"
	"fmt"
	"time"

	"github.com/example/creditor-inbox/ent"
	"github.com/example/creditor-inbox/ent/inboundmessage"
)

// ValidationStatus is the header field common to every checkpoint payload.
type ValidationStatus string

const (
	ValidationPassed      ValidationStatus = "passed"
	ValidationNeedsReview ValidationStatus = "needs_review"
	ValidationFailed      ValidationStatus = "failed"
)

// Stage names, matching the tagged-union checkpoint keys from §9.
const (
	StageIntent        = "agent_1_intent"
	StageExtraction     = "agent_2_extraction"
	StageConsolidation = "agent_3_consolidation"
	StageReplyCheck    = "supplementary_reply_check"
)

// Payload is the envelope every checkpoint carries: a common header
// (timestamp, validation_status) plus stage-specific fields merged in.
type Payload map[string]any

// Store implements save/get/has_valid over InboundMessage.checkpoints.
type Store struct {
	client *ent.Client
}

// New constructs a checkpoint Store.
func New(client *ent.Client) *Store {
	return &Store{client: client}
}

// Save merges payload into the stage key of the message's checkpoints
// JSON column, injecting timestamp and validation_status if absent. The
// read-merge-write happens inside a transaction so concurrent sibling-stage
// writes to the same row never clobber each other (§4.2).
func (s *Store) Save(ctx context.Context, messageID, stage string, payload Payload) error {
	tx, err := s.client.Tx(ctx)
	if err != nil {
		return fmt.Errorf("checkpoint save: begin tx: %w", err)
	}

	msg, err := tx.InboundMessage.Query().
		Where(inboundmessage.ID(messageID)).
		ForUpdate().
		Only(ctx)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("checkpoint save: load message: %w", err)
	}

	checkpoints := msg.Checkpoints
	if checkpoints == nil {
		checkpoints = make(map[string]any)
	}

	if _, ok := payload["timestamp"]; !ok {
		payload["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	}
	if _, ok := payload["validation_status"]; !ok {
		payload["validation_status"] = string(ValidationPassed)
	}
	checkpoints[stage] = map[string]any(payload)

	if _, err := tx.InboundMessage.UpdateOneID(messageID).
		SetCheckpoints(checkpoints).
		Save(ctx); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("checkpoint save: write back: %w", err)
	}

	return tx.Commit()
}

// Get returns the stage's checkpoint payload, or (nil, false) if absent.
func (s *Store) Get(ctx context.Context, messageID, stage string) (Payload, bool, error) {
	msg, err := s.client.InboundMessage.Query().
		Where(inboundmessage.ID(messageID)).
		Only(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("checkpoint get: %w", err)
	}
	raw, ok := msg.Checkpoints[stage]
	if !ok {
		return nil, false, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, false, nil
	}
	return Payload(m), true, nil
}

// HasValid reports whether stage has a checkpoint whose validation_status
// is anything other than "failed" — such a stage is replay-skippable.
func (s *Store) HasValid(ctx context.Context, messageID, stage string) (bool, error) {
	payload, ok, err := s.Get(ctx, messageID, stage)
	if err != nil || !ok {
		return false, err
	}
	status, _ := payload["validation_status"].(string)
	return status != string(ValidationFailed), nil
}
