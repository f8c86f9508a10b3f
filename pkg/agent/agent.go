// Package agent implements the three-stage checkpointed pipeline (A1
// intent, A2 extraction, A3 consolidation) that the job worker runs for
// every InboundMessage (§4.3, §4.6).
package agent

import "context"

// Agent runs one checkpointed pipeline stage.
type Agent interface {
	// Execute runs the stage, or returns the stage's cached checkpoint
	// result without re-running when one is already valid (idempotent
	// replay, §4.3).
	Execute(ctx context.Context, msgCtx *MessageContext) (*StageResult, error)
}

// Status is the outcome of one stage run.
type Status string

const (
	StatusPassed      Status = "passed"
	StatusNeedsReview Status = "needs_review"
	StatusFailed      Status = "failed"
	StatusSkipped     Status = "skipped"
)

// StageResult is returned by Agent.Execute.
type StageResult struct {
	Status     Status
	Payload    map[string]any
	Error      error
	TokensUsed int
}
