// Package queue implements C9: claim-and-lock message dispatch and the
// worker pool that runs the per-message pipeline.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/example/creditor-inbox/ent"
	"github.com/example/creditor-inbox/ent/inboundmessage"
)

// Sentinel errors for queue operations.
var (
	// ErrNoMessagesAvailable indicates no queued messages are pending claim.
	ErrNoMessagesAvailable = errors.New("no messages available")

	// ErrAtCapacity indicates the global concurrent message limit has been reached.
	ErrAtCapacity = errors.New("at capacity")
)

// MessageExecutor owns the entire per-message pipeline: A1/A2/A3, matching,
// confidence routing, and the dual-store commit. It writes progressively
// during execution (checkpoints, match results); the worker only handles
// claiming and the final state transition.
type MessageExecutor interface {
	Execute(ctx context.Context, message *ent.InboundMessage) *PipelineResult
}

// PipelineResult is the terminal outcome of one message's pipeline run.
type PipelineResult struct {
	Status      inboundmessage.ProcessingStatus
	NeedsReview bool
	Error       error
}

// PoolHealth contains health information for the entire worker pool.
type PoolHealth struct {
	IsHealthy      bool           `json:"is_healthy"`
	DBReachable    bool           `json:"db_reachable"`
	DBError        string         `json:"db_error,omitempty"`
	PodID          string         `json:"pod_id"`
	ActiveWorkers  int            `json:"active_workers"`
	TotalWorkers   int            `json:"total_workers"`
	ActiveMessages int            `json:"active_messages"`
	MaxConcurrent  int            `json:"max_concurrent"`
	QueueDepth     int            `json:"queue_depth"`
	WorkerStats    []WorkerHealth `json:"worker_stats"`
}

// WorkerHealth contains health information for a single worker.
type WorkerHealth struct {
	ID                string    `json:"id"`
	Status            string    `json:"status"` // "idle" or "working"
	CurrentMessageID  string    `json:"current_message_id,omitempty"`
	MessagesProcessed int       `json:"messages_processed"`
	LastActivity      time.Time `json:"last_activity"`
}
