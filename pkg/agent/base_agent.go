package agent

import (
	"context"
	"fmt"

	"github.com/example/creditor-inbox/pkg/checkpoint"
)

// Controller runs one stage's actual logic, on top of the common
// checkpoint-replay shell BaseAgent provides.
type Controller interface {
	Stage() string
	Run(ctx context.Context, msgCtx *MessageContext) (*StageResult, error)
}

// BaseAgent delegates to a Controller, short-circuiting to a stage's
// existing checkpoint when one is already valid — all three agents are
// idempotent via checkpoint reads (§4.6).
type BaseAgent struct {
	controller Controller
	checkpoints *checkpoint.Store
}

// NewBaseAgent builds an agent backed by the given controller and
// checkpoint store. Panics if controller is nil (programming error in the
// pipeline wiring).
func NewBaseAgent(controller Controller, checkpoints *checkpoint.Store) *BaseAgent {
	if controller == nil {
		panic("NewBaseAgent: controller must not be nil")
	}
	return &BaseAgent{controller: controller, checkpoints: checkpoints}
}

// Execute replays a valid checkpoint when present, otherwise runs the
// controller and persists its result.
func (a *BaseAgent) Execute(ctx context.Context, msgCtx *MessageContext) (*StageResult, error) {
	stage := a.controller.Stage()

	if ok, err := a.checkpoints.HasValid(ctx, msgCtx.MessageID, stage); err == nil && ok {
		payload, found, err := a.checkpoints.Get(ctx, msgCtx.MessageID, stage)
		if err == nil && found {
			return &StageResult{Status: statusFromPayload(payload), Payload: payload}, nil
		}
	}

	result, err := a.controller.Run(ctx, msgCtx)
	if err != nil {
		return &StageResult{Status: StatusFailed, Error: err}, nil
	}
	if result == nil {
		return &StageResult{Status: StatusFailed, Error: fmt.Errorf("controller returned nil result")}, nil
	}

	payload := result.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	payload["validation_status"] = string(result.Status)
	if err := a.checkpoints.Save(ctx, msgCtx.MessageID, stage, payload); err != nil {
		return nil, fmt.Errorf("failed to persist %s checkpoint: %w", stage, err)
	}

	return result, nil
}

func statusFromPayload(payload map[string]any) Status {
	if v, ok := payload["validation_status"].(string); ok {
		return Status(v)
	}
	return StatusPassed
}
