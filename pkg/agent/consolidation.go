package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/creditor-inbox/pkg/capability"
	"github.com/example/creditor-inbox/pkg/checkpoint"
)

// amountConflictTolerance is the fractional difference above which an
// extracted amount conflicts with the secondary store's existing figure.
const amountConflictTolerance = 0.10

// consolidationConfidenceThreshold is not referenced by Run, which folds A2
// confidence into needs_review only when its label is "LOW" (§4.6).
const consolidationConfidenceThreshold = 0.70

// ConsolidationController implements Agent 3 (§4.6): reconciles the A2
// extraction against the secondary store's existing client view and runs
// conflict detection.
type ConsolidationController struct {
	Checkpoints *checkpoint.Store

	// TicketID, FirstName, LastName, and CaseNumber seed the three lookup
	// strategies tried in order, per §6.1.
	TicketID   string
	FirstName  string
	LastName   string
	CaseNumber string
}

func (c *ConsolidationController) Stage() string { return checkpoint.StageConsolidation }

// Run cross-checks A2's extraction against the secondary store and flags
// conflicts.
func (c *ConsolidationController) Run(ctx context.Context, msgCtx *MessageContext) (*StageResult, error) {
	a2, found, err := c.Checkpoints.Get(ctx, msgCtx.MessageID, checkpoint.StageExtraction)
	if err != nil {
		return nil, fmt.Errorf("consolidation: read extraction checkpoint: %w", err)
	}
	if !found {
		return &StageResult{Status: StatusFailed, Error: fmt.Errorf("consolidation: no agent_2_extraction checkpoint present")}, nil
	}

	client, err := c.lookupClient(ctx, msgCtx)
	if err != nil {
		return &StageResult{Status: StatusFailed, Error: fmt.Errorf("consolidation: secondary store lookup: %w", err)}, nil
	}

	extractedAmount, hasAmount := amountFromCheckpoint(a2)
	extractedClientName, _ := a2["client_name"].(string)
	a2Confidence, _ := a2["confidence"].(string)

	var conflicts []string
	if client.Found {
		if hasAmount && client.DebtAmount > 0 {
			diff := absDiff(extractedAmount, client.DebtAmount) / client.DebtAmount
			if diff > amountConflictTolerance {
				conflicts = append(conflicts, "amount_conflict")
			}
		}
		if extractedClientName != "" && client.FirstName != "" {
			existingName := strings.TrimSpace(client.FirstName + " " + client.LastName)
			if !strings.EqualFold(strings.TrimSpace(extractedClientName), existingName) {
				conflicts = append(conflicts, "name_conflict")
			}
		}
	}

	a2Low := a2Confidence == "LOW"
	needsReview := len(conflicts) > 0 || a2Low

	status := StatusPassed
	if needsReview {
		status = StatusNeedsReview
	}

	payload := map[string]any{
		"client_found":      client.Found,
		"client_first_name": client.FirstName,
		"client_last_name":  client.LastName,
		"creditor_email":    client.CreditorEmail,
		"creditor_name":     client.CreditorName,
		"existing_debt":     client.DebtAmount,
		"conflicts":         conflicts,
		"needs_review":      needsReview,
	}

	return &StageResult{Status: status, Payload: payload}, nil
}

func (c *ConsolidationController) lookupClient(ctx context.Context, msgCtx *MessageContext) (capability.ClientRecord, error) {
	if c.TicketID != "" {
		rec, err := msgCtx.SecondaryStore.GetClientByTicket(ctx, c.TicketID)
		if err == nil && rec.Found {
			return rec, nil
		}
	}
	if c.FirstName != "" || c.LastName != "" {
		rec, err := msgCtx.SecondaryStore.GetClientByName(ctx, c.FirstName, c.LastName)
		if err == nil && rec.Found {
			return rec, nil
		}
	}
	if c.CaseNumber != "" {
		rec, err := msgCtx.SecondaryStore.GetClientByCaseNumber(ctx, c.CaseNumber)
		if err == nil && rec.Found {
			return rec, nil
		}
	}
	return capability.ClientRecord{}, nil
}

func amountFromCheckpoint(a2 map[string]any) (float64, bool) {
	g, ok := a2["gesamtforderung"].(map[string]any)
	if !ok || g == nil {
		return 0, false
	}
	v, ok := g["value"].(float64)
	return v, ok
}

func absDiff(a, b float64) float64 {
	d := a - b
	if d < 0 {
		return -d
	}
	return d
}
