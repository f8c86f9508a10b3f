package reconcile

import (
	"context"
	"time"

	"github.com/example/creditor-inbox/ent/inboundmessage"
)

// stalledProcessingThreshold is the auditor's report-only rule: a message
// stuck in a non-terminal state for longer than this is flagged, but never
// automatically rescued (§4.12, §9).
const stalledProcessingThreshold = 24 * time.Hour

var terminalStatuses = map[string]bool{
	"completed":          true,
	"failed":             true,
	"not_creditor_reply": true,
}

// AuditReport is the operator-invoked audit tool's output.
type AuditReport struct {
	Checked           int
	Issues            int
	HealthScore       float64
	StalledMessageIDs []string
	Findings          []map[string]any
}

// RunAudit runs the same scan structure as the scheduled drift pass, but
// over a caller-supplied lookback window, and adds the stalled-processing
// rule. It never writes repairs; it only reports.
func (s *Service) RunAudit(ctx context.Context, lookback time.Duration) (AuditReport, error) {
	cutoff := time.Now().Add(-lookback)

	rows, err := s.client.InboundMessage.Query().
		Where(inboundmessage.ReceivedAtGTE(cutoff)).
		All(ctx)
	if err != nil {
		return AuditReport{}, err
	}

	report := AuditReport{}
	stalledCutoff := time.Now().Add(-stalledProcessingThreshold)

	for _, msg := range rows {
		report.Checked++

		if !terminalStatuses[string(msg.ProcessingStatus)] && msg.StartedAt != nil && msg.StartedAt.Before(stalledCutoff) {
			report.Issues++
			report.StalledMessageIDs = append(report.StalledMessageIDs, msg.ID)
			report.Findings = append(report.Findings, map[string]any{
				"message_id": msg.ID,
				"finding":    "stalled_processing",
				"status":     string(msg.ProcessingStatus),
			})
		}

		if msg.SyncStatus == inboundmessage.SyncStatusSynced {
			amountVal, hasAmount := extractedAmount(msg.ExtractedData)
			if !hasAmount || s.store == nil {
				continue
			}
			clientName, _ := msg.ExtractedData["client_name"].(string)
			record, found := s.lookupClient(ctx, clientName)
			if !found || absDiff(record.DebtAmount, amountVal) > mismatchTolerance {
				report.Issues++
				report.Findings = append(report.Findings, map[string]any{
					"message_id": msg.ID,
					"finding":    "secondary_drift",
				})
			}
		}
	}

	if report.Checked > 0 {
		report.HealthScore = float64(report.Checked-report.Issues) / float64(report.Checked)
	} else {
		report.HealthScore = 1.0
	}
	return report, nil
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
