package reconcile

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/example/creditor-inbox/ent/inboundmessage"

	"github.com/example/creditor-inbox/pkg/capability"
)

// driftWindow is how far back the scheduled drift scan looks (§4.12).
const driftWindow = 48 * time.Hour

// mismatchTolerance is the amount-difference floor below which a
// discrepancy is considered rounding noise rather than a real mismatch.
const mismatchTolerance = 0.01

// driftFinding classifies one InboundMessage's comparison against the
// secondary store.
type driftFinding string

const (
	findingConsistent                  driftFinding = "consistent"
	findingMissingInSecondary          driftFinding = "missing_in_secondary"
	findingMissingCreditorInSecondary  driftFinding = "missing_creditor_in_secondary"
	findingDataMismatch                driftFinding = "data_mismatch"
)

// driftScan implements step 2: for recently-synced messages, recheck the
// secondary store using the same lookup order A3 uses and repair
// repairable drift. Returns (checked, mismatches, repaired, failedRepairs,
// details) for the run report.
func (s *Service) driftScan(ctx context.Context) (checked, mismatches, repaired, failedRepairs int, details []map[string]any) {
	if s.store == nil {
		return 0, 0, 0, 0, nil
	}

	cutoff := time.Now().Add(-driftWindow)
	rows, err := s.client.InboundMessage.Query().
		Where(
			inboundmessage.ReceivedAtGTE(cutoff),
			inboundmessage.SyncStatusEQ(inboundmessage.SyncStatusSynced),
		).
		All(ctx)
	if err != nil {
		return 0, 0, 0, 0, []map[string]any{{"error": "drift_query_failed: " + err.Error()}}
	}

	for _, msg := range rows {
		extracted := msg.ExtractedData
		amountVal, hasAmount := extractedAmount(extracted)
		if !hasAmount {
			continue
		}
		checked++

		clientName, _ := extracted["client_name"].(string)
		record, found := s.lookupClient(ctx, clientName)

		finding := findingConsistent
		switch {
		case !found:
			finding = findingMissingInSecondary
		case record.CreditorEmail == "" && record.CreditorName == "":
			finding = findingMissingCreditorInSecondary
		case math.Abs(record.DebtAmount-amountVal) > mismatchTolerance:
			finding = findingDataMismatch
		}

		if finding == findingConsistent {
			continue
		}
		mismatches++

		repairedThis := s.repair(ctx, msg.ID, clientName, record, finding, amountVal)
		if repairedThis {
			repaired++
		} else if finding != findingMissingInSecondary {
			failedRepairs++
		}

		details = append(details, map[string]any{
			"message_id": msg.ID,
			"finding":    string(finding),
			"repaired":   repairedThis,
		})
	}

	return checked, mismatches, repaired, failedRepairs, details
}

func extractedAmount(data map[string]any) (float64, bool) {
	if data == nil {
		return 0, false
	}
	raw, ok := data["amount"]
	if !ok {
		return 0, false
	}
	v, ok := raw.(float64)
	return v, ok
}

// lookupClient looks the client up by (first, last) name only, split at the
// last space; unlike A3 (§4.6, §6.1) it tries no ticket id or case number.
func (s *Service) lookupClient(ctx context.Context, fullName string) (capability.ClientRecord, bool) {
	first, last := splitName(fullName)
	record, err := s.store.GetClientByName(ctx, first, last)
	if err != nil || !record.Found {
		return capability.ClientRecord{}, false
	}
	return record, true
}

func splitName(full string) (first, last string) {
	idx := strings.LastIndex(full, " ")
	if idx == -1 {
		return full, ""
	}
	return full[:idx], full[idx+1:]
}

// repair re-invokes the secondary adapter for repairable finding classes
// using primary data as the source of truth.
func (s *Service) repair(ctx context.Context, messageID, clientName string, record capability.ClientRecord, finding driftFinding, amount float64) bool {
	if finding == findingMissingInSecondary {
		// No client record to update against; not repairable by this pass.
		return false
	}

	first, last := splitName(clientName)
	_, err := s.store.UpdateCreditorDebt(ctx,
		capability.ClientSelector{FirstName: first, LastName: last},
		capability.CreditorSelector{Email: record.CreditorEmail, Name: record.CreditorName},
		capability.DebtUpdate{
			Amount:            amount,
			Source:            "reconciler_repair",
			ResponseTimestamp: time.Now().Format(time.RFC3339),
		},
	)
	return err == nil
}
