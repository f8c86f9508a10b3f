package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/example/creditor-inbox/ent"
	"github.com/example/creditor-inbox/ent/inboundmessage"

	"github.com/example/creditor-inbox/pkg/capability"
	"github.com/example/creditor-inbox/pkg/errclass"
	"github.com/example/creditor-inbox/pkg/idempotency"
)

// phaseBBackoff bounds in-call retries of the secondary store write to a
// handful of seconds; anything longer is left to the reconciler's own
// batched retry pass rather than blocking the caller (§4.10, §9).
func phaseBBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 5 * time.Second
	return b
}

// ProcessPhaseB is the compensatable, post-commit half of the dual-store
// write path (§4.10). It is a standalone function rather than a method on
// Writer: the worker calls it inline right after commit, and the
// reconciler calls it again in a batched retry pass — two distinct call
// sites kept deliberately separate per §9.
func ProcessPhaseB(ctx context.Context, client *ent.Client, idemp *idempotency.Service, store capability.SecondaryStoreAdapter, row *ent.OutboxMessage) error {
	var payload DebtUpdatePayload
	if err := remarshal(row.Payload, &payload); err != nil {
		return markFailed(ctx, client, row, "", fmt.Sprintf("payload_decode_failed: %v", err))
	}

	update := capability.DebtUpdate{
		Amount:               payload.Amount,
		Source:               "creditor_response",
		ResponseTimestamp:    time.Now().Format(time.RFC3339),
		ResponseText:         payload.ResponseText,
		ReferenceNumbers:     payload.ReferenceNumbers,
		ExtractionConfidence: payload.Confidence,
	}

	clientSel := capability.ClientSelector{
		FirstName: firstOf(payload.ClientName),
		LastName:  lastOf(payload.ClientName),
	}
	creditorSel := capability.CreditorSelector{
		Email: payload.CreditorEmail,
		Name:  payload.CreditorName,
	}

	err := backoff.Retry(func() error {
		_, err := store.UpdateCreditorDebt(ctx, clientSel, creditorSel, update)
		if err != nil && !errclass.Classify(err).Retryable() {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(phaseBBackoff(), ctx))
	if err != nil {
		return markFailed(ctx, client, row, payload.MessageID, err.Error())
	}

	return markProcessed(ctx, client, idemp, row, payload)
}

func markProcessed(ctx context.Context, client *ent.Client, idemp *idempotency.Service, row *ent.OutboxMessage, payload DebtUpdatePayload) error {
	now := time.Now()
	if err := client.OutboxMessage.UpdateOneID(row.ID).
		SetProcessedAt(now).
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to mark outbox row processed: %w", err)
	}

	if err := client.InboundMessage.UpdateOneID(payload.MessageID).
		SetSyncStatus(inboundmessage.SyncStatusSynced).
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to mark message synced: %w", err)
	}

	idemp.Store(ctx, row.IdempotencyKey, map[string]any{"processed_at": now}, expiresIn)
	return nil
}

func markFailed(ctx context.Context, client *ent.Client, row *ent.OutboxMessage, messageID, errMsg string) error {
	updated, err := client.OutboxMessage.UpdateOneID(row.ID).
		AddRetryCount(1).
		SetLastError(errMsg).
		Save(ctx)
	if err != nil {
		return fmt.Errorf("failed to record outbox failure: %w", err)
	}

	if updated.RetryCount >= updated.MaxRetries && messageID != "" {
		if err := client.InboundMessage.UpdateOneID(messageID).
			SetSyncStatus(inboundmessage.SyncStatusFailed).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to mark message sync failed: %w", err)
		}
	}
	return fmt.Errorf("phase B failed: %s", errMsg)
}

func remarshal(payload map[string]any, target any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, target)
}

func firstOf(fullName string) string {
	for i, r := range fullName {
		if r == ' ' {
			return fullName[:i]
		}
	}
	return fullName
}

func lastOf(fullName string) string {
	for i := len(fullName) - 1; i >= 0; i-- {
		if fullName[i] == ' ' {
			return fullName[i+1:]
		}
	}
	return fullName
}
