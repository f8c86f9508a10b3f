// Package outbox implements C10: the dual-store writer as a transactional
// outbox + saga. Phase A is atomic with the primary-store commit; Phase B
// is a post-commit, independently retried compensating step (§4.10).
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/creditor-inbox/ent"
	"github.com/example/creditor-inbox/ent/inboundmessage"
	"github.com/google/uuid"

	"github.com/example/creditor-inbox/pkg/idempotency"
)

// Writer runs Phase A of the dual-store write path.
type Writer struct {
	client *ent.Client
	idemp  *idempotency.Service
}

// NewWriter builds a Writer over the given ent client and idempotency
// service.
func NewWriter(client *ent.Client, idemp *idempotency.Service) *Writer {
	return &Writer{client: client, idemp: idemp}
}

// DebtUpdatePayload is the opaque payload carried by an outbox row whose
// operation is "UPDATE" against aggregate_type "creditor_debt_update".
type DebtUpdatePayload struct {
	MessageID        string  `json:"message_id"`
	ClientName       string  `json:"client_name"`
	CreditorEmail    string  `json:"creditor_email"`
	CreditorName     string  `json:"creditor_name"`
	Amount           float64 `json:"amount"`
	ResponseText     string  `json:"response_text"`
	ReferenceNumbers []string `json:"reference_numbers,omitempty"`
	Confidence       float64 `json:"extraction_confidence"`
}

// WriteResult is what Phase A returns to its caller: either a freshly
// created outbox row to hand to Phase B, or a cached result when the
// idempotency key had already been used.
type WriteResult struct {
	Outbox       *ent.OutboxMessage
	Cached       bool
	CachedResult json.RawMessage
}

// CommitDebtUpdate runs Phase A: check the idempotency key, then, in a
// transaction of its own that it commits itself, insert the OutboxMessage
// and mark the InboundMessage as pending sync. The caller's other
// primary-store writes are not part of that transaction. The caller (the
// job worker) invokes Phase B only when Cached is false.
func (w *Writer) CommitDebtUpdate(ctx context.Context, messageID string, payload DebtUpdatePayload) (WriteResult, error) {
	// The aggregate is the inbound message itself (§4.9 step 10), and the
	// key hashes only the tuple that identifies "the same logical update":
	// client_name, creditor_email, amount. Volatile fields like
	// response_text or confidence must not perturb the key, or two retries
	// of the same update collide on different keys and double-write.
	idempotencyPayload := struct {
		ClientName    string  `json:"client_name"`
		CreditorEmail string  `json:"creditor_email"`
		Amount        float64 `json:"amount"`
	}{
		ClientName:    payload.ClientName,
		CreditorEmail: payload.CreditorEmail,
		Amount:        payload.Amount,
	}
	key, err := idempotency.Key("creditor_debt_update", messageID, idempotencyPayload)
	if err != nil {
		return WriteResult{}, fmt.Errorf("failed to derive idempotency key: %w", err)
	}

	if cached, ok := w.idemp.Check(ctx, key); ok {
		return WriteResult{Cached: true, CachedResult: cached}, nil
	}

	tx, err := w.client.Tx(ctx)
	if err != nil {
		return WriteResult{}, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	payloadJSON, err := toJSONMap(payload)
	if err != nil {
		return WriteResult{}, fmt.Errorf("failed to marshal outbox payload: %w", err)
	}

	row, err := tx.OutboxMessage.Create().
		SetID(uuid.New().String()).
		SetAggregateType("creditor_debt_update").
		SetAggregateID(messageID).
		SetOperation("UPDATE").
		SetPayload(payloadJSON).
		SetIdempotencyKey(key).
		Save(ctx)
	if err != nil {
		if ent.IsConstraintError(err) {
			// Another writer beat us to this idempotency key; nothing to do.
			return WriteResult{Cached: true}, nil
		}
		return WriteResult{}, fmt.Errorf("failed to insert outbox row: %w", err)
	}

	if err := tx.InboundMessage.UpdateOneID(messageID).
		SetSyncStatus(inboundmessage.SyncStatusPending).
		SetIdempotencyKey(key).
		Exec(ctx); err != nil {
		return WriteResult{}, fmt.Errorf("failed to mark message pending sync: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return WriteResult{}, fmt.Errorf("failed to commit outbox write: %w", err)
	}

	return WriteResult{Outbox: row}, nil
}

func toJSONMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// expiresIn is the default TTL used when Phase A caches a result via the
// idempotency service.
const expiresIn = 24 * time.Hour
