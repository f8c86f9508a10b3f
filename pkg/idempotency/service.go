// Package idempotency implements C2: content-addressed idempotency keys
// with TTL, used by the dual-store writer to collapse repeated operations.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/creditor-inbox/ent"
	"github.com/example/creditor-inbox/ent/idempotencykey"
)

// Service implements check/store/cleanup over the IdempotencyKey entity.
// Per §4.1, store/check failures never propagate — the surrounding saga
// treats them as a cache miss.
type Service struct {
	client *ent.Client
	ttl    time.Duration
}

// New constructs an idempotency Service with the given default TTL.
func New(client *ent.Client, ttl time.Duration) *Service {
	return &Service{client: client, ttl: ttl}
}

// Key builds the canonical `{operation}:{aggregate_id}:{hex16(sha256(canonical_json(payload)))}` key.
func Key(operation, aggregateID string, payload any) (string, error) {
	canonical, err := canonicalJSON(payload)
	if err != nil {
		return "", fmt.Errorf("idempotency: canonicalize payload: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return fmt.Sprintf("%s:%s:%s", operation, aggregateID, hex.EncodeToString(sum[:])[:16]), nil
}

// canonicalJSON marshals v with sorted map keys so identical payloads always
// produce identical bytes regardless of map iteration order.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

// Check looks up a cached result for key. Returns (nil, false) on any miss
// or error — errors are logged, never surfaced, per §4.1.
func (s *Service) Check(ctx context.Context, key string) (json.RawMessage, bool) {
	row, err := s.client.IdempotencyKey.Query().
		Where(
			idempotencykey.ID(key),
			idempotencykey.ExpiresAtGT(time.Now()),
		).
		Only(ctx)
	if err != nil {
		if !ent.IsNotFound(err) {
			slog.Warn("idempotency check failed, treating as cache miss", "key", key, "error", err)
		}
		return nil, false
	}
	if row.CachedResult == nil {
		return nil, false
	}
	raw, err := json.Marshal(row.CachedResult)
	if err != nil {
		return nil, false
	}
	return raw, true
}

// Store atomically inserts-or-noops the key with its cached result. On
// conflict the existing record wins (the contract is insert-once).
func (s *Service) Store(ctx context.Context, key string, result any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.ttl
	}
	var cached map[string]any
	if raw, err := json.Marshal(result); err == nil {
		_ = json.Unmarshal(raw, &cached)
	}

	err := s.client.IdempotencyKey.Create().
		SetID(key).
		SetCachedResult(cached).
		SetExpiresAt(time.Now().Add(ttl)).
		OnConflictColumns(idempotencykey.FieldID).
		DoNothing().
		Exec(ctx)
	if err != nil {
		slog.Warn("idempotency store failed", "key", key, "error", err)
	}
}

// CleanupExpired deletes IdempotencyKey rows past their TTL, invoked by the
// reconciler (§4.12 step 3).
func (s *Service) CleanupExpired(ctx context.Context) (int, error) {
	n, err := s.client.IdempotencyKey.Delete().
		Where(idempotencykey.ExpiresAtLT(time.Now())).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("idempotency cleanup: %w", err)
	}
	return n, nil
}
