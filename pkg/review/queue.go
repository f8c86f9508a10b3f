// Package review implements C11: the manual-review queue, claimed and
// resolved by human operators via the Status API.
package review

import (
	"context"
	"fmt"
	"time"

	"entgo.io/ent/dialect/sql"
	"github.com/example/creditor-inbox/ent"
	"github.com/example/creditor-inbox/ent/reviewitem"
	"github.com/google/uuid"
)

// priorityMap is the compiled-in reason -> priority table (§4.11). Lower is
// more urgent; unlisted reasons fall back to defaultPriority.
var priorityMap = map[string]int{
	"manual_escalation":   1,
	"validation_failed":   2,
	"conflict_detected":   3,
	"ambiguous_match":     3,
	"extraction_error":    4,
	"no_recent_inquiry":   4,
	"low_confidence":      5,
	"below_threshold":     5,
	"missing_data":        6,
	"duplicate_suspected": 7,
}

const defaultPriority = 5

// lowConfidenceExpiry is the TTL attached to low_confidence review items
// (§4.8).
const lowConfidenceExpiry = 7 * 24 * time.Hour

// Queue implements enqueue/claim/resolve over ReviewItem.
type Queue struct {
	client *ent.Client
}

// NewQueue builds a Queue over the given ent client.
func NewQueue(client *ent.Client) *Queue {
	return &Queue{client: client}
}

// priorityFor resolves the compiled priority for a reason.
func priorityFor(reason string) int {
	if p, ok := priorityMap[reason]; ok {
		return p
	}
	return defaultPriority
}

// Enqueue creates a ReviewItem for a message, unless one is already
// unresolved for it (enforced by the partial unique index; a constraint
// error here is treated as a no-op).
func (q *Queue) Enqueue(ctx context.Context, messageID, reason string, reasonDetails map[string]any) (*ent.ReviewItem, error) {
	builder := q.client.ReviewItem.Create().
		SetID(uuid.New().String()).
		SetMessageID(messageID).
		SetReason(reviewitem.Reason(reason)).
		SetPriority(priorityFor(reason))
	if reasonDetails != nil {
		builder = builder.SetReasonDetails(reasonDetails)
	}
	if reason == "low_confidence" {
		builder = builder.SetExpiresAt(time.Now().Add(lowConfidenceExpiry))
	}

	item, err := builder.Save(ctx)
	if err != nil {
		if ent.IsConstraintError(err) {
			return q.client.ReviewItem.Query().
				Where(reviewitem.MessageIDEQ(messageID), reviewitem.ResolvedAtIsNil()).
				Only(ctx)
		}
		return nil, fmt.Errorf("failed to enqueue review item: %w", err)
	}
	return item, nil
}

// Stats summarizes the unresolved queue by reason.
type Stats struct {
	TotalUnresolved int
	ByReason        map[string]int
	ClaimedUnresolved int
}

// Stats computes queue counts for the Status API.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	rows, err := q.client.ReviewItem.Query().
		Where(reviewitem.ResolvedAtIsNil()).
		All(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to query review stats: %w", err)
	}

	stats := Stats{ByReason: make(map[string]int)}
	for _, r := range rows {
		stats.TotalUnresolved++
		stats.ByReason[string(r.Reason)]++
		if r.ClaimedAt != nil {
			stats.ClaimedUnresolved++
		}
	}
	return stats, nil
}

// List returns unresolved review items ordered by priority then age.
func (q *Queue) List(ctx context.Context, limit, offset int) ([]*ent.ReviewItem, error) {
	if limit <= 0 {
		limit = 20
	}
	return q.client.ReviewItem.Query().
		Where(reviewitem.ResolvedAtIsNil()).
		Order(ent.Asc(reviewitem.FieldPriority), ent.Asc(reviewitem.FieldCreatedAt)).
		Limit(limit).
		Offset(offset).
		All(ctx)
}

// Get returns one review item by id.
func (q *Queue) Get(ctx context.Context, id string) (*ent.ReviewItem, error) {
	item, err := q.client.ReviewItem.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get review item %s: %w", id, err)
	}
	return item, nil
}

// Claim atomically claims a specific review item, failing if it is already
// claimed or resolved.
func (q *Queue) Claim(ctx context.Context, id, claimedBy string) (*ent.ReviewItem, error) {
	tx, err := q.client.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	count, err := tx.ReviewItem.Update().
		Where(
			reviewitem.IDEQ(id),
			reviewitem.ResolvedAtIsNil(),
			reviewitem.ClaimedAtIsNil(),
		).
		SetClaimedAt(time.Now()).
		SetClaimedBy(claimedBy).
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to claim review item: %w", err)
	}
	if count == 0 {
		return nil, nil
	}

	item, err := tx.ReviewItem.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to refetch claimed review item: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}
	return item, nil
}

// ClaimNext claims the highest-priority unclaimed, unresolved item, using
// the same skip-locked claim idiom as the job queue (§4.9, §4.11).
func (q *Queue) ClaimNext(ctx context.Context, claimedBy string) (*ent.ReviewItem, error) {
	tx, err := q.client.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := tx.ReviewItem.Query().
		Where(reviewitem.ResolvedAtIsNil(), reviewitem.ClaimedAtIsNil()).
		Order(ent.Asc(reviewitem.FieldPriority), ent.Asc(reviewitem.FieldCreatedAt)).
		Limit(1).
		ForUpdate(sql.WithLockAction(sql.SkipLocked)).
		First(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query next review item: %w", err)
	}

	if err := tx.ReviewItem.UpdateOneID(item.ID).
		SetClaimedAt(time.Now()).
		SetClaimedBy(claimedBy).
		Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to claim review item: %w", err)
	}

	item, err = tx.ReviewItem.Get(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to refetch claimed review item: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}
	return item, nil
}

// Resolve marks a claimed review item resolved. Only permitted on items
// that have been claimed and not yet resolved (§6: resolved_at is set only
// if claimed_at is set) — mirrors Claim's conditional-update idiom so a
// never-claimed or already-resolved item can't be resolved a second time.
func (q *Queue) Resolve(ctx context.Context, id, resolution, notes string) error {
	count, err := q.client.ReviewItem.Update().
		Where(
			reviewitem.IDEQ(id),
			reviewitem.ClaimedAtNotNil(),
			reviewitem.ResolvedAtIsNil(),
		).
		SetResolvedAt(time.Now()).
		SetResolution(reviewitem.Resolution(resolution)).
		SetResolutionNotes(notes).
		Save(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve review item: %w", err)
	}
	if count == 0 {
		if _, err := q.client.ReviewItem.Get(ctx, id); err != nil {
			if ent.IsNotFound(err) {
				return fmt.Errorf("review item not found: %s", id)
			}
			return fmt.Errorf("failed to resolve review item: %w", err)
		}
		return fmt.Errorf("review item %s is not claimed or already resolved", id)
	}
	return nil
}
