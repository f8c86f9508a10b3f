package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/creditor-inbox/ent"
	"github.com/example/creditor-inbox/ent/inboundmessage"
)

// orphanState tracks orphan detection metrics (thread-safe).
type orphanState struct {
	mu               sync.Mutex
	lastOrphanScan   time.Time
	orphansRecovered int
}

// runOrphanDetection periodically requeues messages stuck in an active
// status whose started_at heartbeat has gone stale — a crashed worker's
// claim, not the 24-hour report-only condition the auditor tracks
// separately (§4.12, §9).
func (p *WorkerPool) runOrphanDetection(ctx context.Context) {
	ticker := time.NewTicker(p.config.OrphanDetectionInterval)
	defer ticker.Stop()

	// Recover immediately at startup so a crashed prior run's claims are
	// not stuck until the first tick.
	if err := p.detectAndRecoverOrphans(ctx); err != nil {
		slog.Error("startup orphan detection failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			if err := p.detectAndRecoverOrphans(ctx); err != nil {
				slog.Error("orphan detection failed", "error", err)
			}
		}
	}
}

// detectAndRecoverOrphans finds active-status messages with a stale
// started_at heartbeat and requeues them for another claim attempt.
func (p *WorkerPool) detectAndRecoverOrphans(ctx context.Context) error {
	threshold := time.Now().Add(-p.config.OrphanThreshold)

	orphans, err := p.client.InboundMessage.Query().
		Where(
			inboundmessage.ProcessingStatusIn(activeStatuses...),
			inboundmessage.StartedAtNotNil(),
			inboundmessage.StartedAtLT(threshold),
		).
		All(ctx)
	if err != nil {
		return fmt.Errorf("failed to query orphaned messages: %w", err)
	}

	if len(orphans) == 0 {
		p.orphans.mu.Lock()
		p.orphans.lastOrphanScan = time.Now()
		p.orphans.mu.Unlock()
		return nil
	}

	slog.Warn("detected orphaned messages", "count", len(orphans))

	recovered := 0
	for _, msg := range orphans {
		if err := requeueOrphan(ctx, p.client, msg); err != nil {
			slog.Error("failed to requeue orphaned message", "message_id", msg.ID, "error", err)
			continue
		}
		recovered++
	}

	p.orphans.mu.Lock()
	p.orphans.lastOrphanScan = time.Now()
	p.orphans.orphansRecovered += recovered
	p.orphans.mu.Unlock()

	return nil
}

// maxRetries mirrors §7's bounded retry budget (5 attempts).
const maxRetries = 5

// requeueOrphan resets a stuck message back to queued, incrementing its
// retry count so the bounded-retry policy still applies; once the budget
// is exhausted the message is marked permanently failed instead (§7).
func requeueOrphan(ctx context.Context, client *ent.Client, msg *ent.InboundMessage) error {
	lastHeartbeat := "unknown"
	if msg.StartedAt != nil {
		lastHeartbeat = msg.StartedAt.Format(time.RFC3339)
	}
	errMsg := fmt.Sprintf("orphaned: no heartbeat since %s", lastHeartbeat)

	update := client.InboundMessage.UpdateOneID(msg.ID).
		AddRetryCount(1).
		SetLastError(errMsg)

	if msg.RetryCount+1 >= maxRetries {
		update = update.SetProcessingStatus(inboundmessage.ProcessingStatusFailed)
	} else {
		update = update.SetProcessingStatus(inboundmessage.ProcessingStatusQueued)
	}

	if err := update.Exec(ctx); err != nil {
		return err
	}

	slog.Warn("orphaned message requeued", "message_id", msg.ID, "last_heartbeat", lastHeartbeat)
	return nil
}
