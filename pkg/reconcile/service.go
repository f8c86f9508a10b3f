// Package reconcile implements C12: the hourly reconciler that retries
// outbox failures, scans for primary/secondary drift, enforces retention,
// and persists a run report; plus an operator-invoked audit tool sharing
// the same scan structure.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/creditor-inbox/ent"
	"github.com/example/creditor-inbox/ent/outboxmessage"
	"github.com/example/creditor-inbox/ent/reconcilereport"
	"github.com/google/uuid"

	"github.com/example/creditor-inbox/pkg/capability"
	"github.com/example/creditor-inbox/pkg/idempotency"
	"github.com/example/creditor-inbox/pkg/outbox"
)

// interval is the reconciler's scheduling period (§4.12).
const interval = time.Hour

// Service runs the reconciler's ticker loop, grounded on the teacher's
// cleanup.Service Start/Stop/run shape.
type Service struct {
	client    *ent.Client
	idemp     *idempotency.Service
	store     capability.SecondaryStoreAdapter
	retention RetentionPolicy

	cancel context.CancelFunc
	done   chan struct{}
}

// RetentionPolicy carries the two TTLs the cleanup step enforces.
type RetentionPolicy struct {
	IdempotencyKeyTTL time.Duration
	OutboxRetention   time.Duration
}

// NewService builds a reconciler Service.
func NewService(client *ent.Client, idemp *idempotency.Service, store capability.SecondaryStoreAdapter, retention RetentionPolicy) *Service {
	return &Service{client: client, idemp: idemp, store: store, retention: retention}
}

// Start launches the background reconcile loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("reconciler started", "interval", interval)
}

// Stop signals the reconcile loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("reconciler stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.RunOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes one reconciliation pass: retry outbox, drift scan,
// cleanup, and a persisted report (§4.12 steps 1-4).
func (s *Service) RunOnce(ctx context.Context) {
	report, err := s.client.ReconcileReport.Create().
		SetID(uuid.New().String()).
		Save(ctx)
	if err != nil {
		slog.Error("reconciler: failed to create report row", "error", err)
		return
	}

	retried, failed := s.retryOutbox(ctx)
	checked, mismatches, repaired, failedRepairs, details := s.driftScan(ctx)
	s.cleanup(ctx)

	_, err = s.client.ReconcileReport.UpdateOneID(report.ID).
		SetCompletedAt(time.Now()).
		SetRecordsChecked(checked).
		SetMismatchesFound(mismatches).
		SetAutoRepaired(repaired).
		SetFailedRepairs(failedRepairs).
		SetDetails(details).
		SetStatus(reconcilereport.StatusCompleted).
		Save(ctx)
	if err != nil {
		slog.Error("reconciler: failed to persist report", "error", err)
		return
	}

	slog.Info("reconciler run complete",
		"outbox_retried", retried, "outbox_failed", failed,
		"records_checked", checked, "mismatches_found", mismatches,
		"auto_repaired", repaired, "failed_repairs", failedRepairs)
}

// retryOutbox implements step 1: batched Phase-B retry over unprocessed
// outbox rows that have not exhausted their retry budget.
func (s *Service) retryOutbox(ctx context.Context) (retried, failed int) {
	rows, err := s.client.OutboxMessage.Query().
		Where(
			outboxmessage.ProcessedAtIsNil(),
			outboxmessage.RetryCountLT(5),
		).
		Order(ent.Asc(outboxmessage.FieldCreatedAt)).
		All(ctx)
	if err != nil {
		slog.Error("reconciler: failed to query outbox retry candidates", "error", err)
		return 0, 0
	}

	for _, row := range rows {
		if row.RetryCount >= row.MaxRetries {
			continue
		}
		retried++
		if err := outbox.ProcessPhaseB(ctx, s.client, s.idemp, s.store, row); err != nil {
			failed++
			slog.Warn("reconciler: outbox retry failed", "outbox_id", row.ID, "error", err)
		}
	}
	return retried, failed
}

// cleanup implements step 3: expired idempotency keys and old processed
// outbox rows.
func (s *Service) cleanup(ctx context.Context) {
	if n, err := s.idemp.CleanupExpired(ctx); err != nil {
		slog.Error("reconciler: idempotency cleanup failed", "error", err)
	} else if n > 0 {
		slog.Info("reconciler: cleaned up expired idempotency keys", "count", n)
	}

	cutoff := time.Now().Add(-s.retention.OutboxRetention)
	n, err := s.client.OutboxMessage.Delete().
		Where(
			outboxmessage.ProcessedAtNotNil(),
			outboxmessage.CreatedAtLT(cutoff),
		).
		Exec(ctx)
	if err != nil {
		slog.Error("reconciler: outbox cleanup failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("reconciler: cleaned up processed outbox rows", "count", n)
	}
}
