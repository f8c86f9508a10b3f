package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"entgo.io/ent/dialect/sql"
	"github.com/example/creditor-inbox/ent"
	"github.com/example/creditor-inbox/ent/inboundmessage"
	"github.com/example/creditor-inbox/pkg/config"
)

// activeStatuses are the processing_status values a message passes through
// while a worker is actively driving its pipeline; used for the global
// concurrency cap.
var activeStatuses = []inboundmessage.ProcessingStatus{
	inboundmessage.ProcessingStatusProcessing,
	inboundmessage.ProcessingStatusParsed,
	inboundmessage.ProcessingStatusIntentClassifying,
	inboundmessage.ProcessingStatusContentExtracting,
	inboundmessage.ProcessingStatusContentExtracted,
	inboundmessage.ProcessingStatusExtracting,
	inboundmessage.ProcessingStatusExtracted,
	inboundmessage.ProcessingStatusConsolidating,
	inboundmessage.ProcessingStatusMatching,
}

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// Worker is a single queue worker that polls for and processes messages.
type Worker struct {
	id       string
	podID    string
	client   *ent.Client
	config   *config.QueueConfig
	executor MessageExecutor
	pool     MessageRegistry
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu                sync.RWMutex
	status            WorkerStatus
	currentMessageID  string
	messagesProcessed int
	lastActivity      time.Time
}

// MessageRegistry is the subset of WorkerPool used by Worker for
// in-flight message cancellation registration.
type MessageRegistry interface {
	RegisterMessage(messageID string, cancel context.CancelFunc)
	UnregisterMessage(messageID string)
}

// NewWorker creates a new queue worker.
func NewWorker(id, podID string, client *ent.Client, cfg *config.QueueConfig, executor MessageExecutor, pool MessageRegistry) *Worker {
	return &Worker{
		id:           id,
		podID:        podID,
		client:       client,
		config:       cfg,
		executor:     executor,
		pool:         pool,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker polling loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for it to finish.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health returns the current worker health status.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:                w.id,
		Status:            string(w.status),
		CurrentMessageID:  w.currentMessageID,
		MessagesProcessed: w.messagesProcessed,
		LastActivity:      w.lastActivity,
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("worker_id", w.id, "pod_id", w.podID)
	log.Info("worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("worker shutting down")
			return
		case <-ctx.Done():
			log.Info("context cancelled, worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, ErrNoMessagesAvailable) || errors.Is(err, ErrAtCapacity) {
					w.sleep(w.pollInterval())
					continue
				}
				log.Error("error processing message", "error", err)
				w.sleep(time.Second)
			}
		}
	}
}

func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// pollAndProcess checks capacity, claims a message, and processes it.
func (w *Worker) pollAndProcess(ctx context.Context) error {
	activeCount, err := w.client.InboundMessage.Query().
		Where(inboundmessage.ProcessingStatusIn(activeStatuses...)).
		Count(ctx)
	if err != nil {
		return fmt.Errorf("checking active messages: %w", err)
	}
	if activeCount >= w.config.MaxConcurrentJobs {
		return ErrAtCapacity
	}

	message, err := w.claimNextMessage(ctx)
	if err != nil {
		return err
	}

	log := slog.With("message_id", message.ID, "worker_id", w.id)
	log.Info("message claimed")

	w.setStatus(WorkerStatusWorking, message.ID)
	defer w.setStatus(WorkerStatusIdle, "")

	msgCtx, cancel := context.WithTimeout(ctx, w.config.JobTimeout)
	defer cancel()

	w.pool.RegisterMessage(message.ID, cancel)
	defer w.pool.UnregisterMessage(message.ID)

	heartbeatCtx, cancelHeartbeat := context.WithCancel(msgCtx)
	defer cancelHeartbeat()
	go w.runHeartbeat(heartbeatCtx, message.ID)

	result := w.executor.Execute(msgCtx, message)
	cancelHeartbeat()

	if result == nil {
		result = w.nilGuardResult(msgCtx)
	}

	if err := w.updateTerminalStatus(context.Background(), message.ID, result); err != nil {
		log.Error("failed to update terminal status", "error", err)
		return err
	}

	w.mu.Lock()
	w.messagesProcessed++
	w.mu.Unlock()

	log.Info("message processing complete", "status", result.Status)
	return nil
}

func (w *Worker) nilGuardResult(ctx context.Context) *PipelineResult {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &PipelineResult{Status: inboundmessage.ProcessingStatusFailed, Error: fmt.Errorf("message timed out after %v", w.config.JobTimeout)}
	case errors.Is(ctx.Err(), context.Canceled):
		return &PipelineResult{Status: inboundmessage.ProcessingStatusFailed, Error: context.Canceled}
	default:
		return &PipelineResult{Status: inboundmessage.ProcessingStatusFailed, Error: fmt.Errorf("executor returned nil result")}
	}
}

// claimNextMessage atomically claims the next queued message using
// FOR UPDATE SKIP LOCKED.
func (w *Worker) claimNextMessage(ctx context.Context) (*ent.InboundMessage, error) {
	tx, err := w.client.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	message, err := tx.InboundMessage.Query().
		Where(inboundmessage.ProcessingStatusEQ(inboundmessage.ProcessingStatusQueued)).
		Order(ent.Asc(inboundmessage.FieldReceivedAt)).
		Limit(1).
		ForUpdate(sql.WithLockAction(sql.SkipLocked)).
		First(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNoMessagesAvailable
		}
		return nil, fmt.Errorf("failed to query queued message: %w", err)
	}

	now := time.Now()
	message, err = message.Update().
		SetProcessingStatus(inboundmessage.ProcessingStatusProcessing).
		SetStartedAt(now).
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to claim message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	return message, nil
}

// runHeartbeat periodically touches started_at so the stale-processing
// auditor (§4.12) doesn't flag a message this worker is actively driving.
func (w *Worker) runHeartbeat(ctx context.Context, messageID string) {
	ticker := time.NewTicker(w.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.client.InboundMessage.UpdateOneID(messageID).
				SetStartedAt(time.Now()).
				Exec(ctx); err != nil {
				slog.Warn("heartbeat update failed", "message_id", messageID, "error", err)
			}
		}
	}
}

// updateTerminalStatus writes the final message status. Stage-level fields
// (confidence, match outcome) are written by the executor itself as each
// stage completes; this only closes out the row.
func (w *Worker) updateTerminalStatus(ctx context.Context, messageID string, result *PipelineResult) error {
	update := w.client.InboundMessage.UpdateOneID(messageID).
		SetProcessingStatus(result.Status).
		SetCompletedAt(time.Now()).
		SetNeedsReview(result.NeedsReview)

	if result.Error != nil {
		update = update.SetLastError(result.Error.Error())
	}

	return update.Exec(ctx)
}

func (w *Worker) pollInterval() time.Duration {
	base := w.config.PollInterval
	jitter := w.config.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

func (w *Worker) setStatus(status WorkerStatus, messageID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentMessageID = messageID
	w.lastActivity = time.Now()
}
