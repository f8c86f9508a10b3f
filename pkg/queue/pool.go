package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/example/creditor-inbox/ent"
	"github.com/example/creditor-inbox/ent/inboundmessage"
	"github.com/example/creditor-inbox/pkg/config"
)

// WorkerPool manages a pool of queue workers.
type WorkerPool struct {
	podID    string
	client   *ent.Client
	config   *config.QueueConfig
	executor MessageExecutor
	workers  []*Worker
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	activeMessages map[string]context.CancelFunc
	mu             sync.RWMutex
	started        bool

	orphans orphanState
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(podID string, client *ent.Client, cfg *config.QueueConfig, executor MessageExecutor) *WorkerPool {
	return &WorkerPool{
		podID:          podID,
		client:         client,
		config:         cfg,
		executor:       executor,
		workers:        make([]*Worker, 0, cfg.WorkerCount),
		stopCh:         make(chan struct{}),
		activeMessages: make(map[string]context.CancelFunc),
	}
}

// Start spawns worker goroutines and the orphan detection background task.
func (p *WorkerPool) Start(ctx context.Context) error {
	if p.started {
		slog.Warn("worker pool already started, ignoring duplicate start call", "pod_id", p.podID)
		return nil
	}
	p.started = true

	slog.Info("starting worker pool", "pod_id", p.podID, "worker_count", p.config.WorkerCount)

	for i := 0; i < p.config.WorkerCount; i++ {
		workerID := fmt.Sprintf("%s-worker-%d", p.podID, i)
		worker := NewWorker(workerID, p.podID, p.client, p.config, p.executor, p)
		p.workers = append(p.workers, worker)
		worker.Start(ctx)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runOrphanDetection(ctx)
	}()

	slog.Info("worker pool started")
	return nil
}

// Stop signals all workers to stop and waits for them to finish.
func (p *WorkerPool) Stop() {
	slog.Info("stopping worker pool gracefully")

	active := p.getActiveMessageIDs()
	if len(active) > 0 {
		slog.Info("waiting for active messages to complete", "count", len(active), "message_ids", active)
	}

	for _, worker := range p.workers {
		worker.Stop()
	}

	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()

	slog.Info("worker pool stopped gracefully")
}

// RegisterMessage stores a cancel function for manual cancellation.
func (p *WorkerPool) RegisterMessage(messageID string, cancel context.CancelFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activeMessages[messageID] = cancel
}

// UnregisterMessage removes the cancel function when processing ends.
func (p *WorkerPool) UnregisterMessage(messageID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.activeMessages, messageID)
}

// CancelMessage triggers context cancellation for a message on this pod.
func (p *WorkerPool) CancelMessage(messageID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if cancel, ok := p.activeMessages[messageID]; ok {
		cancel()
		return true
	}
	return false
}

// Health returns the current health status of the pool.
func (p *WorkerPool) Health() *PoolHealth {
	ctx := context.Background()

	queueDepth, errQ := p.client.InboundMessage.Query().
		Where(inboundmessage.ProcessingStatusEQ(inboundmessage.ProcessingStatusQueued)).
		Count(ctx)
	if errQ != nil {
		slog.Error("failed to query queue depth for health check", "pod_id", p.podID, "error", errQ)
	}

	activeMessages, errA := p.client.InboundMessage.Query().
		Where(inboundmessage.ProcessingStatusIn(activeStatuses...)).
		Count(ctx)
	if errA != nil {
		slog.Error("failed to query active messages for health check", "pod_id", p.podID, "error", errA)
	}

	workerStats := make([]WorkerHealth, len(p.workers))
	activeWorkers := 0
	for i, worker := range p.workers {
		stats := worker.Health()
		workerStats[i] = stats
		if stats.Status == string(WorkerStatusWorking) {
			activeWorkers++
		}
	}

	dbHealthy := errQ == nil && errA == nil
	isHealthy := len(p.workers) > 0 && activeMessages <= p.config.MaxConcurrentJobs && dbHealthy

	var dbError string
	if !dbHealthy {
		if errQ != nil {
			dbError = fmt.Sprintf("queue depth query failed: %v", errQ)
		} else if errA != nil {
			dbError = fmt.Sprintf("active messages query failed: %v", errA)
		}
	}

	return &PoolHealth{
		IsHealthy:      isHealthy,
		DBReachable:    dbHealthy,
		DBError:        dbError,
		PodID:          p.podID,
		ActiveWorkers:  activeWorkers,
		TotalWorkers:   len(p.workers),
		ActiveMessages: activeMessages,
		MaxConcurrent:  p.config.MaxConcurrentJobs,
		QueueDepth:     queueDepth,
		WorkerStats:    workerStats,
	}
}

func (p *WorkerPool) getActiveMessageIDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.activeMessages))
	for id := range p.activeMessages {
		ids = append(ids, id)
	}
	return ids
}
