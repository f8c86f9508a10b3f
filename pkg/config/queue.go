package config

import "time"

// QueueConfig contains job queue and worker pool configuration. These values
// control how inbound messages are polled, claimed, and processed (§5, C9).
type QueueConfig struct {
	// WorkerCount is the number of worker goroutines per replica/pod.
	// Each worker independently polls and processes messages.
	WorkerCount int `yaml:"worker_count"`

	// MaxConcurrentJobs is the global limit of messages being processed
	// concurrently across ALL replicas/pods. Enforced by database COUNT(*).
	MaxConcurrentJobs int `yaml:"max_concurrent_jobs"`

	// PollInterval is the base interval for checking pending messages.
	PollInterval time.Duration `yaml:"poll_interval"`

	// PollIntervalJitter is the random jitter added to PollInterval.
	PollIntervalJitter time.Duration `yaml:"poll_interval_jitter"`

	// JobTimeout is the maximum time a single message can be processed; the
	// worker cancels the message's context when it elapses. The
	// stale-processing auditor uses its own fixed 24-hour threshold.
	JobTimeout time.Duration `yaml:"job_timeout"`

	// GracefulShutdownTimeout is the max time to wait for active jobs
	// to complete during shutdown. Should match JobTimeout.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`

	// OrphanDetectionInterval is how often to scan for orphaned jobs.
	OrphanDetectionInterval time.Duration `yaml:"orphan_detection_interval"`

	// OrphanThreshold is how long a job can go without a heartbeat before
	// it is considered orphaned and requeued.
	OrphanThreshold time.Duration `yaml:"orphan_threshold"`

	// HeartbeatInterval is how often an in-flight worker touches started_at
	// to prove liveness. Must be well below OrphanThreshold.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
}

// DefaultQueueConfig returns the built-in queue defaults.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		WorkerCount:             5,
		MaxConcurrentJobs:       5,
		PollInterval:            1 * time.Second,
		PollIntervalJitter:      500 * time.Millisecond,
		JobTimeout:              10 * time.Minute,
		GracefulShutdownTimeout: 10 * time.Minute,
		OrphanDetectionInterval: 5 * time.Minute,
		OrphanThreshold:         15 * time.Minute,
		HeartbeatInterval:       30 * time.Second,
	}
}
