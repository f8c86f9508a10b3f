// creditor-inbox ingests creditor reply emails, extracts structured claim
// data, matches them against previously sent outbound inquiries, and writes
// results to a primary relational store and a secondary document store via
// a transactional outbox.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/example/creditor-inbox/ent"
	"github.com/example/creditor-inbox/pkg/agent"
	"github.com/example/creditor-inbox/pkg/api"
	"github.com/example/creditor-inbox/pkg/budget"
	"github.com/example/creditor-inbox/pkg/capability"
	"github.com/example/creditor-inbox/pkg/checkpoint"
	"github.com/example/creditor-inbox/pkg/confidence"
	"github.com/example/creditor-inbox/pkg/config"
	"github.com/example/creditor-inbox/pkg/database"
	"github.com/example/creditor-inbox/pkg/idempotency"
	"github.com/example/creditor-inbox/pkg/matching"
	"github.com/example/creditor-inbox/pkg/metrics"
	"github.com/example/creditor-inbox/pkg/outbox"
	"github.com/example/creditor-inbox/pkg/queue"
	"github.com/example/creditor-inbox/pkg/reconcile"
	"github.com/example/creditor-inbox/pkg/review"
	"github.com/example/creditor-inbox/pkg/services"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: Could not load %s file: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	ginMode := getEnv("GIN_MODE", "debug")
	gin.SetMode(ginMode)

	log.Printf("Starting creditor-inbox")
	log.Printf("HTTP Port: %s", httpPort)
	log.Printf("Config Directory: %s", *configDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("Failed to initialize configuration: %v", err)
	}

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to load database config: %v", err)
	}

	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			log.Printf("Error closing database client: %v", err)
		}
	}()
	log.Println("connected to PostgreSQL, schema migrated")

	entClient := dbClient.Client

	// Ambient collaborators.
	checkpoints := checkpoint.New(entClient)
	idemp := idempotency.New(entClient, cfg.Retention.IdempotencyKeyTTL)
	dailyBreaker := budget.NewDailyBreaker(cfg.Budget.DailyCostLimitUSD)
	reviewQ := review.NewQueue(entClient)
	outboxW := outbox.NewWriter(entClient, idemp)
	thresholds := matching.NewThresholdManager(entClient)
	matcher := matching.NewEngine(entClient, thresholds)
	router := confidence.NewRouter(cfg.Confidence.HighThreshold, cfg.Confidence.LowThreshold)
	recorder := metrics.NewRecorder(entClient)

	// External capabilities: concrete bindings live in cmd/creditor-inbox
	// (§6), wrapped in the three circuit breakers (§4.3, §7).
	llmKey := os.Getenv("ANTHROPIC_API_KEY")
	rawLLM := newAnthropicLLMClient(llmKey)
	rawStorage := newHTTPAttachmentStore()
	secondaryStoreURL := getEnv("SECONDARY_STORE_URL", "http://localhost:9000")
	rawSecondary := newHTTPSecondaryStore(secondaryStoreURL)

	notifier := capability.Notifier(nil)
	llmBreaker := capability.NewBreaker("llm-client", cfg.Breaker.FailMax, time.Duration(cfg.Breaker.ResetTimeoutS*float64(time.Second)), notifier)
	storageBreaker := capability.NewBreaker("attachment-store", cfg.Breaker.FailMax, time.Duration(cfg.Breaker.ResetTimeoutS*float64(time.Second)), notifier)
	secondaryBreaker := capability.NewBreaker("secondary-store", cfg.Breaker.FailMax, time.Duration(cfg.Breaker.ResetTimeoutS*float64(time.Second)), notifier)

	llmClient := capability.NewBreakerLLMClient(rawLLM, llmBreaker)
	storageClient := capability.NewBreakerAttachmentStore(rawStorage, storageBreaker)
	secondaryClient := capability.NewBreakerSecondaryStore(rawSecondary, secondaryBreaker)

	messageService := services.NewMessageService(entClient)
	inquiryService := services.NewInquiryService(entClient)

	headerFn := func(message *ent.InboundMessage) agent.Headers {
		return agent.Headers{}
	}

	executor := queue.NewPipelineExecutor(
		entClient,
		checkpoints,
		matcher,
		router,
		outboxW,
		reviewQ,
		idemp,
		dailyBreaker,
		llmClient,
		storageClient,
		secondaryClient,
		cfg.Budget.MaxTokensPerJob,
		cfg.Budget.InputCostPerMillionUSD,
		cfg.Budget.OutputCostPerMillionUSD,
		headerFn,
	)

	podID := getEnv("POD_ID", "local")
	pool := queue.NewWorkerPool(podID, entClient, cfg.Queue, executor)
	if err := pool.Start(ctx); err != nil {
		log.Fatalf("Failed to start worker pool: %v", err)
	}
	defer pool.Stop()
	log.Printf("worker pool started: %d workers", cfg.Queue.WorkerCount)

	reconciler := reconcile.NewService(entClient, idemp, secondaryClient, reconcile.RetentionPolicy{
		IdempotencyKeyTTL: cfg.Retention.IdempotencyKeyTTL,
		OutboxRetention:   cfg.Retention.OutboxRetention,
	})
	if cfg.Environment != config.EnvironmentTesting {
		reconciler.Start(ctx)
		defer reconciler.Stop()
		log.Println("reconciler started")
	}

	roller := metrics.NewRoller(entClient)
	if cfg.Environment != config.EnvironmentTesting {
		roller.Start(ctx)
		defer roller.Stop()
		log.Println("metrics roller started")
	}

	httpRouter := gin.Default()
	handlers := &api.Handlers{
		Messages:           messageService,
		Inquiries:          inquiryService,
		Reviews:            reviewQ,
		Pool:               pool,
		Calibration:        recorder,
		WebhookSecret:      os.Getenv(cfg.Webhook.SecretEnv),
		TimestampTolerance: int64(cfg.Webhook.TimestampToleranceSeconds),
	}
	handlers.Register(httpRouter)

	srv := &http.Server{
		Addr:    ":" + httpPort,
		Handler: httpRouter,
	}

	go func() {
		log.Printf("HTTP server listening on :%s", httpPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutdown signal received, draining...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Queue.GracefulShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
}
