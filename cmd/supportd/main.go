// Supportd is a knowledge retrieval and feedback-learning daemon for
// customer support teams.
//
// The daemon answers free-text product questions from two vector corpora,
// curated reference documents and solutions learned from agent feedback,
// and exposes an HTTP API for querying, feedback submission, statistics,
// and reference seeding.
//
// Configuration is loaded from ~/.config/supportd/config.yaml with
// SUPPORTD_* environment overrides. See internal/config for details.
//
// Usage:
//
//	# Start with defaults (embedded chromem store, fastembed embeddings)
//	supportd
//
//	# Configure via environment
//	SUPPORTD_SERVER_PORT=9090 SUPPORTD_VECTORSTORE_PROVIDER=qdrant supportd
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/supportd/internal/answer"
	"github.com/fyrsmithlabs/supportd/internal/config"
	"github.com/fyrsmithlabs/supportd/internal/embeddings"
	"github.com/fyrsmithlabs/supportd/internal/engine"
	"github.com/fyrsmithlabs/supportd/internal/events"
	"github.com/fyrsmithlabs/supportd/internal/feedback"
	"github.com/fyrsmithlabs/supportd/internal/generation"
	httpapi "github.com/fyrsmithlabs/supportd/internal/http"
	"github.com/fyrsmithlabs/supportd/internal/knowledge"
	"github.com/fyrsmithlabs/supportd/internal/logging"
	"github.com/fyrsmithlabs/supportd/internal/redact"
	"github.com/fyrsmithlabs/supportd/internal/scoring"
	"github.com/fyrsmithlabs/supportd/internal/search"
	"github.com/fyrsmithlabs/supportd/internal/telemetry"
	"github.com/fyrsmithlabs/supportd/internal/validation"
	"github.com/fyrsmithlabs/supportd/internal/vectorstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default ~/.config/supportd/config.yaml)")
	flag.Parse()
	args := flag.Args()

	// Handle subcommands
	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  supportd           Start the supportd daemon\n")
			fmt.Fprintf(os.Stderr, "  supportd version   Show version information\n")
			os.Exit(1)
		}
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("supportd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the supportd server and blocks until context is cancelled.
//
// Initialization order:
//  1. Load and validate configuration
//  2. Initialize telemetry and logger
//  3. Open infrastructure (vector store, embedder, generator, scrubber,
//     feedback log, optional NATS usage stream)
//  4. Wire the engine subsystems (search, answer, validation, feedback)
//  5. Start the HTTP server with the Prometheus endpoint mounted
//  6. Perform graceful shutdown on context cancellation
func run(ctx context.Context, configPath string) error {
	if configPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		configPath = p
	}
	if err := config.EnsureConfigDir(); err != nil {
		return err
	}

	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg))
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		_ = tel.Shutdown(shutdownCtx)
	}()

	logCfg, err := logging.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	appLogger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = appLogger.Sync() // Best-effort sync on shutdown
	}()
	logger := appLogger.Underlying()

	logger.Info("starting supportd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("vectorstore", cfg.VectorStore.Provider),
		zap.String("embeddings", cfg.Embeddings.Provider),
		zap.String("generation", cfg.Generation.Provider))

	if health := tel.Health(); health.Degraded {
		logger.Warn("telemetry degraded", zap.String("reason", health.Reason))
	}

	deps, err := initDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing dependencies: %w", err)
	}
	defer deps.Close()

	logger.Info("dependencies initialized",
		zap.String("reference_collection", cfg.VectorStore.ReferenceCollection),
		zap.String("learned_collection", cfg.VectorStore.LearnedCollection),
		zap.Bool("events_enabled", cfg.Events.Enabled))

	eng, err := initEngine(cfg, deps, logger)
	if err != nil {
		return fmt.Errorf("initializing engine: %w", err)
	}

	srv, err := httpapi.NewServer(eng, httpapi.FromAppConfig(cfg), logger)
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	// Register metrics endpoint
	srv.Echo().GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Hot-reload the runtime-safe settings on config file changes.
	watcher, err := config.NewWatcher(configPath, logger, func(next *config.Config) {
		if err := appLogger.SetLevelFromString(next.Logging.Level); err != nil {
			logger.Warn("reloaded logging level rejected", zap.Error(err))
		}
		deps.coordinator.SetDefaultLimit(next.Retrieval.Limit)
	})
	if err != nil {
		logger.Warn("config watcher unavailable", zap.Error(err))
	} else if err := watcher.Start(ctx); err != nil {
		logger.Warn("config watcher failed to start", zap.Error(err))
	} else {
		defer watcher.Stop()
	}

	logger.Info("server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port)),
		zap.String("api_prefix", "/api/v1"),
		zap.String("metrics_endpoint", "/metrics"))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}
}

// dependencies holds the infrastructure behind the engine.
type dependencies struct {
	store       vectorstore.Store
	embedder    embeddings.Provider
	generator   generation.Generator
	scrubber    redact.Scrubber
	feedbackLog *feedback.Log
	coordinator *search.Coordinator
	natsConn    *nats.Conn
	consumer    *events.Consumer
	usage       events.Publisher

	// recordLocks serializes writers per record identity across the
	// usage consumer and the promotion path.
	recordLocks *knowledge.KeyedMutex
}

// Close releases all infrastructure resources. The consumer goes first so
// its final flush still reaches the store.
func (d *dependencies) Close() {
	if d.consumer != nil {
		_ = d.consumer.Close()
	}
	if d.natsConn != nil {
		d.natsConn.Close()
	}
	if d.feedbackLog != nil {
		_ = d.feedbackLog.Close()
	}
	if d.embedder != nil {
		_ = d.embedder.Close()
	}
	if d.store != nil {
		_ = d.store.Close()
	}
}

// initDependencies opens every external resource the engine needs.
func initDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*dependencies, error) {
	store, err := vectorstore.NewStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating vector store: %w", err)
	}
	deps := &dependencies{store: store, recordLocks: knowledge.NewKeyedMutex()}

	embedder, err := embeddings.NewProvider(embeddings.FromAppConfig(cfg), logger)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}
	deps.embedder = embedder

	if dim := embedder.Dimension(); dim != cfg.VectorStore.VectorSize {
		deps.Close()
		return nil, fmt.Errorf("embedding dimension %d does not match configured vector size %d", dim, cfg.VectorStore.VectorSize)
	}

	// Ensure both corpus collections exist (idempotent)
	for _, collection := range []string{cfg.VectorStore.ReferenceCollection, cfg.VectorStore.LearnedCollection} {
		if err := store.EnsureCollection(ctx, collection, embedder.Dimension()); err != nil {
			deps.Close()
			return nil, fmt.Errorf("ensuring collection %s: %w", collection, err)
		}
	}

	generator, err := generation.NewGenerator(generation.FromAppConfig(cfg), logger)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("creating generator: %w", err)
	}
	deps.generator = generator

	scrubber, err := redact.New(redact.FromAppConfig(cfg), logger)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("creating scrubber: %w", err)
	}
	deps.scrubber = scrubber

	feedbackLog, err := feedback.Open(cfg.Feedback.LogPath, logger)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("opening feedback log: %w", err)
	}
	deps.feedbackLog = feedbackLog

	deps.usage = events.NoopPublisher{}
	if cfg.Events.Enabled {
		nc, err := events.Connect(cfg.Events.URL, logger)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("connecting to events stream: %w", err)
		}
		deps.natsConn = nc

		publisher, err := events.NewPublisher(nc, events.FromAppConfig(cfg), logger)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("creating usage publisher: %w", err)
		}
		deps.usage = publisher

		consumer, err := events.NewConsumer(store, deps.recordLocks, events.FromAppConfig(cfg), logger)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("creating usage consumer: %w", err)
		}
		if err := consumer.Start(nc); err != nil {
			deps.Close()
			return nil, fmt.Errorf("starting usage consumer: %w", err)
		}
		deps.consumer = consumer
	}

	return deps, nil
}

// initEngine wires the engine subsystems over the opened dependencies.
func initEngine(cfg *config.Config, deps *dependencies, logger *zap.Logger) (*engine.Engine, error) {
	scorer := scoring.NewScorer()

	reference := search.Corpus{
		Store:      deps.store,
		Collection: cfg.VectorStore.ReferenceCollection,
		Origin:     knowledge.OriginReference,
	}
	learned := search.Corpus{
		Store:      deps.store,
		Collection: cfg.VectorStore.LearnedCollection,
		Origin:     knowledge.OriginLearned,
	}

	coordinator, err := search.NewCoordinator(deps.embedder, reference, learned, scorer, search.FromAppConfig(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("creating search coordinator: %w", err)
	}
	deps.coordinator = coordinator

	assembler, err := answer.NewAssembler(deps.generator, deps.usage, answer.FromAppConfig(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("creating answer assembler: %w", err)
	}

	validator := validation.NewValidator(deps.generator, validation.FromAppConfig(cfg), logger)

	feedbackSvc, err := feedback.NewService(deps.feedbackLog, deps.scrubber, deps.embedder, deps.store, scorer, deps.recordLocks, feedback.FromAppConfig(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("creating feedback service: %w", err)
	}

	eng, err := engine.New(engine.Deps{
		Searcher:  coordinator,
		Assembler: assembler,
		Validator: validator,
		Feedback:  feedbackSvc,
		Embedder:  deps.embedder,
		Generator: deps.generator,
		Scrubber:  deps.scrubber,
		Reference: reference,
		Learned:   learned,
	}, engine.FromAppConfig(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}

	return eng, nil
}
