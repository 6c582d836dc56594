package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/sessionrec/internal/adapters/cache"
	"github.com/okian/sessionrec/internal/adapters/http/api"
	"github.com/okian/sessionrec/internal/adapters/http/site"
	"github.com/okian/sessionrec/internal/adapters/http/swagger"
	"github.com/okian/sessionrec/internal/adapters/llm"
	workerpool "github.com/okian/sessionrec/internal/adapters/mq/worker"
	"github.com/okian/sessionrec/internal/adapters/repository"
	app "github.com/okian/sessionrec/internal/app"
	"github.com/okian/sessionrec/internal/config"
	"github.com/okian/sessionrec/internal/domain/llmfilter"
	"github.com/okian/sessionrec/internal/domain/rules"
	"github.com/okian/sessionrec/internal/domain/similarity"
	"github.com/okian/sessionrec/pkg/logger"
	"github.com/okian/sessionrec/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 120 * time.Second // LLM filtering can take a while
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() { _ = logger.Sync() }()

	loggerInstance := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc, err := buildService(ctx, cfg, loggerInstance)
	if err != nil {
		loggerInstance.Error(ctx, "failed to build service", logger.Error(err))
		return
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := svc.Close(closeCtx); err != nil {
			loggerInstance.Warn(ctx, "failed to close graph store", logger.Error(err))
		}
	}()

	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, svc, cfg),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			loggerInstance.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
}

// buildService wires the graph store, model client and pipeline stages
// described by cfg into a Service.
func buildService(ctx context.Context, cfg *config.Config, log logger.Logger) (*app.Service, error) {
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	// Without an API key both the embedder and the chat model stay nil
	// interfaces; the service degrades instead of failing.
	var (
		embedder similarity.Embedder
		chat     llmfilter.Chat
	)
	client, err := llm.New(llm.Config{
		BaseURL:         cfg.LLMBaseURL,
		APIKey:          cfg.LLMAPIKey,
		Model:           cfg.LLMModel,
		EmbedModel:      cfg.LLMEmbedModel,
		Timeout:         cfg.LLMTimeout(),
		BreakerFailures: uint32(cfg.LLMBreakerFailures), //nolint:gosec // validated >= 1
	}, llm.WithLogger(log.Named("llm")))
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		log.Warn(ctx, "no llm_api_key; similar-visitor search and LLM filtering are disabled")
	case err != nil:
		return nil, fmt.Errorf("llm client: %w", err)
	default:
		embedder, chat = client, client
		log.Info(ctx, "model endpoint configured", logger.String("model", client.Model()))
	}

	ruleFilter, err := rules.New(cfg.Rules)
	if err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}

	opts := []app.Option{
		app.WithLogger(log.Named("service")),
		app.WithEngine(similarity.NewEngine(
			workerpool.NewPool(cfg.SimilarityMaxWorkers,
				workerpool.WithName("similarity"),
				workerpool.WithLogger(log.Named("worker"))),
			similarity.WithLogger(log.Named("similarity")))),
		app.WithMatcher(similarity.NewVisitorMatcher(store, embedder,
			similarity.WithPoolSize(cfg.SimilarPoolSize),
			similarity.WithWeights(cfg.EmbeddingWeight, cfg.OverlapWeight),
			similarity.WithMatcherLogger(log.Named("matcher")))),
		app.WithRuleFilter(ruleFilter),
		app.WithCache(cache.New()),
		app.WithDefaults(cfg.DefaultMinScore, cfg.DefaultMaxRecommendations, cfg.MaxRecommendationsLimit),
		app.WithSimilarVisitors(cfg.SimilarVisitors),
	}
	if chat != nil {
		opts = append(opts, app.WithLLMFilter(llmfilter.New(chat, cfg.Rules, llmfilter.WithLogger(log.Named("llmfilter")))))
	}

	svc, err := app.New(store, opts...)
	if err != nil {
		_ = store.Close(ctx)
		return nil, fmt.Errorf("service: %w", err)
	}
	return svc, nil
}

// openStore connects to Neo4j when neo4j_uri is set and otherwise serves an
// empty in-memory graph.
func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.Store, error) {
	if cfg.Neo4jURI == "" {
		log.Warn(ctx, "no neo4j_uri; serving an empty in-memory graph")
		return repository.NewMemoryStore(), nil
	}
	driver, err := repository.OpenNeo4j(ctx, repository.Neo4jConfig{
		URI:         cfg.Neo4jURI,
		User:        cfg.Neo4jUser,
		Password:    cfg.Neo4jPassword,
		Database:    cfg.Neo4jDatabase,
		MaxPoolSize: cfg.Neo4jMaxPoolSize,
		Timeout:     cfg.Neo4jTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("graph store: %w", err)
	}
	log.Info(ctx, "connected to neo4j", logger.String("uri", cfg.Neo4jURI), logger.String("database", cfg.Neo4jDatabase))
	return repository.NewNeo4jStore(driver,
		repository.WithDatabase(cfg.Neo4jDatabase),
		repository.WithLogger(log.Named("neo4j"))), nil
}

// newMux registers the API, docs and landing page routes.
func newMux(ctx context.Context, svc *app.Service, cfg *config.Config) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(svc, cfg.MaxRecommendationsLimit).Register(ctx, mux)
	swagger.Register(ctx, mux)
	site.Register(ctx, mux)
	return mux
}

// startSystemMetricsUpdater updates system metrics until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
