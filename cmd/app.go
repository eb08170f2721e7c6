package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/verdantlabs/verdant/internal/agent"
	"github.com/verdantlabs/verdant/internal/checkpoint"
	"github.com/verdantlabs/verdant/internal/config"
	"github.com/verdantlabs/verdant/internal/database"
	"github.com/verdantlabs/verdant/internal/index"
	"github.com/verdantlabs/verdant/internal/log"
	"github.com/verdantlabs/verdant/internal/observability"
	"github.com/verdantlabs/verdant/internal/provider"
	"github.com/verdantlabs/verdant/internal/rag"
	"github.com/verdantlabs/verdant/internal/tools"
)

// app holds the assembled application: every command builds one, uses the
// pieces it needs, and closes it on the way out.
type app struct {
	cfg          *config.Config
	logger       log.Logger
	pool         *pgxpool.Pool
	rag          *rag.System
	orchestrator *agent.Orchestrator
	persistFn    func(context.Context) error
}

// newApp wires configuration, provider clients, the indexes, the tool
// registry, checkpointing, and the orchestrator.
//
// Postgres unavailability degrades in production: checkpoints fall back
// to memory and the semantic index is skipped, so the service keeps
// answering from the keyword and relationship indexes. In development
// and test it is a fatal startup error, surfacing misconfiguration
// immediately.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level, JSON: cfg.IsProduction()})

	llm, embedder, err := provider.New(cfg.Provider, provider.Options{
		APIKey:        cfg.APIKey(),
		Model:         cfg.ModelName,
		EmbedderModel: cfg.EmbedderModel,
		Temperature:   cfg.Temperature,
		MaxTokens:     cfg.MaxTokens,
		Dimension:     cfg.EmbedderDimension,
	})
	if err != nil {
		return nil, fmt.Errorf("creating provider clients: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}

	pool, poolErr := connectDatabase(ctx, cfg, logger)
	if poolErr != nil {
		if !cfg.IsProduction() {
			return nil, poolErr
		}
		logger.Warn("postgres unavailable, running degraded", "error", poolErr)
	}
	a.pool = pool

	recorder := observability.NewRecorder(prometheus.DefaultRegisterer)

	ragSystem, persistFn, err := buildRAG(cfg, pool, llm, embedder, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.rag = ragSystem
	a.persistFn = persistFn

	registry := tools.NewRegistry(recorder, cfg.ModelName, logger)
	registry.Register(tools.NewKnowledgeBaseTool(ragSystem, logger))
	registry.Register(tools.NPKCalculatorTool{})
	registry.Register(tools.PHCalculatorTool{})

	checkpoints, err := buildCheckpoints(ctx, cfg, pool, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	orchestrator, err := agent.NewOrchestrator(agent.OrchestratorConfig{
		LLM:         llm,
		Registry:    registry,
		Checkpoints: checkpoints,
		Recorder:    recorder,
		Logger:      logger,
		MaxSteps:    cfg.MaxSteps,
		MaxHistory:  cfg.MaxHistoryMessages,
		Retry: agent.RetryConfig{
			MaxAttempts:     cfg.MaxLLMRetries,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     10 * time.Second,
		},
		RatePerSecond: cfg.RateLimitPerSecond,
		Burst:         cfg.RateLimitBurst,
		Debug:         cfg.Debug,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}
	a.orchestrator = orchestrator

	return a, nil
}

func connectDatabase(ctx context.Context, cfg *config.Config, logger log.Logger) (*pgxpool.Pool, error) {
	if err := database.Migrate(cfg.PostgresURL(), logger); err != nil {
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	pool, err := database.Connect(ctx, database.Options{
		URL:            cfg.PostgresURL(),
		PoolSize:       cfg.PostgresPoolSize,
		ConnectTimeout: time.Duration(cfg.ConnectTimeoutSecs) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return pool, nil
}

func buildRAG(cfg *config.Config, pool *pgxpool.Pool, llm provider.LLM, embedder provider.Embedder, logger log.Logger) (*rag.System, func(context.Context) error, error) {
	var stores []rag.Store
	var lister rag.DocumentLister

	if pool != nil {
		semantic, err := index.NewSemanticStore(pool, embedder, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("creating semantic index: %w", err)
		}
		stores = append(stores, semantic)
		lister = semantic
	}

	keyword, err := index.NewKeywordStore(cfg.PersistDir, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("creating keyword index: %w", err)
	}
	stores = append(stores, keyword)

	graph, err := index.NewGraphStore(cfg.PersistDir, llm, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("creating relationship index: %w", err)
	}
	stores = append(stores, graph)

	if lister == nil {
		lister = keyword
	}

	chunker := rag.NewChunker(cfg.ChunkWindowSize)
	manager := rag.NewManager(chunker, stores, lister, logger)
	engine := rag.NewEngine(stores, llm, rag.NewLexicalReranker(), cfg.TopK, cfg.RerankTopN, logger)

	persistFn := func(ctx context.Context) error {
		var firstErr error
		for _, s := range stores {
			if err := s.Persist(ctx); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
	return rag.NewSystem(manager, engine, logger), persistFn, nil
}

func buildCheckpoints(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger log.Logger) (checkpoint.Store, error) {
	if pool == nil {
		if !cfg.IsProduction() {
			return nil, fmt.Errorf("checkpoint store requires postgres outside production")
		}
		logger.Warn("using in-memory checkpoints, conversations will not survive restarts")
		return checkpoint.NewMemoryStore(), nil
	}
	store, err := checkpoint.NewPostgresStore(ctx, pool, cfg.CheckpointTables, logger)
	if err != nil {
		if cfg.IsProduction() && errors.Is(err, checkpoint.ErrUnavailable) {
			logger.Warn("checkpoint store unavailable, using in-memory fallback", "error", err)
			return checkpoint.NewMemoryStore(), nil
		}
		return nil, fmt.Errorf("creating checkpoint store: %w", err)
	}
	return store, nil
}

// Close releases the database pool and flushes the on-disk indexes.
func (a *app) Close() {
	if a.persistFn != nil {
		if err := a.persistFn(context.Background()); err != nil {
			a.logger.Warn("failed to persist indexes", "error", err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
