// Package app wires the application together: tracing, the rules store,
// the Genkit embedding provider, and the retrieval engine. Setup returns
// an App with embedded cleanup; call Close to release resources.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/tracing"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/ollama"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/GengGao/hackathon-agent/internal/config"
	"github.com/GengGao/hackathon-agent/internal/rag"
	"github.com/GengGao/hackathon-agent/internal/rules"
)

// App is the application container.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	Rules    *rules.Store
	Engine   *rag.Engine

	otelCleanup func()
}

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	store, err := rules.Open(cfg.DBPath, cfg.RulesPath, logger)
	if err != nil {
		return nil, fmt.Errorf("opening rules store: %w", err)
	}
	a.Rules = store

	// Seeding only fails when the ruleset file is unreadable; the engine
	// still serves the sentinel chunk in that case.
	if err := store.SeedInitial(ctx); err != nil {
		logger.Warn("seeding initial ruleset", "error", err)
	}

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := ollama.Embedder(g, cfg.OllamaHost)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not registered for host %q",
			cfg.EmbedderModel, cfg.OllamaHost)
	}
	a.Embedder = embedder

	a.Engine = rag.New(store, embedder, rag.Config{
		TopK:             cfg.TopK,
		SimilarityCutoff: cfg.SimilarityCutoff,
		CacheDir:         cfg.CacheDir,
	}, logger)

	return a, nil
}

// Close releases application resources.
func (a *App) Close() error {
	var errs []error

	if a.Rules != nil {
		if err := a.Rules.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing rules store: %w", err))
		}
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return errors.Join(errs...)
}

// provideGenkit initializes Genkit with the Ollama plugin and registers
// the embedding model. Ollama requires explicit registration, there is
// no auto-discovery.
func provideGenkit(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*genkit.Genkit, error) {
	ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}

	g := genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
	if g == nil {
		return nil, errors.New("initializing genkit with ollama provider")
	}
	ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)

	logger.Info("initialized Genkit with ollama provider",
		"host", cfg.OllamaHost, "embedder", cfg.EmbedderModel)
	return g, nil
}

// provideOtelShutdown sets up OTLP trace export before Genkit
// initialization so spans land on Genkit's TracerProvider. An empty
// endpoint disables tracing entirely, which is the normal offline
// configuration.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger *slog.Logger) func() {
	if cfg.OTLPEndpoint == "" {
		return func() {}
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(), // local collector, no TLS
	)
	if err != nil {
		logger.Warn("creating OTLP exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("OTLP tracing enabled",
		"endpoint", cfg.OTLPEndpoint, "service", cfg.ServiceName)

	shutdown := tracing.TracerProvider().Shutdown

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}
