package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dgallion1/ndachunk/internal/api"
	"github.com/dgallion1/ndachunk/internal/chunker"
	"github.com/dgallion1/ndachunk/internal/config"
	"github.com/dgallion1/ndachunk/internal/extract"
	"github.com/dgallion1/ndachunk/internal/metrics"
	"github.com/dgallion1/ndachunk/internal/pipeline"
	"github.com/dgallion1/ndachunk/internal/store"
	"github.com/dgallion1/ndachunk/internal/structure"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.New(reg)

	// Initialize clients.
	llm := newProvider(cfg)
	sink, err := newSink(ctx, cfg)
	if err != nil {
		log.Error("store init failed", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}

	var fallback extract.HeadingExtractor
	if llm != nil {
		fallback = llm
	}
	detector := structure.NewDetector(fallback, log,
		structure.WithFallbackPrefix(cfg.FallbackPrefixChars),
		structure.WithFallbackTimeout(cfg.FallbackTimeout),
		structure.WithFallbackObserver(rec.ObserveFallback),
	)

	counter := chunker.NewCounter(cfg.TokenizerEncoding)
	if cfg.PrewarmTokenizer {
		go func() {
			if err := counter.Init(ctx); err != nil {
				log.Warn("tokenizer prewarm failed, using estimates until next attempt", "error", err)
				return
			}
			log.Info("tokenizer ready", "encoding", cfg.TokenizerEncoding)
		}()
	}

	lc := chunker.NewLegalChunker(detector, counter,
		chunker.WithLogger(log),
		chunker.WithOptions(chunker.ChunkOptions{
			MaxTokens:      cfg.ChunkMaxTokens,
			TargetTokens:   cfg.ChunkTargetTokens,
			OverlapTokens:  cfg.ChunkOverlapTokens,
			MinChunkTokens: cfg.ChunkMinTokens,
		}),
		chunker.WithQuality(chunker.QualityConfig{
			CharsPerPage:     cfg.QualityCharsPerPage,
			MinChunksPerPage: cfg.QualityMinChunksPerPage,
			MinSections:      cfg.QualityMinSections,
			MinCoverage:      cfg.QualityMinCoverage,
		}),
	)

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(pipeline.Config{
		WorkerCount:  cfg.WorkerCount,
		MaxQueueSize: cfg.MaxQueueSize,
		JobTTL:       cfg.JobTTL,
	}, lc, sink, log, rec)
	orch.Start(ctx)

	// Initialize HTTP server.
	opts := []api.Option{api.WithMetrics(rec, reg)}
	if llm != nil {
		opts = append(opts, api.WithLLM(llm))
	}
	srv := api.NewServer(orch, lc, log, cfg, opts...)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", "error", err)
		}

		orch.Stop()
		if llm != nil {
			llm.Close()
		}
		if sink != nil {
			sink.Close()
		}
	}()

	log.Info("starting ndachunk",
		"port", cfg.Port,
		"llm_provider", cfg.LLMProvider,
		"store_backend", cfg.StoreBackend,
	)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

// newProvider returns the configured fallback model, or nil for none.
func newProvider(cfg config.Config) extract.Provider {
	switch cfg.LLMProvider {
	case config.ProviderAnthropic:
		return extract.NewClaudeClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	case config.ProviderOllama:
		return extract.NewOllamaClient(cfg.OllamaModel)
	}
	return nil
}

// newSink returns the configured persistence backend, or nil for none.
func newSink(ctx context.Context, cfg config.Config) (store.Sink, error) {
	switch cfg.StoreBackend {
	case config.StorePathstore:
		return store.NewPathstore(cfg.PathstoreURL, cfg.PathstoreAPIKey, cfg.MaxConcurrentStore), nil
	case config.StorePostgres:
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := pg.Initialize(ctx); err != nil {
			pg.Close()
			return nil, fmt.Errorf("initialize schema: %w", err)
		}
		return pg, nil
	case config.StoreMemory:
		return store.NewMemory(), nil
	}
	return nil, nil
}
