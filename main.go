package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"transcriptSummarize/config"
	"transcriptSummarize/core"
	"transcriptSummarize/processors"
	"transcriptSummarize/server"
	"transcriptSummarize/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	log := newLogger(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	ctx := context.Background()

	cache := newResultCache(ctx, cfg, log)

	oa := newOpenAIClient(cfg)
	store := storage.NewSummaryStore(ctx, storage.Options{
		Backend:          cfg.StoreBackend,
		PostgresURL:      cfg.PostgresURL,
		MilvusAddr:       cfg.MilvusAddr,
		MilvusCollection: cfg.MilvusCollection,
		EmbeddingModel:   cfg.EmbeddingModel,
	}, oa, log)
	defer store.Close(ctx)

	retry := processors.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.MaxRetries

	summarizer := processors.NewSummarizer(processors.SummarizerConfig{
		Provider:    cfg.Provider,
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.ChatModel,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     cfg.Timeout(),
	}, cache, retry, log)

	chunker := processors.NewChunker(cfg.MaxCharsPerChunk, cfg.MaxChunks, log)
	merger := processors.NewMergeEngine(cfg.DedupSimilarityThreshold, summarizer, log)
	orchestrator := processors.NewItemOrchestrator(chunker, summarizer, merger, store, cfg.ChunkConcurrency, log)
	batch := processors.NewBatchProcessor(orchestrator, cfg.ConcurrencyLimit, log)

	jobs := core.NewJobManager(cfg.JobRetention(), log)
	defer jobs.Shutdown()

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.NewServer(batch, jobs, store, log).Routes(),
	}

	shutdownCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-shutdownCtx.Done()
	log.Info("shutting down")

	drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		log.WithError(err).Warn("forced shutdown")
	}
}

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

// newResultCache selects the cache backend. Redis failures at startup degrade
// to the in-process cache instead of refusing to boot.
func newResultCache(ctx context.Context, cfg *config.Config, log *logrus.Logger) core.ResultCache {
	if cfg.CacheBackend == "redis" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.WithError(err).Warn("redis unreachable, using in-memory result cache")
		} else {
			log.WithField("addr", cfg.RedisAddr).Info("using redis result cache")
			return storage.NewRedisResultCache(rdb, cfg.CacheTTL(), log)
		}
	}
	return core.NewMemoryCache(cfg.CacheTTL(), cfg.CacheCapacity)
}

func newOpenAIClient(cfg *config.Config) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientConfig)
}
