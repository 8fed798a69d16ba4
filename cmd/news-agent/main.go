// cmd/news-agent/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"news-agent/internal/aggregator"
	"news-agent/internal/cache"
	"news-agent/internal/common/config"
	"news-agent/internal/common/database"
	"news-agent/internal/common/logger"
	"news-agent/internal/common/observability"
	"news-agent/internal/composer"
	"news-agent/internal/intent"
	"news-agent/internal/llm"
	"news-agent/internal/providers"
	"news-agent/internal/server"
	"news-agent/internal/session"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting news agent...",
		zap.String("environment", cfg.App.Environment),
		zap.Int("port", cfg.Server.Port),
	)

	obs := observability.New("news-agent")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Session store and schema ---
	sessions := session.NewStore(pg.GetDB(), log)
	if err := sessions.EnsureSchema(ctx); err != nil {
		zapLog.Fatal("session schema setup failed", zap.Error(err))
	}

	// --- Providers (a missing key leaves the provider permanently failing,
	// which surfaces in the degraded flag) ---
	provs := []providers.Provider{
		providers.NewNewsAPI(cfg.Providers.NewsAPI, cfg.Aggregator.MaxArticles, log),
		providers.NewNYTimes(cfg.Providers.NYTimes, cfg.Aggregator.MaxArticles, log),
		providers.NewGuardian(cfg.Providers.Guardian, cfg.Aggregator.MaxArticles, log),
	}
	enabled := 0
	for _, p := range []bool{cfg.Providers.NewsAPI.Enabled(), cfg.Providers.NYTimes.Enabled(), cfg.Providers.Guardian.Enabled()} {
		if p {
			enabled++
		}
	}
	if enabled == 0 {
		zapLog.Warn("no provider API keys configured, every query will fail until one is set")
	}
	zapLog.Info("providers configured", zap.Int("total", len(provs)), zap.Int("withKeys", enabled))

	// --- Pipeline ---
	agg := aggregator.New(provs, cfg.Aggregator, log)
	articleCache := cache.New(rdb.GetClient(), log)
	llmClient := llm.NewClient(cfg.LanguageModel, log)
	if !llmClient.Enabled() {
		zapLog.Warn("language model key not configured, responses will use templated messages")
	}

	comp := composer.New(intent.NewResolver(), agg, articleCache, sessions, llmClient, log)
	srv := server.New(comp, sessions, obs, log)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	zapLog.Info("shutdown signal received", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http server shutdown failed", zap.Error(err))
	}

	zapLog.Info("news agent stopped")
}
