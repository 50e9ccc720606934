package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RichardoC/threadchat/internal/api"
	"github.com/RichardoC/threadchat/internal/config"
	"github.com/RichardoC/threadchat/internal/db"
	"github.com/RichardoC/threadchat/internal/llm"
	"github.com/RichardoC/threadchat/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	store, err := openStore(cfg)
	if err != nil {
		logger.Fatal("failed to initialize store",
			zap.Error(err),
			zap.String("driver", cfg.StoreDriver),
			zap.String("dbPath", cfg.SQLitePath))
	}

	completer, err := llm.NewOpenAI(
		cfg.OpenAIBaseURL,
		cfg.OpenAIAPIKey,
		cfg.OpenAIModel,
		llm.GenerationParams{MaxTokens: cfg.MaxTokens, Temperature: cfg.Temperature},
	)
	if err != nil {
		logger.Fatal("failed to initialize LLM client", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	chat := llm.New(store, completer, logger,
		llm.WithProviderTimeout(cfg.ProviderTimeout),
		llm.WithMetrics(metrics.NewExchange(reg)),
	)

	handler := api.NewHandler(store, chat, logger)
	router := api.NewRouter(handler, logger, api.RouterConfig{
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		WebDir:  cfg.WebDir,
	})

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	done := make(chan error, 1)
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		done <- multierr.Combine(server.Shutdown(ctx), store.Close())
	}()

	logger.Info("starting server",
		zap.String("addr", server.Addr),
		zap.String("model", cfg.OpenAIModel),
		zap.String("store", cfg.StoreDriver))

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("failed to start server", zap.Error(err))
	}
	if err := <-done; err != nil {
		logger.Error("unclean shutdown", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	zcfg := zap.NewProductionConfig()
	if cfg.IsDevelopment() {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

func openStore(cfg *config.Config) (db.Store, error) {
	if cfg.StoreDriver == config.DriverSQLite {
		s, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return db.NewMemory(), nil
}
