// Package main wires together the insight service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/siteiq/siteiq/internal/api"
	"github.com/siteiq/siteiq/internal/clock/system"
	"github.com/siteiq/siteiq/internal/config"
	collyfetcher "github.com/siteiq/siteiq/internal/fetcher/colly"
	"github.com/siteiq/siteiq/internal/fingerprint"
	"github.com/siteiq/siteiq/internal/id/uuid"
	"github.com/siteiq/siteiq/internal/insight"
	"github.com/siteiq/siteiq/internal/logging"
	"github.com/siteiq/siteiq/internal/metrics"
	"github.com/siteiq/siteiq/internal/notify"
	"github.com/siteiq/siteiq/internal/notify/sinks"
	openaioracle "github.com/siteiq/siteiq/internal/oracle/openai"
	"github.com/siteiq/siteiq/internal/orchestrator"
	memorystore "github.com/siteiq/siteiq/internal/store/memory"
	postgresstore "github.com/siteiq/siteiq/internal/store/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := system.New()
	idGen := uuid.New()

	var store insight.ConversationStore
	var closeStore func()
	if cfg.DB.DSN != "" {
		pgStore, err := postgresstore.New(ctx, postgresstore.Config{
			DSN:      cfg.DB.DSN,
			MaxConns: cfg.DB.MaxConns,
			MinConns: cfg.DB.MinConns,
		}, idGen, clock)
		if err != nil {
			logger.Fatal("postgres store init failed", zap.Error(err))
		}
		store = pgStore
		closeStore = pgStore.Close
	} else {
		logger.Warn("db.dsn not set, conversations are kept in memory")
		store = memorystore.New(idGen, clock)
		closeStore = func() {}
	}

	promSink, err := sinks.NewPrometheusSink(nil)
	if err != nil {
		logger.Fatal("prometheus sink init failed", zap.Error(err))
	}
	refreshSink := sinks.NewRefreshSink()
	hub := notify.NewHub(
		notify.Config{Logger: logger.Named("notify")},
		sinks.NewLogSink(logger.Named("turns")),
		promSink,
		refreshSink,
	)

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Fetcher.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	})
	oracle := openaioracle.New(openaioracle.Config{
		APIKey:      cfg.Oracle.APIKey,
		BaseURL:     cfg.Oracle.BaseURL,
		Model:       cfg.Oracle.Model,
		MaxTokens:   cfg.Oracle.MaxTokens,
		Temperature: float32(cfg.Oracle.Temperature),
	})
	orch := orchestrator.New(
		fetcher,
		fingerprint.New(),
		oracle,
		store,
		clock,
		hub,
		logger.Named("orchestrator"),
	)

	apiServer := api.NewServer(orch, store, refreshSink, cfg, logger.Named("api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	hub.Close(shutdownCtx)
	closeStore()
	logger.Info("shutdown complete")
}
