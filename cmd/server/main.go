// Package main runs the launchpad sync service: the poll sync loop, the
// Chainhook webhook receiver and the query API in one process.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stackspad/internal/api"
	"stackspad/internal/chain"
	"stackspad/internal/config"
	"stackspad/internal/ingest"
	"stackspad/internal/reconcile"
	"stackspad/internal/storage"
	"stackspad/internal/storage/memory"
	"stackspad/internal/storage/migrations"
	pgstore "stackspad/internal/storage/postgres"
	"stackspad/internal/webhook"
)

// stores bundles the three projection stores.
type stores struct {
	tokens   storage.TokenStore
	trades   storage.TradeStore
	activity storage.ActivityStore
	kind     string
}

func main() {
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, cleanup, err := createStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("create stores: %v", err)
	}
	defer cleanup()

	logger.Printf("network=%s factory=%s curve=%s storage=%s chainhook_secret=%s",
		cfg.Network, cfg.FactoryContract(), cfg.CurveContract(), st.kind, cfg.MaskedChainhookSecret())

	reconciler := reconcile.New(reconcile.Options{
		TokenStore:    st.tokens,
		TradeStore:    st.trades,
		ActivityStore: st.activity,
		Logger:        log.New(os.Stdout, "[reconcile] ", log.LstdFlags),
	})

	client := chain.NewHTTPClient(cfg.ChainAPIBase)
	runner := ingest.NewRunner(ingest.RunnerOptions{
		Client:     client,
		Reconciler: reconciler,
		Contracts:  cfg.WatchedContracts(),
		Interval:   cfg.SyncInterval,
		Warmup:     cfg.SyncWarmup,
		PageLimit:  cfg.TxPageLimit,
		Logger:     log.New(os.Stdout, "[sync] ", log.LstdFlags),
	})

	hook := webhook.NewHandler(webhook.HandlerOptions{
		Secret:     cfg.ChainhookSecret,
		Reconciler: reconciler,
		Logger:     log.New(os.Stdout, "[webhook] ", log.LstdFlags),
	})

	router := api.SetupRouter(api.RouterDeps{
		Tokens:   st.tokens,
		Trades:   st.trades,
		Activity: st.activity,
		Runner:   runner,
		Webhook:  hook,
		Cfg:      cfg,
		Storage:  st.kind,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	// Handle shutdown signals; a second signal or a 30s stall forces exit.
	done := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("received signal %v, shutting down", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Printf("http shutdown: %v", err)
		}

		select {
		case sig := <-sigCh:
			logger.Printf("received second signal %v, forcing exit", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	go func() {
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("poll sync: %v", err)
		}
	}()

	logger.Printf("listening on :%d", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("http server: %v", err)
	}

	close(done)
	logger.Println("shutdown complete")
}

// createStores selects PostgreSQL when a DSN is configured and the
// in-memory stores otherwise.
func createStores(ctx context.Context, cfg *config.Config, logger *log.Logger) (*stores, func(), error) {
	if cfg.PostgresDSN == "" {
		logger.Println("no POSTGRES_DSN, using in-memory stores")
		tokens := memory.NewTokenStore()
		return &stores{
			tokens:   tokens,
			trades:   memory.NewTradeStore(tokens),
			activity: memory.NewActivityStore(),
			kind:     "memory",
		}, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}

	return &stores{
		tokens:   pgstore.NewTokenStore(pool),
		trades:   pgstore.NewTradeStore(pool),
		activity: pgstore.NewActivityStore(pool),
		kind:     "postgres",
	}, pool.Close, nil
}
