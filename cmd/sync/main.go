// Package main runs a one-shot backfill: fetch, decode and reconcile a
// page of factory transactions, print the counts and exit. Useful for
// seeding a fresh database or checking chain connectivity.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"stackspad/internal/chain"
	"stackspad/internal/config"
	"stackspad/internal/ingest"
	"stackspad/internal/reconcile"
	"stackspad/internal/storage/migrations"
	pgstore "stackspad/internal/storage/postgres"
)

func main() {
	pageLimit := flag.Int("limit", 0, "transactions to fetch per contract (default from config)")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline")
	flag.Parse()

	logger := log.New(os.Stdout, "[sync] ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if cfg.PostgresDSN == "" {
		logger.Fatal("POSTGRES_DSN is required; a one-shot sync into memory would be discarded")
	}
	limit := cfg.TxPageLimit
	if *pageLimit > 0 {
		limit = *pageLimit
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("run migrations: %v", err)
	}

	reconciler := reconcile.New(reconcile.Options{
		TokenStore:    pgstore.NewTokenStore(pool),
		TradeStore:    pgstore.NewTradeStore(pool),
		ActivityStore: pgstore.NewActivityStore(pool),
		Logger:        logger,
	})

	runner := ingest.NewRunner(ingest.RunnerOptions{
		Client:     chain.NewHTTPClient(cfg.ChainAPIBase),
		Reconciler: reconciler,
		Contracts:  cfg.WatchedContracts(),
		PageLimit:  limit,
		Logger:     logger,
	})

	counts, err := runner.SyncOnce(ctx)
	logger.Printf("fetched=%d decoded=%d applied=%d duplicates=%d rejected=%d errors=%d",
		counts.Fetched, counts.Decoded, counts.Applied, counts.Duplicates, counts.Rejected, counts.Errors)
	if err != nil {
		logger.Fatalf("sync: %v", err)
	}
}
