// Package ingest runs the poll side of chain synchronization: fetch
// recent contract transactions, decode them, and hand the events to
// the reconciler. The webhook receiver covers the low-latency path;
// this loop is the safety net that catches anything the webhook missed.
package ingest

import (
	"context"
	"log"
	"time"

	"stackspad/internal/chain"
	"stackspad/internal/decode"
	"stackspad/internal/observability"
	"stackspad/internal/reconcile"
)

// Runner polls the chain API on an interval and reconciles what it finds.
type Runner struct {
	client     chain.Client
	reconciler *reconcile.Reconciler
	contracts  []string
	interval   time.Duration
	warmup     time.Duration
	pageLimit  int
	logger     *log.Logger
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Client     chain.Client
	Reconciler *reconcile.Reconciler
	Contracts  []string // contract principals to poll, e.g. the factory
	Interval   time.Duration
	Warmup     time.Duration // delay before the first cycle
	PageLimit  int
	Logger     *log.Logger
}

// Default runner configuration.
const (
	DefaultInterval  = 30 * time.Second
	DefaultWarmup    = 5 * time.Second
	DefaultPageLimit = 50
)

// NewRunner creates a poll sync runner.
func NewRunner(opts RunnerOptions) *Runner {
	interval := opts.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	warmup := opts.Warmup
	if warmup == 0 {
		warmup = DefaultWarmup
	}
	pageLimit := opts.PageLimit
	if pageLimit == 0 {
		pageLimit = DefaultPageLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		client:     opts.Client,
		reconciler: opts.Reconciler,
		contracts:  opts.Contracts,
		interval:   interval,
		warmup:     warmup,
		pageLimit:  pageLimit,
		logger:     logger,
	}
}

// Counts summarizes one sync cycle.
type Counts struct {
	Fetched    int
	Decoded    int
	Applied    int
	Duplicates int
	Rejected   int
	Errors     int
}

// Run polls until the context is cancelled. The first cycle waits for
// the warmup delay so the rest of the process can finish starting.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Printf("starting poll sync, interval=%s contracts=%d", r.interval, len(r.contracts))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(r.warmup):
	}

	if c := r.cycle(ctx); c.Applied > 0 {
		r.logger.Printf("initial sync applied %d events", c.Applied)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Println("poll sync stopped")
			return ctx.Err()
		case <-ticker.C:
			r.cycle(ctx)
		}
	}
}

func (r *Runner) cycle(ctx context.Context) Counts {
	start := time.Now()
	counts, err := r.SyncOnce(ctx)
	status := "ok"
	if err != nil {
		status = "error"
		r.logger.Printf("sync cycle failed: %v", err)
	}
	observability.RecordSyncCycle(status, time.Since(start))

	if counts.Applied > 0 || counts.Rejected > 0 || counts.Errors > 0 {
		r.logger.Printf("sync cycle: fetched=%d decoded=%d applied=%d duplicates=%d rejected=%d errors=%d",
			counts.Fetched, counts.Decoded, counts.Applied, counts.Duplicates, counts.Rejected, counts.Errors)
	}
	return counts
}

// SyncOnce runs a single fetch-decode-reconcile pass over every watched
// contract. The API returns newest first; events are applied oldest
// first so a register lands before the trades that follow it. Per-event
// failures are counted, not fatal, and the next cycle retries them.
func (r *Runner) SyncOnce(ctx context.Context) (Counts, error) {
	var counts Counts
	var firstErr error

	for _, contract := range r.contracts {
		txs, err := r.client.GetContractTransactions(ctx, contract, r.pageLimit)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			counts.Errors++
			continue
		}
		counts.Fetched += len(txs)
		observability.RecordTransactionsFetched(len(txs))

		for i := len(txs) - 1; i >= 0; i-- {
			ev, ok := decode.Decode(&txs[i])
			if !ok {
				continue
			}
			counts.Decoded++
			observability.RecordEventDecoded(string(ev.Type))

			outcome, err := r.reconciler.Apply(ctx, ev)
			if err != nil {
				counts.Errors++
				r.logger.Printf("apply %s (%s): %v", ev.TxID, ev.Type, err)
				continue
			}
			switch outcome {
			case reconcile.OutcomeApplied:
				counts.Applied++
			case reconcile.OutcomeDuplicate:
				counts.Duplicates++
			case reconcile.OutcomeRejected:
				counts.Rejected++
			}
		}
	}

	return counts, firstErr
}
