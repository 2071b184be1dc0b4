// Package janitor schedules the orphan sweep: after a thread is destroyed a
// crash can leave message rows, index entries or pair entries behind, and
// the sweep removes them on a cron cadence.
package janitor

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"dialogd/pkg/config"
	"dialogd/pkg/logger"
	"dialogd/pkg/store"
	"dialogd/pkg/telemetry"
)

// RunImmediate triggers a single sweep with the given dry-run setting.
func RunImmediate(dryRun bool) (int, error) {
	if !store.Ready() {
		return 0, fmt.Errorf("store not open")
	}
	return runOnce(dryRun)
}

// Start starts the sweep scheduler if enabled. Returns a cancel func.
func Start(ctx context.Context, cfg config.JanitorConfig) (context.CancelFunc, error) {
	if !cfg.Enabled {
		logger.Info("janitor_disabled")
		return func() {}, nil
	}

	// map empty cron to default daily @03:00
	cronExpr := cfg.Cron
	if cronExpr == "" {
		cronExpr = "0 3 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("janitor_invalid_cron", "cron", cfg.Cron)
		return nil, fmt.Errorf("invalid janitor cron expression: %s", cfg.Cron)
	}

	logger.Info("janitor_enabled", "cron", cronExpr, "dry_run", cfg.DryRun)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cronExpr, cfg.DryRun)
	return cancel, nil
}

// runScheduler uses gronx to compute the next tick for the configured cron
// expression and sleeps until that time, supporting full cron syntax.
func runScheduler(ctx context.Context, cronExpr string, dryRun bool) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("janitor_scheduler_stopping")
			return
		default:
		}

		// compute next tick after now (UTC). allowCurrent=false so we get the
		// next future tick.
		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("janitor_nexttick_failed", "cron", cronExpr, "error", err)
			// fallback sleep then retry
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				logger.Info("janitor_scheduler_stopping")
				return
			}
			continue
		}

		wait := time.Until(next)
		if wait <= 0 {
			// due now-ish; run immediately then avoid a tight loop
			if _, err := runOnce(dryRun); err != nil {
				logger.Error("janitor_run_error", "error", err)
			}
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				logger.Info("janitor_scheduler_stopping")
				return
			}
			continue
		}

		select {
		case <-time.After(wait):
			if _, err := runOnce(dryRun); err != nil {
				logger.Error("janitor_run_error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("janitor_scheduler_stopping")
			return
		}
	}
}

func runOnce(dryRun bool) (int, error) {
	start := time.Now()
	n, err := store.SweepOrphans(dryRun)
	if err != nil {
		return 0, err
	}
	if !dryRun {
		telemetry.JanitorRemoved.Add(float64(n))
	}
	logger.Info("janitor_sweep_done", "removed", n, "dry_run", dryRun, "elapsed", time.Since(start).String())
	return n, nil
}
