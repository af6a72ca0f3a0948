// Package sweep runs the scheduled moderation sweep: it rescans the
// violation ledger on a cron schedule, refreshes the active-ban gauge and
// logs users whose ban window has lapsed. It never deletes ledger records;
// violation history is permanent.
package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"github.com/lenslink/messaging/pkg/logger"
	"github.com/lenslink/messaging/pkg/metrics"
	"github.com/lenslink/messaging/pkg/store"
)

// Start launches the sweep scheduler when enabled. Returns a cancel func.
func Start(ctx context.Context, enabled bool, cronExpr string) (context.CancelFunc, error) {
	if !enabled {
		logger.Info("sweep_disabled")
		return func() {}, nil
	}
	if cronExpr == "" {
		cronExpr = "0 2 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("sweep_invalid_cron", "cron", cronExpr)
		return nil, fmt.Errorf("invalid sweep cron expression: %s", cronExpr)
	}
	logger.Info("sweep_enabled", "cron", cronExpr)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cronExpr)
	return cancel, nil
}

// runScheduler computes the next cron tick with gronx and sleeps until it.
func runScheduler(ctx context.Context, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("sweep_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("sweep_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			if err := RunOnce(); err != nil {
				logger.Error("sweep_run_error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("sweep_scheduler_stopping")
			return
		}
	}
}

// RunOnce executes a single sweep pass. Exported so tests and admin
// triggers can invoke it outside the schedule.
func RunOnce() error {
	recs, err := store.ListViolations()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	active := 0
	lapsed := 0
	for _, rec := range recs {
		switch {
		case rec.BanUntil.After(now):
			active++
		case !rec.BanUntil.IsZero():
			lapsed++
		}
	}
	metrics.ActiveBans.Set(float64(active))
	logger.Info("sweep_complete", "records", len(recs), "active_bans", active, "lapsed_bans", lapsed)
	return nil
}
