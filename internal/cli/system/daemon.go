package system

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/julianstephens/tickup/internal/cli"
	apperrors "github.com/julianstephens/tickup/internal/errors"
	"github.com/julianstephens/tickup/internal/logger"
)

// DaemonCmd delivers due alerts and periodically reconciles them with the task source.
// SIGHUP forces an immediate reconcile.
type DaemonCmd struct {
	Once     bool          `help:"Reconcile, deliver anything due, and exit."`
	Interval time.Duration `help:"Reconcile interval (overrides config)."`
}

func (cmd *DaemonCmd) Run(ctx *cli.Context) error {
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	interval := ctx.Config.ReconcileInterval
	if cmd.Interval > 0 {
		interval = cmd.Interval
	}

	if err := ctx.Scheduler.Sync(); err != nil {
		return fmt.Errorf("failed to load scheduled alerts: %w", err)
	}
	reconcile(runCtx, ctx)

	if cmd.Once {
		delivered, err := ctx.Scheduler.RunDue(runCtx)
		fmt.Printf("Delivered %d alert(s)\n", delivered)
		return err
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	logger.Info("Daemon started", "interval", interval, "sink", sinkName(ctx))

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return ctx.Scheduler.Start(gctx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
			case <-hup:
				logger.Info("Reconcile requested")
			}
			reconcile(gctx, ctx)
		}
	})

	err := g.Wait()
	logger.Info("Daemon stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// reconcile runs one pass, picking up preference and index changes made by other processes first.
func reconcile(ctx context.Context, app *cli.Context) {
	if err := app.Engine.Load(); err != nil {
		logger.Error("Failed to load reminder state", "error", err)
		return
	}

	report, err := app.Reconcile(ctx)
	if err != nil {
		logger.Error("Reconcile failed", "error", err)
		return
	}
	denied := 0
	for _, f := range report.Failures {
		if apperrors.IsPermissionDenied(f) {
			denied++
			continue
		}
		logger.Warn("Alert not updated", "error", f)
	}
	if denied > 0 {
		logger.Warn("Notifications not authorized, alerts left unscheduled", "count", denied, "sink", sinkName(app))
	}
	if report.Changed() {
		logger.Info("Reconciled alerts", "scheduled", report.Scheduled, "canceled", report.Canceled)
		app.Scheduler.Notify()
	} else {
		logger.Debug("Alerts up to date")
	}
}

func sinkName(ctx *cli.Context) string {
	if ctx.Sink == nil {
		return "none"
	}
	return ctx.Sink.Name()
}
