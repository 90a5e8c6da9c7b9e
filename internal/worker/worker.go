// Package worker builds a short-lived reconciliation context per run and
// drives scheduled runs.
package worker

import (
	"context"
	"time"

	"github.com/jpillora/backoff"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/support-tools/fortisync/internal/app"
	"github.com/support-tools/fortisync/internal/calendar"
	"github.com/support-tools/fortisync/internal/expiry"
	"github.com/support-tools/fortisync/internal/inventory"
	"github.com/support-tools/fortisync/internal/metrics"
	"github.com/support-tools/fortisync/internal/model"
	"github.com/support-tools/fortisync/internal/reconcile"
	"github.com/support-tools/fortisync/internal/version"
)

var (
	// retryAttempts bounds how often a failed scheduled run is retried
	// before waiting out the next cron tick.
	retryAttempts = 3

	retryWaitMin = 30 * time.Second
	retryWaitMax = 5 * time.Minute

	ErrRunPrecondition = errors.New("reconciliation run precondition failed")
)

// newSource builds the asset source for one run.
func newSource(a *app.App) inventory.Source {
	snapshot := inventory.NewSnapshotSource(a.Config.SnapshotFile, a.Logger)

	return inventory.NewRefreshingSource(
		inventory.NewFortiCareClient(a.Config.FortiCare, a.Logger),
		snapshot,
		a.Logger,
	)
}

// ExpiringDevices performs the filter half of a run: refresh/read assets and
// return the devices inside the configured day-range window. No calendar
// calls are made.
func ExpiringDevices(ctx context.Context, a *app.App) ([]*model.ExpiringDevice, error) {
	assets, err := newSource(a).Assets(ctx)
	if err != nil {
		return nil, err
	}

	filter := expiry.NewFilter(a.Config.FilterDaysMin, a.Config.FilterDaysMax, a.Logger)

	return filter.FindExpiring(assets), nil
}

// RunOnce performs one full reconciliation run with a freshly constructed
// collaborator set. Precondition failures surface before any calendar write.
func RunOnce(ctx context.Context, a *app.App) (model.SyncResult, error) {
	if !a.Config.ZohoConfigured() {
		return model.SyncResult{}, errors.Wrap(ErrRunPrecondition, "zoho configuration incomplete")
	}

	zoho := calendar.NewZohoClient(a.Config.Zoho, a.Config.EventTemplate(), a.Logger)
	if !zoho.Authorized() {
		return model.SyncResult{}, errors.Wrap(ErrRunPrecondition, calendar.ErrNotAuthorized.Error())
	}

	started := time.Now()

	devices, err := ExpiringDevices(ctx, a)
	if err != nil {
		metrics.SyncRunCounter.WithLabelValues("failed").Inc()
		return model.SyncResult{}, err
	}

	a.Logger.WithFields(logrus.Fields{
		"devices": len(devices),
		"minDays": a.Config.FilterDaysMin,
		"maxDays": a.Config.FilterDaysMax,
	}).Info("expiring firewalls found")

	r := reconcile.New(zoho, a.Config.TechnicianRoster(), a.Config.EventTemplate(), a.Logger)
	result := r.Sync(ctx, devices)

	metrics.SyncRunCounter.WithLabelValues("success").Inc()
	metrics.SyncRunTimeSummary.WithLabelValues("success").Observe(time.Since(started).Seconds())

	a.Logger.WithFields(logrus.Fields{
		"runID":   result.RunID.String(),
		"found":   result.DevicesFound,
		"created": result.EventsCreated,
		"skipped": result.EventsSkipped,
		"failed":  result.EventsFailed,
	}).Info("reconciliation run complete")

	return result, nil
}

// Run starts the cron scheduled reconciliation loop and blocks until the
// context is canceled. At most one run is in flight at a time.
func Run(ctx context.Context, a *app.App) error {
	v := version.Current()
	a.Logger.WithFields(
		logrus.Fields{
			"version":  v.AppVersion,
			"commit":   v.GitCommit,
			"branch":   v.GitBranch,
			"schedule": a.Config.SyncSchedule,
		},
	).Info("fortisync worker running")

	c := cron.New(
		cron.WithChain(
			cron.SkipIfStillRunning(cron.PrintfLogger(a.Logger)),
			cron.Recover(cron.PrintfLogger(a.Logger)),
		),
	)

	_, err := c.AddFunc(a.Config.SyncSchedule, func() {
		runWithRetry(ctx, a.Logger, func(ctx context.Context) error {
			_, err := RunOnce(ctx, a)
			return err
		})
	})
	if err != nil {
		return errors.Wrap(app.ErrConfig, "sync_schedule: "+err.Error())
	}

	c.Start()

	<-ctx.Done()

	// let an in-flight run finish
	stopCtx := c.Stop()
	<-stopCtx.Done()

	a.Logger.Info("fortisync worker stopped")

	return nil
}

// runWithRetry retries a failed run a bounded number of times with
// exponential backoff, giving up until the next scheduled tick.
func runWithRetry(ctx context.Context, logger *logrus.Logger, run func(context.Context) error) {
	b := &backoff.Backoff{
		Min:    retryWaitMin,
		Max:    retryWaitMax,
		Factor: 2,
		Jitter: true,
	}

	for attempt := 1; attempt <= retryAttempts; attempt++ {
		err := run(ctx)
		if err == nil {
			return
		}

		logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"err":     err.Error(),
		}).Error("reconciliation run failed")

		if attempt == retryAttempts {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(b.Duration()):
		}
	}
}
