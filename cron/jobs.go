package cron

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"mes.GO/config"
	"mes.GO/core/container"
	"mes.GO/core/errs"
)

// Built-in job names.
const (
	JobERPSync         = "erp_mo_sync"
	JobMOConvert       = "mo_convert"
	JobCompletionSweep = "completion_sweep"
	JobReportSync      = "report_sync"
	JobBackup          = "backup"
	JobLogCleanup      = "log_cleanup"
)

func init() {
	Register(JobERPSync, func(cfg *config.Config) Spec {
		return Every(cfg.Scheduler.ERPSyncIntervalMinutes)
	}, func(ctx context.Context, c *container.Container) error {
		_, err := c.ERP.SyncStagedMOs(ctx)
		return err
	})

	Register(JobMOConvert, func(cfg *config.Config) Spec {
		return Every(cfg.Scheduler.ConvertIntervalMinutes)
	}, func(ctx context.Context, c *container.Container) error {
		_, err := c.ERP.ConvertStagedMOs(ctx)
		if errors.Is(err, errs.ErrSyncAlreadyRunning) {
			c.Log.Info("mo convert skipped: another run holds the lock")
			return nil
		}
		return err
	})

	Register(JobCompletionSweep, func(cfg *config.Config) Spec {
		return Every(cfg.Scheduler.SweepIntervalMinutes)
	}, func(ctx context.Context, c *container.Container) error {
		_, err := c.Completion.Sweep(ctx)
		return err
	})

	Register(JobReportSync, func(cfg *config.Config) Spec {
		return DailyAt(cfg.Scheduler.ReportSyncTime)
	}, func(ctx context.Context, c *container.Container) error {
		from, to := c.Reporting.AutoWindow(time.Now())
		_, err := c.Reporting.SyncAll(ctx, from, to, false)
		return err
	})

	Register(JobBackup, func(cfg *config.Config) Spec {
		return DailyAt(cfg.Scheduler.BackupTime)
	}, func(ctx context.Context, c *container.Container) error {
		return c.Maintenance.Nightly(ctx)
	})

	Register(JobLogCleanup, func(cfg *config.Config) Spec {
		return DailyAt(cfg.Scheduler.CleanupTime)
	}, func(ctx context.Context, c *container.Container) error {
		res, err := c.Maintenance.CleanupLogs(ctx)
		if err == nil {
			c.Log.Debug("log cleanup", zap.Int64("operation_logs", res.OperationLogs), zap.Int64("sync_logs", res.SyncLogs))
		}
		return err
	})
}
