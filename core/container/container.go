// Package container builds the service graph once and wires event subscriptions.
package container

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"mes.GO/config"
	"mes.GO/core/events"
	"mes.GO/core/lock"
	"mes.GO/core/metrics"
	allocationService "mes.GO/service/allocation"
	catalogService "mes.GO/service/catalog"
	completionService "mes.GO/service/completion"
	erpService "mes.GO/service/erp"
	maintenanceService "mes.GO/service/maintenance"
	reportService "mes.GO/service/report"
	reportingService "mes.GO/service/reporting"
	workorderService "mes.GO/service/workorder"
)

// Container holds every service the API, CLI and scheduler use.
type Container struct {
	DB     *gorm.DB
	Config *config.Config
	Log    *zap.Logger
	Bus    *events.Bus
	Locker lock.Locker

	Catalog     *catalogService.Service
	WorkOrders  *workorderService.Service
	Reports     *reportService.Service
	Completion  *completionService.Service
	Allocation  *allocationService.Service
	Reporting   *reportingService.Service
	ERP         *erpService.Service
	Maintenance *maintenanceService.Service
}

// Options overrides collaborators, mostly for tests.
type Options struct {
	Redis     *redis.Client
	ERPSource erpService.Source
}

// New wires the services over db. Subscriptions run in this order on approval:
// metrics, completion detection (which drives allocation), on-approve rollup.
func New(db *gorm.DB, cfg *config.Config, log *zap.Logger, opts Options) *Container {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = zap.NewNop()
	}
	bus := events.NewBus()
	locker := lock.New(opts.Redis, db)

	catalog := catalogService.NewService(db)
	workorders := workorderService.NewService(db, catalog, log.Named("workorder"))
	c := &Container{
		DB:         db,
		Config:     cfg,
		Log:        log,
		Bus:        bus,
		Locker:     locker,
		Catalog:    catalog,
		WorkOrders: workorders,
		Reports: reportService.NewService(db, catalog, workorders, bus, reportService.Options{
			NormalHours:  cfg.Report.NormalHours,
			SanityFactor: cfg.Report.SanityFactor,
		}, log.Named("report")),
		Completion: completionService.NewService(db, workorders, bus, completionService.Options{
			PackagingKeyword: cfg.Completion.PackagingKeyword,
		}, log.Named("completion")),
		Allocation: allocationService.NewService(db, bus, log.Named("allocation")),
		Reporting: reportingService.NewService(db, locker, reportingService.Options{
			DefaultWindowDays: cfg.Sync.DefaultWindowDays,
			OnApprove:         cfg.Sync.OnApprove,
			StaleRunMinutes:   cfg.Sync.StaleRunMinutes,
		}, log.Named("reporting")),
		ERP: erpService.NewService(db, opts.ERPSource, workorders, locker, log.Named("erp")),
		Maintenance: maintenanceService.NewService(db, maintenanceService.Options{
			Dir:              cfg.Backup.Dir,
			Command:          cfg.Backup.Command,
			Args:             cfg.Backup.Args,
			RetentionDays:    cfg.Backup.RetentionDays,
			LogRetentionDays: cfg.Retention.LogDays,
		}, log.Named("maintenance")),
	}

	metrics.Subscribe(bus)
	c.Completion.Subscribe(bus)
	c.Allocation.Subscribe(bus)
	c.Reporting.Subscribe(bus)
	return c
}
