// Package reporting materializes approved reports into the daily rollup tables
// and records every run in sync_logs.
package reporting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"mes.GO/core/errs"
	"mes.GO/core/events"
	"mes.GO/core/lock"
	"mes.GO/core/worktime"
	reportEntity "mes.GO/model/entity/report"
	reportingEntity "mes.GO/model/entity/reporting"
	systemEntity "mes.GO/model/entity/system"
	workorderEntity "mes.GO/model/entity/workorder"
	reportRepo "mes.GO/model/repository/report"
	reportingRepo "mes.GO/model/repository/reporting"
	systemRepo "mes.GO/model/repository/system"
	workorderRepo "mes.GO/model/repository/workorder"
)

const (
	dataSourceSuffix  = "_report"
	calculationMethod = "approved_report_sum"
	createdBy         = "report-sync"
	lockTTL           = 2 * time.Hour
)

type Options struct {
	DefaultWindowDays int
	OnApprove         bool
	StaleRunMinutes   int
}

// Service runs the work-time and work-order materializers.
type Service struct {
	db     *gorm.DB
	locker lock.Locker
	opts   Options
	log    *zap.Logger
	now    func() time.Time
}

func NewService(db *gorm.DB, locker lock.Locker, opts Options, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if locker == nil {
		locker = lock.NewDBLocker(db)
	}
	if opts.DefaultWindowDays <= 0 {
		opts.DefaultWindowDays = 7
	}
	if opts.StaleRunMinutes <= 0 {
		opts.StaleRunMinutes = 120
	}
	return &Service{db: db, locker: locker, opts: opts, log: log, now: time.Now}
}

// Subscribe materializes a report's work-time row as soon as it is approved
// when on-approve sync is enabled.
func (s *Service) Subscribe(bus *events.Bus) {
	if !s.opts.OnApprove {
		return
	}
	bus.Subscribe(events.TopicReportApproved, func(ctx context.Context, ev events.Event) error {
		_, err := s.SyncReport(ctx, ev.(events.ReportApproved).ReportID)
		return err
	})
	bus.Subscribe(events.TopicReportApprovalCancelled, func(ctx context.Context, ev events.Event) error {
		return s.ResyncReportDay(ctx, ev.(events.ReportApprovalCancelled).ReportID)
	})
}

// AutoWindow returns the default window: days calendar days ending today.
func (s *Service) AutoWindow(now time.Time) (datatypes.Date, datatypes.Date) {
	return AutoWindow(now, s.opts.DefaultWindowDays)
}

func AutoWindow(now time.Time, days int) (datatypes.Date, datatypes.Date) {
	if days <= 0 {
		days = 7
	}
	to := worktime.DateOf(now)
	from := datatypes.Date(time.Time(to).AddDate(0, 0, -(days - 1)))
	return from, to
}

// counts are the per-run tallies copied onto the SyncLog. Removed rows are
// reported as updates.
type counts struct {
	processed, created, updated, removed int
}

func (c *counts) add(o counts) {
	c.processed += o.processed
	c.created += o.created
	c.updated += o.updated
	c.removed += o.removed
}

// SyncWorkTime materializes approved reports dated in [from, to] into report_work_time.
func (s *Service) SyncWorkTime(ctx context.Context, from, to datatypes.Date) (*systemEntity.SyncLog, error) {
	return s.run(ctx, systemEntity.SyncTypeWorkTime, from, to, s.syncWorkTime)
}

// SyncWorkOrder materializes per-work-order summaries for [from, to] into report_work_order_product.
func (s *Service) SyncWorkOrder(ctx context.Context, from, to datatypes.Date) (*systemEntity.SyncLog, error) {
	return s.run(ctx, systemEntity.SyncTypeWorkOrder, from, to, s.syncWorkOrder)
}

// SyncAll runs both materializers under the report-sync lock. Without force a
// recent run still marked running makes it fail with ErrSyncAlreadyRunning.
func (s *Service) SyncAll(ctx context.Context, from, to datatypes.Date, force bool) (*systemEntity.SyncLog, error) {
	release, err := s.locker.TryLock(ctx, lock.KeyReportSync, lockTTL)
	if errors.Is(err, lock.ErrHeld) {
		return nil, fmt.Errorf("report sync: %w", errs.ErrSyncAlreadyRunning)
	}
	if err != nil {
		return nil, err
	}
	defer release()

	if !force {
		since := s.now().Add(-time.Duration(s.opts.StaleRunMinutes) * time.Minute)
		running, err := systemRepo.NewSystemRepository(s.db.WithContext(ctx)).HasRunningSync(systemEntity.SyncTypeAll, since)
		if err != nil {
			return nil, err
		}
		if running {
			return nil, fmt.Errorf("report sync: %w", errs.ErrSyncAlreadyRunning)
		}
	}

	return s.run(ctx, systemEntity.SyncTypeAll, from, to, func(ctx context.Context, from, to datatypes.Date) (counts, error) {
		total, err := s.syncWorkTime(ctx, from, to)
		if err != nil {
			return total, err
		}
		wo, err := s.syncWorkOrder(ctx, from, to)
		total.add(wo)
		return total, err
	})
}

// run wraps one materializer call with its SyncLog row.
func (s *Service) run(ctx context.Context, syncType string, from, to datatypes.Date, fn func(context.Context, datatypes.Date, datatypes.Date) (counts, error)) (*systemEntity.SyncLog, error) {
	if time.Time(from).After(time.Time(to)) {
		return nil, fmt.Errorf("sync window %s..%s: %w", worktime.DayKey(from), worktime.DayKey(to), errs.ErrInvariantViolation)
	}
	sys := systemRepo.NewSystemRepository(s.db.WithContext(ctx))
	entry := &systemEntity.SyncLog{
		RunID:       uuid.NewString(),
		SyncType:    syncType,
		PeriodStart: from,
		PeriodEnd:   to,
		Status:      systemEntity.SyncRunning,
		StartedAt:   s.now(),
	}
	if err := sys.CreateSyncLog(entry); err != nil {
		return nil, err
	}

	c, runErr := fn(ctx, from, to)

	finished := s.now()
	entry.CompletedAt = &finished
	entry.DurationSeconds = finished.Sub(entry.StartedAt).Seconds()
	entry.RecordsProcessed = c.processed
	entry.RecordsCreated = c.created
	entry.RecordsUpdated = c.updated + c.removed
	switch {
	case runErr == nil:
		entry.Status = systemEntity.SyncSuccess
	case c.processed > 0 || errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
		entry.Status = systemEntity.SyncPartial
		entry.ErrorMessage = runErr.Error()
	default:
		entry.Status = systemEntity.SyncFailed
		entry.ErrorMessage = runErr.Error()
	}
	// the run's context may already be cancelled; the closing row must still land
	if err := systemRepo.NewSystemRepository(s.db).SaveSyncLog(entry); err != nil {
		s.log.Error("close sync log", zap.String("run_id", entry.RunID), zap.Error(err))
	}

	fields := []zap.Field{
		zap.String("sync_type", syncType),
		zap.String("run_id", entry.RunID),
		zap.String("from", worktime.DayKey(from)),
		zap.String("to", worktime.DayKey(to)),
		zap.String("status", entry.Status),
		zap.Int("processed", c.processed),
		zap.Int("created", c.created),
		zap.Int("updated", c.updated),
		zap.Int("removed", c.removed),
	}
	if runErr != nil {
		s.log.Warn("sync finished with errors", append(fields, zap.Error(runErr))...)
		return entry, runErr
	}
	s.log.Info("sync finished", fields...)
	return entry, nil
}

// loadApproved returns approved reports in range and their work orders.
func (s *Service) loadApproved(ctx context.Context, from, to datatypes.Date) ([]reportEntity.Report, map[uint]*workorderEntity.WorkOrder, error) {
	db := s.db.WithContext(ctx)
	reps, err := reportRepo.NewReportRepository(db).ListApprovedInRange(from, to)
	if err != nil {
		return nil, nil, err
	}
	seen := map[uint]bool{}
	var ids []uint
	for _, r := range reps {
		if !seen[r.WorkOrderID] {
			seen[r.WorkOrderID] = true
			ids = append(ids, r.WorkOrderID)
		}
	}
	wos, err := workorderRepo.NewWorkOrderRepository(db).FindByIDs(ids)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[uint]*workorderEntity.WorkOrder, len(wos))
	for i := range wos {
		byID[wos[i].ID] = &wos[i]
	}
	return reps, byID, nil
}

func workTimeKey(date datatypes.Date, worker, woNumber, process string, start, end datatypes.Time) string {
	return fmt.Sprintf("%s|%s|%s|%s|%d|%d", worktime.DayKey(date), worker, woNumber, process, int64(start), int64(end))
}

func rowKey(r *reportingEntity.WorkTimeRollup) string {
	return workTimeKey(r.ReportDate, r.WorkerName, r.WorkorderNumber, r.ProcessName, r.StartTime, r.EndTime)
}

// buildWorkTime aggregates reports into rollup rows keyed by natural key, in first-seen order.
func buildWorkTime(reps []reportEntity.Report, wos map[uint]*workorderEntity.WorkOrder) ([]string, map[string]*reportingEntity.WorkTimeRollup) {
	var order []string
	rows := map[string]*reportingEntity.WorkTimeRollup{}
	for _, r := range reps {
		wo, ok := wos[r.WorkOrderID]
		if !ok {
			continue
		}
		k := workTimeKey(r.WorkDate, r.WorkerName(), wo.OrderNumber, r.ProcessName, r.StartTime, r.EndTime)
		row, ok := rows[k]
		if !ok {
			row = &reportingEntity.WorkTimeRollup{
				ReportType:        reportingEntity.ReportTypeDaily,
				ReportDate:        r.WorkDate,
				WorkerName:        r.WorkerName(),
				WorkorderNumber:   wo.OrderNumber,
				ProcessName:       r.ProcessName,
				StartTime:         r.StartTime,
				EndTime:           r.EndTime,
				WorkerType:        r.Kind,
				ProductCode:       wo.ProductCode,
				DataSource:        r.Kind + dataSourceSuffix,
				CalculationMethod: calculationMethod,
				CreatedBy:         createdBy,
			}
			rows[k] = row
			order = append(order, k)
		}
		row.TotalWorkHours += r.WorkHours
		row.CompletedQuantity += r.WorkQuantity
		row.DefectQuantity += r.DefectQuantity
		row.AllocatedQuantity += r.AllocatedQty
		if r.AllocationNotes != "" && !strings.Contains(row.AllocationNotes, r.AllocationNotes) {
			if row.AllocationNotes != "" {
				row.AllocationNotes += "; "
			}
			row.AllocationNotes += r.AllocationNotes
		}
		row.ReportCount++
	}
	for _, row := range rows {
		row.TotalWorkHours = worktime.Round2(row.TotalWorkHours)
		row.YieldRate = worktime.Percent(float64(row.CompletedQuantity), float64(row.CompletedQuantity+row.DefectQuantity))
		row.EfficiencyRate = 0
		if row.TotalWorkHours > 0 {
			row.EfficiencyRate = worktime.Round2(float64(row.CompletedQuantity) / row.TotalWorkHours)
		}
	}
	return order, rows
}

func sameWorkTime(a, b *reportingEntity.WorkTimeRollup) bool {
	return a.WorkerType == b.WorkerType &&
		a.ProductCode == b.ProductCode &&
		worktime.Round2(a.TotalWorkHours) == worktime.Round2(b.TotalWorkHours) &&
		a.CompletedQuantity == b.CompletedQuantity &&
		a.DefectQuantity == b.DefectQuantity &&
		worktime.Round2(a.YieldRate) == worktime.Round2(b.YieldRate) &&
		worktime.Round2(a.EfficiencyRate) == worktime.Round2(b.EfficiencyRate) &&
		a.AllocatedQuantity == b.AllocatedQuantity &&
		a.AllocationNotes == b.AllocationNotes &&
		a.ReportCount == b.ReportCount &&
		a.DataSource == b.DataSource &&
		a.CalculationMethod == b.CalculationMethod
}

func (s *Service) syncWorkTime(ctx context.Context, from, to datatypes.Date) (counts, error) {
	var c counts
	reps, wos, err := s.loadApproved(ctx, from, to)
	if err != nil {
		return c, err
	}
	order, rows := buildWorkTime(reps, wos)

	existing, err := reportingRepo.NewReportingRepository(s.db.WithContext(ctx)).ListWorkTime(from, to)
	if err != nil {
		return c, err
	}
	current := make(map[string]*reportingEntity.WorkTimeRollup, len(existing))
	for i := range existing {
		current[rowKey(&existing[i])] = &existing[i]
	}

	// one transaction per work order
	chunks := map[string][]string{}
	var woOrder []string
	for _, k := range order {
		n := rows[k].WorkorderNumber
		if _, ok := chunks[n]; !ok {
			woOrder = append(woOrder, n)
		}
		chunks[n] = append(chunks[n], k)
	}
	for _, n := range woOrder {
		if err := ctx.Err(); err != nil {
			return c, err
		}
		var chunk counts
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			repo := reportingRepo.NewReportingRepository(tx)
			for _, k := range chunks[n] {
				want := rows[k]
				chunk.processed++
				have, ok := current[k]
				switch {
				case !ok:
					if err := repo.CreateWorkTime(want); err != nil {
						return errs.FromDB(err)
					}
					chunk.created++
				case sameWorkTime(have, want):
				default:
					want.ID = have.ID
					want.CreatedAt = have.CreatedAt
					if err := repo.SaveWorkTime(want); err != nil {
						return err
					}
					chunk.updated++
				}
			}
			return nil
		})
		if err != nil {
			return c, fmt.Errorf("workorder %s: %w", n, err)
		}
		c.add(chunk)
	}

	// rows whose reports were withdrawn since the last run
	var stale []uint
	for k, have := range current {
		if _, ok := rows[k]; !ok {
			stale = append(stale, have.ID)
		}
	}
	n, err := reportingRepo.NewReportingRepository(s.db.WithContext(ctx)).DeleteWorkTime(stale)
	c.removed += int(n)
	return c, err
}

// ResyncReportDay rebuilds the work-time rows of the day a report is dated,
// dropping rows it no longer backs. No sync log is written.
func (s *Service) ResyncReportDay(ctx context.Context, reportID uint) error {
	rep, err := reportRepo.NewReportRepository(s.db.WithContext(ctx)).FindByID(reportID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("report %d: %w", reportID, errs.ErrNotFound)
	}
	if err != nil {
		return err
	}
	_, err = s.syncWorkTime(ctx, rep.WorkDate, rep.WorkDate)
	return err
}

// SyncReport materializes the work-time row one approved report belongs to.
func (s *Service) SyncReport(ctx context.Context, reportID uint) (*reportingEntity.WorkTimeRollup, error) {
	db := s.db.WithContext(ctx)
	rep, err := reportRepo.NewReportRepository(db).FindByID(reportID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("report %d: %w", reportID, errs.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if rep.ApprovalStatus != reportEntity.StatusApproved {
		return nil, nil
	}
	// rebuild the whole day so rows shared by several reports stay complete
	reps, wos, err := s.loadApproved(ctx, rep.WorkDate, rep.WorkDate)
	if err != nil {
		return nil, err
	}
	wo, ok := wos[rep.WorkOrderID]
	if !ok {
		return nil, fmt.Errorf("workorder %d: %w", rep.WorkOrderID, errs.ErrNotFound)
	}
	_, rows := buildWorkTime(reps, wos)
	want := rows[workTimeKey(rep.WorkDate, rep.WorkerName(), wo.OrderNumber, rep.ProcessName, rep.StartTime, rep.EndTime)]

	err = db.Transaction(func(tx *gorm.DB) error {
		repo := reportingRepo.NewReportingRepository(tx)
		existing, err := repo.ListWorkTime(rep.WorkDate, rep.WorkDate)
		if err != nil {
			return err
		}
		for i := range existing {
			if rowKey(&existing[i]) != rowKey(want) {
				continue
			}
			if sameWorkTime(&existing[i], want) {
				*want = existing[i]
				return nil
			}
			want.ID = existing[i].ID
			want.CreatedAt = existing[i].CreatedAt
			return repo.SaveWorkTime(want)
		}
		return errs.FromDB(repo.CreateWorkTime(want))
	})
	if err != nil {
		return nil, err
	}
	return want, nil
}

// workOrderAgg accumulates one work order's approved output in the window.
type workOrderAgg struct {
	wo        *workorderEntity.WorkOrder
	completed int
	defect    int
	hours     float64
	count     int
	people    map[string]bool
	equipment map[string]bool
	firstDate time.Time
	lastDate  time.Time
}

func buildWorkOrder(from datatypes.Date, reps []reportEntity.Report, wos map[uint]*workorderEntity.WorkOrder) []*reportingEntity.WorkOrderProductRollup {
	aggs := map[uint]*workOrderAgg{}
	var ids []uint
	for _, r := range reps {
		wo, ok := wos[r.WorkOrderID]
		if !ok {
			continue
		}
		a, ok := aggs[wo.ID]
		if !ok {
			a = &workOrderAgg{wo: wo, people: map[string]bool{}, equipment: map[string]bool{}}
			aggs[wo.ID] = a
			ids = append(ids, wo.ID)
		}
		a.completed += r.WorkQuantity
		a.defect += r.DefectQuantity
		a.hours += r.WorkHours
		a.count++
		switch r.Kind {
		case reportEntity.KindSupervisor:
			if r.Supervisor != "" {
				a.people[r.Supervisor] = true
			}
		case reportEntity.KindOperator:
			if r.Operator != "" {
				a.people[r.Operator] = true
			}
		}
		if r.Equipment != "" {
			a.equipment[r.Equipment] = true
		}
		d := time.Time(r.WorkDate)
		if a.firstDate.IsZero() || d.Before(a.firstDate) {
			a.firstDate = d
		}
		if d.After(a.lastDate) {
			a.lastDate = d
		}
	}

	out := make([]*reportingEntity.WorkOrderProductRollup, 0, len(ids))
	for _, id := range ids {
		a := aggs[id]
		start, end := datatypes.Date(a.firstDate), datatypes.Date(a.lastDate)
		yield := worktime.Percent(float64(a.completed), float64(a.completed+a.defect))
		out = append(out, &reportingEntity.WorkOrderProductRollup{
			ReportType:        reportingEntity.ReportTypeDaily,
			ReportDate:        from,
			WorkorderNumber:   a.wo.OrderNumber,
			CompanyCode:       a.wo.CompanyCode,
			ProductCode:       a.wo.ProductCode,
			PlannedQuantity:   a.wo.Quantity,
			CompletedQuantity: a.completed,
			DefectQuantity:    a.defect,
			CompletionRate:    worktime.Percent(float64(a.completed), float64(a.wo.Quantity)),
			YieldRate:         yield,
			QualityScore:      yield,
			TotalWorkHours:    worktime.Round2(a.hours),
			ReportCount:       a.count,
			AssignedOperators: joinSorted(a.people),
			AssignedEquipment: joinSorted(a.equipment),
			PlannedStartDate:  a.wo.PlannedStartDate,
			PlannedEndDate:    a.wo.PlannedEndDate,
			ActualStartDate:   &start,
			ActualEndDate:     &end,
		})
	}
	return out
}

func joinSorted(set map[string]bool) string {
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func sameDate(a, b *datatypes.Date) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return worktime.DayKey(*a) == worktime.DayKey(*b)
}

func sameWorkOrder(a, b *reportingEntity.WorkOrderProductRollup) bool {
	return a.CompanyCode == b.CompanyCode &&
		a.ProductCode == b.ProductCode &&
		a.PlannedQuantity == b.PlannedQuantity &&
		a.CompletedQuantity == b.CompletedQuantity &&
		a.DefectQuantity == b.DefectQuantity &&
		worktime.Round2(a.CompletionRate) == worktime.Round2(b.CompletionRate) &&
		worktime.Round2(a.YieldRate) == worktime.Round2(b.YieldRate) &&
		worktime.Round2(a.QualityScore) == worktime.Round2(b.QualityScore) &&
		worktime.Round2(a.TotalWorkHours) == worktime.Round2(b.TotalWorkHours) &&
		a.ReportCount == b.ReportCount &&
		a.AssignedOperators == b.AssignedOperators &&
		a.AssignedEquipment == b.AssignedEquipment &&
		sameDate(a.PlannedStartDate, b.PlannedStartDate) &&
		sameDate(a.PlannedEndDate, b.PlannedEndDate) &&
		sameDate(a.ActualStartDate, b.ActualStartDate) &&
		sameDate(a.ActualEndDate, b.ActualEndDate)
}

func (s *Service) syncWorkOrder(ctx context.Context, from, to datatypes.Date) (counts, error) {
	var c counts
	reps, wos, err := s.loadApproved(ctx, from, to)
	if err != nil {
		return c, err
	}
	rows := buildWorkOrder(from, reps, wos)
	existing, err := reportingRepo.NewReportingRepository(s.db.WithContext(ctx)).ListWorkOrderRollups(from, from)
	if err != nil {
		return c, err
	}
	current := make(map[string]*reportingEntity.WorkOrderProductRollup, len(existing))
	for i := range existing {
		current[existing[i].WorkorderNumber] = &existing[i]
	}

	for _, want := range rows {
		if err := ctx.Err(); err != nil {
			return c, err
		}
		var chunk counts
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			repo := reportingRepo.NewReportingRepository(tx)
			chunk.processed++
			have, ok := current[want.WorkorderNumber]
			switch {
			case !ok:
				if err := repo.CreateWorkOrder(want); err != nil {
					return errs.FromDB(err)
				}
				chunk.created++
			case sameWorkOrder(have, want):
			default:
				want.ID = have.ID
				want.CreatedAt = have.CreatedAt
				if err := repo.SaveWorkOrder(want); err != nil {
					return err
				}
				chunk.updated++
			}
			return nil
		})
		if err != nil {
			return c, fmt.Errorf("workorder %s: %w", want.WorkorderNumber, err)
		}
		c.add(chunk)
	}

	wanted := make(map[string]bool, len(rows))
	for _, want := range rows {
		wanted[want.WorkorderNumber] = true
	}
	var stale []uint
	for number, have := range current {
		if !wanted[number] {
			stale = append(stale, have.ID)
		}
	}
	n, err := reportingRepo.NewReportingRepository(s.db.WithContext(ctx)).DeleteWorkOrders(stale)
	c.removed += int(n)
	return c, err
}

// Logs returns recent sync runs, newest first.
func (s *Service) Logs(ctx context.Context, syncType string, limit int) ([]systemEntity.SyncLog, error) {
	return systemRepo.NewSystemRepository(s.db.WithContext(ctx)).ListSyncLogs(syncType, limit)
}

// WorkTimeRows returns work-time rollups dated in [from, to].
func (s *Service) WorkTimeRows(ctx context.Context, from, to datatypes.Date) ([]reportingEntity.WorkTimeRollup, error) {
	return reportingRepo.NewReportingRepository(s.db.WithContext(ctx)).ListWorkTime(from, to)
}

// WorkOrderRows returns work-order rollups dated in [from, to].
func (s *Service) WorkOrderRows(ctx context.Context, from, to datatypes.Date) ([]reportingEntity.WorkOrderProductRollup, error) {
	return reportingRepo.NewReportingRepository(s.db.WithContext(ctx)).ListWorkOrderRollups(from, to)
}
