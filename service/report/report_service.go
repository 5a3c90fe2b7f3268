package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"mes.GO/core/errs"
	"mes.GO/core/events"
	"mes.GO/core/worktime"
	reportEntity "mes.GO/model/entity/report"
	workorderEntity "mes.GO/model/entity/workorder"
	reportRepo "mes.GO/model/repository/report"
	catalogService "mes.GO/service/catalog"
	workorderService "mes.GO/service/workorder"
)

// Options tune report validation.
type Options struct {
	NormalHours  float64 // hours before overtime starts
	SanityFactor int     // work+defect may not exceed SanityFactor × workorder quantity
}

func DefaultOptions() Options {
	return Options{NormalHours: 8, SanityFactor: 10}
}

// SubmitInput is a work report as entered on the floor or sent by a machine.
type SubmitInput struct {
	Kind           string          `json:"kind"`
	WorkOrderID    uint            `json:"work_order_id"`
	ProcessName    string          `json:"process_name"`
	Operator       string          `json:"operator"`
	Equipment      string          `json:"equipment"`
	Supervisor     string          `json:"supervisor"`
	WorkDate       datatypes.Date  `json:"work_date"`
	StartTime      datatypes.Time  `json:"start_time"`
	EndTime        datatypes.Time  `json:"end_time"`
	HasBreak       bool            `json:"has_break"`
	BreakStartTime *datatypes.Time `json:"break_start_time,omitempty"`
	BreakEndTime   *datatypes.Time `json:"break_end_time,omitempty"`
	BreakHours     float64         `json:"break_hours"`
	WorkQuantity   int             `json:"work_quantity"`
	DefectQuantity int             `json:"defect_quantity"`
	IsCompleted    bool            `json:"is_completed"`
	Remarks        string          `json:"remarks"`
	AbnormalNotes  string          `json:"abnormal_notes"`
	CreatedBy      string          `json:"created_by"`
}

// CorrectInput patches a pending report. Nil fields are left alone.
type CorrectInput struct {
	WorkQuantity   *int            `json:"work_quantity,omitempty"`
	DefectQuantity *int            `json:"defect_quantity,omitempty"`
	StartTime      *datatypes.Time `json:"start_time,omitempty"`
	EndTime        *datatypes.Time `json:"end_time,omitempty"`
	HasBreak       *bool           `json:"has_break,omitempty"`
	BreakStartTime *datatypes.Time `json:"break_start_time,omitempty"`
	BreakEndTime   *datatypes.Time `json:"break_end_time,omitempty"`
	BreakHours     *float64        `json:"break_hours,omitempty"`
	Remarks        *string         `json:"remarks,omitempty"`
}

type Service struct {
	db         *gorm.DB
	repo       *reportRepo.ReportRepository
	workorders *workorderService.Service
	catalog    *catalogService.Service
	bus        *events.Bus
	opts       Options
	log        *zap.Logger
	now        func() time.Time
}

func NewService(db *gorm.DB, catalog *catalogService.Service, workorders *workorderService.Service, bus *events.Bus, opts Options, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.NormalHours <= 0 {
		opts.NormalHours = DefaultOptions().NormalHours
	}
	if opts.SanityFactor <= 0 {
		opts.SanityFactor = DefaultOptions().SanityFactor
	}
	return &Service{
		db:         db,
		repo:       reportRepo.NewReportRepository(db),
		workorders: workorders,
		catalog:    catalog,
		bus:        bus,
		opts:       opts,
		log:        log,
		now:        time.Now,
	}
}

func (s *Service) Get(ctx context.Context, id uint) (*reportEntity.Report, error) {
	rep, err := reportRepo.NewReportRepository(s.db.WithContext(ctx)).FindByID(id)
	if err != nil {
		return nil, notFound(err, id)
	}
	return rep, nil
}

// Submit validates and stores a pending report.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*reportEntity.Report, error) {
	rep := &reportEntity.Report{
		Kind:           in.Kind,
		WorkOrderID:    in.WorkOrderID,
		ProcessName:    strings.TrimSpace(in.ProcessName),
		Operator:       strings.TrimSpace(in.Operator),
		Equipment:      strings.TrimSpace(in.Equipment),
		Supervisor:     strings.TrimSpace(in.Supervisor),
		WorkDate:       in.WorkDate,
		StartTime:      in.StartTime,
		EndTime:        in.EndTime,
		HasBreak:       in.HasBreak,
		BreakStartTime: in.BreakStartTime,
		BreakEndTime:   in.BreakEndTime,
		BreakHours:     in.BreakHours,
		WorkQuantity:   in.WorkQuantity,
		DefectQuantity: in.DefectQuantity,
		IsCompleted:    in.IsCompleted,
		ApprovalStatus: reportEntity.StatusPending,
		Remarks:        in.Remarks,
		AbnormalNotes:  in.AbnormalNotes,
		CreatedBy:      in.CreatedBy,
	}
	if err := checkKind(rep); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wo, err := s.workorders.WithTx(tx).Repo().FindByID(rep.WorkOrderID)
		if err != nil {
			return notFoundWO(err, rep.WorkOrderID)
		}
		proc, err := s.catalog.WithTx(tx).ResolveProcess(rep.ProcessName)
		if err != nil {
			return err
		}
		rep.ProcessID = proc.ID
		if err := s.validate(rep, wo); err != nil {
			return err
		}
		return s.repo.WithTx(tx).Create(rep)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("report submitted",
		zap.Uint("report_id", rep.ID),
		zap.String("kind", rep.Kind),
		zap.Uint("workorder_id", rep.WorkOrderID),
		zap.String("process", rep.ProcessName),
		zap.Float64("work_hours", rep.WorkHours))
	return rep, nil
}

// checkKind enforces the per-kind required fields.
func checkKind(rep *reportEntity.Report) error {
	switch rep.Kind {
	case reportEntity.KindOperator:
		if rep.Operator == "" {
			return fmt.Errorf("operator report needs an operator: %w", errs.ErrInvariantViolation)
		}
	case reportEntity.KindSMT:
		if rep.Equipment == "" {
			return fmt.Errorf("SMT report needs equipment: %w", errs.ErrInvariantViolation)
		}
		rep.Operator = reportEntity.SMTOperator
	case reportEntity.KindSupervisor:
		if rep.Supervisor == "" {
			return fmt.Errorf("supervisor report needs a supervisor: %w", errs.ErrInvariantViolation)
		}
	default:
		return fmt.Errorf("unknown report kind %q: %w", rep.Kind, errs.ErrInvariantViolation)
	}
	if rep.ProcessName == "" {
		return fmt.Errorf("process is required: %w", errs.ErrInvariantViolation)
	}
	return nil
}

// validate checks row invariants and fills break, work and overtime hours.
func (s *Service) validate(rep *reportEntity.Report, wo *workorderEntity.WorkOrder) error {
	if time.Time(rep.WorkDate).IsZero() {
		return fmt.Errorf("work date is required: %w", errs.ErrInvariantViolation)
	}
	if rep.StartTime == rep.EndTime {
		return fmt.Errorf("start and end time are equal: %w", errs.ErrInvariantViolation)
	}
	if rep.WorkQuantity < 0 || rep.DefectQuantity < 0 {
		return fmt.Errorf("quantities must not be negative: %w", errs.ErrInvariantViolation)
	}
	if limit := s.opts.SanityFactor * wo.Quantity; rep.WorkQuantity+rep.DefectQuantity > limit {
		return fmt.Errorf("work+defect %d exceeds %d (x%d workorder quantity): %w",
			rep.WorkQuantity+rep.DefectQuantity, limit, s.opts.SanityFactor, errs.ErrInvariantViolation)
	}

	span := worktime.Span(rep.StartTime, rep.EndTime)
	if rep.HasBreak {
		if rep.BreakStartTime == nil || rep.BreakEndTime == nil {
			return fmt.Errorf("break window required when has_break: %w", errs.ErrInvariantViolation)
		}
		if !worktime.BreakWithin(rep.StartTime, rep.EndTime, *rep.BreakStartTime, *rep.BreakEndTime) {
			return fmt.Errorf("break %s-%s outside shift %s-%s: %w",
				rep.BreakStartTime, rep.BreakEndTime, rep.StartTime, rep.EndTime, errs.ErrInvariantViolation)
		}
		brk := worktime.Offset(rep.StartTime, *rep.BreakEndTime) - worktime.Offset(rep.StartTime, *rep.BreakStartTime)
		rep.BreakHours = worktime.Hours(brk)
	} else {
		rep.BreakStartTime, rep.BreakEndTime = nil, nil
	}
	if rep.BreakHours < 0 {
		return fmt.Errorf("break hours %.2f negative: %w", rep.BreakHours, errs.ErrInvariantViolation)
	}

	net := worktime.Round2(span.Hours() - rep.BreakHours)
	if net < 0 {
		return fmt.Errorf("break %.2fh longer than shift %.2fh: %w", rep.BreakHours, span.Hours(), errs.ErrInvariantViolation)
	}
	rep.WorkHours = net
	rep.OvertimeHours = 0
	if net > s.opts.NormalHours {
		rep.OvertimeHours = worktime.Round2(net - s.opts.NormalHours)
	}
	return nil
}

// Approve moves a pending report to approved and emits ReportApproved after commit.
func (s *Service) Approve(ctx context.Context, id uint, by string) (*reportEntity.Report, error) {
	var rep *reportEntity.Report
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		rep, err = repo.FindByIDForUpdate(id)
		if err != nil {
			return notFound(err, id)
		}
		if rep.ApprovalStatus != reportEntity.StatusPending {
			return fmt.Errorf("report %d is %s: %w", id, rep.ApprovalStatus, errs.ErrIllegalTransition)
		}
		now := s.now()
		rep.ApprovalStatus = reportEntity.StatusApproved
		rep.ApprovedBy = by
		rep.ApprovedAt = &now
		if err := repo.Save(rep); err != nil {
			return err
		}
		return s.afterQuantityChange(tx, rep, true)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("report approved", zap.Uint("report_id", id), zap.String("by", by))
	if err := s.bus.Publish(ctx, events.ReportApproved{ReportID: rep.ID, WorkOrderID: rep.WorkOrderID, ApprovedBy: by}); err != nil {
		s.log.Warn("report approved handlers failed", zap.Uint("report_id", id), zap.Error(err))
	}
	return rep, nil
}

// Reject closes a pending report.
func (s *Service) Reject(ctx context.Context, id uint, by, reason string) (*reportEntity.Report, error) {
	var rep *reportEntity.Report
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		rep, err = repo.FindByIDForUpdate(id)
		if err != nil {
			return notFound(err, id)
		}
		if rep.ApprovalStatus != reportEntity.StatusPending {
			return fmt.Errorf("report %d is %s: %w", id, rep.ApprovalStatus, errs.ErrIllegalTransition)
		}
		now := s.now()
		rep.ApprovalStatus = reportEntity.StatusRejected
		rep.RejectedBy = by
		rep.RejectedAt = &now
		rep.RejectionReason = reason
		return repo.Save(rep)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("report rejected", zap.Uint("report_id", id), zap.String("by", by), zap.String("reason", reason))
	return rep, nil
}

// CancelApprove returns an approved report to pending and clears its allocation.
func (s *Service) CancelApprove(ctx context.Context, id uint, by string) (*reportEntity.Report, error) {
	var rep *reportEntity.Report
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		rep, err = repo.FindByIDForUpdate(id)
		if err != nil {
			return notFound(err, id)
		}
		if rep.ApprovalStatus != reportEntity.StatusApproved {
			return fmt.Errorf("report %d is %s: %w", id, rep.ApprovalStatus, errs.ErrIllegalTransition)
		}
		rep.ApprovalStatus = reportEntity.StatusPending
		rep.ApprovedBy = ""
		rep.ApprovedAt = nil
		rep.AllocatedQty = 0
		rep.AllocationNotes = ""
		rep.Remarks = appendNote(rep.Remarks, fmt.Sprintf("approval cancelled by %s at %s", by, s.now().Format("2006-01-02 15:04:05")))
		if err := repo.Save(rep); err != nil {
			return err
		}
		return s.afterQuantityChange(tx, rep, false)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("report approval cancelled", zap.Uint("report_id", id), zap.String("by", by))
	if err := s.bus.Publish(ctx, events.ReportApprovalCancelled{ReportID: rep.ID, WorkOrderID: rep.WorkOrderID, CancelledBy: by}); err != nil {
		s.log.Warn("approval cancelled handlers failed", zap.Uint("report_id", id), zap.Error(err))
	}
	return rep, nil
}

// Correct edits a pending report and re-validates it. Approved reports are immutable.
func (s *Service) Correct(ctx context.Context, id uint, in CorrectInput) (*reportEntity.Report, error) {
	var rep *reportEntity.Report
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		rep, err = repo.FindByIDForUpdate(id)
		if err != nil {
			return notFound(err, id)
		}
		if rep.ApprovalStatus != reportEntity.StatusPending {
			return fmt.Errorf("report %d is %s and cannot be corrected: %w", id, rep.ApprovalStatus, errs.ErrIllegalTransition)
		}
		applyCorrection(rep, in)
		wo, err := s.workorders.WithTx(tx).Repo().FindByID(rep.WorkOrderID)
		if err != nil {
			return notFoundWO(err, rep.WorkOrderID)
		}
		if err := s.validate(rep, wo); err != nil {
			return err
		}
		return repo.Save(rep)
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}

func applyCorrection(rep *reportEntity.Report, in CorrectInput) {
	if in.WorkQuantity != nil {
		rep.WorkQuantity = *in.WorkQuantity
	}
	if in.DefectQuantity != nil {
		rep.DefectQuantity = *in.DefectQuantity
	}
	if in.StartTime != nil {
		rep.StartTime = *in.StartTime
	}
	if in.EndTime != nil {
		rep.EndTime = *in.EndTime
	}
	if in.HasBreak != nil {
		rep.HasBreak = *in.HasBreak
	}
	if in.BreakStartTime != nil {
		rep.BreakStartTime = in.BreakStartTime
	}
	if in.BreakEndTime != nil {
		rep.BreakEndTime = in.BreakEndTime
	}
	if in.BreakHours != nil {
		rep.BreakHours = *in.BreakHours
	}
	if in.Remarks != nil {
		rep.Remarks = *in.Remarks
	}
}

// afterQuantityChange recomputes the process completed quantity from approved reports
// and starts a pending work order on its first approval.
func (s *Service) afterQuantityChange(tx *gorm.DB, rep *reportEntity.Report, approved bool) error {
	wos := s.workorders.WithTx(tx)
	woRepo := wos.Repo()
	total, err := s.repo.WithTx(tx).SumApprovedQuantity(rep.WorkOrderID, rep.ProcessName)
	if err != nil {
		return err
	}
	procs, err := woRepo.ListProcesses(rep.WorkOrderID)
	if err != nil {
		return err
	}
	for i := range procs {
		p := &procs[i]
		if p.ProcessName != rep.ProcessName {
			continue
		}
		fields := map[string]interface{}{"completed_quantity": total}
		switch {
		case total > 0 && p.Status == workorderEntity.StatusPending:
			now := s.now()
			fields["status"] = workorderEntity.StatusInProgress
			fields["actual_start_time"] = &now
		case total == 0 && p.Status == workorderEntity.StatusInProgress:
			fields["status"] = workorderEntity.StatusPending
		}
		if err := woRepo.UpdateProcess(p, fields); err != nil {
			return err
		}
		// only the first step carrying this process name holds the count
		break
	}

	if !approved {
		return nil
	}
	wo, err := woRepo.FindByIDForUpdate(rep.WorkOrderID)
	if err != nil {
		return notFoundWO(err, rep.WorkOrderID)
	}
	if wo.Status == workorderEntity.StatusPending {
		return wos.ApplyTransition(wo, workorderEntity.StatusInProgress, "report approval")
	}
	return nil
}

func appendNote(notes, line string) string {
	if notes == "" {
		return line
	}
	return notes + "\n" + line
}

func notFound(err error, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("report %d: %w", id, errs.ErrNotFound)
	}
	return err
}

func notFoundWO(err error, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("workorder %d: %w", id, errs.ErrNotFound)
	}
	return err
}
