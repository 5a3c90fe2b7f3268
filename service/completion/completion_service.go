// Package completion decides when a work order is finished and reverses
// completions that no longer hold.
package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"mes.GO/core/errs"
	"mes.GO/core/events"
	reportEntity "mes.GO/model/entity/report"
	workorderEntity "mes.GO/model/entity/workorder"
	reportRepo "mes.GO/model/repository/report"
	workorderService "mes.GO/service/workorder"
)

// DefaultPackagingKeyword names the terminal packaging step.
const DefaultPackagingKeyword = "Shipping-Packaging"

// Evaluation reasons.
const (
	ReasonNoPackaging      = "no packaging step and no packaging reports"
	ReasonPackagingMet     = "packaging good count met"
	ReasonPackagingShort   = "packaging reports under target"
	ReasonTotalMet         = "total good count met"
	ReasonTotalShort       = "total good count under target"
	ReasonImportPreserved  = "historical import preserved"
	ReasonNoProcessesAudit = "no processes, completion preserved"
)

type Options struct {
	PackagingKeyword string
}

// Result is the outcome of evaluating one work order.
type Result struct {
	WorkOrderID   uint   `json:"workorder_id"`
	Complete      bool   `json:"complete"`
	Reason        string `json:"reason"`
	Quantity      int    `json:"quantity"`
	PackagingGood int    `json:"packaging_good"`
	TotalGood     int    `json:"total_good"`
	Status        string `json:"status"`
	Transitioned  bool   `json:"transitioned"`
}

type BatchResult struct {
	Checked     int      `json:"checked"`
	Transitions int      `json:"transitions"`
	Errors      []string `json:"errors,omitempty"`
}

type Service struct {
	db         *gorm.DB
	workorders *workorderService.Service
	bus        *events.Bus
	keyword    string
	log        *zap.Logger
}

func NewService(db *gorm.DB, workorders *workorderService.Service, bus *events.Bus, opts Options, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	kw := strings.TrimSpace(opts.PackagingKeyword)
	if kw == "" {
		kw = DefaultPackagingKeyword
	}
	return &Service{db: db, workorders: workorders, bus: bus, keyword: strings.ToLower(kw), log: log}
}

// Subscribe wires detection to approvals and audits to cancelled approvals.
func (s *Service) Subscribe(bus *events.Bus) {
	bus.Subscribe(events.TopicReportApproved, func(ctx context.Context, ev events.Event) error {
		_, err := s.Detect(ctx, ev.(events.ReportApproved).WorkOrderID)
		return err
	})
	bus.Subscribe(events.TopicReportApprovalCancelled, func(ctx context.Context, ev events.Event) error {
		_, err := s.AuditOne(ctx, ev.(events.ReportApprovalCancelled).WorkOrderID)
		return err
	})
}

// IsPackaging reports whether processName is the packaging step.
func (s *Service) IsPackaging(processName string) bool {
	return strings.Contains(strings.ToLower(processName), s.keyword)
}

// Evaluate applies the completion rule without changing anything.
func (s *Service) Evaluate(ctx context.Context, workOrderID uint) (*Result, error) {
	tx := s.db.WithContext(ctx)
	wo, err := s.workorders.WithTx(tx).Repo().FindByID(workOrderID)
	if err != nil {
		return nil, notFound(err, workOrderID)
	}
	return s.evaluate(tx, wo)
}

func (s *Service) evaluate(tx *gorm.DB, wo *workorderEntity.WorkOrder) (*Result, error) {
	procs, err := s.workorders.WithTx(tx).Repo().ListProcesses(wo.ID)
	if err != nil {
		return nil, err
	}
	reps, err := reportRepo.NewReportRepository(tx).ListApprovedByWorkOrder(wo.ID)
	if err != nil {
		return nil, err
	}
	return s.rule(wo, procs, reps), nil
}

// rule is the pure completion decision.
func (s *Service) rule(wo *workorderEntity.WorkOrder, procs []workorderEntity.WorkOrderProcess, reps []reportEntity.Report) *Result {
	res := &Result{WorkOrderID: wo.ID, Quantity: wo.Quantity, Status: wo.Status}

	hasStep := false
	for _, p := range procs {
		if s.IsPackaging(p.ProcessName) {
			hasStep = true
			break
		}
	}
	hasReports := false
	for _, r := range reps {
		res.TotalGood += r.WorkQuantity
		if s.IsPackaging(r.ProcessName) {
			hasReports = true
			res.PackagingGood += r.WorkQuantity
		}
	}

	switch {
	case !hasStep && !hasReports:
		res.Reason = ReasonNoPackaging
	case res.PackagingGood >= wo.Quantity:
		res.Complete, res.Reason = true, ReasonPackagingMet
	case hasStep:
		res.Reason = ReasonPackagingShort
	case res.TotalGood >= wo.Quantity:
		res.Complete, res.Reason = true, ReasonTotalMet
	case res.TotalGood == 0 && wo.Status == workorderEntity.StatusCompleted && wo.Source == workorderEntity.SourceImport:
		res.Complete, res.Reason = true, ReasonImportPreserved
	default:
		res.Reason = ReasonTotalShort
	}
	return res
}

// Detect locks the work order, evaluates it and completes it when the rule fires.
// WorkOrderCompleted is published inside the same transaction.
func (s *Service) Detect(ctx context.Context, workOrderID uint) (*Result, error) {
	var res *Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wos := s.workorders.WithTx(tx)
		wo, err := wos.Repo().FindByIDForUpdate(workOrderID)
		if err != nil {
			return notFound(err, workOrderID)
		}
		res, err = s.evaluate(tx, wo)
		if err != nil {
			return err
		}
		if !res.Complete || wo.Status == workorderEntity.StatusCompleted {
			return nil
		}
		if wo.Status == workorderEntity.StatusPending {
			if err := wos.ApplyTransition(wo, workorderEntity.StatusInProgress, "completion detector"); err != nil {
				return err
			}
		}
		if err := wos.ApplyTransition(wo, workorderEntity.StatusCompleted, "completion detector"); err != nil {
			return err
		}
		res.Status = wo.Status
		res.Transitioned = true
		s.log.Info("workorder completed",
			zap.Uint("workorder_id", wo.ID),
			zap.String("reason", res.Reason),
			zap.Int("packaging_good", res.PackagingGood),
			zap.Int("quantity", wo.Quantity))
		if err := s.bus.Publish(ctx, events.WorkOrderCompleted{WorkOrderID: wo.ID, Reason: res.Reason, Tx: tx}); err != nil {
			// allocation can be re-run; completion stands
			s.log.Warn("workorder completed handlers failed", zap.Uint("workorder_id", wo.ID), zap.Error(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Sweep runs Detect on every pending or in-progress work order.
func (s *Service) Sweep(ctx context.Context) (*BatchResult, error) {
	ids, err := s.workorders.WithTx(s.db.WithContext(ctx)).Repo().ListIDsByStatus(workorderEntity.StatusPending, workorderEntity.StatusInProgress)
	if err != nil {
		return nil, err
	}
	out := &BatchResult{}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		out.Checked++
		res, err := s.Detect(ctx, id)
		if err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("workorder %d: %v", id, err))
			continue
		}
		if res.Transitioned {
			out.Transitions++
		}
	}
	return out, nil
}

// Audit re-evaluates every completed work order and reopens those that no longer qualify.
func (s *Service) Audit(ctx context.Context) (*BatchResult, error) {
	ids, err := s.workorders.WithTx(s.db.WithContext(ctx)).Repo().ListIDsByStatus(workorderEntity.StatusCompleted)
	if err != nil {
		return nil, err
	}
	out := &BatchResult{}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		out.Checked++
		res, err := s.AuditOne(ctx, id)
		if err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("workorder %d: %v", id, err))
			continue
		}
		if res.Transitioned {
			out.Transitions++
		}
	}
	return out, nil
}

// AuditOne reopens a completed work order that fails the rule. Work orders with no
// processes keep their completion. Non-completed work orders are left alone.
func (s *Service) AuditOne(ctx context.Context, workOrderID uint) (*Result, error) {
	var res *Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wos := s.workorders.WithTx(tx)
		wo, err := wos.Repo().FindByIDForUpdate(workOrderID)
		if err != nil {
			return notFound(err, workOrderID)
		}
		procs, err := wos.Repo().ListProcesses(wo.ID)
		if err != nil {
			return err
		}
		reps, err := reportRepo.NewReportRepository(tx).ListApprovedByWorkOrder(wo.ID)
		if err != nil {
			return err
		}
		res = s.rule(wo, procs, reps)
		if wo.Status != workorderEntity.StatusCompleted || res.Complete {
			return nil
		}
		if len(procs) == 0 {
			res.Complete, res.Reason = true, ReasonNoProcessesAudit
			return nil
		}
		target := workorderEntity.StatusPending
		for _, p := range procs {
			if p.Status == workorderEntity.StatusInProgress {
				target = workorderEntity.StatusInProgress
				break
			}
		}
		if err := wos.Reopen(wo, target, "completion audit: "+res.Reason); err != nil {
			return err
		}
		res.Status = wo.Status
		res.Transitioned = true
		s.log.Info("workorder completion reversed",
			zap.Uint("workorder_id", wo.ID),
			zap.String("status", target),
			zap.String("reason", res.Reason))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func notFound(err error, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("workorder %d: %w", id, errs.ErrNotFound)
	}
	return err
}
