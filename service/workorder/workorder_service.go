package workorder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"mes.GO/core/errs"
	workorderEntity "mes.GO/model/entity/workorder"
	workorderRepo "mes.GO/model/repository/workorder"
	catalogService "mes.GO/service/catalog"
)

// DefaultHourlyOutput applies when no active capacity row exists.
const DefaultHourlyOutput = 1000

// Assignment sources recorded on process logs.
const (
	SourceMOConversion   = "MO conversion"
	SourceManualExpand   = "manual expansion"
	SourceStatusTransfer = "status transition"
)

// defaultSteps is used for products without a route.
var defaultSteps = []struct {
	Name   string
	Output int
}{
	{"SMT", 1000},
	{"Test", 500},
	{"Packaging", 200},
}

// allowed lists the legal work order transitions.
var allowed = map[string][]string{
	workorderEntity.StatusPending:    {workorderEntity.StatusInProgress},
	workorderEntity.StatusInProgress: {workorderEntity.StatusCompleted, workorderEntity.StatusPending},
}

// CanTransition reports whether from → to is a legal lifecycle step.
func CanTransition(from, to string) bool {
	for _, t := range allowed[from] {
		if t == to {
			return true
		}
	}
	return false
}

type CreateInput struct {
	CompanyCode      string          `json:"company_code"`
	OrderNumber      string          `json:"order_number"`
	ProductCode      string          `json:"product_code"`
	Quantity         int             `json:"quantity"`
	Source           string          `json:"source"`
	PlannedStartDate *datatypes.Date `json:"planned_start_date,omitempty"`
	PlannedEndDate   *datatypes.Date `json:"planned_end_date,omitempty"`
}

type Service struct {
	db      *gorm.DB
	repo    *workorderRepo.WorkOrderRepository
	catalog *catalogService.Service
	log     *zap.Logger
}

func NewService(db *gorm.DB, catalog *catalogService.Service, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, repo: workorderRepo.NewWorkOrderRepository(db), catalog: catalog, log: log}
}

// WithTx binds the service to an open transaction.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	return &Service{db: tx, repo: s.repo.WithTx(tx), catalog: s.catalog.WithTx(tx), log: s.log}
}

func (s *Service) Get(ctx context.Context, id uint) (*workorderEntity.WorkOrder, error) {
	wo, err := workorderRepo.NewWorkOrderRepository(s.db.WithContext(ctx)).FindByID(id)
	if err != nil {
		return nil, wrapNotFound(err, id)
	}
	return wo, nil
}

func (s *Service) ListProcesses(ctx context.Context, id uint) ([]workorderEntity.WorkOrderProcess, error) {
	return workorderRepo.NewWorkOrderRepository(s.db.WithContext(ctx)).ListProcesses(id)
}

// CreateWorkOrder inserts a pending work order. (company, order number) is unique.
func (s *Service) CreateWorkOrder(ctx context.Context, in CreateInput) (*workorderEntity.WorkOrder, error) {
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("workorder quantity %d must be positive: %w", in.Quantity, errs.ErrInvariantViolation)
	}
	if in.CompanyCode == "" || in.OrderNumber == "" || in.ProductCode == "" {
		return nil, fmt.Errorf("company, order number and product are required: %w", errs.ErrInvariantViolation)
	}
	if in.Source == "" {
		in.Source = workorderEntity.SourceManual
	}
	wo := &workorderEntity.WorkOrder{
		CompanyCode:      in.CompanyCode,
		OrderNumber:      in.OrderNumber,
		ProductCode:      in.ProductCode,
		Quantity:         in.Quantity,
		Status:           workorderEntity.StatusPending,
		Source:           in.Source,
		PlannedStartDate: in.PlannedStartDate,
		PlannedEndDate:   in.PlannedEndDate,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		exists, err := repo.Exists(in.CompanyCode, in.OrderNumber)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("workorder %s/%s: %w", in.CompanyCode, in.OrderNumber, errs.ErrDuplicateKey)
		}
		return errs.FromDB(repo.Create(wo))
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("workorder created",
		zap.Uint("workorder_id", wo.ID),
		zap.String("company", wo.CompanyCode),
		zap.String("order", wo.OrderNumber),
		zap.Int("quantity", wo.Quantity))
	return wo, nil
}

// ExpandProcesses materializes the product route onto the work order and auto-assigns
// operators and equipment. source is recorded on the assignment logs.
func (s *Service) ExpandProcesses(ctx context.Context, workOrderID uint, source string) ([]workorderEntity.WorkOrderProcess, error) {
	if source == "" {
		source = SourceManualExpand
	}
	var out []workorderEntity.WorkOrderProcess
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		out, err = s.WithTx(tx).expand(workOrderID, source)
		return err
	})
	return out, err
}

func (s *Service) expand(workOrderID uint, source string) ([]workorderEntity.WorkOrderProcess, error) {
	wo, err := s.repo.FindByIDForUpdate(workOrderID)
	if err != nil {
		return nil, wrapNotFound(err, workOrderID)
	}
	n, err := s.repo.CountProcesses(wo.ID)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, fmt.Errorf("workorder %d has %d processes: %w", wo.ID, n, errs.ErrAlreadyExpanded)
	}

	route, err := s.catalog.FindRoute(wo.ProductCode)
	if err != nil {
		return nil, err
	}

	var procs []workorderEntity.WorkOrderProcess
	if len(route) == 0 {
		for i, step := range defaultSteps {
			procs = append(procs, newProcess(wo, i+1, step.Name, step.Output))
		}
	} else {
		for _, step := range route {
			output := DefaultHourlyOutput
			capRow, err := s.catalog.ActiveCapacity(wo.ProductCode, step.Process.Name)
			if err != nil {
				return nil, err
			}
			if capRow != nil && capRow.StandardUnitsPerHour > 0 {
				output = capRow.StandardUnitsPerHour
			}
			procs = append(procs, newProcess(wo, step.StepOrder, step.Process.Name, output))
		}
	}

	if err := s.repo.CreateProcesses(procs); err != nil {
		return nil, errs.FromDB(err)
	}
	if err := s.autoAssign(wo, procs, source); err != nil {
		return nil, err
	}
	s.log.Info("processes expanded",
		zap.Uint("workorder_id", wo.ID),
		zap.Int("steps", len(procs)),
		zap.Bool("from_route", len(route) > 0))
	return procs, nil
}

func newProcess(wo *workorderEntity.WorkOrder, step int, name string, output int) workorderEntity.WorkOrderProcess {
	return workorderEntity.WorkOrderProcess{
		WorkOrderID:        wo.ID,
		StepOrder:          step,
		ProcessName:        name,
		PlannedQuantity:    wo.Quantity,
		TargetHourlyOutput: output,
		Status:             workorderEntity.StatusPending,
		CapacityMultiplier: 1,
	}
}

// autoAssign picks an operator and equipment for each process row. Steps whose process
// is not in the catalog, or has no candidates, stay unassigned.
func (s *Service) autoAssign(wo *workorderEntity.WorkOrder, procs []workorderEntity.WorkOrderProcess, source string) error {
	for i := range procs {
		p := &procs[i]
		op, err := s.catalog.PickOperator(p.ProcessName)
		if errors.Is(err, errs.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		eq, err := s.catalog.PickEquipment(p.ProcessName)
		if err != nil {
			return err
		}
		if op == nil && eq == nil {
			continue
		}
		fields := map[string]interface{}{}
		if op != nil {
			p.AssignedOperator = op.Name
			fields["assigned_operator"] = op.Name
		}
		if eq != nil {
			p.AssignedEquipment = eq.Name
			fields["assigned_equipment"] = eq.Name
		}
		if err := s.repo.UpdateProcess(p, fields); err != nil {
			return err
		}
		if err := s.writeLog(wo.ID, &p.ID, workorderEntity.ActionAutoAssignment, p.AssignedOperator, p.AssignedEquipment, source, map[string]interface{}{
			"step_order": p.StepOrder,
			"process":    p.ProcessName,
		}); err != nil {
			return err
		}
	}
	return nil
}

// Transition moves a work order along the lifecycle. Illegal moves return ErrIllegalTransition.
func (s *Service) Transition(ctx context.Context, workOrderID uint, target string) (*workorderEntity.WorkOrder, error) {
	var wo *workorderEntity.WorkOrder
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		svc := s.WithTx(tx)
		var err error
		wo, err = svc.repo.FindByIDForUpdate(workOrderID)
		if err != nil {
			return wrapNotFound(err, workOrderID)
		}
		return svc.ApplyTransition(wo, target, SourceStatusTransfer)
	})
	if err != nil {
		return nil, err
	}
	return wo, nil
}

// ApplyTransition validates and writes a transition on an already loaded (and locked) row.
func (s *Service) ApplyTransition(wo *workorderEntity.WorkOrder, target, source string) error {
	if !CanTransition(wo.Status, target) {
		return fmt.Errorf("workorder %d %s -> %s: %w", wo.ID, wo.Status, target, errs.ErrIllegalTransition)
	}
	return s.setStatus(wo, target, source)
}

// Reopen takes a completed work order back to pending or in_progress. Only the
// completion audit uses it.
func (s *Service) Reopen(wo *workorderEntity.WorkOrder, target, reason string) error {
	if wo.Status != workorderEntity.StatusCompleted || target == workorderEntity.StatusCompleted {
		return fmt.Errorf("workorder %d reopen %s -> %s: %w", wo.ID, wo.Status, target, errs.ErrIllegalTransition)
	}
	return s.setStatus(wo, target, reason)
}

func (s *Service) setStatus(wo *workorderEntity.WorkOrder, target, source string) error {
	from := wo.Status
	var completedAt *time.Time
	if target == workorderEntity.StatusCompleted {
		now := time.Now()
		completedAt = &now
	}
	if err := s.repo.UpdateStatus(wo, target, completedAt); err != nil {
		return err
	}
	return s.writeLog(wo.ID, nil, workorderEntity.ActionStatusChange, "", "", source, map[string]interface{}{
		"from": from,
		"to":   target,
	})
}

// Delete removes the work order and everything hanging off it.
func (s *Service) Delete(ctx context.Context, workOrderID uint) error {
	if err := workorderRepo.NewWorkOrderRepository(s.db.WithContext(ctx)).Delete(workOrderID); err != nil {
		return wrapNotFound(err, workOrderID)
	}
	return nil
}

// Dispatch hands quantity of a process to an operator. Records are append-only.
func (s *Service) Dispatch(ctx context.Context, workOrderID uint, processName, operator string, qty int, by string) (*workorderEntity.DispatchRecord, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("dispatch quantity %d: %w", qty, errs.ErrInvariantViolation)
	}
	rec := &workorderEntity.DispatchRecord{
		WorkOrderID: workOrderID,
		ProcessName: processName,
		Operator:    operator,
		Quantity:    qty,
		CreatedBy:   by,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		svc := s.WithTx(tx)
		if _, err := svc.repo.FindByID(workOrderID); err != nil {
			return wrapNotFound(err, workOrderID)
		}
		if err := svc.repo.CreateDispatch(rec); err != nil {
			return err
		}
		return svc.writeLog(workOrderID, nil, workorderEntity.ActionDispatch, operator, "", by, map[string]interface{}{
			"process":  processName,
			"quantity": qty,
		})
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) writeLog(workOrderID uint, processID *uint, action, operator, equipment, source string, details map[string]interface{}) error {
	raw, err := json.Marshal(details)
	if err != nil {
		return err
	}
	return s.repo.CreateProcessLog(&workorderEntity.ProcessLog{
		WorkOrderID:        workOrderID,
		WorkOrderProcessID: processID,
		Action:             action,
		Operator:           operator,
		Equipment:          equipment,
		Source:             source,
		Details:            datatypes.JSON(raw),
	})
}

// Repo exposes the bound repository to sibling services sharing a transaction.
func (s *Service) Repo() *workorderRepo.WorkOrderRepository {
	return s.repo
}

func wrapNotFound(err error, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("workorder %d: %w", id, errs.ErrNotFound)
	}
	return err
}
