package catalog

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"mes.GO/core/cache"
	"mes.GO/core/errs"
	catalogEntity "mes.GO/model/entity/catalog"
	catalogRepo "mes.GO/model/repository/catalog"
)

const (
	processTTL = 5 * time.Minute
	processTag = "catalog:process"
)

// Service answers catalog lookups for conversion, reporting and assignment.
type Service struct {
	repo  *catalogRepo.CatalogRepository
	cache *cache.Cache
}

func NewService(db *gorm.DB) *Service {
	return &Service{repo: catalogRepo.NewCatalogRepository(db), cache: cache.NewCache()}
}

// WithTx binds the service to tx while sharing the process cache.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	return &Service{repo: s.repo.WithTx(tx), cache: s.cache}
}

// ResolveProcess finds a process by name.
func (s *Service) ResolveProcess(name string) (*catalogEntity.Process, error) {
	v, err := s.cache.GetOrLoad(cache.Key("process", name), processTTL, []string{processTag}, func() (interface{}, error) {
		return s.repo.FindProcessByName(name)
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("process %q: %w", name, errs.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return v.(*catalogEntity.Process), nil
}

// ListOperatorsWithSkill returns operators skilled on process ordered by priority, then name.
func (s *Service) ListOperatorsWithSkill(processName string) ([]catalogEntity.Operator, error) {
	p, err := s.ResolveProcess(processName)
	if err != nil {
		return nil, err
	}
	return s.repo.ListOperatorsWithSkill(p.ID)
}

// CurrentLoad is the number of in-progress process rows assigned to operator.
func (s *Service) CurrentLoad(operator string) (int, error) {
	n, err := s.repo.CountInProgressAssignments(operator)
	return int(n), err
}

// CandidateEquipment returns idle equipment usable by the process, ordered by id.
// A process with no declared equipment falls back to the process_equipment mapping.
func (s *Service) CandidateEquipment(processName string) ([]catalogEntity.Equipment, error) {
	p, err := s.ResolveProcess(processName)
	if err != nil {
		return nil, err
	}
	if len(p.UsableEquipmentIDs) > 0 {
		return s.repo.FindEquipment([]uint(p.UsableEquipmentIDs), catalogEntity.EquipmentIdle)
	}
	return s.repo.FindMappedEquipment(p.Name, catalogEntity.EquipmentIdle)
}

// ActiveCapacity returns the latest active capacity row, or nil when none exists.
func (s *Service) ActiveCapacity(productCode, processName string) (*catalogEntity.StandardCapacity, error) {
	return s.repo.FindActiveCapacity(productCode, processName)
}

// PickOperator chooses the skilled operator with the lowest current load, ties by lowest id.
// Returns nil when nobody is skilled.
func (s *Service) PickOperator(processName string) (*catalogEntity.Operator, error) {
	ops, err := s.ListOperatorsWithSkill(processName)
	if err != nil {
		return nil, err
	}
	var best *catalogEntity.Operator
	bestLoad := 0
	for i := range ops {
		load, err := s.CurrentLoad(ops[i].Name)
		if err != nil {
			return nil, err
		}
		if best == nil || load < bestLoad || (load == bestLoad && ops[i].ID < best.ID) {
			best, bestLoad = &ops[i], load
		}
	}
	return best, nil
}

// PickEquipment returns the first candidate by id, or nil.
func (s *Service) PickEquipment(processName string) (*catalogEntity.Equipment, error) {
	eq, err := s.CandidateEquipment(processName)
	if err != nil || len(eq) == 0 {
		return nil, err
	}
	return &eq[0], nil
}

// FindRoute returns the product route ordered by step.
func (s *Service) FindRoute(productCode string) ([]catalogEntity.ProductRoute, error) {
	return s.repo.FindRoute(productCode)
}

func (s *Service) ListProcesses() ([]catalogEntity.Process, error) {
	return s.repo.ListProcesses()
}

// --- maintenance writes ---

func (s *Service) AddProcess(p *catalogEntity.Process) error {
	defer s.cache.DeleteByTag(processTag)
	return errs.FromDB(s.repo.Create(p))
}

func (s *Service) AddEquipment(e *catalogEntity.Equipment) error {
	if e.Status == "" {
		e.Status = catalogEntity.EquipmentIdle
	}
	return errs.FromDB(s.repo.Create(e))
}

func (s *Service) AddOperator(o *catalogEntity.Operator) error {
	return errs.FromDB(s.repo.Create(o))
}

// AddSkill links operator to process with priority (1 is preferred).
func (s *Service) AddSkill(operator *catalogEntity.Operator, processName string, priority int) error {
	p, err := s.ResolveProcess(processName)
	if err != nil {
		return err
	}
	if priority < 1 {
		return fmt.Errorf("skill priority %d: %w", priority, errs.ErrInvariantViolation)
	}
	return errs.FromDB(s.repo.Create(&catalogEntity.OperatorSkill{OperatorID: operator.ID, ProcessID: p.ID, Priority: priority}))
}

// AddRouteStep appends a route step for productCode on processName.
func (s *Service) AddRouteStep(productCode string, stepOrder int, processName string) error {
	p, err := s.ResolveProcess(processName)
	if err != nil {
		return err
	}
	if stepOrder < 1 {
		return fmt.Errorf("step order %d: %w", stepOrder, errs.ErrInvariantViolation)
	}
	return errs.FromDB(s.repo.Create(&catalogEntity.ProductRoute{ProductCode: productCode, StepOrder: stepOrder, ProcessID: p.ID}))
}

func (s *Service) AddCapacity(c *catalogEntity.StandardCapacity) error {
	if c.Version == 0 {
		c.Version = 1
	}
	return errs.FromDB(s.repo.Create(c))
}

func (s *Service) MapEquipment(processName string, equipmentID uint) error {
	return errs.FromDB(s.repo.Create(&catalogEntity.ProcessEquipment{ProcessName: processName, EquipmentID: equipmentID}))
}
