package catalog

import (
	"errors"

	"gorm.io/gorm"

	catalogEntity "mes.GO/model/entity/catalog"
	workorderEntity "mes.GO/model/entity/workorder"
)

type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *CatalogRepository) WithTx(tx *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: tx}
}

// Create inserts any catalog row (process, equipment, operator, skill, route, capacity).
func (r *CatalogRepository) Create(value interface{}) error {
	return r.db.Create(value).Error
}

func (r *CatalogRepository) FindProcessByName(name string) (*catalogEntity.Process, error) {
	var p catalogEntity.Process
	if err := r.db.Where("name = ?", name).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *CatalogRepository) FindProcessByID(id uint) (*catalogEntity.Process, error) {
	var p catalogEntity.Process
	if err := r.db.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// ListOperatorsWithSkill returns active operators skilled on processID,
// ordered by skill priority then name.
func (r *CatalogRepository) ListOperatorsWithSkill(processID uint) ([]catalogEntity.Operator, error) {
	var ops []catalogEntity.Operator
	err := r.db.Table("operators").
		Select("operators.*").
		Joins("JOIN operator_skills ON operator_skills.operator_id = operators.id").
		Where("operator_skills.process_id = ? AND operators.is_active = ?", processID, true).
		Order("operator_skills.priority ASC, operators.name ASC").
		Find(&ops).Error
	return ops, err
}

// CountInProgressAssignments counts process rows in progress assigned to operator.
func (r *CatalogRepository) CountInProgressAssignments(operator string) (int64, error) {
	var n int64
	err := r.db.Model(&workorderEntity.WorkOrderProcess{}).
		Where("assigned_operator = ? AND status = ?", operator, workorderEntity.StatusInProgress).
		Count(&n).Error
	return n, err
}

// FindEquipment returns equipment with the given ids and status, ordered by id.
func (r *CatalogRepository) FindEquipment(ids []uint, status string) ([]catalogEntity.Equipment, error) {
	var eq []catalogEntity.Equipment
	if len(ids) == 0 {
		return eq, nil
	}
	err := r.db.Where("id IN ? AND status = ?", ids, status).Order("id ASC").Find(&eq).Error
	return eq, err
}

// FindMappedEquipment returns equipment mapped to processName in process_equipment.
func (r *CatalogRepository) FindMappedEquipment(processName, status string) ([]catalogEntity.Equipment, error) {
	var eq []catalogEntity.Equipment
	err := r.db.Table("equipment").
		Select("equipment.*").
		Joins("JOIN process_equipment ON process_equipment.equipment_id = equipment.id").
		Where("process_equipment.process_name = ? AND equipment.status = ?", processName, status).
		Order("equipment.id ASC").
		Find(&eq).Error
	return eq, err
}

// FindRoute returns the product's route ordered by step.
func (r *CatalogRepository) FindRoute(productCode string) ([]catalogEntity.ProductRoute, error) {
	var steps []catalogEntity.ProductRoute
	err := r.db.Preload("Process").
		Where("product_code = ?", productCode).
		Order("step_order ASC").
		Find(&steps).Error
	return steps, err
}

// FindActiveCapacity returns the active capacity row with the highest version, or nil.
func (r *CatalogRepository) FindActiveCapacity(productCode, processName string) (*catalogEntity.StandardCapacity, error) {
	var c catalogEntity.StandardCapacity
	err := r.db.Where("product_code = ? AND process_name = ? AND is_active = ?", productCode, processName, true).
		Order("version DESC, id ASC").
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CatalogRepository) ListProcesses() ([]catalogEntity.Process, error) {
	var ps []catalogEntity.Process
	err := r.db.Order("id ASC").Find(&ps).Error
	return ps, err
}
