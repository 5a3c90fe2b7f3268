package workorder

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	workorderEntity "mes.GO/model/entity/workorder"
)

type WorkOrderRepository struct {
	db *gorm.DB
}

func NewWorkOrderRepository(db *gorm.DB) *WorkOrderRepository {
	return &WorkOrderRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *WorkOrderRepository) WithTx(tx *gorm.DB) *WorkOrderRepository {
	return &WorkOrderRepository{db: tx}
}

func (r *WorkOrderRepository) Create(wo *workorderEntity.WorkOrder) error {
	return r.db.Create(wo).Error
}

func (r *WorkOrderRepository) FindByID(id uint) (*workorderEntity.WorkOrder, error) {
	var wo workorderEntity.WorkOrder
	if err := r.db.First(&wo, id).Error; err != nil {
		return nil, err
	}
	return &wo, nil
}

// FindByIDForUpdate reads the row with SELECT ... FOR UPDATE (ignored by SQLite).
func (r *WorkOrderRepository) FindByIDForUpdate(id uint) (*workorderEntity.WorkOrder, error) {
	var wo workorderEntity.WorkOrder
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&wo, id).Error; err != nil {
		return nil, err
	}
	return &wo, nil
}

func (r *WorkOrderRepository) FindByNumber(companyCode, orderNumber string) (*workorderEntity.WorkOrder, error) {
	var wo workorderEntity.WorkOrder
	err := r.db.Where("company_code = ? AND order_number = ?", companyCode, orderNumber).First(&wo).Error
	if err != nil {
		return nil, err
	}
	return &wo, nil
}

func (r *WorkOrderRepository) Exists(companyCode, orderNumber string) (bool, error) {
	var n int64
	err := r.db.Model(&workorderEntity.WorkOrder{}).
		Where("company_code = ? AND order_number = ?", companyCode, orderNumber).
		Count(&n).Error
	return n > 0, err
}

func (r *WorkOrderRepository) FindByIDs(ids []uint) ([]workorderEntity.WorkOrder, error) {
	var wos []workorderEntity.WorkOrder
	if len(ids) == 0 {
		return wos, nil
	}
	err := r.db.Where("id IN ?", ids).Order("id ASC").Find(&wos).Error
	return wos, err
}

// ListIDsByStatus returns work order ids in any of statuses, ordered by id.
func (r *WorkOrderRepository) ListIDsByStatus(statuses ...string) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&workorderEntity.WorkOrder{}).
		Where("status IN ?", statuses).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *WorkOrderRepository) List(status string, limit int) ([]workorderEntity.WorkOrder, error) {
	var wos []workorderEntity.WorkOrder
	q := r.db.Order("id DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&wos).Error
	return wos, err
}

// UpdateStatus writes status, completed_at and updated_at.
func (r *WorkOrderRepository) UpdateStatus(wo *workorderEntity.WorkOrder, status string, completedAt *time.Time) error {
	wo.Status = status
	wo.CompletedAt = completedAt
	return r.db.Model(wo).Select("status", "completed_at", "updated_at").Updates(map[string]interface{}{
		"status":       status,
		"completed_at": completedAt,
		"updated_at":   time.Now(),
	}).Error
}

func (r *WorkOrderRepository) ListProcesses(workOrderID uint) ([]workorderEntity.WorkOrderProcess, error) {
	var ps []workorderEntity.WorkOrderProcess
	err := r.db.Where("work_order_id = ?", workOrderID).Order("step_order ASC").Find(&ps).Error
	return ps, err
}

func (r *WorkOrderRepository) CountProcesses(workOrderID uint) (int64, error) {
	var n int64
	err := r.db.Model(&workorderEntity.WorkOrderProcess{}).Where("work_order_id = ?", workOrderID).Count(&n).Error
	return n, err
}

func (r *WorkOrderRepository) CreateProcesses(ps []workorderEntity.WorkOrderProcess) error {
	if len(ps) == 0 {
		return nil
	}
	return r.db.Create(&ps).Error
}

func (r *WorkOrderRepository) UpdateProcess(p *workorderEntity.WorkOrderProcess, fields map[string]interface{}) error {
	return r.db.Model(p).Updates(fields).Error
}

func (r *WorkOrderRepository) CreateProcessLog(l *workorderEntity.ProcessLog) error {
	return r.db.Create(l).Error
}

func (r *WorkOrderRepository) ListProcessLogs(workOrderID uint) ([]workorderEntity.ProcessLog, error) {
	var logs []workorderEntity.ProcessLog
	err := r.db.Where("work_order_id = ?", workOrderID).Order("id ASC").Find(&logs).Error
	return logs, err
}

func (r *WorkOrderRepository) CreateDispatch(d *workorderEntity.DispatchRecord) error {
	return r.db.Create(d).Error
}

// Delete removes the work order with its processes, dispatch records and logs.
func (r *WorkOrderRepository) Delete(workOrderID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{
			&workorderEntity.ProcessLog{},
			&workorderEntity.DispatchRecord{},
			&workorderEntity.WorkOrderProcess{},
		} {
			if err := tx.Where("work_order_id = ?", workOrderID).Delete(model).Error; err != nil {
				return err
			}
		}
		res := tx.Delete(&workorderEntity.WorkOrder{}, workOrderID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
