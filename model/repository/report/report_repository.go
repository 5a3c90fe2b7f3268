package report

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	reportEntity "mes.GO/model/entity/report"
)

type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *ReportRepository) WithTx(tx *gorm.DB) *ReportRepository {
	return &ReportRepository{db: tx}
}

func (r *ReportRepository) Create(rep *reportEntity.Report) error {
	return r.db.Create(rep).Error
}

func (r *ReportRepository) Save(rep *reportEntity.Report) error {
	return r.db.Save(rep).Error
}

func (r *ReportRepository) FindByID(id uint) (*reportEntity.Report, error) {
	var rep reportEntity.Report
	if err := r.db.First(&rep, id).Error; err != nil {
		return nil, err
	}
	return &rep, nil
}

func (r *ReportRepository) FindByIDForUpdate(id uint) (*reportEntity.Report, error) {
	var rep reportEntity.Report
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&rep, id).Error; err != nil {
		return nil, err
	}
	return &rep, nil
}

// ListPendingIDs returns pending report ids in submission order.
func (r *ReportRepository) ListPendingIDs() ([]uint, error) {
	var ids []uint
	err := r.db.Model(&reportEntity.Report{}).
		Where("approval_status = ?", reportEntity.StatusPending).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *ReportRepository) ListPending() ([]reportEntity.Report, error) {
	var reps []reportEntity.Report
	err := r.db.Where("approval_status = ?", reportEntity.StatusPending).Order("id ASC").Find(&reps).Error
	return reps, err
}

// ListApprovedByWorkOrder returns approved reports of a work order ordered by id.
func (r *ReportRepository) ListApprovedByWorkOrder(workOrderID uint) ([]reportEntity.Report, error) {
	var reps []reportEntity.Report
	err := r.db.Where("work_order_id = ? AND approval_status = ?", workOrderID, reportEntity.StatusApproved).
		Order("id ASC").
		Find(&reps).Error
	return reps, err
}

// ListApprovedInRange returns approved reports whose work_date is in [from, to], ordered by id.
func (r *ReportRepository) ListApprovedInRange(from, to datatypes.Date) ([]reportEntity.Report, error) {
	var reps []reportEntity.Report
	err := r.db.Where("approval_status = ? AND work_date >= ? AND work_date <= ?", reportEntity.StatusApproved, from, to).
		Order("id ASC").
		Find(&reps).Error
	return reps, err
}

// SumApprovedQuantity totals approved work_quantity on one process of a work order.
func (r *ReportRepository) SumApprovedQuantity(workOrderID uint, processName string) (int, error) {
	var total int
	err := r.db.Model(&reportEntity.Report{}).
		Select("COALESCE(SUM(work_quantity), 0)").
		Where("work_order_id = ? AND process_name = ? AND approval_status = ?", workOrderID, processName, reportEntity.StatusApproved).
		Scan(&total).Error
	return total, err
}

// UpdateAllocation writes the only columns an approved report may change.
func (r *ReportRepository) UpdateAllocation(id uint, qty int, notes string) error {
	return r.db.Model(&reportEntity.Report{}).Where("id = ?", id).Updates(map[string]interface{}{
		"allocated_quantity": qty,
		"allocation_notes":   notes,
	}).Error
}
