package reporting

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"

	reportingEntity "mes.GO/model/entity/reporting"
)

type ReportingRepository struct {
	db *gorm.DB
}

func NewReportingRepository(db *gorm.DB) *ReportingRepository {
	return &ReportingRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *ReportingRepository) WithTx(tx *gorm.DB) *ReportingRepository {
	return &ReportingRepository{db: tx}
}

// ListWorkTime returns daily work-time rollups dated in [from, to].
func (r *ReportingRepository) ListWorkTime(from, to datatypes.Date) ([]reportingEntity.WorkTimeRollup, error) {
	var rows []reportingEntity.WorkTimeRollup
	err := r.db.Where("report_type = ? AND report_date >= ? AND report_date <= ?", reportingEntity.ReportTypeDaily, from, to).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// ListWorkOrderRollups returns daily work-order rollups dated in [from, to].
func (r *ReportingRepository) ListWorkOrderRollups(from, to datatypes.Date) ([]reportingEntity.WorkOrderProductRollup, error) {
	var rows []reportingEntity.WorkOrderProductRollup
	err := r.db.Where("report_type = ? AND report_date >= ? AND report_date <= ?", reportingEntity.ReportTypeDaily, from, to).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *ReportingRepository) CreateWorkTime(row *reportingEntity.WorkTimeRollup) error {
	return r.db.Create(row).Error
}

func (r *ReportingRepository) SaveWorkTime(row *reportingEntity.WorkTimeRollup) error {
	return r.db.Save(row).Error
}

func (r *ReportingRepository) CreateWorkOrder(row *reportingEntity.WorkOrderProductRollup) error {
	return r.db.Create(row).Error
}

func (r *ReportingRepository) SaveWorkOrder(row *reportingEntity.WorkOrderProductRollup) error {
	return r.db.Save(row).Error
}

// DeleteWorkTime removes work-time rollups by id.
func (r *ReportingRepository) DeleteWorkTime(ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.Delete(&reportingEntity.WorkTimeRollup{}, ids)
	return res.RowsAffected, res.Error
}

// DeleteWorkOrders removes work-order rollups by id.
func (r *ReportingRepository) DeleteWorkOrders(ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.Delete(&reportingEntity.WorkOrderProductRollup{}, ids)
	return res.RowsAffected, res.Error
}
