package erp

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	erpEntity "mes.GO/model/entity/erp"
)

type ERPRepository struct {
	db *gorm.DB
}

func NewERPRepository(db *gorm.DB) *ERPRepository {
	return &ERPRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *ERPRepository) WithTx(tx *gorm.DB) *ERPRepository {
	return &ERPRepository{db: tx}
}

func (r *ERPRepository) CreateCompany(c *erpEntity.CompanyConfig) error {
	return r.db.Create(c).Error
}

func (r *ERPRepository) ListEnabledCompanies() ([]erpEntity.CompanyConfig, error) {
	var cs []erpEntity.CompanyConfig
	err := r.db.Where("enabled = ?", true).Order("company_code ASC").Find(&cs).Error
	return cs, err
}

// CountExisting returns how many of moNumbers are already staged for company.
func (r *ERPRepository) CountExisting(companyCode string, moNumbers []string) (int64, error) {
	var n int64
	if len(moNumbers) == 0 {
		return 0, nil
	}
	err := r.db.Model(&erpEntity.StagedMO{}).
		Where("company_code = ? AND mo_number IN ?", companyCode, moNumbers).
		Count(&n).Error
	return n, err
}

// UpsertStaged inserts or refreshes staged MOs on (company_code, mo_number).
// is_converted is never part of the update set.
func (r *ERPRepository) UpsertStaged(rows []erpEntity.StagedMO, batchSize int) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "company_code"}, {Name: "mo_number"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"product_id", "quantity", "remaining_quantity", "status",
			"planned_material_date", "planned_shipout_date", "sync_time",
		}),
	}).CreateInBatches(&rows, batchSize).Error
}

// ListUnconverted returns staged MOs not yet converted, ordered by id.
func (r *ERPRepository) ListUnconverted() ([]erpEntity.StagedMO, error) {
	var mos []erpEntity.StagedMO
	err := r.db.Where("is_converted = ?", false).Order("id ASC").Find(&mos).Error
	return mos, err
}

func (r *ERPRepository) FindStaged(companyCode, moNumber string) (*erpEntity.StagedMO, error) {
	var mo erpEntity.StagedMO
	if err := r.db.Where("company_code = ? AND mo_number = ?", companyCode, moNumber).First(&mo).Error; err != nil {
		return nil, err
	}
	return &mo, nil
}

func (r *ERPRepository) MarkConverted(id uint) error {
	return r.db.Model(&erpEntity.StagedMO{}).Where("id = ?", id).Updates(map[string]interface{}{
		"is_converted": true,
		"sync_time":    time.Now(),
	}).Error
}
