package erp

import (
	"time"

	"gorm.io/datatypes"
)

// CompanyConfig describes one company's read-only ERP view. ColumnMap maps the
// canonical MO fields (mo_number, product_id, quantity, remaining_quantity,
// status, planned_material_date, planned_shipout_date) onto vendor columns.
type CompanyConfig struct {
	ID            uint              `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	CompanyCode   string            `gorm:"column:company_code;type:varchar(20);not null;uniqueIndex" json:"company_code"`
	CompanyName   string            `gorm:"column:company_name;type:varchar(100)" json:"company_name"`
	Driver        string            `gorm:"column:driver;type:varchar(20);not null" json:"driver"`
	DSN           string            `gorm:"column:dsn;type:varchar(500);not null" json:"-"`
	SourceTable   string            `gorm:"column:source_table;type:varchar(100);not null" json:"source_table"`
	OpenPredicate string            `gorm:"column:open_predicate;type:text" json:"open_predicate"`
	ColumnMap     datatypes.JSONMap `gorm:"column:column_map" json:"column_map"`
	Enabled       bool              `gorm:"column:enabled;not null" json:"enabled"`
}

func (CompanyConfig) TableName() string {
	return "erp_companies"
}

// StagedMO is an ERP manufacturing order copied locally before conversion.
type StagedMO struct {
	ID                  uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	CompanyCode         string    `gorm:"column:company_code;type:varchar(20);not null;uniqueIndex:idx_company_mo" json:"company_code"`
	MONumber            string    `gorm:"column:mo_number;type:varchar(100);not null;uniqueIndex:idx_company_mo" json:"mo_number"`
	ProductID           string    `gorm:"column:product_id;type:varchar(100);not null" json:"product_id"`
	Quantity            int       `gorm:"column:quantity;not null" json:"quantity"`
	RemainingQuantity   int       `gorm:"column:remaining_quantity;not null;default:0" json:"remaining_quantity"`
	Status              string    `gorm:"column:status;type:varchar(20)" json:"status"`
	PlannedMaterialDate string    `gorm:"column:planned_material_date;type:varchar(10)" json:"planned_material_date"`
	PlannedShipoutDate  string    `gorm:"column:planned_shipout_date;type:varchar(10)" json:"planned_shipout_date"`
	IsConverted         bool      `gorm:"column:is_converted;not null;index" json:"is_converted"`
	SyncTime            time.Time `gorm:"column:sync_time" json:"sync_time"`
}

func (StagedMO) TableName() string {
	return "staged_mos"
}
