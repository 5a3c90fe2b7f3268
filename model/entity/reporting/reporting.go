package reporting

import (
	"time"

	"gorm.io/datatypes"
)

// ReportTypeDaily is the only rollup granularity produced by the sync engine.
const ReportTypeDaily = "daily"

// WorkTimeRollup is one worker's approved hours and output on a work order process for a day.
type WorkTimeRollup struct {
	ID                uint           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ReportType        string         `gorm:"column:report_type;type:varchar(20);not null;uniqueIndex:idx_work_time_key" json:"report_type"`
	ReportDate        datatypes.Date `gorm:"column:report_date;not null;uniqueIndex:idx_work_time_key" json:"report_date"`
	WorkerName        string         `gorm:"column:worker_name;type:varchar(100);not null;uniqueIndex:idx_work_time_key" json:"worker_name"`
	WorkorderNumber   string         `gorm:"column:workorder_number;type:varchar(100);not null;uniqueIndex:idx_work_time_key" json:"workorder_number"`
	ProcessName       string         `gorm:"column:process_name;type:varchar(100);not null;uniqueIndex:idx_work_time_key" json:"process_name"`
	StartTime         datatypes.Time `gorm:"column:start_time;not null;uniqueIndex:idx_work_time_key" json:"start_time"`
	EndTime           datatypes.Time `gorm:"column:end_time;not null;uniqueIndex:idx_work_time_key" json:"end_time"`
	WorkerType        string         `gorm:"column:worker_type;type:varchar(20);not null" json:"worker_type"`
	ProductCode       string         `gorm:"column:product_code;type:varchar(100)" json:"product_code"`
	TotalWorkHours    float64        `gorm:"column:total_work_hours;type:decimal(8,2);not null;default:0" json:"total_work_hours"`
	CompletedQuantity int            `gorm:"column:completed_quantity;not null;default:0" json:"completed_quantity"`
	DefectQuantity    int            `gorm:"column:defect_quantity;not null;default:0" json:"defect_quantity"`
	YieldRate         float64        `gorm:"column:yield_rate;type:decimal(6,2);not null;default:0" json:"yield_rate"`
	EfficiencyRate    float64        `gorm:"column:efficiency_rate;type:decimal(10,2);not null;default:0" json:"efficiency_rate"`
	AllocatedQuantity int            `gorm:"column:allocated_quantity;not null;default:0" json:"allocated_quantity"`
	AllocationNotes   string         `gorm:"column:allocation_notes;type:text" json:"allocation_notes"`
	ReportCount       int            `gorm:"column:report_count;not null;default:0" json:"report_count"`
	DataSource        string         `gorm:"column:data_source;type:varchar(30)" json:"data_source"`
	CalculationMethod string         `gorm:"column:calculation_method;type:varchar(30)" json:"calculation_method"`
	CreatedBy         string         `gorm:"column:created_by;type:varchar(100)" json:"created_by"`
	CreatedAt         time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"column:updated_at" json:"updated_at"`
}

func (WorkTimeRollup) TableName() string {
	return "report_work_time"
}

// WorkOrderProductRollup summarizes a work order's approved output inside a sync window.
type WorkOrderProductRollup struct {
	ID                uint            `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ReportType        string          `gorm:"column:report_type;type:varchar(20);not null;uniqueIndex:idx_wo_product_key" json:"report_type"`
	ReportDate        datatypes.Date  `gorm:"column:report_date;not null;uniqueIndex:idx_wo_product_key" json:"report_date"`
	WorkorderNumber   string          `gorm:"column:workorder_number;type:varchar(100);not null;uniqueIndex:idx_wo_product_key" json:"workorder_number"`
	CompanyCode       string          `gorm:"column:company_code;type:varchar(20)" json:"company_code"`
	ProductCode       string          `gorm:"column:product_code;type:varchar(100)" json:"product_code"`
	PlannedQuantity   int             `gorm:"column:planned_quantity;not null;default:0" json:"planned_quantity"`
	CompletedQuantity int             `gorm:"column:completed_quantity;not null;default:0" json:"completed_quantity"`
	DefectQuantity    int             `gorm:"column:defect_quantity;not null;default:0" json:"defect_quantity"`
	CompletionRate    float64         `gorm:"column:completion_rate;type:decimal(8,2);not null;default:0" json:"completion_rate"`
	YieldRate         float64         `gorm:"column:yield_rate;type:decimal(6,2);not null;default:0" json:"yield_rate"`
	QualityScore      float64         `gorm:"column:quality_score;type:decimal(6,2);not null;default:0" json:"quality_score"`
	TotalWorkHours    float64         `gorm:"column:total_work_hours;type:decimal(10,2);not null;default:0" json:"total_work_hours"`
	ReportCount       int             `gorm:"column:report_count;not null;default:0" json:"report_count"`
	AssignedOperators string          `gorm:"column:assigned_operators;type:text" json:"assigned_operators"`
	AssignedEquipment string          `gorm:"column:assigned_equipment;type:text" json:"assigned_equipment"`
	PlannedStartDate  *datatypes.Date `gorm:"column:planned_start_date" json:"planned_start_date,omitempty"`
	PlannedEndDate    *datatypes.Date `gorm:"column:planned_end_date" json:"planned_end_date,omitempty"`
	ActualStartDate   *datatypes.Date `gorm:"column:actual_start_date" json:"actual_start_date,omitempty"`
	ActualEndDate     *datatypes.Date `gorm:"column:actual_end_date" json:"actual_end_date,omitempty"`
	CreatedAt         time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (WorkOrderProductRollup) TableName() string {
	return "report_work_order_product"
}
