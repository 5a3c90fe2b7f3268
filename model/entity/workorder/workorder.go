package workorder

import (
	"time"

	"gorm.io/datatypes"
)

// Work order and process status values.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Work order sources.
const (
	SourceMOConversion = "mo_conversion"
	SourceManual       = "manual"
	SourceImport       = "import"
)

type WorkOrder struct {
	ID               uint            `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	CompanyCode      string          `gorm:"column:company_code;type:varchar(20);not null;uniqueIndex:idx_company_order" json:"company_code"`
	OrderNumber      string          `gorm:"column:order_number;type:varchar(100);not null;uniqueIndex:idx_company_order" json:"order_number"`
	ProductCode      string          `gorm:"column:product_code;type:varchar(100);not null;index" json:"product_code"`
	Quantity         int             `gorm:"column:quantity;not null" json:"quantity"`
	Status           string          `gorm:"column:status;type:varchar(20);not null;index" json:"status"`
	Source           string          `gorm:"column:source;type:varchar(20);not null" json:"source"`
	PlannedStartDate *datatypes.Date `gorm:"column:planned_start_date" json:"planned_start_date,omitempty"`
	PlannedEndDate   *datatypes.Date `gorm:"column:planned_end_date" json:"planned_end_date,omitempty"`
	CompletedAt      *time.Time      `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt        time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"column:updated_at" json:"updated_at"`

	Processes []WorkOrderProcess `gorm:"foreignKey:WorkOrderID" json:"processes,omitempty"`
}

func (WorkOrder) TableName() string {
	return "work_orders"
}

// WorkOrderProcess is one route step expanded onto a work order.
type WorkOrderProcess struct {
	ID                 uint       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	WorkOrderID        uint       `gorm:"column:work_order_id;not null;uniqueIndex:idx_wo_step" json:"work_order_id"`
	StepOrder          int        `gorm:"column:step_order;not null;uniqueIndex:idx_wo_step" json:"step_order"`
	ProcessName        string     `gorm:"column:process_name;type:varchar(100);not null" json:"process_name"`
	PlannedQuantity    int        `gorm:"column:planned_quantity;not null" json:"planned_quantity"`
	CompletedQuantity  int        `gorm:"column:completed_quantity;not null;default:0" json:"completed_quantity"`
	TargetHourlyOutput int        `gorm:"column:target_hourly_output;not null" json:"target_hourly_output"`
	AssignedOperator   string     `gorm:"column:assigned_operator;type:varchar(100);index" json:"assigned_operator"`
	AssignedEquipment  string     `gorm:"column:assigned_equipment;type:varchar(100)" json:"assigned_equipment"`
	Status             string     `gorm:"column:status;type:varchar(20);not null" json:"status"`
	ActualStartTime    *time.Time `gorm:"column:actual_start_time" json:"actual_start_time,omitempty"`
	ActualEndTime      *time.Time `gorm:"column:actual_end_time" json:"actual_end_time,omitempty"`
	CapacityMultiplier int        `gorm:"column:capacity_multiplier;not null;default:1" json:"capacity_multiplier"`
}

func (WorkOrderProcess) TableName() string {
	return "work_order_processes"
}

// DispatchRecord is an append-only hand-out of quantity to an operator.
type DispatchRecord struct {
	ID          uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	WorkOrderID uint      `gorm:"column:work_order_id;not null;index" json:"work_order_id"`
	ProcessName string    `gorm:"column:process_name;type:varchar(100);not null" json:"process_name"`
	Operator    string    `gorm:"column:operator;type:varchar(100)" json:"operator"`
	Quantity    int       `gorm:"column:quantity;not null" json:"quantity"`
	CreatedBy   string    `gorm:"column:created_by;type:varchar(100)" json:"created_by"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
}

func (DispatchRecord) TableName() string {
	return "dispatch_records"
}

// Process log actions.
const (
	ActionAutoAssignment = "auto_assignment"
	ActionStatusChange   = "status_change"
	ActionDispatch       = "dispatch"
)

type ProcessLog struct {
	ID                 uint           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	WorkOrderID        uint           `gorm:"column:work_order_id;not null;index" json:"work_order_id"`
	WorkOrderProcessID *uint          `gorm:"column:work_order_process_id" json:"work_order_process_id,omitempty"`
	Action             string         `gorm:"column:action;type:varchar(50);not null" json:"action"`
	Operator           string         `gorm:"column:operator;type:varchar(100)" json:"operator"`
	Equipment          string         `gorm:"column:equipment;type:varchar(100)" json:"equipment"`
	Source             string         `gorm:"column:source;type:varchar(50)" json:"source"`
	Details            datatypes.JSON `gorm:"column:details" json:"details"`
	CreatedAt          time.Time      `gorm:"column:created_at" json:"created_at"`
}

func (ProcessLog) TableName() string {
	return "process_logs"
}
