package catalog

import (
	"time"

	"gorm.io/datatypes"
)

// Equipment status values.
const (
	EquipmentIdle        = "idle"
	EquipmentRunning     = "running"
	EquipmentMaintenance = "maintenance"
	EquipmentFault       = "fault"
)

// Process is a named manufacturing step (SMT, DIP, test, packaging...).
type Process struct {
	ID                 uint                     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name               string                   `gorm:"column:name;type:varchar(100);not null;uniqueIndex" json:"name"`
	Description        string                   `gorm:"column:description;type:varchar(255)" json:"description"`
	UsableEquipmentIDs datatypes.JSONSlice[uint] `gorm:"column:usable_equipment_ids" json:"usable_equipment_ids"`
}

func (Process) TableName() string {
	return "processes"
}

type Equipment struct {
	ID             uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name           string `gorm:"column:name;type:varchar(100);not null;uniqueIndex" json:"name"`
	EquipmentType  string `gorm:"column:equipment_type;type:varchar(50)" json:"equipment_type"`
	ProductionLine string `gorm:"column:production_line;type:varchar(50)" json:"production_line"`
	Status         string `gorm:"column:status;type:varchar(20);not null;default:idle" json:"status"`
}

func (Equipment) TableName() string {
	return "equipment"
}

// ProcessEquipment is the fallback process→equipment mapping used when a
// process declares no usable equipment itself.
type ProcessEquipment struct {
	ID          uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ProcessName string `gorm:"column:process_name;type:varchar(100);not null;uniqueIndex:idx_process_equipment" json:"process_name"`
	EquipmentID uint   `gorm:"column:equipment_id;not null;uniqueIndex:idx_process_equipment" json:"equipment_id"`
}

func (ProcessEquipment) TableName() string {
	return "process_equipment"
}

type Operator struct {
	ID             uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name           string `gorm:"column:name;type:varchar(100);not null;uniqueIndex" json:"name"`
	ProductionLine string `gorm:"column:production_line;type:varchar(50)" json:"production_line"`
	IsActive       bool   `gorm:"column:is_active;not null" json:"is_active"`
}

func (Operator) TableName() string {
	return "operators"
}

// OperatorSkill links an operator to a process. Lower priority is preferred.
type OperatorSkill struct {
	ID         uint `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OperatorID uint `gorm:"column:operator_id;not null;uniqueIndex:idx_operator_process" json:"operator_id"`
	ProcessID  uint `gorm:"column:process_id;not null;uniqueIndex:idx_operator_process" json:"process_id"`
	Priority   int  `gorm:"column:priority;not null;default:1" json:"priority"`
}

func (OperatorSkill) TableName() string {
	return "operator_skills"
}

type ProductRoute struct {
	ID                   uint                     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ProductCode          string                   `gorm:"column:product_code;type:varchar(100);not null;uniqueIndex:idx_product_step" json:"product_code"`
	StepOrder            int                      `gorm:"column:step_order;not null;uniqueIndex:idx_product_step" json:"step_order"`
	ProcessID            uint                     `gorm:"column:process_id;not null" json:"process_id"`
	UsableEquipmentIDs   datatypes.JSONSlice[uint] `gorm:"column:usable_equipment_ids" json:"usable_equipment_ids"`
	DependentSemiProduct string                   `gorm:"column:dependent_semi_product;type:varchar(100)" json:"dependent_semi_product"`

	Process Process `gorm:"foreignKey:ProcessID" json:"process"`
}

func (ProductRoute) TableName() string {
	return "product_routes"
}

// StandardCapacity is the planned throughput of a product on a process.
// The active row with the highest version applies.
type StandardCapacity struct {
	ID                   uint           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ProductCode          string         `gorm:"column:product_code;type:varchar(100);not null;index:idx_capacity_lookup" json:"product_code"`
	ProcessName          string         `gorm:"column:process_name;type:varchar(100);not null;index:idx_capacity_lookup" json:"process_name"`
	EquipmentType        string         `gorm:"column:equipment_type;type:varchar(50)" json:"equipment_type"`
	OperatorLevel        string         `gorm:"column:operator_level;type:varchar(20)" json:"operator_level"`
	Version              int            `gorm:"column:version;not null;default:1" json:"version"`
	StandardUnitsPerHour int            `gorm:"column:standard_capacity_per_hour;not null" json:"standard_capacity_per_hour"`
	SetupMinutes         int            `gorm:"column:setup_time_minutes;not null;default:0" json:"setup_time_minutes"`
	TeardownMinutes      int            `gorm:"column:teardown_time_minutes;not null;default:0" json:"teardown_time_minutes"`
	CycleTimeSeconds     float64        `gorm:"column:cycle_time_seconds;type:decimal(10,2);not null;default:0" json:"cycle_time_seconds"`
	OptimalBatchSize     int            `gorm:"column:optimal_batch_size;not null;default:0" json:"optimal_batch_size"`
	MinBatchSize         int            `gorm:"column:min_batch_size;not null;default:0" json:"min_batch_size"`
	MaxBatchSize         int            `gorm:"column:max_batch_size;not null;default:0" json:"max_batch_size"`
	EfficiencyFactor     float64        `gorm:"column:efficiency_factor;type:decimal(5,2);not null;default:1" json:"efficiency_factor"`
	LearningCurveFactor  float64        `gorm:"column:learning_curve_factor;type:decimal(5,2);not null;default:1" json:"learning_curve_factor"`
	ExpectedDefectRate   float64        `gorm:"column:expected_defect_rate;type:decimal(5,2);not null;default:0" json:"expected_defect_rate"`
	ReworkTimeFactor     float64        `gorm:"column:rework_time_factor;type:decimal(5,2);not null;default:1" json:"rework_time_factor"`
	EffectiveDate        *datatypes.Date `gorm:"column:effective_date" json:"effective_date"`
	IsActive             bool           `gorm:"column:is_active;not null" json:"is_active"`
	CreatedAt            time.Time      `gorm:"column:created_at" json:"created_at"`
}

func (StandardCapacity) TableName() string {
	return "standard_capacities"
}
