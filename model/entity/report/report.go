package report

import (
	"time"

	"gorm.io/datatypes"
)

// Report kinds.
const (
	KindOperator   = "operator"
	KindSMT        = "smt"
	KindSupervisor = "supervisor"
)

// Approval states.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// SMTOperator is the operator value stamped on machine-submitted reports.
const SMTOperator = "SMT-equipment"

// Report is a single work report. Operator, SMT and supervisor reports share
// this table and are told apart by Kind.
type Report struct {
	ID               uint            `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Kind             string          `gorm:"column:kind;type:varchar(20);not null;index" json:"kind"`
	WorkOrderID      uint            `gorm:"column:work_order_id;not null;index" json:"work_order_id"`
	ProcessID        uint            `gorm:"column:process_id;not null" json:"process_id"`
	ProcessName      string          `gorm:"column:process_name;type:varchar(100);not null" json:"process_name"`
	Operator         string          `gorm:"column:operator;type:varchar(100)" json:"operator"`
	Equipment        string          `gorm:"column:equipment;type:varchar(100)" json:"equipment"`
	Supervisor       string          `gorm:"column:supervisor;type:varchar(100)" json:"supervisor"`
	WorkDate         datatypes.Date  `gorm:"column:work_date;not null;index" json:"work_date"`
	StartTime        datatypes.Time  `gorm:"column:start_time;not null" json:"start_time"`
	EndTime          datatypes.Time  `gorm:"column:end_time;not null" json:"end_time"`
	HasBreak         bool            `gorm:"column:has_break;not null" json:"has_break"`
	BreakStartTime   *datatypes.Time `gorm:"column:break_start_time" json:"break_start_time,omitempty"`
	BreakEndTime     *datatypes.Time `gorm:"column:break_end_time" json:"break_end_time,omitempty"`
	BreakHours       float64         `gorm:"column:break_hours;type:decimal(5,2);not null;default:0" json:"break_hours"`
	WorkHours        float64         `gorm:"column:work_hours_calculated;type:decimal(6,2);not null;default:0" json:"work_hours_calculated"`
	OvertimeHours    float64         `gorm:"column:overtime_hours_calculated;type:decimal(6,2);not null;default:0" json:"overtime_hours_calculated"`
	WorkQuantity     int             `gorm:"column:work_quantity;not null;default:0" json:"work_quantity"`
	DefectQuantity   int             `gorm:"column:defect_quantity;not null;default:0" json:"defect_quantity"`
	IsCompleted      bool            `gorm:"column:is_completed;not null" json:"is_completed"`
	ApprovalStatus   string          `gorm:"column:approval_status;type:varchar(20);not null;index" json:"approval_status"`
	ApprovedBy       string          `gorm:"column:approved_by;type:varchar(100)" json:"approved_by"`
	ApprovedAt       *time.Time      `gorm:"column:approved_at" json:"approved_at,omitempty"`
	RejectedBy       string          `gorm:"column:rejected_by;type:varchar(100)" json:"rejected_by"`
	RejectedAt       *time.Time      `gorm:"column:rejected_at" json:"rejected_at,omitempty"`
	RejectionReason  string          `gorm:"column:rejection_reason;type:varchar(500)" json:"rejection_reason"`
	AllocatedQty     int             `gorm:"column:allocated_quantity;not null;default:0" json:"allocated_quantity"`
	AllocationNotes  string          `gorm:"column:allocation_notes;type:text" json:"allocation_notes"`
	Remarks          string          `gorm:"column:remarks;type:text" json:"remarks"`
	AbnormalNotes    string          `gorm:"column:abnormal_notes;type:text" json:"abnormal_notes"`
	CreatedBy        string          `gorm:"column:created_by;type:varchar(100)" json:"created_by"`
	CreatedAt        time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (Report) TableName() string {
	return "production_reports"
}

// WorkerName is who the hours belong to: the operator, the machine, or the supervisor.
func (r *Report) WorkerName() string {
	switch r.Kind {
	case KindSMT:
		return r.Equipment
	case KindSupervisor:
		return r.Supervisor
	}
	return r.Operator
}

// Reporters lists the people named on the report, operator first.
func (r *Report) Reporters() []string {
	var names []string
	for _, n := range []string{r.Operator, r.Supervisor} {
		if n != "" {
			names = append(names, n)
		}
	}
	return names
}
