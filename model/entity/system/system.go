package system

import (
	"time"

	"gorm.io/datatypes"
)

// Sync types.
const (
	SyncTypeWorkTime   = "work_time"
	SyncTypeWorkOrder  = "work_order"
	SyncTypeAll        = "all"
	SyncTypeAllocation = "allocation"
)

// Sync statuses.
const (
	SyncRunning = "running"
	SyncSuccess = "success"
	SyncFailed  = "failed"
	SyncPartial = "partial"
)

// SyncLog records one run of a batch stage. Rows are appended and closed, never reused.
type SyncLog struct {
	ID               uint           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	RunID            string         `gorm:"column:run_id;type:varchar(36);not null;uniqueIndex" json:"run_id"`
	SyncType         string         `gorm:"column:sync_type;type:varchar(20);not null;index" json:"sync_type"`
	PeriodStart      datatypes.Date `gorm:"column:period_start" json:"period_start"`
	PeriodEnd        datatypes.Date `gorm:"column:period_end" json:"period_end"`
	Status           string         `gorm:"column:status;type:varchar(20);not null;index" json:"status"`
	RecordsProcessed int            `gorm:"column:records_processed;not null;default:0" json:"records_processed"`
	RecordsCreated   int            `gorm:"column:records_created;not null;default:0" json:"records_created"`
	RecordsUpdated   int            `gorm:"column:records_updated;not null;default:0" json:"records_updated"`
	StartedAt        time.Time      `gorm:"column:started_at;not null;index" json:"started_at"`
	CompletedAt      *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	DurationSeconds  float64        `gorm:"column:duration_seconds;type:decimal(10,3);not null;default:0" json:"duration_seconds"`
	ErrorMessage     string         `gorm:"column:error_message;type:text" json:"error_message"`
}

func (SyncLog) TableName() string {
	return "sync_logs"
}

// Scheduled task kinds.
const (
	TaskInterval  = "interval"
	TaskFixedTime = "fixed_time"
)

// ScheduledTask holds the persisted run state of one scheduler job.
type ScheduledTask struct {
	ID               uint       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name             string     `gorm:"column:name;type:varchar(100);not null;uniqueIndex" json:"name"`
	Kind             string     `gorm:"column:kind;type:varchar(20);not null" json:"kind"`
	IntervalMinutes  int        `gorm:"column:interval_minutes;not null;default:0" json:"interval_minutes"`
	FixedTime        string     `gorm:"column:fixed_time;type:varchar(5)" json:"fixed_time"`
	Enabled          bool       `gorm:"column:enabled;not null" json:"enabled"`
	LastRunAt        *time.Time `gorm:"column:last_run_at" json:"last_run_at,omitempty"`
	NextRunAt        *time.Time `gorm:"column:next_run_at" json:"next_run_at,omitempty"`
	ExecutionCount   int        `gorm:"column:execution_count;not null;default:0" json:"execution_count"`
	SuccessCount     int        `gorm:"column:success_count;not null;default:0" json:"success_count"`
	ErrorCount       int        `gorm:"column:error_count;not null;default:0" json:"error_count"`
	LastErrorMessage string     `gorm:"column:last_error_message;type:text" json:"last_error_message"`
	UpdatedAt        time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (ScheduledTask) TableName() string {
	return "scheduled_tasks"
}

// AutoApprovalRule is one named auto-approval configuration. Several may run side by side.
type AutoApprovalRule struct {
	ID                uint                       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name              string                     `gorm:"column:name;type:varchar(100);not null;uniqueIndex" json:"name"`
	Enabled           bool                       `gorm:"column:enabled;not null" json:"enabled"`
	IntervalMinutes   int                        `gorm:"column:interval_minutes;not null;default:30" json:"interval_minutes"`
	MaxWorkHours      float64                    `gorm:"column:max_work_hours;type:decimal(5,2);not null" json:"max_work_hours"`
	MaxDefectRate     float64                    `gorm:"column:max_defect_rate;type:decimal(5,2);not null" json:"max_defect_rate"`
	MaxOvertimeHours  float64                    `gorm:"column:max_overtime_hours;type:decimal(5,2);not null" json:"max_overtime_hours"`
	ExcludedOperators datatypes.JSONSlice[string] `gorm:"column:excluded_operators" json:"excluded_operators"`
	ExcludedProcesses datatypes.JSONSlice[string] `gorm:"column:excluded_processes" json:"excluded_processes"`
}

func (AutoApprovalRule) TableName() string {
	return "auto_approval_rules"
}

// TaskLock is an advisory lock row. A row past ExpiresAt may be taken over.
type TaskLock struct {
	LockKey   string    `gorm:"column:lock_key;type:varchar(100);primaryKey" json:"lock_key"`
	Owner     string    `gorm:"column:owner;type:varchar(64);not null" json:"owner"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null" json:"expires_at"`
}

func (TaskLock) TableName() string {
	return "task_locks"
}

// OperationLog is a system audit line. Old rows are purged by the log cleanup job.
type OperationLog struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Actor     string    `gorm:"column:actor;type:varchar(100);not null" json:"actor"`
	Action    string    `gorm:"column:action;type:varchar(100);not null" json:"action"`
	Detail    string    `gorm:"column:detail;type:text" json:"detail"`
	CreatedAt time.Time `gorm:"column:created_at;index" json:"created_at"`
}

func (OperationLog) TableName() string {
	return "operation_logs"
}
