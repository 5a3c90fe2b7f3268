package models

import (
	"strconv"
	"time"

	gql "github.com/graph-gophers/graphql-go"
	"gorm.io/datatypes"

	"mes.GO/core/worktime"
	reportEntity "mes.GO/model/entity/report"
	reportingEntity "mes.GO/model/entity/reporting"
	systemEntity "mes.GO/model/entity/system"
	workorderEntity "mes.GO/model/entity/workorder"
)

const timeLayout = time.RFC3339

// --- Sync log ---

type SyncLog struct {
	ID               gql.ID
	RunID            string
	SyncType         string
	PeriodStart      string
	PeriodEnd        string
	Status           string
	RecordsProcessed int32
	RecordsCreated   int32
	RecordsUpdated   int32
	StartedAt        string
	CompletedAt      *string
	DurationSeconds  float64
	ErrorMessage     string
}

// --- Work order ---

type WorkOrder struct {
	ID              gql.ID
	CompanyCode     string
	OrderNumber     string
	ProductCode     string
	Quantity        int32
	Status          string
	Source          string
	CompletedAt     *string
	Processes       []*WorkOrderProcess
	ApprovedReports []*Report
	Completion      *Completion
}

type WorkOrderProcess struct {
	StepOrder         int32
	ProcessName       string
	PlannedQuantity   int32
	CompletedQuantity int32
	AssignedOperator  string
	AssignedEquipment string
	Status            string
}

type Report struct {
	ID                gql.ID
	Kind              string
	ProcessName       string
	Worker            string
	WorkDate          string
	WorkHours         float64
	WorkQuantity      int32
	DefectQuantity    int32
	ApprovalStatus    string
	AllocatedQuantity int32
	AllocationNotes   string
}

type Completion struct {
	Complete      bool
	Reason        string
	PackagingGood int32
	TotalGood     int32
}

// --- Rollups ---

type WorkTimeRollup struct {
	ReportDate        string
	WorkerName        string
	WorkerType        string
	WorkorderNumber   string
	ProcessName       string
	StartTime         string
	EndTime           string
	TotalWorkHours    float64
	CompletedQuantity int32
	DefectQuantity    int32
	YieldRate         float64
	EfficiencyRate    float64
	AllocatedQuantity int32
	ReportCount       int32
}

type WorkOrderRollup struct {
	ReportDate        string
	WorkorderNumber   string
	CompanyCode       string
	ProductCode       string
	PlannedQuantity   int32
	CompletedQuantity int32
	DefectQuantity    int32
	CompletionRate    float64
	YieldRate         float64
	QualityScore      float64
	TotalWorkHours    float64
	ReportCount       int32
	AssignedOperators string
	AssignedEquipment string
}

// --- Scheduler ---

type ScheduledTask struct {
	Name             string
	Kind             string
	IntervalMinutes  int32
	FixedTime        string
	Enabled          bool
	LastRunAt        *string
	NextRunAt        *string
	ExecutionCount   int32
	SuccessCount     int32
	ErrorCount       int32
	LastErrorMessage string
}

// --- mappers ---

func id(v uint) gql.ID {
	return gql.ID(strconv.FormatUint(uint64(v), 10))
}

func day(d datatypes.Date) string {
	return worktime.DayKey(d)
}

func stamp(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(timeLayout)
	return &s
}

func FromSyncLog(l *systemEntity.SyncLog) *SyncLog {
	return &SyncLog{
		ID:               id(l.ID),
		RunID:            l.RunID,
		SyncType:         l.SyncType,
		PeriodStart:      day(l.PeriodStart),
		PeriodEnd:        day(l.PeriodEnd),
		Status:           l.Status,
		RecordsProcessed: int32(l.RecordsProcessed),
		RecordsCreated:   int32(l.RecordsCreated),
		RecordsUpdated:   int32(l.RecordsUpdated),
		StartedAt:        l.StartedAt.Format(timeLayout),
		CompletedAt:      stamp(l.CompletedAt),
		DurationSeconds:  l.DurationSeconds,
		ErrorMessage:     l.ErrorMessage,
	}
}

// FromWorkOrder maps the header only. Callers fill processes, reports and completion.
func FromWorkOrder(wo *workorderEntity.WorkOrder) *WorkOrder {
	return &WorkOrder{
		ID:          id(wo.ID),
		CompanyCode: wo.CompanyCode,
		OrderNumber: wo.OrderNumber,
		ProductCode: wo.ProductCode,
		Quantity:    int32(wo.Quantity),
		Status:      wo.Status,
		Source:      wo.Source,
		CompletedAt: stamp(wo.CompletedAt),
	}
}

func FromProcess(p *workorderEntity.WorkOrderProcess) *WorkOrderProcess {
	return &WorkOrderProcess{
		StepOrder:         int32(p.StepOrder),
		ProcessName:       p.ProcessName,
		PlannedQuantity:   int32(p.PlannedQuantity),
		CompletedQuantity: int32(p.CompletedQuantity),
		AssignedOperator:  p.AssignedOperator,
		AssignedEquipment: p.AssignedEquipment,
		Status:            p.Status,
	}
}

func FromReport(r *reportEntity.Report) *Report {
	return &Report{
		ID:                id(r.ID),
		Kind:              r.Kind,
		ProcessName:       r.ProcessName,
		Worker:            r.WorkerName(),
		WorkDate:          day(r.WorkDate),
		WorkHours:         r.WorkHours,
		WorkQuantity:      int32(r.WorkQuantity),
		DefectQuantity:    int32(r.DefectQuantity),
		ApprovalStatus:    r.ApprovalStatus,
		AllocatedQuantity: int32(r.AllocatedQty),
		AllocationNotes:   r.AllocationNotes,
	}
}

func FromWorkTime(r *reportingEntity.WorkTimeRollup) *WorkTimeRollup {
	return &WorkTimeRollup{
		ReportDate:        day(r.ReportDate),
		WorkerName:        r.WorkerName,
		WorkerType:        r.WorkerType,
		WorkorderNumber:   r.WorkorderNumber,
		ProcessName:       r.ProcessName,
		StartTime:         r.StartTime.String(),
		EndTime:           r.EndTime.String(),
		TotalWorkHours:    r.TotalWorkHours,
		CompletedQuantity: int32(r.CompletedQuantity),
		DefectQuantity:    int32(r.DefectQuantity),
		YieldRate:         r.YieldRate,
		EfficiencyRate:    r.EfficiencyRate,
		AllocatedQuantity: int32(r.AllocatedQuantity),
		ReportCount:       int32(r.ReportCount),
	}
}

func FromWorkOrderRollup(r *reportingEntity.WorkOrderProductRollup) *WorkOrderRollup {
	return &WorkOrderRollup{
		ReportDate:        day(r.ReportDate),
		WorkorderNumber:   r.WorkorderNumber,
		CompanyCode:       r.CompanyCode,
		ProductCode:       r.ProductCode,
		PlannedQuantity:   int32(r.PlannedQuantity),
		CompletedQuantity: int32(r.CompletedQuantity),
		DefectQuantity:    int32(r.DefectQuantity),
		CompletionRate:    r.CompletionRate,
		YieldRate:         r.YieldRate,
		QualityScore:      r.QualityScore,
		TotalWorkHours:    r.TotalWorkHours,
		ReportCount:       int32(r.ReportCount),
		AssignedOperators: r.AssignedOperators,
		AssignedEquipment: r.AssignedEquipment,
	}
}

func FromTask(t *systemEntity.ScheduledTask) *ScheduledTask {
	return &ScheduledTask{
		Name:             t.Name,
		Kind:             t.Kind,
		IntervalMinutes:  int32(t.IntervalMinutes),
		FixedTime:        t.FixedTime,
		Enabled:          t.Enabled,
		LastRunAt:        stamp(t.LastRunAt),
		NextRunAt:        stamp(t.NextRunAt),
		ExecutionCount:   int32(t.ExecutionCount),
		SuccessCount:     int32(t.SuccessCount),
		ErrorCount:       int32(t.ErrorCount),
		LastErrorMessage: t.LastErrorMessage,
	}
}
