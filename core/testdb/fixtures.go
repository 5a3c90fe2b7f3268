package testdb

import (
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	catalogEntity "mes.GO/model/entity/catalog"
	reportEntity "mes.GO/model/entity/report"
	workorderEntity "mes.GO/model/entity/workorder"
)

// Processes makes sure a catalog process exists for every name.
func Processes(t testing.TB, db *gorm.DB, names ...string) {
	t.Helper()
	for _, n := range names {
		p := catalogEntity.Process{Name: n}
		if err := db.Where("name = ?", n).FirstOrCreate(&p).Error; err != nil {
			t.Fatalf("process %s: %v", n, err)
		}
	}
}

// WorkOrder inserts a pending work order for company ACME with one process row per step.
func WorkOrder(t testing.TB, db *gorm.DB, order string, qty int, steps ...string) *workorderEntity.WorkOrder {
	t.Helper()
	Processes(t, db, steps...)
	wo := &workorderEntity.WorkOrder{
		CompanyCode: "ACME",
		OrderNumber: order,
		ProductCode: "P-" + order,
		Quantity:    qty,
		Status:      workorderEntity.StatusPending,
		Source:      workorderEntity.SourceManual,
	}
	if err := db.Create(wo).Error; err != nil {
		t.Fatalf("workorder %s: %v", order, err)
	}
	for i, name := range steps {
		p := &workorderEntity.WorkOrderProcess{
			WorkOrderID:        wo.ID,
			StepOrder:          i + 1,
			ProcessName:        name,
			PlannedQuantity:    qty,
			TargetHourlyOutput: 1000,
			Status:             workorderEntity.StatusPending,
			CapacityMultiplier: 1,
		}
		if err := db.Create(p).Error; err != nil {
			t.Fatalf("process row %s: %v", name, err)
		}
	}
	return wo
}

// ReportSpec describes an approved report for Report.
type ReportSpec struct {
	Kind    string // defaults to operator
	Process string
	Worker  string // operator, machine or supervisor depending on Kind
	Day     datatypes.Date
	Hours   float64 // starts at 08:00
	Work    int
	Defect  int
}

// Report inserts an approved report directly, bypassing validation and events.
func Report(t testing.TB, db *gorm.DB, wo *workorderEntity.WorkOrder, spec ReportSpec) *reportEntity.Report {
	t.Helper()
	Processes(t, db, spec.Process)
	var proc catalogEntity.Process
	if err := db.Where("name = ?", spec.Process).First(&proc).Error; err != nil {
		t.Fatalf("process %s: %v", spec.Process, err)
	}
	if spec.Kind == "" {
		spec.Kind = reportEntity.KindOperator
	}
	if time.Time(spec.Day).IsZero() {
		now := time.Now()
		spec.Day = datatypes.Date(time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local))
	}
	end := 8*60 + int(spec.Hours*60)
	now := time.Now()
	rep := &reportEntity.Report{
		Kind:           spec.Kind,
		WorkOrderID:    wo.ID,
		ProcessID:      proc.ID,
		ProcessName:    spec.Process,
		WorkDate:       spec.Day,
		StartTime:      datatypes.NewTime(8, 0, 0, 0),
		EndTime:        datatypes.NewTime((end/60)%24, end%60, 0, 0),
		WorkHours:      spec.Hours,
		WorkQuantity:   spec.Work,
		DefectQuantity: spec.Defect,
		ApprovalStatus: reportEntity.StatusApproved,
		ApprovedBy:     "fixture",
		ApprovedAt:     &now,
	}
	switch spec.Kind {
	case reportEntity.KindSMT:
		rep.Operator, rep.Equipment = reportEntity.SMTOperator, spec.Worker
	case reportEntity.KindSupervisor:
		rep.Supervisor = spec.Worker
	default:
		rep.Operator = spec.Worker
	}
	if err := db.Create(rep).Error; err != nil {
		t.Fatalf("report: %v", err)
	}
	return rep
}

// SetCompleted writes completed_quantity on the work order's process rows named process.
func SetCompleted(t testing.TB, db *gorm.DB, wo *workorderEntity.WorkOrder, process string, qty int) {
	t.Helper()
	err := db.Model(&workorderEntity.WorkOrderProcess{}).
		Where("work_order_id = ? AND process_name = ?", wo.ID, process).
		Update("completed_quantity", qty).Error
	if err != nil {
		t.Fatalf("completed quantity: %v", err)
	}
}
