package report

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"mes.GO/core/errs"
	"mes.GO/core/events"
	"mes.GO/core/testdb"
	"mes.GO/core/worktime"
	reportEntity "mes.GO/model/entity/report"
	systemEntity "mes.GO/model/entity/system"
	workorderEntity "mes.GO/model/entity/workorder"
	catalogService "mes.GO/service/catalog"
	workorderService "mes.GO/service/workorder"
)

type fixture struct {
	db  *gorm.DB
	svc *Service
	bus *events.Bus
	wo  *workorderEntity.WorkOrder
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testdb.Open(t)
	cat := catalogService.NewService(db)
	wos := workorderService.NewService(db, cat, nil)
	bus := events.NewBus()
	return &fixture{
		db:  db,
		svc: NewService(db, cat, wos, bus, DefaultOptions(), nil),
		bus: bus,
		wo:  testdb.WorkOrder(t, db, "MO-R", 100, "SMT", "Test"),
	}
}

func (f *fixture) input(start, end string, work, defect int) SubmitInput {
	return SubmitInput{
		Kind:           reportEntity.KindOperator,
		WorkOrderID:    f.wo.ID,
		ProcessName:    "SMT",
		Operator:       "alice",
		WorkDate:       worktime.Date(2024, 1, 15),
		StartTime:      mustClock(start),
		EndTime:        mustClock(end),
		WorkQuantity:   work,
		DefectQuantity: defect,
	}
}

func mustClock(s string) datatypes.Time {
	c, err := worktime.ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func TestSubmit_ComputesHours(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	rep, err := f.svc.Submit(ctx, f.input("08:00", "17:30", 40, 1))
	require.NoError(t, err)
	assert.Equal(t, reportEntity.StatusPending, rep.ApprovalStatus)
	assert.Equal(t, 9.5, rep.WorkHours)
	assert.Equal(t, 1.5, rep.OvertimeHours)
	assert.NotZero(t, rep.ProcessID)

	in := f.input("08:00", "17:00", 10, 0)
	in.HasBreak = true
	bs, be := mustClock("12:00"), mustClock("12:45")
	in.BreakStartTime, in.BreakEndTime = &bs, &be
	rep, err = f.svc.Submit(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 0.75, rep.BreakHours)
	assert.Equal(t, 8.25, rep.WorkHours)
}

func TestSubmit_CrossesMidnight(t *testing.T) {
	f := setup(t)
	in := f.input("22:00", "06:00", 30, 0)
	in.HasBreak = true
	bs, be := mustClock("02:00"), mustClock("02:30")
	in.BreakStartTime, in.BreakEndTime = &bs, &be
	rep, err := f.svc.Submit(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 7.5, rep.WorkHours)
	assert.Zero(t, rep.OvertimeHours)
}

func TestSubmit_Rejects(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	outside := f.input("08:00", "12:00", 1, 0)
	outside.HasBreak = true
	bs, be := mustClock("13:00"), mustClock("13:30")
	outside.BreakStartTime, outside.BreakEndTime = &bs, &be

	longBreak := f.input("08:00", "09:00", 1, 0)
	longBreak.BreakHours = 2

	noOperator := f.input("08:00", "12:00", 1, 0)
	noOperator.Operator = ""

	smtNoEquipment := f.input("08:00", "12:00", 1, 0)
	smtNoEquipment.Kind = reportEntity.KindSMT

	cases := map[string]SubmitInput{
		"equal start and end":  f.input("08:00", "08:00", 1, 0),
		"negative quantity":    f.input("08:00", "12:00", -1, 0),
		"over sanity limit":    f.input("08:00", "12:00", 900, 101),
		"break outside shift":  outside,
		"break longer":         longBreak,
		"operator missing":     noOperator,
		"smt without machine":  smtNoEquipment,
	}
	for name, in := range cases {
		_, err := f.svc.Submit(ctx, in)
		assert.True(t, errors.Is(err, errs.ErrInvariantViolation), "%s: %v", name, err)
	}

	unknownProcess := f.input("08:00", "12:00", 1, 0)
	unknownProcess.ProcessName = "Reflow"
	_, err := f.svc.Submit(ctx, unknownProcess)
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	missingWO := f.input("08:00", "12:00", 1, 0)
	missingWO.WorkOrderID = 9999
	_, err = f.svc.Submit(ctx, missingWO)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestSubmit_SMTUsesMachineOperator(t *testing.T) {
	f := setup(t)
	in := f.input("08:00", "12:00", 10, 0)
	in.Kind = reportEntity.KindSMT
	in.Operator = ""
	in.Equipment = "SMT-1"
	rep, err := f.svc.Submit(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, reportEntity.SMTOperator, rep.Operator)
	assert.Equal(t, "SMT-1", rep.WorkerName())
}

func TestApproveLifecycle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	var seen []events.Event
	f.bus.Subscribe(events.TopicReportApproved, func(_ context.Context, ev events.Event) error {
		seen = append(seen, ev)
		return nil
	})
	f.bus.Subscribe(events.TopicReportApprovalCancelled, func(_ context.Context, ev events.Event) error {
		seen = append(seen, ev)
		return nil
	})

	rep, err := f.svc.Submit(ctx, f.input("08:00", "12:00", 30, 0))
	require.NoError(t, err)

	rep, err = f.svc.Approve(ctx, rep.ID, "lead")
	require.NoError(t, err)
	assert.Equal(t, reportEntity.StatusApproved, rep.ApprovalStatus)
	assert.Equal(t, "lead", rep.ApprovedBy)
	require.Len(t, seen, 1)
	assert.Equal(t, events.ReportApproved{ReportID: rep.ID, WorkOrderID: f.wo.ID, ApprovedBy: "lead"}, seen[0])

	// first approval starts the work order and the process row
	wo, err := f.svc.workorders.Get(ctx, f.wo.ID)
	require.NoError(t, err)
	assert.Equal(t, workorderEntity.StatusInProgress, wo.Status)
	procs, err := f.svc.workorders.ListProcesses(ctx, f.wo.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, procs[0].CompletedQuantity)
	assert.Equal(t, workorderEntity.StatusInProgress, procs[0].Status)
	assert.Equal(t, 0, procs[1].CompletedQuantity)

	_, err = f.svc.Approve(ctx, rep.ID, "lead")
	assert.True(t, errors.Is(err, errs.ErrIllegalTransition))
	_, err = f.svc.Correct(ctx, rep.ID, CorrectInput{})
	assert.True(t, errors.Is(err, errs.ErrIllegalTransition))

	rep, err = f.svc.CancelApprove(ctx, rep.ID, "lead")
	require.NoError(t, err)
	assert.Equal(t, reportEntity.StatusPending, rep.ApprovalStatus)
	assert.Zero(t, rep.AllocatedQty)
	assert.Contains(t, rep.Remarks, "approval cancelled by lead")
	require.Len(t, seen, 2)

	procs, err = f.svc.workorders.ListProcesses(ctx, f.wo.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, procs[0].CompletedQuantity)
	assert.Equal(t, workorderEntity.StatusPending, procs[0].Status)

	defect := 5
	rep, err = f.svc.Correct(ctx, rep.ID, CorrectInput{DefectQuantity: &defect})
	require.NoError(t, err)
	assert.Equal(t, 5, rep.DefectQuantity)

	rep, err = f.svc.Reject(ctx, rep.ID, "lead", "wrong lot")
	require.NoError(t, err)
	assert.Equal(t, reportEntity.StatusRejected, rep.ApprovalStatus)
	_, err = f.svc.CancelApprove(ctx, rep.ID, "lead")
	assert.True(t, errors.Is(err, errs.ErrIllegalTransition))
	_, err = f.svc.Approve(ctx, 9999, "lead")
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestEligible(t *testing.T) {
	rule := DefaultRule()
	rule.ExcludedOperators = datatypes.NewJSONSlice([]string{"mallory"})
	rule.ExcludedProcesses = datatypes.NewJSONSlice([]string{"Rework"})

	base := reportEntity.Report{Operator: "alice", ProcessName: "SMT", WorkHours: 8, WorkQuantity: 95, DefectQuantity: 5}
	ok, _ := Eligible(rule, &base)
	assert.True(t, ok, "5%% defect rate is at the limit")

	cases := map[string]func(r *reportEntity.Report){
		"excluded operator":  func(r *reportEntity.Report) { r.Operator = "mallory" },
		"excluded process":   func(r *reportEntity.Report) { r.ProcessName = "Rework" },
		"too many hours":     func(r *reportEntity.Report) { r.WorkHours = 12.5 },
		"defect rate":        func(r *reportEntity.Report) { r.DefectQuantity = 6 },
		"too much overtime":  func(r *reportEntity.Report) { r.OvertimeHours = 4.5 },
	}
	for name, mutate := range cases {
		r := base
		mutate(&r)
		ok, reason := Eligible(rule, &r)
		assert.False(t, ok, name)
		assert.NotEmpty(t, reason, name)
	}

	// exclusion wins even when every threshold passes
	r := base
	r.Kind = reportEntity.KindSupervisor
	r.Operator = ""
	r.Supervisor = "mallory"
	ok, _ = Eligible(rule, &r)
	assert.False(t, ok)

	// a supervisor co-signing an operator report counts too
	r = base
	r.Supervisor = "mallory"
	assert.Equal(t, []string{"alice", "mallory"}, r.Reporters())
	ok, reason := Eligible(rule, &r)
	assert.False(t, ok)
	assert.Contains(t, reason, "reporter mallory excluded")

	assert.Empty(t, (&reportEntity.Report{Kind: reportEntity.KindSMT, Equipment: "E1"}).Reporters())
	assert.Zero(t, DefectRate(&reportEntity.Report{}))
}

func TestAutoApprove(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	good, err := f.svc.Submit(ctx, f.input("08:00", "16:00", 50, 1))
	require.NoError(t, err)
	defective, err := f.svc.Submit(ctx, f.input("08:00", "16:00", 50, 20))
	require.NoError(t, err)
	long, err := f.svc.Submit(ctx, f.input("06:00", "20:00", 50, 0))
	require.NoError(t, err)

	res, err := f.svc.AutoApprove(ctx, DefaultRule())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Checked)
	assert.Equal(t, 1, res.Approved)
	assert.Equal(t, 2, res.Skipped)
	assert.Len(t, res.Reasons, 2)

	for id, want := range map[uint]string{
		good.ID:      reportEntity.StatusApproved,
		defective.ID: reportEntity.StatusPending,
		long.ID:      reportEntity.StatusPending,
	} {
		rep, err := f.svc.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, rep.ApprovalStatus)
	}
	rep, _ := f.svc.Get(ctx, good.ID)
	assert.Equal(t, "auto-approval:default", rep.ApprovedBy)

	// nothing left that passes
	res, err = f.svc.AutoApprove(ctx, systemEntity.AutoApprovalRule{Name: "strict", MaxWorkHours: 1})
	require.NoError(t, err)
	assert.Zero(t, res.Approved)
}
