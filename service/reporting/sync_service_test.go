package reporting

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"mes.GO/core/errs"
	"mes.GO/core/events"
	"mes.GO/core/lock"
	"mes.GO/core/testdb"
	"mes.GO/core/worktime"
	reportEntity "mes.GO/model/entity/report"
	systemEntity "mes.GO/model/entity/system"
)

var day = worktime.Date(2024, 1, 15)

func setup(t *testing.T) (*gorm.DB, *Service) {
	t.Helper()
	db := testdb.Open(t)
	return db, NewService(db, nil, Options{}, nil)
}

func TestAutoWindow(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 4, 0, 0, time.Local)
	from, to := AutoWindow(now, 7)
	assert.Equal(t, "2024-03-04", worktime.DayKey(from))
	assert.Equal(t, "2024-03-10", worktime.DayKey(to))

	from, to = AutoWindow(now, 0)
	assert.Equal(t, "2024-03-04", worktime.DayKey(from))
	from, _ = AutoWindow(now, 1)
	assert.Equal(t, worktime.DayKey(to), worktime.DayKey(from))
}

func TestSyncWorkTime_Idempotent(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()
	wo := testdb.WorkOrder(t, db, "MO-S5", 100, "SMT")
	var reps []*reportEntity.Report
	for i := 0; i < 5; i++ {
		reps = append(reps, testdb.Report(t, db, wo, testdb.ReportSpec{
			Process: "SMT",
			Worker:  fmt.Sprintf("op-%d", i+1),
			Day:     day,
			Hours:   2,
			Work:    10,
		}))
	}
	// outside the window
	testdb.Report(t, db, wo, testdb.ReportSpec{Process: "SMT", Worker: "late", Day: worktime.Date(2024, 1, 16), Hours: 1, Work: 1})

	first, err := svc.SyncWorkTime(ctx, day, day)
	require.NoError(t, err)
	assert.Equal(t, systemEntity.SyncSuccess, first.Status)
	assert.Equal(t, 5, first.RecordsCreated)
	assert.Equal(t, 0, first.RecordsUpdated)
	assert.NotNil(t, first.CompletedAt)

	second, err := svc.SyncWorkTime(ctx, day, day)
	require.NoError(t, err)
	assert.Equal(t, 5, second.RecordsProcessed)
	assert.Equal(t, 0, second.RecordsCreated)
	assert.Equal(t, 0, second.RecordsUpdated)

	require.NoError(t, db.Model(reps[2]).Update("defect_quantity", 5).Error)
	third, err := svc.SyncWorkTime(ctx, day, day)
	require.NoError(t, err)
	assert.Equal(t, 0, third.RecordsCreated)
	assert.Equal(t, 1, third.RecordsUpdated)

	rows, err := svc.WorkTimeRows(ctx, day, day)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	for _, r := range rows {
		if r.WorkerName != "op-3" {
			assert.Equal(t, 100.0, r.YieldRate)
			continue
		}
		assert.Equal(t, 5, r.DefectQuantity)
		assert.InDelta(t, 66.67, r.YieldRate, 0.01)
		assert.Equal(t, 5.0, r.EfficiencyRate)
		assert.Equal(t, "operator_report", r.DataSource)
		assert.Equal(t, "MO-S5", r.WorkorderNumber)
	}
}

func TestSyncWorkTime_IgnoresUnapproved(t *testing.T) {
	db, svc := setup(t)
	wo := testdb.WorkOrder(t, db, "MO-PEND", 10, "SMT")
	rep := testdb.Report(t, db, wo, testdb.ReportSpec{Process: "SMT", Worker: "alice", Day: day, Hours: 1, Work: 3})
	require.NoError(t, db.Model(rep).Update("approval_status", reportEntity.StatusPending).Error)

	entry, err := svc.SyncWorkTime(context.Background(), day, day)
	require.NoError(t, err)
	assert.Equal(t, 0, entry.RecordsProcessed)
}

func TestSyncWorkOrder_Summary(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()
	wo := testdb.WorkOrder(t, db, "MO-WO", 50, "SMT", "Test")
	testdb.Report(t, db, wo, testdb.ReportSpec{Process: "SMT", Worker: "bob", Day: day, Hours: 2, Work: 20, Defect: 5})
	testdb.Report(t, db, wo, testdb.ReportSpec{Kind: reportEntity.KindSMT, Process: "SMT", Worker: "E5", Day: day, Hours: 3, Work: 10})
	testdb.Report(t, db, wo, testdb.ReportSpec{Kind: reportEntity.KindSupervisor, Process: "Test", Worker: "alice", Day: day, Hours: 1, Work: 0})

	entry, err := svc.SyncWorkOrder(ctx, day, day)
	require.NoError(t, err)
	assert.Equal(t, 1, entry.RecordsCreated)

	rows, err := svc.WorkOrderRows(ctx, day, day)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	r := rows[0]
	assert.Equal(t, 30, r.CompletedQuantity)
	assert.Equal(t, 5, r.DefectQuantity)
	assert.Equal(t, 60.0, r.CompletionRate)
	assert.InDelta(t, 85.71, r.YieldRate, 0.01)
	assert.Equal(t, 6.0, r.TotalWorkHours)
	assert.Equal(t, 3, r.ReportCount)
	assert.Equal(t, "alice, bob", r.AssignedOperators)
	assert.Equal(t, "E5", r.AssignedEquipment)

	again, err := svc.SyncWorkOrder(ctx, day, day)
	require.NoError(t, err)
	assert.Equal(t, 0, again.RecordsCreated)
	assert.Equal(t, 0, again.RecordsUpdated)
}

func TestSyncAll_Guards(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()

	_, err := svc.SyncAll(ctx, worktime.Date(2024, 1, 16), day, false)
	assert.True(t, errors.Is(err, errs.ErrInvariantViolation))

	release, err := lock.NewDBLocker(db).TryLock(ctx, lock.KeyReportSync, time.Minute)
	require.NoError(t, err)
	_, err = svc.SyncAll(ctx, day, day, true)
	assert.True(t, errors.Is(err, errs.ErrSyncAlreadyRunning))
	release()

	running := &systemEntity.SyncLog{
		RunID:       "stuck",
		SyncType:    systemEntity.SyncTypeAll,
		PeriodStart: day,
		PeriodEnd:   day,
		Status:      systemEntity.SyncRunning,
		StartedAt:   time.Now(),
	}
	require.NoError(t, db.Create(running).Error)
	_, err = svc.SyncAll(ctx, day, day, false)
	assert.True(t, errors.Is(err, errs.ErrSyncAlreadyRunning))

	entry, err := svc.SyncAll(ctx, day, day, true)
	require.NoError(t, err)
	assert.Equal(t, systemEntity.SyncSuccess, entry.Status)

	logs, err := svc.Logs(ctx, systemEntity.SyncTypeAll, 10)
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

func TestSubscribe_SyncsOnApprove(t *testing.T) {
	db := testdb.Open(t)
	svc := NewService(db, nil, Options{OnApprove: true}, nil)
	bus := events.NewBus()
	svc.Subscribe(bus)

	wo := testdb.WorkOrder(t, db, "MO-EV", 10, "SMT")
	a := testdb.Report(t, db, wo, testdb.ReportSpec{Process: "SMT", Worker: "alice", Day: day, Hours: 1, Work: 4})
	require.NoError(t, bus.Publish(context.Background(), events.ReportApproved{ReportID: a.ID, WorkOrderID: wo.ID}))

	rows, err := svc.WorkTimeRows(context.Background(), day, day)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 4, rows[0].CompletedQuantity)

	// publishing twice leaves one row
	require.NoError(t, bus.Publish(context.Background(), events.ReportApproved{ReportID: a.ID, WorkOrderID: wo.ID}))
	rows, err = svc.WorkTimeRows(context.Background(), day, day)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSync_RemovesWithdrawnRows(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()
	wo := testdb.WorkOrder(t, db, "MO-WD", 20, "SMT")
	other := testdb.WorkOrder(t, db, "MO-GONE", 20, "SMT")
	testdb.Report(t, db, wo, testdb.ReportSpec{Process: "SMT", Worker: "alice", Day: day, Hours: 2, Work: 8})
	bob := testdb.Report(t, db, wo, testdb.ReportSpec{Process: "SMT", Worker: "bob", Day: day, Hours: 3, Work: 9})
	gone := testdb.Report(t, db, other, testdb.ReportSpec{Process: "SMT", Worker: "carol", Day: day, Hours: 1, Work: 2})

	first, err := svc.SyncAll(ctx, day, day, false)
	require.NoError(t, err)
	assert.Equal(t, 5, first.RecordsCreated)

	require.NoError(t, db.Model(bob).Update("approval_status", reportEntity.StatusPending).Error)
	require.NoError(t, db.Model(gone).Update("approval_status", reportEntity.StatusRejected).Error)

	second, err := svc.SyncAll(ctx, day, day, false)
	require.NoError(t, err)
	assert.Equal(t, 0, second.RecordsCreated)
	// bob's and carol's work-time rows, MO-GONE's summary, MO-WD's changed summary
	assert.Equal(t, 4, second.RecordsUpdated)

	rows, err := svc.WorkTimeRows(ctx, day, day)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "alice", rows[0].WorkerName)

	summaries, err := svc.WorkOrderRows(ctx, day, day)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "MO-WD", summaries[0].WorkorderNumber)
	assert.Equal(t, 8, summaries[0].CompletedQuantity)

	third, err := svc.SyncAll(ctx, day, day, false)
	require.NoError(t, err)
	assert.Equal(t, 0, third.RecordsUpdated)
}

func TestSubscribe_ResyncsOnCancel(t *testing.T) {
	db := testdb.Open(t)
	svc := NewService(db, nil, Options{OnApprove: true}, nil)
	bus := events.NewBus()
	svc.Subscribe(bus)
	ctx := context.Background()

	wo := testdb.WorkOrder(t, db, "MO-CX", 10, "SMT")
	a := testdb.Report(t, db, wo, testdb.ReportSpec{Process: "SMT", Worker: "alice", Day: day, Hours: 1, Work: 4})
	require.NoError(t, bus.Publish(ctx, events.ReportApproved{ReportID: a.ID, WorkOrderID: wo.ID}))

	require.NoError(t, db.Model(a).Update("approval_status", reportEntity.StatusPending).Error)
	require.NoError(t, bus.Publish(ctx, events.ReportApprovalCancelled{ReportID: a.ID, WorkOrderID: wo.ID}))

	rows, err := svc.WorkTimeRows(ctx, day, day)
	require.NoError(t, err)
	assert.Empty(t, rows)

	err = bus.Publish(ctx, events.ReportApprovalCancelled{ReportID: 9999})
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}
