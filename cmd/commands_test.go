package cmd

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mes.GO/config"
	"mes.GO/core/container"
	"mes.GO/core/testdb"
	"mes.GO/core/worktime"
	reportEntity "mes.GO/model/entity/report"
	reportService "mes.GO/service/report"
)

func newTestContainer(t *testing.T) *container.Container {
	t.Helper()
	return container.New(testdb.Open(t), config.Default(), nil, container.Options{})
}

// useContainer points the commands at cont and captures exit codes.
func useContainer(t *testing.T, cont *container.Container) *[]int {
	t.Helper()
	codes := &[]int{}
	prevOpen, prevExit := openContainer, exitFunc
	openContainer = func() (*container.Container, func(), error) { return cont, func() {}, nil }
	exitFunc = func(code int) { *codes = append(*codes, code) }
	t.Cleanup(func() { openContainer, exitFunc = prevOpen, prevExit })
	return codes
}

func approveReport(t *testing.T, cont *container.Container, woID uint, process, operator string, startHour, endHour, qty int) *reportEntity.Report {
	t.Helper()
	ctx := context.Background()
	rep, err := cont.Reports.Submit(ctx, reportService.SubmitInput{
		Kind:         reportEntity.KindOperator,
		WorkOrderID:  woID,
		ProcessName:  process,
		Operator:     operator,
		WorkDate:     worktime.DateOf(time.Now()),
		StartTime:    worktime.Clock(startHour, 0),
		EndTime:      worktime.Clock(endHour, 0),
		WorkQuantity: qty,
	})
	require.NoError(t, err)
	rep, err = cont.Reports.Approve(ctx, rep.ID, "lead")
	require.NoError(t, err)
	return rep
}

func TestAllocateExitCodes(t *testing.T) {
	cont := newTestContainer(t)
	wo := testdb.WorkOrder(t, cont.DB, "WO-ALLOC", 10, "SMT", "Shipping-Packaging")
	var out bytes.Buffer
	ctx := context.Background()

	assert.Equal(t, allocateFailed, runAllocate(ctx, cont, 9999, true, &out))

	approveReport(t, cont, wo.ID, "Shipping-Packaging", "alice", 8, 10, 4)
	assert.Equal(t, allocateNotCompleted, runAllocate(ctx, cont, wo.ID, false, &out))
	assert.Contains(t, out.String(), "not completed")

	// 4+6 packed on a quantity-10 order completes it
	approveReport(t, cont, wo.ID, "Shipping-Packaging", "bob", 8, 11, 6)
	got, err := cont.WorkOrders.Get(ctx, wo.ID)
	require.NoError(t, err)
	require.Equal(t, "completed", got.Status)

	out.Reset()
	assert.Equal(t, allocateOK, runAllocate(ctx, cont, wo.ID, false, &out))
	assert.Contains(t, out.String(), "10 completed")
}

func TestAllocateCommand_NoProducedQuantity(t *testing.T) {
	cont := newTestContainer(t)
	wo := testdb.WorkOrder(t, cont.DB, "WO-EMPTY", 5, "SMT")
	codes := useContainer(t, cont)

	c := newAllocateCmd()
	var out bytes.Buffer
	c.SetOut(&out)
	c.SetArgs([]string{"--workorder-id", strconv.FormatUint(uint64(wo.ID), 10), "--force"})
	require.NoError(t, c.Execute())
	assert.Equal(t, []int{allocateFailed}, *codes)
	assert.Contains(t, out.String(), "no produced quantity")
}

func TestCommands_OpenFailureExitCodes(t *testing.T) {
	var codes []int
	prevOpen, prevExit := openContainer, exitFunc
	openContainer = func() (*container.Container, func(), error) {
		return nil, nil, errors.New("database connection failed: refused")
	}
	exitFunc = func(code int) { codes = append(codes, code) }
	t.Cleanup(func() { openContainer, exitFunc = prevOpen, prevExit })

	for _, args := range [][]string{{"--workorder-id", "1"}, nil} {
		c := newAllocateCmd()
		if args == nil {
			c = newSyncReportsCmd()
		}
		var stderr bytes.Buffer
		c.SetErr(&stderr)
		c.SetArgs(args)
		require.NoError(t, c.Execute())
		assert.Contains(t, stderr.String(), "refused")
	}
	assert.Equal(t, []int{allocateFailed, 1}, codes)
}

func TestSyncReportsCommand(t *testing.T) {
	cont := newTestContainer(t)
	wo := testdb.WorkOrder(t, cont.DB, "WO-SYNC", 100, "SMT")
	approveReport(t, cont, wo.ID, "SMT", "alice", 8, 12, 40)
	codes := useContainer(t, cont)

	c := newSyncReportsCmd()
	var out bytes.Buffer
	c.SetOut(&out)
	c.SetArgs([]string{"--auto"})
	require.NoError(t, c.Execute())
	assert.Equal(t, []int{0}, *codes)
	assert.Contains(t, out.String(), "Status:     success")

	rows, err := cont.Reporting.WorkTimeRows(context.Background(), worktime.DateOf(time.Now()), worktime.DateOf(time.Now()))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 40, rows[0].CompletedQuantity)
}

func TestSyncReportsCommand_Failures(t *testing.T) {
	cont := newTestContainer(t)
	ctx := context.Background()
	var out bytes.Buffer

	assert.Equal(t, 1, runSyncReports(ctx, cont, &syncReportsFlags{syncType: "weekly", auto: true}, &out))
	assert.Equal(t, 1, runSyncReports(ctx, cont, &syncReportsFlags{syncType: "all", from: "2024-05-10"}, &out))
	assert.Equal(t, 1, runSyncReports(ctx, cont, &syncReportsFlags{syncType: "all", from: "2024-05-10", to: "2024-05-01"}, &out))
	assert.Equal(t, 0, runSyncReports(ctx, cont, &syncReportsFlags{syncType: "work_time", from: "2024-05-01", to: "2024-05-10"}, &out))
}
