package resolvers

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"mes.GO/core/container"
	"mes.GO/core/errs"
	gqlmodels "mes.GO/graphql/models"
	reportRepo "mes.GO/model/repository/report"
	systemRepo "mes.GO/model/repository/system"
	workorderRepo "mes.GO/model/repository/workorder"
)

const maxLimit = 500

// QueryResolver reads monitoring data through the service container.
type QueryResolver struct {
	c *container.Container
}

func NewResolver(c *container.Container) *QueryResolver {
	return &QueryResolver{c: c}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func (r *QueryResolver) SyncLogs(ctx context.Context, syncType string, limit int) ([]*gqlmodels.SyncLog, error) {
	logs, err := r.c.Reporting.Logs(ctx, syncType, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	out := make([]*gqlmodels.SyncLog, len(logs))
	for i := range logs {
		out[i] = gqlmodels.FromSyncLog(&logs[i])
	}
	return out, nil
}

// WorkOrder returns the work order with its processes, approved reports and a
// fresh completion evaluation. Unknown ids resolve to nil.
func (r *QueryResolver) WorkOrder(ctx context.Context, rawID string) (*gqlmodels.WorkOrder, error) {
	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid work order id %q", rawID)
	}
	wo, err := r.c.WorkOrders.Get(ctx, uint(id))
	if errors.Is(err, errs.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := gqlmodels.FromWorkOrder(wo)

	procs, err := r.c.WorkOrders.ListProcesses(ctx, wo.ID)
	if err != nil {
		return nil, err
	}
	out.Processes = make([]*gqlmodels.WorkOrderProcess, len(procs))
	for i := range procs {
		out.Processes[i] = gqlmodels.FromProcess(&procs[i])
	}

	reps, err := reportRepo.NewReportRepository(r.c.DB.WithContext(ctx)).ListApprovedByWorkOrder(wo.ID)
	if err != nil {
		return nil, err
	}
	out.ApprovedReports = make([]*gqlmodels.Report, len(reps))
	for i := range reps {
		out.ApprovedReports[i] = gqlmodels.FromReport(&reps[i])
	}

	res, err := r.c.Completion.Evaluate(ctx, wo.ID)
	if err != nil {
		return nil, err
	}
	out.Completion = &gqlmodels.Completion{
		Complete:      res.Complete,
		Reason:        res.Reason,
		PackagingGood: int32(res.PackagingGood),
		TotalGood:     int32(res.TotalGood),
	}
	return out, nil
}

// WorkOrders lists work order headers, newest first.
func (r *QueryResolver) WorkOrders(ctx context.Context, status string, limit int) ([]*gqlmodels.WorkOrder, error) {
	wos, err := workorderRepo.NewWorkOrderRepository(r.c.DB.WithContext(ctx)).List(status, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	out := make([]*gqlmodels.WorkOrder, len(wos))
	for i := range wos {
		out[i] = gqlmodels.FromWorkOrder(&wos[i])
		out[i].Processes = []*gqlmodels.WorkOrderProcess{}
		out[i].ApprovedReports = []*gqlmodels.Report{}
	}
	return out, nil
}

func (r *QueryResolver) WorkTimeRollups(ctx context.Context, from, to string) ([]*gqlmodels.WorkTimeRollup, error) {
	f, t, err := window(from, to)
	if err != nil {
		return nil, err
	}
	rows, err := r.c.Reporting.WorkTimeRows(ctx, f, t)
	if err != nil {
		return nil, err
	}
	out := make([]*gqlmodels.WorkTimeRollup, len(rows))
	for i := range rows {
		out[i] = gqlmodels.FromWorkTime(&rows[i])
	}
	return out, nil
}

func (r *QueryResolver) WorkOrderRollups(ctx context.Context, from, to string) ([]*gqlmodels.WorkOrderRollup, error) {
	f, t, err := window(from, to)
	if err != nil {
		return nil, err
	}
	rows, err := r.c.Reporting.WorkOrderRows(ctx, f, t)
	if err != nil {
		return nil, err
	}
	out := make([]*gqlmodels.WorkOrderRollup, len(rows))
	for i := range rows {
		out[i] = gqlmodels.FromWorkOrderRollup(&rows[i])
	}
	return out, nil
}

func (r *QueryResolver) ScheduledTasks(ctx context.Context) ([]*gqlmodels.ScheduledTask, error) {
	tasks, err := systemRepo.NewSystemRepository(r.c.DB.WithContext(ctx)).ListTasks()
	if err != nil {
		return nil, err
	}
	out := make([]*gqlmodels.ScheduledTask, len(tasks))
	for i := range tasks {
		out[i] = gqlmodels.FromTask(&tasks[i])
	}
	return out, nil
}
