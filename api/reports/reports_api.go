package reports

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"mes.GO/api"
	"mes.GO/core/auth"
	"mes.GO/core/container"
	"mes.GO/core/worktime"
	reportEntity "mes.GO/model/entity/report"
	reportService "mes.GO/service/report"
)

func init() {
	api.RegisterModule(RegisterReportRoutes)
}

// reportRequest is the wire form of a report. Dates are YYYY-MM-DD, times HH:MM[:SS].
type reportRequest struct {
	WorkOrderID    uint    `json:"work_order_id"`
	ProcessName    string  `json:"process_name"`
	Operator       string  `json:"operator"`
	Equipment      string  `json:"equipment"`
	Supervisor     string  `json:"supervisor"`
	WorkDate       string  `json:"work_date"`
	StartTime      string  `json:"start_time"`
	EndTime        string  `json:"end_time"`
	HasBreak       bool    `json:"has_break"`
	BreakStartTime string  `json:"break_start_time"`
	BreakEndTime   string  `json:"break_end_time"`
	BreakHours     float64 `json:"break_hours"`
	WorkQuantity   int     `json:"work_quantity"`
	DefectQuantity int     `json:"defect_quantity"`
	IsCompleted    bool    `json:"is_completed"`
	Remarks        string  `json:"remarks"`
	AbnormalNotes  string  `json:"abnormal_notes"`
}

func (r reportRequest) toInput(kind, actor string) (reportService.SubmitInput, error) {
	in := reportService.SubmitInput{
		Kind:           kind,
		WorkOrderID:    r.WorkOrderID,
		ProcessName:    r.ProcessName,
		Operator:       r.Operator,
		Equipment:      r.Equipment,
		Supervisor:     r.Supervisor,
		HasBreak:       r.HasBreak,
		BreakHours:     r.BreakHours,
		WorkQuantity:   r.WorkQuantity,
		DefectQuantity: r.DefectQuantity,
		IsCompleted:    r.IsCompleted,
		Remarks:        r.Remarks,
		AbnormalNotes:  r.AbnormalNotes,
		CreatedBy:      actor,
	}
	var err error
	if in.WorkDate, err = worktime.ParseDate(r.WorkDate); err != nil {
		return in, fmt.Errorf("work_date: %w", err)
	}
	if in.StartTime, err = worktime.ParseClock(r.StartTime); err != nil {
		return in, fmt.Errorf("start_time: %w", err)
	}
	if in.EndTime, err = worktime.ParseClock(r.EndTime); err != nil {
		return in, fmt.Errorf("end_time: %w", err)
	}
	if r.BreakStartTime != "" {
		t, err := worktime.ParseClock(r.BreakStartTime)
		if err != nil {
			return in, fmt.Errorf("break_start_time: %w", err)
		}
		in.BreakStartTime = &t
	}
	if r.BreakEndTime != "" {
		t, err := worktime.ParseClock(r.BreakEndTime)
		if err != nil {
			return in, fmt.Errorf("break_end_time: %w", err)
		}
		in.BreakEndTime = &t
	}
	return in, nil
}

func validKind(kind string) bool {
	switch kind {
	case reportEntity.KindOperator, reportEntity.KindSMT, reportEntity.KindSupervisor:
		return true
	}
	return false
}

// RegisterReportRoutes sets up report submission and the approval workflow.
func RegisterReportRoutes(apiGroup *echo.Group, c *container.Container) {
	g := apiGroup.Group("/reports")

	// POST /api/reports/:kind – kind is operator, smt or supervisor
	g.POST("/:kind", func(ec echo.Context) error {
		kind := ec.Param("kind")
		if !validKind(kind) {
			return api.BadRequest(ec, "unknown report kind "+kind)
		}
		var body reportRequest
		if err := ec.Bind(&body); err != nil {
			return api.BadRequest(ec, err.Error())
		}
		in, err := body.toInput(kind, auth.Actor(ec, "api"))
		if err != nil {
			return api.BadRequest(ec, err.Error())
		}
		rep, err := c.Reports.Submit(ec.Request().Context(), in)
		if err != nil {
			return api.Fail(ec, err)
		}
		return ec.JSON(http.StatusCreated, rep)
	})

	g.GET("/:id", func(ec echo.Context) error {
		id, ok := api.IDParam(ec, "id")
		if !ok {
			return api.BadRequest(ec, "invalid report id")
		}
		rep, err := c.Reports.Get(ec.Request().Context(), id)
		if err != nil {
			return api.Fail(ec, err)
		}
		return ec.JSON(http.StatusOK, rep)
	})

	g.POST("/:id/approve", func(ec echo.Context) error {
		id, ok := api.IDParam(ec, "id")
		if !ok {
			return api.BadRequest(ec, "invalid report id")
		}
		rep, err := c.Reports.Approve(ec.Request().Context(), id, auth.Actor(ec, "api"))
		if err != nil {
			return api.Fail(ec, err)
		}
		return ec.JSON(http.StatusOK, rep)
	})

	g.POST("/:id/reject", func(ec echo.Context) error {
		id, ok := api.IDParam(ec, "id")
		if !ok {
			return api.BadRequest(ec, "invalid report id")
		}
		var body struct {
			Reason string `json:"reason"`
		}
		if err := ec.Bind(&body); err != nil {
			return api.BadRequest(ec, err.Error())
		}
		rep, err := c.Reports.Reject(ec.Request().Context(), id, auth.Actor(ec, "api"), body.Reason)
		if err != nil {
			return api.Fail(ec, err)
		}
		return ec.JSON(http.StatusOK, rep)
	})

	g.POST("/:id/cancel-approve", func(ec echo.Context) error {
		id, ok := api.IDParam(ec, "id")
		if !ok {
			return api.BadRequest(ec, "invalid report id")
		}
		rep, err := c.Reports.CancelApprove(ec.Request().Context(), id, auth.Actor(ec, "api"))
		if err != nil {
			return api.Fail(ec, err)
		}
		return ec.JSON(http.StatusOK, rep)
	})
}
