package workorders

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/datatypes"

	"mes.GO/api"
	"mes.GO/core/auth"
	"mes.GO/core/container"
	"mes.GO/core/worktime"
	workorderEntity "mes.GO/model/entity/workorder"
	workorderService "mes.GO/service/workorder"
)

func init() {
	api.RegisterModule(RegisterWorkOrderRoutes)
}

type createRequest struct {
	CompanyCode      string `json:"company_code"`
	OrderNumber      string `json:"order_number"`
	ProductCode      string `json:"product_code"`
	Quantity         int    `json:"quantity"`
	PlannedStartDate string `json:"planned_start_date"`
	PlannedEndDate   string `json:"planned_end_date"`
	Expand           bool   `json:"expand"`
}

func optionalDate(field, s string) (*datatypes.Date, error) {
	if s == "" {
		return nil, nil
	}
	d, err := worktime.ParseDate(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return &d, nil
}

// detail is a work order with its process rows.
type detail struct {
	*workorderEntity.WorkOrder
	Processes []workorderEntity.WorkOrderProcess `json:"processes"`
}

// RegisterWorkOrderRoutes sets up work order creation, lifecycle and the
// completion and allocation triggers.
func RegisterWorkOrderRoutes(apiGroup *echo.Group, c *container.Container) {
	g := apiGroup.Group("/workorders")

	// POST /api/workorders – manual work order, optionally expanded right away
	g.POST("", func(ec echo.Context) error {
		var body createRequest
		if err := ec.Bind(&body); err != nil {
			return api.BadRequest(ec, err.Error())
		}
		in := workorderService.CreateInput{
			CompanyCode: body.CompanyCode,
			OrderNumber: body.OrderNumber,
			ProductCode: body.ProductCode,
			Quantity:    body.Quantity,
			Source:      workorderEntity.SourceManual,
		}
		var err error
		if in.PlannedStartDate, err = optionalDate("planned_start_date", body.PlannedStartDate); err != nil {
			return api.BadRequest(ec, err.Error())
		}
		if in.PlannedEndDate, err = optionalDate("planned_end_date", body.PlannedEndDate); err != nil {
			return api.BadRequest(ec, err.Error())
		}
		ctx := ec.Request().Context()
		wo, err := c.WorkOrders.CreateWorkOrder(ctx, in)
		if err != nil {
			return api.Fail(ec, err)
		}
		out := detail{WorkOrder: wo, Processes: []workorderEntity.WorkOrderProcess{}}
		if body.Expand {
			if out.Processes, err = c.WorkOrders.ExpandProcesses(ctx, wo.ID, workorderService.SourceManualExpand); err != nil {
				return api.Fail(ec, err)
			}
		}
		return ec.JSON(http.StatusCreated, out)
	})

	g.GET("/:id", func(ec echo.Context) error {
		id, ok := api.IDParam(ec, "id")
		if !ok {
			return api.BadRequest(ec, "invalid work order id")
		}
		ctx := ec.Request().Context()
		wo, err := c.WorkOrders.Get(ctx, id)
		if err != nil {
			return api.Fail(ec, err)
		}
		procs, err := c.WorkOrders.ListProcesses(ctx, id)
		if err != nil {
			return api.Fail(ec, err)
		}
		return ec.JSON(http.StatusOK, detail{WorkOrder: wo, Processes: procs})
	})

	g.POST("/:id/expand", func(ec echo.Context) error {
		id, ok := api.IDParam(ec, "id")
		if !ok {
			return api.BadRequest(ec, "invalid work order id")
		}
		procs, err := c.WorkOrders.ExpandProcesses(ec.Request().Context(), id, workorderService.SourceManualExpand)
		if err != nil {
			return api.Fail(ec, err)
		}
		return ec.JSON(http.StatusOK, echo.Map{"processes": procs})
	})

	// POST /api/workorders/:id/transition {"status": "in_progress"}
	g.POST("/:id/transition", func(ec echo.Context) error {
		id, ok := api.IDParam(ec, "id")
		if !ok {
			return api.BadRequest(ec, "invalid work order id")
		}
		var body struct {
			Status string `json:"status"`
		}
		if err := ec.Bind(&body); err != nil || body.Status == "" {
			return api.BadRequest(ec, "status is required")
		}
		wo, err := c.WorkOrders.Transition(ec.Request().Context(), id, body.Status)
		if err != nil {
			return api.Fail(ec, err)
		}
		return ec.JSON(http.StatusOK, wo)
	})

	g.POST("/:id/dispatch", func(ec echo.Context) error {
		id, ok := api.IDParam(ec, "id")
		if !ok {
			return api.BadRequest(ec, "invalid work order id")
		}
		var body struct {
			ProcessName string `json:"process_name"`
			Operator    string `json:"operator"`
			Quantity    int    `json:"quantity"`
		}
		if err := ec.Bind(&body); err != nil {
			return api.BadRequest(ec, err.Error())
		}
		rec, err := c.WorkOrders.Dispatch(ec.Request().Context(), id, body.ProcessName, body.Operator, body.Quantity, auth.Actor(ec, "api"))
		if err != nil {
			return api.Fail(ec, err)
		}
		return ec.JSON(http.StatusCreated, rec)
	})

	// GET /api/workorders/:id/completion – evaluates without transitioning
	g.GET("/:id/completion", func(ec echo.Context) error {
		id, ok := api.IDParam(ec, "id")
		if !ok {
			return api.BadRequest(ec, "invalid work order id")
		}
		res, err := c.Completion.Evaluate(ec.Request().Context(), id)
		if err != nil {
			return api.Fail(ec, err)
		}
		return ec.JSON(http.StatusOK, res)
	})

	// POST /api/workorders/:id/allocate {"force": false}
	g.POST("/:id/allocate", func(ec echo.Context) error {
		id, ok := api.IDParam(ec, "id")
		if !ok {
			return api.BadRequest(ec, "invalid work order id")
		}
		var body struct {
			Force bool `json:"force"`
		}
		if ec.Request().ContentLength > 0 {
			if err := ec.Bind(&body); err != nil {
				return api.BadRequest(ec, err.Error())
			}
		}
		res, err := c.Allocation.Allocate(ec.Request().Context(), id, body.Force)
		if err != nil {
			return api.Fail(ec, err)
		}
		return ec.JSON(http.StatusOK, res)
	})
}
