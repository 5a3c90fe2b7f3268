package pipeline

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/datatypes"

	"mes.GO/api"
	"mes.GO/core/container"
	"mes.GO/core/worktime"
	systemEntity "mes.GO/model/entity/system"
)

func init() {
	api.RegisterModule(RegisterSyncRoutes)
}

type syncRequest struct {
	Type  string `json:"type"`
	From  string `json:"from"`
	To    string `json:"to"`
	Force bool   `json:"force"`
}

func (r syncRequest) window(c *container.Container) (datatypes.Date, datatypes.Date, error) {
	if r.From == "" && r.To == "" {
		from, to := c.Reporting.AutoWindow(time.Now())
		return from, to, nil
	}
	from, err := worktime.ParseDate(r.From)
	if err != nil {
		return from, from, err
	}
	to, err := worktime.ParseDate(r.To)
	return from, to, err
}

// RegisterSyncRoutes exposes the reporting sync, its log and the ERP pulls.
func RegisterSyncRoutes(apiGroup *echo.Group, c *container.Container) {
	g := apiGroup.Group("/sync")

	// POST /api/sync {"type":"all","from":"2024-03-01","to":"2024-03-07"}
	// An empty window means the default window ending today.
	g.POST("", func(ec echo.Context) error {
		body := syncRequest{Type: systemEntity.SyncTypeAll}
		if ec.Request().ContentLength > 0 {
			if err := ec.Bind(&body); err != nil {
				return api.BadRequest(ec, err.Error())
			}
		}
		from, to, err := body.window(c)
		if err != nil {
			return api.BadRequest(ec, err.Error())
		}
		ctx := ec.Request().Context()
		var entry *systemEntity.SyncLog
		switch body.Type {
		case systemEntity.SyncTypeWorkTime:
			entry, err = c.Reporting.SyncWorkTime(ctx, from, to)
		case systemEntity.SyncTypeWorkOrder:
			entry, err = c.Reporting.SyncWorkOrder(ctx, from, to)
		case systemEntity.SyncTypeAll, "":
			entry, err = c.Reporting.SyncAll(ctx, from, to, body.Force)
		default:
			return api.BadRequest(ec, "unknown sync type "+body.Type)
		}
		if err != nil {
			return api.Fail(ec, err)
		}
		return ec.JSON(http.StatusOK, entry)
	})

	// GET /api/sync/logs?type=work_time&limit=20
	g.GET("/logs", func(ec echo.Context) error {
		limit, _ := strconv.Atoi(ec.QueryParam("limit"))
		if limit <= 0 {
			limit = 50
		}
		logs, err := c.Reporting.Logs(ec.Request().Context(), ec.QueryParam("type"), limit)
		if err != nil {
			return api.Fail(ec, err)
		}
		return ec.JSON(http.StatusOK, echo.Map{"logs": logs})
	})

	g.POST("/erp", func(ec echo.Context) error {
		res, err := c.ERP.SyncStagedMOs(ec.Request().Context())
		if err != nil {
			return api.Fail(ec, err)
		}
		return ec.JSON(http.StatusOK, res)
	})

	g.POST("/convert", func(ec echo.Context) error {
		res, err := c.ERP.ConvertStagedMOs(ec.Request().Context())
		if err != nil {
			return api.Fail(ec, err)
		}
		return ec.JSON(http.StatusOK, res)
	})
}
