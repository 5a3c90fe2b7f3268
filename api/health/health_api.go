package health

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"mes.GO/api"
	"mes.GO/config"
	"mes.GO/core/container"
	"mes.GO/core/metrics"
)

func init() {
	api.RegisterRoute(RegisterHealthRoutes)
	api.RegisterGET("/version", func(ec echo.Context) error {
		cfg := config.App()
		return ec.JSON(http.StatusOK, echo.Map{"app": cfg.AppName, "env": cfg.Env})
	})
}

// RegisterHealthRoutes serves /health and /metrics. Both skip authentication.
func RegisterHealthRoutes(e *echo.Echo, c *container.Container) {
	e.GET("/health", func(ec echo.Context) error {
		sqlDB, err := c.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(ec.Request().Context())
		}
		if err != nil {
			return ec.JSON(http.StatusServiceUnavailable, echo.Map{"status": "down", "database": err.Error()})
		}
		return ec.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})

	promHandler := metrics.Handler()
	e.GET("/metrics", func(ec echo.Context) error {
		if err := metrics.UpdateDatabaseConnections(c.DB); err != nil {
			c.Log.Warn("db stats unavailable")
		}
		promHandler.ServeHTTP(ec.Response(), ec.Request())
		return nil
	})
}
