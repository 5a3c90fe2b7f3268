package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mes.GO/core/container"
	"mes.GO/core/errs"
	"mes.GO/core/registry"
)

func TestRegistry_Register_Apply(t *testing.T) {
	registry.GlobalRegistry.UnlockForTesting(registry.KeyRegistryRoutes)
	RegisterGET("/test/registry/check", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	e := echo.New()
	ApplyRoutes(e, nil)

	req := httptest.NewRequest(http.MethodGet, "/test/registry/check", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Panics(t, func() { RegisterGET("/late", nil) })
}

func TestRegistry_ModulesReceiveContainer(t *testing.T) {
	registry.GlobalRegistry.UnlockForTesting(registry.KeyRegistryAPI)
	cont := &container.Container{}
	var got *container.Container
	RegisterModule(func(g *echo.Group, c *container.Container) { got = c })
	ApplyModules(echo.New().Group("/api"), cont)
	assert.Same(t, cont, got)
	assert.True(t, registry.GlobalRegistry.IsLocked(registry.KeyRegistryAPI))
}

func TestFail_MapsErrorKinds(t *testing.T) {
	cases := map[error]int{
		fmt.Errorf("report 9: %w", errs.ErrNotFound):        http.StatusNotFound,
		fmt.Errorf("order: %w", errs.ErrDuplicateKey):       http.StatusConflict,
		fmt.Errorf("pending: %w", errs.ErrNotCompleted):     http.StatusUnprocessableEntity,
		fmt.Errorf("status: %w", errs.ErrIllegalTransition): http.StatusUnprocessableEntity,
		fmt.Errorf("boom"): http.StatusInternalServerError,
	}
	for err, want := range cases {
		e := echo.New()
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		require.NoError(t, Fail(c, err))
		assert.Equal(t, want, rec.Code, err.Error())
		assert.Contains(t, rec.Body.String(), err.Error())
	}
}

func TestRequestMetrics_PassesThroughErrors(t *testing.T) {
	e := echo.New()
	e.Use(RequestMetrics())
	e.GET("/teapot", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTeapot, "short and stout")
	})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/teapot", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Duration-ms"))
}
