package pipeline

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mes.GO/config"
	"mes.GO/core/container"
	"mes.GO/core/testdb"
	"mes.GO/core/worktime"
	systemEntity "mes.GO/model/entity/system"
)

func newServer(t *testing.T) (*echo.Echo, *container.Container) {
	t.Helper()
	c := container.New(testdb.Open(t), config.Default(), nil, container.Options{})
	e := echo.New()
	RegisterSyncRoutes(e.Group("/api"), c)
	return e, c
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type logView struct {
	SyncType       string `json:"sync_type"`
	Status         string `json:"status"`
	RecordsCreated int    `json:"records_created"`
}

func TestSyncWindow(t *testing.T) {
	e, c := newServer(t)
	wo := testdb.WorkOrder(t, c.DB, "MO-SYNC", 10, "SMT")
	testdb.Report(t, c.DB, wo, testdb.ReportSpec{Process: "SMT", Worker: "alice", Day: worktime.Date(2024, 1, 15), Hours: 2, Work: 5})

	rec := do(e, http.MethodPost, "/api/sync", `{"type":"work_time","from":"2024-01-15","to":"20240115"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var entry logView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	assert.Equal(t, systemEntity.SyncTypeWorkTime, entry.SyncType)
	assert.Equal(t, systemEntity.SyncSuccess, entry.Status)
	assert.Equal(t, 1, entry.RecordsCreated)

	// no body: everything over the default window
	rec = do(e, http.MethodPost, "/api/sync", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	assert.Equal(t, systemEntity.SyncTypeAll, entry.SyncType)

	assert.Equal(t, http.StatusUnprocessableEntity, do(e, http.MethodPost, "/api/sync", `{"from":"2024-01-16","to":"2024-01-15"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPost, "/api/sync", `{"from":"yesterday","to":"2024-01-15"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPost, "/api/sync", `{"type":"weekly"}`).Code)

	rec = do(e, http.MethodGet, "/api/sync/logs?type=work_time&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var logs struct {
		Logs []logView `json:"logs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logs))
	require.Len(t, logs.Logs, 1)
	assert.Equal(t, systemEntity.SyncTypeWorkTime, logs.Logs[0].SyncType)
}

func TestERPRoutes(t *testing.T) {
	e, _ := newServer(t)

	rec := do(e, http.MethodPost, "/api/sync/erp", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var staged struct {
		Companies int    `json:"companies"`
		Status    string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &staged))
	assert.Zero(t, staged.Companies)
	assert.Equal(t, systemEntity.SyncSuccess, staged.Status)

	rec = do(e, http.MethodPost, "/api/sync/convert", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var converted struct {
		Converted int `json:"converted"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &converted))
	assert.Zero(t, converted.Converted)
}
