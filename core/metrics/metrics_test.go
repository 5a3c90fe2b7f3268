package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mes.GO/core/events"
	"mes.GO/core/testdb"
)

func TestRecordJob(t *testing.T) {
	okBefore := testutil.ToFloat64(jobRunsTotal.WithLabelValues("metrics_test", "success"))
	errBefore := testutil.ToFloat64(jobRunsTotal.WithLabelValues("metrics_test", "error"))

	RecordJob("metrics_test", nil, 0.2)
	RecordJob("metrics_test", errors.New("boom"), 1.5)
	RecordJob("metrics_test", errors.New("boom"), 1.5)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(jobRunsTotal.WithLabelValues("metrics_test", "success")))
	assert.Equal(t, errBefore+2, testutil.ToFloat64(jobRunsTotal.WithLabelValues("metrics_test", "error")))
}

func TestRecordAPIRequest_StatusLabels(t *testing.T) {
	RecordAPIRequest("GET", "/api/reports/:id", 404, 0.01)
	RecordAPIRequest("GET", "/api/reports/:id", 599, 0.01)
	assert.Equal(t, 1.0, testutil.ToFloat64(apiRequestsTotal.WithLabelValues("GET", "/api/reports/:id", "Not Found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(apiRequestsTotal.WithLabelValues("GET", "/api/reports/:id", "599")))
}

func TestSubscribe_CountsEvents(t *testing.T) {
	bus := events.NewBus()
	Subscribe(bus)
	approved := testutil.ToFloat64(pipelineEventsTotal.WithLabelValues(events.TopicReportApproved))
	reallocated := testutil.ToFloat64(reportsReallocatedTotal)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, events.ReportApproved{ReportID: 1, WorkOrderID: 1}))
	require.NoError(t, bus.Publish(ctx, events.QuantityAllocated{WorkOrderID: 1, ReportsChanged: 3}))

	assert.Equal(t, approved+1, testutil.ToFloat64(pipelineEventsTotal.WithLabelValues(events.TopicReportApproved)))
	assert.Equal(t, reallocated+3, testutil.ToFloat64(reportsReallocatedTotal))
}

func TestUpdateDatabaseConnections(t *testing.T) {
	assert.Error(t, UpdateDatabaseConnections(nil))
	db := testdb.Open(t)
	require.NoError(t, UpdateDatabaseConnections(db))
	assert.GreaterOrEqual(t, testutil.ToFloat64(databaseConnectionsOpen), 1.0)
}
