package custom

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mes.GO/config"
	"mes.GO/core/container"
	"mes.GO/core/testdb"
	"mes.GO/graphql"
	gqlregistry "mes.GO/graphql/registry"
	reportEntity "mes.GO/model/entity/report"
)

func seedBacklog(t *testing.T) *container.Container {
	t.Helper()
	c := container.New(testdb.Open(t), config.Default(), nil, container.Options{})
	wo := testdb.WorkOrder(t, c.DB, "MO-BACKLOG", 10, "SMT", "Test")
	pending := []testdb.ReportSpec{
		{Process: "SMT", Worker: "alice", Hours: 1, Work: 2},
		{Kind: reportEntity.KindSMT, Process: "SMT", Worker: "E1", Hours: 1, Work: 2},
		{Process: "Test", Worker: "bob", Hours: 1, Work: 2},
	}
	for _, spec := range pending {
		rep := testdb.Report(t, c.DB, wo, spec)
		require.NoError(t, c.DB.Model(rep).Update("approval_status", reportEntity.StatusPending).Error)
	}
	// approved reports are not backlog
	testdb.Report(t, c.DB, wo, testdb.ReportSpec{Process: "Test", Worker: "carol", Hours: 1, Work: 1})
	return c
}

func TestPendingBacklog(t *testing.T) {
	c := seedBacklog(t)
	b, err := PendingBacklog(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, 3, b.Total)
	assert.Equal(t, map[string]int{"SMT": 2, "Test": 1}, b.ByProcess)
	assert.Equal(t, 2, b.ByKind[reportEntity.KindOperator])
	assert.Equal(t, 1, b.ByKind[reportEntity.KindSMT])

	var out bytes.Buffer
	printBacklog(&out, b)
	assert.Equal(t, "Pending reports: 3\n  SMT                  2\n  Test                 1\n", out.String())
}

func TestPendingBacklog_Extension(t *testing.T) {
	c := seedBacklog(t)
	ctx := graphql.WithContainer(context.Background(), c)
	got, err := gqlregistry.Resolve(ctx, "pendingBacklog", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, got.(*Backlog).Total)
}
