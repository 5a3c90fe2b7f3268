package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishInOrder(t *testing.T) {
	b := NewBus()
	var got []string
	b.Subscribe(TopicReportApproved, func(_ context.Context, ev Event) error {
		got = append(got, "first")
		return nil
	})
	b.Subscribe(TopicReportApproved, func(_ context.Context, ev Event) error {
		got = append(got, "second:"+ev.Topic())
		return nil
	})
	b.Subscribe(TopicWorkOrderCompleted, func(context.Context, Event) error {
		got = append(got, "other")
		return nil
	})

	require.NoError(t, b.Publish(context.Background(), ReportApproved{ReportID: 1}))
	assert.Equal(t, []string{"first", "second:report.approved"}, got)
}

func TestBus_ErrorsJoinedAndAllHandlersRun(t *testing.T) {
	b := NewBus()
	boom := errors.New("boom")
	ran := 0
	b.Subscribe(TopicQuantityAllocated, func(context.Context, Event) error { ran++; return boom })
	b.Subscribe(TopicQuantityAllocated, func(context.Context, Event) error { ran++; return nil })

	err := b.Publish(context.Background(), QuantityAllocated{WorkOrderID: 3})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, ran)
}

func TestBus_NilDrops(t *testing.T) {
	var b *Bus
	assert.NoError(t, b.Publish(context.Background(), ReportApproved{}))
}
