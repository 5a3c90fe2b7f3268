// Package events is the in-process, synchronous event bus that links report
// approval, completion detection, allocation and rollup sync.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"
)

const (
	TopicReportApproved          = "report.approved"
	TopicReportApprovalCancelled = "report.approval_cancelled"
	TopicWorkOrderCompleted      = "workorder.completed"
	TopicQuantityAllocated       = "workorder.quantity_allocated"
)

// Event is anything published on the bus.
type Event interface {
	Topic() string
}

type ReportApproved struct {
	ReportID    uint
	WorkOrderID uint
	ApprovedBy  string
}

func (ReportApproved) Topic() string { return TopicReportApproved }

type ReportApprovalCancelled struct {
	ReportID    uint
	WorkOrderID uint
	CancelledBy string
}

func (ReportApprovalCancelled) Topic() string { return TopicReportApprovalCancelled }

// WorkOrderCompleted is published inside the completion transaction. Tx is
// that transaction so handlers observe the transition under the same row lock.
type WorkOrderCompleted struct {
	WorkOrderID uint
	Reason      string
	Tx          *gorm.DB
}

func (WorkOrderCompleted) Topic() string { return TopicWorkOrderCompleted }

type QuantityAllocated struct {
	WorkOrderID    uint
	ReportsChanged int
}

func (QuantityAllocated) Topic() string { return TopicQuantityAllocated }

// Handler reacts to one event.
type Handler func(ctx context.Context, ev Event) error

// Bus delivers events to handlers in subscription order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

func (b *Bus) Subscribe(topic string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], h)
}

// Publish runs every handler for ev's topic. All handlers run; their errors are joined.
// A nil bus drops the event.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	hs := append([]Handler(nil), b.handlers[ev.Topic()]...)
	b.mu.RUnlock()

	var errList []error
	for _, h := range hs {
		if err := h(ctx, ev); err != nil {
			errList = append(errList, fmt.Errorf("%s: %w", ev.Topic(), err))
		}
	}
	return errors.Join(errList...)
}
