// Package allocation spreads a completed work order's produced quantity back
// over its approved reports by labor-hour share.
package allocation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"mes.GO/core/errs"
	"mes.GO/core/events"
	"mes.GO/core/worktime"
	reportEntity "mes.GO/model/entity/report"
	systemEntity "mes.GO/model/entity/system"
	workorderEntity "mes.GO/model/entity/workorder"
	reportRepo "mes.GO/model/repository/report"
	systemRepo "mes.GO/model/repository/system"
	workorderRepo "mes.GO/model/repository/workorder"
)

// ErrNoProducedQuantity is returned when the work order's processes report nothing completed.
var ErrNoProducedQuantity = errors.New("workorder has no produced quantity")

// NoteFormat is written to allocation_notes, replacing earlier notes.
const NoteFormat = "allocated by labor-hour share (ratio=%.4f)"

// Line is the allocation decided for one report.
type Line struct {
	ReportID    uint    `json:"report_id"`
	ProcessName string  `json:"process_name"`
	WorkHours   float64 `json:"work_hours"`
	Ratio       float64 `json:"ratio"`
	Allocated   int     `json:"allocated_quantity"`
	Changed     bool    `json:"changed"`
}

type Result struct {
	WorkOrderID    uint   `json:"workorder_id"`
	TotalCompleted int    `json:"total_completed"`
	ReportsChanged int    `json:"reports_changed"`
	RunID          string `json:"run_id"`
	Lines          []Line `json:"lines"`
}

type Service struct {
	db  *gorm.DB
	bus *events.Bus
	log *zap.Logger
	now func() time.Time
}

func NewService(db *gorm.DB, bus *events.Bus, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, bus: bus, log: log, now: time.Now}
}

// Subscribe allocates inside the completion transaction. A failure rolls back
// only the allocation savepoint.
func (s *Service) Subscribe(bus *events.Bus) {
	bus.Subscribe(events.TopicWorkOrderCompleted, func(ctx context.Context, ev events.Event) error {
		done := ev.(events.WorkOrderCompleted)
		tx := done.Tx
		if tx == nil {
			tx = s.db.WithContext(ctx)
		}
		err := tx.Transaction(func(sp *gorm.DB) error {
			_, err := s.allocate(ctx, sp, done.WorkOrderID, false)
			return err
		})
		if err != nil {
			s.log.Warn("allocation after completion failed", zap.Uint("workorder_id", done.WorkOrderID), zap.Error(err))
		}
		return nil
	})
}

// Allocate recomputes allocated_quantity for every approved report of the work order.
// Non-completed work orders fail with ErrNotCompleted unless force is set.
func (s *Service) Allocate(ctx context.Context, workOrderID uint, force bool) (*Result, error) {
	started := s.now()
	var res *Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		res, err = s.allocate(ctx, tx, workOrderID, force)
		return err
	})
	if err != nil {
		s.failedLog(ctx, started, err)
		return nil, err
	}
	return res, nil
}

func (s *Service) allocate(ctx context.Context, tx *gorm.DB, workOrderID uint, force bool) (*Result, error) {
	started := s.now()
	woRepo := workorderRepo.NewWorkOrderRepository(tx)
	wo, err := woRepo.FindByIDForUpdate(workOrderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("workorder %d: %w", workOrderID, errs.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if wo.Status != workorderEntity.StatusCompleted && !force {
		return nil, fmt.Errorf("workorder %d is %s: %w", wo.ID, wo.Status, errs.ErrNotCompleted)
	}

	procs, err := woRepo.ListProcesses(wo.ID)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, p := range procs {
		total += p.CompletedQuantity
	}
	if total == 0 {
		return nil, fmt.Errorf("workorder %d: %w", wo.ID, ErrNoProducedQuantity)
	}

	reps := reportRepo.NewReportRepository(tx)
	approved, err := reps.ListApprovedByWorkOrder(wo.ID)
	if err != nil {
		return nil, err
	}

	res := &Result{WorkOrderID: wo.ID, TotalCompleted: total, RunID: uuid.NewString()}
	res.Lines = plan(total, approved)
	byID := make(map[uint]*reportEntity.Report, len(approved))
	for i := range approved {
		byID[approved[i].ID] = &approved[i]
	}
	for i := range res.Lines {
		ln := &res.Lines[i]
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		note := fmt.Sprintf(NoteFormat, ln.Ratio)
		cur := byID[ln.ReportID]
		if cur.AllocatedQty == ln.Allocated && cur.AllocationNotes == note {
			continue
		}
		if err := reps.UpdateAllocation(ln.ReportID, ln.Allocated, note); err != nil {
			return nil, err
		}
		ln.Changed = true
		res.ReportsChanged++
	}

	finished := s.now()
	today := worktime.DateOf(finished)
	entry := &systemEntity.SyncLog{
		RunID:            res.RunID,
		SyncType:         systemEntity.SyncTypeAllocation,
		PeriodStart:      today,
		PeriodEnd:        today,
		Status:           systemEntity.SyncSuccess,
		RecordsProcessed: len(res.Lines),
		RecordsUpdated:   res.ReportsChanged,
		StartedAt:        started,
		CompletedAt:      &finished,
		DurationSeconds:  finished.Sub(started).Seconds(),
	}
	if err := systemRepo.NewSystemRepository(tx).CreateSyncLog(entry); err != nil {
		return nil, err
	}

	s.log.Info("quantity allocated",
		zap.Uint("workorder_id", wo.ID),
		zap.Int("total_completed", total),
		zap.Int("reports", len(res.Lines)),
		zap.Int("changed", res.ReportsChanged))
	if err := s.bus.Publish(ctx, events.QuantityAllocated{WorkOrderID: wo.ID, ReportsChanged: res.ReportsChanged}); err != nil {
		s.log.Warn("quantity allocated handlers failed", zap.Uint("workorder_id", wo.ID), zap.Error(err))
	}
	return res, nil
}

func (s *Service) failedLog(ctx context.Context, started time.Time, cause error) {
	if errors.Is(cause, errs.ErrNotCompleted) || errors.Is(cause, errs.ErrNotFound) {
		return
	}
	finished := s.now()
	today := worktime.DateOf(finished)
	entry := &systemEntity.SyncLog{
		RunID:           uuid.NewString(),
		SyncType:        systemEntity.SyncTypeAllocation,
		PeriodStart:     today,
		PeriodEnd:       today,
		Status:          systemEntity.SyncFailed,
		StartedAt:       started,
		CompletedAt:     &finished,
		DurationSeconds: finished.Sub(started).Seconds(),
		ErrorMessage:    cause.Error(),
	}
	if err := systemRepo.NewSystemRepository(s.db.WithContext(ctx)).CreateSyncLog(entry); err != nil {
		s.log.Error("write allocation sync log", zap.Error(err))
	}
}

type group struct {
	name    string
	reports []reportEntity.Report
	weights []int64
	weight  int64
}

// plan apportions total first across process groups, then inside each group.
// Groups whose hours are all zero split equally.
func plan(total int, approved []reportEntity.Report) []Line {
	index := map[string]*group{}
	var groups []*group
	for _, r := range approved {
		g, ok := index[r.ProcessName]
		if !ok {
			g = &group{name: r.ProcessName}
			index[r.ProcessName] = g
			groups = append(groups, g)
		}
		g.reports = append(g.reports, r)
	}
	sort.Slice(groups, func(a, b int) bool { return groups[a].name < groups[b].name })

	for _, g := range groups {
		g.weights = make([]int64, len(g.reports))
		for i, r := range g.reports {
			g.weights[i] = hundredths(r.WorkHours)
			g.weight += g.weights[i]
		}
		if g.weight == 0 {
			for i := range g.weights {
				g.weights[i] = 100
			}
			g.weight = int64(100 * len(g.weights))
		}
	}

	outer := make([]share, len(groups))
	for i, g := range groups {
		// later names win ties, matching the higher-id rule inside groups
		outer[i] = share{key: i, weight: g.weight}
	}
	groupTotals := apportion(total, outer)

	var lines []Line
	for gi, g := range groups {
		inner := make([]share, len(g.reports))
		for i, r := range g.reports {
			inner[i] = share{key: int(r.ID), weight: g.weights[i]}
		}
		alloc := apportion(groupTotals[gi], inner)
		for i, r := range g.reports {
			lines = append(lines, Line{
				ReportID:    r.ID,
				ProcessName: g.name,
				WorkHours:   r.WorkHours,
				Ratio:       float64(g.weights[i]) / float64(g.weight),
				Allocated:   alloc[i],
			})
		}
	}
	sort.Slice(lines, func(a, b int) bool { return lines[a].ReportID < lines[b].ReportID })
	return lines
}
