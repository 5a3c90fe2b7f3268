// Package erp stages open manufacturing orders from the company ERPs and
// converts them into work orders.
package erp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"mes.GO/core/errs"
	"mes.GO/core/lock"
	"mes.GO/core/worktime"
	erpEntity "mes.GO/model/entity/erp"
	systemEntity "mes.GO/model/entity/system"
	workorderEntity "mes.GO/model/entity/workorder"
	erpRepo "mes.GO/model/repository/erp"
	systemRepo "mes.GO/model/repository/system"
	workorderService "mes.GO/service/workorder"
)

const (
	upsertBatch    = 200
	fetchParallel  = 4
	convertLockTTL = 30 * time.Minute
)

// SyncResult summarizes one staging run.
type SyncResult struct {
	RunID     string            `json:"run_id"`
	Companies int               `json:"companies"`
	Fetched   int               `json:"fetched"`
	Skipped   int               `json:"skipped"`
	Created   int               `json:"created"`
	Updated   int               `json:"updated"`
	Errors    map[string]string `json:"errors,omitempty"`
	Status    string            `json:"status"`
}

// ConvertResult summarizes one conversion run.
type ConvertResult struct {
	Converted       int      `json:"converted"`
	AlreadyExisting int      `json:"already_existing"`
	Failed          int      `json:"failed"`
	Errors          []string `json:"errors,omitempty"`
}

type Service struct {
	db         *gorm.DB
	source     Source
	workorders *workorderService.Service
	locker     lock.Locker
	log        *zap.Logger
	now        func() time.Time
}

func NewService(db *gorm.DB, source Source, workorders *workorderService.Service, locker lock.Locker, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if source == nil {
		source = NewGormSource(nil)
	}
	if locker == nil {
		locker = lock.NewDBLocker(db)
	}
	return &Service{db: db, source: source, workorders: workorders, locker: locker, log: log, now: time.Now}
}

// SyncStagedMOs copies every enabled company's open MOs into staged_mos.
// A failing company is logged and skipped; the run is then partial, or failed
// when no company succeeded.
func (s *Service) SyncStagedMOs(ctx context.Context) (*SyncResult, error) {
	db := s.db.WithContext(ctx)
	companies, err := erpRepo.NewERPRepository(db).ListEnabledCompanies()
	if err != nil {
		return nil, err
	}
	started := s.now()
	today := worktime.DateOf(started)
	entry := &systemEntity.SyncLog{
		RunID:       uuid.NewString(),
		SyncType:    systemEntity.SyncTypeWorkOrder,
		PeriodStart: today,
		PeriodEnd:   today,
		Status:      systemEntity.SyncRunning,
		StartedAt:   started,
	}
	sys := systemRepo.NewSystemRepository(db)
	if err := sys.CreateSyncLog(entry); err != nil {
		return nil, err
	}

	res := &SyncResult{RunID: entry.RunID, Companies: len(companies), Errors: map[string]string{}}
	fetched := make([][]MORow, len(companies))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchParallel)
	for i, c := range companies {
		g.Go(func() error {
			rows, err := s.source.FetchOpenMOs(gctx, c)
			if err != nil {
				mu.Lock()
				res.Errors[c.CompanyCode] = err.Error()
				mu.Unlock()
				s.log.Warn("erp fetch failed", zap.String("company", c.CompanyCode), zap.Error(err))
				return nil
			}
			fetched[i] = rows
			return nil
		})
	}
	_ = g.Wait()

	for i, c := range companies {
		if _, failed := res.Errors[c.CompanyCode]; failed {
			continue
		}
		if err := ctx.Err(); err != nil {
			res.Errors[c.CompanyCode] = err.Error()
			continue
		}
		created, updated, skipped, err := s.stage(ctx, c.CompanyCode, fetched[i])
		res.Fetched += len(fetched[i])
		if err != nil {
			res.Errors[c.CompanyCode] = err.Error()
			s.log.Warn("erp staging failed", zap.String("company", c.CompanyCode), zap.Error(err))
			continue
		}
		res.Created += created
		res.Updated += updated
		res.Skipped += skipped
	}

	finished := s.now()
	entry.CompletedAt = &finished
	entry.DurationSeconds = finished.Sub(started).Seconds()
	entry.RecordsProcessed = res.Fetched
	entry.RecordsCreated = res.Created
	entry.RecordsUpdated = res.Updated
	switch {
	case len(res.Errors) == 0:
		entry.Status = systemEntity.SyncSuccess
	case len(res.Errors) < len(companies):
		entry.Status = systemEntity.SyncPartial
	default:
		entry.Status = systemEntity.SyncFailed
	}
	if len(res.Errors) > 0 {
		var msgs []string
		for code, msg := range res.Errors {
			msgs = append(msgs, code+": "+msg)
		}
		entry.ErrorMessage = strings.Join(msgs, "; ")
	}
	res.Status = entry.Status
	if err := systemRepo.NewSystemRepository(s.db).SaveSyncLog(entry); err != nil {
		s.log.Error("close erp sync log", zap.Error(err))
	}
	s.log.Info("erp mo sync finished",
		zap.String("status", res.Status),
		zap.Int("companies", res.Companies),
		zap.Int("fetched", res.Fetched),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated))
	if entry.Status == systemEntity.SyncFailed && len(companies) > 0 {
		return res, fmt.Errorf("erp mo sync: %s: %w", entry.ErrorMessage, errs.ErrDataSource)
	}
	return res, nil
}

// stage upserts one company's rows. Rows with nothing left to build are dropped.
func (s *Service) stage(ctx context.Context, companyCode string, rows []MORow) (created, updated, skipped int, err error) {
	now := s.now()
	byNumber := map[string]erpEntity.StagedMO{}
	var order []string
	for _, r := range rows {
		if r.RemainingQuantity <= 0 || r.MONumber == "" {
			skipped++
			continue
		}
		if _, ok := byNumber[r.MONumber]; !ok {
			order = append(order, r.MONumber)
		}
		byNumber[r.MONumber] = erpEntity.StagedMO{
			CompanyCode:         companyCode,
			MONumber:            r.MONumber,
			ProductID:           r.ProductID,
			Quantity:            r.Quantity,
			RemainingQuantity:   r.RemainingQuantity,
			Status:              r.Status,
			PlannedMaterialDate: string(r.PlannedMaterialDate),
			PlannedShipoutDate:  string(r.PlannedShipoutDate),
			SyncTime:            now,
		}
	}
	staged := make([]erpEntity.StagedMO, 0, len(order))
	for _, n := range order {
		staged = append(staged, byNumber[n])
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := erpRepo.NewERPRepository(tx)
		existing, err := repo.CountExisting(companyCode, order)
		if err != nil {
			return err
		}
		if err := repo.UpsertStaged(staged, upsertBatch); err != nil {
			return err
		}
		updated = int(existing)
		created = len(staged) - updated
		return nil
	})
	return created, updated, skipped, err
}

// ConvertStagedMOs turns every unconverted staged MO into an expanded, auto-assigned
// work order. Runs are serialized on the mo-convert lock; a concurrent run gets
// ErrSyncAlreadyRunning. Each MO commits or rolls back on its own savepoint.
func (s *Service) ConvertStagedMOs(ctx context.Context) (*ConvertResult, error) {
	release, err := s.locker.TryLock(ctx, lock.KeyMOConvert, convertLockTTL)
	if errors.Is(err, lock.ErrHeld) {
		return nil, fmt.Errorf("mo convert: %w", errs.ErrSyncAlreadyRunning)
	}
	if err != nil {
		return nil, err
	}
	defer release()

	res := &ConvertResult{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pending, err := erpRepo.NewERPRepository(tx).ListUnconverted()
		if err != nil {
			return err
		}
		for i := range pending {
			if err := ctx.Err(); err != nil {
				return err
			}
			mo := &pending[i]
			var existed bool
			err := tx.Transaction(func(sp *gorm.DB) error {
				var err error
				existed, err = s.convertOne(ctx, sp, mo)
				return err
			})
			switch {
			case err != nil:
				res.Failed++
				res.Errors = append(res.Errors, fmt.Sprintf("%s/%s: %v", mo.CompanyCode, mo.MONumber, err))
				s.log.Warn("mo conversion failed",
					zap.String("company", mo.CompanyCode),
					zap.String("mo", mo.MONumber),
					zap.Error(err))
			case existed:
				res.AlreadyExisting++
			default:
				res.Converted++
			}
		}
		return nil
	})
	if err != nil {
		return res, err
	}
	s.log.Info("mo conversion finished",
		zap.Int("converted", res.Converted),
		zap.Int("already_existing", res.AlreadyExisting),
		zap.Int("failed", res.Failed))
	return res, nil
}

// convertOne reports true when the work order already existed.
func (s *Service) convertOne(ctx context.Context, tx *gorm.DB, mo *erpEntity.StagedMO) (bool, error) {
	repo := erpRepo.NewERPRepository(tx)
	wos := s.workorders.WithTx(tx)
	exists, err := wos.Repo().Exists(mo.CompanyCode, mo.MONumber)
	if err != nil {
		return false, err
	}
	if exists {
		return true, repo.MarkConverted(mo.ID)
	}

	qty := mo.Quantity
	if qty <= 0 {
		qty = mo.RemainingQuantity
	}
	wo, err := wos.CreateWorkOrder(ctx, workorderService.CreateInput{
		CompanyCode:      mo.CompanyCode,
		OrderNumber:      mo.MONumber,
		ProductCode:      mo.ProductID,
		Quantity:         qty,
		Source:           workorderEntity.SourceMOConversion,
		PlannedStartDate: plannedDate(mo.PlannedMaterialDate),
		PlannedEndDate:   plannedDate(mo.PlannedShipoutDate),
	})
	if err != nil {
		return false, err
	}
	if err := repo.MarkConverted(mo.ID); err != nil {
		return false, err
	}
	if _, err := wos.ExpandProcesses(ctx, wo.ID, workorderService.SourceMOConversion); err != nil {
		return false, err
	}
	return false, nil
}

func plannedDate(s string) *datatypes.Date {
	if s == "" {
		return nil
	}
	d, err := worktime.ParseDate(s)
	if err != nil {
		return nil
	}
	return &d
}

// Staged lists staged MOs not yet converted.
func (s *Service) Staged(ctx context.Context) ([]erpEntity.StagedMO, error) {
	return erpRepo.NewERPRepository(s.db.WithContext(ctx)).ListUnconverted()
}

// AddCompany registers an ERP company source.
func (s *Service) AddCompany(ctx context.Context, c *erpEntity.CompanyConfig) error {
	return errs.FromDB(erpRepo.NewERPRepository(s.db.WithContext(ctx)).CreateCompany(c))
}
