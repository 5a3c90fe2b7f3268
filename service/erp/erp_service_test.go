package erp

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"mes.GO/core/errs"
	"mes.GO/core/lock"
	"mes.GO/core/testdb"
	"mes.GO/core/worktime"
	erpEntity "mes.GO/model/entity/erp"
	systemEntity "mes.GO/model/entity/system"
	workorderEntity "mes.GO/model/entity/workorder"
	catalogService "mes.GO/service/catalog"
	workorderService "mes.GO/service/workorder"
)

func TestDecodeRow(t *testing.T) {
	row, err := DecodeRow(map[string]interface{}{
		"mo_number":             []byte(" MO-1 "),
		"product_id":            int64(4711),
		"quantity":              "200.0000",
		"remaining_quantity":    float64(150),
		"status":                "open",
		"planned_material_date": int64(20240115),
		"planned_shipout_date":  "2024-02-01 00:00:00",
	})
	require.NoError(t, err)
	assert.Equal(t, "MO-1", row.MONumber)
	assert.Equal(t, "4711", row.ProductID)
	assert.Equal(t, 200, row.Quantity)
	assert.Equal(t, 150, row.RemainingQuantity)
	assert.Equal(t, ERPDate("2024-01-15"), row.PlannedMaterialDate)
	assert.Equal(t, ERPDate("2024-02-01"), row.PlannedShipoutDate)

	row, err = DecodeRow(map[string]interface{}{
		"mo_number":             "MO-2",
		"planned_material_date": time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC),
		"planned_shipout_date":  "20240310",
	})
	require.NoError(t, err)
	assert.Equal(t, ERPDate("2024-03-09"), row.PlannedMaterialDate)
	assert.Equal(t, ERPDate("2024-03-10"), row.PlannedShipoutDate)

	row, err = DecodeRow(map[string]interface{}{"mo_number": "MO-3", "planned_material_date": int64(0)})
	require.NoError(t, err)
	assert.Empty(t, row.PlannedMaterialDate)

	row, err = DecodeRow(map[string]interface{}{
		"mo_number":             "MO-4",
		"remaining_quantity":    5,
		"planned_material_date": "TBD",
		"planned_shipout_date":  int64(20240230),
	})
	require.NoError(t, err)
	assert.Equal(t, "MO-4", row.MONumber)
	assert.Equal(t, 5, row.RemainingQuantity)
	assert.Empty(t, row.PlannedMaterialDate)
	assert.Empty(t, row.PlannedShipoutDate)
}

func TestColumnMap(t *testing.T) {
	cols, err := ColumnMap(erpEntity.CompanyConfig{
		CompanyCode: "ACME",
		ColumnMap:   datatypes.JSONMap{"mo_number": "MoNo", "quantity": " PlanQty ", "status": ""},
	})
	require.NoError(t, err)
	assert.Equal(t, "MoNo", cols["mo_number"])
	assert.Equal(t, "PlanQty", cols["quantity"])
	assert.Equal(t, "status", cols["status"])
	assert.Equal(t, "product_id", cols["product_id"])

	_, err = ColumnMap(erpEntity.CompanyConfig{CompanyCode: "BAD", ColumnMap: datatypes.JSONMap{"quantity": []int{1}}})
	assert.Error(t, err)
}

type vendorMO struct {
	MoNo    string `gorm:"column:MoNo"`
	ItemNo  string `gorm:"column:ItemNo"`
	PlanQty string `gorm:"column:PlanQty"`
	LeftQty int    `gorm:"column:LeftQty"`
	State   string `gorm:"column:State"`
	MatDate int    `gorm:"column:MatDate"`
	ShipOut string `gorm:"column:ShipOut"`
}

func (vendorMO) TableName() string { return "vendor_mo" }

func TestGormSource_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "erp.db")
	vendor, err := OpenGorm("sqlite", path)
	require.NoError(t, err)
	require.NoError(t, vendor.AutoMigrate(&vendorMO{}))
	require.NoError(t, vendor.Create([]vendorMO{
		{MoNo: "A-1", ItemNo: "P-1", PlanQty: "100.0000", LeftQty: 100, State: "open", MatDate: 20240110, ShipOut: "2024-01-20"},
		{MoNo: "A-2", ItemNo: "P-2", PlanQty: "50", LeftQty: 0, State: "closed", MatDate: 0, ShipOut: ""},
		{MoNo: "A-3", ItemNo: "P-3", PlanQty: "30", LeftQty: 30, State: "open", MatDate: 20240230, ShipOut: "TBD"},
	}).Error)
	if sqlDB, err := vendor.DB(); err == nil {
		sqlDB.Close()
	}

	src := NewGormSource(nil)
	defer src.Close()
	company := erpEntity.CompanyConfig{
		CompanyCode:   "ACME",
		Driver:        "sqlite",
		DSN:           path,
		SourceTable:   "vendor_mo",
		OpenPredicate: "State = 'open'",
		ColumnMap: datatypes.JSONMap{
			"mo_number":             "MoNo",
			"product_id":            "ItemNo",
			"quantity":              "PlanQty",
			"remaining_quantity":    "LeftQty",
			"status":                "State",
			"planned_material_date": "MatDate",
			"planned_shipout_date":  "ShipOut",
		},
	}
	rows, err := src.FetchOpenMOs(context.Background(), company)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	sort.Slice(rows, func(i, j int) bool { return rows[i].MONumber < rows[j].MONumber })
	// bad planned dates do not cost the company its other orders
	assert.Equal(t, MORow{MONumber: "A-3", ProductID: "P-3", Quantity: 30, RemainingQuantity: 30, Status: "open"}, rows[1])
	assert.Equal(t, MORow{
		MONumber:            "A-1",
		ProductID:           "P-1",
		Quantity:            100,
		RemainingQuantity:   100,
		Status:              "open",
		PlannedMaterialDate: "2024-01-10",
		PlannedShipoutDate:  "2024-01-20",
	}, rows[0])

	company.SourceTable = "missing_table"
	_, err = src.FetchOpenMOs(context.Background(), company)
	assert.True(t, errors.Is(err, errs.ErrDataSource))

	_, err = OpenGorm("oracle", "x")
	assert.Error(t, err)
}

// fakeSource serves fixed rows per company; a company mapped to an error fails.
type fakeSource struct {
	rows map[string][]MORow
	fail map[string]error
}

func (f *fakeSource) FetchOpenMOs(_ context.Context, c erpEntity.CompanyConfig) ([]MORow, error) {
	if err := f.fail[c.CompanyCode]; err != nil {
		return nil, err
	}
	return f.rows[c.CompanyCode], nil
}

func setup(t *testing.T, src Source) (*gorm.DB, *Service) {
	t.Helper()
	db := testdb.Open(t)
	wos := workorderService.NewService(db, catalogService.NewService(db), nil)
	return db, NewService(db, src, wos, nil, nil)
}

func addCompanies(t *testing.T, svc *Service, codes ...string) {
	t.Helper()
	for _, code := range codes {
		require.NoError(t, svc.AddCompany(context.Background(), &erpEntity.CompanyConfig{
			CompanyCode: code,
			Driver:      "sqlite",
			DSN:         "unused",
			SourceTable: "mo",
			Enabled:     true,
		}))
	}
}

func TestSyncStagedMOs(t *testing.T) {
	src := &fakeSource{
		rows: map[string][]MORow{
			"ACME": {
				{MONumber: "MO-1", ProductID: "P-1", Quantity: 100, RemainingQuantity: 100},
				{MONumber: "MO-2", ProductID: "P-2", Quantity: 10, RemainingQuantity: 0},
				{MONumber: "MO-3", ProductID: "P-3", Quantity: 5, RemainingQuantity: 5},
			},
		},
		fail: map[string]error{},
	}
	db, svc := setup(t, src)
	ctx := context.Background()
	addCompanies(t, svc, "ACME", "GLOBEX")

	res, err := svc.SyncStagedMOs(ctx)
	require.NoError(t, err)
	assert.Equal(t, systemEntity.SyncSuccess, res.Status)
	assert.Equal(t, 2, res.Companies)
	assert.Equal(t, 3, res.Fetched)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Skipped)

	src.rows["ACME"][0].RemainingQuantity = 60
	src.fail["GLOBEX"] = errors.New("connection refused")
	res, err = svc.SyncStagedMOs(ctx)
	require.NoError(t, err)
	assert.Equal(t, systemEntity.SyncPartial, res.Status)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 2, res.Updated)
	assert.Contains(t, res.Errors["GLOBEX"], "connection refused")

	var mo erpEntity.StagedMO
	require.NoError(t, db.Where("mo_number = ?", "MO-1").First(&mo).Error)
	assert.Equal(t, 60, mo.RemainingQuantity)

	src.fail["ACME"] = errors.New("timeout")
	res, err = svc.SyncStagedMOs(ctx)
	assert.True(t, errors.Is(err, errs.ErrDataSource))
	assert.Equal(t, systemEntity.SyncFailed, res.Status)

	var logs []systemEntity.SyncLog
	require.NoError(t, db.Order("id").Find(&logs).Error)
	require.Len(t, logs, 3)
	assert.Equal(t, systemEntity.SyncTypeWorkOrder, logs[0].SyncType)
	assert.Equal(t, systemEntity.SyncFailed, logs[2].Status)
}

func stageMOs(t *testing.T, db *gorm.DB, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		require.NoError(t, db.Create(&erpEntity.StagedMO{
			CompanyCode:         "ACME",
			MONumber:            fmt.Sprintf("MO-%d", i),
			ProductID:           "P-100",
			Quantity:            100 * i,
			RemainingQuantity:   100 * i,
			PlannedMaterialDate: "2024-01-10",
			PlannedShipoutDate:  "bogus",
			SyncTime:            time.Now(),
		}).Error)
	}
}

func TestConvertStagedMOs(t *testing.T) {
	db, svc := setup(t, &fakeSource{})
	ctx := context.Background()
	stageMOs(t, db, 2)
	// already known locally: marked converted without a second work order
	testdb.WorkOrder(t, db, "MO-2", 200)

	res, err := svc.ConvertStagedMOs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Converted)
	assert.Equal(t, 1, res.AlreadyExisting)
	assert.Equal(t, 0, res.Failed)

	var wo workorderEntity.WorkOrder
	require.NoError(t, db.Where("company_code = ? AND order_number = ?", "ACME", "MO-1").First(&wo).Error)
	assert.Equal(t, workorderEntity.SourceMOConversion, wo.Source)
	assert.Equal(t, 100, wo.Quantity)
	assert.Equal(t, workorderEntity.StatusPending, wo.Status)
	require.NotNil(t, wo.PlannedStartDate)
	assert.Equal(t, "2024-01-10", worktime.DayKey(*wo.PlannedStartDate))
	assert.Nil(t, wo.PlannedEndDate)

	var procs int64
	require.NoError(t, db.Model(&workorderEntity.WorkOrderProcess{}).Where("work_order_id = ?", wo.ID).Count(&procs).Error)
	assert.Equal(t, int64(3), procs)

	var count int64
	require.NoError(t, db.Model(&workorderEntity.WorkOrder{}).Where("order_number = ?", "MO-2").Count(&count).Error)
	assert.Equal(t, int64(1), count)

	staged, err := svc.Staged(ctx)
	require.NoError(t, err)
	assert.Empty(t, staged)

	res, err = svc.ConvertStagedMOs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Converted+res.AlreadyExisting+res.Failed)
}

func TestConvertStagedMOs_LockHeld(t *testing.T) {
	db, svc := setup(t, &fakeSource{})
	ctx := context.Background()
	stageMOs(t, db, 1)

	release, err := lock.NewDBLocker(db).TryLock(ctx, lock.KeyMOConvert, time.Minute)
	require.NoError(t, err)
	_, err = svc.ConvertStagedMOs(ctx)
	assert.True(t, errors.Is(err, errs.ErrSyncAlreadyRunning))
	release()

	res, err := svc.ConvertStagedMOs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Converted)
}

// gatedLocker parks the first successful acquirer until proceed is closed.
type gatedLocker struct {
	inner    lock.Locker
	acquired chan struct{}
	proceed  chan struct{}
	once     sync.Once
}

func (g *gatedLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	release, err := g.inner.TryLock(ctx, key, ttl)
	if err == nil {
		g.once.Do(func() {
			close(g.acquired)
			<-g.proceed
		})
	}
	return release, err
}

func TestConvertStagedMOs_OverlappingRunConvertsNothing(t *testing.T) {
	db := testdb.Open(t)
	stageMOs(t, db, 5)
	gate := &gatedLocker{inner: lock.NewDBLocker(db), acquired: make(chan struct{}), proceed: make(chan struct{})}
	wos := workorderService.NewService(db, catalogService.NewService(db), nil)
	svc := NewService(db, &fakeSource{}, wos, gate, nil)

	var (
		wg    sync.WaitGroup
		first *ConvertResult
		err1  error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		first, err1 = svc.ConvertStagedMOs(context.Background())
	}()
	<-gate.acquired

	_, err := svc.ConvertStagedMOs(context.Background())
	assert.True(t, errors.Is(err, errs.ErrSyncAlreadyRunning))
	close(gate.proceed)
	wg.Wait()

	require.NoError(t, err1)
	assert.Equal(t, 5, first.Converted)
	var n int64
	require.NoError(t, db.Model(&workorderEntity.WorkOrder{}).Count(&n).Error)
	assert.Equal(t, int64(5), n)
	var open int64
	require.NoError(t, db.Model(&erpEntity.StagedMO{}).Where("is_converted = ?", false).Count(&open).Error)
	assert.Zero(t, open)
}
