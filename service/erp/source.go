package erp

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/mitchellh/mapstructure"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mes.GO/core/errs"
	erpEntity "mes.GO/model/entity/erp"
)

// Canonical MO fields a company's column map may rename.
var canonicalFields = []string{
	"mo_number",
	"product_id",
	"quantity",
	"remaining_quantity",
	"status",
	"planned_material_date",
	"planned_shipout_date",
}

// ERPDate is a planned date normalized to YYYY-MM-DD. ERP tables hand these
// out as YYYYMMDD integers, YYYYMMDD strings, dashed strings or timestamps.
type ERPDate string

// MORow is one open manufacturing order as read from a company's ERP.
type MORow struct {
	MONumber            string  `mapstructure:"mo_number"`
	ProductID           string  `mapstructure:"product_id"`
	Quantity            int     `mapstructure:"quantity"`
	RemainingQuantity   int     `mapstructure:"remaining_quantity"`
	Status              string  `mapstructure:"status"`
	PlannedMaterialDate ERPDate `mapstructure:"planned_material_date"`
	PlannedShipoutDate  ERPDate `mapstructure:"planned_shipout_date"`
}

// Source reads open MOs for one company.
type Source interface {
	FetchOpenMOs(ctx context.Context, company erpEntity.CompanyConfig) ([]MORow, error)
}

// Opener opens a read connection for a driver name and DSN.
type Opener func(driver, dsn string) (*gorm.DB, error)

// OpenGorm supports the mysql, postgres and sqlite drivers.
func OpenGorm(driver, dsn string) (*gorm.DB, error) {
	var dial gorm.Dialector
	switch strings.ToLower(driver) {
	case "mysql":
		dial = mysql.Open(dsn)
	case "postgres", "postgresql":
		dial = postgres.Open(dsn)
	case "sqlite":
		dial = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported erp driver %q", driver)
	}
	return gorm.Open(dial, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
}

// GormSource queries each company's configured table through gorm.
// Connections are opened once per company and reused.
type GormSource struct {
	open  Opener
	mu    sync.Mutex
	conns map[string]*gorm.DB
}

func NewGormSource(open Opener) *GormSource {
	if open == nil {
		open = OpenGorm
	}
	return &GormSource{open: open, conns: map[string]*gorm.DB{}}
}

func (g *GormSource) conn(c erpEntity.CompanyConfig) (*gorm.DB, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := c.CompanyCode + "|" + c.Driver + "|" + c.DSN
	if db, ok := g.conns[key]; ok {
		return db, nil
	}
	db, err := g.open(c.Driver, c.DSN)
	if err != nil {
		return nil, err
	}
	g.conns[key] = db
	return db, nil
}

// Close releases every pooled ERP connection.
func (g *GormSource) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for k, db := range g.conns {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
		delete(g.conns, k)
	}
}

// ColumnMap returns the vendor column for each canonical field.
// Unmapped fields read the column of the same name.
func ColumnMap(c erpEntity.CompanyConfig) (map[string]string, error) {
	var mapped map[string]string
	if err := mapstructure.Decode(map[string]interface{}(c.ColumnMap), &mapped); err != nil {
		return nil, fmt.Errorf("company %s column map: %w", c.CompanyCode, err)
	}
	out := make(map[string]string, len(canonicalFields))
	for _, f := range canonicalFields {
		out[f] = f
		if v := strings.TrimSpace(mapped[f]); v != "" {
			out[f] = v
		}
	}
	return out, nil
}

func (g *GormSource) FetchOpenMOs(ctx context.Context, c erpEntity.CompanyConfig) ([]MORow, error) {
	cols, err := ColumnMap(c)
	if err != nil {
		return nil, err
	}
	db, err := g.conn(c)
	if err != nil {
		return nil, fmt.Errorf("company %s: %v: %w", c.CompanyCode, err, errs.ErrDataSource)
	}

	selects := make([]string, 0, len(canonicalFields))
	for _, f := range canonicalFields {
		selects = append(selects, fmt.Sprintf("%s AS %s", cols[f], f))
	}
	q := db.WithContext(ctx).Table(c.SourceTable).Select(strings.Join(selects, ", "))
	if p := strings.TrimSpace(c.OpenPredicate); p != "" {
		q = q.Where(p)
	}
	var raw []map[string]interface{}
	if err := q.Find(&raw).Error; err != nil {
		return nil, fmt.Errorf("company %s: %v: %w", c.CompanyCode, err, errs.ErrDataSource)
	}

	rows := make([]MORow, 0, len(raw))
	for _, m := range raw {
		row, err := DecodeRow(m)
		if err != nil {
			return nil, fmt.Errorf("company %s: %v: %w", c.CompanyCode, err, errs.ErrDataSource)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// DecodeRow converts a raw driver row into an MORow.
func DecodeRow(m map[string]interface{}) (MORow, error) {
	var row MORow
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		DecodeHook:       rowDecodeHook,
		Result:           &row,
		TagName:          "mapstructure",
	})
	if err != nil {
		return row, err
	}
	if err := dec.Decode(m); err != nil {
		return row, err
	}
	row.MONumber = strings.TrimSpace(row.MONumber)
	row.ProductID = strings.TrimSpace(row.ProductID)
	row.Status = strings.TrimSpace(row.Status)
	return row, nil
}

var rowDecodeHook = mapstructure.ComposeDecodeHookFunc(
	bytesToStringHook(),
	erpDateHook(),
	numberToStringHook(),
	decimalStringToIntHook(),
)

func bytesToStringHook() mapstructure.DecodeHookFunc {
	return func(f, t reflect.Type, data interface{}) (interface{}, error) {
		if b, ok := data.([]byte); ok {
			return string(b), nil
		}
		return data, nil
	}
}

var erpDateType = reflect.TypeOf(ERPDate(""))

func erpDateHook() mapstructure.DecodeHookFunc {
	return func(f, t reflect.Type, data interface{}) (interface{}, error) {
		if t != erpDateType || data == nil {
			return data, nil
		}
		// An unreadable planned date is dropped; the MO itself is still staged.
		switch v := data.(type) {
		case time.Time:
			return ERPDate(v.Format("2006-01-02")), nil
		case int, int32, int64, uint, uint32, uint64:
			return normalizeDate(fmt.Sprint(v)), nil
		case float64:
			return normalizeDate(strconv.FormatInt(int64(v), 10)), nil
		case string:
			return normalizeDate(v), nil
		}
		return ERPDate(""), nil
	}
}

// normalizeDate returns s as YYYY-MM-DD, or "" when it is no calendar date.
func normalizeDate(s string) ERPDate {
	s = strings.TrimSpace(s)
	if len(s) >= 10 && s[4] == '-' {
		s = s[:10]
	}
	for _, layout := range []string{"20060102", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return ERPDate(t.Format("2006-01-02"))
		}
	}
	return ""
}

func numberToStringHook() mapstructure.DecodeHookFunc {
	return func(f, t reflect.Type, data interface{}) (interface{}, error) {
		if t.Kind() != reflect.String || t == erpDateType {
			return data, nil
		}
		switch f.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return fmt.Sprint(data), nil
		case reflect.Float32, reflect.Float64:
			return strconv.FormatFloat(reflect.ValueOf(data).Float(), 'f', -1, 64), nil
		}
		return data, nil
	}
}

// decimalStringToIntHook accepts quantities that DECIMAL columns return as "200.0000".
func decimalStringToIntHook() mapstructure.DecodeHookFunc {
	return func(f, t reflect.Type, data interface{}) (interface{}, error) {
		str, ok := data.(string)
		if !ok || t.Kind() != reflect.Int {
			return data, nil
		}
		str = strings.TrimSpace(str)
		if str == "" {
			return 0, nil
		}
		v, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return data, nil
		}
		return int(v), nil
	}
}
