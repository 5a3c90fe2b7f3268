// Package lock provides named advisory locks for batch stages that must not overlap.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	systemEntity "mes.GO/model/entity/system"
)

// Well-known lock names.
const (
	KeyMOConvert  = "mo-convert"
	KeyReportSync = "report-sync"
)

// ErrHeld is returned by TryLock when another owner holds the key.
var ErrHeld = errors.New("lock held")

// Locker acquires named locks. The returned release func is safe to call once.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// DBLocker keeps locks as rows in task_locks. An expired row is taken over.
type DBLocker struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDBLocker(db *gorm.DB) *DBLocker {
	return &DBLocker{db: db, now: time.Now}
}

func (l *DBLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	owner := uuid.NewString()
	now := l.now()
	row := systemEntity.TaskLock{LockKey: key, Owner: owner, ExpiresAt: now.Add(ttl)}

	db := l.db.WithContext(ctx)
	// drop a stale holder first so the insert below can win
	if err := db.Where("lock_key = ? AND expires_at < ?", key, now).Delete(&systemEntity.TaskLock{}).Error; err != nil {
		return nil, err
	}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrHeld
	}
	return func() {
		l.db.Where("lock_key = ? AND owner = ?", key, owner).Delete(&systemEntity.TaskLock{})
	}, nil
}
