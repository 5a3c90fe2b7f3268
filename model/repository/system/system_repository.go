package system

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	systemEntity "mes.GO/model/entity/system"
)

type SystemRepository struct {
	db *gorm.DB
}

func NewSystemRepository(db *gorm.DB) *SystemRepository {
	return &SystemRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *SystemRepository) WithTx(tx *gorm.DB) *SystemRepository {
	return &SystemRepository{db: tx}
}

// --- sync logs ---

func (r *SystemRepository) CreateSyncLog(l *systemEntity.SyncLog) error {
	return r.db.Create(l).Error
}

func (r *SystemRepository) SaveSyncLog(l *systemEntity.SyncLog) error {
	return r.db.Save(l).Error
}

// HasRunningSync reports whether a run of syncType started after since is still open.
func (r *SystemRepository) HasRunningSync(syncType string, since time.Time) (bool, error) {
	var n int64
	err := r.db.Model(&systemEntity.SyncLog{}).
		Where("sync_type = ? AND status = ? AND started_at > ?", syncType, systemEntity.SyncRunning, since).
		Count(&n).Error
	return n > 0, err
}

// ListSyncLogs returns the newest logs first, optionally filtered by type.
func (r *SystemRepository) ListSyncLogs(syncType string, limit int) ([]systemEntity.SyncLog, error) {
	var logs []systemEntity.SyncLog
	q := r.db.Order("id DESC")
	if syncType != "" {
		q = q.Where("sync_type = ?", syncType)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&logs).Error
	return logs, err
}

// DeleteSyncLogsBefore purges closed sync logs that started before cutoff.
func (r *SystemRepository) DeleteSyncLogsBefore(cutoff time.Time) (int64, error) {
	res := r.db.Where("started_at < ? AND status <> ?", cutoff, systemEntity.SyncRunning).Delete(&systemEntity.SyncLog{})
	return res.RowsAffected, res.Error
}

// --- scheduled tasks ---

// FindTask returns the task row or nil.
func (r *SystemRepository) FindTask(name string) (*systemEntity.ScheduledTask, error) {
	var t systemEntity.ScheduledTask
	err := r.db.Where("name = ?", name).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// EnsureTask creates the task row if missing and refreshes its schedule definition.
func (r *SystemRepository) EnsureTask(t *systemEntity.ScheduledTask) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"kind", "interval_minutes", "fixed_time", "enabled", "updated_at"}),
	}).Create(t).Error
}

func (r *SystemRepository) SaveTask(t *systemEntity.ScheduledTask) error {
	return r.db.Save(t).Error
}

func (r *SystemRepository) ListTasks() ([]systemEntity.ScheduledTask, error) {
	var ts []systemEntity.ScheduledTask
	err := r.db.Order("name ASC").Find(&ts).Error
	return ts, err
}

// --- auto approval rules ---

func (r *SystemRepository) CreateRule(rule *systemEntity.AutoApprovalRule) error {
	return r.db.Create(rule).Error
}

func (r *SystemRepository) ListEnabledRules() ([]systemEntity.AutoApprovalRule, error) {
	var rules []systemEntity.AutoApprovalRule
	err := r.db.Where("enabled = ?", true).Order("name ASC").Find(&rules).Error
	return rules, err
}

func (r *SystemRepository) FindRule(name string) (*systemEntity.AutoApprovalRule, error) {
	var rule systemEntity.AutoApprovalRule
	if err := r.db.Where("name = ?", name).First(&rule).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

// --- operation logs ---

func (r *SystemRepository) CreateOperationLog(actor, action, detail string) error {
	return r.db.Create(&systemEntity.OperationLog{Actor: actor, Action: action, Detail: detail}).Error
}

func (r *SystemRepository) DeleteOperationLogsBefore(cutoff time.Time) (int64, error) {
	res := r.db.Where("created_at < ?", cutoff).Delete(&systemEntity.OperationLog{})
	return res.RowsAffected, res.Error
}
