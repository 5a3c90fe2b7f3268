package maintenance

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mes.GO/core/testdb"
	systemEntity "mes.GO/model/entity/system"
)

var fixedNow = time.Date(2024, 5, 1, 3, 0, 0, 0, time.Local)

func newService(t *testing.T, run Runner) (*Service, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "backups")
	svc := NewService(testdb.Open(t), Options{Dir: dir, Command: "dump", Args: []string{"--all"}, RetentionDays: 7, LogRetentionDays: 30}, nil)
	svc.run = run
	svc.now = func() time.Time { return fixedNow }
	return svc, dir
}

func TestBackup_WritesDump(t *testing.T) {
	var gotName string
	var gotArgs []string
	svc, dir := newService(t, func(_ context.Context, name string, args []string, out io.Writer) error {
		gotName, gotArgs = name, args
		_, err := io.WriteString(out, "CREATE TABLE work_orders;")
		return err
	})

	path, err := svc.Backup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "mes-backup-20240501-030000.sql"), path)
	assert.Equal(t, "dump", gotName)
	assert.Equal(t, []string{"--all"}, gotArgs)
	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE work_orders;", string(body))
}

func TestBackup_FailureLeavesNoFile(t *testing.T) {
	svc, dir := newService(t, func(context.Context, string, []string, io.Writer) error {
		return errors.New("access denied")
	})
	_, err := svc.Backup(context.Background())
	require.Error(t, err)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCleanupBackups(t *testing.T) {
	svc, dir := newService(t, nil)
	n, err := svc.CleanupBackups(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, os.MkdirAll(dir, 0o755))
	files := map[string]time.Time{
		"mes-backup-old.sql":    fixedNow.AddDate(0, 0, -10),
		"mes-backup-recent.sql": fixedNow.AddDate(0, 0, -2),
		"notes.txt":             fixedNow.AddDate(0, 0, -40),
	}
	for name, mod := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
		require.NoError(t, os.Chtimes(p, mod, mod))
	}

	n, err = svc.CleanupBackups(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = os.Stat(filepath.Join(dir, "mes-backup-old.sql"))
	assert.True(t, os.IsNotExist(err))
	assert.FileExists(t, filepath.Join(dir, "mes-backup-recent.sql"))
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
}

func TestNightly_StopsOnDumpFailure(t *testing.T) {
	svc, _ := newService(t, func(context.Context, string, []string, io.Writer) error {
		return errors.New("disk full")
	})
	assert.EqualError(t, svc.Nightly(context.Background()), "disk full")
}

func TestCleanupLogs(t *testing.T) {
	svc, _ := newService(t, nil)
	old := fixedNow.AddDate(0, 0, -31)
	recent := fixedNow.AddDate(0, 0, -1)
	require.NoError(t, svc.db.Create(&[]systemEntity.OperationLog{
		{Actor: "alice", Action: "report.approve", CreatedAt: old},
		{Actor: "bob", Action: "report.approve", CreatedAt: recent},
	}).Error)
	require.NoError(t, svc.db.Create(&[]systemEntity.SyncLog{
		{RunID: "a", SyncType: systemEntity.SyncTypeAll, Status: systemEntity.SyncSuccess, StartedAt: old},
		{RunID: "b", SyncType: systemEntity.SyncTypeAll, Status: systemEntity.SyncRunning, StartedAt: old},
		{RunID: "c", SyncType: systemEntity.SyncTypeAll, Status: systemEntity.SyncSuccess, StartedAt: recent},
	}).Error)

	res, err := svc.CleanupLogs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.OperationLogs)
	assert.Equal(t, int64(1), res.SyncLogs)

	var left int64
	require.NoError(t, svc.db.Model(&systemEntity.SyncLog{}).Count(&left).Error)
	assert.Equal(t, int64(2), left)
}
