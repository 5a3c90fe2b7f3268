// Package maintenance holds the nightly housekeeping jobs: database dumps,
// dump retention and log retention.
package maintenance

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	systemRepo "mes.GO/model/repository/system"
)

const backupPrefix = "mes-backup-"

type Options struct {
	Dir              string
	Command          string
	Args             []string
	RetentionDays    int
	LogRetentionDays int
}

// Runner executes a dump command writing to out.
type Runner func(ctx context.Context, name string, args []string, out io.Writer) error

func execRunner(ctx context.Context, name string, args []string, out io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = out
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

type CleanupResult struct {
	OperationLogs int64 `json:"operation_logs"`
	SyncLogs      int64 `json:"sync_logs"`
}

type Service struct {
	db   *gorm.DB
	opts Options
	run  Runner
	log  *zap.Logger
	now  func() time.Time
}

func NewService(db *gorm.DB, opts Options, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Dir == "" {
		opts.Dir = "var/backups"
	}
	if opts.Command == "" {
		opts.Command = "mysqldump"
	}
	if opts.RetentionDays <= 0 {
		opts.RetentionDays = 30
	}
	if opts.LogRetentionDays <= 0 {
		opts.LogRetentionDays = 90
	}
	return &Service{db: db, opts: opts, run: execRunner, log: log, now: time.Now}
}

// Backup dumps the database into a timestamped file under the backup dir and
// returns its path. A failed dump leaves no file behind.
func (s *Service) Backup(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.opts.Dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(s.opts.Dir, backupPrefix+s.now().Format("20060102-150405")+".sql")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	runErr := s.run(ctx, s.opts.Command, s.opts.Args, f)
	closeErr := f.Close()
	if runErr == nil {
		runErr = closeErr
	}
	if runErr != nil {
		os.Remove(path)
		return "", runErr
	}
	s.log.Info("database backup written", zap.String("path", path))
	return path, nil
}

// CleanupBackups removes dump files older than the retention window.
func (s *Service) CleanupBackups(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(s.opts.Dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	cutoff := s.now().AddDate(0, 0, -s.opts.RetentionDays)
	removed := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if e.IsDir() || !strings.HasPrefix(e.Name(), backupPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return removed, err
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.opts.Dir, e.Name())); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		s.log.Info("old backups removed", zap.Int("count", removed))
	}
	return removed, nil
}

// CleanupLogs deletes operation and sync logs older than the log retention window.
func (s *Service) CleanupLogs(ctx context.Context) (*CleanupResult, error) {
	cutoff := s.now().AddDate(0, 0, -s.opts.LogRetentionDays)
	repo := systemRepo.NewSystemRepository(s.db.WithContext(ctx))
	res := &CleanupResult{}
	var err error
	if res.OperationLogs, err = repo.DeleteOperationLogsBefore(cutoff); err != nil {
		return res, err
	}
	if res.SyncLogs, err = repo.DeleteSyncLogsBefore(cutoff); err != nil {
		return res, err
	}
	s.log.Info("log retention applied",
		zap.Time("cutoff", cutoff),
		zap.Int64("operation_logs", res.OperationLogs),
		zap.Int64("sync_logs", res.SyncLogs))
	return res, nil
}

// Nightly runs the dump then prunes old dumps.
func (s *Service) Nightly(ctx context.Context) error {
	if _, err := s.Backup(ctx); err != nil {
		return err
	}
	_, err := s.CleanupBackups(ctx)
	return err
}
