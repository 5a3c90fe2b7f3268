package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/datatypes"

	"mes.GO/core/container"
	"mes.GO/core/worktime"
	systemEntity "mes.GO/model/entity/system"
)

type syncReportsFlags struct {
	syncType string
	from     string
	to       string
	auto     bool
	force    bool
}

func newSyncReportsCmd() *cobra.Command {
	f := &syncReportsFlags{}
	c := &cobra.Command{
		Use:   "sync-reports",
		Short: "Materialize approved reports into the reporting tables",
		Long: `Rebuilds report_work_time and report_work_order_product for a date window.
Exit code 0 when the run succeeds, 1 otherwise.`,
		Run: WithContainer(func(ctx context.Context, cont *container.Container, out io.Writer) int {
			return runSyncReports(ctx, cont, f, out)
		}),
	}
	c.Flags().StringVar(&f.syncType, "type", systemEntity.SyncTypeAll, "work_time, work_order or all")
	c.Flags().StringVar(&f.from, "from", "", "window start YYYY-MM-DD")
	c.Flags().StringVar(&f.to, "to", "", "window end YYYY-MM-DD")
	c.Flags().BoolVar(&f.auto, "auto", false, "use the default window ending today")
	c.Flags().BoolVar(&f.force, "force", false, "ignore a recent run still marked running")
	return c
}

func syncWindow(cont *container.Container, f *syncReportsFlags, now time.Time) (datatypes.Date, datatypes.Date, error) {
	if f.auto || (f.from == "" && f.to == "") {
		from, to := cont.Reporting.AutoWindow(now)
		return from, to, nil
	}
	if f.from == "" || f.to == "" {
		return datatypes.Date{}, datatypes.Date{}, fmt.Errorf("--from and --to go together (or use --auto)")
	}
	from, err := worktime.ParseDate(f.from)
	if err != nil {
		return datatypes.Date{}, datatypes.Date{}, fmt.Errorf("--from: %w", err)
	}
	to, err := worktime.ParseDate(f.to)
	if err != nil {
		return datatypes.Date{}, datatypes.Date{}, fmt.Errorf("--to: %w", err)
	}
	return from, to, nil
}

func runSyncReports(ctx context.Context, cont *container.Container, f *syncReportsFlags, out io.Writer) int {
	from, to, err := syncWindow(cont, f, time.Now())
	if err != nil {
		fmt.Fprintln(out, err)
		return 1
	}

	var entry *systemEntity.SyncLog
	switch f.syncType {
	case systemEntity.SyncTypeWorkTime:
		entry, err = cont.Reporting.SyncWorkTime(ctx, from, to)
	case systemEntity.SyncTypeWorkOrder:
		entry, err = cont.Reporting.SyncWorkOrder(ctx, from, to)
	case systemEntity.SyncTypeAll:
		entry, err = cont.Reporting.SyncAll(ctx, from, to, f.force)
	default:
		fmt.Fprintf(out, "unknown --type %q\n", f.syncType)
		return 1
	}

	if entry != nil {
		fmt.Fprintf(out, `
=== Report Sync ===
Type:       %s
Window:     %s .. %s
Status:     %s
Processed:  %d
Created:    %d
Updated:    %d
Duration:   %.3fs
`, entry.SyncType, worktime.DayKey(from), worktime.DayKey(to), entry.Status,
			entry.RecordsProcessed, entry.RecordsCreated, entry.RecordsUpdated, entry.DurationSeconds)
	}
	if err != nil {
		fmt.Fprintf(out, "sync failed: %v\n", err)
		return 1
	}
	return 0
}

func init() {
	rootCmd.AddCommand(newSyncReportsCmd())
}
