package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"mes.GO/core/container"
	"mes.GO/core/errs"
)

// Exit codes of the allocate command.
const (
	allocateOK           = 0
	allocateNotCompleted = 1
	allocateFailed       = 2
)

func newAllocateCmd() *cobra.Command {
	var (
		workOrderID uint
		force       bool
	)
	c := &cobra.Command{
		Use:   "allocate",
		Short: "Spread a completed work order's output over its approved reports",
		Long: `Runs labor-hour allocation for one work order.
Exit code 0 on success, 1 when the work order is not completed, 2 on any other failure.`,
		Run: WithContainerExit(allocateFailed, func(ctx context.Context, cont *container.Container, out io.Writer) int {
			return runAllocate(ctx, cont, workOrderID, force, out)
		}),
	}
	c.Flags().UintVar(&workOrderID, "workorder-id", 0, "work order id")
	c.Flags().BoolVar(&force, "force", false, "allocate even when the work order is not completed")
	_ = c.MarkFlagRequired("workorder-id")
	return c
}

func runAllocate(ctx context.Context, cont *container.Container, workOrderID uint, force bool, out io.Writer) int {
	res, err := cont.Allocation.Allocate(ctx, workOrderID, force)
	if errors.Is(err, errs.ErrNotCompleted) {
		fmt.Fprintf(out, "work order %d is not completed (use --force to allocate anyway)\n", workOrderID)
		return allocateNotCompleted
	}
	if err != nil {
		fmt.Fprintf(out, "allocation failed: %v\n", err)
		return allocateFailed
	}
	fmt.Fprintf(out, "work order %d: %d completed, %d reports changed\n", res.WorkOrderID, res.TotalCompleted, res.ReportsChanged)
	for _, l := range res.Lines {
		fmt.Fprintf(out, "  report %-6d %-24s %6.2fh ratio=%.4f allocated=%d\n", l.ReportID, l.ProcessName, l.WorkHours, l.Ratio, l.Allocated)
	}
	return allocateOK
}

func init() {
	rootCmd.AddCommand(newAllocateCmd())
}
