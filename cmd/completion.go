package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"mes.GO/core/container"
	completionService "mes.GO/service/completion"
)

func printBatch(out io.Writer, label string, res *completionService.BatchResult) {
	if res == nil {
		return
	}
	fmt.Fprintf(out, "%s: checked %d, transitioned %d\n", label, res.Checked, res.Transitions)
	for _, e := range res.Errors {
		fmt.Fprintf(out, "  [error] %s\n", e)
	}
}

var completionSweepCmd = &cobra.Command{
	Use:   "completion:sweep",
	Short: "Complete every open work order whose approved output meets its target",
	Run: WithContainer(func(ctx context.Context, c *container.Container, out io.Writer) int {
		res, err := c.Completion.Sweep(ctx)
		printBatch(out, "Sweep", res)
		if err != nil {
			fmt.Fprintf(out, "Sweep failed: %v\n", err)
			return 1
		}
		return 0
	}),
}

var completionAuditCmd = &cobra.Command{
	Use:   "completion:audit",
	Short: "Reopen completed work orders that no longer meet their target",
	Run: WithContainer(func(ctx context.Context, c *container.Container, out io.Writer) int {
		res, err := c.Completion.Audit(ctx)
		printBatch(out, "Audit", res)
		if err != nil {
			fmt.Fprintf(out, "Audit failed: %v\n", err)
			return 1
		}
		return 0
	}),
}

func init() {
	rootCmd.AddCommand(completionSweepCmd, completionAuditCmd)
}
