// Package custom holds site extensions built on the registries: a GraphQL
// _extension, a CLI command and an API route, all reporting the approval backlog.
package custom

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"mes.GO/api"
	"mes.GO/cmd"
	"mes.GO/core/container"
	gqlregistry "mes.GO/graphql/registry"
	reportRepo "mes.GO/model/repository/report"
)

// Backlog counts pending reports by kind and by process.
type Backlog struct {
	Total     int            `json:"total"`
	ByKind    map[string]int `json:"by_kind"`
	ByProcess map[string]int `json:"by_process"`
}

// PendingBacklog reads the reports still waiting for approval.
func PendingBacklog(ctx context.Context, c *container.Container) (*Backlog, error) {
	reps, err := reportRepo.NewReportRepository(c.DB.WithContext(ctx)).ListPending()
	if err != nil {
		return nil, err
	}
	b := &Backlog{ByKind: map[string]int{}, ByProcess: map[string]int{}}
	for _, r := range reps {
		b.Total++
		b.ByKind[r.Kind]++
		b.ByProcess[r.ProcessName]++
	}
	return b, nil
}

func printBacklog(out io.Writer, b *Backlog) {
	fmt.Fprintf(out, "Pending reports: %d\n", b.Total)
	keys := make([]string, 0, len(b.ByProcess))
	for k := range b.ByProcess {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "  %-20s %d\n", k, b.ByProcess[k])
	}
}

func init() {
	gqlregistry.Register("pendingBacklog", func(ctx context.Context, c *container.Container, _ gqlregistry.Args) (interface{}, error) {
		return PendingBacklog(ctx, c)
	})

	cmd.Register(&cobra.Command{
		Use:   "report:pending",
		Short: "Show the approval backlog by process",
		Run: cmd.WithContainer(func(ctx context.Context, c *container.Container, out io.Writer) int {
			b, err := PendingBacklog(ctx, c)
			if err != nil {
				fmt.Fprintln(out, err)
				return 1
			}
			printBacklog(out, b)
			return 0
		}),
	})

	api.RegisterModule(func(g *echo.Group, c *container.Container) {
		g.GET("/reports/pending", func(ec echo.Context) error {
			b, err := PendingBacklog(ec.Request().Context(), c)
			if err != nil {
				return api.Fail(ec, err)
			}
			return ec.JSON(http.StatusOK, b)
		})
	})
}
