package graphqlserver

import (
	"context"
	"encoding/json"
	"fmt"

	gql "github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"

	"mes.GO/core/container"
	"mes.GO/graphql"
	gqlmodels "mes.GO/graphql/models"
	"mes.GO/graphql/registry"
	"mes.GO/graphql/resolvers"
)

func init() {
	registry.Register("completionPreview", completionPreview)
}

// RootResolver is the root for graphql-go.
type RootResolver struct {
	C *container.Container
}

// Query returns the query resolver.
func (r *RootResolver) Query() *QueryResolver {
	return &QueryResolver{res: resolvers.NewResolver(r.C)}
}

// QueryResolver implements Query fields. Delegates to resolvers package.
type QueryResolver struct {
	res *resolvers.QueryResolver
}

func optional(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (r *QueryResolver) SyncLogs(ctx context.Context, args graphql.SyncLogsArgs) ([]*gqlmodels.SyncLog, error) {
	return r.res.SyncLogs(ctx, optional(args.SyncType), int(args.Limit))
}

func (r *QueryResolver) WorkOrder(ctx context.Context, args graphql.WorkOrderArgs) (*gqlmodels.WorkOrder, error) {
	return r.res.WorkOrder(ctx, string(args.ID))
}

func (r *QueryResolver) WorkOrders(ctx context.Context, args graphql.WorkOrdersArgs) ([]*gqlmodels.WorkOrder, error) {
	return r.res.WorkOrders(ctx, optional(args.Status), int(args.Limit))
}

func (r *QueryResolver) WorkTimeRollups(ctx context.Context, args graphql.WindowArgs) ([]*gqlmodels.WorkTimeRollup, error) {
	return r.res.WorkTimeRollups(ctx, args.From, args.To)
}

func (r *QueryResolver) WorkOrderRollups(ctx context.Context, args graphql.WindowArgs) ([]*gqlmodels.WorkOrderRollup, error) {
	return r.res.WorkOrderRollups(ctx, args.From, args.To)
}

func (r *QueryResolver) ScheduledTasks(ctx context.Context) ([]*gqlmodels.ScheduledTask, error) {
	return r.res.ScheduledTasks(ctx)
}

func (r *QueryResolver) Extension(ctx context.Context, args graphql.ExtensionArgs) (*string, error) {
	var in registry.Args
	if args.Args != nil && *args.Args != "" {
		if err := json.Unmarshal([]byte(*args.Args), &in); err != nil {
			return nil, fmt.Errorf("extension args: %w", err)
		}
	}
	out, err := registry.Resolve(ctx, args.Name, in)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

// completionPreview evaluates the completion rule for {"workorder_id": N} without
// changing anything.
func completionPreview(ctx context.Context, c *container.Container, args registry.Args) (interface{}, error) {
	id, err := args.ID("workorder_id")
	if err != nil {
		return nil, fmt.Errorf("completionPreview: %w", err)
	}
	return c.Completion.Evaluate(ctx, id)
}

// NewSchema parses the schema and returns a graphql-go Schema.
func NewSchema(c *container.Container) (*gql.Schema, error) {
	return gql.ParseSchema(graphql.Schema(), &RootResolver{C: c}, gql.UseFieldResolvers())
}

// Handler returns an http.Handler for GraphQL (relay format).
func Handler(schema *gql.Schema) *relay.Handler {
	return &relay.Handler{Schema: schema}
}
