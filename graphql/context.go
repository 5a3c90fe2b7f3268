package graphql

import (
	"context"

	"mes.GO/core/container"
)

// Context keys for resolver injection (avoids circular imports).
type contextKey string

const (
	CtxKeyActor     contextKey = "actor"
	CtxKeyContainer contextKey = "container"
)

// HeaderActor names the caller when the request was not authenticated as someone.
const HeaderActor = "X-Actor"

// ActorFromContext returns who issued the query, or "anonymous".
func ActorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyActor).(string); ok && v != "" {
		return v
	}
	return "anonymous"
}

func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, CtxKeyActor, actor)
}

// ContainerFromContext gives _extension resolvers access to the services.
func ContainerFromContext(ctx context.Context) *container.Container {
	c, _ := ctx.Value(CtxKeyContainer).(*container.Container)
	return c
}

func WithContainer(ctx context.Context, c *container.Container) context.Context {
	return context.WithValue(ctx, CtxKeyContainer, c)
}
