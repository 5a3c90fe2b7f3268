// Package registry holds the named resolvers reachable through the
// monitoring schema's _extension field.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"mes.GO/core/container"
	"mes.GO/core/registry"
	"mes.GO/graphql"
)

// Args is the decoded JSON object passed as _extension(args:).
type Args map[string]interface{}

// ID reads a positive integer id. JSON numbers arrive as float64.
func (a Args) ID(key string) (uint, error) {
	switch v := a[key].(type) {
	case float64:
		if v >= 1 && v == float64(uint(v)) {
			return uint(v), nil
		}
	case nil:
		return 0, fmt.Errorf("%s is required", key)
	}
	return 0, fmt.Errorf("%s must be a positive integer", key)
}

// String returns a string argument, or def when absent.
func (a Args) String(key, def string) string {
	if s, ok := a[key].(string); ok && s != "" {
		return s
	}
	return def
}

// ResolverFunc answers one extension call.
type ResolverFunc func(ctx context.Context, c *container.Container, args Args) (interface{}, error)

var mu sync.Mutex

func entries() map[string]ResolverFunc {
	if v, ok := registry.GlobalRegistry.GetGlobal(registry.KeyRegistryGraphQL); ok && v != nil {
		return v.(map[string]ResolverFunc)
	}
	return make(map[string]ResolverFunc)
}

// Register adds an extension from init(). Panics on duplicates or once
// the first query has sealed the registry.
func Register(name string, fn ResolverFunc) {
	mu.Lock()
	defer mu.Unlock()
	if registry.GlobalRegistry.IsLocked(registry.KeyRegistryGraphQL) {
		panic("graphql/registry: register " + name + " after first query")
	}
	m := entries()
	if _, dup := m[name]; dup {
		panic("graphql/registry: duplicate " + name)
	}
	m[name] = fn
	registry.GlobalRegistry.SetGlobal(registry.KeyRegistryGraphQL, m)
}

// Unregister drops an extension and reopens the registry. Tests only.
func Unregister(name string) {
	mu.Lock()
	defer mu.Unlock()
	registry.GlobalRegistry.UnlockForTesting(registry.KeyRegistryGraphQL)
	m := entries()
	delete(m, name)
	registry.GlobalRegistry.SetGlobal(registry.KeyRegistryGraphQL, m)
}

// Resolve runs the named extension against the container carried by ctx.
func Resolve(ctx context.Context, name string, args Args) (interface{}, error) {
	mu.Lock()
	if !registry.GlobalRegistry.IsLocked(registry.KeyRegistryGraphQL) {
		registry.GlobalRegistry.Lock(registry.KeyRegistryGraphQL)
	}
	fn, ok := entries()[name]
	mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown extension: %s", name)
	}
	c := graphql.ContainerFromContext(ctx)
	if c == nil {
		return nil, fmt.Errorf("%s: no container in request context", name)
	}
	if args == nil {
		args = Args{}
	}
	return fn(ctx, c, args)
}

// Names lists registered extensions, sorted.
func Names() []string {
	mu.Lock()
	defer mu.Unlock()
	m := entries()
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
