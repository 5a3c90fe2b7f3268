package api

import (
	"sync"

	"github.com/labstack/echo/v4"

	"mes.GO/core/container"
	"mes.GO/core/registry"
)

// ModuleFunc mounts handlers on the authenticated /api group.
type ModuleFunc func(g *echo.Group, c *container.Container)

// RouteFunc mounts public handlers (health, metrics) on the root router.
type RouteFunc func(e *echo.Echo, c *container.Container)

// slot is one init-time list in the global registry, sealed by its first apply.
type slot[F any] struct {
	key string
	mu  sync.Mutex
}

func (s *slot[F]) add(fn F) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if registry.GlobalRegistry.IsLocked(s.key) {
		panic("api/registry: " + s.key + " already applied")
	}
	registry.GlobalRegistry.SetGlobal(s.key, append(s.list(), fn))
}

func (s *slot[F]) list() []F {
	if v, ok := registry.GlobalRegistry.GetGlobal(s.key); ok && v != nil {
		return v.([]F)
	}
	return nil
}

func (s *slot[F]) seal() []F {
	s.mu.Lock()
	defer s.mu.Unlock()
	registry.GlobalRegistry.Lock(s.key)
	return s.list()
}

var (
	modules = &slot[ModuleFunc]{key: registry.KeyRegistryAPI}
	routes  = &slot[RouteFunc]{key: registry.KeyRegistryRoutes}
)

// RegisterModule adds an /api module. Call from init().
func RegisterModule(fn ModuleFunc) { modules.add(fn) }

// RegisterRoute adds a root-level module. Call from init().
func RegisterRoute(fn RouteFunc) { routes.add(fn) }

// RegisterGET mounts a single public GET handler.
func RegisterGET(path string, h echo.HandlerFunc) {
	RegisterRoute(func(e *echo.Echo, _ *container.Container) { e.GET(path, h) })
}

// ApplyModules mounts every /api module on g and seals the list.
func ApplyModules(g *echo.Group, c *container.Container) {
	for _, fn := range modules.seal() {
		fn(g, c)
	}
}

// ApplyRoutes mounts every root-level module on e and seals the list.
func ApplyRoutes(e *echo.Echo, c *container.Container) {
	for _, fn := range routes.seal() {
		fn(e, c)
	}
}
