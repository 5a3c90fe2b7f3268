package cron

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"mes.GO/config"
	"mes.GO/core/container"
	"mes.GO/core/registry"
	"mes.GO/core/worktime"
	systemEntity "mes.GO/model/entity/system"
)

// Spec is when a job runs: every IntervalMinutes, or daily at FixedTime (HH:MM).
type Spec struct {
	Kind            string
	IntervalMinutes int
	FixedTime       string
}

func Every(minutes int) Spec {
	return Spec{Kind: systemEntity.TaskInterval, IntervalMinutes: minutes}
}

func DailyAt(hhmm string) Spec {
	return Spec{Kind: systemEntity.TaskFixedTime, FixedTime: hhmm}
}

// Expression validates the spec and returns its robfig/cron form.
func (s Spec) Expression() (string, error) {
	switch s.Kind {
	case systemEntity.TaskInterval:
		if s.IntervalMinutes < 1 || s.IntervalMinutes > 1440 {
			return "", fmt.Errorf("interval %d minutes out of range 1..1440", s.IntervalMinutes)
		}
		return fmt.Sprintf("@every %dm", s.IntervalMinutes), nil
	case systemEntity.TaskFixedTime:
		t, err := worktime.ParseClock(s.FixedTime)
		if err != nil || strings.Count(s.FixedTime, ":") != 1 {
			return "", fmt.Errorf("fixed time %q must be HH:MM", s.FixedTime)
		}
		d := time.Duration(t)
		h, m := int(d.Hours()), int(d.Minutes())%60
		return fmt.Sprintf("%d %d * * *", m, h), nil
	}
	return "", fmt.Errorf("unknown schedule kind %q", s.Kind)
}

// RunFunc is a job body. It gets the service container and a context cancelled on shutdown.
type RunFunc func(ctx context.Context, c *container.Container) error

// Job holds schedule and run function.
type Job struct {
	Name string
	// Spec resolves the schedule from configuration at start.
	Spec func(cfg *config.Config) Spec
	Run  RunFunc
}

var mu sync.Mutex

// Register adds a cron job. Call from init(). Panics if registry is locked.
func Register(name string, spec func(cfg *config.Config) Spec, run RunFunc) {
	mu.Lock()
	defer mu.Unlock()
	if registry.GlobalRegistry.IsLocked(registry.KeyRegistryCron) {
		panic("cron/registry: locked (register only during init before the scheduler starts)")
	}
	jobs := getJobs()
	if _, ok := jobs[name]; ok {
		panic("cron/registry: duplicate job " + name)
	}
	jobs[name] = Job{Name: name, Spec: spec, Run: run}
	registry.GlobalRegistry.SetGlobal(registry.KeyRegistryCron, jobs)
}

// Unregister removes a job (for tests).
func Unregister(name string) {
	mu.Lock()
	defer mu.Unlock()
	registry.GlobalRegistry.UnlockForTesting(registry.KeyRegistryCron)
	jobs := getJobs()
	delete(jobs, name)
	registry.GlobalRegistry.SetGlobal(registry.KeyRegistryCron, jobs)
}

func getJobs() map[string]Job {
	if v, ok := registry.GlobalRegistry.GetGlobal(registry.KeyRegistryCron); ok && v != nil {
		return v.(map[string]Job)
	}
	return make(map[string]Job)
}

// Jobs returns all registered jobs. Locks the cron registry on first call.
func Jobs() map[string]Job {
	mu.Lock()
	defer mu.Unlock()
	out := make(map[string]Job)
	for k, v := range getJobs() {
		out[k] = v
	}
	if !registry.GlobalRegistry.IsLocked(registry.KeyRegistryCron) {
		registry.GlobalRegistry.Lock(registry.KeyRegistryCron)
	}
	return out
}

// Names returns registered job names in order.
func Names() []string {
	jobs := Jobs()
	names := make([]string, 0, len(jobs))
	for n := range jobs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
