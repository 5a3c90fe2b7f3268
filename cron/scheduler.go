package cron

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"mes.GO/config"
	"mes.GO/core/container"
	"mes.GO/core/metrics"
	systemEntity "mes.GO/model/entity/system"
	systemRepo "mes.GO/model/repository/system"
)

// AutoApprovePrefix names the per-rule auto-approval jobs.
const AutoApprovePrefix = "auto_approve:"

type entry struct {
	job   Job
	spec  Spec
	sched cron.Schedule
	id    cron.EntryID
}

// Scheduler runs registered jobs on robfig/cron and persists their state in scheduled_tasks.
// A failing job is recorded and the scheduler keeps going.
type Scheduler struct {
	c       *cron.Cron
	cont    *container.Container
	log     *zap.Logger
	now     func() time.Time
	mu      sync.Mutex
	entries map[string]*entry
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewScheduler(cont *container.Container) *Scheduler {
	log := cont.Log.Named("scheduler")
	logger := cron.PrintfLogger(zap.NewStdLog(log))
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		c: cron.New(
			cron.WithLocation(time.Local),
			cron.WithLogger(logger),
			cron.WithChain(cron.SkipIfStillRunning(logger)),
		),
		cont:    cont,
		log:     log,
		now:     time.Now,
		entries: make(map[string]*entry),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add schedules job with its configured spec and makes sure its task row exists.
func (s *Scheduler) Add(job Job) error {
	spec := job.Spec(s.cont.Config)
	expr, err := spec.Expression()
	if err != nil {
		return fmt.Errorf("job %s: %w", job.Name, err)
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return fmt.Errorf("job %s: %w", job.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[job.Name]; ok {
		return fmt.Errorf("job %s already scheduled", job.Name)
	}

	next := sched.Next(s.now())
	task := &systemEntity.ScheduledTask{
		Name:            job.Name,
		Kind:            spec.Kind,
		IntervalMinutes: spec.IntervalMinutes,
		FixedTime:       spec.FixedTime,
		Enabled:         true,
		NextRunAt:       &next,
		UpdatedAt:       s.now(),
	}
	if err := systemRepo.NewSystemRepository(s.cont.DB).EnsureTask(task); err != nil {
		return fmt.Errorf("job %s: %w", job.Name, err)
	}

	name := job.Name
	id := s.c.Schedule(sched, cron.FuncJob(func() {
		_ = s.RunJob(s.ctx, name)
	}))
	s.entries[name] = &entry{job: job, spec: spec, sched: sched, id: id}
	return nil
}

// AddRegistered schedules every job from the registry plus one auto-approval job per
// enabled rule. When only is set, just that job is added.
func (s *Scheduler) AddRegistered(only string) error {
	jobs := Jobs()
	rules, err := systemRepo.NewSystemRepository(s.cont.DB).ListEnabledRules()
	if err != nil {
		return err
	}
	for _, rule := range rules {
		j := AutoApproveJob(rule)
		jobs[j.Name] = j
	}
	if only != "" {
		j, ok := jobs[only]
		if !ok {
			return fmt.Errorf("unknown job %q", only)
		}
		return s.Add(j)
	}
	names := make([]string, 0, len(jobs))
	for n := range jobs {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if err := s.Add(jobs[n]); err != nil {
			return err
		}
	}
	return nil
}

// AutoApproveJob runs one auto-approval rule on its own interval.
func AutoApproveJob(rule systemEntity.AutoApprovalRule) Job {
	minutes := rule.IntervalMinutes
	if minutes <= 0 {
		minutes = 30
	}
	return Job{
		Name: AutoApprovePrefix + rule.Name,
		Spec: func(_ *config.Config) Spec { return Every(minutes) },
		Run: func(ctx context.Context, c *container.Container) error {
			_, err := c.Reports.AutoApprove(ctx, rule)
			return err
		},
	}
}

// RunJob executes a scheduled job now and records the outcome on its task row.
func (s *Scheduler) RunJob(ctx context.Context, name string) error {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s is not scheduled", name)
	}

	started := s.now()
	err := s.safeRun(ctx, e.job)
	elapsed := s.now().Sub(started)
	metrics.RecordJob(name, err, elapsed.Seconds())
	if err != nil {
		s.log.Error("job failed", zap.String("job", name), zap.Duration("elapsed", elapsed), zap.Error(err))
	} else {
		s.log.Info("job finished", zap.String("job", name), zap.Duration("elapsed", elapsed))
	}

	if recErr := s.record(e, started, err); recErr != nil {
		s.log.Warn("job state not saved", zap.String("job", name), zap.Error(recErr))
	}
	return err
}

func (s *Scheduler) safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return job.Run(ctx, s.cont)
}

func (s *Scheduler) record(e *entry, started time.Time, runErr error) error {
	repo := systemRepo.NewSystemRepository(s.cont.DB)
	task, err := repo.FindTask(e.job.Name)
	if err != nil {
		return err
	}
	if task == nil {
		task = &systemEntity.ScheduledTask{
			Name:            e.job.Name,
			Kind:            e.spec.Kind,
			IntervalMinutes: e.spec.IntervalMinutes,
			FixedTime:       e.spec.FixedTime,
			Enabled:         true,
		}
	}
	next := e.sched.Next(s.now())
	task.LastRunAt = &started
	task.NextRunAt = &next
	task.ExecutionCount++
	if runErr != nil {
		task.ErrorCount++
		task.LastErrorMessage = runErr.Error()
	} else {
		task.SuccessCount++
	}
	task.UpdatedAt = s.now()
	return repo.SaveTask(task)
}

// Names returns the scheduled job names in order.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.entries))
	for n := range s.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (s *Scheduler) Start() {
	s.c.Start()
}

// Stop halts scheduling, cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.c.Stop().Done()
}
