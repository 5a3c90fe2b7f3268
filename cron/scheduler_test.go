package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mes.GO/config"
	"mes.GO/core/container"
	"mes.GO/core/testdb"
	systemEntity "mes.GO/model/entity/system"
	systemRepo "mes.GO/model/repository/system"
)

func newScheduler(t *testing.T) (*Scheduler, *container.Container) {
	t.Helper()
	cont := container.New(testdb.Open(t), config.Default(), nil, container.Options{})
	s := NewScheduler(cont)
	t.Cleanup(s.Stop)
	return s, cont
}

func task(t *testing.T, cont *container.Container, name string) *systemEntity.ScheduledTask {
	t.Helper()
	tk, err := systemRepo.NewSystemRepository(cont.DB).FindTask(name)
	require.NoError(t, err)
	require.NotNil(t, tk)
	return tk
}

func TestScheduler_RunJobRecordsState(t *testing.T) {
	s, cont := newScheduler(t)
	calls := 0
	require.NoError(t, s.Add(Job{
		Name: "flaky",
		Spec: func(*config.Config) Spec { return Every(5) },
		Run: func(context.Context, *container.Container) error {
			calls++
			if calls == 1 {
				return errors.New("source offline")
			}
			return nil
		},
	}))

	tk := task(t, cont, "flaky")
	assert.Equal(t, systemEntity.TaskInterval, tk.Kind)
	assert.Equal(t, 5, tk.IntervalMinutes)
	require.NotNil(t, tk.NextRunAt)
	assert.Nil(t, tk.LastRunAt)

	assert.Error(t, s.RunJob(context.Background(), "flaky"))
	tk = task(t, cont, "flaky")
	assert.Equal(t, 1, tk.ExecutionCount)
	assert.Equal(t, 1, tk.ErrorCount)
	assert.Equal(t, "source offline", tk.LastErrorMessage)
	require.NotNil(t, tk.LastRunAt)
	assert.True(t, tk.NextRunAt.After(*tk.LastRunAt))

	require.NoError(t, s.RunJob(context.Background(), "flaky"))
	tk = task(t, cont, "flaky")
	assert.Equal(t, 2, tk.ExecutionCount)
	assert.Equal(t, 1, tk.SuccessCount)
	assert.Equal(t, 1, tk.ErrorCount)
}

func TestScheduler_PanicIsRecorded(t *testing.T) {
	s, cont := newScheduler(t)
	require.NoError(t, s.Add(Job{
		Name: "boom",
		Spec: func(*config.Config) Spec { return DailyAt("03:00") },
		Run:  func(context.Context, *container.Container) error { panic("nil pointer") },
	}))
	err := s.RunJob(context.Background(), "boom")
	require.Error(t, err)
	tk := task(t, cont, "boom")
	assert.Equal(t, 1, tk.ErrorCount)
	assert.Contains(t, tk.LastErrorMessage, "nil pointer")
	assert.Equal(t, "03:00", tk.FixedTime)
	assert.Equal(t, 3, tk.NextRunAt.In(time.Local).Hour())
}

func TestScheduler_RejectsBadSpecAndDuplicates(t *testing.T) {
	s, _ := newScheduler(t)
	noop := func(context.Context, *container.Container) error { return nil }
	assert.Error(t, s.Add(Job{Name: "bad", Spec: func(*config.Config) Spec { return Every(0) }, Run: noop}))
	require.NoError(t, s.Add(Job{Name: "once", Spec: func(*config.Config) Spec { return Every(1) }, Run: noop}))
	assert.Error(t, s.Add(Job{Name: "once", Spec: func(*config.Config) Spec { return Every(1) }, Run: noop}))
	assert.Error(t, s.RunJob(context.Background(), "missing"))
}

func TestScheduler_AddRegisteredIncludesRuleJobs(t *testing.T) {
	s, cont := newScheduler(t)
	repo := systemRepo.NewSystemRepository(cont.DB)
	require.NoError(t, repo.CreateRule(&systemEntity.AutoApprovalRule{Name: "night", Enabled: true, IntervalMinutes: 45, MaxWorkHours: 12, MaxDefectRate: 5, MaxOvertimeHours: 4}))
	require.NoError(t, repo.CreateRule(&systemEntity.AutoApprovalRule{Name: "off", Enabled: false, IntervalMinutes: 30}))

	require.NoError(t, s.AddRegistered(""))
	names := s.Names()
	assert.Contains(t, names, AutoApprovePrefix+"night")
	assert.NotContains(t, names, AutoApprovePrefix+"off")
	assert.Contains(t, names, JobReportSync)
	assert.Equal(t, 45, task(t, cont, AutoApprovePrefix+"night").IntervalMinutes)

	// nothing pending: the rule job succeeds and approves nothing
	require.NoError(t, s.RunJob(context.Background(), AutoApprovePrefix+"night"))
	assert.Equal(t, 1, task(t, cont, AutoApprovePrefix+"night").SuccessCount)
}

func TestScheduler_AddRegisteredSingleJob(t *testing.T) {
	s, _ := newScheduler(t)
	require.NoError(t, s.AddRegistered(JobCompletionSweep))
	assert.Equal(t, []string{JobCompletionSweep}, s.Names())
	assert.Error(t, s.AddRegistered("nope"))
}
