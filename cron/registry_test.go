package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mes.GO/config"
	"mes.GO/core/container"
	"mes.GO/core/registry"
)

func unlockRegistry(t *testing.T) {
	t.Helper()
	registry.GlobalRegistry.UnlockForTesting(registry.KeyRegistryCron)
}

func TestSpec_Expression(t *testing.T) {
	cases := []struct {
		spec Spec
		want string
		ok   bool
	}{
		{Every(30), "@every 30m", true},
		{Every(1440), "@every 1440m", true},
		{Every(0), "", false},
		{Every(1441), "", false},
		{DailyAt("02:30"), "30 2 * * *", true},
		{DailyAt("23:05"), "5 23 * * *", true},
		{DailyAt("2:30:00"), "", false},
		{DailyAt("25:00"), "", false},
		{Spec{Kind: "weekly"}, "", false},
	}
	for _, tc := range cases {
		got, err := tc.spec.Expression()
		if !tc.ok {
			assert.Error(t, err, "%+v", tc.spec)
			continue
		}
		require.NoError(t, err, "%+v", tc.spec)
		assert.Equal(t, tc.want, got)
	}
}

func TestRegistry_Register_Jobs(t *testing.T) {
	unlockRegistry(t)
	ran := false
	Register("testregistryjob", func(*config.Config) Spec { return Every(60) }, func(context.Context, *container.Container) error {
		ran = true
		return nil
	})
	defer Unregister("testregistryjob")

	jobs := Jobs()
	j, ok := jobs["testregistryjob"]
	require.True(t, ok, "testregistryjob not in Jobs()")
	assert.Equal(t, Every(60), j.Spec(config.Default()))
	require.NoError(t, j.Run(context.Background(), nil))
	assert.True(t, ran)
	assert.True(t, registry.GlobalRegistry.IsLocked(registry.KeyRegistryCron))
}

func TestRegistry_Register_DuplicatePanics(t *testing.T) {
	unlockRegistry(t)
	noop := func(context.Context, *container.Container) error { return nil }
	every := func(*config.Config) Spec { return Every(60) }
	Register("dupjob", every, noop)
	defer Unregister("dupjob")
	assert.Panics(t, func() { Register("dupjob", every, noop) })
}

func TestRegistry_LockedPanics(t *testing.T) {
	Jobs()
	defer unlockRegistry(t)
	assert.Panics(t, func() {
		Register("late", func(*config.Config) Spec { return Every(5) }, func(context.Context, *container.Container) error { return nil })
	})
}

func TestRegistry_BuiltinJobs(t *testing.T) {
	names := Names()
	for _, want := range []string{JobERPSync, JobMOConvert, JobCompletionSweep, JobReportSync, JobBackup, JobLogCleanup} {
		assert.Contains(t, names, want)
	}
	cfg := config.Default()
	jobs := Jobs()
	assert.Equal(t, Every(30), jobs[JobERPSync].Spec(cfg))
	assert.Equal(t, Every(30), jobs[JobMOConvert].Spec(cfg))
	assert.Equal(t, DailyAt("02:30"), jobs[JobReportSync].Spec(cfg))
	assert.Equal(t, DailyAt("03:00"), jobs[JobBackup].Spec(cfg))
	assert.Equal(t, DailyAt("03:30"), jobs[JobLogCleanup].Spec(cfg))
}
