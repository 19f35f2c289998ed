package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startScheduler(t *testing.T, cfg Config) *Scheduler {
	t.Helper()
	s := New(cfg, zap.NewNop())
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s
}

func TestJob_Lifecycle(t *testing.T) {
	job := NewJob("expire", 1)
	assert.Equal(t, JobStatusPending, job.Status)

	job.Start()
	assert.Equal(t, JobStatusRunning, job.Status)
	require.NotNil(t, job.StartedAt)

	job.Fail("boom")
	assert.Equal(t, "boom", job.Error)
	assert.True(t, job.ShouldRetry())

	job.ScheduleRetry(time.Second)
	assert.Equal(t, 1, job.RetryCount)
	assert.Equal(t, JobStatusPending, job.Status)
	require.NotNil(t, job.NextRetryAt)

	job.Start()
	job.Fail("boom again")
	assert.False(t, job.ShouldRetry())

	job.Start()
	job.Complete()
	assert.Equal(t, JobStatusSuccess, job.Status)
}

func TestScheduler_Submit(t *testing.T) {
	t.Run("not running", func(t *testing.T) {
		s := New(DefaultConfig(), nil)
		s.Register("noop", func(context.Context) error { return nil })
		assert.ErrorIs(t, s.Submit("noop"), ErrSchedulerNotRunning)
	})

	t.Run("unknown task", func(t *testing.T) {
		s := startScheduler(t, DefaultConfig())
		assert.ErrorIs(t, s.Submit("missing"), ErrUnknownTask)
	})

	t.Run("runs the task", func(t *testing.T) {
		s := startScheduler(t, DefaultConfig())
		var runs atomic.Int32
		s.Register("count", func(ctx context.Context) error {
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			runs.Add(1)
			return nil
		})

		require.NoError(t, s.Submit("count"))
		require.NoError(t, s.Submit("count"))
		assert.Eventually(t, func() bool { return runs.Load() == 2 }, time.Second, 5*time.Millisecond)
	})
}

func TestScheduler_Retries(t *testing.T) {
	s := startScheduler(t, Config{RetryAttempts: 2, RetryDelay: time.Millisecond})

	var runs atomic.Int32
	s.Register("flaky", func(context.Context) error {
		if runs.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, s.Submit("flaky"))
	assert.Eventually(t, func() bool { return runs.Load() == 3 }, time.Second, 5*time.Millisecond)

	// budget exhausted: one run plus two retries
	var failing atomic.Int32
	s.Register("broken", func(context.Context) error {
		failing.Add(1)
		return errors.New("permanent")
	})
	require.NoError(t, s.Submit("broken"))
	assert.Eventually(t, func() bool { return failing.Load() == 3 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(3), failing.Load())
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	s := New(DefaultConfig(), nil)
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))

	ctx := context.Background()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
}

func TestTrigger(t *testing.T) {
	s := startScheduler(t, DefaultConfig())
	var runs atomic.Int32
	s.Register("sweep", func(context.Context) error {
		runs.Add(1)
		return nil
	})

	trigger := NewTrigger(s, "sweep", 10*time.Millisecond, nil, RunOnStart())
	require.NoError(t, trigger.Start(context.Background()))
	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)

	require.NoError(t, trigger.Stop(context.Background()))
	stopped := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.LessOrEqual(t, runs.Load(), stopped+1, "at most one queued run after stop")
}
