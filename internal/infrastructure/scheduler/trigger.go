package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Trigger submits a task to a scheduler at a fixed interval
type Trigger struct {
	scheduler  *Scheduler
	task       string
	interval   time.Duration
	runOnStart bool
	logger     *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// TriggerOption configures a Trigger
type TriggerOption func(*Trigger)

// RunOnStart submits the task once as soon as the trigger starts
func RunOnStart() TriggerOption {
	return func(t *Trigger) {
		t.runOnStart = true
	}
}

// NewTrigger creates a trigger for task every interval
func NewTrigger(s *Scheduler, task string, interval time.Duration, logger *zap.Logger, opts ...TriggerOption) *Trigger {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Trigger{
		scheduler: s,
		task:      task,
		interval:  interval,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start starts the trigger loop
func (t *Trigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Trigger started",
		zap.String("task", t.task),
		zap.Duration("interval", t.interval),
	)
	return nil
}

// Stop stops the trigger loop
func (t *Trigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Trigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	if t.runOnStart {
		t.fire()
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.fire()
		}
	}
}

func (t *Trigger) fire() {
	err := t.scheduler.Submit(t.task)
	switch {
	case err == nil:
	case errors.Is(err, ErrJobQueueFull):
		// the previous run is still queued; skip this tick
		t.logger.Debug("Skipping tick, job queue full", zap.String("task", t.task))
	default:
		t.logger.Warn("Failed to submit scheduled task", zap.String("task", t.task), zap.Error(err))
	}
}
