package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/camagru/camagru/internal/logging"
	"github.com/camagru/camagru/internal/metrics"
)

// Task is a unit of periodic maintenance
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs maintenance tasks on fixed intervals. Each task runs once at
// start and then on every tick; runs of one task never overlap.
type Scheduler struct {
	tasks  []Task
	logger *logging.Logger
	wg     sync.WaitGroup
	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler for the given tasks
func NewScheduler(logger *logging.Logger, tasks ...Task) *Scheduler {
	return &Scheduler{
		tasks:  tasks,
		logger: logger.WithComponent("scheduler"),
	}
}

// Start launches one loop per task. It returns an error when already running
// or when a task has no positive interval.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return fmt.Errorf("scheduler already started")
	}
	for _, t := range s.tasks {
		if t.Interval <= 0 {
			return fmt.Errorf("task %q has no interval", t.Name)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, t := range s.tasks {
		s.wg.Add(1)
		go s.loop(ctx, t)
	}

	s.logger.Infof("Scheduler started with %d tasks", len(s.tasks))
	return nil
}

// Stop cancels all loops and waits for running tasks to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, t Task) {
	defer s.wg.Done()

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	s.runOnce(ctx, t)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, t)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, t Task) {
	if err := t.Run(ctx); err != nil && ctx.Err() == nil {
		metrics.RecordError("scheduler", t.Name)
		s.logger.WithField("task", t.Name).ErrorWithErr("Maintenance task failed", err)
	}
}
