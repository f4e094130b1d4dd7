// Package scheduler runs the daemon's periodic background work: the
// health sweeps and the ledger recompute. Each task ticks on its own
// interval and the whole set stops together when the manager's context
// is cancelled.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Task is one unit of periodic work. Run is invoked once per tick and
// must respect ctx; a returned error is logged, never fatal.
type Task interface {
	Name() string
	Interval() time.Duration
	Run(ctx context.Context) error
}

// Manager owns a set of periodic tasks.
type Manager struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    *logrus.Entry

	tasks []Task
	wg    sync.WaitGroup
}

// NewManager creates a manager bound to the given parent context.
func NewManager(ctx context.Context, log *logrus.Entry) *Manager {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	cCtx, cancel := context.WithCancel(ctx)
	return &Manager{ctx: cCtx, cancel: cancel, log: log}
}

// Add registers a task. Must be called before StartAll.
func (m *Manager) Add(task Task) {
	m.tasks = append(m.tasks, task)
}

// StartAll launches every registered task. Each task runs once
// immediately, then on its interval.
func (m *Manager) StartAll() {
	for _, task := range m.tasks {
		m.wg.Add(1)
		go m.loop(task)
	}
}

// StopAll cancels all tasks and waits for in-flight runs to finish.
func (m *Manager) StopAll() {
	m.cancel()
	m.wg.Wait()
}

func (m *Manager) loop(task Task) {
	defer m.wg.Done()

	log := m.log.WithField("task", task.Name())
	ticker := time.NewTicker(task.Interval())
	defer ticker.Stop()

	m.runOnce(task, log)
	for {
		select {
		case <-ticker.C:
			m.runOnce(task, log)
		case <-m.ctx.Done():
			return
		}
	}
}

func (m *Manager) runOnce(task Task, log *logrus.Entry) {
	start := time.Now()
	if err := task.Run(m.ctx); err != nil {
		log.WithError(err).Error("task failed")
		return
	}
	log.WithField("elapsed", time.Since(start).Round(time.Millisecond)).Debug("task completed")
}

// Func adapts a plain function into a Task.
type Func struct {
	TaskName string
	Every    time.Duration
	Fn       func(ctx context.Context) error
}

func (f Func) Name() string            { return f.TaskName }
func (f Func) Interval() time.Duration { return f.Every }

func (f Func) Run(ctx context.Context) error { return f.Fn(ctx) }
