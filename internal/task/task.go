// Package task runs named, cancellable goroutines with a shared lifecycle.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-obdsim/logger"
)

// startTimeout bounds how long Start waits for a goroutine to come up.
const startTimeout = 5 * time.Second

// ErrStopped is returned when starting a task on a stopped manager.
var ErrStopped = errors.New("task: manager stopped")

// Func is one iteration of a task. Return false to end the task.
type Func func() bool

// Manager manages the lifecycle of goroutines (tasks).
//
// Every task observes the manager context between iterations; Stop cancels it and Wait
// blocks until all tasks returned. After Wait the manager can start new tasks again.
//
//	mgr := task.NewManager(ctx, l)
//	_ = mgr.Start("loop", func() bool {
//	    // one iteration
//	    return true
//	})
//	mgr.Stop()
//	mgr.Wait()
type Manager struct {
	pctx   context.Context
	logger logger.Logger

	mu     sync.RWMutex // protects ctx and cancel
	ctx    context.Context
	cancel context.CancelFunc

	wg     sync.WaitGroup
	waitMu sync.RWMutex // serializes task creation against Wait
	count  atomic.Int32
}

// NewManager creates a Manager whose tasks are bound to ctx.
func NewManager(ctx context.Context, l logger.Logger) *Manager {
	mgr := &Manager{pctx: ctx, logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

// Context returns the context shared by the running tasks.
func (mgr *Manager) Context() context.Context {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	return mgr.ctx
}

// Start runs fn repeatedly in a new goroutine until it returns false or the manager stops.
// A panic inside fn is recovered, logged, and ends the task.
func (mgr *Manager) Start(name string, fn Func) error {
	return mgr.spawn(name, func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			if !mgr.callWithRecover(name, fn) {
				return
			}
		}
	})
}

// StartInterval runs fn every interval until it returns false or the manager stops.
func (mgr *Manager) StartInterval(name string, fn Func, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("task: invalid interval %v for %s", interval, name)
	}

	return mgr.spawn(name, func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !mgr.callWithRecover(name, fn) {
					return
				}
			}
		}
	})
}

// Stop signals all running tasks to exit. It does not wait.
func (mgr *Manager) Stop() {
	mgr.mu.Lock()
	mgr.cancel()
	mgr.mu.Unlock()
}

// Wait blocks until every task has returned, then re-arms the manager.
func (mgr *Manager) Wait() {
	mgr.waitMu.Lock()
	defer mgr.waitMu.Unlock()

	mgr.wg.Wait()

	mgr.mu.Lock()
	mgr.ctx, mgr.cancel = context.WithCancel(mgr.pctx)
	mgr.mu.Unlock()
}

// TaskCount returns the number of running tasks.
func (mgr *Manager) TaskCount() int {
	return int(mgr.count.Load())
}

func (mgr *Manager) spawn(name string, body func(ctx context.Context)) error {
	mgr.waitMu.RLock()
	defer mgr.waitMu.RUnlock()

	ctx := mgr.Context()
	if ctx.Err() != nil {
		return fmt.Errorf("%w: cannot start %s", ErrStopped, name)
	}

	mgr.logger.Debug("start task", "name", name)

	started := make(chan struct{})
	mgr.wg.Add(1)
	go func() {
		defer mgr.wg.Done()

		mgr.count.Add(1)
		defer func() {
			mgr.count.Add(-1)
			mgr.logger.Debug("task terminated", "name", name, "task_count", mgr.TaskCount())
		}()
		close(started)

		body(ctx)
	}()

	select {
	case <-started:
		return nil
	case <-time.After(startTimeout):
		return fmt.Errorf("task: timeout waiting for %s to start", name)
	}
}

func (mgr *Manager) callWithRecover(name string, fn Func) (cont bool) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task", "name", name, "panic", r)
			cont = false
		}
	}()

	return fn()
}
