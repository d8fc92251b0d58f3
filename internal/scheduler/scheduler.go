// Package scheduler provides a small pool of workers shared by every storage
// engine in the process. Each engine owns a Task; the task's callback runs to
// completion on a pool worker, so callbacks must bound their own run time.
package scheduler

import (
	"sync"
	"time"
)

type Pool struct {
	queue chan *Task
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{
		queue: make(chan *Task, 64),
		done:  make(chan struct{}),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case t := <-p.queue:
			t.run()
		case <-p.done:
			return
		}
	}
}

// Close stops the workers. Tasks still queued are dropped; callers are
// expected to deactivate their tasks first.
func (p *Pool) Close() {
	p.once.Do(func() { close(p.done) })
	p.wg.Wait()
}

// NewTask registers a callback with the pool. The task starts deactivated.
func (p *Pool) NewTask(name string, fn func()) *Task {
	t := &Task{pool: p, name: name, fn: fn}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// Task is a repeatable unit of work with explicit activation. A deactivated
// task never runs; Deactivate blocks until an in-flight run finishes.
type Task struct {
	pool *Pool
	name string
	fn   func()

	mu        sync.Mutex
	cond      *sync.Cond
	active    bool
	scheduled bool
	running   bool
	timer     *time.Timer
}

func (t *Task) Name() string { return t.name }

func (t *Task) Activate() {
	t.mu.Lock()
	t.active = true
	t.mu.Unlock()
}

func (t *Task) ActivateAndSchedule() {
	t.Activate()
	t.Schedule()
}

// Deactivate cancels any pending schedule and waits for a running callback
// to return. Safe to call repeatedly.
func (t *Task) Deactivate() {
	t.mu.Lock()
	t.active = false
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	for t.running || t.scheduled {
		t.cond.Wait()
	}
	t.mu.Unlock()
}

// Schedule queues the task for execution as soon as a worker is free.
// Scheduling an already-scheduled or deactivated task is a no-op.
func (t *Task) Schedule() {
	t.mu.Lock()
	if !t.active || t.scheduled {
		t.mu.Unlock()
		return
	}
	t.scheduled = true
	t.mu.Unlock()

	select {
	case t.pool.queue <- t:
	case <-t.pool.done:
		t.mu.Lock()
		t.scheduled = false
		t.cond.Broadcast()
		t.mu.Unlock()
	}
}

// ScheduleAfter arms a one-shot timer that schedules the task after d.
// A later call re-arms the timer.
func (t *Task) ScheduleAfter(d time.Duration) {
	t.mu.Lock()
	if !t.active {
		t.mu.Unlock()
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(d, t.Schedule)
	t.mu.Unlock()
}

func (t *Task) run() {
	t.mu.Lock()
	if !t.active {
		t.scheduled = false
		t.cond.Broadcast()
		t.mu.Unlock()
		return
	}
	t.scheduled = false
	t.running = true
	t.mu.Unlock()

	t.fn()

	t.mu.Lock()
	t.running = false
	t.cond.Broadcast()
	t.mu.Unlock()
}
