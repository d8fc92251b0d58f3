package scheduler

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTask_RunsWhenScheduled(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	ran := make(chan struct{}, 8)
	task := p.NewTask("t", func() { ran <- struct{}{} })
	task.ActivateAndSchedule()

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
}

func TestTask_DeactivatedNeverRuns(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	var runs int32
	task := p.NewTask("t", func() { atomic.AddInt32(&runs, 1) })
	task.Schedule() // not activated
	time.Sleep(20 * time.Millisecond)
	if atomic.LoadInt32(&runs) != 0 {
		t.Fatal("deactivated task ran")
	}
}

func TestTask_ScheduleAfterFires(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	ran := make(chan struct{}, 1)
	task := p.NewTask("t", func() { ran <- struct{}{} })
	task.Activate()
	task.ScheduleAfter(5 * time.Millisecond)

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("delayed schedule never fired")
	}
}

func TestTask_DeactivateWaitsForRunningCallback(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	entered := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	task := p.NewTask("t", func() {
		close(entered)
		<-release
		finished.Store(true)
	})
	task.ActivateAndSchedule()
	<-entered

	done := make(chan struct{})
	go func() {
		task.Deactivate()
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("Deactivate returned while the callback was running")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Deactivate never returned")
	}
	if !finished.Load() {
		t.Fatal("callback did not finish before Deactivate returned")
	}

	// Further schedules are no-ops, and Deactivate stays reentrant.
	task.Schedule()
	task.Deactivate()
}

func TestTask_RescheduleFromCallback(t *testing.T) {
	p := NewPool(1)

	var runs int32
	var task *Task
	task = p.NewTask("t", func() {
		if atomic.AddInt32(&runs, 1) < 3 {
			task.ScheduleAfter(time.Millisecond)
		}
	})
	task.ActivateAndSchedule()

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&runs) < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if atomic.LoadInt32(&runs) < 3 {
		t.Fatalf("want 3 runs via self-reschedule, got %d", atomic.LoadInt32(&runs))
	}
	task.Deactivate()
	p.Close()
}
