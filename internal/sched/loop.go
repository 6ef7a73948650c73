package sched

import (
	"context"
	"log"
	"time"
)

// Task is one periodic job on the daemon loop. PeriodMS 0 runs the task
// on every pass.
type Task struct {
	Name     string
	PeriodMS uint64
	Run      func(nowMS uint64)
}

// Loop drives all registered tasks cooperatively on a single goroutine.
// A task that missed intervals while another ran long fires once and
// rebases its window to now, the same no-burst policy the stream table
// applies to sampling.
type Loop struct {
	clock Clock
	tick  time.Duration
	tasks []loopTask
}

type loopTask struct {
	Task
	lastRun uint64
}

// NewLoop returns a loop polling at tick, timed by clock.
func NewLoop(clock Clock, tick time.Duration) *Loop {
	return &Loop{clock: clock, tick: tick}
}

// Register appends a task. Tasks run in registration order on each pass.
// Register before Run; the loop is single-goroutine and unlocked.
func (l *Loop) Register(t Task) {
	l.tasks = append(l.tasks, loopTask{Task: t})
}

// RunOnce executes every due task at now, in registration order.
func (l *Loop) RunOnce(now uint64) {
	for i := range l.tasks {
		t := &l.tasks[i]
		if now-t.lastRun < t.PeriodMS {
			continue
		}
		t.lastRun = now
		t.Run(now)
	}
}

// Run polls until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	log.Printf("[sched] loop started: %d tasks, tick %s", len(l.tasks), l.tick)
	ticker := time.NewTicker(l.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("[sched] loop stopped")
			return
		case <-ticker.C:
			l.RunOnce(l.clock.NowMS())
		}
	}
}
