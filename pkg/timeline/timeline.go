// Package timeline runs scheduled tasks one at a time on a single worker
// goroutine, ordered by due time. Code running inside a task may touch the
// store without locks.
package timeline

import (
	"container/heap"
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

var ErrStopped = errors.New("timeline stopped")

type Task func()

type entry struct {
	due  time.Time
	seq  uint64
	task Task
}

type queue []*entry

func (q queue) Len() int      { return len(q) }
func (q queue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *queue) Push(x any)   { *q = append(*q, x.(*entry)) }

func (q queue) Less(i, j int) bool {
	if !q[i].due.Equal(q[j].due) {
		return q[i].due.Before(q[j].due)
	}
	return q[i].seq < q[j].seq
}

func (q *queue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}

// Stats counts tasks since start.
type Stats struct {
	Executed uint64
	Panicked uint64
	Pending  int
}

type Timeline struct {
	log *slog.Logger
	now func() time.Time

	mu      sync.Mutex
	q       queue
	seq     uint64
	wake    chan struct{}
	stop    chan struct{}
	stopped sync.Once

	executed atomic.Uint64
	panicked atomic.Uint64
}

func New(log *slog.Logger) *Timeline {
	return &Timeline{
		log:  log,
		now:  time.Now,
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
	}
}

// ScheduleNow queues task behind everything already due.
func (t *Timeline) ScheduleNow(task Task) {
	t.ScheduleIn(0, task)
}

// ScheduleIn queues task to run no earlier than d from now. Tasks with the
// same due time run in scheduling order.
func (t *Timeline) ScheduleIn(d time.Duration, task Task) {
	t.mu.Lock()
	t.seq++
	heap.Push(&t.q, &entry{due: t.now().Add(d), seq: t.seq, task: task})
	t.mu.Unlock()
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// Do schedules fn and waits for it to finish. It must not be called from
// inside a task.
func (t *Timeline) Do(ctx context.Context, fn Task) error {
	done := make(chan struct{})
	t.ScheduleNow(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-t.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.q.Len()
}

func (t *Timeline) Stats() Stats {
	return Stats{Executed: t.executed.Load(), Panicked: t.panicked.Load(), Pending: t.Len()}
}

// Stop ends Run after the current task. Pending tasks are dropped.
func (t *Timeline) Stop() {
	t.stopped.Do(func() { close(t.stop) })
}

// Run drains the queue until ctx is done or Stop is called.
func (t *Timeline) Run(ctx context.Context) error {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.stop:
			return nil
		default:
		}

		t.mu.Lock()
		wait := time.Hour
		if t.q.Len() > 0 {
			next := t.q[0]
			wait = next.due.Sub(t.now())
			if wait <= 0 {
				heap.Pop(&t.q)
				t.mu.Unlock()
				t.run(next.task)
				continue
			}
		}
		t.mu.Unlock()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.stop:
			return nil
		case <-t.wake:
		case <-timer.C:
		}
	}
}

func (t *Timeline) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			t.panicked.Add(1)
			t.log.Error("task_panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	t.executed.Add(1)
	task()
}
