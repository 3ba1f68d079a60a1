package timeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"codeuchat/pkg/logger"
)

func startTimeline(t *testing.T) (*Timeline, context.CancelFunc) {
	t.Helper()
	tl := New(logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		tl.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return tl, cancel
}

func TestOrderByDueTime(t *testing.T) {
	tl, _ := startTimeline(t)

	var mu sync.Mutex
	var order []int
	record := func(i int) Task {
		return func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}
	}

	finished := make(chan struct{})
	tl.ScheduleIn(60*time.Millisecond, func() {
		record(3)()
		close(finished)
	})
	tl.ScheduleIn(30*time.Millisecond, record(2))
	tl.ScheduleNow(record(0))
	tl.ScheduleNow(record(1))

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatalf("tasks did not finish")
	}
	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		if v != i {
			t.Fatalf("execution order %v", order)
		}
	}
	if len(order) != 4 {
		t.Fatalf("expected 4 tasks, got %v", order)
	}
}

func TestLaterTaskWaitsForBusyWorker(t *testing.T) {
	tl, _ := startTimeline(t)

	var mu sync.Mutex
	var events []string
	log := func(s string) {
		mu.Lock()
		events = append(events, s)
		mu.Unlock()
	}

	done := make(chan struct{})
	tl.ScheduleNow(func() {
		log("slow start")
		time.Sleep(80 * time.Millisecond)
		log("slow end")
	})
	tl.ScheduleIn(10*time.Millisecond, func() {
		log("first start")
		time.Sleep(10 * time.Millisecond)
		log("first end")
	})
	tl.ScheduleIn(20*time.Millisecond, func() {
		log("second start")
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("tasks did not finish")
	}
	want := []string{"slow start", "slow end", "first start", "first end", "second start"}
	mu.Lock()
	defer mu.Unlock()
	if len(events) != len(want) {
		t.Fatalf("events %v", events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events %v, want %v", events, want)
		}
	}
}

func TestPanicDoesNotStopWorker(t *testing.T) {
	tl, _ := startTimeline(t)

	tl.ScheduleNow(func() { panic("boom") })
	ran := false
	if err := tl.Do(context.Background(), func() { ran = true }); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !ran {
		t.Fatalf("task after panic did not run")
	}
	if st := tl.Stats(); st.Panicked != 1 || st.Executed != 2 {
		t.Fatalf("stats %+v", st)
	}
}

func TestRecurringTask(t *testing.T) {
	tl, _ := startTimeline(t)

	count := 0
	done := make(chan struct{})
	var tick Task
	tick = func() {
		count++
		if count == 3 {
			close(done)
			return
		}
		tl.ScheduleIn(5*time.Millisecond, tick)
	}
	tl.ScheduleNow(tick)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("recurring task ran %d times", count)
	}
}

func TestStop(t *testing.T) {
	tl := New(logger.Discard())
	errc := make(chan error, 1)
	go func() { errc <- tl.Run(context.Background()) }()
	tl.Stop()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after Stop")
	}
	if err := tl.Do(context.Background(), func() {}); err != ErrStopped {
		t.Fatalf("Do after stop = %v", err)
	}
}
