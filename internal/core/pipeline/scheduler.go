package pipeline

import (
	"container/heap"
	"sync"
	"time"
)

// Scheduler runs deferred tasks off a single goroutine draining a
// monotonic-deadline min-heap, instead of spawning one timer goroutine per
// submission. Due tasks run in their own goroutine, so a task blocking on a
// full admission queue delays only that admission, never later-due tasks.
type Scheduler struct {
	mu    sync.Mutex
	tasks taskHeap

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

type task struct {
	at time.Time
	fn func()
}

type taskHeap []task

func (h taskHeap) Len() int           { return len(h) }
func (h taskHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }
func (h taskHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)        { *h = append(*h, x.(task)) }

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	*h = old[:n-1]
	return t
}

// NewScheduler starts the drain loop.
func NewScheduler() *Scheduler {
	s := &Scheduler{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go s.loop()
	return s
}

// Schedule runs fn after the given delay. It never blocks the caller.
func (s *Scheduler) Schedule(delay time.Duration, fn func()) {
	s.mu.Lock()
	heap.Push(&s.tasks, task{at: time.Now().Add(delay), fn: fn})
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Close stops the drain loop. Tasks not yet due are dropped.
func (s *Scheduler) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *Scheduler) loop() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	for {
		s.mu.Lock()
		var wait time.Duration
		if len(s.tasks) == 0 {
			wait = time.Hour
		} else {
			wait = time.Until(s.tasks[0].at)
		}
		s.mu.Unlock()

		if wait <= 0 {
			s.runDue()
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-timer.C:
			s.runDue()
		case <-s.wake:
		case <-s.done:
			return
		}
	}
}

func (s *Scheduler) runDue() {
	now := time.Now()
	s.mu.Lock()
	var due []task
	for len(s.tasks) > 0 && !s.tasks[0].at.After(now) {
		due = append(due, heap.Pop(&s.tasks).(task))
	}
	s.mu.Unlock()
	for _, t := range due {
		go t.fn()
	}
}
