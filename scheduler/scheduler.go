/*
Package scheduler runs delayed one-shot tasks on a single background goroutine.

At most one task is armed at a time. Scheduling again replaces the armed task and
restarts the delay, Cancel drops it. Tasks run on the scheduler goroutine, one after
the other, so a task must not call Stop.
*/
package scheduler

import (
	"errors"
	"sync"
	"time"

	"github.com/justloop/cloudstate/utils"
	log "github.com/sirupsen/logrus"
)

var logTag = "cloudstate.scheduler"

// ErrStopped is returned by Schedule after Stop
var ErrStopped = errors.New("scheduler is stopped")

type request struct {
	delay time.Duration
	task  func()
	gen   uint64
}

// Scheduler owns one timer driven by one goroutine
type Scheduler struct {
	mu      sync.Mutex
	next    *request
	gen     uint64
	pending bool
	stopped bool

	wakeCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a scheduler and starts its goroutine
func New() *Scheduler {
	s := &Scheduler{
		wakeCh: make(chan struct{}, 1),
		doneCh: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.loop()
	return s
}

// Schedule arms task to run once after delay, replacing any armed task.
// It never blocks on a running task.
func (s *Scheduler) Schedule(delay time.Duration, task func()) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	s.gen++
	s.next = &request{delay: delay, task: task, gen: s.gen}
	s.pending = true
	s.mu.Unlock()
	s.wake()
	return nil
}

// Cancel drops the armed task, if any. A task already running is not affected.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	s.gen++
	s.next = nil
	s.pending = false
	s.mu.Unlock()
	s.wake()
}

// Pending reports whether a task is armed and has not started yet
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Stop cancels the armed task, waits for a running task to return and stops the goroutine.
// It is safe to call multiple times.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.gen++
	s.next = nil
	s.pending = false
	s.mu.Unlock()
	s.stopOnce.Do(func() {
		close(s.doneCh)
	})
	s.wg.Wait()
}

func (s *Scheduler) wake() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	var timer *time.Timer
	var timerC <-chan time.Time
	var armed *request

	disarm := func() {
		if timer != nil {
			timer.Stop()
		}
		timer, timerC, armed = nil, nil, nil
	}

	for {
		select {
		case <-s.wakeCh:
			s.mu.Lock()
			req, gen := s.next, s.gen
			s.next = nil
			s.mu.Unlock()
			if req != nil {
				disarm()
				timer = time.NewTimer(req.delay)
				timerC = timer.C
				armed = req
			} else if armed != nil && armed.gen != gen {
				disarm()
			}

		case <-timerC:
			req := armed
			timer, timerC, armed = nil, nil, nil
			s.mu.Lock()
			current := req.gen == s.gen && !s.stopped
			if current {
				s.pending = false
			}
			s.mu.Unlock()
			if current {
				s.run(req.task)
			}

		case <-s.doneCh:
			disarm()
			log.WithField("tag", logTag).Debug("scheduler stopped")
			return
		}
	}
}

func (s *Scheduler) run(task func()) {
	defer utils.DoPanicRecovery("scheduler task")
	task()
}
