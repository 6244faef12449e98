package xhrk

import "sync"

// Scheduler runs blocking work away from the owning event loop and posts
// the continuation back onto it, so listeners only ever run on the loop.
type Scheduler interface {
	// Go runs task in the background, the returned func (if any) is run on the loop
	Go(task func() func())
}

// InlineScheduler runs the task and its continuation immediately on the
// calling goroutine, turning async requests into blocking ones.
type InlineScheduler struct{}

// Go runs task then its continuation
func (InlineScheduler) Go(task func() func()) {
	if next := task(); next != nil {
		next()
	}
}

// SerialScheduler runs tasks on goroutines and serializes continuations
// with a lock. Wait blocks until every task and continuation has finished.
type SerialScheduler struct {
	lock sync.Mutex
	wg   sync.WaitGroup
}

// NewSerialScheduler for use outside of a real event loop
func NewSerialScheduler() *SerialScheduler {
	return &SerialScheduler{}
}

// Go runs task on a new goroutine
func (s *SerialScheduler) Go(task func() func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		next := task()
		if next == nil {
			return
		}
		s.lock.Lock()
		defer s.lock.Unlock()
		next()
	}()
}

// Wait for all in flight tasks
func (s *SerialScheduler) Wait() {
	s.wg.Wait()
}
