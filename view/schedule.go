package view

import (
	"sync"
	"time"
)

// taskScheduler implements layout.Scheduler on top of the controller's task
// queue: timer callbacks are posted as tasks so all work still executes on
// the single controller goroutine.
type taskScheduler struct {
	post func(func())

	mu     sync.Mutex
	closed bool
	stops  map[chan struct{}]struct{}
}

func newTaskScheduler(post func(func())) *taskScheduler {
	return &taskScheduler{post: post, stops: map[chan struct{}]struct{}{}}
}

func (s *taskScheduler) register() (chan struct{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false
	}
	done := make(chan struct{})
	s.stops[done] = struct{}{}
	return done, true
}

func (s *taskScheduler) release(done chan struct{}) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if _, ok := s.stops[done]; ok {
				delete(s.stops, done)
				close(done)
			}
			s.mu.Unlock()
		})
	}
}

// Every runs fn with the given period on the controller goroutine until
// cancelled.
func (s *taskScheduler) Every(d time.Duration, fn func()) func() {
	done, ok := s.register()
	if !ok {
		return func() {}
	}
	go func() {
		t := time.NewTicker(d)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				s.post(fn)
			}
		}
	}()
	return s.release(done)
}

// After runs fn once after the delay on the controller goroutine unless
// cancelled.
func (s *taskScheduler) After(d time.Duration, fn func()) func() {
	done, ok := s.register()
	if !ok {
		return func() {}
	}
	cancel := s.release(done)
	go func() {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-done:
		case <-t.C:
			s.post(fn)
			cancel()
		}
	}()
	return cancel
}

// Shutdown cancels every outstanding timer.
func (s *taskScheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for done := range s.stops {
		close(done)
	}
	s.stops = map[chan struct{}]struct{}{}
}
