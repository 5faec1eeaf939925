package view

import (
	"time"

	"bookview/layout"
)

// Debouncer collapses a burst of triggering events into exactly one
// trailing-edge invocation after the quiet period. Each Trigger replaces
// the pending callback, so the last payload wins.
type Debouncer struct {
	sched  layout.Scheduler
	window time.Duration
	gen    uint64
	cancel func()
}

// NewDebouncer creates a debouncer with the given quiet window.
func NewDebouncer(sched layout.Scheduler, window time.Duration) *Debouncer {
	return &Debouncer{sched: sched, window: window}
}

// Trigger schedules fn for the trailing edge, replacing any pending one.
func (d *Debouncer) Trigger(fn func()) {
	if d.cancel != nil {
		d.cancel()
	}
	d.gen++
	gen := d.gen
	d.cancel = d.sched.After(d.window, func() {
		// a timer that posted its callback right before being superseded
		// still gets here - only the newest generation runs
		if gen != d.gen {
			return
		}
		d.cancel = nil
		fn()
	})
}

// Stop drops any pending invocation, including callbacks already posted but
// not yet executed.
func (d *Debouncer) Stop() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.gen++
}

// Pending reports whether an invocation is scheduled.
func (d *Debouncer) Pending() bool {
	return d.cancel != nil
}
