package layout

import (
	"time"

	"go.uber.org/zap"

	"bookview/common"
)

type autoScrollState int

const (
	autoScrollStopped autoScrollState = iota
	autoScrollActive
	autoScrollSuspended
)

func (s autoScrollState) String() string {
	switch s {
	case autoScrollStopped:
		return "stopped"
	case autoScrollActive:
		return "active"
	case autoScrollSuspended:
		return "suspended"
	}
	panic("this should never happen - unknown auto-scroll state")
}

// autoScroller is the auto-scroll state machine shared by both strategies:
// Stopped -> Active <-> Suspended -> Stopped. The advancing mechanics stay
// strategy-specific - flow moves pixels, paged flips pages.
type autoScroller struct {
	log      *zap.Logger
	sched    Scheduler
	interval time.Duration
	step     func()

	state     autoScrollState
	wasActive bool
	cancel    func()
}

func newAutoScroller(sched Scheduler, interval time.Duration, step func(), log *zap.Logger) *autoScroller {
	return &autoScroller{log: log, sched: sched, interval: interval, step: step}
}

// Do executes an auto-scroll command and reports whether scrolling is
// active afterwards. Resume reactivates only when a prior session had
// scrolling running - a fresh document stays stopped.
func (a *autoScroller) Do(cmd common.AutoScrollCmd) bool {
	switch cmd {
	case common.AutoScrollStart:
		a.start()
	case common.AutoScrollStop:
		a.halt()
		a.wasActive = false
	case common.AutoScrollToggle:
		if a.state == autoScrollActive {
			a.halt()
			a.wasActive = false
		} else {
			a.start()
		}
	case common.AutoScrollResume:
		if a.state == autoScrollStopped && a.wasActive {
			a.start()
		}
	case common.AutoScrollIsActive:
	}
	return a.state == autoScrollActive
}

// Suspend pauses an active scroller for an overlay, remembering that it
// was running. Suspending a stopped scroller changes nothing.
func (a *autoScroller) Suspend() {
	if a.state != autoScrollActive {
		return
	}
	a.stopTicker()
	a.state = autoScrollSuspended
	a.wasActive = true
	a.log.Debug("Auto-scroll suspended")
}

// Unsuspend restores the pre-overlay state.
func (a *autoScroller) Unsuspend() {
	if a.state != autoScrollSuspended {
		return
	}
	if a.wasActive {
		a.start()
		return
	}
	a.state = autoScrollStopped
}

// Halt stops the ticker unconditionally but keeps the activity flag so a
// resume after reload can pick scrolling back up.
func (a *autoScroller) Halt() {
	active := a.state == autoScrollActive || a.state == autoScrollSuspended
	a.halt()
	a.wasActive = active
}

func (a *autoScroller) Active() bool {
	return a.state == autoScrollActive
}

func (a *autoScroller) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	a.interval = d
	if a.state == autoScrollActive {
		a.stopTicker()
		a.cancel = a.sched.Every(a.interval, a.step)
	}
}

func (a *autoScroller) start() {
	if a.state == autoScrollActive {
		return
	}
	a.stopTicker()
	a.cancel = a.sched.Every(a.interval, a.step)
	a.state = autoScrollActive
	a.wasActive = true
	a.log.Debug("Auto-scroll started", zap.Duration("interval", a.interval))
}

func (a *autoScroller) halt() {
	a.stopTicker()
	if a.state != autoScrollStopped {
		a.log.Debug("Auto-scroll stopped")
	}
	a.state = autoScrollStopped
}

func (a *autoScroller) stopTicker() {
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
}
