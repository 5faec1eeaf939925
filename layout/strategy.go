// Package layout implements the two mutually exclusive rendering
// strategies - continuous flow scrolling and paginated columns. Exactly one
// strategy is bound per loaded document; switching happens only through a
// full display reset, and the outgoing strategy's running behaviors must be
// stopped first.
package layout

import (
	"time"

	"bookview/cfi"
	"bookview/common"
)

// Metrics describes the viewport geometry a strategy lays content out for.
type Metrics struct {
	ViewportWidth    int
	ViewportHeight   int
	ColumnsPerScreen int
	RTL              bool
}

// PageCounts is the pagination summary reported with every position update.
// Flow mode reports zero totals - there are no discrete pages to count.
type PageCounts struct {
	Current        int `json:"current"`
	Total          int `json:"total"`
	PagesPerScreen int `json:"pages_per_screen"`
}

// KeyEvent is a normalized key press delivered to shortcut handling.
type KeyEvent struct {
	Key   string `json:"key"`
	Ctrl  bool   `json:"ctrl"`
	Alt   bool   `json:"alt"`
	Shift bool   `json:"shift"`
	Meta  bool   `json:"meta"`
}

// GestureKind discriminates touch gestures routed to the active strategy.
type GestureKind int

const (
	GestureSwipeLeft GestureKind = iota
	GestureSwipeRight
	GestureSwipeUp
	GestureSwipeDown
	GestureDragMargin
	GestureDragEnd
)

// Gesture is a recognized touch gesture. Recognition itself happens outside
// this core - only routing and strategy reaction live here.
type Gesture struct {
	Kind GestureKind
	X    int
	Y    int
}

// Scheduler issues cancellable timers tied to the document lifetime. The
// controller provides the real implementation; tests drive a manual one.
type Scheduler interface {
	// Every runs fn repeatedly with the given period until cancelled.
	Every(d time.Duration, fn func()) (cancel func())
	// After runs fn once after the given delay unless cancelled.
	After(d time.Duration, fn func()) (cancel func())
}

// Strategy is the capability contract shared by the two layout variants.
// All mode-dependent operations of the controller go through it.
type Strategy interface {
	// Layout (re)computes the arrangement for current content and
	// viewport. Safe to call repeatedly - idempotent while content and
	// viewport are unchanged.
	Layout(isTitlePage bool) error

	// ScrollByPage moves one screenful. In paged mode allPagesOnScreen
	// advances by a whole multi-column screen, and flipIfRTL inverts
	// direction for right-to-left books.
	ScrollByPage(backwards, allPagesOnScreen, flipIfRTL bool)

	// ScrollToFraction moves to a relative point of the document.
	ScrollToFraction(frac float64, initial bool)

	// JumpTo moves to a resolvable position. The caller falls back to
	// the document top when resolution fails.
	JumpTo(pos cfi.Position) error

	// HandleGesture reacts to a routed gesture, reporting whether it
	// was consumed.
	HandleGesture(g Gesture) bool

	// HandleShortcut gives the strategy first refusal on a named
	// shortcut action. Unconsumed names go to the host.
	HandleShortcut(name string, k KeyEvent) bool

	// AutoScroll drives the shared auto-scroll state machine and
	// reports whether auto-scroll is active afterwards.
	AutoScroll(cmd common.AutoScrollCmd) bool

	// SuspendAutoScroll and ResumeAutoScroll bracket host overlay
	// visibility. Suspension remembers whether scrolling was active.
	SuspendAutoScroll()
	ResumeAutoScroll()

	// EnsureVisible scrolls the absolute rune interval into view if it
	// is not already there.
	EnsureVisible(start, end int)

	// Resize updates viewport geometry, reporting whether it actually
	// changed. The caller re-runs layout only on a real change.
	Resize(width, height int) bool

	// SetScrollSpeed changes the scroll speed setting for manual and
	// automatic scrolling while the document stays loaded.
	SetScrollSpeed(speed int)

	// Fraction reports the current position within the document as a
	// value in [0,1].
	Fraction() float64

	// Anchor reports the absolute rune offset considered "current" for
	// position addressing - top of viewport in flow, top of the current
	// page in paged mode.
	Anchor() int

	// PageCounts reports the pagination summary.
	PageCounts() PageCounts

	// Stop cancels every running behavior - auto-scroll, drag-scroll,
	// pending timers. Called before the strategy is discarded.
	Stop()
}

func clampFrac(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
