package layout

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"bookview/cfi"
	"bookview/common"
	"bookview/config"
	"bookview/content"
)

// autoScrollTick is the advance period of flow auto-scroll; scroll speed
// from settings is the pixel distance covered per tick.
const autoScrollTick = 100 * time.Millisecond

// dragScrollTick drives edge drag-scroll, a faster fixed-rate motion.
const dragScrollTick = 50 * time.Millisecond

// Flow renders the document as one continuous scroll. Position is a pixel
// offset into the estimated document height; fractions and absolute rune
// offsets map onto it proportionally.
type Flow struct {
	doc   *content.Document
	pager Pager
	sched Scheduler
	cfg   config.ReaderConfig
	log   *zap.Logger

	m         Metrics
	offset    int
	docHeight int

	scroller   *autoScroller
	dragCancel func()
}

// NewFlow binds a flow strategy to the loaded document.
func NewFlow(doc *content.Document, pager Pager, sched Scheduler, cfg config.ReaderConfig, m Metrics, log *zap.Logger) *Flow {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("flow")
	f := &Flow{doc: doc, pager: pager, sched: sched, cfg: cfg, log: log, m: m}
	f.scroller = newAutoScroller(sched, autoScrollTick, f.autoStep, log)
	return f
}

// Layout measures the document height for the current viewport. Repeated
// calls with unchanged content and viewport land on the same height and
// keep the current offset.
func (f *Flow) Layout(isTitlePage bool) error {
	h, err := f.pager.MeasureHeight(f.doc, f.m)
	if err != nil {
		return fmt.Errorf("flow layout: %w", err)
	}
	f.docHeight = h
	f.offset = f.clampOffset(f.offset)
	f.log.Debug("Flow layout done", zap.Int("height", h), zap.Bool("title_page", isTitlePage))
	return nil
}

func (f *Flow) scrollable() int {
	s := f.docHeight - f.m.ViewportHeight
	if s < 0 {
		s = 0
	}
	return s
}

func (f *Flow) clampOffset(off int) int {
	if off < 0 {
		return 0
	}
	if s := f.scrollable(); off > s {
		return s
	}
	return off
}

// ScrollByPage moves a whole viewport. The paged-mode flags have no meaning
// here.
func (f *Flow) ScrollByPage(backwards, allPagesOnScreen, flipIfRTL bool) {
	delta := f.m.ViewportHeight
	if backwards {
		delta = -delta
	}
	f.offset = f.clampOffset(f.offset + delta)
}

func (f *Flow) ScrollToFraction(frac float64, initial bool) {
	f.offset = f.clampOffset(int(clampFrac(frac) * float64(f.scrollable())))
}

// JumpTo scrolls the position's text to the top of the viewport.
func (f *Flow) JumpTo(pos cfi.Position) error {
	abs, err := f.doc.OffsetOf(pos)
	if err != nil {
		return err
	}
	f.offset = f.clampOffset(f.pixelOf(abs))
	return nil
}

// pixelOf maps an absolute rune offset to a document pixel proportionally.
func (f *Flow) pixelOf(abs int) int {
	n := f.doc.Length()
	if n == 0 {
		return 0
	}
	return f.docHeight * abs / n
}

// Anchor is the absolute rune offset at the top of the viewport.
func (f *Flow) Anchor() int {
	if f.docHeight == 0 {
		return 0
	}
	return f.doc.Length() * f.offset / f.docHeight
}

func (f *Flow) Fraction() float64 {
	s := f.scrollable()
	if s == 0 {
		return 0
	}
	return clampFrac(float64(f.offset) / float64(s))
}

// PageCounts reports zero totals - flow has no discrete pages.
func (f *Flow) PageCounts() PageCounts {
	return PageCounts{}
}

// HandleGesture consumes vertical swipes and margin drags.
func (f *Flow) HandleGesture(g Gesture) bool {
	switch g.Kind {
	case GestureSwipeUp:
		f.ScrollByPage(false, false, false)
	case GestureSwipeDown:
		f.ScrollByPage(true, false, false)
	case GestureDragMargin:
		f.updateDrag(g.Y)
	case GestureDragEnd:
		f.cancelDrag()
	default:
		return false
	}
	return true
}

// updateDrag starts, redirects or cancels edge drag-scroll depending on
// where the pointer is relative to the viewport margins.
func (f *Flow) updateDrag(y int) {
	margin := f.cfg.DragMarginPx
	var dir int
	switch {
	case y < margin:
		dir = -1
	case y > f.m.ViewportHeight-margin:
		dir = 1
	}
	f.cancelDrag()
	if dir == 0 {
		return
	}
	step := f.cfg.ScrollSpeed * dir
	f.dragCancel = f.sched.Every(dragScrollTick, func() {
		f.offset = f.clampOffset(f.offset + step)
	})
}

func (f *Flow) cancelDrag() {
	if f.dragCancel != nil {
		f.dragCancel()
		f.dragCancel = nil
	}
}

// HandleShortcut consumes navigation actions, leaving the rest for the
// host.
func (f *Flow) HandleShortcut(name string, k KeyEvent) bool {
	switch name {
	case "next_page":
		f.ScrollByPage(false, false, false)
	case "previous_page":
		f.ScrollByPage(true, false, false)
	case "scroll_forward":
		f.offset = f.clampOffset(f.offset + f.cfg.ScrollSpeed)
	case "scroll_backward":
		f.offset = f.clampOffset(f.offset - f.cfg.ScrollSpeed)
	case "to_start":
		f.offset = 0
	case "to_end":
		f.offset = f.scrollable()
	case "toggle_autoscroll":
		f.AutoScroll(common.AutoScrollToggle)
	default:
		return false
	}
	return true
}

func (f *Flow) autoStep() {
	next := f.clampOffset(f.offset + f.cfg.ScrollSpeed)
	if next == f.offset {
		// bottom reached
		f.scroller.Do(common.AutoScrollStop)
		return
	}
	f.offset = next
}

func (f *Flow) AutoScroll(cmd common.AutoScrollCmd) bool {
	return f.scroller.Do(cmd)
}

func (f *Flow) SuspendAutoScroll() {
	f.scroller.Suspend()
	f.cancelDrag()
}

func (f *Flow) ResumeAutoScroll() {
	f.scroller.Unsuspend()
}

// EnsureVisible scrolls the interval into view when it is outside the
// current viewport.
func (f *Flow) EnsureVisible(start, end int) {
	top := f.pixelOf(start)
	bottom := f.pixelOf(end)
	if top >= f.offset && bottom <= f.offset+f.m.ViewportHeight {
		return
	}
	f.offset = f.clampOffset(top)
}

// SetScrollSpeed changes the per-tick advance of manual, drag and auto
// scrolling.
func (f *Flow) SetScrollSpeed(speed int) {
	if speed < 1 {
		return
	}
	f.cfg.ScrollSpeed = speed
}

// Resize updates viewport geometry. Flow reflows through normal document
// flow, so the caller only needs to re-resolve the reading point.
func (f *Flow) Resize(width, height int) bool {
	if width == f.m.ViewportWidth && height == f.m.ViewportHeight {
		return false
	}
	f.m.ViewportWidth = width
	f.m.ViewportHeight = height
	return true
}

// Stop cancels auto-scroll and drag-scroll before the strategy is
// discarded.
func (f *Flow) Stop() {
	f.scroller.Halt()
	f.cancelDrag()
}
