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

// Paged renders the document as discrete column pages. Position is a page
// index; fractions map onto the page range.
type Paged struct {
	doc   *content.Document
	pager Pager
	sched Scheduler
	cfg   config.ReaderConfig
	log   *zap.Logger

	m         Metrics
	pages     int
	pageOf    func(blockIndex int) int
	page      int
	titlePage bool

	scroller *autoScroller
}

// NewPaged binds a paged strategy to the loaded document.
func NewPaged(doc *content.Document, pager Pager, sched Scheduler, cfg config.ReaderConfig, m Metrics, log *zap.Logger) *Paged {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("paged")
	if m.ColumnsPerScreen < 1 {
		m.ColumnsPerScreen = 1
	}
	p := &Paged{doc: doc, pager: pager, sched: sched, cfg: cfg, log: log, m: m}
	p.scroller = newAutoScroller(sched, p.flipInterval(), p.autoStep, log)
	return p
}

// flipInterval derives the auto page-flip period from scroll speed so the
// same setting feels comparable across modes.
func (p *Paged) flipInterval() time.Duration {
	speed := p.cfg.ScrollSpeed
	if speed < 1 {
		speed = 1
	}
	return time.Second * 600 / time.Duration(speed)
}

// Layout (re)paginates for the current viewport. A title page is always a
// single centered page regardless of content volume.
func (p *Paged) Layout(isTitlePage bool) error {
	p.titlePage = isTitlePage
	if isTitlePage {
		p.pages = 1
		p.pageOf = func(int) int { return 0 }
		p.page = 0
		return nil
	}
	pages, pageOf, err := p.pager.Paginate(p.doc, p.m)
	if err != nil {
		return fmt.Errorf("paged layout: %w", err)
	}
	p.pages = pages
	p.pageOf = pageOf
	p.page = p.clampPage(p.page)
	p.log.Debug("Pagination done", zap.Int("pages", pages), zap.Int("columns", p.m.ColumnsPerScreen))
	return nil
}

func (p *Paged) clampPage(page int) int {
	if p.pages < 1 || page < 0 {
		return 0
	}
	if page > p.pages-1 {
		return p.pages - 1
	}
	return page
}

// ScrollByPage flips pages. allPagesOnScreen advances a whole multi-column
// screen at once; flipIfRTL inverts direction for right-to-left books so
// "forward" still means deeper into the text.
func (p *Paged) ScrollByPage(backwards, allPagesOnScreen, flipIfRTL bool) {
	if flipIfRTL && p.m.RTL {
		backwards = !backwards
	}
	step := 1
	if allPagesOnScreen {
		step = p.m.ColumnsPerScreen
	}
	if backwards {
		step = -step
	}
	p.page = p.clampPage(p.page + step)
}

func (p *Paged) ScrollToFraction(frac float64, initial bool) {
	if p.pages <= 1 {
		p.page = 0
		return
	}
	p.page = p.clampPage(int(clampFrac(frac)*float64(p.pages-1) + 0.5))
}

// JumpTo flips to the page holding the position's block.
func (p *Paged) JumpTo(pos cfi.Position) error {
	abs, err := p.doc.OffsetOf(pos)
	if err != nil {
		return err
	}
	if p.pageOf == nil {
		return ErrNoViewport
	}
	p.page = p.clampPage(p.pageOf(p.doc.BlockAt(abs)))
	return nil
}

// Anchor is the start of the first block on the current page.
func (p *Paged) Anchor() int {
	blocks := p.doc.Blocks()
	if len(blocks) == 0 || p.pageOf == nil {
		return 0
	}
	for i := range blocks {
		if p.pageOf(i) >= p.page {
			return blocks[i].Start
		}
	}
	return blocks[len(blocks)-1].Start
}

func (p *Paged) Fraction() float64 {
	if p.pages <= 1 {
		return 0
	}
	return clampFrac(float64(p.page) / float64(p.pages-1))
}

func (p *Paged) PageCounts() PageCounts {
	return PageCounts{
		Current:        p.page + 1,
		Total:          p.pages,
		PagesPerScreen: p.m.ColumnsPerScreen,
	}
}

// HandleGesture consumes horizontal swipes as page flips, honoring RTL.
func (p *Paged) HandleGesture(g Gesture) bool {
	switch g.Kind {
	case GestureSwipeLeft:
		p.ScrollByPage(false, false, true)
	case GestureSwipeRight:
		p.ScrollByPage(true, false, true)
	default:
		return false
	}
	return true
}

func (p *Paged) HandleShortcut(name string, k KeyEvent) bool {
	switch name {
	case "next_page", "scroll_forward":
		p.ScrollByPage(false, false, false)
	case "previous_page", "scroll_backward":
		p.ScrollByPage(true, false, false)
	case "to_start":
		p.page = 0
	case "to_end":
		p.page = p.clampPage(p.pages - 1)
	case "toggle_autoscroll":
		p.AutoScroll(common.AutoScrollToggle)
	default:
		return false
	}
	return true
}

func (p *Paged) autoStep() {
	next := p.clampPage(p.page + 1)
	if next == p.page {
		// last page reached
		p.scroller.Do(common.AutoScrollStop)
		return
	}
	p.page = next
}

func (p *Paged) AutoScroll(cmd common.AutoScrollCmd) bool {
	return p.scroller.Do(cmd)
}

func (p *Paged) SuspendAutoScroll() {
	p.scroller.Suspend()
}

func (p *Paged) ResumeAutoScroll() {
	p.scroller.Unsuspend()
}

// EnsureVisible flips to the page holding the start of the interval.
func (p *Paged) EnsureVisible(start, end int) {
	if p.pageOf == nil {
		return
	}
	page := p.pageOf(p.doc.BlockAt(start))
	if page != p.page {
		p.page = p.clampPage(page)
	}
}

// Resize updates viewport geometry. The caller re-runs layout on a real
// change - pagination depends on the viewport.
func (p *Paged) Resize(width, height int) bool {
	if width == p.m.ViewportWidth && height == p.m.ViewportHeight {
		return false
	}
	p.m.ViewportWidth = width
	p.m.ViewportHeight = height
	return true
}

// SetScrollSpeed changes the auto page-flip period.
func (p *Paged) SetScrollSpeed(speed int) {
	if speed < 1 {
		return
	}
	p.cfg.ScrollSpeed = speed
	p.scroller.SetInterval(p.flipInterval())
}

// SetColumns changes the column count; takes effect on the next layout.
func (p *Paged) SetColumns(columns int) {
	if columns < 1 {
		columns = 1
	}
	p.m.ColumnsPerScreen = columns
}

// Stop cancels auto-scroll before the strategy is discarded.
func (p *Paged) Stop() {
	p.scroller.Halt()
}
