package view

import (
	"context"
	"time"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"bookview/annotations"
	"bookview/cfi"
	"bookview/common"
	"bookview/config"
	"bookview/content"
	"bookview/host"
	"bookview/layout"
)

// MathRenderer is the asynchronous math-markup rendering collaborator. The
// pass is awaited to completion before the document is declared ready -
// there is no cancellation.
type MathRenderer interface {
	Render(ctx context.Context, tree *etree.Document) error
}

// Transport is the host-facing message pipe the controller drives. Satisfied
// by *host.Channel.
type Transport interface {
	Inbound() <-chan any
	Send(msg any) error
	Close() error
}

// Option customizes controller collaborators.
type Option func(*Controller)

// WithPager substitutes the layout-math collaborator.
func WithPager(p layout.Pager) Option {
	return func(c *Controller) { c.pager = p }
}

// WithMathRenderer enables the math rendering pass during load.
func WithMathRenderer(m MathRenderer) Option {
	return func(c *Controller) { c.math = m }
}

// WithClipboard substitutes the native clipboard collaborator.
func WithClipboard(cl Clipboard) Option {
	return func(c *Controller) { c.clip = cl }
}

// WithReport attaches the debug reporter - session dumps are stored on every
// successful display.
func WithReport(r *config.Report) Option {
	return func(c *Controller) { c.rpt = r }
}

// Controller is the single authoritative dispatcher: it owns the reading
// session and runs one goroutine selecting over inbound host messages and
// internally scheduled tasks. All state is touched from that goroutine
// only.
type Controller struct {
	cfg   *config.Config
	log   *zap.Logger
	ch    Transport
	pager layout.Pager
	math  MathRenderer
	clip  Clipboard
	rpt   *config.Report

	session  Session
	strategy layout.Strategy
	ann      *annotations.Manager
	splitter *content.Splitter
	refs     *referenceIndex
	finder   *Finder
	keys     *keymap

	// effective per-document settings: configuration overlaid with the
	// display message's settings
	reader  config.ReaderConfig
	mode    common.LayoutMode
	metrics layout.Metrics
	scheme  string

	forwardKeys      bool
	resumeAutoScroll bool
	lastFind         time.Time
	lastQuery        string

	tasks     chan func()
	sched     *taskScheduler
	scrollDeb *Debouncer
	resizeDeb *Debouncer
}

// NewController wires the controller to a connected host channel.
func NewController(cfg *config.Config, ch Transport, log *zap.Logger, opts ...Option) *Controller {
	c := &Controller{
		cfg:    cfg,
		log:    log.Named("view"),
		ch:     ch,
		pager:  layout.NewBlockPager(),
		clip:   systemClipboard{},
		reader: cfg.Reader,
		tasks:  make(chan func(), 64),
	}
	c.sched = newTaskScheduler(c.post)
	c.scrollDeb = NewDebouncer(c.sched, time.Duration(cfg.Reader.Debounce.ScrollCFIMs)*time.Millisecond)
	c.resizeDeb = NewDebouncer(c.sched, time.Duration(cfg.Reader.Debounce.ResizeMs)*time.Millisecond)
	c.keys = newKeymap(cfg.Bindings, c.log)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// post queues a task for the controller goroutine. Tasks originating from
// timers may race with shutdown; a full queue drops the tick rather than
// blocking the timer goroutine.
func (c *Controller) post(task func()) {
	select {
	case c.tasks <- task:
	default:
		c.log.Warn("Task queue full, dropping scheduled task")
	}
}

// Run drives the event loop until the host disconnects or the context is
// cancelled. The viewport size is requested up front - nothing can be laid
// out before the host answers.
func (c *Controller) Run(ctx context.Context) error {
	defer c.shutdown()

	c.send(host.RequestSize{Type: host.TypeRequestSize})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-c.ch.Inbound():
			if !ok {
				c.log.Info("Host disconnected")
				return nil
			}
			c.dispatch(ctx, msg)
		case task := <-c.tasks:
			task()
		}
	}
}

func (c *Controller) shutdown() {
	if c.strategy != nil {
		c.strategy.Stop()
	}
	c.scrollDeb.Stop()
	c.resizeDeb.Stop()
	c.sched.Shutdown()
	_ = c.ch.Close()
}

func (c *Controller) dispatch(ctx context.Context, msg any) {
	switch m := msg.(type) {
	case *host.Display:
		c.handleDisplay(ctx, m)
	case *host.Find:
		// both this and get_current_cfi read the document tree, which the
		// math pass may still be mutating - dropped until the load completes
		if !c.session.ContentReady {
			return
		}
		c.handleFind(m.Text, m.Backwards, m.FromStart)
	case *host.GetCurrentCFI:
		if !c.session.ContentReady {
			return
		}
		c.reportPosition(host.TypeReportCFI, m.RequestID, true)
	case *host.ScrollToAnchor:
		c.scrollToAnchor(m.Anchor)
	case *host.ScrollToFrac:
		if c.strategy != nil {
			c.strategy.ScrollToFraction(m.Frac, false)
			c.afterNavigate()
		}
	case *host.ScrollToRef:
		c.scrollToRef(m.Ref)
	case *host.SetReferenceMode:
		c.setReferenceMode(m.Enabled)
	case *host.ChangeColorScheme:
		c.changeColorScheme(m.Scheme)
	case *host.ChangeFontSize:
		c.changeFontSize(m.Percent)
	case *host.ChangeNumberOfColumns:
		c.changeColumns(m.Columns)
	case *host.ChangeScrollSpeed:
		c.changeScrollSpeed(m.Speed)
	case *host.WindowSize:
		c.handleWindowSize(m.Width, m.Height)
	case *host.HandleNavigationShortcut:
		if c.strategy != nil && c.strategy.HandleShortcut(m.Name, m.Key) {
			c.afterNavigate()
		}
	case *host.Annotation:
		c.handleAnnotation(m)
	case *host.ReplaceHighlights:
		c.replaceHighlights(m.Highlights)
	case *host.CopySelection:
		c.copySelection()
	case *host.ToggleAutoscroll:
		if c.strategy != nil {
			c.strategy.AutoScroll(common.AutoScrollToggle)
		}
	case *host.GestureFromMargin:
		if c.strategy != nil && c.strategy.HandleGesture(layout.Gesture{Kind: m.Kind, X: m.X, Y: m.Y}) {
			c.afterNavigate()
		}
	case *host.OverlayVisibility:
		c.handleOverlay(m)
	case *host.KeyDown:
		c.handleKey(m.Key)
	case *host.Wheel:
		c.handleWheel(m)
	case *host.Scroll:
		if c.strategy != nil {
			c.strategy.ScrollToFraction(m.Frac, false)
			c.afterNavigate()
		}
	case *host.SelectionChanged:
		c.handleSelectionChanged(&m.Selection)
	case *host.LongPress:
		c.handleLongPress(m)
	case *host.ScriptError:
		c.handleScriptError(m)
	default:
		c.log.Warn("Unhandled host message", zap.Any("message", msg))
	}
}

// send writes one outbound message; a send failure is never fatal to the
// loop.
func (c *Controller) send(msg any) {
	if err := c.ch.Send(msg); err != nil {
		c.log.Warn("Unable to send message to host", zap.Error(err))
	}
}

// currentCFI computes the canonical address of the strategy's anchor point.
// Nil when the document has no stable anchor.
func (c *Controller) currentCFI() *string {
	if c.session.Doc == nil || c.strategy == nil {
		return nil
	}
	pos, ok := c.session.Doc.AnchorAt(c.strategy.Anchor())
	if !ok {
		return nil
	}
	s := pos.String()
	return &s
}

func (c *Controller) positionReport(typ string, cfiStr *string, requestID string) host.PositionReport {
	var frac float64
	var counts layout.PageCounts
	var docLength int
	if c.strategy != nil {
		frac = c.strategy.Fraction()
		counts = c.strategy.PageCounts()
	}
	if c.session.Doc != nil {
		docLength = c.session.Doc.Length()
	}
	var total int
	if c.session.Book != nil {
		total = c.session.Book.TotalLength()
	}
	return host.PositionReport{
		Type:             typ,
		CFI:              cfiStr,
		ProgressFrac:     progressFrac(c.session.LengthBefore, docLength, total, frac),
		FileProgressFrac: frac,
		PageCounts:       counts,
		RequestID:        requestID,
	}
}

// reportProgress is the cheap per-tick progress update - no CFI
// computation.
func (c *Controller) reportProgress() {
	c.send(c.positionReport(host.TypeUpdateProgressFrac, nil, ""))
}

// reportPosition is the expensive full recompute. Without a request id it
// emits update_cfi only when the CFI actually changed since the last
// emission, degrading to a progress-only update otherwise - this keeps the
// host from recording redundant navigation-history entries. A request id
// forces a report_cfi response with the id echoed.
func (c *Controller) reportPosition(typ, requestID string, force bool) {
	cfiStr := c.currentCFI()

	current := ""
	if cfiStr != nil {
		current = *cfiStr
	}
	if !force && current == c.session.LastCFI {
		c.reportProgress()
		return
	}
	c.session.LastCFI = current

	c.send(c.positionReport(typ, cfiStr, requestID))

	if c.session.Doc != nil && c.strategy != nil {
		if id, ok := c.session.Doc.LastIDBefore(c.strategy.Anchor()); ok {
			c.send(host.UpdateTOCPosition{Type: host.TypeUpdateTOCPosition, Anchor: id})
		}
	}
}

// afterNavigate follows every position change: instant cheap progress,
// debounced full CFI recompute.
func (c *Controller) afterNavigate() {
	c.reportProgress()
	c.scrollDeb.Trigger(func() {
		c.reportPosition(host.TypeUpdateCFI, "", false)
	})
}

// handleWindowSize debounces resize bursts; the expensive stage runs once
// with the final dimensions, and only when the size actually changed. Before
// anything is laid out the size is applied immediately - the initial
// viewport answer must not sit in the debounce window while a display is
// being handled.
func (c *Controller) handleWindowSize(width, height int) {
	if c.strategy == nil {
		c.metrics.ViewportWidth = width
		c.metrics.ViewportHeight = height
		return
	}
	c.resizeDeb.Trigger(func() {
		c.resizeStage2(width, height)
	})
}

func (c *Controller) resizeStage2(width, height int) {
	if c.strategy == nil {
		c.metrics.ViewportWidth = width
		c.metrics.ViewportHeight = height
		return
	}
	if !c.strategy.Resize(width, height) {
		return
	}
	c.metrics.ViewportWidth = width
	c.metrics.ViewportHeight = height

	// paged mode re-paginates, flow re-measures its height
	if err := c.strategy.Layout(c.session.TitlePage); err != nil {
		c.log.Warn("Unable to re-layout after resize", zap.Error(err))
	}
	// preserve the reading point across the resize
	if c.session.LastCFI != "" {
		c.jumpToCFIString(c.session.LastCFI)
	}
	c.reportPosition(host.TypeUpdateCFI, "", true)
}

// jumpToCFIString re-resolves a serialized position, falling back to the
// top of the document when it no longer resolves.
func (c *Controller) jumpToCFIString(s string) {
	if c.strategy == nil {
		return
	}
	pos, err := cfi.Parse(s)
	if err == nil {
		err = c.strategy.JumpTo(pos)
	}
	if err != nil {
		c.log.Debug("Position no longer resolves, falling back to top", zap.String("cfi", s), zap.Error(err))
		c.strategy.ScrollToFraction(0, false)
	}
}

func (c *Controller) scrollToAnchor(anchor string) {
	if c.session.Doc == nil || c.strategy == nil {
		return
	}
	el, ok := c.session.Doc.ElementByID(anchor)
	if !ok {
		c.log.Debug("Anchor not found", zap.String("anchor", anchor))
		return
	}
	steps, ok := c.session.Doc.StepsOfElement(el)
	if !ok {
		return
	}
	pos := cfi.Position{Spine: c.session.Item.Index, Steps: steps, Offset: -1}
	if err := c.strategy.JumpTo(pos); err != nil {
		c.strategy.ScrollToFraction(0, false)
	}
	// footnote targets additionally get a popup on the host side
	if isFootnoteContainer(el.Tag) {
		c.send(host.ShowFootnote{Type: host.TypeShowFootnote, Anchor: anchor, Text: elementText(el)})
	}
	c.afterNavigate()
}

func (c *Controller) scrollToRef(num int) {
	if c.refs == nil || c.session.Doc == nil || c.strategy == nil {
		return
	}
	target, ok := c.refs.ByNumber(num)
	if !ok {
		c.log.Debug("Reference number not assigned", zap.Int("ref", num))
		return
	}
	if pos, ok := c.session.Doc.PositionAt(target.Offset); ok {
		if err := c.strategy.JumpTo(pos); err == nil {
			c.afterNavigate()
		}
	}
	if isFootnoteContainer(target.el.Tag) {
		c.send(host.ShowFootnote{Type: host.TypeShowFootnote, Anchor: target.ID, Ref: num, Text: elementText(target.el)})
	}
}

func (c *Controller) setReferenceMode(enabled bool) {
	if enabled == c.session.ReferenceMode {
		return
	}
	if enabled {
		if c.session.Doc != nil {
			c.refs = buildReferences(c.session.Doc, c.log)
		}
	} else if c.refs != nil {
		c.refs.Teardown()
		c.refs = nil
	}
	c.session.ReferenceMode = enabled
}

// handleKey routes a key press: forwarded verbatim while a host overlay
// wants keypresses, otherwise resolved through the shortcut map with the
// active strategy getting first refusal.
func (c *Controller) handleKey(k layout.KeyEvent) {
	if c.forwardKeys {
		c.send(host.ShortcutForward{Type: host.TypeHandleShortcut, Key: k})
		return
	}
	name := c.keys.Lookup(k)
	if name == "" {
		return
	}
	if c.strategy != nil && c.strategy.HandleShortcut(name, k) {
		c.afterNavigate()
		return
	}
	c.handleLocalAction(name, k)
}

func (c *Controller) handleLocalAction(name string, k layout.KeyEvent) {
	switch name {
	case "copy":
		c.copySelection()
	case "find_next":
		if c.lastQuery != "" {
			c.handleFind(c.lastQuery, false, false)
		}
	case "find_previous":
		if c.lastQuery != "" {
			c.handleFind(c.lastQuery, true, false)
		}
	case "show_chrome":
		c.send(host.ShowChrome{Type: host.TypeShowChrome})
	default:
		// back, forward, preferences, metadata - host territory
		c.send(host.ShortcutForward{Type: host.TypeHandleShortcut, Name: name, Key: k})
	}
}

// handleWheel treats ctrl+wheel with no other modifiers as a font-size
// bump; everything else scrolls the active strategy.
func (c *Controller) handleWheel(m *host.Wheel) {
	if m.Ctrl && !m.Alt && !m.Shift && !m.Meta {
		delta := 1
		if m.DeltaY > 0 {
			delta = -1
		}
		c.send(host.BumpFontSize{Type: host.TypeBumpFontSize, Delta: delta})
		return
	}
	if c.strategy == nil {
		return
	}
	kind := layout.GestureSwipeUp
	if m.DeltaY < 0 {
		kind = layout.GestureSwipeDown
	}
	if c.strategy.HandleGesture(layout.Gesture{Kind: kind}) {
		c.afterNavigate()
	}
}

func (c *Controller) handleOverlay(m *host.OverlayVisibility) {
	if m.Visible {
		if c.strategy != nil {
			c.strategy.SuspendAutoScroll()
		}
		c.forwardKeys = m.ForwardKeypresses
		return
	}
	if c.strategy != nil {
		c.strategy.ResumeAutoScroll()
	}
	c.forwardKeys = false
}

func (c *Controller) changeColorScheme(scheme string) {
	style, ok := c.reader.ColorSchemes[scheme]
	if !ok {
		c.log.Warn("Unknown color scheme requested", zap.String("scheme", scheme))
		return
	}
	c.scheme = scheme
	c.log.Debug("Color scheme changed", zap.String("scheme", scheme), zap.String("style", style))
}

func (c *Controller) changeFontSize(percent int) {
	if percent < 10 {
		return
	}
	c.reader.FontSizePercent = percent
	if c.strategy != nil && c.mode == common.LayoutModePaged {
		if err := c.strategy.Layout(c.session.TitlePage); err == nil {
			if c.session.LastCFI != "" {
				c.jumpToCFIString(c.session.LastCFI)
			}
			c.afterNavigate()
		}
	}
}

func (c *Controller) changeColumns(columns int) {
	if columns < 1 {
		return
	}
	c.reader.ColumnsPerScreen = columns
	c.metrics.ColumnsPerScreen = columns
	if paged, ok := c.strategy.(*layout.Paged); ok {
		paged.SetColumns(columns)
		if err := paged.Layout(c.session.TitlePage); err == nil {
			if c.session.LastCFI != "" {
				c.jumpToCFIString(c.session.LastCFI)
			}
		}
		c.send(host.ColumnsChanged{Type: host.TypeColumnsChanged, Columns: columns})
		c.afterNavigate()
	}
}

func (c *Controller) changeScrollSpeed(speed int) {
	if speed < 1 {
		return
	}
	c.reader.ScrollSpeed = speed
	if c.strategy != nil {
		c.strategy.SetScrollSpeed(speed)
	}
}

// handleFind delegates to the document text-search primitive, which wraps
// around natively in both directions.
func (c *Controller) handleFind(query string, backwards, fromStart bool) {
	if c.finder == nil {
		return
	}
	c.lastQuery = query
	start, end, ok := c.finder.Find(query, backwards, fromStart)
	if !ok {
		c.send(host.SearchResultNotFound{Type: host.TypeSearchResultNotFound, Text: query})
		return
	}
	c.lastFind = time.Now()
	c.selectRange(start, end)
}
