package view

import (
	"archive/zip"
	"bytes"
	"context"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"bookview/annotations"
	"bookview/archive"
	"bookview/common"
	"bookview/content"
	"bookview/host"
	"bookview/layout"
	"bookview/utils/debug"
)

// handleDisplay begins a new reading session: the previous strategy is
// stopped (remembering whether auto-scroll was running so it resumes in the
// new document), all per-document state is discarded and the named spine
// item is materialized. When a math renderer is attached the strategy stays
// unset until the render pass completes - navigation messages arriving in
// between are dropped rather than applied to a tree being mutated.
func (c *Controller) handleDisplay(ctx context.Context, m *host.Display) {
	if c.strategy != nil {
		c.resumeAutoScroll = c.strategy.AutoScroll(common.AutoScrollIsActive)
		c.strategy.Stop()
		c.strategy = nil
	}
	c.scrollDeb.Stop()
	c.session.Reset()
	c.refs = nil
	c.finder = nil
	c.forwardKeys = false

	book, err := content.NewBook(m.BookID, m.Title, m.Container, m.Spine, c.log)
	if err != nil {
		c.fail("Unable to start reading session", err)
		return
	}
	if m.SpineIndex < 0 || m.SpineIndex >= len(book.Spine) {
		c.log.Error("Display requested spine index out of range",
			zap.Int("index", m.SpineIndex), zap.Int("spine", len(book.Spine)))
		c.send(host.ErrorReport{Type: host.TypeError, Message: "spine index out of range"})
		return
	}
	item := book.Spine[m.SpineIndex]

	c.applySettings(m)

	data, err := archive.ReadFile(book.Container, item.Name)
	if err != nil {
		c.fail("Unable to read content document", err)
		return
	}
	doc, err := content.LoadDocument(item, bytes.NewReader(data), c.log)
	if err != nil {
		c.fail("Unable to parse content document", err)
		return
	}

	c.session.Book = book
	c.session.Item = item
	c.session.Doc = doc
	c.session.RTL = m.RTL
	c.session.TitlePage = m.IsTitlePage
	c.session.Lang = language.Make(m.Language)
	c.session.LengthBefore = book.LengthBefore(item.Index)
	c.session.Pending = m.Initial

	c.splitter = content.NewSplitter(c.session.Lang, c.log)
	c.finder = newFinder(doc, c.log)

	if c.ann == nil {
		c.ann = annotations.NewManager(doc, c.log)
	} else {
		c.ann.Reset(doc)
	}
	if restored := c.ann.RestoreAll(m.Highlights); restored < len(m.Highlights) {
		c.log.Warn("Some highlights no longer resolve",
			zap.Int("restored", restored), zap.Int("total", len(m.Highlights)))
	}

	if c.math == nil {
		c.finalizeDisplay()
		return
	}
	go func() {
		if err := c.math.Render(ctx, doc.Tree()); err != nil {
			c.log.Warn("Math rendering pass failed", zap.Error(err))
		}
		c.post(func() {
			doc.Invalidate()
			c.finalizeDisplay()
		})
	}()
}

// applySettings computes the effective per-document settings: configuration
// overlaid by the display message, with forced_mode taking precedence over
// everything.
func (c *Controller) applySettings(m *host.Display) {
	c.reader = c.cfg.Reader
	if s := m.Settings; s != nil {
		if s.Mode != "" {
			c.reader.Mode = s.Mode
		}
		if s.ColumnsPerScreen > 0 {
			c.reader.ColumnsPerScreen = s.ColumnsPerScreen
		}
		if s.ScrollSpeed > 0 {
			c.reader.ScrollSpeed = s.ScrollSpeed
		}
		if s.FontSizePercent > 0 {
			c.reader.FontSizePercent = s.FontSizePercent
		}
		if s.ColorScheme != "" {
			c.scheme = s.ColorScheme
		}
	}
	if m.ForcedMode != "" {
		c.reader.Mode = m.ForcedMode
	}
	mode, err := common.ParseLayoutMode(c.reader.Mode)
	if err != nil {
		c.log.Warn("Unknown layout mode requested, using flow", zap.String("mode", c.reader.Mode))
	}
	c.mode = mode
}

// finalizeDisplay runs once the document tree is final: builds the layout
// strategy, restores the requested initial position and declares the
// content loaded.
func (c *Controller) finalizeDisplay() {
	doc := c.session.Doc

	c.metrics.ColumnsPerScreen = c.reader.ColumnsPerScreen
	c.metrics.RTL = c.session.RTL

	switch c.mode {
	case common.LayoutModeFlow:
		c.strategy = layout.NewFlow(doc, c.pager, c.sched, c.reader, c.metrics, c.log)
	case common.LayoutModePaged:
		c.strategy = layout.NewPaged(doc, c.pager, c.sched, c.reader, c.metrics, c.log)
	default:
		panic("this should never happen - unhandled layout mode")
	}
	if err := c.strategy.Layout(c.session.TitlePage); err != nil {
		c.fail("Unable to lay out content document", err)
		c.strategy = nil
		return
	}

	c.restoreInitialPosition(c.session.Pending)
	c.session.Pending = nil
	c.session.ContentReady = true

	// the strategy is freshly built, so a plain resume would have nothing
	// to resume - start explicitly when the previous document was scrolling
	if c.resumeAutoScroll {
		c.strategy.AutoScroll(common.AutoScrollStart)
		c.resumeAutoScroll = false
	}

	cfiStr := c.currentCFI()
	if cfiStr != nil {
		c.session.LastCFI = *cfiStr
	}
	c.send(host.ContentLoaded{
		Type:             host.TypeContentLoaded,
		Name:             c.session.Item.Name,
		CFI:              cfiStr,
		ProgressFrac:     progressFrac(c.session.LengthBefore, doc.Length(), c.session.Book.TotalLength(), c.strategy.Fraction()),
		FileProgressFrac: c.strategy.Fraction(),
		PageCounts:       c.strategy.PageCounts(),
	})
	if id, ok := doc.LastIDBefore(c.strategy.Anchor()); ok {
		c.send(host.UpdateTOCPosition{Type: host.TypeUpdateTOCPosition, Anchor: id})
	}
	c.storeSessionDump()
}

// storeSessionDump attaches diagnostics for the loaded session to the debug
// report: the container manifest and the realized highlight wrappers.
func (c *Controller) storeSessionDump() {
	if c.rpt == nil {
		return
	}
	tw := debug.NewTreeWriter()
	tw.Line(0, "container %s", c.session.Book.Container)
	if err := archive.Walk(c.session.Book.Container, "", func(_ string, f *zip.File) error {
		tw.Line(1, "%s (%d bytes)", f.Name, f.UncompressedSize64)
		return nil
	}); err != nil {
		tw.Line(1, "walk failed: %v", err)
	}
	tw.Text(0, "spine item", c.session.Item.Name)
	c.rpt.StoreData("session/container", tw.Bytes())
	c.rpt.StoreData("session/annotations", []byte(c.ann.String()))
}

// restoreInitialPosition places the view where the host asked. Every kind
// degrades to the top of the document when its target no longer exists.
func (c *Controller) restoreInitialPosition(p *host.InitialPosition) {
	c.strategy.ScrollToFraction(0, true)
	if p == nil {
		return
	}

	switch p.Kind {
	case host.InitialFrac:
		c.strategy.ScrollToFraction(p.Frac, true)
	case host.InitialAnchor:
		c.jumpToElementID(p.Anchor)
	case host.InitialRef:
		if c.refs == nil {
			c.refs = buildReferences(c.session.Doc, c.log)
			c.session.ReferenceMode = true
		}
		if target, ok := c.refs.ByNumber(p.Ref); ok {
			if pos, ok := c.session.Doc.PositionAt(target.Offset); ok {
				_ = c.strategy.JumpTo(pos)
			}
		}
	case host.InitialCFI:
		c.jumpToCFIString(p.CFI)
	case host.InitialSearchResult:
		if start, end, ok := c.finder.SelectNth(p.SearchText, p.ResultNum); ok {
			c.lastQuery = p.SearchText
			c.selectRange(start, end)
		}
	case host.InitialSearchText:
		c.handleFind(p.SearchText, false, true)
	case host.InitialEditUUID:
		c.editHighlight(p.EditUUID)
	default:
		c.log.Warn("Unknown initial position kind", zap.String("kind", p.Kind))
	}
}

func (c *Controller) jumpToElementID(id string) {
	doc := c.session.Doc
	el, ok := doc.ElementByID(id)
	if !ok {
		c.log.Debug("Initial anchor not found", zap.String("anchor", id))
		return
	}
	if abs, ok := doc.OffsetOfElement(el); ok {
		if pos, ok := doc.PositionAt(abs); ok {
			_ = c.strategy.JumpTo(pos)
		}
	}
}

func (c *Controller) fail(msg string, err error) {
	c.log.Error(msg, zap.Error(err))
	c.send(host.ErrorReport{Type: host.TypeError, Message: msg + ": " + err.Error()})
}
