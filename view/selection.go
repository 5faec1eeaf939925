package view

import (
	"errors"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/h2non/filetype"
	"go.uber.org/zap"

	"bookview/annotations"
	"bookview/archive"
	"bookview/common"
	"bookview/content"
	"bookview/host"
	"bookview/layout"
)

// handleSelectionChanged stores the live selection snapshot and reports its
// state upstream - the host needs text, direction, owning highlight (if
// any) and whether this selection came from a just-finished text search.
func (c *Controller) handleSelectionChanged(sel *content.Selection) {
	if !c.session.ContentReady {
		return
	}
	c.session.Selection = sel
	c.reportSelection(sel)
}

func (c *Controller) reportSelection(sel *content.Selection) {
	doc := c.session.Doc
	start, end, ok := sel.AbsRange(doc)
	if !ok {
		c.send(host.SelectionState{Type: host.TypeSelectionState, Collapsed: true})
		return
	}

	state := host.SelectionState{
		Type:      host.TypeSelectionState,
		Text:      textSlice(doc.Text(), start, end),
		Backwards: sel.Backwards,
	}
	if marker, ok := c.ann.MarkerAt(start); ok {
		if uuid, ok := c.ann.UUIDFor(marker); ok {
			state.UUID = uuid
		}
	}
	if window := time.Duration(c.reader.FindWindowMs) * time.Millisecond; !c.lastFind.IsZero() && time.Since(c.lastFind) <= window {
		state.IsFind = true
	}
	c.send(state)

	if startPos, endPos, ok := sel.Positions(doc); ok {
		c.send(host.UpdateSelectionPosition{
			Type:     host.TypeUpdateSelectionPos,
			StartCFI: startPos.String(),
			EndCFI:   endPos.String(),
		})
	}
}

// selectRange programmatically selects an absolute rune interval: the
// selection snapshot is synthesized, scrolled into view and reported the
// same way a frame-originated selection would be.
func (c *Controller) selectRange(start, end int) {
	doc := c.session.Doc
	startPos, ok1 := doc.PositionAt(start)
	endPos, ok2 := doc.PositionAt(end)
	if !ok1 || !ok2 {
		return
	}
	sel := &content.Selection{
		StartSteps:  startPos.Steps,
		StartOffset: startPos.Offset,
		EndSteps:    endPos.Steps,
		EndOffset:   endPos.Offset,
		Text:        textSlice(doc.Text(), start, end),
	}
	c.session.Selection = sel
	if c.strategy != nil {
		c.strategy.EnsureVisible(start, end)
		c.afterNavigate()
	}
	c.reportSelection(sel)
}

func (c *Controller) handleAnnotation(m *host.Annotation) {
	if !c.session.ContentReady {
		return
	}
	switch m.Sub {
	case host.AnnApplyHighlight:
		c.applyHighlight(m)
	case host.AnnRemoveHighlight:
		c.ann.Remove(m.UUID)
	case host.AnnNotesEdited:
		c.ann.SetNotes(m.UUID, m.HasNotes)
	case host.AnnSetHighlightStyle:
		c.ann.SetStyle(m.UUID, m.Style)
	case host.AnnEditHighlight:
		c.editHighlight(m.UUID)
	case host.AnnMoveEndOfSelection:
		c.moveSelectionEnd(m.Granularity, m.Forward)
	case host.AnnExtendToParagraph:
		c.extendSelection(common.GranularityParagraph)
	case host.AnnDragScroll:
		if c.strategy != nil {
			c.strategy.HandleGesture(layout.Gesture{Kind: layout.GestureDragMargin, Y: m.Y})
		}
	default:
		c.log.Warn("Unknown annotation sub-action", zap.String("sub", m.Sub))
	}
}

// applyHighlight realizes a highlight over the live selection (or the
// highlight's own range when there is none) and reports the outcome: the
// new wrapper id, uuids of highlights the range replaced, and the
// post-mutation canonical range for persistence.
func (c *Controller) applyHighlight(m *host.Annotation) {
	if m.Highlight == nil {
		c.log.Warn("Apply-highlight without highlight payload")
		return
	}
	result := host.AnnotationResult{
		Type: host.TypeAnnotationsResult,
		Sub:  host.AnnResultApplied,
		UUID: m.Highlight.UUID,
	}

	applied, err := c.ann.Apply(*m.Highlight, c.session.Selection)
	if err != nil {
		if !errors.Is(err, annotations.ErrNoRange) {
			c.log.Warn("Unable to apply highlight", zap.String("uuid", m.Highlight.UUID), zap.Error(err))
		}
		c.send(result)
		return
	}
	c.session.Selection = nil

	result.MarkerID = &applied.MarkerID
	result.OK = true
	result.RemovedHighlights = applied.Removed

	doc := c.session.Doc
	if start, end, ok := c.ann.Range(applied.MarkerID); ok {
		result.Text = textSlice(doc.Text(), start, end)
		// canonical range against the mutated tree - this is what gets
		// persisted and must resolve on the next load
		if startPos, ok := doc.PositionAt(start); ok {
			result.StartCFI = startPos.String()
		}
		if endPos, ok := doc.PositionAt(end); ok {
			result.EndCFI = endPos.String()
		}
	}
	c.send(result)
}

// editHighlight scrolls an existing highlight into view and hands its
// current state to the host for editing.
func (c *Controller) editHighlight(uuid string) {
	marker, ok := c.ann.MarkerFor(uuid)
	if !ok {
		c.send(host.AnnotationResult{
			Type: host.TypeAnnotationsResult,
			Sub:  host.AnnResultEditFailed,
			UUID: uuid,
		})
		return
	}
	start, end, _ := c.ann.Range(marker)
	if c.strategy != nil {
		c.strategy.EnsureVisible(start, end)
		c.afterNavigate()
	}

	doc := c.session.Doc
	result := host.AnnotationResult{
		Type:     host.TypeAnnotationsResult,
		Sub:      host.AnnResultEdit,
		UUID:     uuid,
		MarkerID: &marker,
		OK:       true,
		Text:     textSlice(doc.Text(), start, end),
	}
	// current style so the host can prefill its edit UI
	if style, ok := c.ann.StyleFor(marker); ok {
		result.Style = style
	}
	if startPos, ok := doc.PositionAt(start); ok {
		result.StartCFI = startPos.String()
	}
	if endPos, ok := doc.PositionAt(end); ok {
		result.EndCFI = endPos.String()
	}
	c.send(result)
}

// moveSelectionEnd moves the selection's trailing edge by one unit of the
// given granularity, never collapsing the selection.
func (c *Controller) moveSelectionEnd(granularity string, forward bool) {
	sel := c.session.Selection
	doc := c.session.Doc
	start, end, ok := sel.AbsRange(doc)
	if !ok {
		return
	}
	g, err := common.ParseGranularity(granularity)
	if err != nil {
		c.log.Warn("Unknown selection granularity", zap.String("granularity", granularity))
		return
	}

	var newEnd int
	if forward {
		if end >= doc.Length() {
			return
		}
		_, newEnd = content.Expand(doc, c.splitter, end, end+1, g)
	} else {
		if end <= start+1 {
			return
		}
		newEnd, _ = content.Expand(doc, c.splitter, end-1, end, g)
		if newEnd <= start {
			newEnd = start + 1
		}
	}
	if newEnd == end {
		return
	}
	c.selectRange(start, newEnd)
}

func (c *Controller) extendSelection(g common.Granularity) {
	sel := c.session.Selection
	start, end, ok := sel.AbsRange(c.session.Doc)
	if !ok {
		return
	}
	start, end = content.Expand(c.session.Doc, c.splitter, start, end, g)
	c.selectRange(start, end)
}

// replaceHighlights discards every wrapper and restores the new set - the
// host sends this after bulk annotation edits.
func (c *Controller) replaceHighlights(list []annotations.Highlight) {
	if !c.session.ContentReady {
		return
	}
	c.ann.UnwrapAll()
	restored := c.ann.RestoreAll(list)
	c.log.Debug("Highlights replaced", zap.Int("restored", restored), zap.Int("total", len(list)))
}

// copySelection copies the selected text to the native clipboard, degrading
// to a host-side copy when the native clipboard is unavailable. The fallback
// carries both plain text and the serialized markup of the touched blocks so
// the host can offer a rich clipboard entry.
func (c *Controller) copySelection() {
	doc := c.session.Doc
	if doc == nil {
		return
	}
	start, end, ok := c.session.Selection.AbsRange(doc)
	if !ok {
		return
	}
	text := textSlice(doc.Text(), start, end)
	if err := c.clip.Write(text); err != nil {
		c.log.Debug("Native clipboard unavailable, asking host to copy", zap.Error(err))
		c.send(host.CopyTextToClipboard{
			Type: host.TypeCopyTextToClipboard,
			Text: text,
			HTML: selectionMarkup(doc, start, end),
		})
	}
}

// selectionMarkup serializes the top-level blocks the interval touches.
func selectionMarkup(doc *content.Document, start, end int) string {
	if end <= start {
		return ""
	}
	blocks := doc.Blocks()
	if len(blocks) == 0 {
		return ""
	}
	var sb strings.Builder
	for i := doc.BlockAt(start); i <= doc.BlockAt(end - 1); i++ {
		tmp := etree.NewDocument()
		tmp.SetRoot(blocks[i].El.Copy())
		if s, err := tmp.WriteToString(); err == nil {
			sb.WriteString(s)
		}
	}
	return sb.String()
}

// handleLongPress resolves a long-press by priority: an image under the
// point opens the image viewer, a highlight under the point selects it for
// editing, otherwise the word under the point is selected.
func (c *Controller) handleLongPress(m *host.LongPress) {
	if !c.session.ContentReady {
		return
	}

	if m.Image != "" {
		c.showImage(m.Image)
		return
	}
	if marker, ok := c.ann.MarkerAt(m.Offset); ok {
		if start, end, ok := c.ann.Range(marker); ok {
			c.selectRange(start, end)
			return
		}
	}
	doc := c.session.Doc
	if start, end, ok := content.WordAt(doc.Text(), m.Offset); ok {
		c.selectRange(start, end)
	}
}

func (c *Controller) showImage(name string) {
	data, err := archive.ReadFile(c.session.Book.Container, name)
	if err != nil {
		c.log.Warn("Unable to read image resource", zap.String("name", name), zap.Error(err))
		return
	}
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		c.log.Warn("Unrecognized image resource", zap.String("name", name))
		return
	}
	c.send(host.ViewImage{Type: host.TypeViewImage, Name: name, MediaType: kind.MIME.Value})
}

func textSlice(text string, from, to int) string {
	runes := []rune(text)
	if from < 0 {
		from = 0
	}
	if to > len(runes) {
		to = len(runes)
	}
	if from >= to {
		return ""
	}
	return string(runes[from:to])
}
