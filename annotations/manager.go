// Package annotations manages highlight markers over the loaded document:
// wrapping selected text ranges in addressable span elements, resolving
// conflicts between overlapping highlights and restoring persisted highlight
// lists in deterministic order.
package annotations

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/beevik/etree"
	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"bookview/cfi"
	"bookview/content"
	"bookview/css"
)

// WrapperClass marks every span element materializing a highlight range.
const WrapperClass = "crw"

// WrapperAttr carries the per-load wrapper id on the span element.
const WrapperAttr = "data-crw"

// ErrNoRange is reported when a highlight operation has nothing to act on -
// no usable selection and no resolvable range.
var ErrNoRange = errors.New("annotations: no usable range")

// Highlight is the durable annotation descriptor exchanged with the host.
// Only the uuid is stable identity - wrapper ids are per-load ephemera.
type Highlight struct {
	UUID      string `json:"uuid"`
	StartCFI  string `json:"start_cfi"`
	EndCFI    string `json:"end_cfi"`
	Style     string `json:"style"`
	HasNotes  bool   `json:"has_notes"`
	Timestamp string `json:"timestamp"`
}

// Applied is the outcome of applying a highlight.
type Applied struct {
	MarkerID int
	Removed  []string
}

type span struct {
	start, end int
}

// Manager owns the wrapper-id to uuid mapping for the lifetime of one
// loaded document. It is rebuilt wholesale on every display and on every
// full highlight replace - wrapper ids are never persisted.
type Manager struct {
	doc    *content.Document
	css    *css.Parser
	log    *zap.Logger
	next   int
	owners map[int]string
	spans  map[int]span
	styles map[int]string
}

// NewManager binds a fresh manager to the document currently on display.
func NewManager(doc *content.Document, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("annotations")
	return &Manager{
		doc:    doc,
		css:    css.NewParser(log),
		log:    log,
		next:   1,
		owners: map[int]string{},
		spans:  map[int]span{},
		styles: map[int]string{},
	}
}

// Reset drops all wrapper state and rebinds the manager to a new document.
func (m *Manager) Reset(doc *content.Document) {
	m.doc = doc
	m.next = 1
	m.owners = map[int]string{}
	m.spans = map[int]span{}
	m.styles = map[int]string{}
}

// UUIDFor returns the owning annotation uuid of a wrapper id.
func (m *Manager) UUIDFor(markerID int) (string, bool) {
	id, ok := m.owners[markerID]
	return id, ok
}

// MarkerFor returns the wrapper id materializing the given annotation.
func (m *Manager) MarkerFor(uuid string) (int, bool) {
	for id, owner := range m.owners {
		if owner == uuid {
			return id, true
		}
	}
	return 0, false
}

// MarkerAt returns the wrapper id whose range contains the absolute offset.
// When wrappers overlap the newest one wins - that is the one whose style
// is visible at the point.
func (m *Manager) MarkerAt(abs int) (int, bool) {
	ids := m.sortedIDs()
	for i := len(ids) - 1; i >= 0; i-- {
		sp := m.spans[ids[i]]
		if abs >= sp.start && abs < sp.end {
			return ids[i], true
		}
	}
	return 0, false
}

// Range returns the absolute rune interval covered by a wrapper.
func (m *Manager) Range(markerID int) (int, int, bool) {
	sp, ok := m.spans[markerID]
	return sp.start, sp.end, ok
}

// IntersectingIDs returns wrapper ids whose ranges overlap [start,end),
// in ascending id order.
func (m *Manager) IntersectingIDs(start, end int) []int {
	var ids []int
	for _, id := range m.sortedIDs() {
		sp := m.spans[id]
		if sp.start < end && start < sp.end {
			ids = append(ids, id)
		}
	}
	return ids
}

func (m *Manager) sortedIDs() []int {
	ids := make([]int, 0, len(m.owners))
	for id := range m.owners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Wrap materializes a highlight over the absolute rune interval [start,end).
// The range is split at element boundaries, producing one wrapper span per
// contiguous text chunk, all carrying the same wrapper id. Returns the new
// wrapper id and ids of previously existing wrappers the range intersects.
// The document's text content is unchanged, only its structure - absolute
// offsets stay valid, canonical positions do not.
func (m *Manager) Wrap(uuid, style string, start, end int, hasNotes bool) (int, []int, error) {
	if end < start {
		start, end = end, start
	}
	if start < 0 {
		start = 0
	}
	if n := m.doc.Length(); end > n {
		end = n
	}
	if start >= end {
		return 0, nil, ErrNoRange
	}

	class := WrapperClass
	if hasNotes {
		class += " crw-notes"
	}
	normStyle := m.normalizeStyle(style)

	intersecting := m.IntersectingIDs(start, end)

	markerID := m.next
	m.next++

	cuts := m.collectCuts(start, end)
	// mutate back to front so token indices collected earlier stay valid
	for i := len(cuts) - 1; i >= 0; i-- {
		wrapToken(cuts[i], markerID, class, normStyle)
	}
	m.doc.Invalidate()

	m.owners[markerID] = uuid
	m.spans[markerID] = span{start: start, end: end}
	m.styles[markerID] = normStyle
	return markerID, intersecting, nil
}

// Unwrap removes all span elements of a wrapper, splicing their children
// back in place. Unknown ids are a no-op.
func (m *Manager) Unwrap(markerID int) {
	if _, ok := m.owners[markerID]; !ok {
		return
	}
	path := fmt.Sprintf(".//span[@%s='%d']", WrapperAttr, markerID)
	for _, el := range m.doc.Body().FindElements(path) {
		unwrapElement(el)
	}
	m.doc.Invalidate()
	delete(m.owners, markerID)
	delete(m.spans, markerID)
	delete(m.styles, markerID)
}

// UnwrapAll removes every wrapper the manager knows about.
func (m *Manager) UnwrapAll() {
	for _, id := range m.sortedIDs() {
		m.Unwrap(id)
	}
}

// Remove drops the highlight with the given uuid. Unknown uuids are a
// silent no-op.
func (m *Manager) Remove(uuid string) bool {
	id, ok := m.MarkerFor(uuid)
	if !ok {
		return false
	}
	m.Unwrap(id)
	return true
}

// StyleFor returns the normalized style applied to a wrapper.
func (m *Manager) StyleFor(markerID int) (string, bool) {
	style, ok := m.styles[markerID]
	return style, ok
}

// SetNotes rewraps the uuid's highlight with the notes presence flag
// changed, keeping range and style. Unknown uuids are a no-op.
func (m *Manager) SetNotes(uuid string, hasNotes bool) bool {
	id, ok := m.MarkerFor(uuid)
	if !ok {
		return false
	}
	sp := m.spans[id]
	style := m.styles[id]
	m.Unwrap(id)
	if _, _, err := m.Wrap(uuid, style, sp.start, sp.end, hasNotes); err != nil {
		return false
	}
	return true
}

// SetStyle rewraps the uuid's highlight with a new style, keeping range and
// notes presence. Unknown uuids are a no-op.
func (m *Manager) SetStyle(uuid, style string) bool {
	id, ok := m.MarkerFor(uuid)
	if !ok {
		return false
	}
	sp := m.spans[id]
	hasNotes := false
	path := fmt.Sprintf(".//span[@%s='%d']", WrapperAttr, id)
	if el := m.doc.Body().FindElement(path); el != nil {
		hasNotes = strings.Contains(el.SelectAttrValue("class", ""), "crw-notes")
	}
	m.Unwrap(id)
	if _, _, err := m.Wrap(uuid, style, sp.start, sp.end, hasNotes); err != nil {
		return false
	}
	return true
}

// Apply realizes a highlight over the current selection, or over the
// highlight's own CFI range when no selection is given. Conflicts with
// existing highlights resolve as follows: a single intersecting wrapper
// owned by the same uuid is an in-place edit and reports no removals;
// otherwise every intersecting wrapper is unwrapped and the distinct
// foreign uuids are reported as removed.
func (m *Manager) Apply(h Highlight, sel *content.Selection) (Applied, error) {
	start, end, err := m.resolveRange(h, sel)
	if err != nil {
		return Applied{}, err
	}

	intersecting := m.IntersectingIDs(start, end)

	inPlace := len(intersecting) == 1 && m.owners[intersecting[0]] == h.UUID
	var removed []string
	seen := map[string]bool{}
	for _, id := range intersecting {
		owner := m.owners[id]
		m.Unwrap(id)
		if inPlace || owner == h.UUID || seen[owner] {
			continue
		}
		seen[owner] = true
		removed = append(removed, owner)
	}

	markerID, _, err := m.Wrap(h.UUID, h.Style, start, end, h.HasNotes)
	if err != nil {
		return Applied{}, err
	}
	return Applied{MarkerID: markerID, Removed: removed}, nil
}

// RestoreAll applies a persisted highlight list, ordered by timestamp
// ascending so that at any overlap the newest highlight's style ends up
// visible. Highlights whose CFIs no longer resolve are skipped silently.
// Returns the number of highlights actually applied.
func (m *Manager) RestoreAll(list []Highlight) int {
	sorted := make([]Highlight, len(list))
	copy(sorted, list)
	cl := collate.New(language.Und)
	sort.SliceStable(sorted, func(i, j int) bool {
		return cl.CompareString(sorted[i].Timestamp, sorted[j].Timestamp) < 0
	})

	// Resolve every range before the first wrap mutates the tree:
	// persisted positions address the pristine structure, absolute
	// offsets survive the mutations.
	type resolved struct {
		h          Highlight
		start, end int
	}
	ranges := make([]resolved, 0, len(sorted))
	for _, h := range sorted {
		start, end, err := m.cfiRange(h)
		if err != nil {
			m.log.Debug("Skipping unresolvable highlight", zap.String("uuid", h.UUID), zap.Error(err))
			continue
		}
		ranges = append(ranges, resolved{h: h, start: start, end: end})
	}

	var applied int
	for _, r := range ranges {
		if _, _, err := m.Wrap(r.h.UUID, r.h.Style, r.start, r.end, r.h.HasNotes); err != nil {
			m.log.Debug("Skipping empty highlight range", zap.String("uuid", r.h.UUID))
			continue
		}
		applied++
	}
	return applied
}

func (m *Manager) resolveRange(h Highlight, sel *content.Selection) (int, int, error) {
	if sel != nil {
		if start, end, ok := sel.AbsRange(m.doc); ok {
			return start, end, nil
		}
	}
	if h.StartCFI != "" && h.EndCFI != "" {
		return m.cfiRange(h)
	}
	return 0, 0, ErrNoRange
}

func (m *Manager) cfiRange(h Highlight) (int, int, error) {
	start, err := cfi.Parse(h.StartCFI)
	if err != nil {
		return 0, 0, err
	}
	end, err := cfi.Parse(h.EndCFI)
	if err != nil {
		return 0, 0, err
	}
	return m.doc.RangeOffsets(start, end)
}

func (m *Manager) normalizeStyle(style string) string {
	if style == "" {
		return ""
	}
	decls := m.css.ParseDeclarations(style)
	if len(decls) == 0 {
		m.log.Debug("Highlight style has no usable declarations", zap.String("style", style))
		return ""
	}
	return css.Inline(decls)
}

// cut is one text token overlap scheduled for wrapping, with rune offsets
// local to the token.
type cut struct {
	token      *etree.CharData
	start, end int
}

// collectCuts walks the body collecting text tokens overlapping the
// absolute interval. Collection is separated from mutation because
// wrapping shifts token indices.
func (m *Manager) collectCuts(start, end int) []cut {
	var cuts []cut
	abs := 0
	var walk func(el *etree.Element)
	walk = func(el *etree.Element) {
		for _, child := range el.Child {
			switch t := child.(type) {
			case *etree.CharData:
				n := utf8.RuneCountInString(t.Data)
				if abs < end && start < abs+n {
					ls, le := start-abs, end-abs
					if ls < 0 {
						ls = 0
					}
					if le > n {
						le = n
					}
					if le > ls {
						cuts = append(cuts, cut{token: t, start: ls, end: le})
					}
				}
				abs += n
			case *etree.Element:
				walk(t)
			}
		}
	}
	walk(m.doc.Body())
	return cuts
}

// wrapToken replaces a text token with up to three tokens: leading text,
// the wrapper span around the covered part, trailing text.
func wrapToken(c cut, markerID int, class, style string) {
	parent := c.token.Parent()
	if parent == nil {
		return
	}
	idx := c.token.Index()
	runes := []rune(c.token.Data)
	prefix := string(runes[:c.start])
	middle := string(runes[c.start:c.end])
	suffix := string(runes[c.end:])

	parent.RemoveChild(c.token)

	at := idx
	if prefix != "" {
		parent.InsertChildAt(at, etree.NewText(prefix))
		at++
	}
	wrapper := etree.NewElement("span")
	wrapper.CreateAttr("class", class)
	wrapper.CreateAttr(WrapperAttr, strconv.Itoa(markerID))
	if style != "" {
		wrapper.CreateAttr("style", style)
	}
	wrapper.CreateText(middle)
	parent.InsertChildAt(at, wrapper)
	at++
	if suffix != "" {
		parent.InsertChildAt(at, etree.NewText(suffix))
	}
}

// unwrapElement splices the element's children into its parent at the
// element's position.
func unwrapElement(el *etree.Element) {
	parent := el.Parent()
	if parent == nil {
		return
	}
	idx := el.Index()
	children := make([]etree.Token, len(el.Child))
	copy(children, el.Child)
	parent.RemoveChild(el)
	for i, child := range children {
		el.RemoveChild(child)
		parent.InsertChildAt(idx+i, child)
	}
}
