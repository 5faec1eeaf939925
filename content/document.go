package content

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/beevik/etree"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"bookview/cfi"
)

// TextRun is one contiguous stretch of character data inside a single text
// chunk of its parent element. Runs are ordered by document order and carry
// precomputed structural steps so positions can be produced without another
// tree walk. A run is a point-in-time snapshot: any tree mutation invalidates
// it together with the offsets it describes.
type TextRun struct {
	Parent *etree.Element
	// Steps is the structural path of the run's text chunk, trailing step odd.
	Steps []int
	// Start is the absolute rune offset of the run within document text.
	Start int
	Text  string
}

// End returns the absolute rune offset just past the run.
func (r TextRun) End() int {
	return r.Start + utf8.RuneCountInString(r.Text)
}

// Block is a top-level content element of the document body with its
// absolute text span. Used by layout strategies for pagination math.
type Block struct {
	El         *etree.Element
	Index      int
	Start, End int
}

// Document is a single materialized spine item. The tree is the one shared
// mutable resource of the reading surface: the annotation manager rearranges
// it when wrapping highlights, so all derived indexes are rebuilt lazily
// after Invalidate.
type Document struct {
	Item SpineItem

	tree *etree.Document
	log  *zap.Logger

	dirty  bool
	runs   []TextRun
	blocks []Block
	ids    map[string]*etree.Element
	text   string
	length int
}

// LoadDocument reads and parses spine item content for display.
func LoadDocument(item SpineItem, r io.Reader, log *zap.Logger) (*Document, error) {
	tree := etree.NewDocument()
	tree.ReadSettings = etree.ReadSettings{
		CharsetReader: charset.NewReaderLabel,
		Permissive:    true,
	}
	if _, err := tree.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("unable to read spine document %q: %w", item.Name, err)
	}
	if tree.Root() == nil {
		return nil, fmt.Errorf("spine document %q has no root element", item.Name)
	}

	d := &Document{
		Item:  item,
		tree:  tree,
		log:   log.Named("doc"),
		dirty: true,
	}
	return d, nil
}

// Tree exposes the underlying document tree for collaborators that need to
// mutate it (annotation wrapping) or render it (math markup pass).
func (d *Document) Tree() *etree.Document {
	return d.tree
}

// Body returns the element all content addressing is relative to.
func (d *Document) Body() *etree.Element {
	if body := d.tree.Root().SelectElement("body"); body != nil {
		return body
	}
	return d.tree.Root()
}

// Invalidate marks derived indexes stale after a tree mutation.
func (d *Document) Invalidate() {
	d.dirty = true
}

func (d *Document) ensure() {
	if !d.dirty {
		return
	}
	d.runs = d.runs[:0]
	d.blocks = d.blocks[:0]
	d.ids = make(map[string]*etree.Element)
	d.length = 0

	var text strings.Builder
	d.indexIDs(d.tree.Root())

	body := d.Body()
	elemCount := 0
	for _, tok := range body.Child {
		switch t := tok.(type) {
		case *etree.Element:
			start := d.length
			d.walk(t, []int{2 * (elemCount + 1)}, &text)
			d.blocks = append(d.blocks, Block{El: t, Index: len(d.blocks), Start: start, End: d.length})
			elemCount++
		case *etree.CharData:
			d.addRun(body, []int{2*elemCount + 1}, t.Data, &text)
		}
	}
	d.text = text.String()
	d.dirty = false
}

func (d *Document) walk(el *etree.Element, steps []int, text *strings.Builder) {
	elemCount := 0
	for _, tok := range el.Child {
		switch t := tok.(type) {
		case *etree.Element:
			d.walk(t, append(append([]int{}, steps...), 2*(elemCount+1)), text)
			elemCount++
		case *etree.CharData:
			d.addRun(el, append(append([]int{}, steps...), 2*elemCount+1), t.Data, text)
		}
	}
}

// addRun appends character data to the current run when it continues the
// same text chunk, otherwise starts a new run.
func (d *Document) addRun(parent *etree.Element, steps []int, data string, text *strings.Builder) {
	if len(data) == 0 {
		return
	}
	if n := len(d.runs); n > 0 && d.runs[n-1].Parent == parent && stepsEqual(d.runs[n-1].Steps, steps) {
		d.runs[n-1].Text += data
	} else {
		d.runs = append(d.runs, TextRun{Parent: parent, Steps: steps, Start: d.length, Text: data})
	}
	text.WriteString(data)
	d.length += utf8.RuneCountInString(data)
}

func (d *Document) indexIDs(el *etree.Element) {
	if id := el.SelectAttrValue("id", ""); id != "" {
		if _, exists := d.ids[id]; exists {
			// NOTE: malformed content, first occurrence wins same as in browsers
			d.log.Debug("Duplicate element ID detected during document indexing, skipping", zap.String("id", id))
		} else {
			d.ids[id] = el
		}
	}
	for _, child := range el.ChildElements() {
		d.indexIDs(child)
	}
}

// Runs returns document text runs in document order.
func (d *Document) Runs() []TextRun {
	d.ensure()
	return d.runs
}

// Blocks returns top-level content blocks in document order.
func (d *Document) Blocks() []Block {
	d.ensure()
	if len(d.blocks) == 0 && d.length > 0 {
		// bare text body - treat the whole document as a single block
		return []Block{{El: d.Body(), Index: 0, Start: 0, End: d.length}}
	}
	return d.blocks
}

// Text returns normalized document text - concatenation of all runs.
func (d *Document) Text() string {
	d.ensure()
	return d.text
}

// Length returns document text length in runes.
func (d *Document) Length() int {
	d.ensure()
	return d.length
}

// HasContent reports whether the document has any stable text anchor at all.
func (d *Document) HasContent() bool {
	d.ensure()
	return strings.TrimSpace(d.text) != ""
}

// ElementByID finds an element addressable by anchor id.
func (d *Document) ElementByID(id string) (*etree.Element, bool) {
	d.ensure()
	el, ok := d.ids[id]
	return el, ok
}

// BlockAt returns index of the block containing the absolute offset.
func (d *Document) BlockAt(abs int) int {
	blocks := d.Blocks()
	if len(blocks) == 0 {
		return 0
	}
	i := sort.Search(len(blocks), func(i int) bool { return blocks[i].End > abs })
	if i >= len(blocks) {
		return len(blocks) - 1
	}
	return i
}

// PositionAt converts an absolute rune offset to a canonical position.
// Returns false when the document has no text at all.
func (d *Document) PositionAt(abs int) (cfi.Position, bool) {
	d.ensure()
	if len(d.runs) == 0 {
		return cfi.Position{}, false
	}
	if abs < 0 {
		abs = 0
	}
	if abs >= d.length {
		last := d.runs[len(d.runs)-1]
		return cfi.Position{Spine: d.Item.Index, Steps: last.Steps, Offset: utf8.RuneCountInString(last.Text)}, true
	}
	i := sort.Search(len(d.runs), func(i int) bool { return d.runs[i].End() > abs })
	run := d.runs[i]
	return cfi.Position{Spine: d.Item.Index, Steps: run.Steps, Offset: abs - run.Start}, true
}

// AnchorAt behaves like PositionAt but skips forward over whitespace-only
// runs so the produced position survives reflow better. Returns false for a
// fully blank document.
func (d *Document) AnchorAt(abs int) (cfi.Position, bool) {
	d.ensure()
	if !d.HasContent() {
		return cfi.Position{}, false
	}
	if abs < 0 {
		abs = 0
	}
	i := sort.Search(len(d.runs), func(i int) bool { return d.runs[i].End() > abs })
	for ; i < len(d.runs); i++ {
		if strings.TrimSpace(d.runs[i].Text) == "" {
			continue
		}
		off := abs - d.runs[i].Start
		if off < 0 {
			off = 0
		}
		return cfi.Position{Spine: d.Item.Index, Steps: d.runs[i].Steps, Offset: off}, true
	}
	// past the last content - anchor at the end of the last non-blank run
	for i = len(d.runs) - 1; i >= 0; i-- {
		if strings.TrimSpace(d.runs[i].Text) != "" {
			return cfi.Position{Spine: d.Item.Index, Steps: d.runs[i].Steps, Offset: utf8.RuneCountInString(d.runs[i].Text)}, true
		}
	}
	return cfi.Position{}, false
}

// OffsetOf resolves a canonical position to an absolute rune offset. A
// position from another spine item or one that no longer matches current
// document structure fails with cfi.ErrNotFound.
func (d *Document) OffsetOf(pos cfi.Position) (int, error) {
	d.ensure()
	if pos.Spine != d.Item.Index {
		return 0, cfi.ErrNotFound
	}
	if len(pos.Steps) == 0 {
		return 0, cfi.ErrNotFound
	}

	if pos.Steps[len(pos.Steps)-1]%2 == 1 {
		// text chunk address - exact match required
		for _, run := range d.runs {
			if !stepsEqual(run.Steps, pos.Steps) {
				continue
			}
			off := pos.Offset
			if off < 0 {
				off = 0
			}
			if n := utf8.RuneCountInString(run.Text); off > n {
				off = n
			}
			return run.Start + off, nil
		}
		return 0, cfi.ErrNotFound
	}

	// element address - first text at or below the element
	for _, run := range d.runs {
		if stepsHavePrefix(run.Steps, pos.Steps) {
			return run.Start, nil
		}
	}
	return 0, cfi.ErrNotFound
}

// RangeOffsets resolves a pair of positions to an absolute rune interval,
// normalizing order.
func (d *Document) RangeOffsets(start, end cfi.Position) (int, int, error) {
	s, err := d.OffsetOf(start)
	if err != nil {
		return 0, 0, err
	}
	e, err := d.OffsetOf(end)
	if err != nil {
		return 0, 0, err
	}
	if s > e {
		s, e = e, s
	}
	return s, e, nil
}

// StepsOfElement computes the structural path of an element relative to the
// document body. Returns false for elements outside the body subtree.
func (d *Document) StepsOfElement(el *etree.Element) ([]int, bool) {
	body := d.Body()
	var steps []int
	for el != nil && el != body {
		parent := el.Parent()
		if parent == nil {
			return nil, false
		}
		pos := 0
		for _, sib := range parent.ChildElements() {
			if sib == el {
				break
			}
			pos++
		}
		steps = append([]int{2 * (pos + 1)}, steps...)
		el = parent
	}
	if el != body {
		return nil, false
	}
	return steps, true
}

// OffsetOfElement returns the absolute offset of the first text at or
// below the element.
func (d *Document) OffsetOfElement(el *etree.Element) (int, bool) {
	steps, ok := d.StepsOfElement(el)
	if !ok {
		return 0, false
	}
	if len(steps) == 0 {
		return 0, true
	}
	for _, run := range d.Runs() {
		if stepsHavePrefix(run.Steps, steps) {
			return run.Start, true
		}
	}
	return 0, false
}

// LastIDBefore returns the id of the last addressable element whose content
// starts at or before the absolute offset. Used to tell the host which
// table-of-contents entry the reading point is under.
func (d *Document) LastIDBefore(abs int) (string, bool) {
	d.ensure()
	best, bestOff := "", -1
	for id, el := range d.ids {
		off, ok := d.OffsetOfElement(el)
		if !ok || off > abs {
			continue
		}
		// deterministic tie-break on equal offsets
		if off > bestOff || (off == bestOff && id < best) {
			best, bestOff = id, off
		}
	}
	return best, bestOff >= 0
}

func stepsEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func stepsHavePrefix(steps, prefix []int) bool {
	if len(steps) < len(prefix) {
		return false
	}
	for i := range prefix {
		if steps[i] != prefix[i] {
			return false
		}
	}
	return true
}
