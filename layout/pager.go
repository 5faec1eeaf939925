package layout

import (
	"errors"

	"bookview/content"
)

// Pager is the external layout-math collaborator: it measures rendered
// content and splits it into pages. The real pagination engine lives on the
// other side of the frame boundary; BlockPager ships as a deterministic
// stand-in for headless operation and tests.
type Pager interface {
	// Paginate splits the document into pages for the given geometry,
	// returning the page count and a block-index to page-index mapping.
	Paginate(doc *content.Document, m Metrics) (pages int, pageOf func(blockIndex int) int, err error)

	// MeasureHeight estimates the full laid-out height of the document
	// in pixels for the given geometry.
	MeasureHeight(doc *content.Document, m Metrics) (int, error)
}

// ErrNoViewport is returned when pagination is requested before the host
// communicated a usable viewport size.
var ErrNoViewport = errors.New("layout: viewport has no size")

// BlockPager estimates geometry from text volume alone: fixed glyph width,
// fixed line height, fixed spacing between blocks. Deterministic for a
// given document and metrics, which is all the tests and headless mode
// need.
type BlockPager struct {
	CharWidth    int
	LineHeight   int
	BlockSpacing int
}

// NewBlockPager returns a pager with rendering constants roughly matching
// a 16px reading font.
func NewBlockPager() *BlockPager {
	return &BlockPager{
		CharWidth:    8,
		LineHeight:   24,
		BlockSpacing: 12,
	}
}

func (p *BlockPager) blockHeight(b content.Block, lineWidth int) int {
	runesPerLine := lineWidth / p.CharWidth
	if runesPerLine < 1 {
		runesPerLine = 1
	}
	n := b.End - b.Start
	lines := (n + runesPerLine - 1) / runesPerLine
	if lines < 1 {
		lines = 1
	}
	return lines*p.LineHeight + p.BlockSpacing
}

// MeasureHeight sums estimated block heights.
func (p *BlockPager) MeasureHeight(doc *content.Document, m Metrics) (int, error) {
	if m.ViewportWidth <= 0 {
		return 0, ErrNoViewport
	}
	var total int
	for _, b := range doc.Blocks() {
		total += p.blockHeight(b, m.ViewportWidth)
	}
	return total, nil
}

// Paginate fills column-height pages with whole blocks. A block taller than
// a page occupies as many pages as it needs.
func (p *BlockPager) Paginate(doc *content.Document, m Metrics) (int, func(int) int, error) {
	if m.ViewportWidth <= 0 || m.ViewportHeight <= 0 {
		return 0, nil, ErrNoViewport
	}
	columns := m.ColumnsPerScreen
	if columns < 1 {
		columns = 1
	}
	colWidth := m.ViewportWidth / columns

	blocks := doc.Blocks()
	pageIdx := make([]int, len(blocks))
	page, used := 0, 0
	for i, b := range blocks {
		h := p.blockHeight(b, colWidth)
		if used > 0 && used+h > m.ViewportHeight {
			page++
			used = 0
		}
		pageIdx[i] = page
		used += h
		for used > m.ViewportHeight {
			page++
			used -= m.ViewportHeight
		}
	}

	pages := page + 1
	if len(blocks) == 0 {
		pages = 1
	}
	pageOf := func(blockIndex int) int {
		if len(pageIdx) == 0 {
			return 0
		}
		if blockIndex < 0 {
			return pageIdx[0]
		}
		if blockIndex >= len(pageIdx) {
			return pageIdx[len(pageIdx)-1]
		}
		return pageIdx[blockIndex]
	}
	return pages, pageOf, nil
}
