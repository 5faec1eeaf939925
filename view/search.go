package view

import (
	"unicode"

	"go.uber.org/zap"

	"bookview/content"
)

// Finder is the text-search primitive over the loaded document. It searches
// case-insensitively and wraps around natively in both directions, so
// backward search needs no find-until-exhaustion emulation.
type Finder struct {
	doc  *content.Document
	log  *zap.Logger
	text []rune

	query   string
	lastEnd int
}

func newFinder(doc *content.Document, log *zap.Logger) *Finder {
	return &Finder{doc: doc, log: log.Named("find"), text: foldRunes(doc.Text())}
}

// foldRunes lowercases rune-by-rune so offsets stay aligned with document
// rune offsets.
func foldRunes(s string) []rune {
	runes := []rune(s)
	for i, r := range runes {
		runes[i] = unicode.ToLower(r)
	}
	return runes
}

// Find locates the next match as an absolute rune interval. Search
// continues from the previous match (or the start when fromStart is set),
// wrapping around at either end.
func (f *Finder) Find(query string, backwards, fromStart bool) (int, int, bool) {
	needle := foldRunes(query)
	if len(needle) == 0 || len(f.text) < len(needle) {
		return 0, 0, false
	}
	if query != f.query {
		f.query = query
		f.lastEnd = 0
		fromStart = true
	}

	from := f.lastEnd
	if fromStart {
		from = 0
	}

	var start int
	var ok bool
	if backwards {
		// continue left of the previous match start
		bFrom := from - len(needle) - 1
		if fromStart {
			bFrom = len(f.text) - len(needle)
		}
		start, ok = f.findBackward(needle, bFrom)
	} else {
		start, ok = f.findForward(needle, from)
	}
	if !ok {
		return 0, 0, false
	}
	f.lastEnd = start + len(needle)
	return start, start + len(needle), true
}

// SelectNth locates the nth match (0-based) from the document start, used
// to restore a search-result initial position.
func (f *Finder) SelectNth(query string, n int) (int, int, bool) {
	needle := foldRunes(query)
	if len(needle) == 0 {
		return 0, 0, false
	}
	from := 0
	for i := 0; ; i++ {
		start, ok := f.scanForward(needle, from)
		if !ok {
			return 0, 0, false
		}
		if i == n {
			f.query = query
			f.lastEnd = start + len(needle)
			return start, start + len(needle), true
		}
		from = start + 1
	}
}

// findForward wraps around the document end.
func (f *Finder) findForward(needle []rune, from int) (int, bool) {
	if from < 0 || from > len(f.text) {
		from = 0
	}
	if start, ok := f.scanForward(needle, from); ok {
		return start, true
	}
	if from == 0 {
		return 0, false
	}
	return f.scanForward(needle, 0)
}

// findBackward wraps around the document start.
func (f *Finder) findBackward(needle []rune, from int) (int, bool) {
	last := len(f.text) - len(needle)
	if from > last || from < 0 {
		from = last
	}
	for i := from; i >= 0; i-- {
		if f.matchAt(needle, i) {
			return i, true
		}
	}
	for i := last; i > from; i-- {
		if f.matchAt(needle, i) {
			return i, true
		}
	}
	return 0, false
}

func (f *Finder) scanForward(needle []rune, from int) (int, bool) {
	for i := from; i+len(needle) <= len(f.text); i++ {
		if f.matchAt(needle, i) {
			return i, true
		}
	}
	return 0, false
}

func (f *Finder) matchAt(needle []rune, at int) bool {
	for j, r := range needle {
		if f.text[at+j] != r {
			return false
		}
	}
	return true
}
