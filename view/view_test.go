package view

import (
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"bookview/content"
	"bookview/layout"
)

func testLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
}

func loadViewDoc(t *testing.T, src string) *content.Document {
	t.Helper()
	item := content.SpineItem{Name: "ch1.xhtml", Index: 0, Length: 100}
	doc, err := content.LoadDocument(item, strings.NewReader(src), testLogger(t))
	if err != nil {
		t.Fatalf("unable to load test document: %v", err)
	}
	return doc
}

// manualSched implements layout.Scheduler with hand-driven time.
type manualSched struct {
	pending []*manualTimer
}

type manualTimer struct {
	fn        func()
	repeat    bool
	cancelled bool
}

func (s *manualSched) Every(_ time.Duration, fn func()) func() {
	mt := &manualTimer{fn: fn, repeat: true}
	s.pending = append(s.pending, mt)
	return func() { mt.cancelled = true }
}

func (s *manualSched) After(_ time.Duration, fn func()) func() {
	mt := &manualTimer{fn: fn}
	s.pending = append(s.pending, mt)
	return func() { mt.cancelled = true }
}

// fire runs every live timer once, dropping one-shots.
func (s *manualSched) fire() {
	timers := s.pending
	var keep []*manualTimer
	for _, mt := range timers {
		if mt.cancelled {
			continue
		}
		if mt.repeat {
			keep = append(keep, mt)
		}
	}
	s.pending = keep
	for _, mt := range timers {
		if !mt.cancelled {
			mt.fn()
		}
	}
}

func (s *manualSched) live() int {
	var n int
	for _, mt := range s.pending {
		if !mt.cancelled {
			n++
		}
	}
	return n
}

func TestProgressFrac(t *testing.T) {
	cases := []struct {
		name                            string
		before, docLength, total        int
		frac                            float64
		want                            float64
	}{
		{"mid_book", 100, 300, 400, 0.5, 0.625},
		{"first_document_start", 0, 100, 400, 0, 0},
		{"last_document_end", 300, 100, 400, 1, 1},
		{"empty_book", 0, 0, 0, 0.5, 0},
		{"frac_clamped_high", 0, 100, 100, 1.5, 1},
		{"frac_clamped_low", 0, 100, 100, -1, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := progressFrac(tc.before, tc.docLength, tc.total, tc.frac)
			if got != tc.want {
				t.Fatalf("progressFrac(%d, %d, %d, %v) = %v, want %v",
					tc.before, tc.docLength, tc.total, tc.frac, got, tc.want)
			}
		})
	}
}

func TestDebouncerLastPayloadWins(t *testing.T) {
	sched := &manualSched{}
	deb := NewDebouncer(sched, time.Second)

	var got []int
	for i := 1; i <= 3; i++ {
		i := i
		deb.Trigger(func() { got = append(got, i) })
	}
	if !deb.Pending() {
		t.Fatal("debouncer should have a pending invocation")
	}
	sched.fire()
	if len(got) != 1 || got[0] != 3 {
		t.Fatalf("expected single trailing invocation with last payload, got %v", got)
	}
	if deb.Pending() {
		t.Fatal("debouncer should be idle after firing")
	}
}

func TestDebouncerStop(t *testing.T) {
	sched := &manualSched{}
	deb := NewDebouncer(sched, time.Second)

	var fired bool
	deb.Trigger(func() { fired = true })
	deb.Stop()
	sched.fire()
	if fired {
		t.Fatal("stopped debouncer must not fire")
	}
	if sched.live() != 0 {
		t.Fatalf("expected no live timers after stop, got %d", sched.live())
	}
}

func TestDebouncerSupersededTimerStaysDead(t *testing.T) {
	sched := &manualSched{}
	deb := NewDebouncer(sched, time.Second)

	var got []int
	deb.Trigger(func() { got = append(got, 1) })
	stale := sched.pending[0]
	deb.Trigger(func() { got = append(got, 2) })

	// the first timer already posted its callback when the second trigger
	// cancelled it - running it now must neither fire nor disturb the
	// replacement's pending state
	stale.fn()
	if len(got) != 0 {
		t.Fatalf("superseded callback ran: %v", got)
	}
	if !deb.Pending() {
		t.Fatal("replacement invocation lost")
	}

	deb.Stop()
	sched.fire()
	if len(got) != 0 {
		t.Fatalf("stopped debouncer fired: %v", got)
	}
}

func TestKeymapRouting(t *testing.T) {
	bindings := map[string][]string{
		"next_page":     {"Space", "PageDown"},
		"previous_page": {"shift+Space"},
		"find_next":     {"ctrl+G"},
		"copy":          {"ctrl+c"},
		"unknown_thing": {"F9"},
	}
	km := newKeymap(bindings, testLogger(t))

	cases := []struct {
		name string
		key  layout.KeyEvent
		want string
	}{
		{"plain_named_key", layout.KeyEvent{Key: "Space"}, "next_page"},
		{"modifier_distinguishes", layout.KeyEvent{Key: "Space", Shift: true}, "previous_page"},
		{"letter_case_insensitive", layout.KeyEvent{Key: "g", Ctrl: true}, "find_next"},
		{"letter_upper_event", layout.KeyEvent{Key: "G", Ctrl: true}, "find_next"},
		{"copy_chord", layout.KeyEvent{Key: "c", Ctrl: true}, "copy"},
		{"unbound", layout.KeyEvent{Key: "x"}, ""},
		{"unknown_action_skipped", layout.KeyEvent{Key: "F9"}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := km.Lookup(tc.key); got != tc.want {
				t.Fatalf("Lookup(%+v) = %q, want %q", tc.key, got, tc.want)
			}
		})
	}
}

func TestKeymapMalformedBindingSkipped(t *testing.T) {
	km := newKeymap(map[string][]string{
		"next_page": {"bogus+x", "PageDown"},
	}, testLogger(t))

	if got := km.Lookup(layout.KeyEvent{Key: "PageDown"}); got != "next_page" {
		t.Fatalf("valid binding lost: got %q", got)
	}
	if got := km.Lookup(layout.KeyEvent{Key: "x"}); got != "" {
		t.Fatalf("malformed binding should not resolve, got %q", got)
	}
}

const searchDoc = `<html><body><p>One fish two fish.</p><p>Red FISH blue fish.</p></body></html>`

// text: "One fish two fish.Red FISH blue fish." (37 runes)

func TestFinderForwardWrapsAround(t *testing.T) {
	f := newFinder(loadViewDoc(t, searchDoc), testLogger(t))

	starts := []int{4, 13, 22, 32, 4}
	for i, want := range starts {
		start, end, ok := f.Find("fish", false, false)
		if !ok {
			t.Fatalf("match %d not found", i)
		}
		if start != want || end != want+4 {
			t.Fatalf("match %d: got [%d,%d), want [%d,%d)", i, start, end, want, want+4)
		}
	}
}

func TestFinderBackwardWrapsAround(t *testing.T) {
	f := newFinder(loadViewDoc(t, searchDoc), testLogger(t))

	// new query going backwards starts from the document end
	start, _, ok := f.Find("fish", true, false)
	if !ok || start != 32 {
		t.Fatalf("first backward match: got %d ok=%v, want 32", start, ok)
	}
	start, _, ok = f.Find("fish", true, false)
	if !ok || start != 22 {
		t.Fatalf("second backward match: got %d, want 22", start)
	}
	// walk off the start and wrap to the last match
	for i := 0; i < 2; i++ {
		if _, _, ok = f.Find("fish", true, false); !ok {
			t.Fatalf("backward match %d not found", i)
		}
	}
	start, _, ok = f.Find("fish", true, false)
	if !ok || start != 32 {
		t.Fatalf("backward wraparound: got %d ok=%v, want 32", start, ok)
	}
}

func TestFinderCaseFolding(t *testing.T) {
	f := newFinder(loadViewDoc(t, searchDoc), testLogger(t))

	start, _, ok := f.Find("RED", false, true)
	if !ok || start != 18 {
		t.Fatalf(`Find("RED") = %d ok=%v, want 18`, start, ok)
	}
}

func TestFinderQueryChangeResets(t *testing.T) {
	f := newFinder(loadViewDoc(t, searchDoc), testLogger(t))

	if _, _, ok := f.Find("fish", false, false); !ok {
		t.Fatal("first query not found")
	}
	start, _, ok := f.Find("one", false, false)
	if !ok || start != 0 {
		t.Fatalf("changed query should restart from the top: got %d ok=%v", start, ok)
	}
}

func TestFinderNoMatch(t *testing.T) {
	f := newFinder(loadViewDoc(t, searchDoc), testLogger(t))

	if _, _, ok := f.Find("walrus", false, false); ok {
		t.Fatal("expected no match")
	}
	if _, _, ok := f.Find("", false, false); ok {
		t.Fatal("empty query must not match")
	}
}

func TestFinderSelectNth(t *testing.T) {
	f := newFinder(loadViewDoc(t, searchDoc), testLogger(t))

	start, end, ok := f.SelectNth("fish", 2)
	if !ok || start != 22 || end != 26 {
		t.Fatalf("SelectNth(2) = [%d,%d) ok=%v, want [22,26)", start, end, ok)
	}
	if _, _, ok := f.SelectNth("fish", 9); ok {
		t.Fatal("out-of-range match index must fail")
	}
}

const refDoc = `<html><body><h1 id="top">Title</h1><p>Text.</p><aside><p>Note one.</p></aside><section id="notes"><p>Note two.</p></section></body></html>`

func TestReferenceNumbering(t *testing.T) {
	doc := loadViewDoc(t, refDoc)
	ri := buildReferences(doc, testLogger(t))

	if ri.Len() != 3 {
		t.Fatalf("expected 3 reference targets, got %d", ri.Len())
	}

	first, ok := ri.ByNumber(1)
	if !ok || first.ID != "top" || first.generated {
		t.Fatalf("reference 1: got %+v", first)
	}

	second, ok := ri.ByNumber(2)
	if !ok || !second.generated {
		t.Fatalf("reference 2 should be a generated aside id: got %+v", second)
	}
	if _, found := doc.ElementByID(second.ID); !found {
		t.Fatalf("generated id %q not resolvable through the document", second.ID)
	}

	third, ok := ri.ByNumber(3)
	if !ok || third.ID != "notes" || third.generated {
		t.Fatalf("reference 3: got %+v", third)
	}

	if _, ok := ri.ByNumber(4); ok {
		t.Fatal("reference 4 should not exist")
	}
}

func TestReferenceTeardownRemovesGeneratedIDs(t *testing.T) {
	doc := loadViewDoc(t, refDoc)
	ri := buildReferences(doc, testLogger(t))

	generated, ok := ri.ByNumber(2)
	if !ok {
		t.Fatal("generated reference missing")
	}
	ri.Teardown()

	if _, found := doc.ElementByID(generated.ID); found {
		t.Fatalf("generated id %q should be gone after teardown", generated.ID)
	}
	if _, found := doc.ElementByID("top"); !found {
		t.Fatal("author-provided id must survive teardown")
	}
	if ri.Len() != 0 {
		t.Fatalf("expected empty index after teardown, got %d", ri.Len())
	}
}

func TestTextSlice(t *testing.T) {
	if got := textSlice("но́вый мир", 1, 4); got != "о́в" {
		t.Fatalf("unicode slice: got %q", got)
	}
	if got := textSlice("abc", 2, 99); got != "c" {
		t.Fatalf("clamped slice: got %q", got)
	}
	if got := textSlice("abc", 2, 1); got != "" {
		t.Fatalf("inverted slice: got %q", got)
	}
}
