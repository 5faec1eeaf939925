package annotations

import (
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"bookview/content"
)

const testDoc = `<html><body>` +
	`<p>Hello brave <b>new</b> world.</p>` +
	`<p>Second paragraph here.</p>` +
	`</body></html>`

// document text: "Hello brave new world.Second paragraph here."
//                 0         1         2         3         4
//                 0123456789012345678901234567890123456789012345

func newTestManager(t *testing.T) (*Manager, *content.Document) {
	t.Helper()
	log := zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
	d, err := content.LoadDocument(content.SpineItem{Name: "ch01", Index: 0}, strings.NewReader(testDoc), log)
	if err != nil {
		t.Fatalf("LoadDocument failed: %v", err)
	}
	return NewManager(d, log), d
}

func countWrappers(t *testing.T, d *content.Document, markerID int) int {
	t.Helper()
	path := fmt.Sprintf(".//span[@%s='%d']", WrapperAttr, markerID)
	return len(d.Body().FindElements(path))
}

func TestWrapSingleRun(t *testing.T) {
	m, d := newTestManager(t)
	before := d.Text()

	// "brave" = [6,11)
	id, intersecting, err := m.Wrap("uuid-1", "background-color: yellow", 6, 11, false)
	if err != nil {
		t.Fatalf("Wrap failed: %v", err)
	}
	if len(intersecting) != 0 {
		t.Errorf("unexpected intersections: %v", intersecting)
	}
	if n := countWrappers(t, d, id); n != 1 {
		t.Errorf("wrapper count = %d, want 1", n)
	}
	if d.Text() != before {
		t.Errorf("wrapping changed text content: %q", d.Text())
	}

	el := d.Body().FindElement(fmt.Sprintf(".//span[@%s='%d']", WrapperAttr, id))
	if el == nil {
		t.Fatalf("wrapper element not found")
	}
	if got := el.Text(); got != "brave" {
		t.Errorf("wrapped text = %q, want brave", got)
	}
	if got := el.SelectAttrValue("class", ""); got != WrapperClass {
		t.Errorf("wrapper class = %q", got)
	}
	if got := el.SelectAttrValue("style", ""); got != "background-color: yellow" {
		t.Errorf("wrapper style = %q", got)
	}
}

func TestWrapSplitsAtElementBoundaries(t *testing.T) {
	m, d := newTestManager(t)

	// "brave new world" = [6,21) crosses into and out of <b>
	id, _, err := m.Wrap("uuid-1", "", 6, 21, false)
	if err != nil {
		t.Fatalf("Wrap failed: %v", err)
	}
	if n := countWrappers(t, d, id); n != 3 {
		t.Errorf("wrapper count = %d, want 3 (before, inside, after <b>)", n)
	}
	if start, end, ok := m.Range(id); !ok || start != 6 || end != 21 {
		t.Errorf("Range = (%d, %d, %v)", start, end, ok)
	}
}

func TestWrapAcrossBlocks(t *testing.T) {
	m, d := newTestManager(t)

	// "world.Second" = [16,28) spans both paragraphs
	id, _, err := m.Wrap("uuid-1", "", 16, 28, false)
	if err != nil {
		t.Fatalf("Wrap failed: %v", err)
	}
	if n := countWrappers(t, d, id); n != 2 {
		t.Errorf("wrapper count = %d, want 2", n)
	}
}

func TestWrapRejectsEmptyRange(t *testing.T) {
	m, _ := newTestManager(t)
	if _, _, err := m.Wrap("uuid-1", "", 5, 5, false); err != ErrNoRange {
		t.Errorf("expected ErrNoRange, got %v", err)
	}
}

func TestUnwrapRestoresStructure(t *testing.T) {
	m, d := newTestManager(t)
	before := d.Text()

	id, _, err := m.Wrap("uuid-1", "", 6, 21, false)
	if err != nil {
		t.Fatalf("Wrap failed: %v", err)
	}

	m.Unwrap(id)
	if n := countWrappers(t, d, id); n != 0 {
		t.Errorf("%d wrappers survived unwrap", n)
	}
	if d.Text() != before {
		t.Errorf("unwrap changed text content: %q", d.Text())
	}
	if _, ok := m.UUIDFor(id); ok {
		t.Error("unwrapped id still owned")
	}

	// idempotent
	m.Unwrap(id)
	m.Unwrap(9999)
}

func TestPositionsSurviveWrapUnwrapInAbsoluteSpace(t *testing.T) {
	m, d := newTestManager(t)

	id, _, err := m.Wrap("uuid-1", "", 6, 11, false)
	if err != nil {
		t.Fatalf("Wrap failed: %v", err)
	}

	// absolute offsets stay meaningful, positions re-resolve round trip
	for _, abs := range []int{0, 6, 10, 21, 30} {
		pos, ok := d.PositionAt(abs)
		if !ok {
			t.Fatalf("PositionAt(%d) failed after wrap", abs)
		}
		back, err := d.OffsetOf(pos)
		if err != nil {
			t.Fatalf("OffsetOf after wrap failed at %d: %v", abs, err)
		}
		if back != abs {
			t.Errorf("round trip after wrap: %d -> %d", abs, back)
		}
	}

	m.Unwrap(id)
	if pos, ok := d.PositionAt(7); !ok {
		t.Error("PositionAt failed after unwrap")
	} else if back, err := d.OffsetOf(pos); err != nil || back != 7 {
		t.Errorf("round trip after unwrap: %d, %v", back, err)
	}
}

func TestApplyCoalescing(t *testing.T) {
	t.Run("same_uuid_exact_cover_is_edit", func(t *testing.T) {
		m, _ := newTestManager(t)
		if _, _, err := m.Wrap("uuid-1", "", 6, 11, false); err != nil {
			t.Fatalf("Wrap failed: %v", err)
		}

		// selection addresses the wrapped structure: the span around
		// "brave" is now the first child element of the paragraph
		sel := &content.Selection{
			StartSteps: []int{2, 2, 1}, StartOffset: 0,
			EndSteps: []int{2, 2, 1}, EndOffset: 5,
		}
		res, err := m.Apply(Highlight{
			UUID:  "uuid-1",
			Style: "background-color: red",
		}, sel)
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if len(res.Removed) != 0 {
			t.Errorf("in-place edit reported removals: %v", res.Removed)
		}
		if res.MarkerID == 0 {
			t.Error("no marker produced")
		}
	})

	t.Run("two_foreign_uuids_removed", func(t *testing.T) {
		m, _ := newTestManager(t)
		if _, _, err := m.Wrap("uuid-1", "", 0, 5, false); err != nil {
			t.Fatalf("Wrap failed: %v", err)
		}
		if _, _, err := m.Wrap("uuid-2", "", 12, 15, false); err != nil {
			t.Fatalf("Wrap failed: %v", err)
		}

		// range [2,14) covers the tail of uuid-1 and the head of uuid-2
		sel := &content.Selection{
			StartSteps: []int{2, 2, 1}, StartOffset: 2,
			EndSteps: []int{2, 4, 2, 1}, EndOffset: 2,
		}
		res, err := m.Apply(Highlight{UUID: "uuid-3"}, sel)
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if len(res.Removed) != 2 || res.Removed[0] != "uuid-1" || res.Removed[1] != "uuid-2" {
			t.Errorf("removed = %v, want [uuid-1 uuid-2]", res.Removed)
		}
		if _, ok := m.MarkerFor("uuid-1"); ok {
			t.Error("uuid-1 wrapper survived")
		}
		if _, ok := m.MarkerFor("uuid-3"); !ok {
			t.Error("uuid-3 wrapper missing")
		}
	})

	t.Run("no_range_no_mutation", func(t *testing.T) {
		m, d := newTestManager(t)
		before := d.Text()

		if _, err := m.Apply(Highlight{UUID: "uuid-1"}, nil); err != ErrNoRange {
			t.Errorf("expected ErrNoRange, got %v", err)
		}
		if _, err := m.Apply(Highlight{UUID: "uuid-1"}, &content.Selection{Collapsed: true}); err != ErrNoRange {
			t.Errorf("expected ErrNoRange for collapsed selection, got %v", err)
		}
		if d.Text() != before {
			t.Error("failed apply mutated the document")
		}
	})
}

func TestRemove(t *testing.T) {
	m, d := newTestManager(t)
	if _, _, err := m.Wrap("uuid-1", "", 6, 11, false); err != nil {
		t.Fatalf("Wrap failed: %v", err)
	}

	if !m.Remove("uuid-1") {
		t.Error("Remove known uuid returned false")
	}
	if n := len(d.Body().FindElements(".//span")); n != 0 {
		t.Errorf("%d spans survived removal", n)
	}
	if m.Remove("uuid-unknown") {
		t.Error("Remove unknown uuid returned true")
	}
}

func TestRestoreAllOrdering(t *testing.T) {
	m, _ := newTestManager(t)

	// overlapping highlights given out of timestamp order - the newer one
	// must end up innermost so its style is the visible one at the overlap
	list := []Highlight{
		{UUID: "uuid-new", Timestamp: "2026-02-10T10:00:00Z", StartCFI: "epubcfi(/2!/2/1:3)", EndCFI: "epubcfi(/2!/2/1:9)"},
		{UUID: "uuid-old", Timestamp: "2026-01-05T10:00:00Z", StartCFI: "epubcfi(/2!/2/1:0)", EndCFI: "epubcfi(/2!/2/1:6)"},
		{UUID: "uuid-bad", Timestamp: "2026-01-06T10:00:00Z", StartCFI: "epubcfi(/2!/88/1:0)", EndCFI: "epubcfi(/2!/88/1:3)"},
	}

	if applied := m.RestoreAll(list); applied != 2 {
		t.Fatalf("applied = %d, want 2 (unresolvable one skipped)", applied)
	}

	id, ok := m.MarkerAt(4)
	if !ok {
		t.Fatalf("no marker at overlap")
	}
	if owner, _ := m.UUIDFor(id); owner != "uuid-new" {
		t.Errorf("visible highlight at overlap = %q, want uuid-new", owner)
	}
}

func TestManagerString(t *testing.T) {
	m, _ := newTestManager(t)
	if _, _, err := m.Wrap("uuid-2", "color: red", 0, 5, false); err != nil {
		t.Fatalf("Wrap failed: %v", err)
	}
	if _, _, err := m.Wrap("uuid-10", "", 12, 15, false); err != nil {
		t.Fatalf("Wrap failed: %v", err)
	}

	dump := m.String()
	if !strings.Contains(dump, "uuid-2") || !strings.Contains(dump, "uuid-10") {
		t.Errorf("dump missing uuids:\n%s", dump)
	}
	// natural order puts uuid-2 before uuid-10
	if strings.Index(dump, "uuid-2") > strings.Index(dump, "uuid-10") {
		t.Errorf("uuids not naturally ordered:\n%s", dump)
	}
}
