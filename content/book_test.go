package content

import (
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func testSpine() []SpineItem {
	return []SpineItem{
		{Name: "cover", Length: 10},
		{Name: "ch01", Length: 100},
		{Name: "ch02", Length: 200},
	}
}

func TestNewBook(t *testing.T) {
	log := zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))

	t.Run("fixes_derived_fields", func(t *testing.T) {
		b, err := NewBook(uuid.NewString(), "Title", "book.epub", testSpine(), log)
		if err != nil {
			t.Fatalf("NewBook failed: %v", err)
		}
		for i, item := range b.Spine {
			if item.Index != i {
				t.Errorf("item %d index = %d", i, item.Index)
			}
		}
		if !b.Spine[0].IsFirst || b.Spine[0].IsLast {
			t.Errorf("first item flags wrong: %+v", b.Spine[0])
		}
		if !b.Spine[2].IsLast || b.Spine[2].IsFirst {
			t.Errorf("last item flags wrong: %+v", b.Spine[2])
		}
	})

	t.Run("corrects_invalid_id", func(t *testing.T) {
		b, err := NewBook("not-a-uuid", "Title", "book.epub", testSpine(), log)
		if err != nil {
			t.Fatalf("NewBook failed: %v", err)
		}
		if _, err := uuid.Parse(b.ID); err != nil {
			t.Errorf("corrected ID %q is not a UUID: %v", b.ID, err)
		}
	})

	t.Run("rejects_empty_spine", func(t *testing.T) {
		if _, err := NewBook(uuid.NewString(), "Title", "book.epub", nil, log); err == nil {
			t.Error("expected error for empty spine")
		}
	})
}

func TestBookLengths(t *testing.T) {
	log := zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
	b, err := NewBook(uuid.NewString(), "Title", "book.epub", testSpine(), log)
	if err != nil {
		t.Fatalf("NewBook failed: %v", err)
	}

	if got := b.TotalLength(); got != 310 {
		t.Errorf("TotalLength = %d, want 310", got)
	}
	if got := b.LengthBefore(0); got != 0 {
		t.Errorf("LengthBefore(0) = %d, want 0", got)
	}
	if got := b.LengthBefore(2); got != 110 {
		t.Errorf("LengthBefore(2) = %d, want 110", got)
	}
	if got := b.LengthBefore(99); got != 310 {
		t.Errorf("LengthBefore past end = %d, want 310", got)
	}

	if item, ok := b.ItemByName("ch02"); !ok || item.Index != 2 {
		t.Errorf("ItemByName(ch02) = %+v, %v", item, ok)
	}
	if _, ok := b.ItemByName("missing"); ok {
		t.Error("unexpected item for unknown name")
	}
}

func TestSelectionPositions(t *testing.T) {
	d := loadTestDoc(t, SpineItem{Name: "ch01", Index: 1}, testDoc)

	t.Run("normalizes_backwards", func(t *testing.T) {
		sel := &Selection{
			StartSteps: []int{4, 1}, StartOffset: 5,
			EndSteps: []int{2, 1}, EndOffset: 2,
			Backwards: true,
		}
		start, end, ok := sel.Positions(d)
		if !ok {
			t.Fatalf("Positions failed")
		}
		from, to, err := d.RangeOffsets(start, end)
		if err != nil {
			t.Fatalf("RangeOffsets failed: %v", err)
		}
		if from != 2 || to != 16 {
			t.Errorf("range = [%d,%d), want [2,16)", from, to)
		}
	})

	t.Run("collapsed_is_unusable", func(t *testing.T) {
		sel := &Selection{StartSteps: []int{2, 1}, EndSteps: []int{2, 1}, Collapsed: true}
		if _, _, ok := sel.Positions(d); ok {
			t.Error("collapsed selection must not produce positions")
		}
	})

	t.Run("stale_structure_is_unusable", func(t *testing.T) {
		sel := &Selection{StartSteps: []int{88, 1}, EndSteps: []int{2, 1}}
		if _, _, ok := sel.Positions(d); ok {
			t.Error("stale selection must not produce positions")
		}
	})
}
