package content

import "bookview/cfi"

// Selection is a snapshot of the live text selection delivered by the
// document frame. Node addresses use the same structural step convention as
// canonical positions, so converting a selection to a position pair is a
// validation step, not a search.
type Selection struct {
	StartSteps  []int  `json:"start_steps"`
	StartOffset int    `json:"start_offset"`
	EndSteps    []int  `json:"end_steps"`
	EndOffset   int    `json:"end_offset"`
	Text        string `json:"text"`
	Collapsed   bool   `json:"collapsed"`
	Backwards   bool   `json:"backwards"`
}

// Positions converts the selection into a canonical position pair resolvable
// against the document. Returns false when there is no usable selection -
// absent, collapsed, or pointing at structure this document no longer has.
func (s *Selection) Positions(d *Document) (start, end cfi.Position, ok bool) {
	if s == nil || s.Collapsed || len(s.StartSteps) == 0 || len(s.EndSteps) == 0 {
		return cfi.Position{}, cfi.Position{}, false
	}
	start = cfi.Position{Spine: d.Item.Index, Steps: s.StartSteps, Offset: s.StartOffset}
	end = cfi.Position{Spine: d.Item.Index, Steps: s.EndSteps, Offset: s.EndOffset}
	if _, _, err := d.RangeOffsets(start, end); err != nil {
		return cfi.Position{}, cfi.Position{}, false
	}
	if cfi.Compare(start, end) > 0 {
		start, end = end, start
	}
	return start, end, true
}

// AbsRange resolves the selection to an absolute rune interval.
func (s *Selection) AbsRange(d *Document) (int, int, bool) {
	start, end, ok := s.Positions(d)
	if !ok {
		return 0, 0, false
	}
	from, to, err := d.RangeOffsets(start, end)
	if err != nil {
		return 0, 0, false
	}
	return from, to, true
}
