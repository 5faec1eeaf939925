package annotations

import (
	"sort"

	"github.com/maruel/natural"

	"bookview/utils/debug"
)

// String dumps wrapper state for diagnostics, grouped by owning uuid in
// natural order.
func (m *Manager) String() string {
	tw := debug.NewTreeWriter()
	tw.Line(0, "annotations: %d wrappers, next id %d", len(m.owners), m.next)

	byOwner := map[string][]int{}
	for id, owner := range m.owners {
		byOwner[owner] = append(byOwner[owner], id)
	}
	owners := make([]string, 0, len(byOwner))
	for owner := range byOwner {
		owners = append(owners, owner)
	}
	sort.Sort(natural.StringSlice(owners))

	for _, owner := range owners {
		ids := byOwner[owner]
		sort.Ints(ids)
		tw.Line(1, "uuid %s", owner)
		for _, id := range ids {
			sp := m.spans[id]
			if style := m.styles[id]; style != "" {
				tw.Line(2, "crw %d [%d,%d) style %q", id, sp.start, sp.end, style)
			} else {
				tw.Line(2, "crw %d [%d,%d)", id, sp.start, sp.end)
			}
		}
	}
	return tw.String()
}
