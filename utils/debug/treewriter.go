// Package debug renders hierarchical session state into human-readable
// dumps attached to debug reports.
package debug

import (
	"fmt"
	"strconv"
	"strings"
)

const indent = "  "

// TreeWriter accumulates an indented tree rendering of nested state, one
// node per line.
type TreeWriter struct {
	sb strings.Builder
}

func NewTreeWriter() *TreeWriter {
	return &TreeWriter{}
}

// Line appends one node at the given depth.
func (tw *TreeWriter) Line(depth int, format string, args ...any) {
	tw.sb.WriteString(strings.Repeat(indent, depth))
	fmt.Fprintf(&tw.sb, format, args...)
	tw.sb.WriteByte('\n')
}

// Text appends a labeled text node, quoting the value so control characters
// survive the dump.
func (tw *TreeWriter) Text(depth int, label, value string) {
	if value == "" {
		tw.Line(depth, "%s:", label)
		return
	}
	tw.Line(depth, "%s: %s", label, strconv.Quote(value))
}

func (tw *TreeWriter) String() string {
	return tw.sb.String()
}

// Bytes returns the accumulated dump for storing in a report.
func (tw *TreeWriter) Bytes() []byte {
	return []byte(tw.sb.String())
}
