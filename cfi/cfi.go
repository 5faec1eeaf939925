// Package cfi implements canonical fragment identifiers - portable,
// comparable string addresses pointing into the structure of a spine
// document.
//
// The encoding follows the EPUB CFI step convention: the leading step
// addresses the spine item as (index+1)*2, subsequent even steps address
// child elements as (position+1)*2, an odd final step addresses a text chunk
// between child elements, optionally followed by ":offset" - a rune offset
// within that chunk. Example: epubcfi(/4!/2/6/1:15) - spine item 1, first
// child element, third child element of that, leading text chunk, rune 15.
//
// Positions are snapshots of the live document structure. Any mutation of
// the document (highlight wrap/unwrap, layout changes) invalidates previously
// computed positions - they must be re-resolved, never reused as pointers.
package cfi

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNotFound is returned when a position does not resolve against current
// content. Callers are expected to fall back to the top of the document.
var ErrNotFound = errors.New("cfi: position not resolvable against current content")

// Position is a parsed canonical fragment identifier.
type Position struct {
	// Spine is the spine item index the position belongs to. A position is
	// only meaningful relative to its own spine item.
	Spine int
	// Steps is the structural path down from the document root. Even values
	// select child elements, a trailing odd value selects a text chunk.
	Steps []int
	// Offset is a rune offset within the addressed text chunk, -1 when the
	// position addresses a whole node.
	Offset int
}

// String serializes the position. The result is lexicographically stable for
// positions within one spine item only by structural comparison - use Compare
// for ordering, not string order.
func (p Position) String() string {
	var b strings.Builder
	b.WriteString("epubcfi(/")
	b.WriteString(strconv.Itoa((p.Spine + 1) * 2))
	b.WriteByte('!')
	for _, s := range p.Steps {
		b.WriteByte('/')
		b.WriteString(strconv.Itoa(s))
	}
	if p.Offset >= 0 {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(p.Offset))
	}
	b.WriteByte(')')
	return b.String()
}

// Parse decodes a canonical fragment identifier produced by String.
func Parse(s string) (Position, error) {
	p := Position{Offset: -1}

	body, ok := strings.CutPrefix(s, "epubcfi(")
	if !ok {
		return p, fmt.Errorf("cfi: missing epubcfi prefix in %q", s)
	}
	body, ok = strings.CutSuffix(body, ")")
	if !ok {
		return p, fmt.Errorf("cfi: missing closing parenthesis in %q", s)
	}

	spinePart, path, ok := strings.Cut(body, "!")
	if !ok {
		return p, fmt.Errorf("cfi: missing spine separator in %q", s)
	}
	spineStep, err := parseStep(spinePart)
	if err != nil {
		return p, fmt.Errorf("cfi: bad spine step in %q: %w", s, err)
	}
	if spineStep%2 != 0 || spineStep < 2 {
		return p, fmt.Errorf("cfi: spine step must be positive even, got %d in %q", spineStep, s)
	}
	p.Spine = spineStep/2 - 1

	if path, ok = strings.CutPrefix(path, "/"); !ok {
		if len(path) != 0 {
			return p, fmt.Errorf("cfi: malformed path in %q", s)
		}
		return p, nil
	}

	// trailing ":offset"
	if i := strings.LastIndexByte(path, ':'); i >= 0 {
		off, err := strconv.Atoi(path[i+1:])
		if err != nil || off < 0 {
			return p, fmt.Errorf("cfi: bad offset in %q", s)
		}
		p.Offset = off
		path = path[:i]
	}

	for _, part := range strings.Split(path, "/") {
		step, err := strconv.Atoi(part)
		if err != nil || step < 1 {
			return p, fmt.Errorf("cfi: bad step %q in %q", part, s)
		}
		p.Steps = append(p.Steps, step)
	}
	return p, nil
}

func parseStep(s string) (int, error) {
	s, ok := strings.CutPrefix(s, "/")
	if !ok {
		return 0, fmt.Errorf("step must start with '/', got %q", s)
	}
	return strconv.Atoi(s)
}

// Compare orders two positions structurally: by spine item, then step-wise
// down the path, then by text offset. A shorter path that is a prefix of a
// longer one orders first (the container precedes its content).
func Compare(a, b Position) int {
	if a.Spine != b.Spine {
		return sign(a.Spine - b.Spine)
	}
	for i := 0; i < len(a.Steps) && i < len(b.Steps); i++ {
		if a.Steps[i] != b.Steps[i] {
			return sign(a.Steps[i] - b.Steps[i])
		}
	}
	if len(a.Steps) != len(b.Steps) {
		return sign(len(a.Steps) - len(b.Steps))
	}
	ao, bo := a.Offset, b.Offset
	if ao < 0 {
		ao = 0
	}
	if bo < 0 {
		bo = 0
	}
	return sign(ao - bo)
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	default:
		return 0
	}
}
