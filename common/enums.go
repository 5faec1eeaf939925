// Package common keeps enumerations shared between configuration and the view
// controller so reader settings can be parsed without importing the controller.
package common

import "fmt"

// LayoutMode selects which layout strategy backs the loaded document.
type LayoutMode int

const (
	LayoutModeFlow LayoutMode = iota
	LayoutModePaged
)

func (m LayoutMode) String() string {
	switch m {
	case LayoutModeFlow:
		return "flow"
	case LayoutModePaged:
		return "paged"
	default:
		// this should never happen
		panic("unsupported layout mode requested")
	}
}

// ParseLayoutMode converts configuration value to LayoutMode.
func ParseLayoutMode(s string) (LayoutMode, error) {
	switch s {
	case "flow":
		return LayoutModeFlow, nil
	case "paged":
		return LayoutModePaged, nil
	default:
		return LayoutModeFlow, fmt.Errorf("unknown layout mode %q", s)
	}
}

// LayoutModeNames lists accepted layout mode configuration values.
func LayoutModeNames() []string {
	return []string{LayoutModeFlow.String(), LayoutModePaged.String()}
}

// AutoScrollCmd names operations on the auto-scroll state machine.
type AutoScrollCmd int

const (
	AutoScrollStart AutoScrollCmd = iota
	AutoScrollStop
	AutoScrollToggle
	AutoScrollResume
	AutoScrollIsActive
)

func (c AutoScrollCmd) String() string {
	switch c {
	case AutoScrollStart:
		return "start"
	case AutoScrollStop:
		return "stop"
	case AutoScrollToggle:
		return "toggle"
	case AutoScrollResume:
		return "resume"
	case AutoScrollIsActive:
		return "is_active"
	default:
		// this should never happen
		panic("unsupported auto-scroll command requested")
	}
}

// Granularity describes selection extension units, tried from the most
// specific one requested down to coarser fallbacks.
type Granularity int

const (
	GranularityCharacter Granularity = iota
	GranularityWord
	GranularitySentence
	GranularityParagraph
)

func (g Granularity) String() string {
	switch g {
	case GranularityCharacter:
		return "character"
	case GranularityWord:
		return "word"
	case GranularitySentence:
		return "sentence"
	case GranularityParagraph:
		return "paragraph"
	default:
		// this should never happen
		panic("unsupported granularity requested")
	}
}

// ParseGranularity converts host message value to Granularity.
func ParseGranularity(s string) (Granularity, error) {
	switch s {
	case "character":
		return GranularityCharacter, nil
	case "word":
		return GranularityWord, nil
	case "sentence":
		return GranularitySentence, nil
	case "paragraph":
		return GranularityParagraph, nil
	default:
		return GranularityCharacter, fmt.Errorf("unknown granularity %q", s)
	}
}
