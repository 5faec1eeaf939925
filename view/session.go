// Package view is the in-content controller: it owns the reading session,
// routes heterogeneous input to the active layout strategy or to annotation
// and selection logic, and keeps a consistent position and progress report
// flowing to the host.
package view

import (
	"golang.org/x/text/language"

	"bookview/content"
	"bookview/host"
)

// Session is the transient state of one loaded document. Reset wholesale on
// every display - nothing here survives navigation.
type Session struct {
	Book *content.Book
	Item content.SpineItem
	Doc  *content.Document

	ContentReady bool
	LastCFI      string
	Pending      *host.InitialPosition

	ReferenceMode bool
	LengthBefore  int
	RTL           bool
	TitlePage     bool
	Lang          language.Tag

	Selection *content.Selection
}

// Reset drops everything.
func (s *Session) Reset() {
	*s = Session{}
}
