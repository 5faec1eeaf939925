package view

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"bookview/content"
)

// referenceTarget is one numbered addressable element.
type referenceTarget struct {
	Num       int
	ID        string
	Offset    int
	generated bool
	el        *etree.Element
}

// referenceIndex assigns stable sequential reference numbers to addressable
// elements for the lifetime of the loaded document. Entering reference mode
// scans, exiting tears the numbering down.
type referenceIndex struct {
	doc     *content.Document
	log     *zap.Logger
	targets []referenceTarget
}

// buildReferences numbers every element carrying an id, in document order.
// Footnote-style containers without an id get a slug-generated one so they
// are addressable too.
func buildReferences(doc *content.Document, log *zap.Logger) *referenceIndex {
	ri := &referenceIndex{doc: doc, log: log.Named("refs")}

	num := 0
	var walk func(el *etree.Element)
	walk = func(el *etree.Element) {
		for _, child := range el.ChildElements() {
			id := child.SelectAttrValue("id", "")
			generated := false
			if id == "" && isFootnoteContainer(child.Tag) {
				num++
				id = slug.Make(fmt.Sprintf("%s ref %d", child.Tag, num))
				child.CreateAttr("id", id)
				generated = true
			} else if id != "" {
				num++
			}
			if id != "" {
				off, _ := doc.OffsetOfElement(child)
				ri.targets = append(ri.targets, referenceTarget{
					Num:       num,
					ID:        id,
					Offset:    off,
					generated: generated,
					el:        child,
				})
			}
			walk(child)
		}
	}
	walk(doc.Body())

	if len(ri.targets) > 0 {
		// generated ids must be resolvable through the id index
		doc.Invalidate()
	}
	ri.log.Debug("Reference numbering built", zap.Int("targets", len(ri.targets)))
	return ri
}

// ByNumber finds a reference target by its sequential number.
func (ri *referenceIndex) ByNumber(num int) (referenceTarget, bool) {
	for _, t := range ri.targets {
		if t.Num == num {
			return t, true
		}
	}
	return referenceTarget{}, false
}

// Len returns the number of assigned references.
func (ri *referenceIndex) Len() int {
	return len(ri.targets)
}

// Teardown removes generated ids from the document.
func (ri *referenceIndex) Teardown() {
	var removed int
	for _, t := range ri.targets {
		if t.generated {
			t.el.RemoveAttr("id")
			removed++
		}
	}
	if removed > 0 {
		ri.doc.Invalidate()
	}
	ri.targets = nil
}

// elementText concatenates the text content of an element subtree, in
// document order.
func elementText(el *etree.Element) string {
	var sb strings.Builder
	var walk func(el *etree.Element)
	walk = func(el *etree.Element) {
		for _, child := range el.Child {
			switch t := child.(type) {
			case *etree.CharData:
				sb.WriteString(t.Data)
			case *etree.Element:
				walk(t)
			}
		}
	}
	walk(el)
	return sb.String()
}

func isFootnoteContainer(tag string) bool {
	switch tag {
	case "aside", "section", "figure":
		return true
	}
	return false
}
