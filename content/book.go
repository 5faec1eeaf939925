// Package content models the currently loaded book: the ordered spine of
// content documents and the single document materialized for display.
package content

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SpineItem is an entry in the ordered sequence of content documents
// comprising the book. Immutable once the document is loaded, replaced
// wholesale on display.
type SpineItem struct {
	Name    string `json:"name"`
	Index   int    `json:"index"`
	IsFirst bool   `json:"is_first"`
	IsLast  bool   `json:"is_last"`
	Length  int    `json:"length"`
}

// Book describes the loaded book: identity, container location and spine.
type Book struct {
	ID        string
	Title     string
	Container string
	Spine     []SpineItem
}

// NewBook validates the descriptor received from the host and fixes up
// derived spine fields. Book ID must be a valid UUID - hosts occasionally
// send garbage there, correct it the same way a broken document ID would be.
func NewBook(id, title, container string, spine []SpineItem, log *zap.Logger) (*Book, error) {
	if len(spine) == 0 {
		return nil, fmt.Errorf("book %q has empty spine", title)
	}

	if _, err := uuid.Parse(id); err != nil {
		newID, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("unable to generate new book UUID: %w", err)
		}
		log.Warn("Book has invalid ID, correcting", zap.String("old_id", id), zap.Stringer("new_id", newID))
		id = newID.String()
	}

	items := make([]SpineItem, len(spine))
	copy(items, spine)
	for i := range items {
		items[i].Index = i
		items[i].IsFirst = i == 0
		items[i].IsLast = i == len(items)-1
		if items[i].Length < 0 {
			items[i].Length = 0
		}
	}

	return &Book{
		ID:        id,
		Title:     title,
		Container: container,
		Spine:     items,
	}, nil
}

// TotalLength returns content size of the whole book used for progress
// weighting.
func (b *Book) TotalLength() int {
	var total int
	for i := range b.Spine {
		total += b.Spine[i].Length
	}
	return total
}

// LengthBefore returns cumulative size of spine items strictly before the
// given one.
func (b *Book) LengthBefore(index int) int {
	var total int
	for i := 0; i < index && i < len(b.Spine); i++ {
		total += b.Spine[i].Length
	}
	return total
}

// ItemByName finds a spine item by its unique name.
func (b *Book) ItemByName(name string) (SpineItem, bool) {
	for i := range b.Spine {
		if b.Spine[i].Name == name {
			return b.Spine[i], true
		}
	}
	return SpineItem{}, false
}
