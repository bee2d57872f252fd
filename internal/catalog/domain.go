// internal/catalog/domain.go
package catalog

import (
	"fmt"
)

// Item represents a book held by the catalog.
type Item struct {
	ISBN      string `json:"isbn"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Available bool   `json:"available"`
}

// NewItem builds an available item from user-supplied fields.
func NewItem(title, author, isbn string) Item {
	return Item{
		ISBN:      isbn,
		Title:     title,
		Author:    author,
		Available: true,
	}
}

func (i Item) String() string {
	available := "No"
	if i.Available {
		available = "Yes"
	}
	return fmt.Sprintf("Title: %s, Author: %s, ISBN: %s, Available: %s", i.Title, i.Author, i.ISBN, available)
}

// Outcome is the result state of a catalog operation. Outcomes such as
// DuplicateKey or NotFound are expected results, not errors.
type Outcome string

const (
	Inserted          Outcome = "inserted"
	DuplicateKey      Outcome = "duplicate_key"
	Deleted           Outcome = "deleted"
	NotFound          Outcome = "not_found"
	Found             Outcome = "found"
	Matched           Outcome = "matched"
	NoMatches         Outcome = "no_matches"
	CheckedOut        Outcome = "checked_out"
	AlreadyCheckedOut Outcome = "already_checked_out"
	Returned          Outcome = "returned"
	AlreadyAvailable  Outcome = "already_available"
)

// Changed reports whether the outcome mutated the catalog.
func (o Outcome) Changed() bool {
	switch o {
	case Inserted, Deleted, CheckedOut, Returned:
		return true
	default:
		return false
	}
}

// Event types recorded in the event store.
const (
	AggregateType      = "item"
	ItemAddedType      = "ItemAdded"
	ItemRemovedType    = "ItemRemoved"
	ItemCheckedOutType = "ItemCheckedOut"
	ItemReturnedType   = "ItemReturned"
)

// ItemAddedEvent is published when a new item is added.
type ItemAddedEvent struct {
	ISBN   string `json:"isbn"`
	Title  string `json:"title"`
	Author string `json:"author"`
}

// ItemRemovedEvent is published when an item is removed from the catalog.
type ItemRemovedEvent struct {
	ISBN string `json:"isbn"`
}

// ItemCheckedOutEvent is published when an item is checked out.
type ItemCheckedOutEvent struct {
	ISBN string `json:"isbn"`
}

// ItemReturnedEvent is published when an item is returned.
type ItemReturnedEvent struct {
	ISBN string `json:"isbn"`
}
