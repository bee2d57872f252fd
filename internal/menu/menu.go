// Package menu is the interactive, line-oriented driver for the catalog.
package menu

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"bookcatalog/internal/catalog"
	"bookcatalog/internal/log"
)

const (
	optionAdd = iota + 1
	optionRemove
	optionList
	optionSearchTitle
	optionSearchAuthor
	optionCheckOut
	optionReturn
	optionExit
)

const header = `
Library Menu: 
1. Add Book
2. Remove Book
3. Display All Books
4. Search by Title
5. Search by Author
6. Check Out Book
7. Return Book
8. Exit
Enter choice: `

const (
	msgInvalidInput  = "Invalid input. Please enter a number."
	msgInvalidOption = "Invalid option."
	msgEmpty         = "No books in the library."
	msgNoTitle       = "No books found with that title."
	msgNoAuthor      = "No books found with that author."
	msgGoodbye       = "Goodbye!"
)

var outcomeMessages = map[catalog.Outcome]string{
	catalog.Inserted:          "Book added successfully.",
	catalog.DuplicateKey:      "A book with this ISBN already exists.",
	catalog.Deleted:           "Book removed.",
	catalog.NotFound:          "Book not found.",
	catalog.CheckedOut:        "Book checked out.",
	catalog.AlreadyCheckedOut: "Book is already checked out.",
	catalog.Returned:          "Book returned.",
	catalog.AlreadyAvailable:  "Book is already available.",
}

// Message returns the user-facing text for an outcome.
func Message(outcome catalog.Outcome) string {
	if msg, ok := outcomeMessages[outcome]; ok {
		return msg
	}
	return string(outcome)
}

// Menu reads one selection per iteration and runs exactly one catalog
// operation for it.
type Menu struct {
	catalog catalog.Service
	in      *bufio.Reader
	out     io.Writer
	err     error
}

func New(svc catalog.Service, in io.Reader, out io.Writer) *Menu {
	return &Menu{
		catalog: svc,
		in:      bufio.NewReader(in),
		out:     out,
	}
}

// Run loops until the user exits or input is exhausted. Catalog errors are
// reported and the loop continues; only a failure to read input is returned.
func (m *Menu) Run(ctx context.Context) error {
	for {
		m.print(header)

		line, ok := m.readLine()
		if !ok {
			return m.err
		}

		choice, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil {
			log.Debug(log.CatMenu, "invalid selection", "input", line)
			m.println(msgInvalidInput)
			continue
		}

		log.Debug(log.CatMenu, "selection", "choice", choice)
		if choice == optionExit {
			m.println(msgGoodbye)
			return nil
		}

		done, err := m.dispatch(ctx, choice)
		if err != nil {
			log.ErrorErr(log.CatMenu, "catalog operation failed", err, "choice", choice)
			m.println("Error: " + err.Error())
		}
		if done {
			return m.err
		}
	}
}

// dispatch runs a single selection. done reports that input ran out while
// reading the selection's fields.
func (m *Menu) dispatch(ctx context.Context, choice int) (done bool, err error) {
	switch choice {
	case optionAdd:
		title, ok := m.prompt("Title: ")
		if !ok {
			return true, nil
		}
		author, ok := m.prompt("Author: ")
		if !ok {
			return true, nil
		}
		isbn, ok := m.prompt("ISBN: ")
		if !ok {
			return true, nil
		}
		return false, m.report(m.catalog.Insert(ctx, catalog.NewItem(title, author, isbn)))

	case optionRemove:
		isbn, ok := m.prompt("Enter ISBN to remove: ")
		if !ok {
			return true, nil
		}
		return false, m.report(m.catalog.Delete(ctx, isbn))

	case optionList:
		items, err := m.catalog.List(ctx)
		if err != nil {
			return false, err
		}
		if len(items) == 0 {
			m.println(msgEmpty)
			return false, nil
		}
		m.printItems(items)
		return false, nil

	case optionSearchTitle:
		query, ok := m.prompt("Enter title to search: ")
		if !ok {
			return true, nil
		}
		items, outcome, err := m.catalog.FindByTitle(ctx, query)
		return false, m.reportMatches(items, outcome, err, msgNoTitle)

	case optionSearchAuthor:
		query, ok := m.prompt("Enter author to search: ")
		if !ok {
			return true, nil
		}
		items, outcome, err := m.catalog.FindByCreator(ctx, query)
		return false, m.reportMatches(items, outcome, err, msgNoAuthor)

	case optionCheckOut:
		isbn, ok := m.prompt("Enter ISBN to check out: ")
		if !ok {
			return true, nil
		}
		return false, m.report(m.catalog.CheckOut(ctx, isbn))

	case optionReturn:
		isbn, ok := m.prompt("Enter ISBN to return: ")
		if !ok {
			return true, nil
		}
		return false, m.report(m.catalog.Return(ctx, isbn))

	default:
		m.println(msgInvalidOption)
		return false, nil
	}
}

func (m *Menu) report(outcome catalog.Outcome, err error) error {
	if err != nil {
		return err
	}
	m.println(Message(outcome))
	return nil
}

func (m *Menu) reportMatches(items []catalog.Item, outcome catalog.Outcome, err error, noMatches string) error {
	if err != nil {
		return err
	}
	if outcome == catalog.NoMatches {
		m.println(noMatches)
		return nil
	}
	m.printItems(items)
	return nil
}

func (m *Menu) printItems(items []catalog.Item) {
	for _, item := range items {
		m.println(item.String())
	}
}

func (m *Menu) prompt(label string) (string, bool) {
	m.print(label)
	return m.readLine()
}

// readLine returns the next input line without its terminator. Lines have
// no length limit. A final unterminated line is still returned.
func (m *Menu) readLine() (string, bool) {
	line, err := m.in.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			m.err = err
			return "", false
		}
		if line == "" {
			return "", false
		}
	}
	return strings.TrimRight(line, "\r\n"), true
}

func (m *Menu) print(s string) {
	_, _ = io.WriteString(m.out, s)
}

func (m *Menu) println(s string) {
	_, _ = fmt.Fprintln(m.out, s)
}
