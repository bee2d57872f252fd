// internal/catalog/implementation.go
package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"bookcatalog/internal/eventstore"
	"bookcatalog/internal/log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

// service implements the Service interface over an ordered in-memory slice.
// Lookups are linear scans; the collection is small and unindexed.
type service struct {
	mu         sync.Mutex
	items      []Item
	eventStore *eventstore.EventStore
	tracer     trace.Tracer
	operations metric.Int64Counter
}

// NewService creates a new catalog service instance.
func NewService(es *eventstore.EventStore) Service {
	operations, err := otel.Meter("bookcatalog/catalog").Int64Counter(
		"catalog.operations",
		metric.WithDescription("Catalog operations by outcome"),
	)
	if err != nil {
		log.ErrorErr(log.CatCatalog, "failed to create operations counter", err)
		operations = noop.Int64Counter{}
	}

	return &service{
		eventStore: es,
		tracer:     otel.Tracer("bookcatalog/catalog"),
		operations: operations,
	}
}

// Insert adds an item unless its ISBN is already present.
func (s *service) Insert(ctx context.Context, item Item) (Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.insert", trace.WithAttributes(attribute.String("item.id", item.ISBN)))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return "", fail(span, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(item.ISBN) >= 0 {
		return s.record(ctx, span, "insert", DuplicateKey), nil
	}

	eventData := ItemAddedEvent{
		ISBN:   item.ISBN,
		Title:  item.Title,
		Author: item.Author,
	}
	if err := s.appendEvent(ctx, item.ISBN, ItemAddedType, eventData); err != nil {
		return "", fail(span, err)
	}

	item.Available = true
	s.items = append(s.items, item)
	return s.record(ctx, span, "insert", Inserted), nil
}

// Delete removes the item with the given ISBN.
func (s *service) Delete(ctx context.Context, isbn string) (Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.delete", trace.WithAttributes(attribute.String("item.id", isbn)))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return "", fail(span, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(isbn)
	if i < 0 {
		return s.record(ctx, span, "delete", NotFound), nil
	}

	if err := s.appendEvent(ctx, isbn, ItemRemovedType, ItemRemovedEvent{ISBN: isbn}); err != nil {
		return "", fail(span, err)
	}

	s.items = append(s.items[:i], s.items[i+1:]...)
	return s.record(ctx, span, "delete", Deleted), nil
}

// Get returns a copy of the item with the given ISBN.
func (s *service) Get(ctx context.Context, isbn string) (Item, Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.get", trace.WithAttributes(attribute.String("item.id", isbn)))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return Item{}, "", fail(span, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(isbn)
	if i < 0 {
		return Item{}, s.record(ctx, span, "get", NotFound), nil
	}
	return s.items[i], s.record(ctx, span, "get", Found), nil
}

// List returns every item in insertion order. An empty catalog yields an
// empty, non-nil slice.
func (s *service) List(ctx context.Context) ([]Item, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.list")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, fail(span, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]Item, len(s.items))
	copy(items, s.items)

	span.SetAttributes(attribute.Int("items.count", len(items)))
	s.operations.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", "list")))
	return items, nil
}

// FindByTitle returns items whose title contains query, ignoring case.
func (s *service) FindByTitle(ctx context.Context, query string) ([]Item, Outcome, error) {
	return s.find(ctx, "find_by_title", query, func(item Item) string { return item.Title })
}

// FindByCreator returns items whose author contains query, ignoring case.
func (s *service) FindByCreator(ctx context.Context, query string) ([]Item, Outcome, error) {
	return s.find(ctx, "find_by_creator", query, func(item Item) string { return item.Author })
}

func (s *service) find(ctx context.Context, op, query string, field func(Item) string) ([]Item, Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "catalog."+op, trace.WithAttributes(attribute.String("query", query)))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, "", fail(span, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	needle := strings.ToLower(query)
	matches := []Item{}
	for _, item := range s.items {
		if strings.Contains(strings.ToLower(field(item)), needle) {
			matches = append(matches, item)
		}
	}

	span.SetAttributes(attribute.Int("items.count", len(matches)))
	if len(matches) == 0 {
		return matches, s.record(ctx, span, op, NoMatches), nil
	}
	return matches, s.record(ctx, span, op, Matched), nil
}

// CheckOut marks an available item as checked out.
func (s *service) CheckOut(ctx context.Context, isbn string) (Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.check_out", trace.WithAttributes(attribute.String("item.id", isbn)))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return "", fail(span, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(isbn)
	if i < 0 {
		return s.record(ctx, span, "check_out", NotFound), nil
	}
	if !s.items[i].Available {
		return s.record(ctx, span, "check_out", AlreadyCheckedOut), nil
	}

	if err := s.appendEvent(ctx, isbn, ItemCheckedOutType, ItemCheckedOutEvent{ISBN: isbn}); err != nil {
		return "", fail(span, err)
	}

	s.items[i].Available = false
	return s.record(ctx, span, "check_out", CheckedOut), nil
}

// Return marks a checked-out item as available again.
func (s *service) Return(ctx context.Context, isbn string) (Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.return", trace.WithAttributes(attribute.String("item.id", isbn)))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return "", fail(span, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(isbn)
	if i < 0 {
		return s.record(ctx, span, "return", NotFound), nil
	}
	if s.items[i].Available {
		return s.record(ctx, span, "return", AlreadyAvailable), nil
	}

	if err := s.appendEvent(ctx, isbn, ItemReturnedType, ItemReturnedEvent{ISBN: isbn}); err != nil {
		return "", fail(span, err)
	}

	s.items[i].Available = true
	return s.record(ctx, span, "return", Returned), nil
}

// History returns every event recorded for the ISBN, including events from
// before a removal.
func (s *service) History(ctx context.Context, isbn string) ([]eventstore.Event, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.history", trace.WithAttributes(attribute.String("item.id", isbn)))
	defer span.End()

	events, err := s.eventStore.LoadEvents(ctx, isbn, 0, 0)
	if err != nil {
		return nil, fail(span, fmt.Errorf("failed to load events: %w", err))
	}
	return events, nil
}

// indexOf returns the position of the item with the given ISBN, or -1.
// Callers must hold s.mu.
func (s *service) indexOf(isbn string) int {
	for i := range s.items {
		if s.items[i].ISBN == isbn {
			return i
		}
	}
	return -1
}

func (s *service) appendEvent(ctx context.Context, isbn, eventType string, payload interface{}) error {
	event, err := eventstore.NewEvent(eventType, payload)
	if err != nil {
		return err
	}

	version, err := s.eventStore.GetCurrentVersion(ctx, isbn)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	if err := s.eventStore.AppendEvents(ctx, isbn, AggregateType, version, []eventstore.Event{event}); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (s *service) record(ctx context.Context, span trace.Span, op string, outcome Outcome) Outcome {
	span.SetAttributes(attribute.String("outcome", string(outcome)))
	s.operations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", string(outcome)),
	))
	log.Debug(log.CatCatalog, "catalog operation", "op", op, "outcome", outcome)
	return outcome
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	log.ErrorErr(log.CatCatalog, "catalog operation failed", err)
	return err
}
