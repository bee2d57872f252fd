// internal/catalog/service.go
package catalog

import (
	"context"

	"bookcatalog/internal/eventstore"
)

// Service defines the interface for the catalog service.
type Service interface {
	Insert(ctx context.Context, item Item) (Outcome, error)
	Delete(ctx context.Context, isbn string) (Outcome, error)
	Get(ctx context.Context, isbn string) (Item, Outcome, error)
	List(ctx context.Context) ([]Item, error)
	FindByTitle(ctx context.Context, query string) ([]Item, Outcome, error)
	FindByCreator(ctx context.Context, query string) ([]Item, Outcome, error)
	CheckOut(ctx context.Context, isbn string) (Outcome, error)
	Return(ctx context.Context, isbn string) (Outcome, error)
	History(ctx context.Context, isbn string) ([]eventstore.Event, error)
}
