package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bookcatalog/internal/catalog"
	"bookcatalog/internal/eventstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestClient(t *testing.T, limiter *rate.Limiter) *CatalogClient {
	t.Helper()
	svc := catalog.NewService(eventstore.NewEventStore())
	srv := httptest.NewServer(catalog.NewHandler(svc, limiter).Routes())
	t.Cleanup(srv.Close)
	return NewCatalogClient(srv.URL + "/").WithHTTPClient(srv.Client())
}

func TestCatalogClient_RoundTrip(t *testing.T) {
	client := newTestClient(t, nil)
	ctx := context.Background()

	outcome, err := client.Insert(ctx, catalog.NewItem("Dune", "Herbert", "111"))
	require.NoError(t, err)
	assert.Equal(t, catalog.Inserted, outcome)

	outcome, err = client.Insert(ctx, catalog.NewItem("X", "Y", "111"))
	require.NoError(t, err)
	assert.Equal(t, catalog.DuplicateKey, outcome)

	item, outcome, err := client.Get(ctx, "111")
	require.NoError(t, err)
	assert.Equal(t, catalog.Found, outcome)
	assert.Equal(t, "Dune", item.Title)

	_, outcome, err = client.Get(ctx, "999")
	require.NoError(t, err)
	assert.Equal(t, catalog.NotFound, outcome)

	outcome, err = client.CheckOut(ctx, "111")
	require.NoError(t, err)
	assert.Equal(t, catalog.CheckedOut, outcome)

	outcome, err = client.CheckOut(ctx, "111")
	require.NoError(t, err)
	assert.Equal(t, catalog.AlreadyCheckedOut, outcome)

	outcome, err = client.Return(ctx, "111")
	require.NoError(t, err)
	assert.Equal(t, catalog.Returned, outcome)

	outcome, err = client.Return(ctx, "111")
	require.NoError(t, err)
	assert.Equal(t, catalog.AlreadyAvailable, outcome)

	outcome, err = client.CheckOut(ctx, "999")
	require.NoError(t, err)
	assert.Equal(t, catalog.NotFound, outcome)

	events, err := client.History(ctx, "111")
	require.NoError(t, err)
	assert.Len(t, events, 3)

	outcome, err = client.Delete(ctx, "111")
	require.NoError(t, err)
	assert.Equal(t, catalog.Deleted, outcome)

	outcome, err = client.Delete(ctx, "111")
	require.NoError(t, err)
	assert.Equal(t, catalog.NotFound, outcome)

	items, err := client.List(ctx)
	require.NoError(t, err)
	require.NotNil(t, items)
	assert.Empty(t, items)
}

func TestCatalogClient_Search(t *testing.T) {
	client := newTestClient(t, nil)
	ctx := context.Background()

	for _, item := range []catalog.Item{
		catalog.NewItem("War and Peace", "Tolstoy", "1"),
		catalog.NewItem("Hobbit", "Tolkien", "2"),
		catalog.NewItem("Warcraft Lore", "Golden", "3"),
	} {
		_, err := client.Insert(ctx, item)
		require.NoError(t, err)
	}

	items, outcome, err := client.FindByTitle(ctx, "WAR")
	require.NoError(t, err)
	assert.Equal(t, catalog.Matched, outcome)
	require.Len(t, items, 2)
	assert.Equal(t, "1", items[0].ISBN)
	assert.Equal(t, "3", items[1].ISBN)

	items, outcome, err = client.FindByCreator(ctx, "tolk")
	require.NoError(t, err)
	assert.Equal(t, catalog.Matched, outcome)
	require.Len(t, items, 1)

	items, outcome, err = client.FindByCreator(ctx, "herbert")
	require.NoError(t, err)
	assert.Equal(t, catalog.NoMatches, outcome)
	assert.Empty(t, items)
}

func TestCatalogClient_EscapesISBN(t *testing.T) {
	client := newTestClient(t, nil)
	ctx := context.Background()

	outcome, err := client.Insert(ctx, catalog.NewItem("Odd", "Id", "a b?c"))
	require.NoError(t, err)
	require.Equal(t, catalog.Inserted, outcome)

	item, outcome, err := client.Get(ctx, "a b?c")
	require.NoError(t, err)
	assert.Equal(t, catalog.Found, outcome)
	assert.Equal(t, "a b?c", item.ISBN)
}

func TestCatalogClient_UnexpectedStatus(t *testing.T) {
	client := newTestClient(t, rate.NewLimiter(rate.Every(time.Hour), 1))
	ctx := context.Background()

	_, err := client.List(ctx)
	require.NoError(t, err)

	_, err = client.Insert(ctx, catalog.NewItem("Dune", "Herbert", "111"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestCatalogClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(nil)
	url := srv.URL
	srv.Close()

	_, err := NewCatalogClient(url).List(context.Background())
	require.Error(t, err)
}

func TestCatalogClient_DefaultTimeout(t *testing.T) {
	client := NewCatalogClient("http://localhost:8080")
	assert.Equal(t, DefaultTimeout, client.httpClient.Timeout)
}

func TestCatalogClient_UnresponsiveServerTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	client := NewCatalogClient(srv.URL).WithTimeout(50 * time.Millisecond)

	start := time.Now()
	_, err := client.List(context.Background())
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
