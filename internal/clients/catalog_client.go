// internal/clients/catalog_client.go
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bookcatalog/internal/catalog"
	"bookcatalog/internal/eventstore"

	"github.com/google/uuid"
)

// CatalogClient talks to the HTTP driver and satisfies catalog.Service, so
// any driver can run against a remote catalog.
type CatalogClient struct {
	baseURL    string
	httpClient *http.Client
}

var _ catalog.Service = (*CatalogClient)(nil)

// DefaultTimeout bounds every request.
const DefaultTimeout = 10 * time.Second

func NewCatalogClient(baseURL string) *CatalogClient {
	return &CatalogClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// WithTimeout sets the per-request timeout on the underlying HTTP client.
func (c *CatalogClient) WithTimeout(d time.Duration) *CatalogClient {
	hc := *c.httpClient
	hc.Timeout = d
	c.httpClient = &hc
	return c
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *CatalogClient) WithHTTPClient(hc *http.Client) *CatalogClient {
	c.httpClient = hc
	return c
}

type outcomeBody struct {
	Outcome catalog.Outcome `json:"outcome"`
}

func (c *CatalogClient) Insert(ctx context.Context, item catalog.Item) (catalog.Outcome, error) {
	addReq := struct {
		ISBN   string `json:"isbn"`
		Title  string `json:"title"`
		Author string `json:"author"`
	}{
		ISBN:   item.ISBN,
		Title:  item.Title,
		Author: item.Author,
	}

	body, err := json.Marshal(addReq)
	if err != nil {
		return "", err
	}

	resp, err := c.do(ctx, http.MethodPost, "/items", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	return decodeOutcome(resp, http.StatusCreated, http.StatusConflict)
}

func (c *CatalogClient) Delete(ctx context.Context, isbn string) (catalog.Outcome, error) {
	resp, err := c.do(ctx, http.MethodDelete, itemPath(isbn), nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return catalog.Deleted, nil
	}
	return decodeOutcome(resp, http.StatusNotFound)
}

func (c *CatalogClient) Get(ctx context.Context, isbn string) (catalog.Item, catalog.Outcome, error) {
	resp, err := c.do(ctx, http.MethodGet, itemPath(isbn), nil)
	if err != nil {
		return catalog.Item{}, "", err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var item catalog.Item
		if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
			return catalog.Item{}, "", fmt.Errorf("decode item: %w", err)
		}
		return item, catalog.Found, nil
	case http.StatusNotFound:
		return catalog.Item{}, catalog.NotFound, nil
	default:
		return catalog.Item{}, "", unexpectedStatus(resp)
	}
}

func (c *CatalogClient) List(ctx context.Context) ([]catalog.Item, error) {
	var items []catalog.Item
	if err := c.getJSON(ctx, "/items", &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []catalog.Item{}
	}
	return items, nil
}

func (c *CatalogClient) FindByTitle(ctx context.Context, query string) ([]catalog.Item, catalog.Outcome, error) {
	return c.search(ctx, "title", query)
}

func (c *CatalogClient) FindByCreator(ctx context.Context, query string) ([]catalog.Item, catalog.Outcome, error) {
	return c.search(ctx, "author", query)
}

func (c *CatalogClient) search(ctx context.Context, field, query string) ([]catalog.Item, catalog.Outcome, error) {
	var items []catalog.Item
	if err := c.getJSON(ctx, "/search?"+url.Values{field: {query}}.Encode(), &items); err != nil {
		return nil, "", err
	}
	if len(items) == 0 {
		return []catalog.Item{}, catalog.NoMatches, nil
	}
	return items, catalog.Matched, nil
}

func (c *CatalogClient) CheckOut(ctx context.Context, isbn string) (catalog.Outcome, error) {
	return c.postAction(ctx, isbn, "checkout")
}

func (c *CatalogClient) Return(ctx context.Context, isbn string) (catalog.Outcome, error) {
	return c.postAction(ctx, isbn, "return")
}

func (c *CatalogClient) History(ctx context.Context, isbn string) ([]eventstore.Event, error) {
	var events []eventstore.Event
	if err := c.getJSON(ctx, itemPath(isbn)+"/events", &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *CatalogClient) postAction(ctx context.Context, isbn, action string) (catalog.Outcome, error) {
	resp, err := c.do(ctx, http.MethodPost, itemPath(isbn)+"/"+action, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	return decodeOutcome(resp, http.StatusOK, http.StatusNotFound, http.StatusConflict)
}

func (c *CatalogClient) getJSON(ctx context.Context, path string, v interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return unexpectedStatus(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *CatalogClient) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func itemPath(isbn string) string {
	return "/items/" + url.PathEscape(isbn)
}

// decodeOutcome reads an outcome body when the status is one of accepted.
func decodeOutcome(resp *http.Response, accepted ...int) (catalog.Outcome, error) {
	for _, status := range accepted {
		if resp.StatusCode != status {
			continue
		}
		var body outcomeBody
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return "", fmt.Errorf("decode outcome: %w", err)
		}
		return body.Outcome, nil
	}
	return "", unexpectedStatus(resp)
}

func unexpectedStatus(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("unexpected status code: %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
}
