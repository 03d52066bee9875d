package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/Awaneesh03/digital-life-dashboard/internal/record"
)

// Client talks to a hosted PostgREST-style backend: one REST resource per
// table, filters passed as query parameters, row ownership enforced
// server-side by the anon key's policies.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *log.Logger
}

// ClientConfig holds connection settings for the hosted backend.
type ClientConfig struct {
	// BaseURL is the project URL, e.g. https://xyz.supabase.co.
	BaseURL string

	// APIKey is the anonymous (public) key sent with every request.
	APIKey string

	// Timeout bounds each request. Defaults to 15s; the sync engine
	// relies on this transport timeout rather than its own watchdog.
	Timeout time.Duration

	// Logger for request failures. Defaults to a stderr logger.
	Logger *log.Logger
}

// NewClient creates a remote store client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("remote base URL cannot be empty")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("remote API key cannot be empty")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[remote] ", log.LstdFlags)
	}

	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger,
	}, nil
}

// Insert implements Store.Insert.
func (c *Client) Insert(ctx context.Context, collection string, rec record.Record) (record.Record, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal insert body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.tableURL(collection, nil), body)
	if err != nil {
		return nil, err
	}
	// Ask the backend to echo the stored row so we get the issued id.
	req.Header.Set("Prefer", "return=representation")

	data, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to insert into %s: %w", collection, err)
	}

	var rows []record.Record
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode insert response: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert into %s returned no row", collection)
	}
	return rows[0], nil
}

// Update implements Store.Update.
func (c *Client) Update(ctx context.Context, collection, id string, patch record.Record) error {
	body, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("failed to marshal update body: %w", err)
	}

	query := url.Values{"id": {"eq." + id}}
	req, err := c.newRequest(ctx, http.MethodPatch, c.tableURL(collection, query), body)
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=representation")

	data, err := c.do(req)
	if err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
	}

	return noRowsIsNotFound(data)
}

// Delete implements Store.Delete.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	query := url.Values{"id": {"eq." + id}}
	req, err := c.newRequest(ctx, http.MethodDelete, c.tableURL(collection, query), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=representation")

	data, err := c.do(req)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}

	return noRowsIsNotFound(data)
}

// SelectAll implements Store.SelectAll.
func (c *Client) SelectAll(ctx context.Context, collection, ownerID string) ([]record.Record, error) {
	query := url.Values{
		"user_id": {"eq." + ownerID},
		"select":  {"*"},
	}
	req, err := c.newRequest(ctx, http.MethodGet, c.tableURL(collection, query), nil)
	if err != nil {
		return nil, err
	}

	data, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", collection, err)
	}

	var rows []record.Record
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode select response: %w", err)
	}
	return rows, nil
}

func (c *Client) tableURL(collection string, query url.Values) string {
	u := c.baseURL + "/rest/v1/" + collection
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) newRequest(ctx context.Context, method, u string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", method, err)
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do executes the request and returns the body for 2xx responses.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Printf("%s %s -> %d", req.Method, req.URL.Path, resp.StatusCode)
		return nil, fmt.Errorf("remote returned status %d: %s", resp.StatusCode, truncate(data, 200))
	}

	return data, nil
}

// noRowsIsNotFound maps an empty representation (the filter matched
// nothing) to ErrNotFound so replay logic can tolerate it.
func noRowsIsNotFound(data []byte) error {
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		// Backends that omit the representation report success bodies we
		// can't inspect; assume the row existed.
		return nil
	}
	if len(rows) == 0 {
		return ErrNotFound
	}
	return nil
}

func truncate(data []byte, n int) string {
	if len(data) > n {
		return string(data[:n]) + "..."
	}
	return string(data)
}
