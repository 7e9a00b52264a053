package editor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/draftworks/schemadesk/internal/types"
)

const defaultRequestTimeout = 30 * time.Second

// Client is the HTTP persistence client for the schema service. Reads go
// through the bounded cache when one is attached; writes invalidate the
// affected entries. Client implements Persister.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      *Cache
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithCache attaches a read cache. Schema reads are served from it when
// fresh; every successful write invalidates the schema's entries and the
// list entries.
func WithCache(cache *Cache) ClientOption {
	return func(c *Client) { c.cache = cache }
}

// NewClient creates a client for the service at baseURL, e.g.
// "http://localhost:8080".
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: defaultRequestTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListSchemas fetches the schema list. includeInactive adds soft-deleted
// schemas to the result.
func (c *Client) ListSchemas(ctx context.Context, includeInactive bool) (*types.SchemaList, error) {
	key := CacheKey("schemas", fmt.Sprintf("inactive=%t", includeInactive))
	if c.cache != nil {
		if cached, ok := c.cache.Get(key); ok {
			if list, ok := cached.(*types.SchemaList); ok {
				return list, nil
			}
		}
	}

	path := "/api/v1/schemas"
	if includeInactive {
		path += "?include_inactive=true"
	}
	var list types.SchemaList
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.Set(key, &list)
	}
	return &list, nil
}

// GetSchema fetches one schema by ID.
func (c *Client) GetSchema(ctx context.Context, id string) (*types.Schema, error) {
	key := CacheKey("schema", id)
	if c.cache != nil {
		if cached, ok := c.cache.Get(key); ok {
			if schema, ok := cached.(*types.Schema); ok {
				return schema, nil
			}
		}
	}

	var schema types.Schema
	if err := c.do(ctx, http.MethodGet, "/api/v1/schemas/"+id, nil, &schema); err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.Set(key, &schema)
	}
	return &schema, nil
}

// CreateSchema creates a new schema and returns the stored row.
func (c *Client) CreateSchema(ctx context.Context, schema types.Schema) (*types.Schema, error) {
	var created types.Schema
	if err := c.do(ctx, http.MethodPost, "/api/v1/schemas", schema, &created); err != nil {
		return nil, err
	}
	c.invalidate(created.ID)
	return &created, nil
}

// UpdateSchema applies a patch to the schema. A version conflict comes back
// as *ConflictError carrying the server's current row.
func (c *Client) UpdateSchema(ctx context.Context, id string, patch types.SchemaPatch) (*types.Schema, error) {
	var updated types.Schema
	if err := c.do(ctx, http.MethodPut, "/api/v1/schemas/"+id, patch, &updated); err != nil {
		return nil, err
	}
	c.invalidate(id)
	return &updated, nil
}

// DeleteSchema soft-deletes the schema.
func (c *Client) DeleteSchema(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/v1/schemas/"+id, nil, nil); err != nil {
		return err
	}
	c.invalidate(id)
	return nil
}

func (c *Client) invalidate(schemaID string) {
	if c.cache == nil {
		return
	}
	if schemaID != "" {
		c.cache.Invalidate(schemaID)
	}
	c.cache.Invalidate("schemas")
}

// problemBody is the service's RFC 7807 error payload. Conflict responses
// additionally carry the server's current schema; validation failures carry
// per-field errors.
type problemBody struct {
	Title  string              `json:"title"`
	Detail string              `json:"detail"`
	Errors []problemFieldError `json:"errors,omitempty"`
	Server *types.Schema       `json:"server,omitempty"`
}

type problemFieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.errorFromResponse(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorFromResponse maps an error response onto the client error types:
// 409 with a server row becomes *ConflictError, everything else
// *RequestError with the problem detail when one was provided.
func (c *Client) errorFromResponse(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var problem problemBody
	if len(data) > 0 {
		_ = json.Unmarshal(data, &problem)
	}

	if resp.StatusCode == http.StatusConflict {
		return &ConflictError{Server: problem.Server}
	}

	detail := problem.Detail
	if detail == "" {
		detail = problem.Title
	}
	if detail == "" {
		detail = http.StatusText(resp.StatusCode)
	}
	if len(problem.Errors) > 0 {
		msgs := make([]string, len(problem.Errors))
		for i, e := range problem.Errors {
			msgs[i] = e.Field + ": " + e.Message
		}
		detail = fmt.Sprintf("%s: %v", detail, msgs)
	}
	return &RequestError{Status: resp.StatusCode, Detail: detail}
}
