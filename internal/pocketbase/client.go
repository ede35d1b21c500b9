// Package pocketbase is a minimal REST client for the PocketBase endpoints
// the MCP tools need: collection listing and import, record CRUD and
// superuser authentication.
package pocketbase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	internalerrors "github.com/jamesprial/pocketbase-mcp/internal/errors"
)

const (
	domain = "pocketbase"

	collectionsPageSize = 200
	maxErrorBody        = 1 << 20
)

// Record is a PocketBase record as returned by the REST API.
type Record map[string]any

// ID returns the record id, or "" when absent.
func (r Record) ID() string {
	id, _ := r["id"].(string)
	return id
}

// Collection is a PocketBase collection definition.
type Collection map[string]any

// ListQuery selects a page of records.
type ListQuery struct {
	Page    int
	PerPage int
	Filter  string
	Sort    string
}

// ListResult is one page of records.
type ListResult struct {
	Page       int      `json:"page"`
	PerPage    int      `json:"perPage"`
	TotalItems int      `json:"totalItems"`
	TotalPages int      `json:"totalPages"`
	Items      []Record `json:"items"`
}

// Client is the subset of the PocketBase API used by the server.
// Implementations must be safe for concurrent use.
type Client interface {
	ListCollections(ctx context.Context) ([]Collection, error)
	GetList(ctx context.Context, collection string, q ListQuery) (*ListResult, error)
	GetFirstListItem(ctx context.Context, collection, filter string) (Record, error)
	Create(ctx context.Context, collection string, data map[string]any) (Record, error)
	Update(ctx context.Context, collection, id string, data map[string]any) (Record, error)
	Delete(ctx context.Context, collection, id string) error
	ImportCollections(ctx context.Context, collections []map[string]any, deleteMissing bool) error
	AuthenticateAdmin(ctx context.Context, email, password string) error
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets a per-request timeout. Zero means none.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		c.httpClient.Timeout = d
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(c *HTTPClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// HTTPClient talks to a PocketBase server over HTTP.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger

	mu    sync.RWMutex
	token string
}

// NewClient creates a client for the PocketBase instance at baseURL.
func NewClient(baseURL string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Client = (*HTTPClient)(nil)

// Token returns the current superuser token, if any.
func (c *HTTPClient) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the superuser token sent with every request.
func (c *HTTPClient) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// AuthenticateAdmin logs in as a superuser and keeps the returned token.
// PocketBase >= 0.23 exposes superusers as the _superusers auth collection;
// older releases use /api/admins, tried when the first endpoint 404s.
func (c *HTTPClient) AuthenticateAdmin(ctx context.Context, email, password string) error {
	body := map[string]string{"identity": email, "password": password}

	var resp struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, http.MethodPost, "/api/collections/_superusers/auth-with-password", nil, body, &resp)
	if IsNotFound(err) {
		err = c.do(ctx, http.MethodPost, "/api/admins/auth-with-password", nil, body, &resp)
	}
	if err != nil {
		return internalerrors.New(domain, "AuthenticateAdmin", internalerrors.ErrUnauthorized, err)
	}
	if resp.Token == "" {
		return internalerrors.New(domain, "AuthenticateAdmin", internalerrors.ErrUnauthorized,
			fmt.Errorf("auth response carried no token"))
	}
	c.SetToken(resp.Token)
	return nil
}

// ListCollections returns every collection, following pagination.
func (c *HTTPClient) ListCollections(ctx context.Context) ([]Collection, error) {
	var all []Collection
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("perPage", strconv.Itoa(collectionsPageSize))

		var resp struct {
			Page       int          `json:"page"`
			TotalPages int          `json:"totalPages"`
			Items      []Collection `json:"items"`
		}
		if err := c.do(ctx, http.MethodGet, "/api/collections", q, nil, &resp); err != nil {
			return nil, wrap("ListCollections", err)
		}
		all = append(all, resp.Items...)
		if len(resp.Items) == 0 || page >= resp.TotalPages {
			break
		}
	}
	if all == nil {
		all = []Collection{}
	}
	return all, nil
}

// GetList returns one page of records matching q.
func (c *HTTPClient) GetList(ctx context.Context, collection string, q ListQuery) (*ListResult, error) {
	params := url.Values{}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.PerPage > 0 {
		params.Set("perPage", strconv.Itoa(q.PerPage))
	}
	if q.Filter != "" {
		params.Set("filter", q.Filter)
	}
	if q.Sort != "" {
		params.Set("sort", q.Sort)
	}

	var res ListResult
	if err := c.do(ctx, http.MethodGet, recordsPath(collection), params, nil, &res); err != nil {
		return nil, wrap("GetList", err)
	}
	if res.Items == nil {
		res.Items = []Record{}
	}
	return &res, nil
}

// GetFirstListItem returns the first record matching filter.
// An empty result is reported as a 404 APIError.
func (c *HTTPClient) GetFirstListItem(ctx context.Context, collection, filter string) (Record, error) {
	params := url.Values{}
	params.Set("page", "1")
	params.Set("perPage", "1")
	params.Set("skipTotal", "1")
	params.Set("filter", filter)

	var res ListResult
	if err := c.do(ctx, http.MethodGet, recordsPath(collection), params, nil, &res); err != nil {
		return nil, wrap("GetFirstListItem", err)
	}
	if len(res.Items) == 0 {
		return nil, wrap("GetFirstListItem", &APIError{
			Status:  http.StatusNotFound,
			Message: "The requested resource wasn't found.",
		})
	}
	return res.Items[0], nil
}

// Create inserts a record.
func (c *HTTPClient) Create(ctx context.Context, collection string, data map[string]any) (Record, error) {
	var rec Record
	if err := c.do(ctx, http.MethodPost, recordsPath(collection), nil, data, &rec); err != nil {
		return nil, wrap("Create", err)
	}
	return rec, nil
}

// Update patches a record.
func (c *HTTPClient) Update(ctx context.Context, collection, id string, data map[string]any) (Record, error) {
	var rec Record
	if err := c.do(ctx, http.MethodPatch, recordPath(collection, id), nil, data, &rec); err != nil {
		return nil, wrap("Update", err)
	}
	return rec, nil
}

// Delete removes a record.
func (c *HTTPClient) Delete(ctx context.Context, collection, id string) error {
	if err := c.do(ctx, http.MethodDelete, recordPath(collection, id), nil, nil, nil); err != nil {
		return wrap("Delete", err)
	}
	return nil
}

// ImportCollections bulk-imports collection definitions.
// With deleteMissing false, existing collections absent from the import are kept.
func (c *HTTPClient) ImportCollections(ctx context.Context, collections []map[string]any, deleteMissing bool) error {
	body := map[string]any{
		"collections":   collections,
		"deleteMissing": deleteMissing,
	}
	if err := c.do(ctx, http.MethodPut, "/api/collections/import", nil, body, nil); err != nil {
		return wrap("ImportCollections", err)
	}
	return nil
}

func recordsPath(collection string) string {
	return "/api/collections/" + url.PathEscape(collection) + "/records"
}

func recordPath(collection, id string) string {
	return recordsPath(collection) + "/" + url.PathEscape(id)
}

// wrap tags a transport or API failure as a backend error.
func wrap(op string, err error) error {
	return internalerrors.New(domain, op, internalerrors.ErrBackend, err)
}

// do performs one request. A nil body sends no payload; a nil out discards the response body.
func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, apiErr)
		}
		apiErr.Status = resp.StatusCode
		c.logger.Debug("pocketbase request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", apiErr.Message),
		)
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}
