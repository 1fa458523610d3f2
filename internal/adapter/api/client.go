package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/kudos/internal/cache"
	"github.com/mmcdole/kudos/internal/domain"
)

const (
	defaultTimeout = 15 * time.Second
	maxRetries     = 3
	baseRetryDelay = 500 * time.Millisecond
)

// feedPattern matches cached pages ("posts?...") and batch engagement reads
// ("posts/engagement?...") but not single posts
var feedPattern = regexp.MustCompile(`^posts(/engagement)?\?`)

// TTLs are the cache lifetimes per read path. Zero uses the cache default.
type TTLs struct {
	Page       time.Duration
	Post       time.Duration
	Engagement time.Duration
}

// Client talks to the platform API. It implements domain.EngagementClient
// and domain.FeedClient.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	cache      *cache.Cache
	ttl        TTLs
	retryDelay time.Duration
	logger     *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default http.Client
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithCache routes reads through the response cache
func WithCache(rc *cache.Cache, ttl TTLs) Option {
	return func(c *Client) {
		c.cache = rc
		c.ttl = ttl
	}
}

// WithRetryDelay sets the base delay of the GET retry backoff
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

// NewClient creates a new API client
func NewClient(baseURL, token string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		retryDelay: baseRetryDelay,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// doRequest performs an authenticated request against the API.
// When retry is set, 5xx responses are retried with exponential backoff.
// Mutations never pass retry: a failed commit is reported, not replayed.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, payload any, retry bool) ([]byte, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL = reqURL + "?" + query.Encode()
	}

	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
	}

	attempts := 1
	if retry {
		attempts += maxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1)) // 500ms, 1s, 2s
			c.logger.Debug("retrying request", "attempt", attempt, "delay", delay, "url", reqURL)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		c.logger.Debug("api request", "method", method, "url", reqURL, "attempt", attempt)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Error("api request failed", "error", err, "url", reqURL)
			return nil, fmt.Errorf("%w: %v", domain.ErrServerOffline, err)
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return respBody, nil
		case resp.StatusCode == http.StatusUnauthorized:
			return nil, domain.ErrAuthFailed
		case resp.StatusCode == http.StatusNotFound:
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("server error: %d - %s", resp.StatusCode, errorMessage(respBody))
			c.logger.Warn("api server error",
				"status", resp.StatusCode,
				"attempt", attempt,
				"retry", retry,
				"method", method,
				"path", path,
			)
			continue
		default:
			c.logger.Error("api request error", "status", resp.StatusCode, "body", string(respBody))
			return nil, fmt.Errorf("unexpected status code: %d - %s", resp.StatusCode, errorMessage(respBody))
		}
	}

	if retry {
		c.logger.Error("api request failed after retries", "error", lastErr, "url", reqURL)
	}
	return nil, lastErr
}

func errorMessage(body []byte) string {
	var e ErrorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}

// Commit sets action to desired for the entity. On success the cached
// responses describing the entity are invalidated.
func (c *Client) Commit(ctx context.Context, key domain.EntityKey, action domain.Action, desired bool) error {
	if !action.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownAction, action)
	}
	path := fmt.Sprintf("/%s/%s/%s", key.Type.Collection(), url.PathEscape(key.ID), action)
	if _, err := c.doRequest(ctx, http.MethodPost, path, nil, CommitRequest{DesiredState: desired}, false); err != nil {
		return err
	}
	c.invalidateEntity(key)
	return nil
}

// RecordShare counts a share of the entity. Like commits, it is not retried.
func (c *Client) RecordShare(ctx context.Context, key domain.EntityKey) error {
	path := fmt.Sprintf("/%s/%s/share", key.Type.Collection(), url.PathEscape(key.ID))
	if _, err := c.doRequest(ctx, http.MethodPost, path, nil, struct{}{}, false); err != nil {
		return err
	}
	c.invalidateEntity(key)
	return nil
}

// invalidateEntity drops "{type}s/{id}" and "{type}s/{id}/..." entries and
// every batch engagement response for the type. Other IDs sharing a prefix
// ("posts/1" vs "posts/10") are left alone.
func (c *Client) invalidateEntity(key domain.EntityKey) {
	if c.cache == nil {
		return
	}
	collection := key.Type.Collection()
	entity := regexp.MustCompile("^" + regexp.QuoteMeta(collection+"/"+key.ID) + `[?/]`)
	n := c.cache.InvalidateRegexp(entity)
	n += c.cache.Invalidate(collection + "/engagement?")
	c.logger.Debug("invalidated cached responses", "entity", key.String(), "count", n)
}

// FetchEngagement returns the authoritative state for one entity. It always
// goes to the network and is never cached.
func (c *Client) FetchEngagement(ctx context.Context, key domain.EntityKey) (domain.EngagementState, error) {
	endpoint := fmt.Sprintf("%s/%s/engagement", key.Type.Collection(), key.ID)
	body, err := c.doRequest(ctx, http.MethodGet, "/"+endpoint, nil, nil, true)
	if err != nil {
		return domain.EngagementState{}, err
	}

	var state domain.EngagementState
	if err := json.Unmarshal(body, &state); err != nil {
		return domain.EngagementState{}, fmt.Errorf("failed to parse response: %w", err)
	}
	return state, nil
}

// FetchEngagementBatch returns states for ids in one request. The request
// is a read, so it is retried like a GET.
func (c *Client) FetchEngagementBatch(ctx context.Context, entityType domain.EntityType, ids []string) (map[string]domain.EngagementState, error) {
	if len(ids) == 0 {
		return map[string]domain.EngagementState{}, nil
	}

	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	endpoint := entityType.Collection() + "/engagement"
	params := cache.Params{"ids": strings.Join(sorted, ",")}

	if states, ok := cache.Get[map[string]domain.EngagementState](c.cache, endpoint, params); ok {
		return clone(states), nil
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/"+endpoint, nil, BatchRequest{IDs: sorted}, true)
	if err != nil {
		return nil, err
	}

	var resp BatchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.States == nil {
		resp.States = map[string]domain.EngagementState{}
	}

	c.cache.Set(endpoint, resp.States, params, c.ttl.Engagement)
	return clone(resp.States), nil
}

func clone(states map[string]domain.EngagementState) map[string]domain.EngagementState {
	out := make(map[string]domain.EngagementState, len(states))
	for id, s := range states {
		out[id] = s
	}
	return out
}

// GetPage returns one page of the feed
func (c *Client) GetPage(ctx context.Context, page, limit int) (domain.Page, error) {
	if page < 1 {
		page = 1
	}
	params := cache.Params{"page": page, "limit": limit}
	if cached, ok := cache.Get[domain.Page](c.cache, "posts", params); ok {
		cached.Posts = slices.Clone(cached.Posts)
		return cached, nil
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	body, err := c.doRequest(ctx, http.MethodGet, "/posts", query, nil, true)
	if err != nil {
		return domain.Page{}, err
	}

	var resp PageResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Page{}, fmt.Errorf("failed to parse response: %w", err)
	}

	result := MapPage(resp)
	c.cache.Set("posts", result, params, c.ttl.Page)
	result.Posts = slices.Clone(result.Posts)
	return result, nil
}

// GetPost returns a single post
func (c *Client) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	endpoint := "posts/" + id
	if cached, ok := cache.Get[domain.Post](c.cache, endpoint, nil); ok {
		return &cached, nil
	}

	body, err := c.doRequest(ctx, http.MethodGet, "/posts/"+url.PathEscape(id), nil, nil, true)
	if err != nil {
		return nil, err
	}

	var dto PostDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	post := MapPost(dto)
	c.cache.Set(endpoint, post, nil, c.ttl.Post)
	return &post, nil
}

// InvalidateFeed drops every cached feed page and batch engagement read
func (c *Client) InvalidateFeed() int {
	return c.cache.InvalidateRegexp(feedPattern)
}
