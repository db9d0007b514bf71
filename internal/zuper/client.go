package zuper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/parts-dashboard/internal/config"
	"github.com/jonathan/parts-dashboard/internal/fetch"
	"github.com/jonathan/parts-dashboard/internal/types"
)

// RateLimitWindow is the window the per-minute request budget applies to.
const RateLimitWindow = time.Minute

// DefaultRetryAfter is used when a 429 response carries no usable Retry-After header.
const DefaultRetryAfter = 60 * time.Second

// CategoryFilterParam is the query parameter the jobs endpoint filters categories on.
const CategoryFilterParam = "jobCategory"

// Pagination is the paging metadata of a list response.
type Pagination struct {
	CurrentPage  int `json:"current_page"`
	TotalPages   int `json:"total_pages"`
	TotalRecords int `json:"total_records"`
}

// Page is one page of raw job records.
type Page struct {
	Records    []types.RawRecord
	Pagination Pagination
}

// FetchResult is the outcome of a full paginated fetch. Records holds
// whatever was read before Err stopped the fetch, if anything did.
type FetchResult struct {
	Records      []types.RawRecord
	PagesFetched int
	TotalPages   int
	Outcome      types.FetchOutcome
	Err          error
}

// Option configures a Client.
type Option func(*Client)

// WithSleep replaces the function used for backoff and throttle waits.
func WithSleep(sleep SleepFunc) Option {
	return func(c *Client) { c.sleep = sleep }
}

// WithClock replaces the clock used by the request throttle.
func WithClock(now Clock) Option {
	return func(c *Client) { c.now = now }
}

// WithTransport replaces the HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.transport = rt }
}

// WithCategory sets the job category FetchAllInScopeJobs filters on.
func WithCategory(category string) Option {
	return func(c *Client) { c.category = category }
}

// Client talks to the Zuper REST API.
type Client struct {
	cfg       config.ZuperConfig
	baseURL   string
	category  string
	logger    *zap.Logger
	http      *fetch.Client
	throttle  *Throttle
	sleep     SleepFunc
	now       Clock
	transport http.RoundTripper
}

// NewClient builds a Client from cfg. It returns a *ConfigError when the
// API key, organization or base URL is missing.
func NewClient(cfg config.ZuperConfig, logger *zap.Logger, opts ...Option) (*Client, error) {
	switch {
	case cfg.APIKey == "":
		return nil, &ConfigError{Field: "api_key"}
	case cfg.OrgUID == "":
		return nil, &ConfigError{Field: "org_uid"}
	case cfg.BaseURL == "":
		return nil, &ConfigError{Field: "base_url"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.MaxPageSize < 1 {
		cfg.MaxPageSize = 100
	}
	if cfg.PageSize < 1 || cfg.PageSize > cfg.MaxPageSize {
		cfg.PageSize = cfg.MaxPageSize
	}

	c := &Client{
		cfg:      cfg,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		category: config.DefaultJobCategory,
		logger:   logger.Named("zuper"),
		sleep:    contextSleep,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.throttle = NewThrottle(cfg.RateLimitPerMinute, RateLimitWindow, c.now, c.sleep)
	c.http = fetch.NewClient(&fetch.Options{
		Timeout:   cfg.Timeout,
		Headers:   map[string]string{"x-api-key": cfg.APIKey},
		Transport: c.transport,
	})
	return c, nil
}

// Throttle exposes the client's request throttle.
func (c *Client) Throttle() *Throttle {
	return c.throttle
}

// FetchPage fetches one page of jobs. page starts at 1; pageSize is clamped
// to the configured maximum.
func (c *Client) FetchPage(ctx context.Context, page, pageSize int, filters map[string]string) (*Page, error) {
	if page < 1 {
		return nil, &ValidationError{Message: fmt.Sprintf("page must be >= 1, got %d", page)}
	}
	if pageSize < 1 {
		pageSize = c.cfg.PageSize
	}
	if pageSize > c.cfg.MaxPageSize {
		pageSize = c.cfg.MaxPageSize
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("pageSize", strconv.Itoa(pageSize))
	for key, value := range filters {
		query.Set(key, value)
	}

	c.logger.Debug("fetching jobs page", zap.Int("page", page), zap.Int("page_size", pageSize))

	body, err := c.get(ctx, c.orgPath("jobs"), query)
	if err != nil {
		return nil, err
	}
	return decodePage(body, page)
}

// FetchAllInScopeJobs reads every page of jobs in the configured category,
// starting at page 1, until the reported page count is reached or a page
// comes back empty. A failure stops the fetch and is reported through the
// result together with the records read so far.
func (c *Client) FetchAllInScopeJobs(ctx context.Context) *FetchResult {
	result := &FetchResult{Outcome: types.FetchComplete}
	filters := map[string]string{CategoryFilterParam: c.category}

	c.logger.Info("starting job fetch", zap.String("category", c.category))

	for page := 1; ; page++ {
		p, err := c.FetchPage(ctx, page, c.cfg.PageSize, filters)
		if err != nil {
			c.logger.Error("error fetching jobs page", zap.Int("page", page), zap.Error(err))
			result.Err = fmt.Errorf("failed to fetch page %d: %w", page, err)
			if len(result.Records) > 0 {
				result.Outcome = types.FetchPartial
			} else {
				result.Outcome = types.FetchFailed
			}
			break
		}

		if len(p.Records) == 0 {
			break
		}
		result.Records = append(result.Records, p.Records...)
		result.PagesFetched++
		result.TotalPages = p.Pagination.TotalPages

		c.logger.Info("fetched jobs page",
			zap.Int("page", page),
			zap.Int("total_pages", p.Pagination.TotalPages),
			zap.Int("records", len(p.Records)))

		if page >= p.Pagination.TotalPages {
			break
		}
	}

	c.logger.Info("job fetch finished",
		zap.Int("records", len(result.Records)),
		zap.String("outcome", string(result.Outcome)))
	return result
}

// GetJob fetches a single job by its uid.
func (c *Client) GetJob(ctx context.Context, jobUID string) (types.RawRecord, error) {
	if jobUID == "" {
		return nil, &ValidationError{Message: "job uid is required"}
	}
	body, err := c.get(ctx, c.orgPath("jobs/"+url.PathEscape(jobUID)), nil)
	if err != nil {
		return nil, err
	}
	var envelope struct {
		Data types.RawRecord `json:"data"`
	}
	if err := decodeJSON(body, &envelope); err != nil {
		return nil, &APIError{StatusCode: http.StatusOK, Message: "failed to decode job", Cause: err}
	}
	if envelope.Data != nil {
		return envelope.Data, nil
	}
	var record types.RawRecord
	if err := decodeJSON(body, &record); err != nil {
		return nil, &APIError{StatusCode: http.StatusOK, Message: "failed to decode job", Cause: err}
	}
	return record, nil
}

// TestConnection checks that the API is reachable and the key is accepted.
func (c *Client) TestConnection(ctx context.Context) error {
	if _, err := c.get(ctx, c.orgPath(""), nil); err != nil {
		c.logger.Error("API connection test failed", zap.Error(err))
		return err
	}
	c.logger.Info("API connection test successful")
	return nil
}

func (c *Client) orgPath(suffix string) string {
	path := "/organizations/" + url.PathEscape(c.cfg.OrgUID)
	if suffix != "" {
		path += "/" + suffix
	}
	return path
}

// get performs one logical request with throttling, retry and status classification.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	attempts := c.cfg.MaxRetries

	for attempt := 0; attempt < attempts; attempt++ {
		last := attempt == attempts-1

		if waited, err := c.throttle.Acquire(ctx); err != nil {
			return nil, err
		} else if waited > 0 {
			c.logger.Warn("request budget exhausted, waited for window reset", zap.Duration("waited", waited))
		}

		res, err := c.http.Get(ctx, endpoint, query)
		if err != nil {
			var fetchErr *fetch.Error
			if !errors.As(err, &fetchErr) || !fetchErr.Retryable() {
				return nil, &APIError{Message: "request failed", Cause: err}
			}
			if last {
				return nil, &NetworkError{Attempts: attempt + 1, Cause: err}
			}
			delay := c.backoff(attempt)
			c.logger.Warn("network error, retrying",
				zap.Int("attempt", attempt+1), zap.Int("max_attempts", attempts),
				zap.Duration("delay", delay), zap.Error(err))
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
			continue
		}

		switch status := res.StatusCode; {
		case status >= 200 && status < 300:
			return res.Body, nil

		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			return nil, &AuthenticationError{StatusCode: status, Message: bodyMessage(res.Body, "invalid API key or authentication failed")}

		case status == http.StatusNotFound:
			return nil, &NotFoundError{Resource: path}

		case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
			return nil, &ValidationError{StatusCode: status, Message: bodyMessage(res.Body, "validation error")}

		case status == http.StatusTooManyRequests:
			if last {
				break
			}
			delay := retryAfter(res.Header.Get("Retry-After"), c.now())
			c.logger.Warn("rate limited by server, waiting", zap.Duration("retry_after", delay))
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}

		case status >= 500 && status < 600:
			if last {
				return nil, &ServerError{StatusCode: status, Attempts: attempt + 1}
			}
			delay := c.backoff(attempt)
			c.logger.Warn("server error, retrying",
				zap.Int("status", status), zap.Int("attempt", attempt+1), zap.Duration("delay", delay))
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}

		default:
			return nil, &APIError{StatusCode: status, Message: bodyMessage(res.Body, "unexpected status code")}
		}
	}

	return nil, fmt.Errorf("%w: rate limited on all %d attempts", ErrRetriesExhausted, attempts)
}

// backoff returns BackoffBase * 2^attempt.
func (c *Client) backoff(attempt int) time.Duration {
	return time.Duration(float64(c.cfg.BackoffBase) * math.Pow(2, float64(attempt)))
}

// retryAfter parses a Retry-After header given either as seconds or as an HTTP date.
func retryAfter(header string, now time.Time) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return DefaultRetryAfter
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	return DefaultRetryAfter
}

// bodyMessage extracts the "message" field of a JSON error body.
func bodyMessage(body []byte, fallback string) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return fallback
}

// decodeJSON decodes with UseNumber so large numeric ids keep their digits.
func decodeJSON(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	return dec.Decode(v)
}

// decodePage reads the list envelope: a "data" array plus pagination metadata,
// either nested under "pagination" or at the top level, in camelCase or snake_case.
func decodePage(body []byte, requestedPage int) (*Page, error) {
	var envelope map[string]any
	if err := decodeJSON(body, &envelope); err != nil {
		return nil, &APIError{StatusCode: http.StatusOK, Message: "failed to decode jobs page", Cause: err}
	}

	page := &Page{}
	if data, ok := envelope["data"].([]any); ok {
		for i, item := range data {
			record, ok := item.(map[string]any)
			if !ok {
				return nil, &APIError{StatusCode: http.StatusOK, Message: fmt.Sprintf("job %d on page %d is not an object", i, requestedPage)}
			}
			page.Records = append(page.Records, types.RawRecord(record))
		}
	}

	meta := envelope
	if nested, ok := envelope["pagination"].(map[string]any); ok {
		meta = nested
	}
	page.Pagination = Pagination{
		CurrentPage:  intField(meta, requestedPage, "currentPage", "current_page", "page"),
		TotalPages:   intField(meta, 1, "totalPages", "total_pages"),
		TotalRecords: intField(meta, len(page.Records), "totalRecords", "total_records", "total"),
	}
	return page, nil
}

func intField(m map[string]any, fallback int, keys ...string) int {
	for _, key := range keys {
		switch v := m[key].(type) {
		case json.Number:
			if n, err := v.Int64(); err == nil {
				return int(n)
			}
			if f, err := v.Float64(); err == nil {
				return int(f)
			}
		case float64:
			return int(v)
		case string:
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
	}
	return fallback
}
