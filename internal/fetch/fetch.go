// Package fetch provides the HTTP transport used for remote API calls and
// HTML-to-text helpers used when preparing text for prompts.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultUserAgent is the user agent string for HTTP requests.
const DefaultUserAgent = "PartsDashboard/1.0"

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 32 << 20

// ErrorKind classifies transport failures so callers can decide whether to retry.
type ErrorKind string

// Transport failure kinds
const (
	KindInvalidURL ErrorKind = "invalid_url"
	KindRequest    ErrorKind = "request"
	KindTimeout    ErrorKind = "timeout"
	KindConnection ErrorKind = "connection"
	KindCanceled   ErrorKind = "canceled"
	KindRead       ErrorKind = "read"
)

// Result holds a completed HTTP exchange. Any HTTP status, including
// 4xx and 5xx, is a Result rather than an error.
type Result struct {
	URL         string
	Body        []byte
	Header      http.Header
	ContentType string
	StatusCode  int
}

// Error represents a transport-level failure: no HTTP response was obtained.
type Error struct {
	URL     string
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the failure is transient (timeout or connection).
func (e *Error) Retryable() bool {
	return e.Kind == KindTimeout || e.Kind == KindConnection
}

// Options configures the fetch behavior.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// DefaultOptions returns sensible defaults for fetching.
func DefaultOptions() *Options {
	return &Options{
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
	}
}

// Client performs GET requests with fixed headers and a per-request timeout.
type Client struct {
	http    *http.Client
	options *Options
}

// NewClient creates a Client. A nil opts uses DefaultOptions.
func NewClient(opts *Options) *Client {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	return &Client{
		http:    &http.Client{Timeout: opts.Timeout, Transport: opts.Transport},
		options: opts,
	}
}

// Get issues a GET request for urlStr with the given query parameters.
func (c *Client) Get(ctx context.Context, urlStr string, query url.Values) (*Result, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, &Error{URL: urlStr, Kind: KindInvalidURL, Message: "invalid URL", Cause: err}
	}
	if len(query) > 0 {
		q := parsedURL.Query()
		for key, values := range query {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		parsedURL.RawQuery = q.Encode()
	}
	fullURL := parsedURL.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, &Error{URL: fullURL, Kind: KindRequest, Message: "failed to create request", Cause: err}
	}

	req.Header.Set("User-Agent", c.options.UserAgent)
	req.Header.Set("Accept", "application/json")
	for key, value := range c.options.Headers {
		req.Header.Set(key, value)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{URL: fullURL, Kind: classify(ctx, err), Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		kind := KindRead
		if isTimeout(err) {
			kind = KindTimeout
		}
		return nil, &Error{URL: fullURL, Kind: kind, Message: "failed to read response body", Cause: err}
	}

	return &Result{
		URL:         fullURL,
		Body:        bodyBytes,
		Header:      resp.Header,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}, nil
}

// classify maps a client.Do error onto an ErrorKind.
func classify(ctx context.Context, err error) ErrorKind {
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if isTimeout(err) {
		return KindTimeout
	}
	var netErr net.Error
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) || errors.As(err, &netErr) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return KindConnection
	}
	return KindRequest
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// HTMLToText parses an HTML fragment and returns its visible text with
// whitespace collapsed. Plain text input is returned cleaned but otherwise unchanged.
func HTMLToText(html string) string {
	if !strings.ContainsAny(html, "<>&") {
		return cleanWhitespace(html)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return cleanWhitespace(html)
	}

	doc.Find("script, style, noscript").Remove()
	// Keep line structure for block elements.
	doc.Find("br, p, li, div, tr, h1, h2, h3, h4").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	return cleanWhitespace(doc.Text())
}

// cleanWhitespace trims every line and drops empty ones.
func cleanWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	var cleaned []string
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
