// Package transport implements the HTTP layer for executing serialized
// operation requests against a service endpoint.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fivetwenty-io/awsmeta/internal/constants"
	"github.com/fivetwenty-io/awsmeta/pkg/awsmeta"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
)

// Static errors for err113 compliance.
var (
	ErrRequestRequired = errors.New("request required")
	ErrNotResolved     = errors.New("deferred response not resolved yet")
)

// Request is one serialized wire request, ready to sign and send.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Headers map[string]string
	Body    []byte
}

// Header sets a header value, allocating the map on first use.
func (r *Request) Header(key, value string) {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}

	r.Headers[key] = value
}

// Response is the raw outcome of a sent request. The transport reports any
// completed HTTP exchange as a Response; interpreting the status code is the
// caller's concern.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	RequestID  string
}

// Client sends serialized requests to a single base endpoint with automatic
// retries on transient failures.
type Client struct {
	baseURL    string
	httpClient *retryablehttp.Client
	logger     awsmeta.Logger
	debug      bool
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger for request/response logging.
func WithLogger(logger awsmeta.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug enables debug logging of requests and responses.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithUserAgent sets the User-Agent header for all requests.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithRetryConfig configures retry behavior.
func WithRetryConfig(maxRetries int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.httpClient.RetryMax = maxRetries
		c.httpClient.RetryWaitMin = waitMin
		c.httpClient.RetryWaitMax = waitMax
	}
}

// WithHTTPTimeout sets the per-attempt HTTP timeout.
func WithHTTPTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.HTTPClient.Timeout = timeout
	}
}

// NewClient creates a transport client for the given endpoint.
func NewClient(baseURL string, opts ...Option) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = constants.DefaultRetryMax
	retryClient.RetryWaitMin = constants.DefaultRetryWaitMin
	retryClient.RetryWaitMax = constants.DefaultRetryWaitMax
	retryClient.HTTPClient.Timeout = constants.DefaultHTTPTimeout
	retryClient.Logger = nil

	client := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: retryClient,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Do sends a request and reads the full response. A non-2xx status is not an
// error at this layer; only a failure to complete the exchange is.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, ErrRequestRequired
	}

	fullURL := c.baseURL + req.Path
	if len(req.Query) > 0 {
		fullURL += "?" + req.Query.Encode()
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	if len(req.Body) > 0 && req.Headers["Content-Type"] == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	httpReq.Header.Set("X-Invocation-Id", uuid.NewString())

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Request", map[string]interface{}{
			"method": req.Method,
			"url":    fullURL,
			"body":   string(req.Body),
		})
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       respBody,
		RequestID:  requestID(httpResp.Header),
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Response", map[string]interface{}{
			"status_code": resp.StatusCode,
			"request_id":  resp.RequestID,
			"body":        string(respBody),
		})
	}

	return resp, nil
}

// requestID pulls the service-assigned request id from response headers.
func requestID(headers http.Header) string {
	for _, key := range []string{"X-Amzn-Requestid", "X-Amz-Request-Id", "X-Request-Id"} {
		if id := headers.Get(key); id != "" {
			return id
		}
	}

	return ""
}

// Deferred is an in-flight request handle. The exchange runs on its own
// goroutine; Done closes when it settles.
type Deferred struct {
	done   chan struct{}
	resp   *Response
	err    error
	cancel context.CancelFunc
}

// Done returns a channel closed once the exchange has settled.
func (d *Deferred) Done() <-chan struct{} {
	return d.done
}

// Result returns the settled outcome. It errors if the exchange is still in
// flight; select on Done first.
func (d *Deferred) Result() (*Response, error) {
	select {
	case <-d.done:
		return d.resp, d.err
	default:
		return nil, ErrNotResolved
	}
}

// Cancel abandons the in-flight exchange. Safe to call at any time, more
// than once.
func (d *Deferred) Cancel() {
	d.cancel()
}

// DoAsync sends a request without blocking. The returned Deferred settles
// exactly once, with either a response or an error.
func (c *Client) DoAsync(ctx context.Context, req *Request) *Deferred {
	reqCtx, cancel := context.WithCancel(ctx)

	deferred := &Deferred{
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer close(deferred.done)
		defer cancel()

		deferred.resp, deferred.err = c.Do(reqCtx, req)
	}()

	return deferred
}
