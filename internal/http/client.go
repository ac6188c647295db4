package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/ligustah/chunkfetch/pkg/netstream"
)

// Common errors.
var (
	ErrNotFound     = errors.New("http: resource not found")
	ErrForbidden    = errors.New("http: access forbidden")
	ErrUnauthorized = errors.New("http: unauthorized")
	ErrServerError  = errors.New("http: server error")
)

// Options configures the HTTP client.
type Options struct {
	// MaxIdleConnsPerHost sets the maximum idle connections per host.
	// Default: 100
	MaxIdleConnsPerHost int

	// HeaderTimeout bounds the wait for response headers. Bodies are not
	// subject to a timeout.
	// Default: 30s
	HeaderTimeout time.Duration

	// Buffered makes the client read every response body in full before
	// returning it, i.e. a transport without incremental delivery.
	Buffered bool

	// BytesPerSecond limits the combined body read rate. 0 disables it.
	BytesPerSecond int

	// UserAgent is sent with every request when set.
	UserAgent string
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxIdleConnsPerHost: 100,
		HeaderTimeout:       30 * time.Second,
	}
}

// Client implements netstream.Transport over net/http.
type Client struct {
	client  *http.Client
	opts    Options
	limiter *rate.Limiter
}

var _ netstream.Transport = (*Client)(nil)

// NewClient creates a new HTTP client with the given options.
func NewClient(opts Options) *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConnsPerHost:   opts.MaxIdleConnsPerHost,
		MaxIdleConns:          opts.MaxIdleConnsPerHost * 2,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: opts.HeaderTimeout,
		DisableCompression:    true, // We want raw bytes for range requests
	}

	c := &Client{
		client: &http.Client{Transport: transport},
		opts:   opts,
	}
	if opts.BytesPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.BytesPerSecond), opts.BytesPerSecond)
	}
	return c
}

// SupportsStreaming reports whether bodies are delivered as data arrives.
func (c *Client) SupportsStreaming() bool {
	return !c.opts.Buffered
}

// IssueRequest performs a GET request for the whole resource. Responses are
// returned whatever their status; the caller decides what is acceptable.
func (c *Client) IssueRequest(ctx context.Context, url string, header http.Header) (*netstream.Response, error) {
	req, err := c.newRequest(ctx, url)
	if err != nil {
		return nil, err
	}
	for k, vv := range header {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	return c.wrap(ctx, resp)
}

// IssueRangeRequest performs a range request for the bytes [start, end).
func (c *Client) IssueRangeRequest(ctx context.Context, url string, start, end int64) (*netstream.Response, error) {
	if start < 0 || start >= end {
		return nil, fmt.Errorf("%w: [%d, %d)", netstream.ErrInvalidRange, start, end)
	}

	req, err := c.newRequest(ctx, url)
	if err != nil {
		return nil, err
	}
	// HTTP ranges are inclusive.
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end-1))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}

	// Some servers answer 200 but still send the range.
	if resp.StatusCode == http.StatusOK && resp.Header.Get("Content-Range") != "" {
		resp.StatusCode = http.StatusPartialContent
	}
	return c.wrap(ctx, resp)
}

func (c *Client) newRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}
	return req, nil
}

// wrap converts resp, applying rate limiting and buffering.
func (c *Client) wrap(ctx context.Context, resp *http.Response) (*netstream.Response, error) {
	var body io.ReadCloser = resp.Body
	if c.limiter != nil {
		body = &limitedBody{ctx: ctx, rc: body, limiter: c.limiter}
	}

	if c.opts.Buffered {
		data, err := io.ReadAll(body)
		body.Close()
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		body = io.NopCloser(bytes.NewReader(data))
	}

	return &netstream.Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// limitedBody throttles reads through a shared limiter.
type limitedBody struct {
	ctx     context.Context
	rc      io.ReadCloser
	limiter *rate.Limiter
}

func (b *limitedBody) Read(p []byte) (int, error) {
	if burst := b.limiter.Burst(); len(p) > burst {
		p = p[:burst]
	}
	n, err := b.rc.Read(p)
	if n > 0 {
		if werr := b.limiter.WaitN(b.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}

func (b *limitedBody) Close() error { return b.rc.Close() }

// StatusError returns an appropriate error for non-success status codes.
func StatusError(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code >= 500:
		return fmt.Errorf("%w: %d", ErrServerError, code)
	default:
		return fmt.Errorf("unexpected status code: %d", code)
	}
}
