package netstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// Transport issues the HTTP requests a Session needs. Implementations must
// abort in-flight requests when ctx is cancelled.
type Transport interface {
	// IssueRequest performs a plain GET of url.
	IssueRequest(ctx context.Context, url string, header http.Header) (*Response, error)

	// IssueRangeRequest performs a GET of the byte span [start, end).
	IssueRangeRequest(ctx context.Context, url string, start, end int64) (*Response, error)

	// SupportsStreaming reports whether response bodies are delivered
	// incrementally as data arrives, rather than buffered in full.
	SupportsStreaming() bool
}

// Response is the part of an HTTP response a Session consumes.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// ParseContentRange parses a Content-Range header value.
//
//	bytes 42-1233/1234
//	bytes 42-1233/*
//	bytes */1234
//
// first and last are inclusive. Unknown parts are returned as -1.
func ParseContentRange(header string) (first, last, total int64, err error) {
	first, last, total = -1, -1, -1

	unit, spec, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || unit != "bytes" {
		return -1, -1, -1, fmt.Errorf("invalid Content-Range format: %s", header)
	}

	span, size, ok := strings.Cut(spec, "/")
	if !ok {
		return -1, -1, -1, fmt.Errorf("invalid Content-Range format: %s", header)
	}

	if size != "*" {
		total, err = strconv.ParseInt(size, 10, 64)
		if err != nil {
			return -1, -1, -1, fmt.Errorf("invalid total bytes: %w", err)
		}
	}

	if span != "*" {
		from, to, ok := strings.Cut(span, "-")
		if !ok {
			return -1, -1, -1, fmt.Errorf("invalid Content-Range format: %s", header)
		}
		first, err = strconv.ParseInt(from, 10, 64)
		if err != nil {
			return -1, -1, -1, fmt.Errorf("invalid start byte: %w", err)
		}
		last, err = strconv.ParseInt(to, 10, 64)
		if err != nil {
			return -1, -1, -1, fmt.Errorf("invalid end byte: %w", err)
		}
	}

	if first == -1 && total == -1 {
		return -1, -1, -1, fmt.Errorf("invalid Content-Range format: %s", header)
	}
	return first, last, total, nil
}
