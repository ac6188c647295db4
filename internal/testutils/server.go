// Package testutils provides shared test infrastructure.
package testutils

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
)

// TestFile defines a file served by the test HTTP server.
type TestFile struct {
	Name        string
	Data        []byte
	Disposition string // Content-Disposition header, if any
	ContentType string
}

// ServerOptions changes how the test server answers.
type ServerOptions struct {
	// NoRanges makes the server ignore Range headers and omit Accept-Ranges.
	NoRanges bool

	// NoContentLength streams full responses with chunked encoding.
	NoContentLength bool
}

// TestServer is an httptest.Server that counts requests.
type TestServer struct {
	*httptest.Server

	Requests      atomic.Int64
	RangeRequests atomic.Int64
}

// GenerateTestData generates test data of the given size.
// For files <= 10MB, uses deterministic pattern. For larger files, uses random data.
func GenerateTestData(t *testing.T, size int64) []byte {
	t.Helper()
	data := make([]byte, size)
	if size <= 10*1024*1024 {
		for i := range data {
			data[i] = byte(i % 256)
		}
	} else {
		if _, err := rand.Read(data); err != nil {
			t.Fatalf("generate random data: %v", err)
		}
	}
	return data
}

// StartTestHTTPServer starts an HTTP server that serves test files with range
// request support. The server is closed when the test ends.
func StartTestHTTPServer(t *testing.T, files []TestFile, opts ServerOptions) *TestServer {
	t.Helper()

	fileMap := make(map[string]TestFile)
	for _, f := range files {
		fileMap["/"+f.Name] = f
	}

	ts := &TestServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.Requests.Add(1)

		f, ok := fileMap[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}

		data := f.Data
		size := int64(len(data))

		w.Header().Set("ETag", fmt.Sprintf(`"%s"`, r.URL.Path))
		if f.Disposition != "" {
			w.Header().Set("Content-Disposition", f.Disposition)
		}
		if f.ContentType != "" {
			w.Header().Set("Content-Type", f.ContentType)
		}
		if !opts.NoRanges {
			w.Header().Set("Accept-Ranges", "bytes")
		}

		rangeHeader := r.Header.Get("Range")
		if rangeHeader == "" || opts.NoRanges {
			if opts.NoContentLength {
				half := len(data) / 2
				w.Write(data[:half])
				w.(http.Flusher).Flush()
				w.Write(data[half:])
				return
			}
			w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
			w.Write(data)
			return
		}
		ts.RangeRequests.Add(1)

		// Parse range header: bytes=start-end
		rangeHeader = strings.TrimPrefix(rangeHeader, "bytes=")
		parts := strings.Split(rangeHeader, "-")
		start, _ := strconv.ParseInt(parts[0], 10, 64)
		end, _ := strconv.ParseInt(parts[1], 10, 64)

		if start >= size {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		if end >= size {
			end = size - 1
		}

		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
		w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(data[start : end+1])
	}))
	t.Cleanup(ts.Close)

	return ts
}
