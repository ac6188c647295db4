package netstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
)

// fakeTransport serves data from memory.
type fakeTransport struct {
	data      []byte
	header    http.Header // extra headers on the full response
	status    int         // status of the full response, default 200
	streaming bool
	err       error // returned by IssueRequest

	noLength   bool // omit Content-Length on the full response
	noRanges   bool // answer range requests with 200 and the full body
	blockBody  bool // bodies stop after the first blockAfter bytes until closed
	blockAfter int
	rangeErr   error // returned by IssueRangeRequest
	shortBy    int   // range bodies are shortened by this many bytes

	gate chan struct{} // when set, IssueRequest waits for it to close

	mu       sync.Mutex
	requests []string
	bodies   []*trackedBody
}

func newFakeTransport(data []byte) *fakeTransport {
	return &fakeTransport{
		data:      data,
		streaming: true,
		header: http.Header{
			"Accept-Ranges": {"bytes"},
		},
	}
}

func (f *fakeTransport) SupportsStreaming() bool { return f.streaming }

func (f *fakeTransport) IssueRequest(ctx context.Context, url string, header http.Header) (*Response, error) {
	f.record("full")
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}

	h := f.header.Clone()
	if h == nil {
		h = http.Header{}
	}
	if !f.noLength {
		h.Set("Content-Length", strconv.Itoa(len(f.data)))
	}
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	return &Response{StatusCode: status, Header: h, Body: f.body(f.data)}, nil
}

func (f *fakeTransport) IssueRangeRequest(ctx context.Context, url string, start, end int64) (*Response, error) {
	f.record(fmt.Sprintf("%d-%d", start, end))
	if f.rangeErr != nil {
		return nil, f.rangeErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.noRanges {
		return &Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: f.body(f.data)}, nil
	}

	if end > int64(len(f.data)) {
		end = int64(len(f.data))
	}
	h := http.Header{}
	h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end-1, len(f.data)))
	part := f.data[start:end]
	if f.shortBy > 0 && len(part) > f.shortBy {
		part = part[:len(part)-f.shortBy]
	}
	return &Response{StatusCode: http.StatusPartialContent, Header: h, Body: f.body(part)}, nil
}

func (f *fakeTransport) record(req string) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
}

func (f *fakeTransport) body(data []byte) *trackedBody {
	b := &trackedBody{
		r:      bytes.NewReader(data),
		closed: make(chan struct{}),
	}
	if f.blockBody {
		b.blockAt = f.blockAfter
		b.block = true
	}
	f.mu.Lock()
	f.bodies = append(f.bodies, b)
	f.mu.Unlock()
	return b
}

func (f *fakeTransport) requestLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

// openBodies counts bodies that were handed out but never closed.
func (f *fakeTransport) openBodies() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.bodies {
		if !b.isClosed() {
			n++
		}
	}
	return n
}

var errBodyClosed = errors.New("body closed")

// trackedBody records Close and can stall mid-stream until closed.
type trackedBody struct {
	r       *bytes.Reader
	read    int
	block   bool
	blockAt int

	closed    chan struct{}
	closeOnce sync.Once
	closes    atomic.Int32
}

func (b *trackedBody) Read(p []byte) (int, error) {
	if b.block && b.read >= b.blockAt {
		<-b.closed
		return 0, errBodyClosed
	}
	if b.block && b.read+len(p) > b.blockAt {
		p = p[:b.blockAt-b.read]
	}
	select {
	case <-b.closed:
		return 0, errBodyClosed
	default:
	}
	n, err := b.r.Read(p)
	b.read += n
	return n, err
}

func (b *trackedBody) Close() error {
	b.closes.Add(1)
	b.closeOnce.Do(func() { close(b.closed) })
	return nil
}

func (b *trackedBody) isClosed() bool {
	select {
	case <-b.closed:
		return true
	default:
		return false
	}
}

// failingBody returns its data, then err.
type failingBody struct {
	data []byte
	err  error
}

func (b *failingBody) Read(p []byte) (int, error) {
	if len(b.data) == 0 {
		return 0, b.err
	}
	n := copy(p, b.data)
	b.data = b.data[n:]
	return n, nil
}

func (b *failingBody) Close() error { return nil }

// funcTransport lets a test supply the responses directly.
type funcTransport struct {
	full      func(ctx context.Context) (*Response, error)
	ranged    func(ctx context.Context, start, end int64) (*Response, error)
	streaming bool
}

func (f *funcTransport) IssueRequest(ctx context.Context, url string, header http.Header) (*Response, error) {
	return f.full(ctx)
}

func (f *funcTransport) IssueRangeRequest(ctx context.Context, url string, start, end int64) (*Response, error) {
	return f.ranged(ctx, start, end)
}

func (f *funcTransport) SupportsStreaming() bool { return f.streaming }

func testData(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

// readAll drains r and returns the chunks it produced.
func readAll(ctx context.Context, r ChunkReader) ([][]byte, error) {
	var chunks [][]byte
	for {
		res, err := r.Read(ctx)
		if err != nil {
			return chunks, err
		}
		if res.Done {
			return chunks, nil
		}
		chunks = append(chunks, res.Chunk)
	}
}
