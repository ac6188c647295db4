package netstream

import (
	"context"
	"io"
	"sync"

	"go.uber.org/zap"
)

// State is the lifecycle state of a reader.
type State int

const (
	StatePending      State = iota // Request issued, no headers yet.
	StateHeadersReady              // Headers received, no chunk read yet.
	StateStreaming                 // At least one Read reached the body.
	StateCancelled                 // Cancel called before a terminal state.
	StateCompleted                 // All data delivered.
	StateFailed                    // Setup or transport failure.
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateHeadersReady:
		return "headers-ready"
	case StateStreaming:
		return "streaming"
	case StateCancelled:
		return "cancelled"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ReadResult is the outcome of one Read. Chunk is non-empty unless Done.
type ReadResult struct {
	Chunk []byte
	Done  bool
}

// ChunkReader is the contract shared by full and range readers.
type ChunkReader interface {
	// Read returns the next chunk in source order. After the data is
	// exhausted or the reader is cancelled it returns Done, and keeps
	// returning Done on later calls.
	Read(ctx context.Context) (ReadResult, error)

	// Cancel aborts the reader's request. It is a no-op on a reader that
	// already reached a terminal state.
	Cancel(reason error)

	// HeadersReady is closed once the reader's response headers arrived
	// or its setup failed.
	HeadersReady() <-chan struct{}

	State() State

	// Err returns the failure of a failed reader, or the cancel reason of a
	// cancelled one.
	Err() error
}

// reader implements ChunkReader on top of one transport response.
type reader struct {
	sess      *Session
	start     int64
	end       int64 // -1 for the full reader
	chunkSize int

	ready     chan struct{}
	cancelled chan struct{}

	// readMu serializes Read calls; mu guards the fields below and is never
	// held across a body read.
	readMu sync.Mutex
	mu     sync.Mutex

	state    State
	body     io.ReadCloser
	abort    context.CancelFunc
	buffered bool
	want     int64 // -1 when the length is not enforced
	got      int64
	eof      bool
	pending  error
	err      error
}

func newReader(sess *Session, start, end int64) *reader {
	want := int64(-1)
	if end >= 0 {
		want = end - start
	}
	return &reader{
		sess:      sess,
		start:     start,
		end:       end,
		chunkSize: sess.source.RangeChunkSize,
		ready:     make(chan struct{}),
		cancelled: make(chan struct{}),
		want:      want,
	}
}

// attach hands the response body to the reader. A reader cancelled while its
// request was in flight releases the body immediately.
func (r *reader) attach(body io.ReadCloser, abort context.CancelFunc, buffered bool) {
	r.mu.Lock()
	if r.state == StateCancelled {
		r.mu.Unlock()
		body.Close()
		if abort != nil {
			abort()
		}
		close(r.ready)
		return
	}
	r.body = body
	if abort != nil {
		r.abort = abort
	}
	r.buffered = buffered
	r.state = StateHeadersReady
	r.mu.Unlock()

	close(r.ready)
}

// fail ends reader setup with err.
func (r *reader) fail(err error) {
	r.mu.Lock()
	if r.state == StatePending {
		r.state = StateFailed
		r.err = err
	}
	abort := r.abort
	r.mu.Unlock()

	if abort != nil {
		abort()
	}
	close(r.ready)
	r.sess.release(r)
}

func (r *reader) HeadersReady() <-chan struct{} { return r.ready }

func (r *reader) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *reader) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Read returns the next chunk. If ctx is cancelled while waiting for headers
// Read returns ctx.Err() and the reader stays usable; if it is cancelled while
// a chunk is being received, the reader itself is cancelled.
func (r *reader) Read(ctx context.Context) (ReadResult, error) {
	r.readMu.Lock()
	defer r.readMu.Unlock()

	select {
	case <-r.ready:
	case <-r.cancelled:
	case <-ctx.Done():
		return ReadResult{}, ctx.Err()
	}

	r.mu.Lock()
	switch r.state {
	case StateCancelled, StateCompleted:
		r.mu.Unlock()
		return ReadResult{Done: true}, nil
	case StateFailed:
		err := r.err
		r.mu.Unlock()
		return ReadResult{}, err
	}
	if r.pending != nil {
		return r.failLocked(r.pending)
	}
	if r.eof {
		return r.finishLocked()
	}
	r.state = StateStreaming
	body, buffered := r.body, r.buffered
	r.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { r.Cancel(ctx.Err()) })
	chunk, err := r.next(body, buffered)
	stop()

	r.mu.Lock()
	if r.state == StateCancelled {
		r.mu.Unlock()
		if ctx.Err() != nil {
			return ReadResult{}, ctx.Err()
		}
		return ReadResult{Done: true}, nil
	}

	if len(chunk) > 0 {
		r.got += int64(len(chunk))
		switch {
		case err == io.EOF:
			r.eof = true
		case err != nil:
			r.pending = err
		}
		r.mu.Unlock()
		r.sess.addProgress(int64(len(chunk)))
		return ReadResult{Chunk: chunk}, nil
	}

	if err == io.EOF {
		return r.finishLocked()
	}
	return r.failLocked(err)
}

// next receives the next piece of body data.
func (r *reader) next(body io.Reader, buffered bool) ([]byte, error) {
	if buffered {
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, err
		}
		return data, io.EOF
	}

	buf := make([]byte, r.chunkSize)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			return buf[:n], err
		}
		if err != nil {
			return nil, err
		}
	}
}

// finishLocked completes the reader once the body reached EOF. Must be
// called with r.mu held; it releases it.
func (r *reader) finishLocked() (ReadResult, error) {
	if r.want >= 0 && r.got < r.want {
		return r.failLocked(io.ErrUnexpectedEOF)
	}

	r.state = StateCompleted
	body, abort := r.body, r.abort
	r.body = nil
	r.mu.Unlock()

	if body != nil {
		body.Close()
	}
	if abort != nil {
		abort()
	}
	r.sess.release(r)
	return ReadResult{Done: true}, nil
}

// failLocked marks the reader failed. Must be called with r.mu held; it
// releases it.
func (r *reader) failLocked(cause error) (ReadResult, error) {
	err := &TransportError{Start: r.start, End: r.end, Err: cause}
	r.state = StateFailed
	r.err = err
	body, abort := r.body, r.abort
	r.body = nil
	r.mu.Unlock()

	if abort != nil {
		abort()
	}
	if body != nil {
		body.Close()
	}
	r.sess.release(r)
	r.sess.opts.logger.Debug("reader failed",
		zap.Int64("start", r.start),
		zap.Int64("end", r.end),
		zap.Error(cause),
	)
	return ReadResult{}, err
}

// Cancel aborts the reader. Pending and future reads return Done.
func (r *reader) Cancel(reason error) {
	r.mu.Lock()
	switch r.state {
	case StateCancelled, StateCompleted, StateFailed:
		r.mu.Unlock()
		return
	}
	r.state = StateCancelled
	if reason == nil {
		reason = ErrCancelled
	}
	r.err = reason
	body, abort := r.body, r.abort
	r.body = nil
	r.mu.Unlock()

	close(r.cancelled)
	if abort != nil {
		abort()
	}
	if body != nil {
		body.Close()
	}
	r.sess.release(r)
	r.sess.opts.logger.Debug("reader cancelled",
		zap.Int64("start", r.start),
		zap.Int64("end", r.end),
		zap.NamedError("reason", reason),
	)
}

// FullReader delivers the whole document from the session's probe response.
type FullReader struct {
	*reader
}

// IsStreamingSupported reports whether the body is delivered in several
// chunks as it arrives. Valid once HeadersReady is closed.
func (f *FullReader) IsStreamingSupported() bool {
	c, _ := f.sess.readyCapability()
	return c.IsStreamingSupported
}

// IsRangeSupported reports whether range readers can be used. Valid once
// HeadersReady is closed.
func (f *FullReader) IsRangeSupported() bool {
	c, _ := f.sess.readyCapability()
	return c.IsRangeSupported
}

// ContentLength returns the document length, or -1 when unknown.
func (f *FullReader) ContentLength() int64 {
	c, ok := f.sess.readyCapability()
	if !ok {
		return -1
	}
	return c.TotalLength
}

// Filename returns the filename suggested by the server, if any.
func (f *FullReader) Filename() (string, bool) {
	c, _ := f.sess.readyCapability()
	return c.SuggestedFilename, c.SuggestedFilename != ""
}

// RangeReader delivers the byte span [start, end) of the document.
type RangeReader struct {
	*reader
}

// Range returns the span covered by the reader.
func (r *RangeReader) Range() (start, end int64) {
	return r.start, r.end
}

// Copy drains r into w and returns the number of bytes written. A reader
// that ends because it was cancelled yields its cancel reason.
func Copy(ctx context.Context, w io.Writer, r ChunkReader) (int64, error) {
	var written int64
	for {
		res, err := r.Read(ctx)
		if err != nil {
			return written, err
		}
		if res.Done {
			if r.State() == StateCancelled {
				return written, r.Err()
			}
			return written, nil
		}
		n, err := w.Write(res.Chunk)
		written += int64(n)
		if err != nil {
			r.Cancel(err)
			return written, err
		}
	}
}
