package netstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Progress is the aggregate number of bytes delivered by all readers of a
// session. Total is -1 when the document length is unknown.
type Progress struct {
	Loaded int64
	Total  int64
}

type options struct {
	logger     *zap.Logger
	onProgress func(Progress)
}

// Option is a functional option for configuring a Session.
type Option func(*options)

// WithLogger sets the logger used for debug output. Default: no logging.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithProgress registers fn to be called after every delivered chunk. fn may
// be called concurrently from several readers.
func WithProgress(fn func(Progress)) Option {
	return func(o *options) {
		o.onProgress = fn
	}
}

// Session is one logical document fetch.
type Session struct {
	source    Source
	transport Transport
	opts      options

	ctx    context.Context
	cancel context.CancelFunc

	capReady   chan struct{}
	capability Capability
	capErr     error

	full *FullReader

	mu     sync.Mutex
	live   map[*reader]struct{}
	closed bool

	loaded atomic.Int64
}

// Open starts a session for src. The capability probe is issued right away;
// its response becomes the body of the session's full reader.
func Open(ctx context.Context, transport Transport, src Source, opts ...Option) (*Session, error) {
	if transport == nil {
		return nil, errors.New("netstream: transport is required")
	}
	if err := src.validate(); err != nil {
		return nil, err
	}
	if src.RangeChunkSize == 0 {
		src.RangeChunkSize = DefaultRangeChunkSize
	}

	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		source:    src,
		transport: transport,
		opts:      o,
		ctx:       sctx,
		cancel:    cancel,
		capReady:  make(chan struct{}),
		live:      make(map[*reader]struct{}),
	}
	s.full = &FullReader{newReader(s, 0, -1)}
	s.live[s.full.reader] = struct{}{}

	go s.probe()
	return s, nil
}

// Source returns the source the session was opened with.
func (s *Session) Source() Source { return s.source }

// CapabilityReady is closed once the probe finished, successfully or not.
func (s *Session) CapabilityReady() <-chan struct{} { return s.capReady }

// Capability waits for the probe result.
func (s *Session) Capability(ctx context.Context) (Capability, error) {
	select {
	case <-s.capReady:
		return s.capability, s.capErr
	case <-ctx.Done():
		return Capability{}, ctx.Err()
	}
}

// readyCapability returns the probe result without waiting.
func (s *Session) readyCapability() (Capability, bool) {
	select {
	case <-s.capReady:
		if s.capErr != nil {
			return Capability{TotalLength: -1}, false
		}
		return s.capability, true
	default:
		return Capability{TotalLength: -1}, false
	}
}

// FullReader returns the session's single full-document reader.
func (s *Session) FullReader() *FullReader { return s.full }

// RangeReader issues a request for the byte span [start, end) and returns a
// reader for it. It fails right away with ErrRangeUnsupported when ranges
// are disabled or the probe found them unsupported; if the probe is still
// running, that failure surfaces from the reader instead.
func (s *Session) RangeReader(start, end int64) (*RangeReader, error) {
	if s.source.DisableRange {
		return nil, ErrRangeUnsupported
	}
	if start < 0 || start >= end {
		return nil, fmt.Errorf("%w: [%d, %d)", ErrInvalidRange, start, end)
	}

	select {
	case <-s.capReady:
		if s.capErr != nil {
			return nil, s.capErr
		}
		if !s.capability.IsRangeSupported {
			return nil, ErrRangeUnsupported
		}
		if end > s.capability.TotalLength {
			return nil, fmt.Errorf("%w: [%d, %d) exceeds length %d", ErrInvalidRange, start, end, s.capability.TotalLength)
		}
	default:
		if s.source.Length > 0 && end > s.source.Length {
			return nil, fmt.Errorf("%w: [%d, %d) exceeds length %d", ErrInvalidRange, start, end, s.source.Length)
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	ctx, cancel := context.WithCancel(s.ctx)
	r := newReader(s, start, end)
	r.abort = cancel
	s.live[r] = struct{}{}
	s.mu.Unlock()

	go s.fetchRange(ctx, r)
	return &RangeReader{r}, nil
}

// Progress returns the aggregate bytes delivered so far.
func (s *Session) Progress() Progress {
	p := Progress{Loaded: s.loaded.Load(), Total: -1}
	if c, ok := s.readyCapability(); ok {
		p.Total = c.TotalLength
	} else if s.source.Length > 0 {
		p.Total = s.source.Length
	}
	return p
}

// Close cancels every live reader and the probe if it is still running.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	readers := make([]*reader, 0, len(s.live))
	for r := range s.live {
		readers = append(readers, r)
	}
	s.mu.Unlock()

	for _, r := range readers {
		r.Cancel(ErrSessionClosed)
	}
	s.cancel()
	return nil
}

func (s *Session) release(r *reader) {
	s.mu.Lock()
	delete(s.live, r)
	s.mu.Unlock()
}

func (s *Session) addProgress(n int64) {
	loaded := s.loaded.Add(n)
	if s.opts.onProgress == nil {
		return
	}
	p := s.Progress()
	p.Loaded = loaded
	s.opts.onProgress(p)
}

// probe issues the initial request and publishes the capability result.
func (s *Session) probe() {
	log := s.opts.logger.With(zap.String("url", s.source.URL))

	reqCtx, reqCancel := context.WithCancel(s.ctx)
	resp, err := s.transport.IssueRequest(reqCtx, s.source.URL, nil)
	if err != nil {
		reqCancel()
		s.publishFailure(&ProbeError{URL: s.source.URL, Err: err})
		return
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		reqCancel()
		s.publishFailure(&ProbeError{
			URL:        s.source.URL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("status %d", resp.StatusCode),
		})
		return
	}

	c := Capability{
		SuggestedFilename: suggestedFilename(resp.Header),
		ContentType:       resp.Header.Get("Content-Type"),
		ETag:              cleanETag(resp.Header.Get("ETag")),
	}

	rc := validateRangeCapabilities(resp.Header, s.source)
	c.TotalLength = rc.length
	confirmed := rc.declared
	if rc.allowed && !confirmed {
		if total, ok := s.trialRange(); ok {
			c.TotalLength = total
			confirmed = true
		}
	}
	c.IsRangeSupported = rc.allowed && confirmed &&
		worthRanging(c.TotalLength, s.source.RangeChunkSize)
	c.IsStreamingSupported = !s.source.DisableStream && s.transport.SupportsStreaming()

	s.capability = c
	close(s.capReady)

	log.Debug("capability probed",
		zap.Bool("streaming", c.IsStreamingSupported),
		zap.Bool("range", c.IsRangeSupported),
		zap.Int64("length", c.TotalLength),
		zap.String("filename", c.SuggestedFilename),
	)

	s.full.attach(resp.Body, reqCancel, !c.IsStreamingSupported)
}

func (s *Session) publishFailure(err error) {
	s.capErr = err
	close(s.capReady)
	s.opts.logger.Debug("probe failed", zap.String("url", s.source.URL), zap.Error(err))
	s.full.fail(err)
}

// trialRange learns the total length from a one-byte range request. The
// body is only read when the server honoured the range.
func (s *Session) trialRange() (int64, bool) {
	resp, err := s.transport.IssueRangeRequest(s.ctx, s.source.URL, 0, 1)
	if err != nil {
		return 0, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		return 0, false
	}
	if _, err := io.CopyN(io.Discard, resp.Body, 1); err != nil && err != io.EOF {
		return 0, false
	}
	_, _, total, err := ParseContentRange(resp.Header.Get("Content-Range"))
	if err != nil || total < 0 {
		return 0, false
	}
	return total, true
}

// fetchRange waits for the probe and issues the range request of r.
func (s *Session) fetchRange(ctx context.Context, r *reader) {
	select {
	case <-s.capReady:
	case <-ctx.Done():
		r.fail(ctx.Err())
		return
	}

	if s.capErr != nil {
		r.fail(s.capErr)
		return
	}
	if !s.capability.IsRangeSupported {
		r.fail(ErrRangeUnsupported)
		return
	}
	if r.end > s.capability.TotalLength {
		r.fail(fmt.Errorf("%w: [%d, %d) exceeds length %d", ErrInvalidRange, r.start, r.end, s.capability.TotalLength))
		return
	}

	resp, err := s.transport.IssueRangeRequest(ctx, s.source.URL, r.start, r.end)
	if err != nil {
		r.fail(&TransportError{Start: r.start, End: r.end, Err: err})
		return
	}
	if err := checkRangeResponse(resp, r.start); err != nil {
		resp.Body.Close()
		r.fail(&TransportError{Start: r.start, End: r.end, Err: err})
		return
	}

	r.attach(limitBody(resp.Body, r.end-r.start), nil, false)
}

func checkRangeResponse(resp *Response, start int64) error {
	switch resp.StatusCode {
	case http.StatusPartialContent:
	case http.StatusOK:
		return ErrRangeUnsupported
	default:
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if cr := resp.Header.Get("Content-Range"); cr != "" {
		first, _, _, err := ParseContentRange(cr)
		if err != nil {
			return err
		}
		if first != start {
			return fmt.Errorf("received range starting at %d, requested %d", first, start)
		}
	}
	return nil
}

type limitedBody struct {
	io.Reader
	io.Closer
}

func limitBody(body io.ReadCloser, n int64) io.ReadCloser {
	return limitedBody{Reader: io.LimitReader(body, n), Closer: body}
}
