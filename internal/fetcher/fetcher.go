package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"gocloud.dev/blob"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	cfhttp "github.com/ligustah/chunkfetch/internal/http"
	"github.com/ligustah/chunkfetch/internal/progress"
	"github.com/ligustah/chunkfetch/pkg/disposition"
	"github.com/ligustah/chunkfetch/pkg/netstream"
)

var (
	// ErrObjectExists is returned when the destination exists and Force is not set.
	ErrObjectExists = errors.New("fetcher: object already exists")

	// ErrNoObjectName is returned when no destination was given and neither the
	// server nor the URL suggest a name.
	ErrNoObjectName = errors.New("fetcher: cannot derive object name")
)

// StorageError reports a failed bucket operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Options configures a fetch.
type Options struct {
	// Workers is the number of parallel range requests.
	// Default: 8
	Workers int

	// PartSize is the number of bytes requested per range request.
	// Default: 8MiB
	PartSize int64

	// ChunkSize is the delivery chunk size of the session readers.
	// Default: netstream.DefaultRangeChunkSize
	ChunkSize int

	// Length is a length hint used when the server omits Content-Length.
	Length int64

	// DisableStream and DisableRange restrict the session.
	DisableStream bool
	DisableRange  bool

	// Force overwrites an existing object.
	Force bool

	// ProgressOutput receives progress output when set.
	ProgressOutput io.Writer

	// HTTPOptions configures the HTTP client. Ignored when Transport is set.
	HTTPOptions cfhttp.Options

	// Transport overrides the HTTP client.
	Transport netstream.Transport

	// Logger receives debug output. Default: no logging.
	Logger *zap.Logger
}

// Result describes a completed fetch.
type Result struct {
	Object      string
	Size        int64
	Ranged      bool
	Parts       int
	Filename    string
	ContentType string
	ETag        string
}

// Fetch copies the document at rawURL into bucket under dest.
func Fetch(ctx context.Context, rawURL string, bucket *blob.Bucket, dest string, opts Options) (*Result, error) {
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	if opts.PartSize <= 0 {
		opts.PartSize = 8 * 1024 * 1024
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	transport := opts.Transport
	if transport == nil {
		if opts.HTTPOptions.MaxIdleConnsPerHost == 0 {
			opts.HTTPOptions.MaxIdleConnsPerHost = cfhttp.DefaultOptions().MaxIdleConnsPerHost
		}
		transport = cfhttp.NewClient(opts.HTTPOptions)
	}
	log := opts.Logger.With(zap.String("url", rawURL))

	var reporter atomic.Pointer[progress.Reporter]
	sess, err := netstream.Open(ctx, transport, netstream.Source{
		URL:            rawURL,
		Length:         opts.Length,
		RangeChunkSize: opts.ChunkSize,
		DisableStream:  opts.DisableStream,
		DisableRange:   opts.DisableRange,
	},
		netstream.WithLogger(opts.Logger),
		netstream.WithProgress(func(p netstream.Progress) {
			if r := reporter.Load(); r != nil {
				r.SetLoaded(p.Loaded)
			}
		}),
	)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	c, err := sess.Capability(ctx)
	if err != nil {
		return nil, err
	}

	object := dest
	if object == "" {
		object = ObjectName(c.SuggestedFilename, rawURL)
		if object == "" {
			return nil, ErrNoObjectName
		}
	}

	if !opts.Force {
		exists, err := bucket.Exists(ctx, object)
		if err != nil {
			return nil, &StorageError{Op: "check object", Err: err}
		}
		if exists {
			return nil, fmt.Errorf("%w: %s", ErrObjectExists, object)
		}
	}

	res := &Result{
		Object:      object,
		Ranged:      c.IsRangeSupported,
		Parts:       1,
		Filename:    c.SuggestedFilename,
		ContentType: c.ContentType,
		ETag:        c.ETag,
	}
	var parts []part
	if res.Ranged {
		parts = splitRanges(c.TotalLength, opts.PartSize)
		res.Parts = len(parts)
	}

	if opts.ProgressOutput != nil {
		r := progress.NewReporter(progress.Options{
			TotalSize:  c.TotalLength,
			TotalParts: res.Parts,
			Workers:    opts.Workers,
			Output:     opts.ProgressOutput,
			SourceURL:  rawURL,
			PartSize:   opts.PartSize,
		})
		r.SetLoaded(sess.Progress().Loaded)
		reporter.Store(r)
		r.Start()
		defer r.Stop()
	}

	// Cancelling wctx discards the object.
	wctx, abort := context.WithCancel(ctx)
	defer abort()
	w, err := bucket.NewWriter(wctx, object, writerOptions(rawURL, c))
	if err != nil {
		return nil, &StorageError{Op: "create object writer", Err: err}
	}

	log.Info("fetching",
		zap.String("object", object),
		zap.Bool("ranged", res.Ranged),
		zap.Int("parts", res.Parts),
		zap.Int64("length", c.TotalLength),
	)

	if res.Ranged {
		sess.FullReader().Cancel(nil)
		err = fetchRanges(ctx, sess, w, parts, opts.Workers, reporter.Load(), log)
		res.Size = c.TotalLength
	} else {
		res.Size, err = fetchFull(ctx, sess, objectWriter{w}, reporter.Load())
	}
	if err != nil {
		abort()
		w.Close()
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, &StorageError{Op: "close object writer", Err: err}
	}
	log.Info("fetched", zap.String("object", object), zap.Int64("size", res.Size))
	return res, nil
}

func writerOptions(rawURL string, c netstream.Capability) *blob.WriterOptions {
	md := map[string]string{"source_url": rawURL}
	if c.ETag != "" {
		md["source_etag"] = c.ETag
	}
	opts := &blob.WriterOptions{
		ContentType: c.ContentType,
		Metadata:    md,
	}
	if c.SuggestedFilename != "" {
		opts.ContentDisposition = disposition.Format("attachment", c.SuggestedFilename)
	}
	return opts
}

// fetchFull copies the probe response to w.
func fetchFull(ctx context.Context, sess *netstream.Session, w io.Writer, reporter *progress.Reporter) (int64, error) {
	if reporter != nil {
		reporter.PartStarted()
	}
	n, err := netstream.Copy(ctx, w, sess.FullReader())
	if err != nil {
		if reporter != nil {
			reporter.PartFailed()
		}
		return n, fmt.Errorf("read document: %w", err)
	}
	if reporter != nil {
		reporter.PartCompleted()
	}
	return n, nil
}

// objectWriter marks write failures as storage errors.
type objectWriter struct {
	w io.Writer
}

func (o objectWriter) Write(p []byte) (int, error) {
	n, err := o.w.Write(p)
	if err != nil {
		err = &StorageError{Op: "write object", Err: err}
	}
	return n, err
}

type part struct {
	index      int
	start, end int64
	data       []byte
	ready      chan struct{}
}

// splitRanges divides [0, total) into spans of at most size bytes.
func splitRanges(total, size int64) []part {
	var parts []part
	for start := int64(0); start < total; start += size {
		parts = append(parts, part{
			index: len(parts),
			start: start,
			end:   min(start+size, total),
			ready: make(chan struct{}),
		})
	}
	return parts
}

// fetchRanges fetches parts concurrently and writes them to w in order. A
// part holds its semaphore slot until it has been written.
func fetchRanges(ctx context.Context, sess *netstream.Session, w io.Writer, parts []part, workers int, reporter *progress.Reporter, log *zap.Logger) error {
	sem := semaphore.NewWeighted(int64(workers))
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for i := range parts {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			p := &parts[i]
			g.Go(func() error {
				if reporter != nil {
					reporter.PartStarted()
				}
				data, err := fetchPart(gctx, sess, p)
				if err != nil {
					if reporter != nil {
						reporter.PartFailed()
					}
					return fmt.Errorf("fetch part %d [%d, %d): %w", p.index, p.start, p.end, err)
				}
				p.data = data
				close(p.ready)
				if reporter != nil {
					reporter.PartCompleted()
				}
				log.Debug("part fetched", zap.Int("part", p.index), zap.Int64("start", p.start))
				return nil
			})
		}
		return nil
	})

	g.Go(func() error {
		for i := range parts {
			p := &parts[i]
			select {
			case <-p.ready:
			case <-gctx.Done():
				return gctx.Err()
			}
			_, err := w.Write(p.data)
			p.data = nil
			sem.Release(1)
			if err != nil {
				return &StorageError{Op: "write object", Err: err}
			}
		}
		return nil
	})

	return g.Wait()
}

func fetchPart(ctx context.Context, sess *netstream.Session, p *part) ([]byte, error) {
	rr, err := sess.RangeReader(p.start, p.end)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Grow(int(p.end - p.start))
	if _, err := netstream.Copy(ctx, &buf, rr); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ObjectName derives an object name from a suggested filename, or from the
// last element of the URL path when there is none. Path separators and
// control characters are replaced with '_'. It returns "" when neither yields
// a usable name.
func ObjectName(suggested, rawURL string) string {
	if name := sanitizeName(suggested); name != "" {
		return name
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "/" {
		return ""
	}
	return sanitizeName(base)
}

func sanitizeName(name string) string {
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r < 0x20 || r == 0x7f {
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	switch name {
	case "", ".", "..":
		return ""
	}
	return name
}
