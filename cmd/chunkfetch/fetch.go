package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"

	"github.com/ligustah/chunkfetch/internal/config"
	"github.com/ligustah/chunkfetch/internal/fetcher"
	cfhttp "github.com/ligustah/chunkfetch/internal/http"
	"github.com/ligustah/chunkfetch/internal/log"
	"github.com/ligustah/chunkfetch/internal/progress"
	"github.com/ligustah/chunkfetch/pkg/netstream"
)

// runFetch fetches a document from an HTTP URL into object storage, using
// parallel range requests when the server allows them.
func runFetch(args []string) int {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)

	configPath := fs.String("config", "", "YAML configuration file")
	var override config.Config
	fs.StringVar(&override.URL, "url", "", "Source URL to fetch (required)")
	fs.StringVar(&override.Bucket, "bucket", "", "Destination bucket URL (required)")
	fs.StringVar(&override.Object, "object", "", "Destination object path (default: suggested filename)")
	fs.IntVar(&override.Workers, "workers", 0, "Number of parallel range requests (default 8)")
	partSize := fs.String("part-size", "", "Bytes per range request (default 8MiB)")
	chunkSize := fs.String("chunk-size", "", "Delivery chunk size (default 64KiB)")
	fs.Int64Var(&override.Length, "length", 0, "Document length hint in bytes")
	fs.BoolVar(&override.DisableStream, "disable-stream", false, "Deliver the full response as one chunk")
	fs.BoolVar(&override.DisableRange, "disable-range", false, "Never issue range requests")
	fs.BoolVar(&override.Progress, "progress", false, "Show progress output")
	fs.BoolVar(&override.Force, "force", false, "Overwrite an existing object")
	fs.StringVar(&override.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.DurationVar(&override.HTTP.HeaderTimeout, "header-timeout", 0, "Timeout for response headers (default 30s)")
	rate := fs.String("rate", "", "Bandwidth limit per second, e.g. 10MB")
	fs.StringVar(&override.HTTP.UserAgent, "user-agent", "", "User-Agent header")
	fs.BoolVar(&override.HTTP.Buffered, "buffered", false, "Read each response in full before delivering it")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: chunkfetch fetch [options]

Fetch a document from an HTTP URL and store it in object storage.
Settings are read from -config, then CHUNKFETCH_* variables, then flags.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		return ExitInvalidArgs
	}

	for flagValue, dst := range map[*string]*int64{
		partSize:  &override.PartSize,
		chunkSize: &override.ChunkSize,
		rate:      &override.HTTP.BytesPerSecond,
	} {
		if *flagValue == "" {
			continue
		}
		n, err := progress.ParseBytes(*flagValue)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitInvalidArgs
		}
		*dst = n
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadFromFile(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitInvalidArgs
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	cfg = cfg.Merge(override)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fs.Usage()
		return ExitInvalidArgs
	}

	logger, err := log.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	defer logger.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	bkt, err := blob.OpenBucket(ctx, cfg.Bucket)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening bucket: %v\n", err)
		return ExitStorageError
	}
	defer bkt.Close()

	opts := fetcher.Options{
		Workers:       cfg.Workers,
		PartSize:      cfg.PartSize,
		ChunkSize:     int(cfg.ChunkSize),
		Length:        cfg.Length,
		DisableStream: cfg.DisableStream,
		DisableRange:  cfg.DisableRange,
		Force:         cfg.Force,
		HTTPOptions:   httpOptions(cfg),
		Logger:        logger,
	}
	if cfg.Progress {
		opts.ProgressOutput = os.Stderr
	}

	res, err := fetcher.Fetch(ctx, cfg.URL, bkt, cfg.Object, opts)
	if err != nil {
		if ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, "[chunkfetch] Fetch interrupted, nothing was stored")
			return ExitGeneralError
		}
		return reportFetchError(logger, err)
	}

	mode := "single request"
	if res.Ranged {
		mode = fmt.Sprintf("%d range requests", res.Parts)
	}
	fmt.Fprintf(os.Stderr, "[chunkfetch] Stored %s/%s (%s, %s)\n",
		cfg.Bucket, res.Object, progress.FormatBytes(res.Size), mode)
	fmt.Fprintln(stdout, res.Object)

	return ExitSuccess
}

func httpOptions(cfg config.Config) cfhttp.Options {
	return cfhttp.Options{
		MaxIdleConnsPerHost: cfg.Workers * 2,
		HeaderTimeout:       cfg.HTTP.HeaderTimeout,
		Buffered:            cfg.HTTP.Buffered,
		BytesPerSecond:      int(cfg.HTTP.BytesPerSecond),
		UserAgent:           cfg.HTTP.UserAgent,
	}
}

// reportFetchError prints err and maps it to an exit code.
func reportFetchError(logger *zap.Logger, err error) int {
	logger.Debug("fetch failed", zap.Error(err))

	var pe *netstream.ProbeError
	var se *fetcher.StorageError
	switch {
	case errors.As(err, &pe):
		if pe.StatusCode != 0 {
			fmt.Fprintf(os.Stderr, "Error accessing source URL: %v\n", cfhttp.StatusError(pe.StatusCode))
		} else {
			fmt.Fprintf(os.Stderr, "Error accessing source URL: %v\n", pe.Err)
		}
		return ExitSourceNotAccess
	case errors.Is(err, netstream.ErrRangeUnsupported):
		fmt.Fprintln(os.Stderr, "Error: Server stopped honoring range requests, retry with -disable-range")
		return ExitRangeNotSupported
	case errors.Is(err, fetcher.ErrObjectExists):
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Use -force to overwrite")
		return ExitObjectExists
	case errors.Is(err, fetcher.ErrNoObjectName):
		fmt.Fprintln(os.Stderr, "Error: no filename suggested by the server, use -object")
		return ExitInvalidArgs
	case errors.As(err, &se):
		fmt.Fprintf(os.Stderr, "Storage error (%s): %v\n", gcerrors.Code(se.Err), se)
		return ExitStorageError
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitGeneralError
	}
}
