package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	cfhttp "github.com/ligustah/chunkfetch/internal/http"
	"github.com/ligustah/chunkfetch/internal/log"
	"github.com/ligustah/chunkfetch/pkg/netstream"
)

// probeReport is the JSON document printed by the probe command.
type probeReport struct {
	URL string `json:"url"`
	netstream.Capability
}

// runProbe opens a session, waits for the capability probe and prints the
// result. The probe response body is discarded.
func runProbe(args []string) int {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)

	url := fs.String("url", "", "URL to probe (required)")
	length := fs.Int64("length", 0, "Document length hint in bytes")
	chunkSize := fs.Int("chunk-size", netstream.DefaultRangeChunkSize, "Delivery chunk size in bytes")
	disableStream := fs.Bool("disable-stream", false, "Report as if streaming were disabled")
	disableRange := fs.Bool("disable-range", false, "Report as if range requests were disabled")
	buffered := fs.Bool("buffered", false, "Use a transport without incremental delivery")
	headerTimeout := fs.Duration("header-timeout", 30*time.Second, "Timeout for response headers")
	logLevel := fs.String("log-level", "warn", "Log level (debug, info, warn, error)")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: chunkfetch probe [options]

Report streaming and range support, length and suggested filename for a URL.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		return ExitInvalidArgs
	}
	if *url == "" {
		fmt.Fprintln(os.Stderr, "Error: -url is required")
		fs.Usage()
		return ExitInvalidArgs
	}

	logger, err := log.New(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	defer logger.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	opts := cfhttp.DefaultOptions()
	opts.HeaderTimeout = *headerTimeout
	opts.Buffered = *buffered

	sess, err := netstream.Open(ctx, cfhttp.NewClient(opts), netstream.Source{
		URL:            *url,
		Length:         *length,
		RangeChunkSize: *chunkSize,
		DisableStream:  *disableStream,
		DisableRange:   *disableRange,
	}, netstream.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	defer sess.Close()

	c, err := sess.Capability(ctx)
	if err != nil {
		var pe *netstream.ProbeError
		if errors.As(err, &pe) && pe.StatusCode != 0 {
			fmt.Fprintf(os.Stderr, "Error accessing source URL: %v\n", cfhttp.StatusError(pe.StatusCode))
		} else {
			fmt.Fprintf(os.Stderr, "Error accessing source URL: %v\n", err)
		}
		return ExitSourceNotAccess
	}
	sess.FullReader().Cancel(nil)

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(probeReport{URL: *url, Capability: c}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitGeneralError
	}
	return ExitSuccess
}
