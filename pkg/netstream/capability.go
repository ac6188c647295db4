package netstream

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ligustah/chunkfetch/pkg/disposition"
)

// DefaultRangeChunkSize is used when Source.RangeChunkSize is zero.
const DefaultRangeChunkSize = 64 * 1024

// Source describes the document a Session fetches. It is not modified after
// the session is opened.
type Source struct {
	// URL of the document.
	URL string

	// Length is the total document length if known in advance, 0 otherwise.
	// A server-declared length takes precedence, and the hint alone never
	// enables range requests.
	Length int64

	// RangeChunkSize is the maximum chunk size of range readers and of the
	// streamed full reader. Default: DefaultRangeChunkSize.
	RangeChunkSize int

	// DisableStream forces the full reader to deliver the body as one chunk.
	DisableStream bool

	// DisableRange prevents range readers from being used.
	DisableRange bool
}

func (s Source) validate() error {
	if s.URL == "" {
		return fmt.Errorf("%w: URL is required", ErrInvalidSource)
	}
	if s.Length < 0 {
		return fmt.Errorf("%w: negative length", ErrInvalidSource)
	}
	if s.RangeChunkSize < 0 {
		return fmt.Errorf("%w: negative range chunk size", ErrInvalidSource)
	}
	return nil
}

// Capability is what the probe learned about a resource. It is computed once
// per session and never changes afterwards.
type Capability struct {
	IsStreamingSupported bool   `json:"is_streaming_supported"`
	IsRangeSupported     bool   `json:"is_range_supported"`
	TotalLength          int64  `json:"total_length"`                 // -1 when unknown
	SuggestedFilename    string `json:"suggested_filename,omitempty"` // "" when none
	ContentType          string `json:"content_type,omitempty"`
	ETag                 string `json:"etag,omitempty"`
}

// rangeCheck is the header-only part of range capability validation.
type rangeCheck struct {
	allowed  bool  // headers permit range requests
	length   int64 // -1 when neither header nor hint declares it
	declared bool  // length comes from Content-Length
}

// validateRangeCapabilities inspects the probe response headers. It never
// issues requests; a length not declared by the server is confirmed by the
// caller. The source hint only fills in the length for display.
func validateRangeCapabilities(h http.Header, src Source) rangeCheck {
	rc := rangeCheck{length: -1}

	if v := h.Get("Content-Length"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			rc.length = n
			rc.declared = true
		}
	}
	if rc.length < 0 && src.Length > 0 {
		rc.length = src.Length
	}

	if src.DisableRange {
		return rc
	}
	if !strings.EqualFold(strings.TrimSpace(h.Get("Accept-Ranges")), "bytes") {
		return rc
	}
	if enc := strings.TrimSpace(h.Get("Content-Encoding")); enc != "" && !strings.EqualFold(enc, "identity") {
		return rc
	}
	rc.allowed = true
	return rc
}

// worthRanging reports whether a document of length n is large enough for
// range requests to pay off over a single full read.
func worthRanging(n int64, chunkSize int) bool {
	return n > 2*int64(chunkSize)
}

func suggestedFilename(h http.Header) string {
	name, ok := disposition.FilenameFromHeader(h.Get("Content-Disposition"))
	if !ok {
		return ""
	}
	return name
}

func cleanETag(etag string) string {
	etag = strings.TrimPrefix(etag, "W/")
	etag = strings.Trim(etag, `"`)
	return etag
}
