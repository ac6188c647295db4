// Package http provides the net/http transport for netstream sessions.
//
// This package handles:
//   - Connection pooling for high parallelism
//   - Plain GET requests for the capability probe and full reads
//   - Range requests (end-exclusive spans mapped to inclusive Range headers)
//   - Optional body buffering to emulate a non-incremental transport
//   - Optional bandwidth limiting
//
// Nothing here retries; a failed request is reported to the caller.
//
// # Usage
//
//	client := http.NewClient(Options{
//	    MaxIdleConnsPerHost: 100,
//	    HeaderTimeout:       30 * time.Second,
//	})
//
//	sess, err := netstream.Open(ctx, client, netstream.Source{URL: url})
package http
