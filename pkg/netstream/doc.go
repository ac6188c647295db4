// Package netstream exposes an HTTP document as sequences of byte chunks.
//
// A [Session] is opened for one URL. Opening it issues a single GET whose
// response headers decide what the resource supports (the capability probe).
// The same response then backs the session's [FullReader]. When the server
// accepts byte ranges, any number of [RangeReader]s can be opened and read
// concurrently alongside or instead of the full reader.
//
// The network itself is behind the [Transport] interface, so the package can
// be driven by a real HTTP client or by a fake in tests.
//
// # Usage
//
//	sess, err := netstream.Open(ctx, transport, netstream.Source{
//	    URL:            url,
//	    RangeChunkSize: 64 * 1024,
//	})
//	if err != nil {
//	    return err
//	}
//	defer sess.Close()
//
//	capability, err := sess.Capability(ctx)
//	if err != nil {
//	    return err
//	}
//
//	if capability.IsRangeSupported {
//	    sess.FullReader().Cancel(errors.New("using ranges"))
//	    rr, err := sess.RangeReader(0, 1024)
//	    ...
//	}
//
// # Reading
//
// Every reader follows the same contract: Read returns non-empty chunks in
// source order until the data is exhausted or the reader is cancelled, then
// a single result with Done set. Further reads keep returning Done. Cancel is
// idempotent and safe after completion. Readers never block each other.
//
// # Errors
//
//   - [ProbeError]: the initial request failed; fatal to the session.
//   - [ErrRangeUnsupported]: ranges requested from a resource without them.
//   - [ErrInvalidRange]: range bounds outside the document.
//   - [TransportError]: a reader failed mid-stream; siblings are unaffected.
//
// Nothing in this package retries.
package netstream
