// Package fetcher copies a remote document into cloud storage through a
// netstream session.
//
// The session's capability probe decides the mode:
//
//   - Range mode: the full reader is cancelled and the document is split into
//     parts that are requested concurrently. Parts are written to the object
//     in order; at most Workers parts are fetched or buffered at any time.
//   - Stream mode: the probe response itself is copied to the object.
//
// # Usage
//
//	res, err := fetcher.Fetch(ctx, url, bucket, "", fetcher.Options{
//	    Workers:  8,
//	    PartSize: 8 * 1024 * 1024,
//	})
//
// An empty destination names the object after the server-suggested filename,
// falling back to the last element of the URL path.
//
// # Failure
//
// Any failure cancels the context of the object writer, so no partial object
// is left behind. Nothing is retried.
package fetcher
