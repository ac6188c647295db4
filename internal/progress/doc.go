// Package progress provides progress reporting for fetches.
//
// This package outputs human-readable progress information to stderr,
// including completion percentage, transfer speed, and ETA. When the
// document length is unknown, only the byte count and speed are shown.
//
// # Usage
//
//	reporter := progress.NewReporter(Options{
//	    TotalSize:  totalBytes,
//	    TotalParts: numRanges,
//	})
//
//	reporter.Start()
//	defer reporter.Stop()
//
//	// Update as bytes arrive
//	reporter.SetLoaded(n)
//
// # Output Format
//
//	[chunkfetch] Fetching: https://example.com/report.pdf
//	[chunkfetch] Total size: 2.5 GiB | Ranges: 40 x 64 MiB | Workers: 8
//	[chunkfetch] Progress: 45.2% | 1.1 GiB / 2.5 GiB | Speed: 120 MiB/s | ETA: 12s
//	[chunkfetch] Ranges: 18 completed | 8 in-progress | 14 pending
package progress
