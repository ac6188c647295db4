package progress

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Options configures the progress reporter.
type Options struct {
	// TotalSize is the document size in bytes, or -1 when unknown.
	TotalSize int64

	// TotalParts is the number of range requests, 1 for a full read.
	TotalParts int

	// Workers is the number of parallel range requests.
	Workers int

	// Output is where to write progress output.
	// Default: os.Stderr
	Output io.Writer

	// UpdateInterval is how often to update the progress display.
	// Default: 500ms
	UpdateInterval time.Duration

	// SourceURL is the URL being fetched (for display).
	SourceURL string

	// PartSize is the size of each range request (for display).
	PartSize int64
}

// Reporter outputs human-readable progress information.
type Reporter struct {
	opts Options

	mu             sync.Mutex
	loadedBytes    atomic.Int64
	totalSize      atomic.Int64
	completedParts atomic.Int32
	inProgress     atomic.Int32
	startTime      time.Time
	lastUpdate     time.Time
	lastBytes      int64
	started        bool
	stopped        bool
	stopCh         chan struct{}
	doneCh         chan struct{}
}

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.UpdateInterval == 0 {
		opts.UpdateInterval = 500 * time.Millisecond
	}
	if opts.TotalParts == 0 {
		opts.TotalParts = 1
	}

	r := &Reporter{
		opts:   opts,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	r.totalSize.Store(opts.TotalSize)
	return r
}

// Start begins outputting progress information.
func (r *Reporter) Start() {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.startTime = time.Now()
	r.lastUpdate = r.startTime
	r.mu.Unlock()

	fmt.Fprintf(r.opts.Output, "[chunkfetch] Fetching: %s\n", r.opts.SourceURL)
	if r.opts.TotalParts > 1 {
		fmt.Fprintf(r.opts.Output, "[chunkfetch] Total size: %s | Ranges: %d x %s | Workers: %d\n",
			formatSize(r.totalSize.Load()),
			r.opts.TotalParts,
			formatBytes(r.opts.PartSize),
			r.opts.Workers,
		)
	} else {
		fmt.Fprintf(r.opts.Output, "[chunkfetch] Total size: %s | Single request\n",
			formatSize(r.totalSize.Load()))
	}

	go r.updateLoop()
}

// Stop stops the reporter and waits for the final status line.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	started := r.started
	r.mu.Unlock()

	close(r.stopCh)
	if started {
		<-r.doneCh
	}
}

// SetLoaded records the number of bytes received so far. Values lower than
// the current count are ignored, so callers may report out of order.
func (r *Reporter) SetLoaded(n int64) {
	for {
		cur := r.loadedBytes.Load()
		if n <= cur || r.loadedBytes.CompareAndSwap(cur, n) {
			return
		}
	}
}

// PartStarted marks a range request as in progress.
func (r *Reporter) PartStarted() {
	r.inProgress.Add(1)
}

// PartCompleted marks a range request as completed.
func (r *Reporter) PartCompleted() {
	r.completedParts.Add(1)
	r.inProgress.Add(-1)
}

// PartFailed marks a range request as failed (removes from in-progress).
func (r *Reporter) PartFailed() {
	r.inProgress.Add(-1)
}

func (r *Reporter) updateLoop() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.printFinalStatus()
			return
		case <-ticker.C:
			r.printProgress()
		}
	}
}

func (r *Reporter) printProgress() {
	now := time.Now()
	loaded := r.loadedBytes.Load()
	total := r.totalSize.Load()
	completedParts := int(r.completedParts.Load())
	inProgress := int(r.inProgress.Load())

	elapsed := now.Sub(r.lastUpdate).Seconds()
	if elapsed < 0.1 {
		elapsed = 0.1
	}
	speed := float64(loaded-r.lastBytes) / elapsed

	r.lastUpdate = now
	r.lastBytes = loaded

	percent := "?"
	eta := "unknown"
	if total > 0 {
		percent = fmt.Sprintf("%.1f%%", float64(loaded)/float64(total)*100)
		if speed > 0 {
			remaining := float64(total - loaded)
			eta = formatDuration(time.Duration(remaining / speed * float64(time.Second)))
		} else {
			eta = "calculating..."
		}
	}

	pending := r.opts.TotalParts - completedParts - inProgress
	if pending < 0 {
		pending = 0
	}

	fmt.Fprintf(r.opts.Output, "\r[chunkfetch] Progress: %s | %s / %s | Speed: %s/s | ETA: %s    ",
		percent,
		formatBytes(loaded),
		formatSize(total),
		formatBytes(int64(speed)),
		eta,
	)
	if r.opts.TotalParts > 1 {
		fmt.Fprintf(r.opts.Output, "\n[chunkfetch] Ranges: %d completed | %d in-progress | %d pending    \033[A",
			completedParts,
			inProgress,
			pending,
		)
	}
}

func (r *Reporter) printFinalStatus() {
	loaded := r.loadedBytes.Load()
	duration := time.Since(r.startTime)
	avgSpeed := float64(loaded) / max(duration.Seconds(), 0.001)

	fmt.Fprintf(r.opts.Output, "\r[chunkfetch] Progress: %s / %s | Speed: %s/s | Done    \n",
		formatBytes(loaded),
		formatSize(r.totalSize.Load()),
		formatBytes(int64(avgSpeed)),
	)
	if r.opts.TotalParts > 1 {
		fmt.Fprintf(r.opts.Output, "[chunkfetch] Ranges: %d completed    \n", r.completedParts.Load())
	}
	fmt.Fprintf(r.opts.Output, "[chunkfetch] Total time: %s | Average speed: %s/s\n",
		formatDuration(duration),
		formatBytes(int64(avgSpeed)),
	)
}

func formatSize(b int64) string {
	if b < 0 {
		return "unknown"
	}
	return formatBytes(b)
}

// formatBytes formats bytes with binary units. One decimal is shown below 100
// of a unit.
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}

	suffixes := []string{"KiB", "MiB", "GiB", "TiB", "PiB"}
	v := float64(b) / unit
	i := 0
	for v >= unit && i < len(suffixes)-1 {
		v /= unit
		i++
	}
	if v < 100 {
		return fmt.Sprintf("%.1f %s", v, suffixes[i])
	}
	return fmt.Sprintf("%.0f %s", v, suffixes[i])
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// FormatBytes is exported for use by other packages.
func FormatBytes(b int64) string {
	return formatBytes(b)
}

var byteUnits = []struct {
	suffix     string
	multiplier int64
}{
	{"TiB", 1 << 40},
	{"GiB", 1 << 30},
	{"MiB", 1 << 20},
	{"KiB", 1 << 10},
	{"TB", 1e12},
	{"GB", 1e9},
	{"MB", 1e6},
	{"KB", 1e3},
	{"B", 1},
}

// ParseBytes parses a human-readable byte string such as "64KiB" or "1MB".
// IEC suffixes are binary, SI suffixes decimal.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	multiplier := int64(1)
	num := s
	for _, u := range byteUnits {
		if strings.HasSuffix(s, u.suffix) {
			multiplier = u.multiplier
			num = strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			break
		}
	}

	value, err := strconv.ParseFloat(num, 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid byte string: %q", s)
	}
	return int64(value * float64(multiplier)), nil
}
