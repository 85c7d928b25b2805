package logging

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ProgressTracker counts processed items against an approximate total and
// logs periodic progress lines. It is safe for concurrent use.
type ProgressTracker struct {
	phase     string
	total     int64
	done      atomic.Int64
	skipped   atomic.Int64
	startTime time.Time
	every     int64
	log       zerolog.Logger
}

// NewProgressTracker creates a tracker that logs every `every` items.
// A non-positive every disables periodic logging.
func NewProgressTracker(phase string, total int64, every int64, log zerolog.Logger) *ProgressTracker {
	return &ProgressTracker{
		phase:     phase,
		total:     total,
		every:     every,
		startTime: time.Now(),
		log:       log,
	}
}

// RecordCompletion marks one item as processed.
func (pt *ProgressTracker) RecordCompletion() {
	n := pt.done.Add(1)
	pt.maybeLog(n + pt.skipped.Load())
}

// RecordSkip marks one item as skipped.
func (pt *ProgressTracker) RecordSkip() {
	n := pt.skipped.Add(1)
	pt.maybeLog(n + pt.done.Load())
}

func (pt *ProgressTracker) maybeLog(seen int64) {
	if pt.every <= 0 || seen%pt.every != 0 {
		return
	}
	pt.log.Info().
		Str("phase", pt.phase).
		Int64("done", pt.done.Load()).
		Int64("skipped", pt.skipped.Load()).
		Int64("total", pt.total).
		Float64("pct", pt.ProgressPct()).
		Dur("eta", pt.ETA()).
		Msg("progress")
}

// Progress returns the processed, skipped and total counts.
func (pt *ProgressTracker) Progress() (done, skipped, total int64) {
	return pt.done.Load(), pt.skipped.Load(), pt.total
}

// ProgressPct returns progress in the range 0-100. The total is approximate,
// so the value is clamped.
func (pt *ProgressTracker) ProgressPct() float64 {
	if pt.total <= 0 {
		return 100
	}
	pct := float64(pt.done.Load()+pt.skipped.Load()) * 100 / float64(pt.total)
	if pct > 100 {
		return 100
	}
	return pct
}

// ETA estimates the remaining time from the average rate so far.
func (pt *ProgressTracker) ETA() time.Duration {
	seen := pt.done.Load() + pt.skipped.Load()
	remaining := pt.total - seen
	if seen == 0 || remaining <= 0 {
		return 0
	}
	perItem := time.Since(pt.startTime) / time.Duration(seen)
	return perItem * time.Duration(remaining)
}

// Elapsed returns the time since the tracker was created.
func (pt *ProgressTracker) Elapsed() time.Duration {
	return time.Since(pt.startTime)
}
