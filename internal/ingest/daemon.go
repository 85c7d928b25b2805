package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bagbrowser/bagbrowser/internal/logctx"
	"github.com/bagbrowser/bagbrowser/pkg/logging"
)

// Daemon runs Freshen on a fixed interval.
type Daemon struct {
	freshener *Freshener
	interval  time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	lastMu    sync.Mutex
	lastStats Stats
	lastErr   error
	lastRun   time.Time
}

// NewDaemon creates a daemon running f every interval.
func NewDaemon(f *Freshener, interval time.Duration) *Daemon {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Daemon{freshener: f, interval: interval}
}

// Start begins the ingestion loop. It runs until ctx is cancelled or Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return fmt.Errorf("ingest: daemon is already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running = true
	d.done = make(chan struct{})

	go d.run(ctx)
	return nil
}

// Stop cancels the loop and waits for an in-flight run to finish.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}
	d.cancel()
	<-d.done
	d.running = false
	return nil
}

func (d *Daemon) run(ctx context.Context) {
	defer close(d.done)

	d.RunOnce(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single ingestion run tagged with a fresh run id.
func (d *Daemon) RunOnce(ctx context.Context) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}

	logger := logging.WithComponent("ingest").With().Str("run_id", uuid.NewString()).Logger()
	ctx = logctx.WithLogger(ctx, logger)

	stats, err := d.freshener.Freshen(ctx)

	d.lastMu.Lock()
	d.lastStats, d.lastErr, d.lastRun = stats, err, time.Now()
	d.lastMu.Unlock()
	return stats, err
}

// LastRun reports the outcome of the most recent run. The time is zero if
// no run has completed.
func (d *Daemon) LastRun() (time.Time, Stats, error) {
	d.lastMu.Lock()
	defer d.lastMu.Unlock()
	return d.lastRun, d.lastStats, d.lastErr
}
