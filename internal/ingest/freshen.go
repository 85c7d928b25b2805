// Package ingest copies bags from the manifest store into the local cache.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bagbrowser/bagbrowser/internal/catalog"
	bberrors "github.com/bagbrowser/bagbrowser/internal/errors"
	"github.com/bagbrowser/bagbrowser/internal/logctx"
	"github.com/bagbrowser/bagbrowser/internal/manifest"
	"github.com/bagbrowser/bagbrowser/pkg/logging"
	"github.com/bagbrowser/bagbrowser/pkg/types"
)

var (
	ingestBagsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bagbrowser_ingest_bags_total",
		Help: "Bags seen by ingestion, by outcome (stored, known, missing).",
	}, []string{"result"})
	ingestRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bagbrowser_ingest_runs_total",
		Help: "Completed ingestion runs, by status.",
	}, []string{"status"})
)

// Store is the part of the catalog ingestion writes through.
type Store interface {
	KnownIDs(ctx context.Context) (map[string]struct{}, error)
	BulkStore(ctx context.Context, fn func(w *catalog.BulkWriter) error, opts ...catalog.BulkOption) error
	Invalidate()
}

// Config tunes an ingestion run.
type Config struct {
	// BatchSize is the number of bags per commit.
	BatchSize int
	// FetchBatch is the number of manifests requested from the source at once.
	FetchBatch int
	// ProgressEvery logs a progress line every N bags; 0 disables it.
	ProgressEvery int64
}

// DefaultConfig returns the default ingestion configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize:     1,
		FetchBatch:    32,
		ProgressEvery: 1000,
	}
}

// Stats summarises one ingestion run.
type Stats struct {
	Listed   int
	Known    int
	Stored   int
	Missing  int
	Duration time.Duration
}

// Freshener brings the cache up to date with the manifest store.
type Freshener struct {
	store  Store
	source manifest.Source
	cfg    Config
}

// NewFreshener creates a Freshener.
func NewFreshener(store Store, source manifest.Source, cfg Config) *Freshener {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if cfg.FetchBatch < 1 {
		cfg.FetchBatch = DefaultConfig().FetchBatch
	}
	return &Freshener{store: store, source: source, cfg: cfg}
}

// Freshen stores every bag the source lists that the cache does not hold yet.
// Missing manifests are skipped; any other failure stops the run. Because
// known ids are skipped, an interrupted run can simply be restarted.
func (f *Freshener) Freshen(ctx context.Context) (Stats, error) {
	start := time.Now()
	log := logctx.FromContext(ctx)

	stats, err := f.freshen(ctx)
	stats.Duration = time.Since(start)

	if stats.Stored > 0 {
		f.store.Invalidate()
	}
	if err != nil {
		ingestRunsTotal.WithLabelValues("error").Inc()
		log.Error().Err(err).
			Int("stored", stats.Stored).
			Int("missing", stats.Missing).
			Msg("ingestion failed")
		return stats, err
	}

	ingestRunsTotal.WithLabelValues("ok").Inc()
	log.Info().
		Int("listed", stats.Listed).
		Int("known", stats.Known).
		Int("stored", stats.Stored).
		Int("missing", stats.Missing).
		Dur("elapsed", stats.Duration).
		Msg("ingestion complete")
	return stats, nil
}

func (f *Freshener) freshen(ctx context.Context) (Stats, error) {
	var stats Stats
	log := logctx.FromContext(ctx)

	known, err := f.store.KnownIDs(ctx)
	if err != nil {
		return stats, fmt.Errorf("ingest: load known ids: %w", err)
	}

	ids, err := f.source.Identifiers(ctx)
	if err != nil {
		return stats, fmt.Errorf("ingest: list bags: %w", err)
	}
	stats.Listed = len(ids)

	progress := logging.NewProgressTracker("freshen", int64(len(ids)), f.cfg.ProgressEvery, log)

	todo := make([]types.BagIdentifier, 0, len(ids))
	for _, id := range ids {
		if _, ok := known[id.ID()]; ok {
			stats.Known++
			progress.RecordSkip()
			continue
		}
		todo = append(todo, id)
	}
	ingestBagsTotal.WithLabelValues("known").Add(float64(stats.Known))

	log.Info().
		Int("listed", stats.Listed).
		Int("known", stats.Known).
		Int("todo", len(todo)).
		Msg("starting ingestion")
	if len(todo) == 0 {
		return stats, nil
	}

	var writer *catalog.BulkWriter
	err = f.store.BulkStore(ctx, func(w *catalog.BulkWriter) error {
		writer = w
		for lo := 0; lo < len(todo); lo += f.cfg.FetchBatch {
			hi := min(lo+f.cfg.FetchBatch, len(todo))
			chunk := todo[lo:hi]

			bags, errs, err := f.source.GetBags(ctx, chunk)
			if err != nil {
				return fmt.Errorf("ingest: fetch manifests: %w", err)
			}

			for _, id := range chunk {
				if fetchErr := errs[id]; fetchErr != nil {
					if bberrors.IsNotFound(fetchErr) {
						stats.Missing++
						ingestBagsTotal.WithLabelValues("missing").Inc()
						progress.RecordSkip()
						log.Warn().Str("bag_id", id.ID()).Msg("manifest not found, skipping")
						continue
					}
					return fetchErr
				}

				bag, ok := bags[id]
				if !ok {
					return bberrors.NewInternalError(fmt.Sprintf("source returned no bag or error for %s", id), nil)
				}
				if err := w.StoreBag(ctx, bag); err != nil {
					return fmt.Errorf("ingest: store %s: %w", id, err)
				}
				progress.RecordCompletion()
			}
		}
		return nil
	}, catalog.WithBatchSize(f.cfg.BatchSize))

	// Only committed bags count; a failed batch is rolled back.
	if writer != nil {
		stats.Stored = writer.Stored()
		ingestBagsTotal.WithLabelValues("stored").Add(float64(stats.Stored))
	}
	return stats, err
}
