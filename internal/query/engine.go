// Package query answers filtered, paginated, aggregated queries over the bag
// cache and memoizes the results per store version.
package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	bberrors "github.com/bagbrowser/bagbrowser/internal/errors"
	"github.com/bagbrowser/bagbrowser/internal/logctx"
	"github.com/bagbrowser/bagbrowser/pkg/types"
)

// ReadOnlyStore is the part of the storage backend the engine needs.
type ReadOnlyStore interface {
	WithReadOnlyCursor(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// Engine computes query results directly against the store.
type Engine struct {
	store       ReadOnlyStore
	prefixMatch PrefixMatch
}

// NewEngine creates an engine using the given prefix comparison mode.
func NewEngine(store ReadOnlyStore, prefixMatch PrefixMatch) *Engine {
	if prefixMatch == "" {
		prefixMatch = DefaultPrefixMatch
	}
	return &Engine{store: store, prefixMatch: prefixMatch}
}

// PrefixMatch returns the engine's prefix comparison mode.
func (e *Engine) PrefixMatch() PrefixMatch {
	return e.prefixMatch
}

// bagColumns is the fixed projection read by scanBag.
const bagColumns = `space, external_identifier, version, created_date, file_count, total_file_size`

// Execute runs the aggregate, extension tally and page reads for qc inside a
// single read-only transaction, then re-sorts the page by numeric version.
func (e *Engine) Execute(ctx context.Context, qc QueryContext) (*Result, error) {
	qc = qc.withDefaults()
	if err := qc.Validate(); err != nil {
		return nil, err
	}

	f := buildFilter(qc, e.prefixMatch)
	result := emptyResult()
	var tAgg, tTally, tPage time.Duration
	start := time.Now()

	err := e.store.WithReadOnlyCursor(ctx, func(tx *sql.Tx) error {
		t := time.Now()
		if err := readAggregates(ctx, tx, f, result); err != nil {
			return err
		}
		tAgg = time.Since(t)

		t = time.Now()
		if err := readTally(ctx, tx, f, result); err != nil {
			return err
		}
		tTally = time.Since(t)

		t = time.Now()
		if err := readPage(ctx, tx, f, qc, result); err != nil {
			return err
		}
		tPage = time.Since(t)
		return nil
	})
	if err != nil {
		var typed *bberrors.BagBrowserError
		if errors.As(err, &typed) {
			return nil, err
		}
		return nil, bberrors.NewQueryError(bberrors.CodeQueryFailed,
			fmt.Sprintf("query space %q", qc.Space), err)
	}

	SortBags(result.Bags)

	elapsed := time.Since(start)
	queryDuration.Observe(elapsed.Seconds())
	log := logctx.FromContext(ctx)
	log.Debug().
		Str("space", qc.Space).
		Str("prefix", qc.ExternalIdentifierPrefix).
		Int("page", qc.Page).
		Int64("total_count", result.TotalCount).
		Dur("count", tAgg).
		Dur("tally", tTally).
		Dur("bags", tPage).
		Dur("elapsed", elapsed).
		Msg("query computed")

	return result, nil
}

func readAggregates(ctx context.Context, tx *sql.Tx, f filter, result *Result) error {
	row := tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(file_count), 0), COALESCE(SUM(total_file_size), 0), COUNT(*)
		FROM bags
		WHERE `+f.where, f.args...)
	if err := row.Scan(&result.TotalFileCount, &result.TotalFileSize, &result.TotalCount); err != nil {
		return fmt.Errorf("query: aggregate: %w", err)
	}
	if result.TotalCount == 0 {
		result.TotalFileCount = 0
		result.TotalFileSize = 0
	}
	return nil
}

func readTally(ctx context.Context, tx *sql.Tx, f filter, result *Result) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT extension, SUM(count)
		FROM file_extensions
		WHERE bag_id IN (SELECT id FROM bags WHERE `+f.where+`)
		GROUP BY extension`, f.args...)
	if err != nil {
		return fmt.Errorf("query: tally: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ext string
		var count int64
		if err := rows.Scan(&ext, &count); err != nil {
			return fmt.Errorf("query: scan tally: %w", err)
		}
		result.FileExtTally[ext] = count
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("query: tally: %w", err)
	}
	return nil
}

func readPage(ctx context.Context, tx *sql.Tx, f filter, qc QueryContext, result *Result) error {
	args := append(append([]interface{}{}, f.args...), qc.PageSize, qc.Offset())
	rows, err := tx.QueryContext(ctx,
		`SELECT `+bagColumns+`
		FROM bags
		WHERE `+f.where+`
		ORDER BY id
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return fmt.Errorf("query: page: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		bag, err := scanBag(rows)
		if err != nil {
			return err
		}
		result.Bags = append(result.Bags, bag)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("query: page: %w", err)
	}
	return nil
}

// scanBag maps one bagColumns row onto a Bag. Page rows carry no per-bag
// extension tally.
func scanBag(rows *sql.Rows) (*types.Bag, error) {
	var id types.BagIdentifier
	var createdDate string
	var fileCount, totalFileSize int64
	if err := rows.Scan(&id.Space, &id.ExternalIdentifier, &id.Version, &createdDate, &fileCount, &totalFileSize); err != nil {
		return nil, fmt.Errorf("query: scan bag: %w", err)
	}
	return types.NewBag(id, createdDate, fileCount, totalFileSize, nil), nil
}
