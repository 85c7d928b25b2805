package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/bagbrowser/bagbrowser/internal/db"
	bberrors "github.com/bagbrowser/bagbrowser/internal/errors"
	"github.com/bagbrowser/bagbrowser/pkg/types"
)

// BulkOption configures a bulk store operation.
type BulkOption func(*BulkWriter)

// WithBatchSize commits after every n stored bags instead of after each one.
// Values below 1 are treated as 1.
func WithBatchSize(n int) BulkOption {
	return func(w *BulkWriter) {
		if n < 1 {
			n = 1
		}
		w.batchSize = n
	}
}

// BulkWriter stores bags over the single connection held by BulkStore.
// It is not safe for concurrent use.
type BulkWriter struct {
	conn      *sql.Conn
	batchSize int

	tx      *sql.Tx
	pending int
	stored  int
}

// BulkStore holds one read-write connection for the duration of fn and hands
// fn a writer over it. Bags still pending when fn returns nil are committed;
// if fn returns an error they are rolled back.
func (c *Catalog) BulkStore(ctx context.Context, fn func(w *BulkWriter) error, opts ...BulkOption) error {
	err := c.store.WithConn(ctx, func(conn *sql.Conn) error {
		w := &BulkWriter{conn: conn, batchSize: 1}
		for _, opt := range opts {
			opt(w)
		}

		if err := fn(w); err != nil {
			w.rollback()
			return err
		}
		return w.Flush(ctx)
	})
	return err
}

// StoreBag inserts the bag's extension rows then its bag row. The batch is
// committed once it reaches the configured size. Storing an id that already
// exists fails with a DUPLICATE_BAG error and rolls back the open batch.
func (w *BulkWriter) StoreBag(ctx context.Context, bag *types.Bag) error {
	if err := validateBag(bag); err != nil {
		return err
	}

	if w.tx == nil {
		tx, err := w.conn.BeginTx(ctx, nil)
		if err != nil {
			return db.ClassifyError(fmt.Errorf("catalog: begin bulk batch: %w", err))
		}
		w.tx = tx
	}

	if err := insertBag(ctx, w.tx, bag); err != nil {
		w.rollback()
		return db.ClassifyError(err)
	}

	w.pending++
	if w.pending >= w.batchSize {
		return w.Flush(ctx)
	}
	return nil
}

// Flush commits any pending bags.
func (w *BulkWriter) Flush(ctx context.Context) error {
	if w.tx == nil {
		return nil
	}
	tx, n := w.tx, w.pending
	w.tx, w.pending = nil, 0
	if err := tx.Commit(); err != nil {
		return db.ClassifyError(fmt.Errorf("catalog: commit bulk batch: %w", err))
	}
	w.stored += n
	return nil
}

// Stored returns the number of bags committed so far.
func (w *BulkWriter) Stored() int {
	return w.stored
}

// Pending returns the number of bags written but not yet committed.
func (w *BulkWriter) Pending() int {
	return w.pending
}

func (w *BulkWriter) rollback() {
	if w.tx != nil {
		w.tx.Rollback()
	}
	w.tx, w.pending = nil, 0
}

func insertBag(ctx context.Context, tx *sql.Tx, bag *types.Bag) error {
	id := bag.ID()

	exts := make([]string, 0, len(bag.FileExtTally))
	for ext := range bag.FileExtTally {
		exts = append(exts, ext)
	}
	sort.Strings(exts)

	for _, ext := range exts {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO file_extensions (bag_id, extension, count) VALUES (?, ?, ?)",
			id, ext, bag.FileExtTally[ext],
		); err != nil {
			return fmt.Errorf("catalog: store extensions for %s: %w", id, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO bags (id, space, external_identifier, version, created_date, file_count, total_file_size)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, bag.Space(), bag.ExternalIdentifier(), bag.Version(),
		bag.CreatedDate, bag.FileCount, bag.TotalFileSize,
	); err != nil {
		return fmt.Errorf("catalog: store bag %s: %w", id, err)
	}
	return nil
}

func validateBag(bag *types.Bag) error {
	switch {
	case bag == nil:
		return bberrors.NewValidationError(bberrors.CodeInvalidIdentifier, "nil bag")
	case bag.Space() == "" || bag.ExternalIdentifier() == "":
		return bberrors.NewValidationError(bberrors.CodeInvalidIdentifier,
			fmt.Sprintf("bag %q has an empty space or external identifier", bag.ID()))
	case bag.Version() < 0:
		return bberrors.NewValidationError(bberrors.CodeInvalidIdentifier,
			fmt.Sprintf("bag %q has a negative version", bag.ID()))
	case bag.FileCount < 0 || bag.TotalFileSize < 0:
		return bberrors.NewValidationError(bberrors.CodeInvalidIdentifier,
			fmt.Sprintf("bag %q has negative file totals", bag.ID()))
	}
	return nil
}
