// Package catalog owns the bag cache: schema creation, bulk ingestion and the
// cached query path used by the web layer.
package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bagbrowser/bagbrowser/internal/db"
	bberrors "github.com/bagbrowser/bagbrowser/internal/errors"
	"github.com/bagbrowser/bagbrowser/internal/query"
	"github.com/bagbrowser/bagbrowser/pkg/types"
)

// Options configures the query side of a Catalog.
type Options struct {
	PrefixMatch query.PrefixMatch
	CacheSize   int
}

// Catalog is the long-lived service object over one cache database. It owns
// the query result cache; create one per database and share it.
type Catalog struct {
	store  *db.Store
	engine *query.Engine
	cache  *query.Cache
	owned  bool
}

// Open opens the database at path and returns a Catalog that closes it on Close.
func Open(ctx context.Context, path string, opts Options) (*Catalog, error) {
	store, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	c, err := New(ctx, store, opts)
	if err != nil {
		store.Close()
		return nil, err
	}
	c.owned = true
	return c, nil
}

// New creates the schema if needed, checks the schema version and builds the
// query engine and cache. Calling it on an initialized store is a no-op for
// the schema.
func New(ctx context.Context, store *db.Store, opts Options) (*Catalog, error) {
	if err := initSchema(ctx, store); err != nil {
		return nil, err
	}

	engine := query.NewEngine(store, opts.PrefixMatch)
	cache, err := query.NewCache(opts.CacheSize, store, engine)
	if err != nil {
		return nil, err
	}
	return &Catalog{store: store, engine: engine, cache: cache}, nil
}

func initSchema(ctx context.Context, store *db.Store) error {
	return store.WithCursor(ctx, func(tx *sql.Tx) error {
		var version int
		if err := tx.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
			return fmt.Errorf("catalog: read schema version: %w", err)
		}
		if version != 0 && version != SchemaVersion {
			return bberrors.NewStorageError(bberrors.CodeSchemaMismatch,
				fmt.Sprintf("database schema version %d, expected %d", version, SchemaVersion), nil)
		}

		for _, stmt := range AllSchemaSQL() {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("catalog: create schema: %w", err)
			}
		}

		if version == 0 {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
				return fmt.Errorf("catalog: set schema version: %w", err)
			}
		}
		return nil
	})
}

// Store returns the underlying storage backend.
func (c *Catalog) Store() *db.Store {
	return c.store
}

// PrefixMatch returns the prefix comparison mode used by queries.
func (c *Catalog) PrefixMatch() query.PrefixMatch {
	return c.engine.PrefixMatch()
}

// KnownIDs returns the id of every stored bag.
func (c *Catalog) KnownIDs(ctx context.Context) (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	err := c.store.WithReadOnlyCursor(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, "SELECT id FROM bags")
		if err != nil {
			return fmt.Errorf("catalog: known ids: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("catalog: scan id: %w", err)
			}
			ids[id] = struct{}{}
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Spaces returns the number of stored bags in each space.
func (c *Catalog) Spaces(ctx context.Context) (map[string]int64, error) {
	spaces := make(map[string]int64)
	err := c.store.WithReadOnlyCursor(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, "SELECT space, COUNT(*) FROM bags GROUP BY space")
		if err != nil {
			return fmt.Errorf("catalog: spaces: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var space string
			var n int64
			if err := rows.Scan(&space, &n); err != nil {
				return fmt.Errorf("catalog: scan space: %w", err)
			}
			spaces[space] = n
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return spaces, nil
}

// Bag returns one stored bag with its full extension tally.
func (c *Catalog) Bag(ctx context.Context, id types.BagIdentifier) (*types.Bag, error) {
	var bag *types.Bag
	err := c.store.WithReadOnlyCursor(ctx, func(tx *sql.Tx) error {
		var createdDate string
		var fileCount, totalFileSize int64
		err := tx.QueryRowContext(ctx,
			"SELECT created_date, file_count, total_file_size FROM bags WHERE id = ?", id.ID(),
		).Scan(&createdDate, &fileCount, &totalFileSize)
		if err == sql.ErrNoRows {
			return bberrors.NewQueryError(bberrors.CodeBagNotFound,
				fmt.Sprintf("bag %s not found", id), nil)
		}
		if err != nil {
			return fmt.Errorf("catalog: get bag %s: %w", id, err)
		}

		rows, err := tx.QueryContext(ctx,
			"SELECT extension, count FROM file_extensions WHERE bag_id = ?", id.ID())
		if err != nil {
			return fmt.Errorf("catalog: get tally %s: %w", id, err)
		}
		defer rows.Close()

		tally := make(map[string]int64)
		for rows.Next() {
			var ext string
			var n int64
			if err := rows.Scan(&ext, &n); err != nil {
				return fmt.Errorf("catalog: scan tally: %w", err)
			}
			tally[ext] = n
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("catalog: get tally %s: %w", id, err)
		}

		bag = types.NewBag(id, createdDate, fileCount, totalFileSize, tally)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bag, nil
}

// Query answers qc through the result cache.
func (c *Catalog) Query(ctx context.Context, qc query.QueryContext) (*query.Result, error) {
	return c.cache.Query(ctx, qc)
}

// QueryUncached answers qc directly against the store, bypassing the cache.
// Use it when a write made within the last second must be visible.
func (c *Catalog) QueryUncached(ctx context.Context, qc query.QueryContext) (*query.Result, error) {
	return c.engine.Execute(ctx, qc)
}

// Invalidate drops every cached query result.
func (c *Catalog) Invalidate() {
	c.cache.Invalidate()
}

// Close releases the database if this Catalog opened it.
func (c *Catalog) Close() error {
	if !c.owned {
		return nil
	}
	return c.store.Close()
}
