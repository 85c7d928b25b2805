package db

import (
	"errors"

	"github.com/mattn/go-sqlite3"

	bberrors "github.com/bagbrowser/bagbrowser/internal/errors"
)

// ClassifyError maps SQLite driver failures onto the typed error taxonomy.
// Errors that are already typed, and errors SQLite did not produce, are
// returned unchanged.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	var typed *bberrors.BagBrowserError
	if errors.As(err, &typed) {
		return err
	}
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return err
	}

	switch se.Code {
	case sqlite3.ErrReadonly:
		return bberrors.NewStorageError(bberrors.CodeReadOnlyViolation,
			"write attempted on read-only connection", err)
	case sqlite3.ErrConstraint:
		if se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || se.ExtendedCode == sqlite3.ErrConstraintUnique {
			return bberrors.NewIngestError(bberrors.CodeDuplicateBag, "bag already stored", err)
		}
		return err
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return bberrors.NewStorageError(bberrors.CodeBackendBusy, "database is locked", err)
	case sqlite3.ErrCantOpen, sqlite3.ErrNotADB, sqlite3.ErrCorrupt, sqlite3.ErrPerm, sqlite3.ErrIoErr:
		return bberrors.NewStorageError(bberrors.CodeBackendUnavailable, "database unavailable", err)
	default:
		return err
	}
}
