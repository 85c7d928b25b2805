package query

import (
	"fmt"
	"math"

	bberrors "github.com/bagbrowser/bagbrowser/internal/errors"
)

// DefaultPageSize is the number of bags returned per page when none is given.
const DefaultPageSize = 250

// QueryContext describes one query. It is a comparable value and is used
// directly as the result cache key, so every field takes part in lookups.
type QueryContext struct {
	Space                    string
	ExternalIdentifierPrefix string
	CreatedAfter             string
	CreatedBefore            string
	Page                     int
	PageSize                 int
}

// NewContext builds a validated QueryContext. A zero page means page 1 and a
// zero page size means DefaultPageSize.
func NewContext(space, prefix, createdAfter, createdBefore string, page, pageSize int) (QueryContext, error) {
	qc := QueryContext{
		Space:                    space,
		ExternalIdentifierPrefix: prefix,
		CreatedAfter:             createdAfter,
		CreatedBefore:            createdBefore,
		Page:                     page,
		PageSize:                 pageSize,
	}.withDefaults()
	if err := qc.Validate(); err != nil {
		return QueryContext{}, err
	}
	return qc, nil
}

func (qc QueryContext) withDefaults() QueryContext {
	if qc.Page == 0 {
		qc.Page = 1
	}
	if qc.PageSize == 0 {
		qc.PageSize = DefaultPageSize
	}
	return qc
}

// Validate checks the page bounds and the date range. Dates are fixed-width
// ISO strings, so they are compared as strings.
func (qc QueryContext) Validate() error {
	if qc.Page < 1 {
		return bberrors.NewValidationError(bberrors.CodeInvalidPage,
			fmt.Sprintf("page must be positive, got %d", qc.Page))
	}
	if qc.PageSize < 1 {
		return bberrors.NewValidationError(bberrors.CodeInvalidPage,
			fmt.Sprintf("page size must be positive, got %d", qc.PageSize))
	}
	if qc.Page-1 > math.MaxInt/qc.PageSize {
		return bberrors.NewValidationError(bberrors.CodeInvalidPage,
			fmt.Sprintf("page %d is out of range for page size %d", qc.Page, qc.PageSize))
	}
	if qc.CreatedAfter != "" && qc.CreatedBefore != "" && qc.CreatedAfter > qc.CreatedBefore {
		return bberrors.NewValidationError(bberrors.CodeInvalidDateRange,
			fmt.Sprintf("created_after %q is later than created_before %q", qc.CreatedAfter, qc.CreatedBefore)).
			WithDetails(map[string]interface{}{
				"created_after":  qc.CreatedAfter,
				"created_before": qc.CreatedBefore,
			})
	}
	return nil
}

// Offset is the number of matching rows that precede this page.
func (qc QueryContext) Offset() int {
	return (qc.Page - 1) * qc.PageSize
}
