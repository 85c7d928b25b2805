package query

import "github.com/bagbrowser/bagbrowser/pkg/types"

// Result holds the aggregates over every bag matching a QueryContext plus a
// single page of those bags. Results may be shared through the cache and
// must be treated as read-only.
type Result struct {
	TotalCount     int64
	TotalFileCount int64
	TotalFileSize  int64
	FileExtTally   map[string]int64
	Bags           []*types.Bag
}

// TotalPages returns ceil(TotalCount / pageSize).
func (r *Result) TotalPages(pageSize int) int64 {
	if pageSize <= 0 || r.TotalCount == 0 {
		return 0
	}
	ps := int64(pageSize)
	return (r.TotalCount + ps - 1) / ps
}

func emptyResult() *Result {
	return &Result{
		FileExtTally: map[string]int64{},
		Bags:         []*types.Bag{},
	}
}
