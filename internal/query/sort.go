package query

import (
	"sort"

	"github.com/bagbrowser/bagbrowser/pkg/types"
)

// SortBags orders bags by (space, external identifier, version) comparing the
// version as a number. The store orders by id string, which puts v10 before
// v2. The sort is stable.
func SortBags(bags []*types.Bag) {
	sort.SliceStable(bags, func(i, j int) bool {
		return bags[i].Identifier.Less(bags[j].Identifier)
	})
}
