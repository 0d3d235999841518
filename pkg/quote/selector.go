package quote

import (
	"sort"

	"cellroute/pkg/types"
)

// Sort returns routes ordered by sortType: destination amount descending
// (the default) or duration ascending. Equal routes keep their input order.
// The input slice is not modified.
func Sort(routes []*types.Route, sortType types.SortType) []*types.Route {
	sorted := make([]*types.Route, len(routes))
	copy(sorted, routes)

	switch sortType {
	case types.SortByDuration:
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Duration < sorted[j].Duration
		})
	default:
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].DstAmount.Cmp(sorted[j].DstAmount) > 0
		})
	}
	return sorted
}

// Suggest returns the best route for sortType, or nil when there is none.
func Suggest(routes []*types.Route, sortType types.SortType) *types.Route {
	if len(routes) == 0 {
		return nil
	}
	return Sort(routes, sortType)[0]
}
