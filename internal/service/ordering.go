package service

import "sort"

// sortNewestFirst orders items by timestamp descending with ties broken by id
// descending. Queries request the same order but not every dialect
// guarantees it for equal timestamps.
func sortNewestFirst[T any](items []T, key func(T) (int64, string)) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, idi := key(items[i])
		tj, idj := key(items[j])
		if ti != tj {
			return ti > tj
		}
		return idi > idj
	})
}
